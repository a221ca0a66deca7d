package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"irisd/internal/preflight"
)

func newPreflightCmd() *cobra.Command {
	req := preflight.Request{
		URL:     preflight.DefaultURL,
		Origin:  preflight.DefaultOrigin,
		Method:  preflight.DefaultMethod,
		Headers: preflight.DefaultHeaders,
		Timeout: preflight.DefaultTimeout,
	}
	cmd := &cobra.Command{
		Use:     "preflight",
		Short:   "Send one CORS preflight (OPTIONS) request and print the answer",
		Example: "  irisd preflight\n  irisd preflight --url http://localhost:8000/predict --origin https://iris.example",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Sending OPTIONS preflight to", req.URL)
			res, err := preflight.Send(cmd.Context(), nil, req)
			if err != nil {
				return err
			}
			return res.Write(out)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&req.URL, "url", req.URL, "Target URL")
	fl.StringVar(&req.Origin, "origin", req.Origin, "Origin header")
	fl.StringVar(&req.Method, "method", req.Method, "Access-Control-Request-Method")
	fl.StringVar(&req.Headers, "headers", req.Headers, "Access-Control-Request-Headers")
	fl.DurationVar(&req.Timeout, "timeout", req.Timeout, "Request timeout")
	return cmd
}
