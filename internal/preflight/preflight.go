// Package preflight sends a single CORS preflight request and reports what the
// server answered. It is a debugging aid for the dev and production CORS
// profiles of the HTTP API.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Defaults mirror a browser page on :8001 posting JSON to the API on :8000.
const (
	DefaultURL     = "http://localhost:8000/predict"
	DefaultOrigin  = "http://localhost:8001"
	DefaultMethod  = http.MethodPost
	DefaultHeaders = "content-type"
	DefaultTimeout = 5 * time.Second
)

// maxBody caps how much of the response body is kept in a Result.
const maxBody = 64 << 10

// Request describes the preflight to send.
type Request struct {
	URL     string
	Origin  string
	Method  string // Access-Control-Request-Method
	Headers string // Access-Control-Request-Headers
	Timeout time.Duration
}

func (r Request) withDefaults() Request {
	if r.URL == "" {
		r.URL = DefaultURL
	}
	if r.Origin == "" {
		r.Origin = DefaultOrigin
	}
	if r.Method == "" {
		r.Method = DefaultMethod
	}
	if r.Headers == "" {
		r.Headers = DefaultHeaders
	}
	if r.Timeout <= 0 {
		r.Timeout = DefaultTimeout
	}
	return r
}

// Result is the server's answer to a preflight.
type Result struct {
	Status     int
	StatusText string
	Header     http.Header
	Body       string
}

// AllowOrigin returns the Access-Control-Allow-Origin header, if any.
func (r *Result) AllowOrigin() string { return r.Header.Get("Access-Control-Allow-Origin") }

// Send issues one OPTIONS request. A nil client uses http.DefaultClient with
// req.Timeout applied through the context.
func Send(ctx context.Context, client *http.Client, req Request) (*Result, error) {
	req = req.withDefaults()
	if client == nil {
		client = http.DefaultClient
	}
	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	hr, err := http.NewRequestWithContext(ctx, http.MethodOptions, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	hr.Header.Set("Origin", req.Origin)
	hr.Header.Set("Access-Control-Request-Method", strings.ToUpper(req.Method))
	hr.Header.Set("Access-Control-Request-Headers", req.Headers)

	resp, err := client.Do(hr)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("preflight %s: timed out after %s", req.URL, req.Timeout)
		}
		return nil, fmt.Errorf("preflight %s: %w", req.URL, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Result{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Header:     resp.Header.Clone(),
		Body:       string(body),
	}, nil
}

// Write prints the result as status, sorted headers and body.
func (r *Result) Write(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Status: %d %s\n", r.Status, r.StatusText)
	b.WriteString("\nResponse headers:\n")
	keys := make([]string, 0, len(r.Header))
	for k := range r.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s: %s\n", k, strings.Join(r.Header.Values(k), ", "))
	}
	b.WriteString("\nBody:\n")
	b.WriteString(r.Body)
	if r.Body != "" && !strings.HasSuffix(r.Body, "\n") {
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
