package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"irisd/internal/artifact"
	"irisd/internal/config"
	"irisd/internal/features"
	"irisd/internal/httpapi"
	"irisd/internal/predictor"
)

type serveFlags struct {
	configPath  string
	addr        string
	model       string
	staticRoot  string
	cors        string
	corsOrigins string
	logLevel    string
	logFormat   string
	logFile     string
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the model artifact and serve the HTTP API",
		Example: "  irisd serve --model models/iris.forest\n" +
			"  irisd serve --cors dev --log-level debug\n" +
			"  irisd serve --cors production --cors-origins https://iris.example",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveServeConfig(cmd, f, os.Getenv)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, nil)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "Config file (.yaml, .yml, .json, .toml)")
	fl.StringVar(&f.addr, "addr", "", "HTTP listen address (default :8000, env IRISD_ADDR)")
	fl.StringVar(&f.model, "model", "", "Model artifact path (default models/iris.forest, env IRISD_MODEL)")
	fl.StringVar(&f.staticRoot, "static-root", "", "Directory served under /static/ (default .)")
	fl.StringVar(&f.cors, "cors", "", "CORS profile: off|dev|production (default off)")
	fl.StringVar(&f.corsOrigins, "cors-origins", "", "Comma-separated origin allow-list for the production profile")
	fl.StringVar(&f.logLevel, "log-level", "", "Log level: debug|info|warn|error (default info)")
	fl.StringVar(&f.logFormat, "log-format", "", "Log format: auto|console|json")
	fl.StringVar(&f.logFile, "log-file", "", "Also write JSON logs to this rotating file")
	return cmd
}

// resolveServeConfig layers file, environment and flags over the defaults.
// Only flags the user actually set override earlier layers.
func resolveServeConfig(cmd *cobra.Command, f serveFlags, getenv func(string) string) (config.Config, error) {
	var cfg config.Config
	if f.configPath != "" {
		c, err := config.Load(f.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	cfg, err := cfg.WithDefaults().ApplyEnv(getenv)
	if err != nil {
		return cfg, err
	}

	set := func(name string) bool { return cmd.Flags().Changed(name) }
	if set("addr") {
		cfg.Addr = f.addr
	}
	if set("model") {
		cfg.ModelPath = f.model
	}
	if set("static-root") {
		cfg.StaticRoot = f.staticRoot
	}
	if set("cors") {
		cfg.CORS.Profile = f.cors
	}
	if set("cors-origins") {
		cfg.CORS.Origins = config.SplitCSV(f.corsOrigins)
	}
	if set("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if set("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if set("log-file") {
		cfg.LogFile = f.logFile
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// runServe opens the artifact, binds cfg.Addr and serves until ctx is done.
// A non-nil ready channel receives the bound address once listening.
func runServe(ctx context.Context, cfg config.Config, ready chan<- string) error {
	log, closer, err := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	model, err := artifact.Open(cfg.ModelPath)
	if err != nil {
		log.Error().Err(err).Str("model", cfg.ModelPath).Msg("model load failed")
		return err
	}
	defer model.Close()

	labels, err := predictor.NewLabels(model.Labels...)
	if err != nil {
		return fmt.Errorf("model labels: %w", err)
	}
	if w := model.Classifier.Features(); w != features.Width {
		return fmt.Errorf("model expects %d features, service accepts %d", w, features.Width)
	}
	pred := predictor.New(model.Classifier, labels)
	log.Info().
		Str("model", cfg.ModelPath).
		Str("format", model.Format).
		Strs("labels", labels.Names()).
		Time("created", model.CreatedAt).
		Msg("model loaded")

	h, err := httpapi.NewMux(pred, httpapi.Options{
		StaticRoot:   cfg.StaticRoot,
		MaxBodyBytes: cfg.MaxBodyBytes,
		FeatureWidth: features.Width,
		CORS: httpapi.CORSOptions{
			Profile: cfg.CORS.Profile,
			Origins: cfg.CORS.Origins,
			MaxAge:  cfg.CORS.MaxAge,
		},
		Logger:   &log,
		LogLevel: httpLogLevel(cfg.LogLevel),
	})
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
	}
	return serve(ctx, srv, ln, time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second, log, ready)
}

func serve(ctx context.Context, srv *http.Server, ln net.Listener, grace time.Duration, log zerolog.Logger, ready chan<- string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("irisd listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
		return err
	}
	return nil
}
