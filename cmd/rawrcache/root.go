package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Keksclan/rawrcache"
	"github.com/Keksclan/rawrcache/internal/config"
	"github.com/Keksclan/rawrcache/retry"
	"github.com/Keksclan/rawrcache/tracing"
	"github.com/Keksclan/rawrcache/transport"
)

// app is the state shared by all subcommands once the root command ran.
type app struct {
	v      *viper.Viper
	file   string
	cfg    *config.Config
	logger *slog.Logger
	client *rawrcache.Client
	out    io.Writer

	shutdown func(context.Context) error
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{v: config.New(), out: out}

	root := &cobra.Command{
		Use:           "rawrcache",
		Short:         "Read the recipe and forum API through the client cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.file, "config", "", "path to a YAML config file")
	flags.String("base-url", "", "API base URL")
	flags.String("token", "", "bearer token")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("trace", false, "print a span for every API call")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address while running")
	if err := bindFlags(a.v, root); err != nil {
		panic(err)
	}

	root.AddCommand(
		newUserCmd(a),
		newRecipeCmd(a),
		newPostCmd(a),
		newCommentsCmd(a),
		newBenchCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.v, a.file)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(cfg.LogLevel)
	return nil
}

// connect builds the cache client. Commands that do not talk to the API
// skip it.
func (a *app) connect(ctx context.Context) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	token := a.cfg.Token
	httpClient := transport.NewHTTPClient(a.cfg.BaseURL,
		transport.WithHTTPClient(&http.Client{Timeout: a.cfg.Timeout}),
		transport.WithUserAgent(a.cfg.UserAgent),
		transport.WithBearerToken(func(context.Context) string { return token }),
		transport.WithHTTPLogger(a.logger),
	)

	opts := []rawrcache.Option{
		rawrcache.WithLogger(a.logger),
		rawrcache.WithSweepInterval(a.cfg.SweepInterval),
	}
	for domain, ttl := range a.cfg.TTL.ByDomain() {
		opts = append(opts, rawrcache.WithTTL(domain, ttl))
	}
	if a.cfg.RetryAttempts > 1 {
		rc := retry.DefaultConfig()
		rc.MaxAttempts = a.cfg.RetryAttempts
		opts = append(opts, rawrcache.WithRetry(rc))
	}
	if a.cfg.RateLimitRPS > 0 {
		opts = append(opts, rawrcache.WithRateLimit(a.cfg.RateLimitRPS, a.cfg.RateLimitBurst))
	}
	if a.cfg.Trace {
		tp, err := newTracerProvider(os.Stderr)
		if err != nil {
			return err
		}
		a.shutdown = tp.Shutdown
		opts = append(opts, rawrcache.WithTracing(tracing.Config{TracerProvider: tp}))
	}

	c, err := rawrcache.New(httpClient, opts...)
	if err != nil {
		return err
	}
	c.Start(ctx)
	a.client = c

	if a.cfg.MetricsAddr != "" {
		go a.serveMetrics()
	}
	return nil
}

func (a *app) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.client.MetricsHandler())
	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	a.logger.Info("serving metrics", "addr", a.cfg.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error("metrics server failed", "error", err)
	}
}

func (a *app) teardown(ctx context.Context) error {
	var errs []error
	if a.client != nil {
		errs = append(errs, a.client.Close())
	}
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
	}
	return errors.Join(errs...)
}

// print writes v as indented JSON.
func (a *app) print(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(b))
	return err
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// boundFlags maps config keys to the persistent flags that override them.
var boundFlags = map[string]string{
	"base_url":     "base-url",
	"token":        "token",
	"log_level":    "log-level",
	"trace":        "trace",
	"metrics_addr": "metrics-addr",
}

// bindFlags binds every entry of boundFlags on v to cmd's persistent flags.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	var errs []error
	for key, name := range boundFlags {
		if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(name)); err != nil {
			errs = append(errs, fmt.Errorf("bind --%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
