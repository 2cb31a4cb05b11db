// Command authd serves the tenantauth engine over HTTP.
//
// Configuration comes from AUTH_* environment variables; see config.go.
//
//	authd serve     start the HTTP server
//	authd migrate   apply the Postgres schema
//	authd lint      print advisory configuration warnings
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/tenantauth"
	"github.com/MrEthical07/tenantauth/mail"
	promexport "github.com/MrEthical07/tenantauth/metrics/export/prometheus"
	"github.com/MrEthical07/tenantauth/store/memory"
	"github.com/MrEthical07/tenantauth/store/postgres"
)

const readHeaderTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "authd",
		Short:        "Multi-tenant authentication daemon",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newLintCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			logger := newLogger(os.Stderr, cfg.LogFormat, cfg.LogLevel)
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides AUTH_HTTP_ADDR)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("AUTH_DATABASE_URL is required")
			}
			store, err := postgres.Open(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}

func newLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Print advisory configuration warnings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := cfg.Engine.Validate(); err != nil {
				fmt.Fprintf(out, "invalid: %v\n", err)
			}
			for _, w := range cfg.Engine.Lint() {
				fmt.Fprintf(out, "%s: %s\n", w.Code, w.Message)
			}
			return nil
		},
	}
}

type backends struct {
	store  tenantauth.PrincipalStore
	mailer tenantauth.Mailer
	redis  *redis.Client
	ready  []func(context.Context) error
	close  []func() error
}

func (b *backends) shutdown(logger *slog.Logger) {
	for i := len(b.close) - 1; i >= 0; i-- {
		if err := b.close[i](); err != nil {
			logger.Warn("close backend", slog.Any("error", err))
		}
	}
}

func (b *backends) readiness(ctx context.Context) error {
	for _, check := range b.ready {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

func openBackends(cfg daemonConfig, logger *slog.Logger) (*backends, error) {
	b := &backends{}

	if cfg.DatabaseURL != "" {
		store, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		b.store = store
		b.ready = append(b.ready, store.Ping)
		b.close = append(b.close, store.Close)
	} else {
		logger.Warn("AUTH_DATABASE_URL not set, using an empty in-memory store")
		b.store = memory.New()
	}

	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.ready = append(b.ready, func(ctx context.Context) error { return b.redis.Ping(ctx).Err() })
		b.close = append(b.close, b.redis.Close)
	}

	if cfg.SMTP.Host != "" {
		sender, err := mail.NewSMTPSender(cfg.SMTP)
		if err != nil {
			b.shutdown(logger)
			return nil, err
		}
		b.mailer = sender
	} else {
		logger.Warn("AUTH_SMTP_HOST not set, reset emails are logged instead of sent")
		b.mailer = mail.NewLogSender(logger)
	}

	return b, nil
}

func buildEngine(cfg daemonConfig, b *backends, logger *slog.Logger) (*tenantauth.Engine, error) {
	builder := tenantauth.New().
		WithConfig(cfg.Engine).
		WithStore(b.store).
		WithMailer(b.mailer).
		WithAuditSink(tenantauth.NewSlogAuditSink(logger.With(slog.String("component", "audit")))).
		WithLogger(logger)
	if b.redis != nil {
		builder = builder.WithRedis(b.redis)
	}
	return builder.Build()
}

func serve(ctx context.Context, cfg daemonConfig, logger *slog.Logger) error {
	b, err := openBackends(cfg, logger)
	if err != nil {
		return err
	}
	defer b.shutdown(logger)

	engine, err := buildEngine(cfg, b, logger)
	if err != nil {
		return err
	}
	defer engine.Close()
	for _, w := range cfg.Engine.Lint() {
		logger.Warn("config", slog.String("code", w.Code), slog.String("message", w.Message))
	}

	opts := routerOptions{
		Engine:       engine,
		Logger:       logger,
		Metrics:      newHTTPMetrics(promexport.NewExporter(engine)),
		CORSOrigins:  cfg.CORSOrigins,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Ready:        b.readiness,
	}
	if cfg.RateLimit.Enabled {
		if opts.Limiter, err = newIPLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.MaxIPs); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(opts),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
