package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MrEthical07/tenantauth"
	"github.com/MrEthical07/tenantauth/middleware"
)

type routerOptions struct {
	Engine       *tenantauth.Engine
	Logger       *slog.Logger
	Metrics      *httpMetrics
	Limiter      *ipLimiter
	CORSOrigins  []string
	MaxBodyBytes int64
	// Ready reports backend health for /healthz. Nil means always ready.
	Ready func(ctx context.Context) error
}

func corsOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func newRouter(opts routerOptions) http.Handler {
	h := &handlers{engine: opts.Engine}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(opts.Logger))
	r.Use(chimw.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.instrument)
	}
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(corsOptions(opts.CORSOrigins)))
	}

	r.Get("/healthz", healthHandler(opts.Ready))
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.handler())
	}

	r.Group(func(r chi.Router) {
		if opts.Limiter != nil {
			r.Use(opts.Limiter.middleware)
		}
		if opts.MaxBodyBytes > 0 {
			r.Use(chimw.RequestSize(opts.MaxBodyBytes))
		}
		r.Use(middleware.RequestMetadata(chimw.GetReqID))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/sign-up", h.signUp)
			r.Post("/sign-in", h.signIn)
			r.Post("/verify-mfa", h.verifyMFA)
			r.Delete("/sign-out", h.signOut)
			r.Post("/refresh", h.refresh)
			r.Post("/forgot-password", h.forgotPassword)
			r.Post("/reset-password", h.resetPassword)
			r.Get("/verify/{serviceID}", h.verify)
		})

		r.Route("/member", func(r chi.Router) {
			r.Get("/me", h.profile)
			r.Put("/", h.updateProfile)
			r.Put("/password", h.changePassword)
			r.Put("/mfa", h.updateMFA)
			r.Get("/mfa/qrcode", h.mfaQRCode)
		})
	})

	return r
}

func healthHandler(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				writeJSONError(w, http.StatusServiceUnavailable, string(tenantauth.KindUnavailable), err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
