package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/MrEthical07/tenantauth"
)

// RequestMetadata stores the client IP, user agent and request id in the
// request context. requestID may be nil, in which case the X-Request-Id
// header is used. Client IP is taken from RemoteAddr, so mount a trusted
// real-IP middleware first when running behind a proxy.
func RequestMetadata(requestID func(context.Context) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			ip := r.RemoteAddr
			if host, _, err := net.SplitHostPort(ip); err == nil {
				ip = host
			}
			ctx = tenantauth.WithClientIP(ctx, ip)
			ctx = tenantauth.WithUserAgent(ctx, r.UserAgent())

			id := r.Header.Get("X-Request-Id")
			if requestID != nil {
				if v := requestID(ctx); v != "" {
					id = v
				}
			}
			if id != "" {
				ctx = tenantauth.WithRequestID(ctx, id)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
