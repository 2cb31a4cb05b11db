package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/tenantauth"
)

// Authorizer is the subset of *tenantauth.Engine used by the guards.
type Authorizer interface {
	AuthorizeRoles(ctx context.Context, accessToken, serviceID string, roles ...string) (*tenantauth.AuthorizationContext, error)
}

// ErrorHandler writes the response for a rejected request.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type Option func(*guardOptions)

type guardOptions struct {
	onError ErrorHandler
}

// WithErrorHandler replaces the default plain-text error response.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *guardOptions) {
		if h != nil {
			o.onError = h
		}
	}
}

type authContextKey struct{}

// FromContext returns the context stored by a guard.
func FromContext(ctx context.Context) (*tenantauth.AuthorizationContext, bool) {
	ac, ok := ctx.Value(authContextKey{}).(*tenantauth.AuthorizationContext)
	return ac, ok
}

// RequireService admits requests whose principal is an active member of serviceID.
func RequireService(engine Authorizer, serviceID string, opts ...Option) func(http.Handler) http.Handler {
	return RequireRoles(engine, serviceID, nil, opts...)
}

// RequireRoles admits members of serviceID holding one of roles. An empty
// roles list behaves like RequireService.
func RequireRoles(engine Authorizer, serviceID string, roles []string, opts ...Option) func(http.Handler) http.Handler {
	o := guardOptions{onError: defaultErrorHandler}
	for _, opt := range opts {
		opt(&o)
	}
	roles = append([]string(nil), roles...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				o.onError(w, r, tenantauth.ErrUnavailable)
				return
			}

			token, ok := BearerToken(r)
			if !ok {
				o.onError(w, r, tenantauth.ErrInvalidToken)
				return
			}

			ac, err := engine.AuthorizeRoles(r.Context(), token, serviceID, roles...)
			if err != nil {
				o.onError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), authContextKey{}, ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	const bearer = "Bearer "
	value := r.Header.Get("Authorization")
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	status := http.StatusUnauthorized
	switch tenantauth.KindOf(err) {
	case tenantauth.KindInsufficientPermissions, tenantauth.KindNotRegisteredOnService, tenantauth.KindServiceInactiveUser:
		status = http.StatusForbidden
	case tenantauth.KindUnavailable, "":
		status = http.StatusServiceUnavailable
	}
	http.Error(w, http.StatusText(status), status)
}
