// Package tenantauth is the authentication and session-authorization core of
// a multi-tenant platform.
//
// A single identity engine issues and validates credentials for principals
// who may each hold memberships in many independent services (tenants), each
// membership carrying its own role.
//
// # Architecture
//
// [Engine] is configured through [Builder]:
//
//	engine, err := tenantauth.New().
//		WithConfig(cfg).
//		WithRedis(redisClient).
//		WithStore(postgresStore).
//		WithMailer(mailer).
//		Build()
//
// The engine composes these pieces:
//
//   - jwt.Manager signs and decodes the four token kinds (Access, Refresh,
//     MFA challenge, Password reset), each under its own key.
//   - Cache-backed stores hold the revocation blacklist, single-use MFA and
//     reset entries, the (token, service) authorization cache and the
//     member profile cache.
//   - mfa.TOTP validates one-time codes and renders provisioning QR codes.
//   - password.Argon2 and password.Policy verify and vet passwords.
//
// # Authorization
//
// [Engine.Authorize] resolves a bearer token against one service id. The
// checks run in a fixed order: revocation, signature and expiry, principal,
// principal active, membership exists, service active, membership active.
// The resolved [AuthorizationContext] is cached until the token expires.
//
// # Errors
//
// Every operation fails with an [*Error] carrying a stable [Kind].
// errors.Is matches errors of the same kind against the exported sentinels:
//
//	if errors.Is(err, tenantauth.ErrTokenRevoked) { ... }
//
// # Observability
//
// Audit events go to an [AuditSink] through an asynchronous dispatcher.
// Counters are read with [Engine.MetricsSnapshot] and exported by the
// metrics/export/prometheus and metrics/export/otel packages.
package tenantauth
