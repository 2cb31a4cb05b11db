// Package middleware exposes HTTP middleware that resolves a per-service
// [tenantauth.AuthorizationContext] from the bearer access token.
//
// # Guards
//
//   - [RequireService]: the principal must be an active member of the service.
//   - [RequireRoles]: as RequireService, plus a per-service role check.
//
// Each guard reads the Authorization header, calls Engine.AuthorizeRoles, and
// stores the resolved context for [FromContext].
//
// [RequestMetadata] copies the client IP, user agent and request id into the
// context so engine audit events carry them.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
package middleware
