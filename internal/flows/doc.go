// Package flows contains the orchestration for every Engine operation.
//
// Each flow function (RunSignIn, RunAuthorize, RunRefresh, etc.) accepts a
// [Deps] value and returns a result or a typed *autherr.Error. Audit events
// and metric counters are emitted by the Engine around these calls.
//
// # Architecture boundaries
//
// Flows coordinate the token codec, cache-backed stores, principal store,
// rate limiter and mailer. They do NOT own any of these resources;
// ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import tenantauth (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through the interfaces in deps.go.
package flows
