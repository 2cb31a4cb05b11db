// Package stores implements the revocation list, the single-use MFA challenge
// and password-reset records, and the authorization and member caches on top
// of a cache.Cache.
//
// # Key layout
//
//	<raw token>                       revoked marker, TTL = exp - now
//	mfa_temp_token-<username>         outstanding challenge token
//	password_reset:<token>            owning email
//	password_reset_used:<email>       used marker, same TTL as the token
//	jwt_verify:<token>:<service id>   resolved authorization context
//	member:<uuid>                     public principal profile
//
// Every write carries a TTL. Single-use consumption goes through cache.Take,
// which is atomic on Redis (GETDEL).
//
// This package makes no authentication decisions; those belong to internal/flows.
package stores
