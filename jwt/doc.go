// Package jwt issues and decodes the signed tokens used by tenantauth:
// Access, Refresh, MFA-Challenge and Password-Reset. Each kind has its own
// key and lifetime, and decoding always enforces expiry and the kind claim.
package jwt
