// Package rate implements Redis fixed-window throttles for sign-in failures,
// MFA verification failures, and forgot-password requests.
//
// # Window semantics
//
// INCR, then EXPIRE on the first hit of the window. Key prefixes:
//   - rl:signin: failed sign-ins per username
//   - rl:mfa:    failed MFA codes per username
//   - rl:forgot: reset requests per email
package rate
