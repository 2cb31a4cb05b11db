package internaldefs

import "github.com/MrEthical07/tenantauth/internal/metrics"

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   metrics.ID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for exporters.
type HistogramDef struct {
	ID   metrics.ID
	Name string
	Help string
}

// CounterDefs lists every exported counter in output order.
var CounterDefs = []CounterDef{
	{ID: metrics.SignInSuccess, Name: "tenantauth_sign_in_success_total", Help: "Successful sign-ins, including those completed by MFA."},
	{ID: metrics.SignInFailure, Name: "tenantauth_sign_in_failure_total", Help: "Rejected sign-in attempts."},
	{ID: metrics.SignInRateLimited, Name: "tenantauth_sign_in_rate_limited_total", Help: "Sign-in attempts refused by the throttle."},
	{ID: metrics.MFAChallengeIssued, Name: "tenantauth_mfa_challenge_issued_total", Help: "MFA challenges issued at sign-in."},
	{ID: metrics.MFAVerifySuccess, Name: "tenantauth_mfa_verify_success_total", Help: "Accepted MFA challenge responses."},
	{ID: metrics.MFAVerifyFailure, Name: "tenantauth_mfa_verify_failure_total", Help: "Rejected MFA challenge responses."},
	{ID: metrics.SignOutSuccess, Name: "tenantauth_sign_out_success_total", Help: "Completed sign-outs."},
	{ID: metrics.SignOutRejected, Name: "tenantauth_sign_out_rejected_total", Help: "Sign-outs rejected as missing or already signed out."},
	{ID: metrics.RefreshSuccess, Name: "tenantauth_refresh_success_total", Help: "Access tokens issued from a refresh token."},
	{ID: metrics.RefreshFailure, Name: "tenantauth_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: metrics.TokenRevoked, Name: "tenantauth_token_revoked_total", Help: "Tokens written to the revocation list."},
	{ID: metrics.ForgotPasswordRequest, Name: "tenantauth_forgot_password_request_total", Help: "Forgot-password requests."},
	{ID: metrics.PasswordResetSuccess, Name: "tenantauth_password_reset_success_total", Help: "Completed password resets."},
	{ID: metrics.PasswordResetFailure, Name: "tenantauth_password_reset_failure_total", Help: "Rejected password resets."},
	{ID: metrics.PasswordChangeSuccess, Name: "tenantauth_password_change_success_total", Help: "Completed password changes."},
	{ID: metrics.PasswordChangeFailure, Name: "tenantauth_password_change_failure_total", Help: "Rejected password changes."},
	{ID: metrics.MFAEnabled, Name: "tenantauth_mfa_enabled_total", Help: "MFA enrollments."},
	{ID: metrics.MFADisabled, Name: "tenantauth_mfa_disabled_total", Help: "MFA removals."},
	{ID: metrics.SignUpSuccess, Name: "tenantauth_sign_up_success_total", Help: "Registered principals."},
	{ID: metrics.SignUpFailure, Name: "tenantauth_sign_up_failure_total", Help: "Rejected registrations."},
	{ID: metrics.ProfileUpdated, Name: "tenantauth_profile_updated_total", Help: "Self-service profile changes."},
	{ID: metrics.AuthorizeSuccess, Name: "tenantauth_authorize_success_total", Help: "Resolved authorization contexts."},
	{ID: metrics.AuthorizeFailure, Name: "tenantauth_authorize_failure_total", Help: "Denied authorization requests."},
	{ID: metrics.AuthorizeCacheHit, Name: "tenantauth_authorize_cache_hit_total", Help: "Authorization contexts served from cache."},
	{ID: metrics.CacheWriteFailure, Name: "tenantauth_cache_write_failure_total", Help: "Authorization contexts that could not be cached."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: metrics.AuthorizeLatency, Name: "tenantauth_authorize_latency_seconds", Help: "Authorize latency histogram."},
}

// AuditDroppedName is the counter for audit events dropped under backpressure.
const AuditDroppedName = "tenantauth_audit_dropped_total"

// HistogramBoundSuffix names each bucket for exporters without native
// histograms. The last entry is the overflow bucket.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) [metrics.BucketCount]uint64 {
	var out [metrics.BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [metrics.BucketCount]uint64) [metrics.BucketCount]uint64 {
	var out [metrics.BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
