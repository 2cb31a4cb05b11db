package autherr

// Sentinel values. Compare with errors.Is; the flows return copies enriched
// through Wrap and WithDetails.
var (
	ErrInvalidCredentials      = New(KindInvalidCredentials, "Authentication failed: Invalid username or password")
	ErrInactiveUser            = New(KindInactiveUser, "Authentication failed: User is inactive")
	ErrInvalidToken            = New(KindInvalidToken, "Authentication failed: Invalid or expired token")
	ErrTokenRevoked            = New(KindTokenRevoked, "Authentication failed: Token has been revoked")
	ErrAlreadySignedOut        = New(KindAlreadySignedOut, "Already signed out.")
	ErrRefreshTokenMissing     = New(KindRefreshTokenMissing, "Refresh token not found in request.")
	ErrSessionExpired          = New(KindSessionExpired, "Session expired, please sign in again")
	ErrInsufficientPermissions = New(KindInsufficientPermissions, "Access denied: Insufficient permissions")
	ErrNotRegisteredOnService  = New(KindNotRegisteredOnService, "Access denied: User is not registered on this service")
	ErrServiceInactiveUser     = New(KindServiceInactiveUser, "Access denied: User account is inactive")
	ErrInvalidMFAToken         = New(KindInvalidMFAToken, "Invalid or expired MFA token")
	ErrInvalidMFACode          = New(KindInvalidMFACode, "Invalid MFA code provided")
	ErrPasswordPolicyViolation = New(KindPasswordPolicyViolation, "Failed to update password.")

	ErrMFAAlreadyEnabled      = New(KindMFAAlreadyEnabled, "MFA is already enabled")
	ErrMFANotEnabled          = New(KindMFANotEnabled, "MFA is not yet enabled for this account")
	ErrInvalidCurrentPassword = New(KindInvalidCurrentPassword, "Current password is incorrect")
	ErrPasswordReused         = New(KindPasswordReused, "New password cannot be the same as the current password")
	ErrInvalidProfile         = New(KindInvalidProfile, "Invalid username or email")
	ErrRateLimited            = New(KindRateLimited, "Too many attempts, please try again later")
	ErrNotFound               = New(KindNotFound, "Member not found")
	ErrConflict               = New(KindConflict, "Record conflicts with existing data")
	ErrUnavailable            = New(KindUnavailable, "Service temporarily unavailable")
	ErrInvalidConfig          = New(KindInvalidConfig, "Invalid configuration")
)
