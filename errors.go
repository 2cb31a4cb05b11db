package tenantauth

import "github.com/MrEthical07/tenantauth/internal/autherr"

// Error is the typed failure returned by every Engine operation.
type Error = autherr.Error

// Kind is the stable machine-readable identifier carried by an Error.
type Kind = autherr.Kind

const (
	KindInvalidCredentials      = autherr.KindInvalidCredentials
	KindInactiveUser            = autherr.KindInactiveUser
	KindInvalidToken            = autherr.KindInvalidToken
	KindTokenRevoked            = autherr.KindTokenRevoked
	KindAlreadySignedOut        = autherr.KindAlreadySignedOut
	KindRefreshTokenMissing     = autherr.KindRefreshTokenMissing
	KindSessionExpired          = autherr.KindSessionExpired
	KindInsufficientPermissions = autherr.KindInsufficientPermissions
	KindNotRegisteredOnService  = autherr.KindNotRegisteredOnService
	KindServiceInactiveUser     = autherr.KindServiceInactiveUser
	KindInvalidMFAToken         = autherr.KindInvalidMFAToken
	KindInvalidMFACode          = autherr.KindInvalidMFACode
	KindPasswordPolicyViolation = autherr.KindPasswordPolicyViolation

	KindMFAAlreadyEnabled      = autherr.KindMFAAlreadyEnabled
	KindMFANotEnabled          = autherr.KindMFANotEnabled
	KindInvalidCurrentPassword = autherr.KindInvalidCurrentPassword
	KindPasswordReused         = autherr.KindPasswordReused
	KindInvalidProfile         = autherr.KindInvalidProfile
	KindRateLimited            = autherr.KindRateLimited
	KindNotFound               = autherr.KindNotFound
	KindConflict               = autherr.KindConflict
	KindUnavailable            = autherr.KindUnavailable
	KindInvalidConfig          = autherr.KindInvalidConfig
)

var (
	// ErrInvalidCredentials is returned by SignIn for unknown, deleted, or wrong-password principals.
	ErrInvalidCredentials = autherr.ErrInvalidCredentials
	// ErrInactiveUser is returned when the principal, or the service it is
	// authorizing against, is inactive.
	ErrInactiveUser = autherr.ErrInactiveUser
	// ErrInvalidToken covers bad signatures, malformed tokens, wrong kinds and expiry.
	ErrInvalidToken = autherr.ErrInvalidToken
	// ErrTokenRevoked is returned for blacklisted Access tokens.
	ErrTokenRevoked = autherr.ErrTokenRevoked
	// ErrAlreadySignedOut is returned when SignOut has nothing left to revoke.
	ErrAlreadySignedOut = autherr.ErrAlreadySignedOut
	// ErrRefreshTokenMissing is returned when no Refresh token was presented.
	ErrRefreshTokenMissing = autherr.ErrRefreshTokenMissing
	// ErrSessionExpired is returned by Refresh for blacklisted Refresh tokens.
	ErrSessionExpired = autherr.ErrSessionExpired
	// ErrInsufficientPermissions is returned by AuthorizeRoles on a role mismatch.
	ErrInsufficientPermissions = autherr.ErrInsufficientPermissions
	// ErrNotRegisteredOnService is returned when no membership exists for the service.
	ErrNotRegisteredOnService = autherr.ErrNotRegisteredOnService
	// ErrServiceInactiveUser is returned when the membership itself is inactive.
	ErrServiceInactiveUser = autherr.ErrServiceInactiveUser
	// ErrInvalidMFAToken is returned for absent, mismatched, expired or replayed challenges.
	ErrInvalidMFAToken = autherr.ErrInvalidMFAToken
	// ErrInvalidMFACode is returned when a one-time code does not validate.
	ErrInvalidMFACode = autherr.ErrInvalidMFACode
	// ErrPasswordPolicyViolation carries the violated rules in Details.
	ErrPasswordPolicyViolation = autherr.ErrPasswordPolicyViolation
	// ErrInvalidProfile is returned by SignUp and UpdateProfile for a
	// malformed username or email. Details names the offending fields.
	ErrInvalidProfile = autherr.ErrInvalidProfile

	ErrMFAAlreadyEnabled      = autherr.ErrMFAAlreadyEnabled
	ErrMFANotEnabled          = autherr.ErrMFANotEnabled
	ErrInvalidCurrentPassword = autherr.ErrInvalidCurrentPassword
	ErrPasswordReused         = autherr.ErrPasswordReused
	ErrRateLimited            = autherr.ErrRateLimited
	ErrNotFound               = autherr.ErrNotFound
	ErrConflict               = autherr.ErrConflict
	// ErrUnavailable wraps cache, store, mail and signing backend failures.
	ErrUnavailable   = autherr.ErrUnavailable
	ErrInvalidConfig = autherr.ErrInvalidConfig
)

// KindOf returns the Kind of the first Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	return autherr.KindOf(err)
}
