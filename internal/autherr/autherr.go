// Package autherr defines the typed error carried out of every tenantauth
// operation. The root package re-exports it.
package autherr

import (
	"errors"
	"strings"
)

// Kind is the stable machine-readable identifier of a failure.
type Kind string

const (
	KindInvalidCredentials      Kind = "invalid_credentials"
	KindInactiveUser            Kind = "inactive_user"
	KindInvalidToken            Kind = "invalid_token"
	KindTokenRevoked            Kind = "token_revoked"
	KindAlreadySignedOut        Kind = "already_signed_out"
	KindRefreshTokenMissing     Kind = "refresh_token_missing"
	KindSessionExpired          Kind = "session_expired"
	KindInsufficientPermissions Kind = "insufficient_permissions"
	KindNotRegisteredOnService  Kind = "not_registered_on_service"
	KindServiceInactiveUser     Kind = "service_inactive_user"
	KindInvalidMFAToken         Kind = "invalid_mfa_token"
	KindInvalidMFACode          Kind = "invalid_mfa_code"
	KindPasswordPolicyViolation Kind = "password_policy_violation"

	KindMFAAlreadyEnabled      Kind = "mfa_already_enabled"
	KindMFANotEnabled          Kind = "mfa_not_enabled"
	KindInvalidCurrentPassword Kind = "invalid_current_password"
	KindPasswordReused         Kind = "password_reused"
	KindInvalidProfile         Kind = "invalid_profile"
	KindRateLimited            Kind = "rate_limited"
	KindNotFound               Kind = "not_found"
	KindConflict               Kind = "conflict"
	KindUnavailable            Kind = "unavailable"
	KindInvalidConfig          Kind = "invalid_config"
)

// Error is a failure scoped to one request. Two Errors match under errors.Is
// when their kinds are equal, so package-level values act as sentinels.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	Err     error
}

// New returns an Error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Details) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Details, "; "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Wrap returns a copy of e carrying cause. The human message is unchanged.
func (e *Error) Wrap(cause error) *Error {
	out := *e
	out.Err = cause
	return &out
}

// WithDetails returns a copy of e listing individual violations.
func (e *Error) WithDetails(details ...string) *Error {
	out := *e
	out.Details = append([]string(nil), details...)
	return &out
}

// KindOf returns the kind of the first Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
