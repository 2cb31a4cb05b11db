package tenantauth

import (
	"context"
	"strconv"
	"time"

	"github.com/MrEthical07/tenantauth/internal/audit"
	"github.com/MrEthical07/tenantauth/internal/flows"
	"github.com/MrEthical07/tenantauth/internal/metrics"
)

// Engine defines a public type used by tenantauth APIs.
//
// An Engine is safe for concurrent use. All state lives in the shared cache
// and the principal store.
type Engine struct {
	config  Config
	deps    flows.Deps
	now     func() time.Time
	audit   *audit.Dispatcher
	metrics *metrics.Metrics
}

// Close stops the audit dispatcher after delivering queued events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// With metrics disabled the snapshot is empty.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

/*
====================================
SESSION
====================================
*/

// SignUp registers a principal with the member role and no service
// memberships. Username and email must be unique; a duplicate fails with
// ErrConflict. The password goes through the same policy as ChangePassword.
//
// With EnableMFA the result carries a QR code for the new secret. Under
// MFA.RequireEnrollmentConfirmation that secret stays pending until
// UpdateMFA is called with a valid code.
func (e *Engine) SignUp(ctx context.Context, req SignUpRequest) (*SignUpResult, error) {
	res, err := flows.RunSignUp(ctx, e.deps, req)
	if err != nil {
		e.metricInc(MetricSignUpFailure)
		e.emitAudit(ctx, auditEventSignUpFailure, false, "", "", err, usernameMeta(req.Username))
		return nil, err
	}
	e.metricInc(MetricSignUpSuccess)
	e.emitAudit(ctx, auditEventSignUpSuccess, true, res.Principal.UUID, "", nil, func() map[string]string {
		return map[string]string{"mfa": strconv.FormatBool(req.EnableMFA)}
	})
	return res, nil
}

// SignIn describes the signin operation and its observable behavior.
//
// SignIn verifies username and password. For principals with MFA enabled the
// result carries MFARequired and a challenge token to pass to VerifyMFA;
// otherwise it carries an Access and Refresh pair.
func (e *Engine) SignIn(ctx context.Context, username, password string) (*SignInResult, error) {
	res, err := flows.RunSignIn(ctx, e.deps, username, password)
	if err != nil {
		if KindOf(err) == KindRateLimited {
			e.metricInc(MetricSignInRateLimited)
			e.emitAudit(ctx, auditEventSignInRateLimited, false, "", "", err, usernameMeta(username))
			return nil, err
		}
		e.metricInc(MetricSignInFailure)
		e.emitAudit(ctx, auditEventSignInFailure, false, "", "", err, usernameMeta(username))
		return nil, err
	}

	if res.MFARequired {
		e.metricInc(MetricMFAChallengeIssued)
		e.emitAudit(ctx, auditEventMFARequired, true, res.PrincipalUUID, "", nil, nil)
		return res, nil
	}
	e.metricInc(MetricSignInSuccess)
	e.emitAudit(ctx, auditEventSignInSuccess, true, res.PrincipalUUID, "", nil, nil)
	return res, nil
}

// VerifyMFA describes the verifymfa operation and its observable behavior.
//
// VerifyMFA exchanges a challenge token from SignIn and a TOTP code for a
// session. A challenge is accepted once.
func (e *Engine) VerifyMFA(ctx context.Context, username, challengeToken, code string) (*SignInResult, error) {
	res, err := flows.RunVerifyMFA(ctx, e.deps, username, challengeToken, code)
	if err != nil {
		e.metricInc(MetricMFAVerifyFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, "", "", err, usernameMeta(username))
		return nil, err
	}
	e.metricInc(MetricMFAVerifySuccess)
	e.metricInc(MetricSignInSuccess)
	e.emitAudit(ctx, auditEventMFASuccess, true, res.PrincipalUUID, "", nil, nil)
	return res, nil
}

// SignOut describes the signout operation and its observable behavior.
//
// SignOut blacklists both tokens for their remaining lifetime and reports
// true. It fails with ErrRefreshTokenMissing when refreshToken is empty and
// with ErrAlreadySignedOut when neither token could be revoked.
func (e *Engine) SignOut(ctx context.Context, accessToken, refreshToken string) (bool, error) {
	res, err := flows.RunSignOut(ctx, e.deps, accessToken, refreshToken)
	if err != nil {
		e.metricInc(MetricSignOutRejected)
		e.emitAudit(ctx, auditEventSignOut, false, "", "", err, nil)
		return false, err
	}
	if res.AccessRevoked {
		e.metricInc(MetricTokenRevoked)
	}
	if res.RefreshRevoked {
		e.metricInc(MetricTokenRevoked)
	}
	e.metricInc(MetricSignOutSuccess)
	e.emitAudit(ctx, auditEventSignOut, true, res.PrincipalUUID, "", nil, nil)
	return true, nil
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh issues a new Access token for a live Refresh token. With
// Security.RotateRefreshTokens the Refresh token is replaced as well.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	res, err := flows.RunRefresh(ctx, e.deps, refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", err, nil)
		return nil, err
	}
	e.metricInc(MetricRefreshSuccess)
	if res.RefreshToken != "" {
		e.metricInc(MetricTokenRevoked)
	}
	e.emitAudit(ctx, auditEventRefreshSuccess, true, res.PrincipalUUID, "", nil, nil)
	return res, nil
}

/*
====================================
PASSWORD RESET
====================================
*/

// ForgotPassword describes the forgotpassword operation and its observable behavior.
//
// ForgotPassword mails a single-use reset link. It returns nil without
// sending anything when the email matches no active principal. A mail
// delivery failure is returned as ErrUnavailable.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	e.metricInc(MetricForgotPasswordRequest)
	res, err := flows.RunForgotPassword(ctx, e.deps, email)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", "", err, nil)
		return err
	}
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, res.PrincipalUUID, "", nil, func() map[string]string {
		return map[string]string{"sent": strconv.FormatBool(res.Sent)}
	})
	return nil
}

// ResetPassword describes the resetpassword operation and its observable behavior.
//
// ResetPassword sets a new password with a token from ForgotPassword. A token
// that fails the password policy stays usable; a token that succeeded once
// never does again.
func (e *Engine) ResetPassword(ctx context.Context, resetToken, newPassword, confirm string) error {
	uuid, err := flows.RunResetPassword(ctx, e.deps, resetToken, newPassword, confirm)
	if err != nil {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", err, nil)
		return err
	}
	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, uuid, "", nil, nil)
	return nil
}

/*
====================================
AUTHORIZATION
====================================
*/

// Authorize describes the authorize operation and its observable behavior.
//
// Authorize resolves accessToken against serviceID. Revoked tokens fail with
// ErrTokenRevoked before any cache or store lookup. Successful resolutions are
// cached until the token expires.
func (e *Engine) Authorize(ctx context.Context, accessToken, serviceID string) (*AuthorizationContext, error) {
	start := time.Now()
	res, err := flows.RunAuthorize(ctx, e.deps, accessToken, serviceID)
	return e.finishAuthorize(ctx, start, serviceID, res, err)
}

// AuthorizeRoles is Authorize plus a check that the per-service role is one
// of roles. A mismatch fails with ErrInsufficientPermissions.
func (e *Engine) AuthorizeRoles(ctx context.Context, accessToken, serviceID string, roles ...string) (*AuthorizationContext, error) {
	start := time.Now()
	res, err := flows.RunAuthorizeRoles(ctx, e.deps, accessToken, serviceID, roles...)
	return e.finishAuthorize(ctx, start, serviceID, res, err)
}

func (e *Engine) finishAuthorize(ctx context.Context, start time.Time, serviceID string, res *flows.AuthorizeResult, err error) (*AuthorizationContext, error) {
	if e.metrics != nil {
		e.metrics.Observe(MetricAuthorizeLatency, time.Since(start))
	}
	if res != nil {
		if res.CacheHit {
			e.metricInc(MetricAuthorizeCacheHit)
		}
		if res.CacheWriteErr != nil {
			e.metricInc(MetricCacheWriteFailure)
		}
	}
	if err != nil {
		e.metricInc(MetricAuthorizeFailure)
		e.emitAudit(ctx, auditEventAuthorizeDenied, false, "", serviceID, err, nil)
		return nil, err
	}
	e.metricInc(MetricAuthorizeSuccess)
	return res.Context, nil
}

/*
====================================
MEMBER
====================================
*/

// ChangePassword describes the changepassword operation and its observable behavior.
//
// ChangePassword verifies current, applies the password policy, stores the
// new hash and rotates the session: the presented tokens are revoked and a
// new pair is returned.
func (e *Engine) ChangePassword(ctx context.Context, accessToken, refreshToken, current, newPassword, confirm string) (*ProfileResult, error) {
	res, err := flows.RunChangePassword(ctx, e.deps, accessToken, refreshToken, current, newPassword, confirm)
	if err != nil {
		e.metricInc(MetricPasswordChangeFailure)
		event := auditEventPasswordChangeFailure
		switch KindOf(err) {
		case KindInvalidCurrentPassword:
			event = auditEventPasswordChangeInvalidOld
		case KindPasswordReused:
			event = auditEventPasswordChangeReuse
		}
		e.emitAudit(ctx, event, false, "", "", err, nil)
		return nil, err
	}
	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, res.Principal.UUID, "", nil, nil)
	return res, nil
}

// UpdateMFA describes the updatemfa operation and its observable behavior.
//
// Enabling returns a base64 PNG QR code for the new secret. Disabling needs a
// valid code. Both rotate the session unless enrollment is still pending
// confirmation.
func (e *Engine) UpdateMFA(ctx context.Context, accessToken, refreshToken string, enable bool, code string) (*MFAUpdateResult, error) {
	res, err := flows.RunUpdateMFA(ctx, e.deps, accessToken, refreshToken, enable, code)
	if err != nil {
		e.emitAudit(ctx, auditEventMFAUpdateFailure, false, "", "", err, func() map[string]string {
			return map[string]string{"enable": strconv.FormatBool(enable)}
		})
		return nil, err
	}
	switch {
	case res.Pending:
		e.emitAudit(ctx, auditEventMFASetupRequested, true, res.Principal.UUID, "", nil, nil)
	case res.Enabled:
		e.metricInc(MetricMFAEnabled)
		e.emitAudit(ctx, auditEventMFAEnabled, true, res.Principal.UUID, "", nil, nil)
	default:
		e.metricInc(MetricMFADisabled)
		e.emitAudit(ctx, auditEventMFADisabled, true, res.Principal.UUID, "", nil, nil)
	}
	return res, nil
}

// UpdateProfile changes the session owner's username or email. Empty fields
// are kept. The presented tokens are revoked and a new pair is returned.
func (e *Engine) UpdateProfile(ctx context.Context, accessToken, refreshToken string, u ProfileUpdate) (*ProfileResult, error) {
	res, err := flows.RunUpdateProfile(ctx, e.deps, accessToken, refreshToken, u)
	if err != nil {
		e.emitAudit(ctx, auditEventProfileUpdateFailure, false, "", "", err, nil)
		return nil, err
	}
	e.metricInc(MetricProfileUpdated)
	e.emitAudit(ctx, auditEventProfileUpdated, true, res.Principal.UUID, "", nil, nil)
	return res, nil
}

// MFAQRCode returns the base64 PNG QR code of the session owner's current
// secret. It fails with ErrMFANotEnabled when MFA is off.
func (e *Engine) MFAQRCode(ctx context.Context, accessToken string) (string, error) {
	return flows.RunMFAQRCode(ctx, e.deps, accessToken)
}

// Profile returns the session owner's public record through the member cache.
func (e *Engine) Profile(ctx context.Context, accessToken string) (*Principal, error) {
	res, err := flows.RunProfile(ctx, e.deps, accessToken)
	if err != nil {
		return nil, err
	}
	return res.Principal, nil
}

// InvalidatePrincipal drops the cached profile of uuid. Membership management
// calls it after changing roles or activation flags.
func (e *Engine) InvalidatePrincipal(ctx context.Context, uuid string) error {
	return flows.RunInvalidatePrincipal(ctx, e.deps, uuid)
}

func usernameMeta(username string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"username": username}
	}
}
