package tenantauth

import "context"

const (
	auditEventSignInSuccess            = "sign_in_success"
	auditEventSignInFailure            = "sign_in_failure"
	auditEventSignInRateLimited        = "sign_in_rate_limited"
	auditEventMFARequired              = "mfa_required"
	auditEventMFASuccess               = "mfa_success"
	auditEventMFAFailure               = "mfa_failure"
	auditEventSignOut                  = "sign_out"
	auditEventRefreshSuccess           = "refresh_success"
	auditEventRefreshInvalid           = "refresh_invalid"
	auditEventPasswordResetRequest     = "password_reset_request"
	auditEventPasswordResetConfirm     = "password_reset_confirm"
	auditEventPasswordChangeSuccess    = "password_change_success"
	auditEventPasswordChangeInvalidOld = "password_change_invalid_old"
	auditEventPasswordChangeReuse      = "password_change_reuse_attempt"
	auditEventPasswordChangeFailure    = "password_change_failure"
	auditEventMFASetupRequested        = "mfa_setup_requested"
	auditEventMFAEnabled               = "mfa_enabled"
	auditEventMFADisabled              = "mfa_disabled"
	auditEventMFAUpdateFailure         = "mfa_update_failure"
	auditEventSignUpSuccess            = "sign_up_success"
	auditEventSignUpFailure            = "sign_up_failure"
	auditEventProfileUpdated           = "profile_updated"
	auditEventProfileUpdateFailure     = "profile_update_failure"
	auditEventAuthorizeDenied          = "authorize_denied"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	principalID string,
	serviceID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:   e.now().UTC(),
		EventType:   eventType,
		PrincipalID: principalID,
		ServiceID:   serviceID,
		RequestID:   requestIDFromContext(ctx),
		IP:          clientIPFromContext(ctx),
		UserAgent:   userAgentFromContext(ctx),
		Success:     success,
		Metadata:    metadata,
	}
	if kind := KindOf(err); kind != "" {
		event.Error = string(kind)
	} else if err != nil {
		event.Error = string(KindUnavailable)
	}

	e.audit.Emit(ctx, event)
}
