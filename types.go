package tenantauth

import (
	"github.com/MrEthical07/tenantauth/internal/audit"
	"github.com/MrEthical07/tenantauth/internal/domain"
	"github.com/MrEthical07/tenantauth/internal/flows"
	"github.com/MrEthical07/tenantauth/internal/metrics"
)

/*
====================================
DATA MODEL
====================================
*/

// GlobalRole is the platform-wide role of a principal.
type GlobalRole = domain.GlobalRole

const (
	RoleSuperAdmin = domain.RoleSuperAdmin
	RoleAdmin      = domain.RoleAdmin
	RoleStaff      = domain.RoleStaff
	RoleMember     = domain.RoleMember
	RoleGuest      = domain.RoleGuest
)

// Principal is an account together with its service memberships.
type Principal = domain.Principal

// ServiceMembership links a principal to one service with a per-service role.
type ServiceMembership = domain.ServiceMembership

// AuthorizationContext is the resolved view of a principal against one service.
type AuthorizationContext = domain.AuthorizationContext

/*
====================================
EXTERNAL INTERFACES
====================================
*/

// PrincipalStore is the relational store the engine reads principals from.
//
// Adapters report ErrStoreNotFound and ErrStoreConflict; any other error is
// treated as unavailability.
type PrincipalStore = domain.PrincipalStore

// Mailer delivers the password-reset email.
type Mailer = domain.Mailer

var (
	// ErrStoreNotFound is the adapter-side sentinel for a missing row.
	ErrStoreNotFound = domain.ErrNotFound
	// ErrStoreConflict is the adapter-side sentinel for uniqueness or reference violations.
	ErrStoreConflict = domain.ErrConflict
)

/*
====================================
RESULTS
====================================
*/

// TokenPair is a freshly issued Access and Refresh pair with their expiries.
type TokenPair = flows.TokenPair

// SignInResult carries session tokens, or an MFA challenge when MFARequired is set.
type SignInResult = flows.SignInResult

// RefreshResult carries the new Access token and, with rotation, a new Refresh token.
type RefreshResult = flows.RefreshResult

// ProfileResult is the public principal record, plus rotated tokens for
// operations that rotate the session.
type ProfileResult = flows.ProfileResult

// MFAUpdateResult describes the outcome of UpdateMFA.
type MFAUpdateResult = flows.MFAUpdateResult

// SignUpRequest carries registration input. See Engine.SignUp.
type SignUpRequest = flows.SignUpRequest

// SignUpResult is the new principal and, when MFA was requested, its QR code.
type SignUpResult = flows.SignUpResult

// ProfileUpdate names the self-service profile fields. Empty fields are kept.
type ProfileUpdate = domain.ProfileUpdate

/*
====================================
AUDIT / METRICS
====================================
*/

type AuditEvent = audit.Event
type AuditSink = audit.Sink
type NoOpAuditSink = audit.NoOpSink
type ChannelAuditSink = audit.ChannelSink
type JSONWriterAuditSink = audit.JSONWriterSink
type SlogAuditSink = audit.SlogSink

var (
	NewChannelAuditSink    = audit.NewChannelSink
	NewJSONWriterAuditSink = audit.NewJSONWriterSink
	NewSlogAuditSink       = audit.NewSlogSink
)

// MetricID identifies one engine counter.
type MetricID = metrics.ID

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot = metrics.Snapshot

const (
	MetricSignInSuccess         = metrics.SignInSuccess
	MetricSignInFailure         = metrics.SignInFailure
	MetricSignInRateLimited     = metrics.SignInRateLimited
	MetricMFAChallengeIssued    = metrics.MFAChallengeIssued
	MetricMFAVerifySuccess      = metrics.MFAVerifySuccess
	MetricMFAVerifyFailure      = metrics.MFAVerifyFailure
	MetricSignOutSuccess        = metrics.SignOutSuccess
	MetricSignOutRejected       = metrics.SignOutRejected
	MetricRefreshSuccess        = metrics.RefreshSuccess
	MetricRefreshFailure        = metrics.RefreshFailure
	MetricTokenRevoked          = metrics.TokenRevoked
	MetricForgotPasswordRequest = metrics.ForgotPasswordRequest
	MetricPasswordResetSuccess  = metrics.PasswordResetSuccess
	MetricPasswordResetFailure  = metrics.PasswordResetFailure
	MetricPasswordChangeSuccess = metrics.PasswordChangeSuccess
	MetricPasswordChangeFailure = metrics.PasswordChangeFailure
	MetricMFAEnabled            = metrics.MFAEnabled
	MetricMFADisabled           = metrics.MFADisabled
	MetricSignUpSuccess         = metrics.SignUpSuccess
	MetricSignUpFailure         = metrics.SignUpFailure
	MetricProfileUpdated        = metrics.ProfileUpdated
	MetricAuthorizeSuccess      = metrics.AuthorizeSuccess
	MetricAuthorizeFailure      = metrics.AuthorizeFailure
	MetricAuthorizeCacheHit     = metrics.AuthorizeCacheHit
	MetricCacheWriteFailure     = metrics.CacheWriteFailure
	MetricAuthorizeLatency      = metrics.AuthorizeLatency
)
