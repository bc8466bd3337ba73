package authcore

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventRegisterSuccess        = "register_success"
	auditEventRegisterFailure        = "register_failure"
	auditEventLoginSuccess           = "login_success"
	auditEventLoginFailure           = "login_failure"
	auditEventLoginRateLimited       = "login_rate_limited"
	auditEventExternalLoginSuccess   = "external_login_success"
	auditEventExternalLoginFailure   = "external_login_failure"
	auditEventExternalAccountLinked  = "external_account_linked"
	auditEventExternalAccountCreated = "external_account_created"
	auditEventRefreshSuccess         = "refresh_success"
	auditEventRefreshFailure         = "refresh_failure"
	auditEventPasswordResetRequest   = "password_reset_request"
	auditEventPasswordResetConfirm   = "password_reset_confirm"
	auditEventPasswordResetReplay    = "password_reset_replay"
)

const (
	auditErrInvalidCredentials  AuditErrorCode = "invalid_credentials"
	auditErrInactiveUser        AuditErrorCode = "inactive_user"
	auditErrInvalidToken        AuditErrorCode = "invalid_token"
	auditErrUserNotFound        AuditErrorCode = "user_not_found"
	auditErrDuplicate           AuditErrorCode = "duplicate"
	auditErrOAuth               AuditErrorCode = "oauth_failure"
	auditErrUsernameUnavailable AuditErrorCode = "username_unavailable"
	auditErrPasswordPolicy      AuditErrorCode = "password_policy"
	auditErrInvalidInput        AuditErrorCode = "invalid_input"
	auditErrRateLimited         AuditErrorCode = "rate_limited"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrNotReady            AuditErrorCode = "engine_not_ready"
	auditErrCanceled            AuditErrorCode = "canceled"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
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
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrInactiveUser):
		return auditErrInactiveUser
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrUserAlreadyExists):
		return auditErrDuplicate
	case errors.Is(err, ErrOAuth):
		return auditErrOAuth
	case errors.Is(err, ErrUsernameUnavailable):
		return auditErrUsernameUnavailable
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrRateLimiterUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrEngineNotReady):
		return auditErrNotReady
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return auditErrCanceled
	default:
		return auditErrInternal
	}
}

func (e *Engine) observe(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}
