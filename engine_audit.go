package goIdentity

import (
	"context"
	"time"
)

const (
	eventRegisterSuccess       = "register_success"
	eventRegisterFailure       = "register_failure"
	eventOTPIssued             = "otp_issued"
	eventOTPVerifySuccess      = "otp_verify_success"
	eventOTPVerifyFailure      = "otp_verify_failure"
	eventLoginSuccess          = "login_success"
	eventLoginFailure          = "login_failure"
	eventForgotPasswordRequest = "forgot_password_request"
	eventPasswordResetConfirm  = "password_reset_confirm"
	eventBiometricRegistered   = "biometric_registered"
	eventBiometricLoginSuccess = "biometric_login_success"
	eventBiometricLoginFailure = "biometric_login_failure"
	eventCounterRollback       = "counter_rollback_detected"
	eventLogout                = "logout_session"
	eventLogoutAll             = "logout_all"
	eventRateLimitTriggered    = "rate_limit_triggered"
)

// emitAudit stamps the event with the wall clock and request context before
// handing it to the async dispatcher. It never blocks the calling flow when
// DropIfFull is configured.
func (e *Engine) emitAudit(ctx context.Context, event AuditEvent) {
	if e.audit == nil {
		return
	}

	event.Timestamp = time.Now()
	if event.IP == "" {
		event.IP = ClientIP(ctx)
	}
	if ua := UserAgent(ctx); ua != "" {
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		event.Metadata["user_agent"] = ua
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, email, scope string) {
	e.metrics.Inc(MetricRateLimitHit)
	e.emitAudit(ctx, AuditEvent{
		EventType: eventRateLimitTriggered,
		Email:     email,
		Success:   false,
		Metadata:  map[string]string{"scope": scope},
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
