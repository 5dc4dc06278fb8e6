package internaldefs

import (
	goIdentity "github.com/MrEthical07/goIdentity"
)

// CounterDef defines a public type used by goIdentity APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by goIdentity APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the identity engine.
var CounterDefs = []CounterDef{
	{ID: goIdentity.MetricRegisterSuccess, Name: "goidentity_register_success_total", Help: "Successful registrations."},
	{ID: goIdentity.MetricRegisterDuplicate, Name: "goidentity_register_duplicate_total", Help: "Registration attempts rejected as duplicate."},
	{ID: goIdentity.MetricRegisterFailure, Name: "goidentity_register_failure_total", Help: "Failed registrations."},
	{ID: goIdentity.MetricOTPIssued, Name: "goidentity_otp_issued_total", Help: "Issued OTP challenges."},
	{ID: goIdentity.MetricOTPVerifySuccess, Name: "goidentity_otp_verify_success_total", Help: "Successful OTP verifications."},
	{ID: goIdentity.MetricOTPVerifyFailure, Name: "goidentity_otp_verify_failure_total", Help: "Failed OTP verifications."},
	{ID: goIdentity.MetricOTPAttemptsExceeded, Name: "goidentity_otp_attempts_exceeded_total", Help: "OTP challenges invalidated due to attempt cap."},
	{ID: goIdentity.MetricLoginSuccess, Name: "goidentity_login_success_total", Help: "Successful password logins."},
	{ID: goIdentity.MetricLoginFailure, Name: "goidentity_login_failure_total", Help: "Failed password logins."},
	{ID: goIdentity.MetricLoginRateLimited, Name: "goidentity_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: goIdentity.MetricPasswordUpgrade, Name: "goidentity_password_upgrade_total", Help: "Transparent password hash upgrades."},
	{ID: goIdentity.MetricForgotPasswordRequest, Name: "goidentity_forgot_password_request_total", Help: "Password reset requests."},
	{ID: goIdentity.MetricPasswordResetSuccess, Name: "goidentity_password_reset_success_total", Help: "Successful password resets."},
	{ID: goIdentity.MetricPasswordResetFailure, Name: "goidentity_password_reset_failure_total", Help: "Failed password resets."},
	{ID: goIdentity.MetricBiometricRegistered, Name: "goidentity_biometric_registered_total", Help: "Bound biometric credentials."},
	{ID: goIdentity.MetricBiometricLoginSuccess, Name: "goidentity_biometric_login_success_total", Help: "Successful biometric logins."},
	{ID: goIdentity.MetricBiometricLoginFailure, Name: "goidentity_biometric_login_failure_total", Help: "Failed biometric logins."},
	{ID: goIdentity.MetricCounterRollback, Name: "goidentity_counter_rollback_total", Help: "Detected sign-counter rollbacks."},
	{ID: goIdentity.MetricSessionCreated, Name: "goidentity_session_created_total", Help: "Created sessions."},
	{ID: goIdentity.MetricSessionInvalidated, Name: "goidentity_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: goIdentity.MetricLogout, Name: "goidentity_logout_total", Help: "Single-session logout operations."},
	{ID: goIdentity.MetricLogoutAll, Name: "goidentity_logout_all_total", Help: "Logout-all operations."},
	{ID: goIdentity.MetricRateLimitHit, Name: "goidentity_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
}

// HistogramDefs is an exported constant or variable used by the identity engine.
var HistogramDefs = []HistogramDef{
	{ID: goIdentity.MetricValidateLatency, Name: "goidentity_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the identity engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the identity engine.
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

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
