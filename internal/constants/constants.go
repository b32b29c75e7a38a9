package constants

import "time"

const (
	// ContextKeyUserID is the session and gin context key holding the caller id
	ContextKeyUserID = "user_id"

	// SessionCookieName is the name of the session cookie
	SessionCookieName = "taskwise_session"

	// MinPasswordLength is the minimum accepted password length
	MinPasswordLength = 6

	// MinNameLength is the minimum accepted display name length
	MinNameLength = 2

	// VerificationCodeLength is the number of digits in an email verification code
	VerificationCodeLength = 6

	// VerificationCodeTTL is how long a verification code stays usable
	VerificationCodeTTL = 15 * time.Minute

	// CalendarEventDuration is the length of a timed calendar event
	CalendarEventDuration = time.Hour

	// RealtimeSendBuffer is the per-connection outbound queue size
	RealtimeSendBuffer = 64
)

// Realtime event names
const (
	EventTaskCreated = "task:created"
	EventTaskUpdated = "task:updated"
	EventTaskDeleted = "task:deleted"
)

// Credential integrations
const (
	IntegrationGoogleCalendar = "google_calendar"
	IntegrationSystemEmail    = "system_email"

	// IntegrationEmail labels outbound email failures regardless of transport
	IntegrationEmail = "email"

	// SystemEmailSubject is the credential subject of the single outbound email account
	SystemEmailSubject = "system"
)
