package domain

import "time"

// AuditKind classifies a session audit event.
type AuditKind string

const (
	AuditLoginStarted       AuditKind = "login_started"
	AuditLoginSucceeded     AuditKind = "login_succeeded"
	AuditLoginFailed        AuditKind = "login_failed"
	AuditCSRFRejected       AuditKind = "csrf_rejected"
	AuditRefreshSucceeded   AuditKind = "refresh_succeeded"
	AuditRefreshFailed      AuditKind = "refresh_failed"
	AuditLogout             AuditKind = "logout"
	AuditSessionInvalidated AuditKind = "session_invalidated"
)

// AuditEvent is one entry in the session journal.
type AuditEvent struct {
	ID         string    `json:"id"` // ULID
	Kind       AuditKind `json:"kind"`
	Subject    string    `json:"subject,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
