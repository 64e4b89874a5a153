// Package telemetry defines the auth event stream: events emitted on login,
// refresh, logout, and revocation, published best-effort to Kafka and to the
// OTel log pipeline.
package telemetry

import "time"

// Event types emitted by the auth service.
const (
	EventLogin        = "auth.login"
	EventLoginFailure = "auth.login_failure"
	EventRefresh      = "auth.refresh"
	EventLogout       = "auth.logout"
	EventRevoke       = "auth.revoke"
)

// Event is a single auth event. UserID and SessionID are empty when the
// event is not bound to an authenticated principal (e.g. a failed login for
// an unknown email).
type Event struct {
	UserID    string    `json:"user_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	EventType string    `json:"event_type"`
	Source    string    `json:"source,omitempty"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Metadata  []byte    `json:"metadata,omitempty"` // JSON
	CreatedAt time.Time `json:"created_at"`
}
