// Package audit records authentication events (logins, refreshes, logouts,
// revocations) for the security trail. Recording is best-effort: failures are
// logged and never affect the request that produced the event.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// Auth actions recorded by the service and the request gate.
const (
	ActionLogin        = "login"
	ActionLoginFailure = "login_failure"
	ActionRefresh      = "refresh"
	ActionLogout       = "logout"
	ActionRevoke       = "revoke"
)

// Event is one audit entry. UserID and SessionID may be empty when the event
// precedes identification (e.g. a failed login for an unknown account).
type Event struct {
	Action    string
	UserID    string
	SessionID string
	IP        string
	Metadata  string
}

// Recorder accepts audit events. Implementations must be safe for concurrent use.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// IPExtractor returns the client IP for the request context.
type IPExtractor func(context.Context) string

// Entry is the persisted form of an Event.
type Entry struct {
	ID        string
	Action    string
	UserID    string
	SessionID string
	IP        string
	Metadata  string
	CreatedAt time.Time
}

// Repository persists audit entries.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
}

// Logger implements Recorder over a Repository with an optional IP extractor.
type Logger struct {
	repo        Repository
	ipExtractor IPExtractor
}

// NewLogger returns a Recorder that persists to repo. ipExtractor may be nil;
// the IP is then recorded as "unknown".
func NewLogger(repo Repository, ipExtractor IPExtractor) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor}
}

// Record writes one audit entry. Best-effort: errors are logged, not returned.
func (l *Logger) Record(ctx context.Context, e Event) {
	if l == nil || l.repo == nil {
		return
	}
	ip := e.IP
	if ip == "" {
		ip = "unknown"
		if l.ipExtractor != nil {
			if extracted := l.ipExtractor(ctx); extracted != "" {
				ip = extracted
			}
		}
	}
	entry := &Entry{
		ID:        uuid.New().String(),
		Action:    e.Action,
		UserID:    e.UserID,
		SessionID: e.SessionID,
		IP:        ip,
		Metadata:  e.Metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to record %s: %v", e.Action, err)
	}
}
