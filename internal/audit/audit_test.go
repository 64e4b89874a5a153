package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type memRepo struct {
	mu      sync.Mutex
	entries []*Entry
	fail    bool
}

func (r *memRepo) Create(ctx context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("boom")
	}
	r.entries = append(r.entries, e)
	return nil
}

func TestLogger_Record(t *testing.T) {
	repo := &memRepo{}
	l := NewLogger(repo, func(ctx context.Context) string { return "10.0.0.1" })

	l.Record(context.Background(), Event{Action: ActionLogin, UserID: "u1", SessionID: "s1"})

	if len(repo.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(repo.entries))
	}
	e := repo.entries[0]
	if e.Action != ActionLogin || e.UserID != "u1" || e.SessionID != "s1" {
		t.Errorf("entry = %+v", e)
	}
	if e.IP != "10.0.0.1" {
		t.Errorf("IP = %q, want extracted IP", e.IP)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Error("ID or CreatedAt not set")
	}
}

func TestLogger_RecordUnknownIP(t *testing.T) {
	repo := &memRepo{}
	l := NewLogger(repo, nil)

	l.Record(context.Background(), Event{Action: ActionLoginFailure})

	if len(repo.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(repo.entries))
	}
	if repo.entries[0].IP != "unknown" {
		t.Errorf("IP = %q, want unknown", repo.entries[0].IP)
	}
}

func TestLogger_RecordRepoFailureIsSwallowed(t *testing.T) {
	repo := &memRepo{fail: true}
	l := NewLogger(repo, nil)

	// must not panic or propagate
	l.Record(context.Background(), Event{Action: ActionLogout, UserID: "u1"})
}

func TestLogger_NilReceiverAndRepo(t *testing.T) {
	var l *Logger
	l.Record(context.Background(), Event{Action: ActionLogin})

	NewLogger(nil, nil).Record(context.Background(), Event{Action: ActionLogin})
}
