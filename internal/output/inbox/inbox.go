// Package inbox keeps recent report notifications per user in memory.
package inbox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crimson-sun/kartavya/internal/model"
	"github.com/crimson-sun/kartavya/internal/output"
)

const defaultLimit = 50

// Notification is a message shown to a report's owner.
type Notification struct {
	ID        string          `json:"id"`
	Kind      model.EventKind `json:"kind"`
	ReportID  string          `json:"report_id"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Read      bool            `json:"read"`
	CreatedAt time.Time       `json:"created_at"`
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLimit sets how many notifications are kept per user. Default: 50.
// Values below one keep the default.
func WithLimit(n int) Option {
	return func(ib *Inbox) {
		if n > 0 {
			ib.limit = n
		}
	}
}

// Inbox is an output.Output that turns events into per-user notifications,
// newest first.
type Inbox struct {
	mu     sync.Mutex
	limit  int
	byUser map[string][]Notification
}

// New creates an empty Inbox.
func New(opts ...Option) *Inbox {
	ib := &Inbox{limit: defaultLimit, byUser: make(map[string][]Notification)}
	for _, opt := range opts {
		opt(ib)
	}
	return ib
}

// Write records a notification for the event's user. Events without a
// user are ignored.
func (ib *Inbox) Write(_ context.Context, e model.Event) error {
	if e.UserID == "" {
		return nil
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	n := Notification{
		ID:        uuid.NewString(),
		Kind:      e.Kind,
		ReportID:  e.ReportID,
		Title:     e.Title,
		Message:   output.Message(e),
		CreatedAt: ts,
	}

	ib.mu.Lock()
	defer ib.mu.Unlock()
	list := append([]Notification{n}, ib.byUser[e.UserID]...)
	if len(list) > ib.limit {
		list = list[:ib.limit]
	}
	ib.byUser[e.UserID] = list
	return nil
}

// List returns a copy of the user's notifications, newest first.
func (ib *Inbox) List(userID string) []Notification {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return append([]Notification{}, ib.byUser[userID]...)
}

// Unread counts the user's unread notifications.
func (ib *Inbox) Unread(userID string) int {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	n := 0
	for _, nt := range ib.byUser[userID] {
		if !nt.Read {
			n++
		}
	}
	return n
}

// MarkRead marks one notification read and reports whether it was found.
func (ib *Inbox) MarkRead(userID, id string) bool {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	list := ib.byUser[userID]
	for i := range list {
		if list[i].ID == id {
			list[i].Read = true
			return true
		}
	}
	return false
}

// MarkAllRead marks every notification for the user read.
func (ib *Inbox) MarkAllRead(userID string) {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	list := ib.byUser[userID]
	for i := range list {
		list[i].Read = true
	}
}

// Close is a no-op; notifications live only in memory.
func (ib *Inbox) Close() error { return nil }
