package model

import "time"

// EventKind names a report lifecycle transition.
type EventKind string

const (
	EventReportSubmitted     EventKind = "report.submitted"
	EventReportStatusChanged EventKind = "report.status_changed"
	EventReportUpvoted       EventKind = "report.upvoted"
)

// Event is emitted to outputs whenever a report changes.
type Event struct {
	Kind      EventKind `json:"kind"`
	ReportID  string    `json:"report_id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Severity  Severity  `json:"severity,omitempty"`
	Status    Status    `json:"status,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count,omitempty"` // >1 when repeats were collapsed
}
