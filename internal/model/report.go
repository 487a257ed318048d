package model

import "time"

// Status is the lifecycle state of a report.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusInProgress, StatusResolved:
		return st, true
	}
	return "", false
}

// Location is where an issue was reported.
type Location struct {
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	Accuracy  float64        `json:"accuracy,omitempty"` // meters
	Address   string         `json:"address,omitempty"`
	Details   AddressDetails `json:"details"`
}

// AddressDetails holds the structured parts of a reverse-geocoded address.
type AddressDetails struct {
	Road     string `json:"road,omitempty"`
	Area     string `json:"area,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Country  string `json:"country,omitempty"`
	Postcode string `json:"postcode,omitempty"`
}

// Report is a citizen-submitted civic issue.
type Report struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	UserName      string    `json:"user_name"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Severity      Severity  `json:"severity"`
	Confidence    int       `json:"confidence"`
	Summary       string    `json:"summary"`
	AnalysisError string    `json:"analysis_error,omitempty"`
	PhotoURL      string    `json:"photo_url,omitempty"`
	Location      *Location `json:"location,omitempty"`
	Status        Status    `json:"status"`
	Upvotes       int       `json:"upvotes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Role distinguishes citizens from administrators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// UserStats are the per-user counters shown on the admin dashboard.
type UserStats struct {
	TotalReports   int `json:"total_reports"`
	ResolvedIssues int `json:"resolved_issues"`
	Points         int `json:"points"`
}

// User is a reporter.
type User struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Role  Role      `json:"role"`
	Stats UserStats `json:"stats"`
}

// AdminStats aggregates statistics across all citizen users.
type AdminStats struct {
	TotalUsers     int    `json:"total_users"`
	TotalReports   int    `json:"total_reports"`
	TotalResolved  int    `json:"total_resolved"`
	ResolutionRate int    `json:"resolution_rate"` // percent
	Users          []User `json:"users"`
}
