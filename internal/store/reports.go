package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/crimson-sun/kartavya/internal/model"
)

func newReportID() string { return uuid.NewString() }

const reportColumns = `id, user_id, user_name, title, description, category, severity,
	confidence, summary, analysis_error, photo_url, location_json, status, upvotes,
	created_at, updated_at`

// Filter narrows ListReports. Zero fields match everything.
type Filter struct {
	UserID   string
	Status   model.Status
	Category string // case-insensitive exact match
	Limit    int
}

// AddReport stores a new report, assigning its ID, pending status and
// timestamps, and credits the reporter. The stored report is returned.
func (s *Store) AddReport(ctx context.Context, r model.Report) (model.Report, error) {
	if r.UserID == "" {
		return model.Report{}, errors.New("store: report has no user id")
	}
	now := s.now()
	r.ID = s.newID()
	r.Status = model.StatusPending
	r.Upvotes = 0
	r.CreatedAt = now.UTC()
	r.UpdatedAt = now.UTC()

	loc, err := encodeLocation(r.Location)
	if err != nil {
		return model.Report{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Report{}, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO users (id, name, role, total_reports, points)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			total_reports = users.total_reports + 1,
			points = users.points + excluded.points`),
		r.UserID, r.UserName, string(model.RoleUser), PointsReportSubmitted)
	if err != nil {
		return model.Report{}, fmt.Errorf("store: credit reporter: %w", err)
	}

	_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO reports (`+reportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.UserID, r.UserName, r.Title, r.Description, r.Category, string(r.Severity),
		r.Confidence, r.Summary, r.AnalysisError, r.PhotoURL, loc, string(r.Status), r.Upvotes,
		toDB(r.CreatedAt), toDB(r.UpdatedAt))
	if err != nil {
		return model.Report{}, fmt.Errorf("store: insert report: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Report{}, fmt.Errorf("store: commit: %w", err)
	}
	return r, nil
}

// GetReport returns the report with the given ID.
func (s *Store) GetReport(ctx context.Context, id string) (model.Report, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+reportColumns+` FROM reports WHERE id = ?`), id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Report{}, ErrNotFound
	}
	if err != nil {
		return model.Report{}, fmt.Errorf("store: get report %s: %w", id, err)
	}
	return r, nil
}

// ListReports returns matching reports, newest first.
func (s *Store) ListReports(ctx context.Context, f Filter) ([]model.Report, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Category != "" {
		where = append(where, "LOWER(category) = LOWER(?)")
		args = append(args, f.Category)
	}

	q := `SELECT ` + reportColumns + ` FROM reports`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list reports: %w", err)
	}
	defer rows.Close()

	reports := []model.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list reports: %w", err)
	}
	return reports, nil
}

// ListReportsByUser returns a user's reports, newest first.
func (s *Store) ListReportsByUser(ctx context.Context, userID string) ([]model.Report, error) {
	return s.ListReports(ctx, Filter{UserID: userID})
}

// UpdateStatus moves a report to status and returns the report along with
// its previous status. Entering resolved credits the reporter; leaving
// resolved takes the resolved count back.
func (s *Store) UpdateStatus(ctx context.Context, id string, status model.Status) (model.Report, model.Status, error) {
	if _, ok := model.ParseStatus(string(status)); !ok {
		return model.Report{}, "", fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Report{}, "", fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	var prev, userID string
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT status, user_id FROM reports WHERE id = ?`), id).
		Scan(&prev, &userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Report{}, "", ErrNotFound
	}
	if err != nil {
		return model.Report{}, "", fmt.Errorf("store: load report %s: %w", id, err)
	}

	_, err = tx.ExecContext(ctx, s.rebind(`UPDATE reports SET status = ?, updated_at = ? WHERE id = ?`),
		string(status), toDB(s.now()), id)
	if err != nil {
		return model.Report{}, "", fmt.Errorf("store: update status: %w", err)
	}

	previous := model.Status(prev)
	switch {
	case status == model.StatusResolved && previous != model.StatusResolved:
		_, err = tx.ExecContext(ctx, s.rebind(`UPDATE users
			SET resolved_issues = resolved_issues + 1, points = points + ? WHERE id = ?`),
			PointsReportResolved, userID)
	case status != model.StatusResolved && previous == model.StatusResolved:
		_, err = tx.ExecContext(ctx, s.rebind(`UPDATE users
			SET resolved_issues = resolved_issues - 1 WHERE id = ? AND resolved_issues > 0`),
			userID)
	}
	if err != nil {
		return model.Report{}, "", fmt.Errorf("store: update reporter stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Report{}, "", fmt.Errorf("store: commit: %w", err)
	}

	r, err := s.GetReport(ctx, id)
	if err != nil {
		return model.Report{}, "", err
	}
	return r, previous, nil
}

// Upvote increments a report's upvote count.
func (s *Store) Upvote(ctx context.Context, id string) (model.Report, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE reports SET upvotes = upvotes + 1 WHERE id = ?`), id)
	if err != nil {
		return model.Report{}, fmt.Errorf("store: upvote %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Report{}, fmt.Errorf("store: upvote %s: %w", id, err)
	}
	if n == 0 {
		return model.Report{}, ErrNotFound
	}
	return s.GetReport(ctx, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(sc scanner) (model.Report, error) {
	var (
		r                model.Report
		severity, status string
		loc              sql.NullString
		created, updated int64
	)
	err := sc.Scan(&r.ID, &r.UserID, &r.UserName, &r.Title, &r.Description, &r.Category,
		&severity, &r.Confidence, &r.Summary, &r.AnalysisError, &r.PhotoURL, &loc, &status,
		&r.Upvotes, &created, &updated)
	if err != nil {
		return model.Report{}, err
	}
	r.Severity = model.Severity(severity)
	r.Status = model.Status(status)
	r.CreatedAt = fromDB(created)
	r.UpdatedAt = fromDB(updated)
	if loc.Valid && loc.String != "" {
		var l model.Location
		if err := json.Unmarshal([]byte(loc.String), &l); err != nil {
			return model.Report{}, fmt.Errorf("decode location: %w", err)
		}
		r.Location = &l
	}
	return r, nil
}

func encodeLocation(l *model.Location) (sql.NullString, error) {
	if l == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("store: encode location: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
