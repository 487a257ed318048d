package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/crimson-sun/kartavya/internal/model"
)

// SaveUser creates or renames a user and sets its role. Statistics are
// left untouched for existing users.
func (s *Store) SaveUser(ctx context.Context, u model.User) error {
	if u.ID == "" {
		return errors.New("store: user has no id")
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO users (id, name, role) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, role = excluded.role`),
		u.ID, u.Name, string(u.Role))
	if err != nil {
		return fmt.Errorf("store: save user %s: %w", u.ID, err)
	}
	return nil
}

// GetUser returns a user and its statistics.
func (s *Store) GetUser(ctx context.Context, id string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, name, role, total_reports, resolved_issues, points
		FROM users WHERE id = ?`), id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("store: get user %s: %w", id, err)
	}
	return u, nil
}

// ListUsers returns users with the given role ordered by points, highest
// first. An empty role lists everyone.
func (s *Store) ListUsers(ctx context.Context, role model.Role) ([]model.User, error) {
	q := `SELECT id, name, role, total_reports, resolved_issues, points FROM users`
	var args []any
	if role != "" {
		q += ` WHERE role = ?`
		args = append(args, string(role))
	}
	q += ` ORDER BY points DESC, name, id`

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	return users, nil
}

// AdminStats aggregates statistics over all citizen users.
func (s *Store) AdminStats(ctx context.Context) (model.AdminStats, error) {
	users, err := s.ListUsers(ctx, model.RoleUser)
	if err != nil {
		return model.AdminStats{}, err
	}
	stats := model.AdminStats{TotalUsers: len(users), Users: users}
	for _, u := range users {
		stats.TotalReports += u.Stats.TotalReports
		stats.TotalResolved += u.Stats.ResolvedIssues
	}
	if stats.TotalReports > 0 {
		stats.ResolutionRate = int(math.Round(float64(stats.TotalResolved) * 100 / float64(stats.TotalReports)))
	}
	return stats, nil
}

func scanUser(sc scanner) (model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := sc.Scan(&u.ID, &u.Name, &role, &u.Stats.TotalReports, &u.Stats.ResolvedIssues, &u.Stats.Points); err != nil {
		return model.User{}, err
	}
	u.Role = model.Role(role)
	return u, nil
}
