package repositories

import (
	"context"
	"database/sql"
	"errors"

	intdb "transitportal/internal/db"
	"transitportal/internal/domain/models"
	"transitportal/internal/utils"
)

// StaffRepository manages staff_route_assignments. Emails are normalized before every
// read and write.
type StaffRepository struct {
	DB *sql.DB
}

func (r StaffRepository) db() *sql.DB { return fallbackDB(r.DB) }

// IsAssigned reports whether an active assignment exists for (email, route).
func (r StaffRepository) IsAssigned(ctx context.Context, email string, routeID int64) (bool, error) {
	var one int
	err := r.db().QueryRowContext(ctx, `
		SELECT 1 FROM staff_route_assignments
		WHERE staff_email = ? AND route_id = ? AND active = 1
		LIMIT 1`, utils.NormalizeEmail(email), routeID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListRoutes returns the active assignments of a staff member with route labels.
func (r StaffRepository) ListRoutes(ctx context.Context, email string) ([]models.StaffRouteAssignment, error) {
	rows, err := r.db().QueryContext(ctx, `
		SELECT a.id, a.staff_email, a.route_id, r.code, r.name, a.active, a.updated_at
		FROM staff_route_assignments a
		JOIN routes r ON r.id = a.route_id
		WHERE a.staff_email = ? AND a.active = 1
		ORDER BY r.code`, utils.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.StaffRouteAssignment{}
	for rows.Next() {
		var a models.StaffRouteAssignment
		if err := rows.Scan(&a.ID, &a.StaffEmail, &a.RouteID, &a.RouteCode, &a.RouteName, &a.Active, &a.UpdatedAt); err != nil {
			return out, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Assign creates or reactivates an assignment. Returns ErrNotFound for an unknown route.
func (r StaffRepository) Assign(ctx context.Context, email string, routeID int64) error {
	email = utils.NormalizeEmail(email)
	return intdb.WithTx(ctx, r.db(), func(q intdb.Querier) error {
		var id int64
		if err := q.QueryRowContext(ctx, `SELECT id FROM routes WHERE id = ? LIMIT 1`, routeID).Scan(&id); err != nil {
			return err
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO staff_route_assignments (staff_email, route_id, active)
			VALUES (?, ?, 1)
			ON DUPLICATE KEY UPDATE active = 1`, email, routeID)
		return err
	})
}

// Unassign deactivates an assignment; false when there was nothing active to remove.
func (r StaffRepository) Unassign(ctx context.Context, email string, routeID int64) (bool, error) {
	res, err := r.db().ExecContext(ctx, `
		UPDATE staff_route_assignments SET active = 0
		WHERE staff_email = ? AND route_id = ? AND active = 1`, utils.NormalizeEmail(email), routeID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
