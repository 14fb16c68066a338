package repositories

import (
	"context"
	"database/sql"
	"strings"

	"transitportal/internal/domain/models"
)

type UserRepository struct {
	DB *sql.DB
}

func (r UserRepository) db() *sql.DB { return fallbackDB(r.DB) }

// FindByLogin looks a user up by email or username.
func (r UserRepository) FindByLogin(ctx context.Context, login string) (models.User, error) {
	login = strings.TrimSpace(login)
	var u models.User
	err := r.db().QueryRowContext(ctx, `
		SELECT id, name, username, email, COALESCE(phone, ''), password_hash, role, status
		FROM users
		WHERE email = ? OR username = ?
		LIMIT 1`, strings.ToLower(login), login).Scan(
		&u.ID, &u.Name, &u.Username, &u.Email, &u.Phone, &u.PasswordHash, &u.Role, &u.Status,
	)
	return u, err
}

// EmailByID resolves a staff id to the email assignments are keyed by.
func (r UserRepository) EmailByID(ctx context.Context, id int64) (string, error) {
	var email string
	err := r.db().QueryRowContext(ctx, `SELECT email FROM users WHERE id = ? AND status = 'active' LIMIT 1`, id).Scan(&email)
	return email, err
}
