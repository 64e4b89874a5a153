package repository

import (
	"context"
	"database/sql"
	"errors"

	"resume-hub/auth-service/internal/user/domain"
)

// PostgresDirectory reads users from the platform's users table.
type PostgresDirectory struct {
	db *sql.DB
}

// NewPostgresDirectory returns a Directory backed by the given db.
func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

const userColumns = `id, email, name, password_hash, active, created_at`

// FindByEmail returns the user with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (d *PostgresDirectory) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// FindByID returns the user for id, or nil if not found.
func (d *PostgresDirectory) FindByID(ctx context.Context, id string) (*domain.User, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// Create persists the user. The user must have ID set; it is not assigned here.
func (d *PostgresDirectory) Create(ctx context.Context, u *domain.User) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Active, u.CreatedAt)
	return err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var name sql.NullString
	err := row.Scan(&u.ID, &u.Email, &name, &u.PasswordHash, &u.Active, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Name = name.String
	return &u, nil
}
