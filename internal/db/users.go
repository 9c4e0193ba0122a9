package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"flight-alert-service/internal/models"
)

// UsersWithRole returns all users holding any of the given directory roles.
// This backs the recipient resolver for both detection and escalation.
func (d *DB) UsersWithRole(ctx context.Context, roles ...models.Role) ([]models.User, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}

	rows, err := d.Pool.Query(ctx, `
	SELECT id, full_name, email, role
	FROM users
	WHERE role = ANY($1)
	ORDER BY id ASC`, names)
	if err != nil {
		return nil, fmt.Errorf("failed to query users by role: %w", err)
	}
	defer rows.Close()

	var list []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.FullName, &u.Email, &u.Role); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// UserByID fetches one user. Returns models.ErrNotFound when missing.
func (d *DB) UserByID(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := d.Pool.QueryRow(ctx, `
	SELECT id, full_name, email, role FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.FullName, &u.Email, &u.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, models.ErrNotFound
		}
		return models.User{}, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return u, nil
}
