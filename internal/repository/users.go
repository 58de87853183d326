package repository

import (
	"context"
	"fmt"
)

// UsersRepository holds the minimal user operations the catalog needs: ratings
// reference users and the ratings listing joins their username.
type UsersRepository struct {
	db DBTX
}

// Create inserts a user and returns its id.
func (r *UsersRepository) Create(ctx context.Context, email, username string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (email, username) VALUES ($1,$2) RETURNING id`,
		email, username,
	).Scan(&id)
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}
