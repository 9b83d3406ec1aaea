package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/calendar-assistant/backend/internal/storage/models"
)

// UserRepository stores the user registry in SQLite.
type UserRepository struct {
	BaseRepository
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// LoadUsers returns every stored user ordered by creation time.
func (r *UserRepository) LoadUsers(ctx context.Context) ([]models.User, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT user_id, username, email, calendar_id, authenticated,
			   tokens_location, created_at, last_login
		FROM users
		ORDER BY created_at, user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var (
			u         models.User
			lastLogin sql.NullTime
		)
		if err := rows.Scan(
			&u.UserID, &u.Username, &u.Email, &u.CalendarID, &u.Authenticated,
			&u.TokensLocation, &u.CreatedAt, &lastLogin,
		); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		if lastLogin.Valid {
			t := lastLogin.Time
			u.LastLogin = &t
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// SaveUsers replaces the stored registry with users in one transaction.
func (r *UserRepository) SaveUsers(ctx context.Context, users []models.User) error {
	return r.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
			return fmt.Errorf("clearing users: %w", err)
		}
		for _, u := range users {
			if err := insertUser(ctx, tx, u); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertUser(ctx context.Context, q Queryable, u models.User) error {
	var lastLogin any
	if u.LastLogin != nil {
		lastLogin = u.LastLogin.UTC()
	}
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO users (
			user_id, username, email, calendar_id, authenticated,
			tokens_location, created_at, last_login
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		u.UserID, u.Username, u.Email, u.CalendarID, u.Authenticated,
		u.TokensLocation, createdAt.UTC(), lastLogin,
	)
	if err != nil {
		return fmt.Errorf("inserting user %s: %w", u.UserID, err)
	}
	return nil
}
