package store

import (
	"context"
	"database/sql"
	"strings"

	"iou/internal/models"
)

type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, tx Execer, user models.User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.ExecContext(ctx, query, user.ID, user.Name, user.Email, user.PasswordHash, user.CreatedAt)
	return err
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, `SELECT id, name, email, password_hash, created_at FROM users WHERE email = $1`, email)
	return user, err
}

func (s *UserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, `SELECT id, name, email, password_hash, created_at FROM users WHERE id = $1`, userID)
	return user, err
}

// UpdateName renames the user; an unknown id yields sql.ErrNoRows.
func (s *UserStore) UpdateName(ctx context.Context, tx Execer, userID, name string) error {
	result, err := tx.ExecContext(ctx, `UPDATE users SET name = $2 WHERE id = $1`, userID, name)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Search matches name or email by substring, excluding the caller.
func (s *UserStore) Search(ctx context.Context, excludeUserID, term string, limit int) ([]models.UserSummary, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(term)) + "%"
	var users []models.UserSummary
	err := s.db.SelectContext(ctx, &users, `
		SELECT id, name, email
		FROM users
		WHERE id <> $1 AND (name ILIKE $2 OR email ILIKE $2)
		ORDER BY name
		LIMIT $3
	`, excludeUserID, pattern, limit)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
