package store

import (
	"context"

	"iou/internal/models"

	"github.com/lib/pq"
)

type NotificationStore struct {
	db DB
}

func NewNotificationStore(db DB) *NotificationStore {
	return &NotificationStore{db: db}
}

// Create runs outside any ledger transaction; notifications are written after commit.
func (s *NotificationStore) Create(ctx context.Context, n models.Notification) error {
	metadata := string(n.Metadata)
	if metadata == "" {
		metadata = "{}"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, message, metadata, read, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
	`, n.ID, n.UserID, n.Type, n.Message, metadata, n.Read, n.CreatedAt)
	return err
}

func (s *NotificationStore) ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	var rows []models.Notification
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, type, message, metadata, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkRead flags the user's notifications with the given ids, or all of them when ids is empty.
func (s *NotificationStore) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	query := `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`
	args := []any{userID}
	if len(ids) > 0 {
		query += ` AND id = ANY($2)`
		args = append(args, pq.Array(ids))
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *NotificationStore) Clear(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
