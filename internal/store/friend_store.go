package store

import (
	"context"

	"iou/internal/models"
)

// FriendStore keeps the user_friends set. Each friendship is two rows, one per direction.
type FriendStore struct {
	db DB
}

func NewFriendStore(db DB) *FriendStore {
	return &FriendStore{db: db}
}

func (s *FriendStore) Add(ctx context.Context, tx Execer, userID, friendID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO user_friends (user_id, friend_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, friend_id) DO NOTHING
	`, userID, friendID)
	return err
}

func (s *FriendStore) Remove(ctx context.Context, tx Execer, userID, friendID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM user_friends WHERE user_id = $1 AND friend_id = $2`, userID, friendID)
	return err
}

func (s *FriendStore) Exists(ctx context.Context, tx Getter, userID, friendID string) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM user_friends WHERE user_id = $1 AND friend_id = $2)
	`, userID, friendID)
	return exists, err
}

func (s *FriendStore) List(ctx context.Context, userID string) ([]models.UserSummary, error) {
	var friends []models.UserSummary
	err := s.db.SelectContext(ctx, &friends, `
		SELECT u.id, u.name, u.email
		FROM user_friends f
		JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = $1
		ORDER BY u.name
	`, userID)
	if err != nil {
		return nil, err
	}
	return friends, nil
}
