package store

import (
	"context"
	"time"

	"iou/internal/models"
)

type FriendRequestStore struct {
	db DB
}

func NewFriendRequestStore(db DB) *FriendRequestStore {
	return &FriendRequestStore{db: db}
}

const friendRequestColumns = `id, from_user_id, to_user_id, link_person_from, status, created_at, updated_at`

func (s *FriendRequestStore) Create(ctx context.Context, tx Execer, req models.FriendRequest) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO friend_requests (id, from_user_id, to_user_id, link_person_from, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, req.ID, req.FromUserID, req.ToUserID, req.LinkPersonFrom, req.Status, req.CreatedAt, req.UpdatedAt)
	return err
}

// GetByPair looks up the single request for the ordered (from, to) pair.
func (s *FriendRequestStore) GetByPair(ctx context.Context, tx Getter, fromUserID, toUserID string) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := tx.GetContext(ctx, &req, `
		SELECT `+friendRequestColumns+`
		FROM friend_requests
		WHERE from_user_id = $1 AND to_user_id = $2
		FOR UPDATE
	`, fromUserID, toUserID)
	return req, err
}

func (s *FriendRequestStore) GetForUpdate(ctx context.Context, tx Getter, requestID string) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := tx.GetContext(ctx, &req, `
		SELECT `+friendRequestColumns+`
		FROM friend_requests
		WHERE id = $1
		FOR UPDATE
	`, requestID)
	return req, err
}

// Reset puts a finished request back to pending. A nil linkPersonFrom keeps the stored one.
func (s *FriendRequestStore) Reset(ctx context.Context, tx Execer, requestID string, linkPersonFrom *string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE friend_requests
		SET status = 'pending', link_person_from = COALESCE($2, link_person_from), updated_at = $3
		WHERE id = $1
	`, requestID, linkPersonFrom, at)
	return err
}

func (s *FriendRequestStore) SetStatus(ctx context.Context, tx Execer, requestID string, status models.FriendRequestStatus, at time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE friend_requests SET status = $2, updated_at = $3 WHERE id = $1`, requestID, status, at)
	return err
}

func (s *FriendRequestStore) ListIncoming(ctx context.Context, userID string) ([]models.FriendRequestView, error) {
	var views []models.FriendRequestView
	err := s.db.SelectContext(ctx, &views, `
		SELECT r.id, r.from_user_id, r.to_user_id, r.link_person_from, r.status, r.created_at, r.updated_at,
		       u.name AS other_name, u.email AS other_email
		FROM friend_requests r
		JOIN users u ON u.id = r.from_user_id
		WHERE r.to_user_id = $1 AND r.status = 'pending'
		ORDER BY r.updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return views, nil
}

func (s *FriendRequestStore) ListOutgoing(ctx context.Context, userID string) ([]models.FriendRequestView, error) {
	var views []models.FriendRequestView
	err := s.db.SelectContext(ctx, &views, `
		SELECT r.id, r.from_user_id, r.to_user_id, r.link_person_from, r.status, r.created_at, r.updated_at,
		       u.name AS other_name, u.email AS other_email
		FROM friend_requests r
		JOIN users u ON u.id = r.to_user_id
		WHERE r.from_user_id = $1 AND r.status = 'pending'
		ORDER BY r.updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return views, nil
}
