package services

import (
	"context"
	"encoding/json"
	"time"

	"iou/internal/models"
	"iou/internal/websocket"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultNotificationLimit = 200

type NotificationStore interface {
	Create(ctx context.Context, n models.Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID string, ids []string) (int64, error)
	Clear(ctx context.Context, userID string) (int64, error)
}

type EventPublisher interface {
	Publish(userID string, event websocket.Event)
}

// Emitter is what the ledger services need from the notification feed.
type Emitter interface {
	Emit(ctx context.Context, userID, notificationType, message string, metadata map[string]any)
}

type Notifier struct {
	store NotificationStore
	hub   EventPublisher
	log   *zap.Logger
	limit int
	now   func() time.Time
}

func NewNotifier(store NotificationStore, hub EventPublisher, log *zap.Logger, limit int) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	return &Notifier{store: store, hub: hub, log: log, limit: limit, now: time.Now}
}

// Emit stores the notification and pushes it to live connections. It never fails the caller.
func (n *Notifier) Emit(ctx context.Context, userID, notificationType, message string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		n.log.Warn("notification metadata not encodable", zap.String("type", notificationType), zap.Error(err))
		raw = []byte("{}")
	}
	record := models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      notificationType,
		Message:   message,
		Metadata:  raw,
		CreatedAt: n.now().UTC(),
	}
	if err := n.store.Create(context.WithoutCancel(ctx), record); err != nil {
		n.log.Warn("notification dropped",
			zap.String("user_id", userID),
			zap.String("type", notificationType),
			zap.Error(err),
		)
		return
	}
	if n.hub != nil {
		n.hub.Publish(userID, websocket.Event{Event: websocket.EventNotification, Data: record})
	}
}

func (n *Notifier) List(ctx context.Context, userID string) ([]models.Notification, error) {
	rows, err := n.store.ListByUser(ctx, userID, n.limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.Notification{}
	}
	return rows, nil
}

// MarkRead flags the given notifications, or all of the user's when ids is empty.
func (n *Notifier) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	return n.store.MarkRead(ctx, userID, ids)
}

func (n *Notifier) Clear(ctx context.Context, userID string) (int64, error) {
	return n.store.Clear(ctx, userID)
}

// notice is a notification held back until the ledger transaction commits.
type notice struct {
	userID   string
	kind     string
	message  string
	metadata map[string]any
}

func emitAll(ctx context.Context, emitter Emitter, notices []notice) {
	for _, n := range notices {
		emitter.Emit(ctx, n.userID, n.kind, n.message, n.metadata)
	}
}
