package handlers

import (
	"context"

	"iou/internal/models"
	"iou/internal/services"
	"iou/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, user models.User) error
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, userID string) (models.User, error)
	UpdateName(ctx context.Context, tx store.Execer, userID, name string) error
	Search(ctx context.Context, excludeUserID, term string, limit int) ([]models.UserSummary, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type FriendshipService interface {
	SendRequest(ctx context.Context, fromUserID, toEmail string, personID *string) (services.SendResult, error)
	Respond(ctx context.Context, requestID, userID, action string) (services.RespondResult, error)
	Cancel(ctx context.Context, requestID, userID string) (models.FriendRequest, error)
	ListRequests(ctx context.Context, userID string) (services.RequestLists, error)
	ListFriends(ctx context.Context, userID string) ([]models.UserSummary, error)
}

type PersonService interface {
	CreatePerson(ctx context.Context, userID string, input services.PersonInput) (models.Person, error)
	UpdatePerson(ctx context.Context, personID, userID string, patch services.PersonPatch) (models.Person, error)
	ListPersonsWithTransactions(ctx context.Context, userID string) ([]services.PersonLedger, error)
	DeletePerson(ctx context.Context, personID, userID string) error
	SendReminder(ctx context.Context, personID, userID string) (services.Reminder, error)
}

type LedgerService interface {
	CreateTransaction(ctx context.Context, userID, personID string, input services.TransactionInput) (models.Transaction, error)
	CreateBulkTransaction(ctx context.Context, userID string, personIDs []string, input services.TransactionInput) ([]models.Transaction, error)
	UpdateTransaction(ctx context.Context, transactionID, userID string, patch services.TransactionPatch) (models.Transaction, error)
	DeleteTransaction(ctx context.Context, transactionID, userID string) error
}

type NotificationService interface {
	List(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID string, ids []string) (int64, error)
	Clear(ctx context.Context, userID string) (int64, error)
}
