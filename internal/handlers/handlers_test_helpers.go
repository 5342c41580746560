package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"iou/internal/auth"
	"iou/internal/config"
	"iou/internal/db"
	"iou/internal/models"
	"iou/internal/services"
	"iou/internal/store"
	"iou/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubUserStore struct {
	createFn     func(ctx context.Context, tx store.Execer, user models.User) error
	getByEmailFn func(ctx context.Context, email string) (models.User, error)
	getByIDFn    func(ctx context.Context, userID string) (models.User, error)
	updateNameFn func(ctx context.Context, tx store.Execer, userID, name string) error
	searchFn     func(ctx context.Context, excludeUserID, term string, limit int) ([]models.UserSummary, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, user models.User) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, user)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	if s.getByEmailFn == nil {
		return models.User{}, sql.ErrNoRows
	}
	return s.getByEmailFn(ctx, email)
}

// GetByID resolves every id to a user by default so authenticated routes pass.
func (s stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{ID: userID, Name: "User " + userID, Email: userID + "@example.com"}, nil
	}
	return s.getByIDFn(ctx, userID)
}

func (s stubUserStore) UpdateName(ctx context.Context, tx store.Execer, userID, name string) error {
	if s.updateNameFn == nil {
		return nil
	}
	return s.updateNameFn(ctx, tx, userID, name)
}

func (s stubUserStore) Search(ctx context.Context, excludeUserID, term string, limit int) ([]models.UserSummary, error) {
	if s.searchFn == nil {
		return nil, nil
	}
	return s.searchFn(ctx, excludeUserID, term, limit)
}

type stubAuditStore struct {
	logFn func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

type stubFriendships struct {
	sendFn         func(ctx context.Context, fromUserID, toEmail string, personID *string) (services.SendResult, error)
	respondFn      func(ctx context.Context, requestID, userID, action string) (services.RespondResult, error)
	cancelFn       func(ctx context.Context, requestID, userID string) (models.FriendRequest, error)
	listRequestsFn func(ctx context.Context, userID string) (services.RequestLists, error)
	listFriendsFn  func(ctx context.Context, userID string) ([]models.UserSummary, error)
}

func (s stubFriendships) SendRequest(ctx context.Context, fromUserID, toEmail string, personID *string) (services.SendResult, error) {
	if s.sendFn == nil {
		return services.SendResult{}, nil
	}
	return s.sendFn(ctx, fromUserID, toEmail, personID)
}

func (s stubFriendships) Respond(ctx context.Context, requestID, userID, action string) (services.RespondResult, error) {
	if s.respondFn == nil {
		return services.RespondResult{}, nil
	}
	return s.respondFn(ctx, requestID, userID, action)
}

func (s stubFriendships) Cancel(ctx context.Context, requestID, userID string) (models.FriendRequest, error) {
	if s.cancelFn == nil {
		return models.FriendRequest{}, nil
	}
	return s.cancelFn(ctx, requestID, userID)
}

func (s stubFriendships) ListRequests(ctx context.Context, userID string) (services.RequestLists, error) {
	if s.listRequestsFn == nil {
		return services.RequestLists{}, nil
	}
	return s.listRequestsFn(ctx, userID)
}

func (s stubFriendships) ListFriends(ctx context.Context, userID string) ([]models.UserSummary, error) {
	if s.listFriendsFn == nil {
		return nil, nil
	}
	return s.listFriendsFn(ctx, userID)
}

type stubPersons struct {
	createFn   func(ctx context.Context, userID string, input services.PersonInput) (models.Person, error)
	updateFn   func(ctx context.Context, personID, userID string, patch services.PersonPatch) (models.Person, error)
	listFn     func(ctx context.Context, userID string) ([]services.PersonLedger, error)
	deleteFn   func(ctx context.Context, personID, userID string) error
	reminderFn func(ctx context.Context, personID, userID string) (services.Reminder, error)
}

func (s stubPersons) CreatePerson(ctx context.Context, userID string, input services.PersonInput) (models.Person, error) {
	if s.createFn == nil {
		return models.Person{}, nil
	}
	return s.createFn(ctx, userID, input)
}

func (s stubPersons) UpdatePerson(ctx context.Context, personID, userID string, patch services.PersonPatch) (models.Person, error) {
	if s.updateFn == nil {
		return models.Person{}, nil
	}
	return s.updateFn(ctx, personID, userID, patch)
}

func (s stubPersons) ListPersonsWithTransactions(ctx context.Context, userID string) ([]services.PersonLedger, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, userID)
}

func (s stubPersons) DeletePerson(ctx context.Context, personID, userID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, personID, userID)
}

func (s stubPersons) SendReminder(ctx context.Context, personID, userID string) (services.Reminder, error) {
	if s.reminderFn == nil {
		return services.Reminder{}, nil
	}
	return s.reminderFn(ctx, personID, userID)
}

type stubLedger struct {
	createFn func(ctx context.Context, userID, personID string, input services.TransactionInput) (models.Transaction, error)
	bulkFn   func(ctx context.Context, userID string, personIDs []string, input services.TransactionInput) ([]models.Transaction, error)
	updateFn func(ctx context.Context, transactionID, userID string, patch services.TransactionPatch) (models.Transaction, error)
	deleteFn func(ctx context.Context, transactionID, userID string) error
}

func (s stubLedger) CreateTransaction(ctx context.Context, userID, personID string, input services.TransactionInput) (models.Transaction, error) {
	if s.createFn == nil {
		return models.Transaction{}, nil
	}
	return s.createFn(ctx, userID, personID, input)
}

func (s stubLedger) CreateBulkTransaction(ctx context.Context, userID string, personIDs []string, input services.TransactionInput) ([]models.Transaction, error) {
	if s.bulkFn == nil {
		return nil, nil
	}
	return s.bulkFn(ctx, userID, personIDs, input)
}

func (s stubLedger) UpdateTransaction(ctx context.Context, transactionID, userID string, patch services.TransactionPatch) (models.Transaction, error) {
	if s.updateFn == nil {
		return models.Transaction{}, nil
	}
	return s.updateFn(ctx, transactionID, userID, patch)
}

func (s stubLedger) DeleteTransaction(ctx context.Context, transactionID, userID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, transactionID, userID)
}

type stubNotifications struct {
	listFn     func(ctx context.Context, userID string) ([]models.Notification, error)
	markReadFn func(ctx context.Context, userID string, ids []string) (int64, error)
	clearFn    func(ctx context.Context, userID string) (int64, error)
}

func (s stubNotifications) List(ctx context.Context, userID string) ([]models.Notification, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, userID)
}

func (s stubNotifications) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	if s.markReadFn == nil {
		return 0, nil
	}
	return s.markReadFn(ctx, userID, ids)
}

func (s stubNotifications) Clear(ctx context.Context, userID string) (int64, error) {
	if s.clearFn == nil {
		return 0, nil
	}
	return s.clearFn(ctx, userID)
}

type testDeps struct {
	txRunner      db.TxRunner
	users         stubUserStore
	audit         stubAuditStore
	friendships   stubFriendships
	persons       stubPersons
	ledger        stubLedger
	notifications stubNotifications
}

func newTestHandler(deps testDeps) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
	if deps.txRunner == nil {
		deps.txRunner = fakeTxRunner{}
	}
	return New(deps.txRunner, cfg, deps.users, deps.audit, deps.friendships, deps.persons, deps.ledger, deps.notifications, websocket.NewHub(), nil)
}

// serve sends the request through the full router, authenticated as userID when it is set.
func serve(t *testing.T, handler *Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			payload.WriteString(raw)
		} else if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := auth.GenerateToken("secret", userID, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dest); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

func stringPtr(value string) *string {
	return &value
}

