package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"iou/internal/models"
	"iou/internal/store"
	"iou/internal/websocket"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var errDuplicate = errors.New("duplicate key")

// memState is an in-memory stand-in for the Postgres tables the services touch.
type memState struct {
	users         map[string]models.User
	friends       map[[2]string]bool
	requests      map[string]models.FriendRequest
	persons       map[string]models.Person
	transactions  map[string]models.Transaction
	notifications []models.Notification
	audits        []string

	failTransactionCreate func(models.Transaction) error
	failNotification      error
}

func newMemState() *memState {
	return &memState{
		users:        map[string]models.User{},
		friends:      map[[2]string]bool{},
		requests:     map[string]models.FriendRequest{},
		persons:      map[string]models.Person{},
		transactions: map[string]models.Transaction{},
	}
}

func (m *memState) clone() memState {
	c := *m
	c.users = make(map[string]models.User, len(m.users))
	for k, v := range m.users {
		c.users[k] = v
	}
	c.friends = make(map[[2]string]bool, len(m.friends))
	for k, v := range m.friends {
		c.friends[k] = v
	}
	c.requests = make(map[string]models.FriendRequest, len(m.requests))
	for k, v := range m.requests {
		c.requests[k] = v
	}
	c.persons = make(map[string]models.Person, len(m.persons))
	for k, v := range m.persons {
		c.persons[k] = v
	}
	c.transactions = make(map[string]models.Transaction, len(m.transactions))
	for k, v := range m.transactions {
		c.transactions[k] = v
	}
	c.notifications = append([]models.Notification(nil), m.notifications...)
	c.audits = append([]string(nil), m.audits...)
	return c
}

// memTxRunner gives all-or-nothing visibility: state is restored when fn fails.
type memTxRunner struct {
	state *memState
	runs  int
}

func (r *memTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	r.runs++
	snapshot := r.state.clone()
	if err := fn(nil); err != nil {
		*r.state = snapshot
		return err
	}
	return nil
}

type memUsers struct{ *memState }

func (m memUsers) GetByEmail(_ context.Context, email string) (models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, sql.ErrNoRows
}

func (m memUsers) GetByID(_ context.Context, userID string) (models.User, error) {
	u, ok := m.users[userID]
	if !ok {
		return models.User{}, sql.ErrNoRows
	}
	return u, nil
}

type memFriends struct{ *memState }

func (m memFriends) Add(_ context.Context, _ store.Execer, userID, friendID string) error {
	m.friends[[2]string{userID, friendID}] = true
	return nil
}

func (m memFriends) Remove(_ context.Context, _ store.Execer, userID, friendID string) error {
	delete(m.friends, [2]string{userID, friendID})
	return nil
}

func (m memFriends) Exists(_ context.Context, _ store.Getter, userID, friendID string) (bool, error) {
	return m.friends[[2]string{userID, friendID}], nil
}

func (m memFriends) List(_ context.Context, userID string) ([]models.UserSummary, error) {
	var out []models.UserSummary
	for pair := range m.friends {
		if pair[0] == userID {
			u := m.users[pair[1]]
			out = append(out, models.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memRequests struct{ *memState }

func (m memRequests) Create(_ context.Context, _ store.Execer, req models.FriendRequest) error {
	for _, r := range m.requests {
		if r.FromUserID == req.FromUserID && r.ToUserID == req.ToUserID {
			return errDuplicate
		}
	}
	m.requests[req.ID] = req
	return nil
}

func (m memRequests) GetByPair(_ context.Context, _ store.Getter, fromUserID, toUserID string) (models.FriendRequest, error) {
	for _, r := range m.requests {
		if r.FromUserID == fromUserID && r.ToUserID == toUserID {
			return r, nil
		}
	}
	return models.FriendRequest{}, sql.ErrNoRows
}

func (m memRequests) GetForUpdate(_ context.Context, _ store.Getter, requestID string) (models.FriendRequest, error) {
	r, ok := m.requests[requestID]
	if !ok {
		return models.FriendRequest{}, sql.ErrNoRows
	}
	return r, nil
}

func (m memRequests) Reset(_ context.Context, _ store.Execer, requestID string, linkPersonFrom *string, at time.Time) error {
	r := m.requests[requestID]
	r.Status = models.RequestPending
	if linkPersonFrom != nil {
		r.LinkPersonFrom = linkPersonFrom
	}
	r.UpdatedAt = at
	m.requests[requestID] = r
	return nil
}

func (m memRequests) SetStatus(_ context.Context, _ store.Execer, requestID string, status models.FriendRequestStatus, at time.Time) error {
	r := m.requests[requestID]
	r.Status = status
	r.UpdatedAt = at
	m.requests[requestID] = r
	return nil
}

func (m memRequests) ListIncoming(_ context.Context, userID string) ([]models.FriendRequestView, error) {
	var out []models.FriendRequestView
	for _, r := range m.requests {
		if r.ToUserID == userID && r.Status == models.RequestPending {
			u := m.users[r.FromUserID]
			out = append(out, models.FriendRequestView{FriendRequest: r, OtherName: u.Name, OtherEmail: u.Email})
		}
	}
	return out, nil
}

func (m memRequests) ListOutgoing(_ context.Context, userID string) ([]models.FriendRequestView, error) {
	var out []models.FriendRequestView
	for _, r := range m.requests {
		if r.FromUserID == userID && r.Status == models.RequestPending {
			u := m.users[r.ToUserID]
			out = append(out, models.FriendRequestView{FriendRequest: r, OtherName: u.Name, OtherEmail: u.Email})
		}
	}
	return out, nil
}

type memPersons struct{ *memState }

func (m memPersons) Create(_ context.Context, _ store.Execer, person models.Person) error {
	if person.FriendUserID != nil {
		for _, p := range m.persons {
			if p.UserID == person.UserID && p.FriendUserID != nil && *p.FriendUserID == *person.FriendUserID {
				return errDuplicate
			}
		}
	}
	m.persons[person.ID] = person
	return nil
}

func (m memPersons) GetByID(_ context.Context, personID string) (models.Person, error) {
	p, ok := m.persons[personID]
	if !ok {
		return models.Person{}, sql.ErrNoRows
	}
	return p, nil
}

func (m memPersons) GetForUpdate(_ context.Context, _ store.Getter, personID string) (models.Person, error) {
	p, ok := m.persons[personID]
	if !ok {
		return models.Person{}, sql.ErrNoRows
	}
	return p, nil
}

func (m memPersons) FindLinked(_ context.Context, _ store.Getter, ownerID, friendUserID string) (models.Person, error) {
	for _, p := range m.persons {
		if p.UserID == ownerID && p.FriendUserID != nil && *p.FriendUserID == friendUserID {
			return p, nil
		}
	}
	return models.Person{}, sql.ErrNoRows
}

func (m memPersons) Save(_ context.Context, _ store.Execer, person models.Person) error {
	if _, ok := m.persons[person.ID]; !ok {
		return sql.ErrNoRows
	}
	m.persons[person.ID] = person
	return nil
}

func (m memPersons) Delete(_ context.Context, _ store.Execer, personID string) error {
	delete(m.persons, personID)
	for id, p := range m.persons {
		if p.CounterpartPersonID != nil && *p.CounterpartPersonID == personID {
			p.CounterpartPersonID = nil
			m.persons[id] = p
		}
	}
	return nil
}

func (m memPersons) ListByUser(_ context.Context, userID string) ([]models.Person, error) {
	var out []models.Person
	for _, p := range m.persons {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memTransactions struct{ *memState }

func (m memTransactions) Create(_ context.Context, _ store.Execer, t models.Transaction) error {
	if m.failTransactionCreate != nil {
		if err := m.failTransactionCreate(t); err != nil {
			return err
		}
	}
	m.transactions[t.ID] = t
	return nil
}

func (m memTransactions) GetForUpdate(_ context.Context, _ store.Getter, transactionID string) (models.Transaction, error) {
	t, ok := m.transactions[transactionID]
	if !ok {
		return models.Transaction{}, sql.ErrNoRows
	}
	return t, nil
}

func (m memTransactions) SetCounterpart(_ context.Context, _ store.Execer, transactionID, counterpartID string) error {
	t := m.transactions[transactionID]
	t.CounterpartTransactionID = &counterpartID
	m.transactions[transactionID] = t
	return nil
}

func (m memTransactions) Update(_ context.Context, _ store.Execer, t models.Transaction) error {
	current, ok := m.transactions[t.ID]
	if !ok {
		return sql.ErrNoRows
	}
	current.Amount = t.Amount
	current.Description = t.Description
	current.Date = t.Date
	current.Type = t.Type
	current.UpdatedAt = t.UpdatedAt
	m.transactions[t.ID] = current
	return nil
}

func (m memTransactions) Delete(_ context.Context, _ store.Execer, transactionID string) error {
	delete(m.transactions, transactionID)
	m.unlink(transactionID)
	return nil
}

func (m memTransactions) DeleteByPerson(_ context.Context, _ store.Execer, personID string) error {
	for id, t := range m.transactions {
		if t.PersonID == personID {
			delete(m.transactions, id)
			m.unlink(id)
		}
	}
	return nil
}

func (m memTransactions) unlink(deletedID string) {
	for id, t := range m.transactions {
		if t.CounterpartTransactionID != nil && *t.CounterpartTransactionID == deletedID {
			t.CounterpartTransactionID = nil
			m.transactions[id] = t
		}
	}
}

func (m memTransactions) ListUnmirrored(_ context.Context, _ store.Selecter, personID string) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, t := range m.transactions {
		if t.PersonID == personID && t.CounterpartTransactionID == nil {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m memTransactions) ListByPersons(_ context.Context, personIDs []string) ([]models.Transaction, error) {
	wanted := map[string]bool{}
	for _, id := range personIDs {
		wanted[id] = true
	}
	var out []models.Transaction
	for _, t := range m.transactions {
		if wanted[t.PersonID] {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

type memAudit struct{ *memState }

func (m memAudit) Log(_ context.Context, _ store.Execer, actorID, action, entityType, entityID, data string) error {
	m.audits = append(m.audits, action+":"+entityID)
	return nil
}

type memNotifications struct{ *memState }

func (m memNotifications) Create(_ context.Context, n models.Notification) error {
	if m.failNotification != nil {
		return m.failNotification
	}
	m.notifications = append(m.notifications, n)
	return nil
}

func (m memNotifications) ListByUser(_ context.Context, userID string, limit int) ([]models.Notification, error) {
	var out []models.Notification
	for i := len(m.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		if m.notifications[i].UserID == userID {
			out = append(out, m.notifications[i])
		}
	}
	return out, nil
}

func (m memNotifications) MarkRead(_ context.Context, userID string, ids []string) (int64, error) {
	wanted := map[string]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	var n int64
	for i, note := range m.notifications {
		if note.UserID != userID || note.Read {
			continue
		}
		if len(ids) > 0 && !wanted[note.ID] {
			continue
		}
		m.notifications[i].Read = true
		n++
	}
	return n, nil
}

func (m memNotifications) Clear(_ context.Context, userID string) (int64, error) {
	kept := m.notifications[:0]
	var n int64
	for _, note := range m.notifications {
		if note.UserID == userID {
			n++
			continue
		}
		kept = append(kept, note)
	}
	m.notifications = kept
	return n, nil
}

type recordingHub struct {
	events map[string][]websocket.Event
}

func (h *recordingHub) Publish(userID string, event websocket.Event) {
	if h.events == nil {
		h.events = map[string][]websocket.Event{}
	}
	h.events[userID] = append(h.events[userID], event)
}

type testEnv struct {
	state      *memState
	runner     *memTxRunner
	hub        *recordingHub
	notifier   *Notifier
	friendship *FriendshipService
	ledger     *LedgerService
	people     *PersonService
}

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	state := newMemState()
	runner := &memTxRunner{state: state}
	hub := &recordingHub{}
	log := zap.NewNop()
	notifier := NewNotifier(memNotifications{state}, hub, log, 0)
	notifier.now = func() time.Time { return testNow }

	friendship := NewFriendshipService(runner, memUsers{state}, memFriends{state}, memRequests{state}, memPersons{state}, memTransactions{state}, memAudit{state}, notifier, log)
	friendship.now = func() time.Time { return testNow }
	ledger := NewLedgerService(runner, memPersons{state}, memTransactions{state}, memAudit{state}, notifier, log)
	ledger.now = func() time.Time { return testNow }
	people := NewPersonService(runner, memUsers{state}, memPersons{state}, memTransactions{state}, memFriends{state}, memAudit{state}, notifier, log)
	people.now = func() time.Time { return testNow }

	return &testEnv{
		state:      state,
		runner:     runner,
		hub:        hub,
		notifier:   notifier,
		friendship: friendship,
		ledger:     ledger,
		people:     people,
	}
}

func (e *testEnv) addUser(id, name string) models.User {
	u := models.User{ID: id, Name: name, Email: strings.ToLower(name) + "@example.com", CreatedAt: testNow}
	e.state.users[id] = u
	return u
}

func (e *testEnv) addPerson(t *testing.T, ownerID, name string) models.Person {
	t.Helper()
	p, err := e.people.CreatePerson(context.Background(), ownerID, PersonInput{Name: name})
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	return p
}

// befriend links a and b through a request from a accepted by b.
func (e *testEnv) befriend(t *testing.T, a, b models.User, link *string) RespondResult {
	t.Helper()
	ctx := context.Background()
	sent, err := e.friendship.SendRequest(ctx, a.ID, b.Email, link)
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	res, err := e.friendship.Respond(ctx, sent.Request.ID, b.ID, ActionAccept)
	if err != nil {
		t.Fatalf("accept request: %v", err)
	}
	return res
}

func (e *testEnv) notificationsFor(userID, kind string) []models.Notification {
	var out []models.Notification
	for _, n := range e.state.notifications {
		if n.UserID == userID && n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}

func (e *testEnv) transactionsOn(personID string) []models.Transaction {
	var out []models.Transaction
	for _, t := range e.state.transactions {
		if t.PersonID == personID {
			out = append(out, t)
		}
	}
	return out
}

func strPtr(s string) *string {
	return &s
}
