package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"iou/internal/db"
	"iou/internal/models"
	"iou/internal/store"
	"iou/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, userID string) (models.User, error)
}

type FriendStore interface {
	Add(ctx context.Context, tx store.Execer, userID, friendID string) error
	Remove(ctx context.Context, tx store.Execer, userID, friendID string) error
	Exists(ctx context.Context, tx store.Getter, userID, friendID string) (bool, error)
	List(ctx context.Context, userID string) ([]models.UserSummary, error)
}

type FriendRequestStore interface {
	Create(ctx context.Context, tx store.Execer, req models.FriendRequest) error
	GetByPair(ctx context.Context, tx store.Getter, fromUserID, toUserID string) (models.FriendRequest, error)
	GetForUpdate(ctx context.Context, tx store.Getter, requestID string) (models.FriendRequest, error)
	Reset(ctx context.Context, tx store.Execer, requestID string, linkPersonFrom *string, at time.Time) error
	SetStatus(ctx context.Context, tx store.Execer, requestID string, status models.FriendRequestStatus, at time.Time) error
	ListIncoming(ctx context.Context, userID string) ([]models.FriendRequestView, error)
	ListOutgoing(ctx context.Context, userID string) ([]models.FriendRequestView, error)
}

const (
	ActionAccept  = "accept"
	ActionDecline = "decline"
)

type FriendshipService struct {
	txRunner     db.TxRunner
	users        UserStore
	friends      FriendStore
	requests     FriendRequestStore
	persons      PersonStore
	transactions TransactionStore
	audit        AuditStore
	notifier     Emitter
	log          *zap.Logger
	now          func() time.Time
}

func NewFriendshipService(txRunner db.TxRunner, users UserStore, friends FriendStore, requests FriendRequestStore, persons PersonStore, transactions TransactionStore, audit AuditStore, notifier Emitter, log *zap.Logger) *FriendshipService {
	if log == nil {
		log = zap.NewNop()
	}
	return &FriendshipService{
		txRunner:     txRunner,
		users:        users,
		friends:      friends,
		requests:     requests,
		persons:      persons,
		transactions: transactions,
		audit:        audit,
		notifier:     notifier,
		log:          log,
		now:          time.Now,
	}
}

// SendResult is the pending request, or the reverse request the send accepted.
type SendResult struct {
	Request  models.FriendRequest `json:"request"`
	Accepted *RespondResult       `json:"accepted,omitempty"`
}

type RespondResult struct {
	Request         models.FriendRequest `json:"request"`
	RequesterPerson *models.Person       `json:"requester_person,omitempty"`
	ResponderPerson *models.Person       `json:"responder_person,omitempty"`
	Backfilled      int                  `json:"backfilled"`
}

type RequestLists struct {
	Incoming []models.FriendRequestView `json:"incoming"`
	Outgoing []models.FriendRequestView `json:"outgoing"`
}

// SendRequest asks toEmail's owner to become a friend. When that user already has a
// pending request out to the sender, the send accepts it instead.
func (s *FriendshipService) SendRequest(ctx context.Context, fromUserID, toEmail string, personID *string) (SendResult, error) {
	sender, err := s.users.GetByID(ctx, fromUserID)
	if err != nil {
		return SendResult{}, notFound(err, ErrUserNotFound)
	}
	target, err := s.users.GetByEmail(ctx, validator.NormalizeEmail(toEmail))
	if err != nil {
		return SendResult{}, notFound(err, ErrUserNotFound)
	}
	if target.ID == sender.ID {
		return SendResult{}, ErrSelfFriend
	}
	if personID != nil && strings.TrimSpace(*personID) == "" {
		personID = nil
	}

	now := s.now().UTC()
	var result SendResult
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		result = SendResult{}
		already, err := s.friends.Exists(ctx, tx, sender.ID, target.ID)
		if err != nil {
			return err
		}
		if already {
			return ErrAlreadyFriends
		}
		if personID != nil {
			if err := s.checkLinkable(ctx, tx, *personID, sender.ID, target.ID); err != nil {
				return err
			}
		}

		reverse, err := s.requests.GetByPair(ctx, tx, target.ID, sender.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err == nil && reverse.Status == models.RequestPending {
			accepted, err := s.accept(ctx, tx, reverse, target, sender, personID, now)
			if err != nil {
				return err
			}
			result.Request = accepted.Request
			result.Accepted = &accepted
			return nil
		}

		existing, err := s.requests.GetByPair(ctx, tx, sender.ID, target.ID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			req := models.FriendRequest{
				ID:             uuid.NewString(),
				FromUserID:     sender.ID,
				ToUserID:       target.ID,
				LinkPersonFrom: personID,
				Status:         models.RequestPending,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := s.requests.Create(ctx, tx, req); err != nil {
				return err
			}
			result.Request = req
		case err != nil:
			return err
		case !existing.Status.Terminal():
			result.Request = existing
		default:
			if err := s.requests.Reset(ctx, tx, existing.ID, personID, now); err != nil {
				return err
			}
			existing.Status = models.RequestPending
			existing.UpdatedAt = now
			if personID != nil {
				existing.LinkPersonFrom = personID
			}
			result.Request = existing
		}
		return nil
	})
	if err != nil {
		return SendResult{}, err
	}

	if result.Accepted != nil {
		s.emitAccepted(ctx, *result.Accepted, target, sender)
		return result, nil
	}
	s.notifier.Emit(ctx, target.ID, models.NotifyFriendRequest,
		fmt.Sprintf("%s sent you a friend request", sender.Name),
		map[string]any{"request_id": result.Request.ID, "from_user_id": sender.ID})
	return result, nil
}

// Respond accepts or declines a pending request addressed to userID.
func (s *FriendshipService) Respond(ctx context.Context, requestID, userID, action string) (RespondResult, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	if action != ActionAccept && action != ActionDecline {
		return RespondResult{}, ErrUnknownAction
	}
	now := s.now().UTC()
	var result RespondResult
	var requester, responder models.User
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		result = RespondResult{}
		req, err := s.pendingRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req.ToUserID != userID {
			return ErrRequestForbidden
		}
		if req.Status != models.RequestPending {
			return ErrRequestNotPending
		}
		if action == ActionDecline {
			if err := s.requests.SetStatus(ctx, tx, req.ID, models.RequestDeclined, now); err != nil {
				return err
			}
			req.Status = models.RequestDeclined
			req.UpdatedAt = now
			result.Request = req
			return nil
		}
		if requester, err = s.users.GetByID(ctx, req.FromUserID); err != nil {
			return notFound(err, ErrUserNotFound)
		}
		if responder, err = s.users.GetByID(ctx, req.ToUserID); err != nil {
			return notFound(err, ErrUserNotFound)
		}
		result, err = s.accept(ctx, tx, req, requester, responder, nil, now)
		return err
	})
	if err != nil {
		return RespondResult{}, err
	}
	if action == ActionAccept {
		s.emitAccepted(ctx, result, requester, responder)
	}
	return result, nil
}

// Cancel withdraws a pending request. Only its sender may do so.
func (s *FriendshipService) Cancel(ctx context.Context, requestID, userID string) (models.FriendRequest, error) {
	now := s.now().UTC()
	var cancelled models.FriendRequest
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		req, err := s.pendingRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req.FromUserID != userID {
			return ErrCancelForbidden
		}
		if req.Status != models.RequestPending {
			return ErrRequestNotPending
		}
		if err := s.requests.SetStatus(ctx, tx, req.ID, models.RequestCancelled, now); err != nil {
			return err
		}
		req.Status = models.RequestCancelled
		req.UpdatedAt = now
		cancelled = req
		return nil
	})
	if err != nil {
		return models.FriendRequest{}, err
	}
	return cancelled, nil
}

func (s *FriendshipService) ListRequests(ctx context.Context, userID string) (RequestLists, error) {
	incoming, err := s.requests.ListIncoming(ctx, userID)
	if err != nil {
		return RequestLists{}, err
	}
	outgoing, err := s.requests.ListOutgoing(ctx, userID)
	if err != nil {
		return RequestLists{}, err
	}
	if incoming == nil {
		incoming = []models.FriendRequestView{}
	}
	if outgoing == nil {
		outgoing = []models.FriendRequestView{}
	}
	return RequestLists{Incoming: incoming, Outgoing: outgoing}, nil
}

func (s *FriendshipService) ListFriends(ctx context.Context, userID string) ([]models.UserSummary, error) {
	friends, err := s.friends.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if friends == nil {
		friends = []models.UserSummary{}
	}
	return friends, nil
}

func (s *FriendshipService) pendingRequest(ctx context.Context, tx store.Getter, requestID string) (models.FriendRequest, error) {
	req, err := s.requests.GetForUpdate(ctx, tx, requestID)
	if err != nil {
		return models.FriendRequest{}, notFound(err, ErrRequestNotFound)
	}
	return req, nil
}

// checkLinkable verifies the sender may offer personID as their side of the friendship.
func (s *FriendshipService) checkLinkable(ctx context.Context, tx store.Getter, personID, ownerID, friendUserID string) error {
	person, err := s.persons.GetForUpdate(ctx, tx, personID)
	if err != nil {
		return notFound(err, ErrPersonNotFound)
	}
	if person.UserID != ownerID {
		return ErrPersonForbidden
	}
	if person.FriendUserID != nil && *person.FriendUserID != friendUserID {
		return ErrPersonAlreadyLinked
	}
	return nil
}

// accept turns req into linked ledgers. Every step checks what is already in place, so
// running it against a partly linked pair converges on the same result.
func (s *FriendshipService) accept(ctx context.Context, tx store.Tx, req models.FriendRequest, requester, responder models.User, responderLink *string, now time.Time) (RespondResult, error) {
	if err := s.requests.SetStatus(ctx, tx, req.ID, models.RequestAccepted, now); err != nil {
		return RespondResult{}, err
	}
	req.Status = models.RequestAccepted
	req.UpdatedAt = now

	if err := s.friends.Add(ctx, tx, requester.ID, responder.ID); err != nil {
		return RespondResult{}, err
	}
	if err := s.friends.Add(ctx, tx, responder.ID, requester.ID); err != nil {
		return RespondResult{}, err
	}

	requesterPerson, err := s.linkedPerson(ctx, tx, requester.ID, responder, req.LinkPersonFrom, now)
	if err != nil {
		return RespondResult{}, err
	}
	responderPerson, err := s.linkedPerson(ctx, tx, responder.ID, requester, responderLink, now)
	if err != nil {
		return RespondResult{}, err
	}

	if err := s.pointAt(ctx, tx, &requesterPerson, responderPerson.ID, responder.Name, now); err != nil {
		return RespondResult{}, err
	}
	if err := s.pointAt(ctx, tx, &responderPerson, requesterPerson.ID, requester.Name, now); err != nil {
		return RespondResult{}, err
	}

	backfilled, err := s.backfill(ctx, tx, requesterPerson, responderPerson, now)
	if err != nil {
		return RespondResult{}, err
	}

	err = s.audit.Log(ctx, tx, responder.ID, "friend.accept", "friend_request", req.ID, auditData(map[string]any{
		"requester_person_id": requesterPerson.ID,
		"responder_person_id": responderPerson.ID,
		"backfilled":          backfilled,
	}))
	if err != nil {
		return RespondResult{}, err
	}
	s.log.Info("friendship accepted",
		zap.String("request_id", req.ID),
		zap.String("requester_id", requester.ID),
		zap.String("responder_id", responder.ID),
		zap.Int("backfilled", backfilled),
	)
	return RespondResult{
		Request:         req,
		RequesterPerson: &requesterPerson,
		ResponderPerson: &responderPerson,
		Backfilled:      backfilled,
	}, nil
}

// linkedPerson finds or makes ownerID's Person standing for friend. A supplied link is
// reused when it belongs to the owner and is not linked to someone else.
func (s *FriendshipService) linkedPerson(ctx context.Context, tx store.Tx, ownerID string, friend models.User, link *string, now time.Time) (models.Person, error) {
	existing, err := s.persons.FindLinked(ctx, tx, ownerID, friend.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Person{}, err
	}

	friendID := friend.ID
	if link != nil {
		person, err := s.persons.GetForUpdate(ctx, tx, *link)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return models.Person{}, err
		case person.UserID == ownerID && person.FriendUserID == nil:
			person.FriendUserID = &friendID
			person.UpdatedAt = now
			if err := s.persons.Save(ctx, tx, person); err != nil {
				return models.Person{}, err
			}
			return person, nil
		}
	}

	person := models.Person{
		ID:           uuid.NewString(),
		UserID:       ownerID,
		Name:         friend.Name,
		FriendUserID: &friendID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.persons.Create(ctx, tx, person); err != nil {
		return models.Person{}, err
	}
	return person, nil
}

// pointAt sets the counterpart link and the display name, writing only when something changed.
func (s *FriendshipService) pointAt(ctx context.Context, tx store.Execer, person *models.Person, counterpartID, name string, now time.Time) error {
	if person.CounterpartPersonID != nil && *person.CounterpartPersonID == counterpartID && person.Name == name {
		return nil
	}
	person.CounterpartPersonID = &counterpartID
	person.Name = name
	person.UpdatedAt = now
	return s.persons.Save(ctx, tx, *person)
}

// backfill mirrors every transaction either side recorded without a twin.
func (s *FriendshipService) backfill(ctx context.Context, tx store.Tx, a, b models.Person, now time.Time) (int, error) {
	fromA, err := s.transactions.ListUnmirrored(ctx, tx, a.ID)
	if err != nil {
		return 0, err
	}
	fromB, err := s.transactions.ListUnmirrored(ctx, tx, b.ID)
	if err != nil {
		return 0, err
	}
	count := 0
	for i := range fromA {
		if _, err := mirror(ctx, tx, s.transactions, &fromA[i], b.ID, now); err != nil {
			return 0, err
		}
		count++
	}
	for i := range fromB {
		if _, err := mirror(ctx, tx, s.transactions, &fromB[i], a.ID, now); err != nil {
			return 0, err
		}
		count++
	}
	return count, nil
}

func (s *FriendshipService) emitAccepted(ctx context.Context, result RespondResult, requester, responder models.User) {
	s.notifier.Emit(ctx, requester.ID, models.NotifyFriendAccepted,
		fmt.Sprintf("%s accepted your friend request", responder.Name),
		map[string]any{"request_id": result.Request.ID, "friend_user_id": responder.ID, "person_id": idOf(result.RequesterPerson)})
	s.notifier.Emit(ctx, responder.ID, models.NotifyFriendAccepted,
		fmt.Sprintf("You are now friends with %s", requester.Name),
		map[string]any{"request_id": result.Request.ID, "friend_user_id": requester.ID, "person_id": idOf(result.ResponderPerson)})
}

func idOf(p *models.Person) string {
	if p == nil {
		return ""
	}
	return p.ID
}
