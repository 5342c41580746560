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
	"iou/internal/money"
	"iou/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type PersonService struct {
	txRunner     db.TxRunner
	users        UserStore
	persons      PersonStore
	transactions TransactionStore
	friends      FriendStore
	audit        AuditStore
	notifier     Emitter
	log          *zap.Logger
	now          func() time.Time
}

func NewPersonService(txRunner db.TxRunner, users UserStore, persons PersonStore, transactions TransactionStore, friends FriendStore, audit AuditStore, notifier Emitter, log *zap.Logger) *PersonService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PersonService{
		txRunner:     txRunner,
		users:        users,
		persons:      persons,
		transactions: transactions,
		friends:      friends,
		audit:        audit,
		notifier:     notifier,
		log:          log,
		now:          time.Now,
	}
}

type PersonInput struct {
	Name           string
	Nickname       string
	PaymentAddress string
}

type PersonPatch struct {
	Name           *string
	Nickname       *string
	PaymentAddress *string
}

// PersonLedger is a Person with its transactions, newest first, and running balance.
type PersonLedger struct {
	models.Person
	Transactions []models.Transaction `json:"transactions"`
	Balance      string               `json:"balance"`
}

type Reminder struct {
	PersonID         string    `json:"person_id"`
	FriendUserID     string    `json:"friend_user_id"`
	Amount           string    `json:"amount"`
	TransactionCount int       `json:"transaction_count"`
	OldestDate       time.Time `json:"oldest_date"`
}

func (s *PersonService) CreatePerson(ctx context.Context, userID string, input PersonInput) (models.Person, error) {
	if err := validator.ValidateName(input.Name); err != nil {
		return models.Person{}, ErrInvalidName
	}
	now := s.now().UTC()
	person := models.Person{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           strings.TrimSpace(input.Name),
		Nickname:       strings.TrimSpace(input.Nickname),
		PaymentAddress: strings.TrimSpace(input.PaymentAddress),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.persons.Create(ctx, tx, person)
	})
	if err != nil {
		return models.Person{}, err
	}
	return person, nil
}

func (s *PersonService) UpdatePerson(ctx context.Context, personID, userID string, patch PersonPatch) (models.Person, error) {
	if patch.Name != nil {
		if err := validator.ValidateName(*patch.Name); err != nil {
			return models.Person{}, ErrInvalidName
		}
	}
	now := s.now().UTC()
	var updated models.Person
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		person, err := s.persons.GetForUpdate(ctx, tx, personID)
		if err != nil {
			return notFound(err, ErrPersonNotFound)
		}
		if person.UserID != userID {
			return ErrPersonForbidden
		}
		if patch.Name != nil {
			person.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Nickname != nil {
			person.Nickname = strings.TrimSpace(*patch.Nickname)
		}
		if patch.PaymentAddress != nil {
			person.PaymentAddress = strings.TrimSpace(*patch.PaymentAddress)
		}
		person.UpdatedAt = now
		if err := s.persons.Save(ctx, tx, person); err != nil {
			return err
		}
		updated = person
		return nil
	})
	if err != nil {
		return models.Person{}, err
	}
	return updated, nil
}

func (s *PersonService) ListPersonsWithTransactions(ctx context.Context, userID string) ([]PersonLedger, error) {
	persons, err := s.persons.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(persons))
	for _, p := range persons {
		ids = append(ids, p.ID)
	}
	transactions, err := s.transactions.ListByPersons(ctx, ids)
	if err != nil {
		return nil, err
	}
	byPerson := make(map[string][]models.Transaction, len(persons))
	for _, t := range transactions {
		byPerson[t.PersonID] = append(byPerson[t.PersonID], t)
	}
	ledgers := make([]PersonLedger, 0, len(persons))
	for _, p := range persons {
		txs := byPerson[p.ID]
		if txs == nil {
			txs = []models.Transaction{}
		}
		ledgers = append(ledgers, PersonLedger{
			Person:       p,
			Transactions: txs,
			Balance:      money.Format(money.Balance(txs)),
		})
	}
	return ledgers, nil
}

// DeletePerson removes the Person and its transactions. A linked Person takes its
// counterpart, the counterpart's transactions and the friendship with it.
func (s *PersonService) DeletePerson(ctx context.Context, personID, userID string) error {
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		person, err := s.persons.GetForUpdate(ctx, tx, personID)
		if err != nil {
			return notFound(err, ErrPersonNotFound)
		}
		if person.UserID != userID {
			return ErrPersonForbidden
		}
		if err := s.transactions.DeleteByPerson(ctx, tx, person.ID); err != nil {
			return err
		}
		var counterpartID string
		if person.CounterpartPersonID != nil {
			counterpart, err := s.persons.GetForUpdate(ctx, tx, *person.CounterpartPersonID)
			switch {
			case errors.Is(err, sql.ErrNoRows):
			case err != nil:
				return err
			default:
				counterpartID = counterpart.ID
				if err := s.transactions.DeleteByPerson(ctx, tx, counterpart.ID); err != nil {
					return err
				}
				if err := s.persons.Delete(ctx, tx, counterpart.ID); err != nil {
					return err
				}
				if err := s.friends.Remove(ctx, tx, person.UserID, counterpart.UserID); err != nil {
					return err
				}
				if err := s.friends.Remove(ctx, tx, counterpart.UserID, person.UserID); err != nil {
					return err
				}
			}
		}
		if err := s.persons.Delete(ctx, tx, person.ID); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, userID, "person.delete", "person", person.ID, auditData(map[string]any{
			"name":           person.Name,
			"friend_user_id": person.FriendUserID,
			"counterpart_id": counterpartID,
		}))
	})
	if err != nil {
		return err
	}
	s.log.Info("person deleted", zap.String("person_id", personID), zap.String("user_id", userID))
	return nil
}

// SendReminder nudges a friend who owes the user money.
func (s *PersonService) SendReminder(ctx context.Context, personID, userID string) (Reminder, error) {
	person, err := s.persons.GetByID(ctx, personID)
	if err != nil {
		return Reminder{}, notFound(err, ErrPersonNotFound)
	}
	if person.UserID != userID {
		return Reminder{}, ErrPersonForbidden
	}
	if !person.IsFriendLinked() {
		return Reminder{}, ErrNotFriendLinked
	}
	owner, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return Reminder{}, notFound(err, ErrUserNotFound)
	}
	txs, err := s.transactions.ListByPersons(ctx, []string{person.ID})
	if err != nil {
		return Reminder{}, err
	}
	balance := money.Balance(txs)
	if !balance.IsPositive() {
		return Reminder{}, ErrNothingOwed
	}
	reminder := Reminder{
		PersonID:         person.ID,
		FriendUserID:     *person.FriendUserID,
		Amount:           money.Format(balance),
		TransactionCount: len(txs),
	}
	for _, t := range txs {
		if reminder.OldestDate.IsZero() || t.Date.Before(reminder.OldestDate) {
			reminder.OldestDate = t.Date
		}
	}
	metadata := map[string]any{
		"from_user_id":      userID,
		"amount":            reminder.Amount,
		"transaction_count": reminder.TransactionCount,
		"oldest_date":       reminder.OldestDate,
	}
	if person.CounterpartPersonID != nil {
		metadata["person_id"] = *person.CounterpartPersonID
	}
	s.notifier.Emit(ctx, reminder.FriendUserID, models.NotifyReminder,
		fmt.Sprintf("%s reminds you that you owe %s", owner.Name, reminder.Amount), metadata)
	return reminder, nil
}
