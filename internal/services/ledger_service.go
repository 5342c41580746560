package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"iou/internal/db"
	"iou/internal/models"
	"iou/internal/money"
	"iou/internal/store"
	"iou/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PersonStore interface {
	Create(ctx context.Context, tx store.Execer, person models.Person) error
	GetByID(ctx context.Context, personID string) (models.Person, error)
	GetForUpdate(ctx context.Context, tx store.Getter, personID string) (models.Person, error)
	FindLinked(ctx context.Context, tx store.Getter, ownerID, friendUserID string) (models.Person, error)
	Save(ctx context.Context, tx store.Execer, person models.Person) error
	Delete(ctx context.Context, tx store.Execer, personID string) error
	ListByUser(ctx context.Context, userID string) ([]models.Person, error)
}

type TransactionStore interface {
	Create(ctx context.Context, tx store.Execer, t models.Transaction) error
	GetForUpdate(ctx context.Context, tx store.Getter, transactionID string) (models.Transaction, error)
	SetCounterpart(ctx context.Context, tx store.Execer, transactionID, counterpartID string) error
	Update(ctx context.Context, tx store.Execer, t models.Transaction) error
	Delete(ctx context.Context, tx store.Execer, transactionID string) error
	DeleteByPerson(ctx context.Context, tx store.Execer, personID string) error
	ListUnmirrored(ctx context.Context, tx store.Selecter, personID string) ([]models.Transaction, error)
	ListByPersons(ctx context.Context, personIDs []string) ([]models.Transaction, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type LedgerService struct {
	txRunner     db.TxRunner
	persons      PersonStore
	transactions TransactionStore
	audit        AuditStore
	notifier     Emitter
	log          *zap.Logger
	now          func() time.Time
}

func NewLedgerService(txRunner db.TxRunner, persons PersonStore, transactions TransactionStore, audit AuditStore, notifier Emitter, log *zap.Logger) *LedgerService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LedgerService{
		txRunner:     txRunner,
		persons:      persons,
		transactions: transactions,
		audit:        audit,
		notifier:     notifier,
		log:          log,
		now:          time.Now,
	}
}

type TransactionInput struct {
	Amount      decimal.Decimal
	Description string
	Date        *time.Time
	Type        models.TransactionType
}

func (in *TransactionInput) normalize(now time.Time) error {
	if err := money.Validate(in.Amount); err != nil {
		return ErrInvalidAmount
	}
	if !in.Type.Valid() {
		return ErrInvalidType
	}
	if err := validator.ValidateDescription(in.Description); err != nil {
		return ErrDescriptionRequired
	}
	in.Description = strings.TrimSpace(in.Description)
	if in.Date == nil || in.Date.IsZero() {
		in.Date = &now
	}
	return nil
}

// TransactionPatch carries the fields to change; nil fields are left alone.
type TransactionPatch struct {
	Amount      *decimal.Decimal
	Description *string
	Date        *time.Time
	Type        *models.TransactionType
}

func (p *TransactionPatch) validate() error {
	if p.Amount != nil {
		if err := money.Validate(*p.Amount); err != nil {
			return ErrInvalidAmount
		}
	}
	if p.Type != nil && !p.Type.Valid() {
		return ErrInvalidType
	}
	if p.Description != nil {
		if err := validator.ValidateDescription(*p.Description); err != nil {
			return ErrDescriptionRequired
		}
		trimmed := strings.TrimSpace(*p.Description)
		p.Description = &trimmed
	}
	return nil
}

// apply writes the patch onto t. The mirrored flag inverts a patched type for the twin.
func (p TransactionPatch) apply(t *models.Transaction, mirrored bool) {
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Type != nil {
		t.Type = *p.Type
		if mirrored {
			t.Type = p.Type.Inverse()
		}
	}
}

func (s *LedgerService) CreateTransaction(ctx context.Context, userID, personID string, input TransactionInput) (models.Transaction, error) {
	now := s.now().UTC()
	if err := input.normalize(now); err != nil {
		return models.Transaction{}, err
	}
	var created models.Transaction
	var notices []notice
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		notices = notices[:0]
		person, err := s.ownedPerson(ctx, tx, userID, personID)
		if err != nil {
			return err
		}
		t, n, err := s.createFor(ctx, tx, userID, person, input, now)
		if err != nil {
			return err
		}
		created = t
		if n != nil {
			notices = append(notices, *n)
		}
		return nil
	})
	if err != nil {
		return models.Transaction{}, err
	}
	emitAll(ctx, s.notifier, notices)
	return created, nil
}

// CreateBulkTransaction records the same payload against every Person. Ownership of all
// Persons is checked before anything is written and the whole batch commits as one unit.
func (s *LedgerService) CreateBulkTransaction(ctx context.Context, userID string, personIDs []string, input TransactionInput) ([]models.Transaction, error) {
	ids := dedupe(personIDs)
	if len(ids) == 0 {
		return nil, ErrNoPersons
	}
	now := s.now().UTC()
	if err := input.normalize(now); err != nil {
		return nil, err
	}
	var created []models.Transaction
	var notices []notice
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		created = created[:0]
		notices = notices[:0]
		persons := make([]models.Person, 0, len(ids))
		for _, id := range ids {
			person, err := s.ownedPerson(ctx, tx, userID, id)
			if err != nil {
				return err
			}
			persons = append(persons, person)
		}
		for _, person := range persons {
			t, n, err := s.createFor(ctx, tx, userID, person, input, now)
			if err != nil {
				return fmt.Errorf("person %s: %w", person.ID, err)
			}
			created = append(created, t)
			if n != nil {
				notices = append(notices, *n)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	emitAll(ctx, s.notifier, notices)
	return created, nil
}

func (s *LedgerService) UpdateTransaction(ctx context.Context, transactionID, userID string, patch TransactionPatch) (models.Transaction, error) {
	if err := patch.validate(); err != nil {
		return models.Transaction{}, err
	}
	now := s.now().UTC()
	var updated models.Transaction
	var notices []notice
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		notices = notices[:0]
		t, err := s.editableTransaction(ctx, tx, transactionID, userID)
		if err != nil {
			return err
		}
		patch.apply(&t, false)
		t.UpdatedAt = now
		if err := s.transactions.Update(ctx, tx, t); err != nil {
			return err
		}
		updated = t
		if t.CounterpartTransactionID != nil {
			twin, err := s.transactions.GetForUpdate(ctx, tx, *t.CounterpartTransactionID)
			switch {
			case errors.Is(err, sql.ErrNoRows):
			case err != nil:
				return fmt.Errorf("load twin: %w", err)
			default:
				patch.apply(&twin, true)
				twin.UpdatedAt = now
				if err := s.transactions.Update(ctx, tx, twin); err != nil {
					return fmt.Errorf("update twin: %w", err)
				}
				twinPerson, err := s.persons.GetForUpdate(ctx, tx, twin.PersonID)
				if err != nil {
					return fmt.Errorf("load twin person: %w", err)
				}
				notices = append(notices, notice{
					userID:   twinPerson.UserID,
					kind:     models.NotifyTxUpdated,
					message:  fmt.Sprintf("%s updated a transaction: %s %s", twinPerson.Name, money.Format(twin.Amount), twin.Description),
					metadata: transactionMetadata(twin, userID),
				})
			}
		}
		return s.audit.Log(ctx, tx, userID, "transaction.update", "transaction", t.ID, auditData(map[string]any{
			"amount": money.Format(t.Amount),
			"type":   t.Type,
			"twin":   t.CounterpartTransactionID,
		}))
	})
	if err != nil {
		return models.Transaction{}, err
	}
	emitAll(ctx, s.notifier, notices)
	return updated, nil
}

// DeleteTransaction removes the twin first and then the transaction itself.
func (s *LedgerService) DeleteTransaction(ctx context.Context, transactionID, userID string) error {
	var notices []notice
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		notices = notices[:0]
		t, err := s.editableTransaction(ctx, tx, transactionID, userID)
		if err != nil {
			return err
		}
		if t.CounterpartTransactionID != nil {
			twin, err := s.transactions.GetForUpdate(ctx, tx, *t.CounterpartTransactionID)
			switch {
			case errors.Is(err, sql.ErrNoRows):
			case err != nil:
				return fmt.Errorf("load twin: %w", err)
			default:
				twinPerson, err := s.persons.GetForUpdate(ctx, tx, twin.PersonID)
				if err != nil {
					return fmt.Errorf("load twin person: %w", err)
				}
				if err := s.transactions.Delete(ctx, tx, twin.ID); err != nil {
					return fmt.Errorf("delete twin: %w", err)
				}
				notices = append(notices, notice{
					userID:   twinPerson.UserID,
					kind:     models.NotifyTxDeleted,
					message:  fmt.Sprintf("%s deleted a transaction: %s %s", twinPerson.Name, money.Format(twin.Amount), twin.Description),
					metadata: transactionMetadata(twin, userID),
				})
			}
		}
		if err := s.transactions.Delete(ctx, tx, t.ID); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, userID, "transaction.delete", "transaction", t.ID, auditData(map[string]any{
			"amount": money.Format(t.Amount),
			"type":   t.Type,
			"twin":   t.CounterpartTransactionID,
		}))
	})
	if err != nil {
		return err
	}
	emitAll(ctx, s.notifier, notices)
	return nil
}

func (s *LedgerService) ownedPerson(ctx context.Context, tx store.Getter, userID, personID string) (models.Person, error) {
	person, err := s.persons.GetForUpdate(ctx, tx, personID)
	if err != nil {
		return models.Person{}, notFound(err, ErrPersonNotFound)
	}
	if person.UserID != userID {
		return models.Person{}, ErrPersonForbidden
	}
	return person, nil
}

// editableTransaction loads a transaction the user may change: it must sit on one of the
// user's Persons and, unless it predates attribution, have been added by the user.
func (s *LedgerService) editableTransaction(ctx context.Context, tx store.Getter, transactionID, userID string) (models.Transaction, error) {
	t, err := s.transactions.GetForUpdate(ctx, tx, transactionID)
	if err != nil {
		return models.Transaction{}, notFound(err, ErrTransactionNotFound)
	}
	if _, err := s.ownedPerson(ctx, tx, userID, t.PersonID); err != nil {
		if errors.Is(err, ErrPersonNotFound) {
			return models.Transaction{}, ErrTransactionNotFound
		}
		return models.Transaction{}, err
	}
	if t.AddedBy != nil && *t.AddedBy != userID {
		return models.Transaction{}, ErrNotAddedBy
	}
	return t, nil
}

// createFor writes one transaction on person and, when the person is linked, its twin.
func (s *LedgerService) createFor(ctx context.Context, tx store.Tx, userID string, person models.Person, input TransactionInput, now time.Time) (models.Transaction, *notice, error) {
	t := models.Transaction{
		ID:          uuid.NewString(),
		PersonID:    person.ID,
		Amount:      input.Amount,
		Description: input.Description,
		Date:        *input.Date,
		Type:        input.Type,
		AddedBy:     &userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.transactions.Create(ctx, tx, t); err != nil {
		return models.Transaction{}, nil, err
	}
	var n *notice
	if person.CounterpartPersonID != nil {
		counterpart, err := s.persons.GetForUpdate(ctx, tx, *person.CounterpartPersonID)
		if err != nil {
			return models.Transaction{}, nil, fmt.Errorf("load counterpart person: %w", err)
		}
		twin, err := mirror(ctx, tx, s.transactions, &t, counterpart.ID, now)
		if err != nil {
			return models.Transaction{}, nil, err
		}
		n = &notice{
			userID:   counterpart.UserID,
			kind:     models.NotifyTxAdded,
			message:  fmt.Sprintf("%s added a transaction: %s %s", counterpart.Name, money.Format(twin.Amount), twin.Description),
			metadata: transactionMetadata(twin, userID),
		}
	}
	err := s.audit.Log(ctx, tx, userID, "transaction.create", "transaction", t.ID, auditData(map[string]any{
		"person_id": person.ID,
		"amount":    money.Format(t.Amount),
		"type":      t.Type,
		"twin":      t.CounterpartTransactionID,
	}))
	if err != nil {
		return models.Transaction{}, nil, err
	}
	return t, n, nil
}

// mirror creates the sign-inverted twin of original on counterpartPersonID and links both
// sides. original must already be stored; its CounterpartTransactionID is updated in place.
func mirror(ctx context.Context, tx store.Execer, transactions TransactionStore, original *models.Transaction, counterpartPersonID string, now time.Time) (models.Transaction, error) {
	twin := models.Transaction{
		ID:                       uuid.NewString(),
		PersonID:                 counterpartPersonID,
		Amount:                   original.Amount,
		Description:              original.Description,
		Date:                     original.Date,
		Type:                     original.Type.Inverse(),
		CounterpartTransactionID: &original.ID,
		AddedBy:                  original.AddedBy,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if err := transactions.Create(ctx, tx, twin); err != nil {
		return models.Transaction{}, fmt.Errorf("create twin: %w", err)
	}
	if err := transactions.SetCounterpart(ctx, tx, original.ID, twin.ID); err != nil {
		return models.Transaction{}, fmt.Errorf("link twin: %w", err)
	}
	original.CounterpartTransactionID = &twin.ID
	return twin, nil
}

func transactionMetadata(t models.Transaction, actorID string) map[string]any {
	return map[string]any{
		"transaction_id": t.ID,
		"person_id":      t.PersonID,
		"amount":         money.Format(t.Amount),
		"type":           t.Type,
		"description":    t.Description,
		"date":           t.Date,
		"from_user_id":   actorID,
	}
}

func auditData(fields map[string]any) string {
	raw, err := json.Marshal(fields)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
