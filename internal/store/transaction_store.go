package store

import (
	"context"

	"iou/internal/models"

	"github.com/lib/pq"
)

type TransactionStore struct {
	db DB
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

const transactionColumns = `id, person_id, amount, description, date, type, counterpart_transaction_id, added_by, created_at, updated_at`

func (s *TransactionStore) Create(ctx context.Context, tx Execer, t models.Transaction) error {
	query := `
		INSERT INTO transactions (id, person_id, amount, description, date, type, counterpart_transaction_id, added_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := tx.ExecContext(ctx, query,
		t.ID, t.PersonID, t.Amount, t.Description, t.Date, t.Type,
		t.CounterpartTransactionID, t.AddedBy, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (s *TransactionStore) GetForUpdate(ctx context.Context, tx Getter, transactionID string) (models.Transaction, error) {
	var t models.Transaction
	err := tx.GetContext(ctx, &t, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, transactionID)
	return t, err
}

func (s *TransactionStore) SetCounterpart(ctx context.Context, tx Execer, transactionID, counterpartID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE transactions SET counterpart_transaction_id = $2 WHERE id = $1`, transactionID, counterpartID)
	return err
}

// Update writes the editable fields: amount, description, date and type.
func (s *TransactionStore) Update(ctx context.Context, tx Execer, t models.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET amount = $2, description = $3, date = $4, type = $5, updated_at = $6
		WHERE id = $1
	`, t.ID, t.Amount, t.Description, t.Date, t.Type, t.UpdatedAt)
	return err
}

func (s *TransactionStore) Delete(ctx context.Context, tx Execer, transactionID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, transactionID)
	return err
}

func (s *TransactionStore) DeleteByPerson(ctx context.Context, tx Execer, personID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE person_id = $1`, personID)
	return err
}

// ListUnmirrored returns the Person's transactions that have no twin yet, oldest first.
func (s *TransactionStore) ListUnmirrored(ctx context.Context, tx Selecter, personID string) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := tx.SelectContext(ctx, &rows, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE person_id = $1 AND counterpart_transaction_id IS NULL
		ORDER BY date, created_at
		FOR UPDATE
	`, personID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByPersons returns the transactions of all given Persons, newest first.
func (s *TransactionStore) ListByPersons(ctx context.Context, personIDs []string) ([]models.Transaction, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}
	var rows []models.Transaction
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE person_id = ANY($1)
		ORDER BY date DESC, created_at DESC
	`, pq.Array(personIDs))
	if err != nil {
		return nil, err
	}
	return rows, nil
}
