package store

import (
	"context"

	"iou/internal/models"
)

type PersonStore struct {
	db DB
}

func NewPersonStore(db DB) *PersonStore {
	return &PersonStore{db: db}
}

const personColumns = `id, user_id, name, nickname, payment_address, friend_user_id, counterpart_person_id, created_at, updated_at`

func (s *PersonStore) Create(ctx context.Context, tx Execer, person models.Person) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO persons (id, user_id, name, nickname, payment_address, friend_user_id, counterpart_person_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, person.ID, person.UserID, person.Name, person.Nickname, person.PaymentAddress,
		person.FriendUserID, person.CounterpartPersonID, person.CreatedAt, person.UpdatedAt)
	return err
}

func (s *PersonStore) GetByID(ctx context.Context, personID string) (models.Person, error) {
	var person models.Person
	err := s.db.GetContext(ctx, &person, `SELECT `+personColumns+` FROM persons WHERE id = $1`, personID)
	return person, err
}

func (s *PersonStore) GetForUpdate(ctx context.Context, tx Getter, personID string) (models.Person, error) {
	var person models.Person
	err := tx.GetContext(ctx, &person, `SELECT `+personColumns+` FROM persons WHERE id = $1 FOR UPDATE`, personID)
	return person, err
}

// FindLinked returns the owner's Person that stands for friendUserID.
func (s *PersonStore) FindLinked(ctx context.Context, tx Getter, ownerID, friendUserID string) (models.Person, error) {
	var person models.Person
	err := tx.GetContext(ctx, &person, `
		SELECT `+personColumns+`
		FROM persons
		WHERE user_id = $1 AND friend_user_id = $2
		FOR UPDATE
	`, ownerID, friendUserID)
	return person, err
}

// Save writes every mutable column of an existing Person.
func (s *PersonStore) Save(ctx context.Context, tx Execer, person models.Person) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE persons
		SET name = $2, nickname = $3, payment_address = $4, friend_user_id = $5,
		    counterpart_person_id = $6, updated_at = $7
		WHERE id = $1
	`, person.ID, person.Name, person.Nickname, person.PaymentAddress,
		person.FriendUserID, person.CounterpartPersonID, person.UpdatedAt)
	return err
}

func (s *PersonStore) Delete(ctx context.Context, tx Execer, personID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM persons WHERE id = $1`, personID)
	return err
}

func (s *PersonStore) ListByUser(ctx context.Context, userID string) ([]models.Person, error) {
	var persons []models.Person
	err := s.db.SelectContext(ctx, &persons, `
		SELECT `+personColumns+`
		FROM persons
		WHERE user_id = $1
		ORDER BY name
	`, userID)
	if err != nil {
		return nil, err
	}
	return persons, nil
}
