package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	Credit TransactionType = "credit"
	Debit  TransactionType = "debit"
)

func (t TransactionType) Valid() bool {
	return t == Credit || t == Debit
}

// Inverse returns the type the same debt has on the counterpart ledger.
func (t TransactionType) Inverse() TransactionType {
	if t == Credit {
		return Debit
	}
	return Credit
}

type FriendRequestStatus string

const (
	RequestPending   FriendRequestStatus = "pending"
	RequestAccepted  FriendRequestStatus = "accepted"
	RequestDeclined  FriendRequestStatus = "declined"
	RequestCancelled FriendRequestStatus = "cancelled"
)

func (s FriendRequestStatus) Terminal() bool {
	return s != RequestPending
}

const (
	NotifyFriendRequest  = "friend_request"
	NotifyFriendAccepted = "friend_accepted"
	NotifyTxAdded        = "tx_added"
	NotifyTxUpdated      = "tx_updated"
	NotifyTxDeleted      = "tx_deleted"
	NotifyReminder       = "reminder"
)

type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type UserSummary struct {
	ID    string `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

type Person struct {
	ID                  string    `db:"id" json:"id"`
	UserID              string    `db:"user_id" json:"user_id"`
	Name                string    `db:"name" json:"name"`
	Nickname            string    `db:"nickname" json:"nickname"`
	PaymentAddress      string    `db:"payment_address" json:"payment_address"`
	FriendUserID        *string   `db:"friend_user_id" json:"friend_user_id"`
	CounterpartPersonID *string   `db:"counterpart_person_id" json:"counterpart_person_id"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// IsFriendLinked reports whether the person stands for a real platform user.
func (p Person) IsFriendLinked() bool {
	return p.FriendUserID != nil
}

type Transaction struct {
	ID                       string          `db:"id" json:"id"`
	PersonID                 string          `db:"person_id" json:"person_id"`
	Amount                   decimal.Decimal `db:"amount" json:"amount"`
	Description              string          `db:"description" json:"description"`
	Date                     time.Time       `db:"date" json:"date"`
	Type                     TransactionType `db:"type" json:"type"`
	CounterpartTransactionID *string         `db:"counterpart_transaction_id" json:"counterpart_transaction_id"`
	AddedBy                  *string         `db:"added_by" json:"added_by"`
	CreatedAt                time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time       `db:"updated_at" json:"updated_at"`
}

type FriendRequest struct {
	ID             string              `db:"id" json:"id"`
	FromUserID     string              `db:"from_user_id" json:"from_user_id"`
	ToUserID       string              `db:"to_user_id" json:"to_user_id"`
	LinkPersonFrom *string             `db:"link_person_from" json:"link_person_from"`
	Status         FriendRequestStatus `db:"status" json:"status"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `db:"updated_at" json:"updated_at"`
}

// FriendRequestView is a request joined with the user on the other end.
type FriendRequestView struct {
	FriendRequest
	OtherName  string `db:"other_name" json:"other_name"`
	OtherEmail string `db:"other_email" json:"other_email"`
}

type Notification struct {
	ID        string          `db:"id" json:"id"`
	UserID    string          `db:"user_id" json:"user_id"`
	Type      string          `db:"type" json:"type"`
	Message   string          `db:"message" json:"message"`
	Metadata  json.RawMessage `db:"metadata" json:"metadata"`
	Read      bool            `db:"read" json:"read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
