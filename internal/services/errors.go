package services

import (
	"database/sql"
	"errors"
)

// Error kinds. Every service error wraps exactly one of these.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrUnauthenticated  = errors.New("unauthenticated")
)

var (
	ErrUserNotFound        = newError(ErrNotFound, "user not found")
	ErrPersonNotFound      = newError(ErrNotFound, "person not found")
	ErrTransactionNotFound = newError(ErrNotFound, "transaction not found")
	ErrRequestNotFound     = newError(ErrNotFound, "friend request not found")

	ErrPersonForbidden  = newError(ErrForbidden, "person does not belong to user")
	ErrRequestForbidden = newError(ErrForbidden, "friend request is not addressed to user")
	ErrCancelForbidden  = newError(ErrForbidden, "only the sender can cancel a friend request")
	ErrNotAddedBy       = newError(ErrForbidden, "transaction was added by another user")

	ErrSelfFriend          = newError(ErrInvalidOperation, "cannot friend yourself")
	ErrAlreadyFriends      = newError(ErrInvalidOperation, "already friends")
	ErrPersonAlreadyLinked = newError(ErrInvalidOperation, "person is linked to another user")
	ErrRequestNotPending   = newError(ErrInvalidOperation, "friend request is not pending")
	ErrUnknownAction       = newError(ErrInvalidOperation, "action must be accept or decline")
	ErrInvalidAmount       = newError(ErrInvalidOperation, "amount must be positive with at most two decimal places")
	ErrInvalidType         = newError(ErrInvalidOperation, "type must be credit or debit")
	ErrDescriptionRequired = newError(ErrInvalidOperation, "description is required")
	ErrInvalidName         = newError(ErrInvalidOperation, "name is required and must be at most 100 characters")
	ErrNoPersons           = newError(ErrInvalidOperation, "at least one person is required")
	ErrNotFriendLinked     = newError(ErrInvalidOperation, "person is not linked to a friend")
	ErrNothingOwed         = newError(ErrInvalidOperation, "person does not owe anything")

	ErrInvalidCredentials = newError(ErrUnauthenticated, "invalid email or password")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// notFound maps a missing row to the given error and passes everything else through.
func notFound(err, missing error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return missing
	}
	return err
}
