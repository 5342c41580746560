package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"iou/internal/models"
)

func TestUserStoreCreate(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO users") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 5 || args[0] != "user-1" || args[1] != "Alice" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewUserStore(stubDB{})
	user := models.User{ID: "user-1", Name: "Alice", Email: "alice@example.com", PasswordHash: "hash", CreatedAt: time.Now()}
	if err := store.Create(ctx, execer, user); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUserStoreGetByEmail(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "WHERE email = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 1 || args[0] != "alice@example.com" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*models.User) = models.User{ID: "user-1"}
			return nil
		},
	})
	user, err := store.GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "user-1" {
		t.Fatalf("unexpected user: %#v", user)
	}
}

func TestUserStoreGetByIDNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "WHERE id = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			return sql.ErrNoRows
		},
	})
	if _, err := store.GetByID(ctx, "missing"); err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestUserStoreUpdateName(t *testing.T) {
	rows := int64(1)
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "UPDATE users SET name = $2") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 2 || args[0] != "user-1" || args[1] != "Alicia" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: rows}, nil
		},
	}
	store := NewUserStore(stubDB{})
	if err := store.UpdateName(context.Background(), execer, "user-1", "Alicia"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows = 0
	if err := store.UpdateName(context.Background(), execer, "user-1", "Alicia"); err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestUserStoreSearchEscapesPattern(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "ILIKE $2") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 3 || args[0] != "user-1" || args[1] != `%50\%%` || args[2] != 20 {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*[]models.UserSummary) = []models.UserSummary{{ID: "user-2", Name: "Bob"}}
			return nil
		},
	})
	users, err := store.Search(ctx, "user-1", " 50% ", 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 1 || users[0].ID != "user-2" {
		t.Fatalf("unexpected users: %#v", users)
	}
}
