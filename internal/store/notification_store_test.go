package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"

	"iou/internal/models"

	"github.com/lib/pq"
)

func TestNotificationStoreCreate(t *testing.T) {
	store := NewNotificationStore(stubDB{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO notifications") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 7 || args[1] != "user-b" || args[4] != `{"amount":"50.00"}` {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	})
	err := store.Create(context.Background(), models.Notification{
		ID:       "n-1",
		UserID:   "user-b",
		Type:     models.NotifyTxAdded,
		Metadata: json.RawMessage(`{"amount":"50.00"}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNotificationStoreMarkReadAll(t *testing.T) {
	store := NewNotificationStore(stubDB{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if strings.Contains(query, "ANY") {
				t.Fatalf("did not expect id filter: %s", query)
			}
			if len(args) != 1 || args[0] != "user-a" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 4}, nil
		},
	})
	n, err := store.MarkRead(context.Background(), "user-a", nil)
	if err != nil || n != 4 {
		t.Fatalf("unexpected result: %d %v", n, err)
	}
}

func TestNotificationStoreMarkReadIDs(t *testing.T) {
	store := NewNotificationStore(stubDB{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "id = ANY($2)") {
				t.Fatalf("expected id filter: %s", query)
			}
			ids, ok := args[1].(*pq.StringArray)
			if !ok || len(*ids) != 2 {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 2}, nil
		},
	})
	n, err := store.MarkRead(context.Background(), "user-a", []string{"n-1", "n-2"})
	if err != nil || n != 2 {
		t.Fatalf("unexpected result: %d %v", n, err)
	}
}

func TestNotificationStoreListByUser(t *testing.T) {
	store := NewNotificationStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "ORDER BY created_at DESC") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 2 || args[1] != 200 {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*[]models.Notification) = []models.Notification{{ID: "n-1"}}
			return nil
		},
	})
	rows, err := store.ListByUser(context.Background(), "user-a", 200)
	if err != nil || len(rows) != 1 {
		t.Fatalf("unexpected result: %#v %v", rows, err)
	}
}

func TestNotificationStoreClear(t *testing.T) {
	store := NewNotificationStore(stubDB{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "DELETE FROM notifications WHERE user_id = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			return stubResult{rows: 3}, nil
		},
	})
	n, err := store.Clear(context.Background(), "user-a")
	if err != nil || n != 3 {
		t.Fatalf("unexpected result: %d %v", n, err)
	}
}
