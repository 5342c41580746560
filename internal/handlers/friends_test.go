package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"iou/internal/models"
	"iou/internal/services"
)

func TestSendFriendRequest(t *testing.T) {
	handler := newTestHandler(testDeps{
		friendships: stubFriendships{
			sendFn: func(_ context.Context, fromUserID, toEmail string, personID *string) (services.SendResult, error) {
				if fromUserID != "user-1" || toEmail != "bob@example.com" {
					t.Fatalf("unexpected send %s -> %s", fromUserID, toEmail)
				}
				if personID == nil || *personID != "person-1" {
					t.Fatalf("expected link person, got %v", personID)
				}
				return services.SendResult{Request: models.FriendRequest{ID: "req-1", Status: models.RequestPending}}, nil
			},
		},
	})
	rr := serve(t, handler, http.MethodPost, "/friends/request", "user-1", map[string]any{
		"email":     "bob@example.com",
		"person_id": "person-1",
	})
	expectStatus(t, rr, http.StatusCreated)
	var result services.SendResult
	decodeBody(t, rr, &result)
	if result.Request.ID != "req-1" || result.Accepted != nil {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestSendFriendRequestAutoAccepted(t *testing.T) {
	handler := newTestHandler(testDeps{
		friendships: stubFriendships{
			sendFn: func(context.Context, string, string, *string) (services.SendResult, error) {
				accepted := services.RespondResult{Request: models.FriendRequest{ID: "req-2", Status: models.RequestAccepted}}
				return services.SendResult{Request: accepted.Request, Accepted: &accepted}, nil
			},
		},
	})
	rr := serve(t, handler, http.MethodPost, "/friends/request", "user-1", map[string]any{
		"email":     "bob@example.com",
		"person_id": "",
	})
	expectStatus(t, rr, http.StatusOK)
}

func TestSendFriendRequestErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.ErrUserNotFound, http.StatusNotFound},
		{services.ErrSelfFriend, http.StatusBadRequest},
		{services.ErrAlreadyFriends, http.StatusBadRequest},
		{services.ErrPersonForbidden, http.StatusForbidden},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		handler := newTestHandler(testDeps{
			friendships: stubFriendships{
				sendFn: func(context.Context, string, string, *string) (services.SendResult, error) {
					return services.SendResult{}, tc.err
				},
			},
		})
		rr := serve(t, handler, http.MethodPost, "/friends/request", "user-1", map[string]any{"email": "bob@example.com"})
		expectStatus(t, rr, tc.want)
	}
}

func TestSendFriendRequestRequiresEmail(t *testing.T) {
	rr := serve(t, newTestHandler(testDeps{}), http.MethodPost, "/friends/request", "user-1", map[string]any{})
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestRespondFriendRequest(t *testing.T) {
	handler := newTestHandler(testDeps{
		friendships: stubFriendships{
			respondFn: func(_ context.Context, requestID, userID, action string) (services.RespondResult, error) {
				if requestID != "req-1" || userID != "user-2" || action != services.ActionAccept {
					t.Fatalf("unexpected respond %s %s %s", requestID, userID, action)
				}
				return services.RespondResult{
					Request:    models.FriendRequest{ID: requestID, Status: models.RequestAccepted},
					Backfilled: 2,
				}, nil
			},
		},
	})
	rr := serve(t, handler, http.MethodPost, "/friends/respond", "user-2", map[string]string{
		"request_id": "req-1",
		"action":     "Accept",
	})
	expectStatus(t, rr, http.StatusOK)
	var result services.RespondResult
	decodeBody(t, rr, &result)
	if result.Backfilled != 2 {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestRespondFriendRequestForbidden(t *testing.T) {
	handler := newTestHandler(testDeps{
		friendships: stubFriendships{
			respondFn: func(context.Context, string, string, string) (services.RespondResult, error) {
				return services.RespondResult{}, services.ErrRequestForbidden
			},
		},
	})
	rr := serve(t, handler, http.MethodPost, "/friends/respond", "user-3", map[string]string{
		"request_id": "req-1",
		"action":     "accept",
	})
	expectStatus(t, rr, http.StatusForbidden)
}

func TestCancelFriendRequest(t *testing.T) {
	handler := newTestHandler(testDeps{
		friendships: stubFriendships{
			cancelFn: func(_ context.Context, requestID, userID string) (models.FriendRequest, error) {
				if requestID != "req-1" || userID != "user-1" {
					t.Fatalf("unexpected cancel %s by %s", requestID, userID)
				}
				return models.FriendRequest{ID: requestID, Status: models.RequestCancelled}, nil
			},
		},
	})
	rr := serve(t, handler, http.MethodPost, "/friends/cancel", "user-1", map[string]string{"request_id": "req-1"})
	expectStatus(t, rr, http.StatusOK)

	rr = serve(t, handler, http.MethodPost, "/friends/cancel", "user-1", map[string]string{})
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestListFriendRequestsNeverNull(t *testing.T) {
	rr := serve(t, newTestHandler(testDeps{}), http.MethodGet, "/friends/requests", "user-1", nil)
	expectStatus(t, rr, http.StatusOK)
	if body := rr.Body.String(); body != "{\"incoming\":[],\"outgoing\":[]}\n" {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestListFriends(t *testing.T) {
	handler := newTestHandler(testDeps{
		friendships: stubFriendships{
			listFriendsFn: func(context.Context, string) ([]models.UserSummary, error) {
				return []models.UserSummary{{ID: "user-2", Name: "Bob"}}, nil
			},
		},
	})
	rr := serve(t, handler, http.MethodGet, "/friends", "user-1", nil)
	expectStatus(t, rr, http.StatusOK)
	var friends []models.UserSummary
	decodeBody(t, rr, &friends)
	if len(friends) != 1 || friends[0].Name != "Bob" {
		t.Fatalf("unexpected friends: %#v", friends)
	}
}
