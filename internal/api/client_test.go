package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"
)

type staticTokens string

func (s staticTokens) Token() string { return string(s) }

func newTestClient(t *testing.T, handler http.Handler, token string) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New(server.URL, 5*time.Second, staticTokens(token), zap.NewNop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestLoginSendsFormAndReturnsToken(t *testing.T) {
	var gotContentType, gotUsername, gotPassword string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/login" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotContentType = r.Header.Get("Content-Type")
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotUsername = r.PostForm.Get("username")
		gotPassword = r.PostForm.Get("password")
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123", "token_type": "bearer"})
	})
	client := newTestClient(t, handler, "")

	token, err := client.Login(context.Background(), "avery@example.com", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token != "tok-123" {
		t.Fatalf("token = %q, want tok-123", token)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Fatalf("content type = %q", gotContentType)
	}
	if gotUsername != "avery@example.com" || gotPassword != "hunter2" {
		t.Fatalf("credentials not forwarded: %q %q", gotUsername, gotPassword)
	}
}

func TestLoginRejectionIsValidationError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Incorrect email or password"})
	})
	client := newTestClient(t, handler, "")

	_, err := client.Login(context.Background(), "avery@example.com", "wrong")
	if err == nil {
		t.Fatal("expected error")
	}
	if KindOf(err) != KindValidation {
		t.Fatalf("kind = %s, want %s", KindOf(err), KindValidation)
	}
}

func TestListFeedbackCarriesBearerAndRequestID(t *testing.T) {
	var gotAuth, gotRequestID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feedback/42" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		json.NewEncoder(w).Encode([]FeedbackItem{{ID: 1, EmployeeID: 42, Strengths: "Great communication", Sentiment: SentimentPositive, Tags: "communication,teamwork"}})
	})
	client := newTestClient(t, handler, "tok-abc")

	items, err := client.ListFeedback(context.Background(), 42)
	if err != nil {
		t.Fatalf("list feedback: %v", err)
	}
	if gotAuth != "Bearer tok-abc" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotRequestID == "" {
		t.Fatal("expected X-Request-ID header")
	}
	if len(items) != 1 || items[0].EmployeeID != 42 {
		t.Fatalf("unexpected items: %+v", items)
	}
	if got := items[0].TagList(); !reflect.DeepEqual(got, []string{"communication", "teamwork"}) {
		t.Fatalf("tag list = %v", got)
	}
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   Kind
	}{
		{"unauthorized", http.StatusUnauthorized, KindAuthorization},
		{"forbidden", http.StatusForbidden, KindAuthorization},
		{"conflict", http.StatusConflict, KindValidation},
		{"not found", http.StatusNotFound, KindValidation},
		{"server error", http.StatusInternalServerError, KindNetwork},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				json.NewEncoder(w).Encode(map[string]string{"detail": "nope"})
			})
			client := newTestClient(t, handler, "tok")
			_, err := client.Acknowledge(context.Background(), 7)
			if err == nil {
				t.Fatal("expected error")
			}
			if KindOf(err) != tc.want {
				t.Fatalf("kind = %s, want %s", KindOf(err), tc.want)
			}
			var apiErr *Error
			if !errors.As(err, &apiErr) || apiErr.Status != tc.status {
				t.Fatalf("expected status %d on error, got %+v", tc.status, err)
			}
		})
	}
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	client, err := New("http://127.0.0.1:1", 200*time.Millisecond, staticTokens("tok"), zap.NewNop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.ListFeedback(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if KindOf(err) != KindNetwork {
		t.Fatalf("kind = %s, want %s", KindOf(err), KindNetwork)
	}
}

func TestCreateFeedbackJoinsTagsAndOmitsAcknowledged(t *testing.T) {
	var body map[string]any
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/feedback" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(FeedbackItem{ID: 9, EmployeeID: 42})
	})
	client := newTestClient(t, handler, "tok")

	form := FeedbackForm{
		Strengths:      "Great communication",
		AreasToImprove: "Delegation",
		Sentiment:      SentimentPositive,
		Tags:           []string{"communication", " leadership "},
	}
	item, err := client.CreateFeedback(context.Background(), form, 42)
	if err != nil {
		t.Fatalf("create feedback: %v", err)
	}
	if item.ID != 9 {
		t.Fatalf("item id = %d", item.ID)
	}
	if body["employee_id"] != float64(42) {
		t.Fatalf("employee_id = %v", body["employee_id"])
	}
	if body["tags"] != "communication,leadership" {
		t.Fatalf("tags = %v", body["tags"])
	}
	if _, present := body["acknowledged"]; present {
		t.Fatal("create payload must never carry acknowledged")
	}
}

func TestPendingRequestsQueriesUnfulfilled(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feedback-requests" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("fulfilled") != "false" {
			t.Fatalf("expected fulfilled=false, got %q", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode([]FeedbackRequest{{ID: 3, EmployeeID: 42, Message: "Looking for input"}})
	})
	client := newTestClient(t, handler, "tok")

	reqs, err := client.PendingRequests(context.Background())
	if err != nil {
		t.Fatalf("pending requests: %v", err)
	}
	if len(reqs) != 1 || reqs[0].ID != 3 {
		t.Fatalf("unexpected requests: %+v", reqs)
	}
}

func TestDeleteFeedbackAcceptsNoContent(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/feedback/5" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	client := newTestClient(t, handler, "tok")

	if err := client.DeleteFeedback(context.Background(), 5); err != nil {
		t.Fatalf("delete feedback: %v", err)
	}
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "localhost:8000"} {
		if _, err := New(raw, time.Second, staticTokens(""), nil); err == nil {
			t.Fatalf("expected error for base url %q", raw)
		}
	}
}
