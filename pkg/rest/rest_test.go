package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, Token: "tok"})
}

func TestMessagesPagination(t *testing.T) {
	var gotPath, gotAuth string
	var gotQuery url.Values

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query()
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": uint64(1) << 55, "channel_id": 77, "author_id": 5, "content": "hi"},
		})
	})

	messages, err := c.Messages(context.Background(), 77, 50, 12345)
	if err != nil {
		t.Fatalf("Messages() error: %v", err)
	}

	if gotPath != "/channels/77/messages" {
		t.Errorf("path = %q; want /channels/77/messages", gotPath)
	}
	if gotAuth != "tok" {
		t.Errorf("Authorization = %q; want tok", gotAuth)
	}
	if got := gotQuery["limit"]; len(got) != 1 || got[0] != "50" {
		t.Errorf("limit = %v; want [50]", got)
	}
	if got := gotQuery["before"]; len(got) != 1 || got[0] != "12345" {
		t.Errorf("before = %v; want [12345]", got)
	}
	if len(messages) != 1 || messages[0].ID != uint64(1)<<55 {
		t.Errorf("messages = %+v", messages)
	}
}

func TestMessagesDefaultLimit(t *testing.T) {
	var gotLimit string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		w.Write([]byte("[]"))
	})

	if _, err := c.Messages(context.Background(), 1, 0, 0); err != nil {
		t.Fatalf("Messages() error: %v", err)
	}
	if gotLimit != "100" {
		t.Errorf("limit = %q; want 100", gotLimit)
	}
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"missing permissions"}`, http.StatusForbidden)
	})

	err := c.Ack(context.Background(), 1, 2)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Ack() error = %v; want *APIError", err)
	}
	if apiErr.Status != http.StatusForbidden {
		t.Errorf("Status = %d; want 403", apiErr.Status)
	}
	if apiErr.Method != http.MethodPut {
		t.Errorf("Method = %q; want PUT", apiErr.Method)
	}
}

func TestSelfDecodesLargeIDs(t *testing.T) {
	// 2^53+1 is not representable as float64; the decoder must not
	// round it.
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 9007199254740993, "username": "ada"}`))
	})

	user, err := c.Self(context.Background())
	if err != nil {
		t.Fatalf("Self() error: %v", err)
	}
	if user.ID != 9007199254740993 {
		t.Errorf("ID = %d; want 9007199254740993", user.ID)
	}
}

func TestCreateMessageCarriesNonce(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"id": 10, "channel_id": 1, "content": "hello"}`))
	})

	msg, err := c.CreateMessage(context.Background(), 1, "hello", "nonce-1")
	if err != nil {
		t.Fatalf("CreateMessage() error: %v", err)
	}
	if gotBody["nonce"] != "nonce-1" || gotBody["content"] != "hello" {
		t.Errorf("request body = %v", gotBody)
	}
	if msg.ID != 10 {
		t.Errorf("ID = %d; want 10", msg.ID)
	}
}

func TestTypingKeepAliveThrottles(t *testing.T) {
	puts := 0
	deletes := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			puts++
		case http.MethodDelete:
			deletes++
		}
	})

	ka := NewTypingKeepAlive(c, 9)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := ka.Signal(ctx); err != nil {
			t.Fatalf("Signal() error: %v", err)
		}
	}
	if puts != 1 {
		t.Errorf("puts = %d; want 1 (throttled)", puts)
	}

	if err := ka.Stop(ctx); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if deletes != 1 {
		t.Errorf("deletes = %d; want 1", deletes)
	}

	// Stop re-arms the throttle.
	if err := ka.Signal(ctx); err != nil {
		t.Fatalf("Signal() after Stop error: %v", err)
	}
	if puts != 2 {
		t.Errorf("puts = %d; want 2 after Stop", puts)
	}
}

func TestGuildsQueryResolvesSubEntities(t *testing.T) {
	var gotQuery url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte("[]"))
	})

	if _, err := c.Guilds(context.Background()); err != nil {
		t.Fatalf("Guilds() error: %v", err)
	}
	for _, key := range []string{"channels", "members", "roles"} {
		if got := gotQuery.Get(key); got != "true" {
			t.Errorf("query %s = %q; want true", key, got)
		}
	}
}
