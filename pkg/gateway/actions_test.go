package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/accordlabs/accord-go/pkg/pref"
	"github.com/accordlabs/accord-go/pkg/rest"
	"github.com/accordlabs/accord-go/pkg/snowflake"
	"github.com/accordlabs/accord-go/pkg/wire"
)

func jsonHandler(t *testing.T, routes map[string]any) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(v); err != nil {
			t.Errorf("encode response: %v", err)
		}
	})
}

func TestHydrate(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, map[string]any{
		"GET /guilds": []wire.Guild{{
			ID: 100, Name: "testers", OwnerID: 1,
			Channels: []wire.Channel{{ID: 150, Type: wire.ChannelText, GuildID: 100}},
		}},
		"GET /users/me/channels": []wire.Channel{
			{ID: 160, Type: wire.ChannelDM, RecipientIDs: []uint64{1, 2}},
		},
		"GET /users/me": wire.ClientUser{User: wire.User{ID: 1, Username: "self"}},
		"GET /relationships": []wire.Relationship{
			{User: wire.User{ID: 2, Username: "pal"}, Type: wire.RelationFriend},
		},
	}))
	defer srv.Close()

	c := New(Config{Token: "tok", REST: rest.New(rest.Config{BaseURL: srv.URL, Token: "tok"})})

	if err := c.Hydrate(context.Background()); err != nil {
		t.Fatalf("Hydrate() = %v; want nil", err)
	}

	if !c.Cache().Hydrated() {
		t.Fatal("cache not hydrated")
	}
	if got := c.Cache().ClientID(); got != 1 {
		t.Errorf("ClientID() = %d; want 1", got)
	}
	if _, ok := c.Cache().Guild(100); !ok {
		t.Error("guild 100 missing")
	}
	if got, ok := c.Cache().Relationship(2); !ok || got != wire.RelationFriend {
		t.Errorf("Relationship(2) = %q, %v; want %q", got, ok, wire.RelationFriend)
	}
	if got := c.State(); got != StateReady {
		t.Errorf("State() = %v; want %v", got, StateReady)
	}
}

func TestHydratePartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/guilds" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/users/me":
			json.NewEncoder(w).Encode(wire.ClientUser{User: wire.User{ID: 1, Username: "self"}})
		default:
			w.Write([]byte("[]"))
		}
	}))
	defer srv.Close()

	c := New(Config{Token: "tok", REST: rest.New(rest.Config{BaseURL: srv.URL, Token: "tok"})})

	err := c.Hydrate(context.Background())
	if err == nil {
		t.Fatal("Hydrate() = nil; want error")
	}
	if !errors.Is(err, ErrHydration) {
		t.Errorf("Hydrate() error = %v; want ErrHydration", err)
	}
	if c.Cache().Hydrated() {
		t.Error("cache hydrated from a failed bootstrap")
	}
}

func TestHydrateWithoutREST(t *testing.T) {
	c := New(Config{Token: "tok"})
	if err := c.Hydrate(context.Background()); err == nil {
		t.Fatal("Hydrate() = nil; want error without a REST client")
	}
}

func TestSendMessageReconcilesPlaceholder(t *testing.T) {
	var gotNonce string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/channels/150/messages" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		var body struct {
			Content string `json:"content"`
			Nonce   string `json:"nonce"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotNonce = body.Nonce

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(wire.Message{
			ID: 9000, ChannelID: 150, AuthorID: 1, Content: body.Content,
		})
	}))
	defer srv.Close()

	c := New(Config{Token: "tok", REST: rest.New(rest.Config{BaseURL: srv.URL, Token: "tok"})})
	c.applyReady(snapshotReady())

	g, _ := c.Cache().Messages(150) // view the channel so a placeholder lands

	nonce, err := c.SendMessage(context.Background(), 150, "hello")
	if err != nil {
		t.Fatalf("SendMessage() = %v; want nil", err)
	}
	if nonce == "" || nonce != gotNonce {
		t.Errorf("nonce sent = %q, returned %q; want equal and non-empty", gotNonce, nonce)
	}

	last, ok := g.Last()
	if !ok {
		t.Fatal("grouper empty after send")
	}
	if last.ID != 9000 {
		t.Errorf("last message ID = %d; want 9000", last.ID)
	}
	if last.State != wire.SendConfirmed {
		t.Errorf("last message state = %v; want %v", last.State, wire.SendConfirmed)
	}
	if got, ok := c.Cache().LastMessage(150); !ok || got != 9000 {
		t.Errorf("LastMessage(150) = %d, %v; want 9000", got, ok)
	}
}

func TestSendMessagePlaceholderJoinsAuthorRun(t *testing.T) {
	serverID := snowflake.New(time.Now(), 1, snowflake.ModelMessage)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Content string `json:"content"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(wire.Message{
			ID: serverID, ChannelID: 150, AuthorID: 1, Content: body.Content,
		})
	}))
	defer srv.Close()

	c := New(Config{Token: "tok", REST: rest.New(rest.Config{BaseURL: srv.URL, Token: "tok"})})
	c.applyReady(snapshotReady())

	// A message from the client one minute ago; the placeholder must
	// extend this run, not open a new group behind a date divider.
	g, _ := c.Cache().Messages(150)
	g.Push(wire.Message{
		ID:        snowflake.New(time.Now().Add(-time.Minute), 0, snowflake.ModelMessage),
		ChannelID: 150,
		AuthorID:  1,
		Content:   "earlier",
	})

	if _, err := c.SendMessage(context.Background(), 150, "hello"); err != nil {
		t.Fatalf("SendMessage() = %v; want nil", err)
	}

	groups := g.Groups()
	for i, grp := range groups {
		if grp.Divider {
			t.Fatalf("groups[%d] is a date divider labeled %q; want none", i, grp.Label)
		}
	}
	if len(groups) != 1 {
		t.Fatalf("len(groups) = %d; want 1", len(groups))
	}
	if got := len(groups[0].Messages); got != 2 {
		t.Fatalf("len(messages) = %d; want 2", got)
	}
	last := groups[0].Messages[1]
	if last.ID != serverID || last.State != wire.SendConfirmed {
		t.Errorf("reconciled message = %+v; want confirmed server copy", last)
	}
}

func TestSendMessageFailureMarksPlaceholder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(Config{Token: "tok", REST: rest.New(rest.Config{BaseURL: srv.URL, Token: "tok"})})
	c.applyReady(snapshotReady())

	g, _ := c.Cache().Messages(150)

	if _, err := c.SendMessage(context.Background(), 150, "hello"); err == nil {
		t.Fatal("SendMessage() = nil; want error")
	}

	last, ok := g.Last()
	if !ok {
		t.Fatal("placeholder missing after failed send")
	}
	if last.State != wire.SendFailed {
		t.Errorf("placeholder state = %v; want %v", last.State, wire.SendFailed)
	}
	if last.SendError == "" {
		t.Error("placeholder has no send error")
	}
}

func TestUpdatePresencePersistsWhileOffline(t *testing.T) {
	store, err := pref.Open(filepath.Join(t.TempDir(), "prefs.json"))
	if err != nil {
		t.Fatal(err)
	}

	c := New(Config{Token: "tok", Prefs: store})

	if err := c.UpdatePresence(wire.StatusIdle, "brb"); err != nil {
		t.Fatalf("UpdatePresence() = %v; want nil while offline", err)
	}

	got := c.presence.Get()
	if got.Status != wire.StatusIdle || got.CustomStatus != "brb" {
		t.Errorf("stored presence = %+v; want idle/brb", got)
	}
}

func TestAckChannelSkipsStaleRoundTrip(t *testing.T) {
	var acks atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			acks.Add(1)
		}
	}))
	defer srv.Close()

	c := New(Config{Token: "tok", REST: rest.New(rest.Config{BaseURL: srv.URL, Token: "tok"})})
	c.applyReady(snapshotReady())

	if err := c.AckChannel(context.Background(), 150, 500); err != nil {
		t.Fatalf("AckChannel() = %v; want nil", err)
	}
	if err := c.AckChannel(context.Background(), 150, 400); err != nil {
		t.Fatalf("stale AckChannel() = %v; want nil", err)
	}

	if got := acks.Load(); got != 1 {
		t.Errorf("REST acks = %d; want 1 (stale ack short-circuits)", got)
	}
	if got, _ := c.Cache().LastAcked(150); got != 500 {
		t.Errorf("LastAcked(150) = %d; want 500", got)
	}
}
