package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"buddybot/internal/domain"
)

func TestScopeKey(t *testing.T) {
	if got := ScopeKey("chatSessions", ""); got != "chatSessions" {
		t.Fatalf("anonymous scope: got %q", got)
	}
	if got := ScopeKey("chatSessions", "u1"); got != "chatSessions_u1" {
		t.Fatalf("identity scope: got %q", got)
	}
	if got := ScopeKey("currentSession", "  "); got != "currentSession" {
		t.Fatalf("blank identity should be anonymous: got %q", got)
	}
}

func TestAdapter_CollectionRoundTrip(t *testing.T) {
	kv := NewMemoryKV()
	adapter := NewAdapter(kv, nil)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	sessions := []domain.Session{
		{ID: "2", Messages: []domain.Message{{Role: domain.RoleUser, Content: "hola"}}, UpdatedAt: now},
		{ID: "1", Messages: []domain.Message{}, UpdatedAt: now.Add(-time.Minute)},
	}

	if err := adapter.SaveCollection(ctx, "u1", sessions); err != nil {
		t.Fatalf("save collection: %v", err)
	}

	loaded := adapter.LoadCollection(ctx, "u1")
	if len(loaded) != 2 || loaded[0].ID != "2" || loaded[1].ID != "1" {
		t.Fatalf("unexpected collection: %+v", loaded)
	}
	if len(loaded[0].Messages) != 1 || loaded[0].Messages[0].Content != "hola" {
		t.Fatalf("messages lost in round trip: %+v", loaded[0].Messages)
	}
}

func TestAdapter_ScopeIsolation(t *testing.T) {
	kv := NewMemoryKV()
	adapter := NewAdapter(kv, nil)
	ctx := context.Background()

	a := []domain.Session{{ID: "a1", Messages: []domain.Message{}, UpdatedAt: time.Now().UTC()}}
	if err := adapter.SaveCollection(ctx, "userA", a); err != nil {
		t.Fatalf("save A: %v", err)
	}

	if got := adapter.LoadCollection(ctx, "userB"); len(got) != 0 {
		t.Fatalf("identity B should not see A's sessions: %+v", got)
	}
	if got := adapter.LoadCollection(ctx, ""); len(got) != 0 {
		t.Fatalf("anonymous scope should not see A's sessions: %+v", got)
	}
	if got := adapter.LoadCollection(ctx, "userA"); len(got) != 1 {
		t.Fatalf("identity A lost its sessions: %+v", got)
	}
}

func TestAdapter_SoftFailOnCorruptData(t *testing.T) {
	kv := NewMemoryKV()
	adapter := NewAdapter(kv, nil)
	ctx := context.Background()

	if err := kv.Set(ctx, "chatSessions", []byte("{not json")); err != nil {
		t.Fatalf("seed corrupt data: %v", err)
	}
	if err := kv.Set(ctx, "currentSession", []byte("also broken")); err != nil {
		t.Fatalf("seed corrupt data: %v", err)
	}

	if got := adapter.LoadCollection(ctx, ""); len(got) != 0 {
		t.Fatalf("corrupt collection should load empty, got %+v", got)
	}
	if _, ok := adapter.LoadActive(ctx, ""); ok {
		t.Fatalf("corrupt active session should be absent")
	}
}

func TestAdapter_SoftFailOnBackendError(t *testing.T) {
	adapter := NewAdapter(&failingKV{}, nil)
	ctx := context.Background()

	if got := adapter.LoadCollection(ctx, "u1"); len(got) != 0 {
		t.Fatalf("backend error should load empty, got %+v", got)
	}
	if _, ok := adapter.LoadActive(ctx, "u1"); ok {
		t.Fatalf("backend error should yield absent active session")
	}
}

func TestAdapter_ActiveRoundTrip(t *testing.T) {
	kv := NewMemoryKV()
	adapter := NewAdapter(kv, nil)
	ctx := context.Background()

	if _, ok := adapter.LoadActive(ctx, "u1"); ok {
		t.Fatalf("expected no active session initially")
	}

	active := domain.Session{
		ID:        "1700000000000",
		Messages:  []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := adapter.SaveActive(ctx, "u1", active); err != nil {
		t.Fatalf("save active: %v", err)
	}

	loaded, ok := adapter.LoadActive(ctx, "u1")
	if !ok || loaded.ID != active.ID || len(loaded.Messages) != 1 {
		t.Fatalf("unexpected active session: %+v, %v", loaded, ok)
	}

	if _, ok := adapter.LoadActive(ctx, ""); ok {
		t.Fatalf("anonymous scope should not see u1's active session")
	}
}

func TestAdapter_UserID(t *testing.T) {
	kv := NewMemoryKV()
	adapter := NewAdapter(kv, nil)
	ctx := context.Background()

	if got := adapter.LoadUserID(ctx); got != "" {
		t.Fatalf("expected empty user id, got %q", got)
	}
	if err := adapter.SaveUserID(ctx, " u1 "); err != nil {
		t.Fatalf("save user id: %v", err)
	}
	if got := adapter.LoadUserID(ctx); got != "u1" {
		t.Fatalf("expected u1, got %q", got)
	}
	if err := adapter.SaveUserID(ctx, ""); err != nil {
		t.Fatalf("clear user id: %v", err)
	}
	if got := adapter.LoadUserID(ctx); got != "" {
		t.Fatalf("expected cleared user id, got %q", got)
	}
}

type failingKV struct{}

func (f *failingKV) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("backend down")
}
func (f *failingKV) Set(context.Context, string, []byte) error { return errors.New("backend down") }
func (f *failingKV) Delete(context.Context, string) error      { return errors.New("backend down") }
func (f *failingKV) Close() error                              { return nil }
