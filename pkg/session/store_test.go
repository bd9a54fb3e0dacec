package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()

	record := Record{
		ConversationID: "conv-1",
		Model:          "user_profile",
		Values:         map[string]any{"name": "Ann", "address": map[string]any{"city": "Lisbon"}},
		Turns: []ConversationTurn{
			{Role: RoleUser, Content: "hi", Timestamp: time.Now().UTC()},
		},
		CompleteHint: true,
	}

	if err := store.Save(context.Background(), record); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(record, loaded); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}

	// The stored record must not alias caller maps.
	record.Values["name"] = "mutated"
	reloaded, err := store.Load(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Values["name"] != "Ann" {
		t.Fatalf("store aliases caller values: %v", reloaded.Values["name"])
	}
}

func TestMemoryStoreMissing(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()

	if _, err := store.Load(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()

	record := Record{ConversationID: "conv-2"}
	if err := store.Save(context.Background(), record); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(context.Background(), "conv-2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Load(context.Background(), "conv-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(10 * time.Millisecond)
	defer store.Close()

	if err := store.Save(context.Background(), Record{ConversationID: "conv-3"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if _, err := store.Load(context.Background(), "conv-3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired record to be gone, got %v", err)
	}
}

func TestMemoryStoreRejectsEmptyID(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()

	if err := store.Save(context.Background(), Record{}); err == nil {
		t.Fatalf("expected empty id error")
	}
}

func TestRecordJSONShape(t *testing.T) {
	record := Record{
		ConversationID: "conv-4",
		Model:          "demo",
		Values:         map[string]any{"age": 30},
		CompleteHint:   true,
		UpdatedAt:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	payload, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Record
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ConversationID != "conv-4" || !decoded.CompleteHint {
		t.Fatalf("unexpected decode: %+v", decoded)
	}
	// JSON numbers decode as float64; the session layer works with any.
	if decoded.Values["age"] != float64(30) {
		t.Fatalf("unexpected values decode: %+v", decoded.Values)
	}
}

func TestSnapshotAndRestore(t *testing.T) {
	s := New(demoSchema(), WithValues(map[string]any{"name": "Ann"}))
	s.AppendTurn(RoleUser, "fill my profile")
	s.SetCompleteHint(true)

	record := Snapshot(s, "conv-5", "demo")
	if record.ConversationID != "conv-5" || record.Model != "demo" {
		t.Fatalf("unexpected snapshot identity: %+v", record)
	}

	restored := RestoreSession(demoSchema(), record)
	if diff := cmp.Diff(s.Values(), restored.Values()); diff != "" {
		t.Fatalf("restored values mismatch (-want +got):\n%s", diff)
	}
	if len(restored.Turns()) != 1 {
		t.Fatalf("expected history restored, got %d turns", len(restored.Turns()))
	}
	if !restored.CompleteHint() {
		t.Fatalf("expected completion hint restored")
	}
}
