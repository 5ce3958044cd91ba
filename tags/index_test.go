package tags

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/jonwraymond/cachelayer/store"
)

func seedEntry(t *testing.T, s store.Store, key string, tagList ...string) {
	t.Helper()
	err := s.Set(context.Background(), &store.Entry{
		Key:       key,
		Value:     key,
		Tags:      tagList,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed %q failed: %v", key, err)
	}
}

// TestIndex_AddKeys verifies registration and sorted retrieval.
func TestIndex_AddKeys(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex(store.NewMemoryStore())

	if err := idx.Add(ctx, "k2", []string{"users"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := idx.Add(ctx, "k1", []string{"users", "admins"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	// Duplicate registration is a no-op.
	if err := idx.Add(ctx, "k1", []string{"users"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	got, err := idx.Keys(ctx, "users")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	want := []string{"k1", "k2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keys = %v, want %v", got, want)
	}

	got, err = idx.Keys(ctx, "admins")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"k1"}) {
		t.Errorf("Keys(admins) = %v", got)
	}
}

// TestIndex_UnknownTag verifies an unknown tag yields an empty set.
func TestIndex_UnknownTag(t *testing.T) {
	idx := NewIndex(store.NewMemoryStore())

	got, err := idx.Keys(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty set, got %v", got)
	}
}

// TestIndex_Remove verifies deregistration drops empty tags entirely.
func TestIndex_Remove(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	idx := NewIndex(s)

	if err := idx.Add(ctx, "k1", []string{"users"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := idx.Add(ctx, "k2", []string{"users"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := idx.Remove(ctx, "k1", []string{"users"}); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	got, _ := idx.Keys(ctx, "users")
	if !reflect.DeepEqual(got, []string{"k2"}) {
		t.Errorf("Keys = %v, want [k2]", got)
	}

	if err := idx.Remove(ctx, "k2", []string{"users"}); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	// The record itself must be gone, not an empty list.
	if ok, _ := s.Has(ctx, indexKeyPrefix+"users"); ok {
		t.Error("empty tag should drop its index record")
	}
}

// TestIndex_Drop verifies the record disappears wholesale.
func TestIndex_Drop(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex(store.NewMemoryStore())

	if err := idx.Add(ctx, "k1", []string{"users"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := idx.Drop(ctx, "users"); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}

	got, _ := idx.Keys(ctx, "users")
	if len(got) != 0 {
		t.Errorf("expected no keys after drop, got %v", got)
	}
}

// TestIndex_Rebuild verifies the index reconstructs from entry tags and
// discards stale index records.
func TestIndex_Rebuild(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	idx := NewIndex(s)

	seedEntry(t, s, "k1", "users")
	seedEntry(t, s, "k2", "users", "admins")
	seedEntry(t, s, "k3")

	// A stale index record pointing at keys that no longer exist.
	err := s.Set(ctx, &store.Entry{
		Key:       indexKeyPrefix + "ghost",
		Value:     []string{"gone"},
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed stale record failed: %v", err)
	}

	if err := idx.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	got, _ := idx.Keys(ctx, "users")
	if !reflect.DeepEqual(got, []string{"k1", "k2"}) {
		t.Errorf("Keys(users) = %v", got)
	}
	got, _ = idx.Keys(ctx, "admins")
	if !reflect.DeepEqual(got, []string{"k2"}) {
		t.Errorf("Keys(admins) = %v", got)
	}
	got, _ = idx.Keys(ctx, "ghost")
	if len(got) != 0 {
		t.Errorf("stale tag survived rebuild: %v", got)
	}
}

// TestIndex_SerializedValueShape verifies the index tolerates adapters that
// hand values back as []any after a serialization round trip.
func TestIndex_SerializedValueShape(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	idx := NewIndex(s)

	err := s.Set(ctx, &store.Entry{
		Key:       indexKeyPrefix + "users",
		Value:     []any{"k1", "k2"},
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	got, err := idx.Keys(ctx, "users")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"k1", "k2"}) {
		t.Errorf("Keys = %v, want [k1 k2]", got)
	}
}

// TestIsIndexKey verifies the namespace predicate.
func TestIsIndexKey(t *testing.T) {
	if !IsIndexKey(indexKeyPrefix + "users") {
		t.Error("index key not recognized")
	}
	if IsIndexKey("users") {
		t.Error("plain key misclassified as index key")
	}
}
