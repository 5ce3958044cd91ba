package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// TestValidateKey_Valid verifies acceptable keys pass validation.
func TestValidateKey_Valid(t *testing.T) {
	keys := []string{
		"simple",
		"with:colons",
		"with/slashes",
		"req:global:anonymous:0123456789abcdef",
		strings.Repeat("a", MaxKeyLength),
	}

	for _, key := range keys {
		if err := ValidateKey(key); err != nil {
			t.Errorf("ValidateKey(%q) = %v, want nil", key, err)
		}
	}
}

// TestValidateKey_Invalid verifies rejected keys report the right sentinel.
func TestValidateKey_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want error
	}{
		{"empty", "", ErrInvalidKey},
		{"whitespace only", "   ", ErrInvalidKey},
		{"newline", "a\nb", ErrInvalidKey},
		{"carriage return", "a\rb", ErrInvalidKey},
		{"too long", strings.Repeat("a", MaxKeyLength+1), ErrKeyTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateKey(tt.key); !errors.Is(err, tt.want) {
				t.Errorf("ValidateKey(%q) = %v, want %v", tt.key, err, tt.want)
			}
		})
	}
}

// TestEntry_Expired verifies TTL semantics including the zero-TTL case.
func TestEntry_Expired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		entry Entry
		want  bool
	}{
		{"zero ttl never expires", Entry{CreatedAt: now.Add(-time.Hour)}, false},
		{"negative ttl never expires", Entry{CreatedAt: now.Add(-time.Hour), TTL: -1}, false},
		{"live", Entry{CreatedAt: now, TTL: time.Minute}, false},
		{"expired", Entry{CreatedAt: now.Add(-2 * time.Minute), TTL: time.Minute}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.Expired(now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestMemoryStore_SetGet verifies basic round trip.
func TestMemoryStore_SetGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	entry := &Entry{
		Key:       "user:1",
		Value:     map[string]any{"id": 1},
		Tags:      []string{"users"},
		CreatedAt: time.Now(),
	}
	if err := s.Set(ctx, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok, err := s.Get(ctx, "user:1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected entry to be found")
	}
	if got.Key != "user:1" || len(got.Tags) != 1 {
		t.Errorf("unexpected entry: %+v", got)
	}
}

// TestMemoryStore_GetMiss verifies a miss is (nil, false, nil), not an error.
func TestMemoryStore_GetMiss(t *testing.T) {
	s := NewMemoryStore()

	entry, ok, err := s.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("miss should not be an error: %v", err)
	}
	if ok || entry != nil {
		t.Errorf("expected (nil, false), got (%v, %v)", entry, ok)
	}
}

// TestMemoryStore_InvalidKey verifies Set rejects invalid keys.
func TestMemoryStore_InvalidKey(t *testing.T) {
	s := NewMemoryStore()

	err := s.Set(context.Background(), &Entry{Key: ""})
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

// TestMemoryStore_TTLExpiry verifies expired entries read as misses.
func TestMemoryStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.Set(ctx, &Entry{
		Key:       "short",
		Value:     "v",
		CreatedAt: time.Now().Add(-time.Minute),
		TTL:       time.Second,
	})
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	_, ok, err := s.Get(ctx, "short")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("expired entry should read as a miss")
	}

	ok, err = s.Has(ctx, "short")
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if ok {
		t.Error("Has should not report expired entries")
	}
}

// TestMemoryStore_Delete verifies delete is idempotent and reports removal.
func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Set(ctx, &Entry{Key: "k", Value: "v", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	deleted, err := s.Delete(ctx, "k")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !deleted {
		t.Error("expected first delete to report removal")
	}

	deleted, err = s.Delete(ctx, "k")
	if err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if deleted {
		t.Error("expected second delete to report no removal")
	}
}

// TestMemoryStore_Clear verifies clear removes everything.
func TestMemoryStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, key := range []string{"a", "b", "c"} {
		if err := s.Set(ctx, &Entry{Key: key, Value: key, CreatedAt: time.Now()}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	for _, key := range []string{"a", "b", "c"} {
		if ok, _ := s.Has(ctx, key); ok {
			t.Errorf("key %q survived clear", key)
		}
	}
}

// TestMemoryStore_Iterate verifies iteration visits live entries and stops
// when fn returns false.
func TestMemoryStore_Iterate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, key := range []string{"a", "b", "c"} {
		if err := s.Set(ctx, &Entry{Key: key, Value: key, CreatedAt: time.Now()}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	// One expired entry that must be skipped.
	if err := s.Set(ctx, &Entry{Key: "old", Value: "x", CreatedAt: time.Now().Add(-time.Hour), TTL: time.Second}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	seen := make(map[string]bool)
	err := s.Iterate(ctx, func(entry *Entry) bool {
		seen[entry.Key] = true
		return true
	})
	if err != nil {
		t.Fatalf("Iterate failed: %v", err)
	}
	if len(seen) != 3 {
		t.Errorf("expected 3 live entries, saw %d: %v", len(seen), seen)
	}
	if seen["old"] {
		t.Error("expired entry should not be visited")
	}

	visits := 0
	err = s.Iterate(ctx, func(entry *Entry) bool {
		visits++
		return false
	})
	if err != nil {
		t.Fatalf("Iterate failed: %v", err)
	}
	if visits != 1 {
		t.Errorf("expected iteration to stop after 1 visit, got %d", visits)
	}
}

// TestMemoryStore_IterateCancelled verifies context cancellation stops iteration.
func TestMemoryStore_IterateCancelled(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Set(context.Background(), &Entry{Key: "k", Value: "v", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Iterate(ctx, func(entry *Entry) bool { return true })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
