package ssache

import (
	"testing"
	"time"
)

func TestKeyspaceSetGet(t *testing.T) {
	ks := NewKeyspace()
	ks.Set("key", "value")

	v, ok := ks.Get("key")
	if !ok {
		t.Fatal("expected key to be present")
	}
	if v != "value" {
		t.Errorf("Get() = %q, want %q", v, "value")
	}
}

func TestKeyspaceGetMissing(t *testing.T) {
	ks := NewKeyspace()
	if _, ok := ks.Get("missing"); ok {
		t.Error("expected missing key to be absent")
	}
}

func TestKeyspaceSetOverwritesClearsTTL(t *testing.T) {
	ks := NewKeyspace()
	ks.Set("key", "value")
	ks.SetTTL("key", time.Millisecond)
	ks.Set("key", "value2")

	_, hasTTL, exists := ks.TTL("key")
	if !exists {
		t.Fatal("expected key to exist")
	}
	if hasTTL {
		t.Error("expected SET to clear a prior TTL")
	}
}

func TestKeyspaceExpiryIsLazy(t *testing.T) {
	ks := NewKeyspace()
	now := time.Now()
	ks.now = func() time.Time { return now }

	ks.Set("key", "value")
	ks.SetTTL("key", time.Second)

	ks.now = func() time.Time { return now.Add(2 * time.Second) }

	if _, ok := ks.Get("key"); ok {
		t.Error("expected expired key to be absent")
	}
}

func TestKeyspaceExpireMissingKeyIsNoop(t *testing.T) {
	ks := NewKeyspace()
	ks.SetTTL("missing", time.Second) // must not panic and must not create the key

	if _, ok := ks.Get("missing"); ok {
		t.Error("expected missing key to remain absent after EXPIRE")
	}
}

func TestKeyspaceIncrOnMissingKeyInitializesToZero(t *testing.T) {
	ks := NewKeyspace()

	n, err := ks.Incr("key-without-value")
	if err != nil {
		t.Fatalf("Incr() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Incr() = %d, want 0", n)
	}

	v, ok := ks.Get("key-without-value")
	if !ok || v != "0" {
		t.Errorf("Get() = (%q, %v), want (\"0\", true)", v, ok)
	}
}

func TestKeyspaceIncrDecr(t *testing.T) {
	ks := NewKeyspace()
	ks.Set("key", "1")

	n, err := ks.Incr("key")
	if err != nil || n != 2 {
		t.Fatalf("Incr() = (%d, %v), want (2, nil)", n, err)
	}

	n, err = ks.Decr("key")
	if err != nil || n != 1 {
		t.Fatalf("Decr() = (%d, %v), want (1, nil)", n, err)
	}
}

func TestKeyspaceDecrBelowZero(t *testing.T) {
	ks := NewKeyspace()

	if n, err := ks.Decr("negative"); err != nil || n != 0 {
		t.Fatalf("Decr() = (%d, %v), want (0, nil)", n, err)
	}
	if n, err := ks.Decr("negative"); err != nil || n != -1 {
		t.Fatalf("Decr() = (%d, %v), want (-1, nil)", n, err)
	}
}

func TestKeyspaceIncrNonNumeric(t *testing.T) {
	ks := NewKeyspace()
	ks.Set("key", "value")

	if _, err := ks.Incr("key"); err != ErrNotANumber {
		t.Errorf("Incr() error = %v, want %v", err, ErrNotANumber)
	}

	v, _ := ks.Get("key")
	if v != "value" {
		t.Errorf("non-numeric INCR must not mutate the stored value, got %q", v)
	}
}

func TestKeyspaceDelExistsTTLPersist(t *testing.T) {
	ks := NewKeyspace()
	ks.Set("key", "value")

	if !ks.Exists("key") {
		t.Fatal("expected key to exist")
	}

	ks.SetTTL("key", time.Minute)
	ms, hasTTL, exists := ks.TTL("key")
	if !exists || !hasTTL || ms <= 0 {
		t.Fatalf("TTL() = (%d, %v, %v), want (>0, true, true)", ms, hasTTL, exists)
	}

	if !ks.Persist("key") {
		t.Error("expected Persist to clear the TTL")
	}
	_, hasTTL, _ = ks.TTL("key")
	if hasTTL {
		t.Error("expected no TTL after Persist")
	}

	if !ks.Del("key") {
		t.Error("expected Del to report the key was present")
	}
	if ks.Exists("key") {
		t.Error("expected key to be gone after Del")
	}
	if ks.Del("key") {
		t.Error("expected second Del to report absence")
	}
}

func TestKeyspaceSnapshotIterAndReplaceAll(t *testing.T) {
	ks := NewKeyspace()
	ks.Set("a", "1")
	ks.Set("b", "2")

	records := ks.SnapshotIter()
	if len(records) != 2 {
		t.Fatalf("SnapshotIter() returned %d records, want 2", len(records))
	}

	other := NewKeyspace()
	other.ReplaceAll(records)

	v, ok := other.Get("a")
	if !ok || v != "1" {
		t.Errorf("Get(a) = (%q, %v), want (\"1\", true)", v, ok)
	}
	v, ok = other.Get("b")
	if !ok || v != "2" {
		t.Errorf("Get(b) = (%q, %v), want (\"2\", true)", v, ok)
	}
}

func TestKeyspaceLen(t *testing.T) {
	ks := NewKeyspace()
	ks.Set("a", "1")
	ks.Set("b", "2")

	if n := ks.Len(); n != 2 {
		t.Errorf("Len() = %d, want 2", n)
	}
}
