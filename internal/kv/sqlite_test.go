package kv

import (
	"context"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMigrateIdempotent(t *testing.T) {
	s := testStore(t)

	// testStore already ran Migrate; a second run must be a no-op.
	result, err := s.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestGetMissingKey(t *testing.T) {
	s := testStore(t)

	_, ok, err := s.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() reported a missing key as present")
	}
}

func TestSetGetRoundtrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "cooldown.wall", "1700000000000"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, ok, err := s.Get(ctx, "cooldown.wall")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || v != "1700000000000" {
		t.Errorf("Get() = (%q, %v), want (1700000000000, true)", v, ok)
	}
}

func TestSetOverwrites(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", "old"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "k", "new"); err != nil {
		t.Fatal(err)
	}
	v, _, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if v != "new" {
		t.Errorf("Get() = %q, want new", v)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("key still present after Delete()")
	}
	// Deleting again must not error.
	if err := s.Delete(ctx, "k"); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestValuesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Migrate(); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "cooldown.wall", "42"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s2.Close() }()
	v, ok, err := s2.Get(ctx, "cooldown.wall")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || v != "42" {
		t.Errorf("Get() after reopen = (%q, %v), want (42, true)", v, ok)
	}
}
