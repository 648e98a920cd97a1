package store

import (
	"errors"
	"testing"
)

func TestSQLitePutGetDelete(t *testing.T) {
	s, err := OpenSQLite(t.TempDir(), "events")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	if err := s.Put("k", []byte("v1")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, err := s.Get("k")
	if err != nil || string(got) != "v1" {
		t.Fatalf("get returned %q, %v", got, err)
	}

	// An upsert replaces the value.
	if err := s.Put("k", []byte("v2")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	got, err = s.Get("k")
	if err != nil || string(got) != "v2" {
		t.Fatalf("get after upsert returned %q, %v", got, err)
	}

	if err := s.Delete("k"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.Get("k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSQLiteDeleteMissingKey(t *testing.T) {
	s, err := OpenSQLite(t.TempDir(), "events")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	if err := s.Delete("never-written"); err != nil {
		t.Fatalf("deleting a missing key must not fail: %v", err)
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenSQLite(dir, "artifacts")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := s.Put("k", []byte("v")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reopened, err := OpenSQLite(dir, "artifacts")
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get("k")
	if err != nil || string(got) != "v" {
		t.Fatalf("get after reopen returned %q, %v", got, err)
	}
}
