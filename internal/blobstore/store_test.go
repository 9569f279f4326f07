package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryStoreContentAddressing(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	key1, err := s.Put(ctx, "", []byte("payload"), "text/plain")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	key2, err := s.Put(ctx, "", []byte("payload"), "text/plain")
	if err != nil {
		t.Fatalf("put again: %v", err)
	}
	if key1 != key2 {
		t.Fatalf("same content produced different keys: %s vs %s", key1, key2)
	}
	if s.Len() != 1 {
		t.Fatalf("duplicate content stored twice, len=%d", s.Len())
	}

	got, err := s.Get(ctx, key1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("roundtrip mismatch: %q", got)
	}
}

func TestMemoryStoreIsolatesBuffers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	data := []byte("original")
	key, _ := s.Put(ctx, "k", data, "")
	data[0] = 'X'

	got, _ := s.Get(ctx, key)
	if string(got) != "original" {
		t.Fatalf("store shares the caller's buffer: %q", got)
	}

	// Mutating a returned buffer must not change the stored copy either.
	got[0] = 'Y'
	again, _ := s.Get(ctx, key)
	if string(again) != "original" {
		t.Fatalf("returned buffer aliases store: %q", again)
	}
}

func TestMemoryStoreDeleteAndMissing(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	key, _ := s.Put(ctx, "k", []byte("x"), "")
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, key); err == nil {
		t.Fatal("get after delete should fail")
	}
	// Deleting a missing key is not an error.
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestFilesystemStoreRoundtrip(t *testing.T) {
	s, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	key, err := s.Put(ctx, "", []byte("on disk"), "text/plain")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "on disk" {
		t.Fatalf("roundtrip mismatch: %q", got)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, key); err == nil {
		t.Fatal("get after delete should fail")
	}
}

func TestFilesystemStoreRejectsEscapingKeys(t *testing.T) {
	base := t.TempDir()
	s, err := NewFilesystemStore(base)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	outside := filepath.Join(base, "..", "escaped")
	// An empty key on Put requests content addressing; it is only invalid
	// for lookups.
	for _, key := range []string{"../escaped", "a/../../escaped", `a\b`} {
		if _, err := s.Put(ctx, key, []byte("x"), ""); err == nil {
			t.Errorf("key %q should be rejected", key)
		}
	}
	for _, key := range []string{"", "../escaped", "a/../../escaped", `a\b`} {
		if _, err := s.Get(ctx, key); err == nil {
			t.Errorf("get with key %q should be rejected", key)
		}
	}
	if _, err := os.Stat(outside); !os.IsNotExist(err) {
		t.Fatal("a rejected key still wrote outside the base directory")
	}
}
