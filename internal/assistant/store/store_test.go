// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     store
// Description: Tests for the key-value store
// License:     MIT
// ============================================================================

package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	type settings struct {
		ServerURL     string `json:"server_url"`
		SilenceWindow int    `json:"silence_window_ms"`
	}
	in := settings{ServerURL: "wss://example.com/chat", SilenceWindow: 2000}
	if err := s.Put(KeySettings, in); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var out settings
	found, err := s.Get(KeySettings, &out)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("key not found after Put")
	}
	if out != in {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestStore_MissingKey(t *testing.T) {
	s := openTestStore(t)

	var v map[string]any
	found, err := s.Get("never-written", &v)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("missing key reported as found")
	}
}

func TestStore_PutReplaces(t *testing.T) {
	s := openTestStore(t)

	if err := s.Put(KeyDeviceHistory, []string{"a"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(KeyDeviceHistory, []string{"b", "a"}); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	var ids []string
	if _, err := s.Get(KeyDeviceHistory, &ids); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "b" {
		t.Errorf("unexpected value after replace: %v", ids)
	}
}

func TestStore_DeleteMissingIsNoop(t *testing.T) {
	s := openTestStore(t)

	if err := s.Delete("ghost"); err != nil {
		t.Errorf("Delete of missing key returned %v", err)
	}

	if err := s.Put("k", 1); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	var n int
	found, err := s.Get("k", &n)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("key still present after Delete")
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")

	s, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Put(KeyConversationHistory, []string{"hello"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	s.Close()

	s2, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	var msgs []string
	found, err := s2.Get(KeyConversationHistory, &msgs)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found || len(msgs) != 1 || msgs[0] != "hello" {
		t.Errorf("data lost across reopen: found=%v msgs=%v", found, msgs)
	}
}
