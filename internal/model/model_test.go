// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewMessage(t *testing.T) {
	me := Identity{Username: "olena", Role: TypeTutor, UserID: "42"}
	now := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)

	msg := NewMessage(me, "hello", now)

	if !strings.HasPrefix(msg.ID, "42-1740832200000-") {
		t.Errorf("ID = %q, want prefix 42-1740832200000-", msg.ID)
	}
	if len(msg.ID) != len("42-1740832200000-")+9 {
		t.Errorf("ID suffix should be 9 chars, got %q", msg.ID)
	}
	if msg.Username != "olena" || msg.Type != TypeTutor || msg.Text != "hello" {
		t.Errorf("unexpected message fields: %+v", msg)
	}
	if msg.Timestamp != "2025-03-01T12:30:00.000Z" {
		t.Errorf("Timestamp = %q", msg.Timestamp)
	}
}

func TestNewMessage_UniqueIDs(t *testing.T) {
	me := Identity{Username: "a", UserID: "1"}
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewMessage(me, "x", now).ID
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestMessage_Key(t *testing.T) {
	withID := Message{ID: "m1", Username: "a", Text: "t", Timestamp: "2025-01-01T00:00:00Z"}
	if withID.Key() != "id:m1" {
		t.Errorf("Key() = %q, want id:m1", withID.Key())
	}

	a := Message{Username: "a", Text: "hi", Timestamp: "2025-01-01T00:00:00Z"}
	b := Message{Username: "a", Text: "hi", Timestamp: "2025-01-01T00:00:00Z"}
	if a.Key() != b.Key() {
		t.Error("identical tuples must share a key")
	}

	// The separator keeps ("ab","c") and ("a","bc") apart.
	c := Message{Username: "ab", Text: "c", Timestamp: "t"}
	d := Message{Username: "a", Text: "bc", Timestamp: "t"}
	if c.Key() == d.Key() {
		t.Error("distinct tuples must not collide")
	}
}

func TestMessage_Time(t *testing.T) {
	tests := []struct {
		ts string
		ok bool
	}{
		{"2025-01-01T10:00:00Z", true},
		{"2025-01-01T10:00:00.123Z", true},
		{"2025-01-01T10:00:00+02:00", true},
		{"yesterday", false},
		{"", false},
	}
	for _, tt := range tests {
		_, ok := Message{Timestamp: tt.ts}.Time()
		if ok != tt.ok {
			t.Errorf("Time(%q) ok = %v, want %v", tt.ts, ok, tt.ok)
		}
	}
}

func TestMessage_Validate(t *testing.T) {
	good := Message{Username: "a", Text: "b", Timestamp: "c"}
	if err := good.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	bad := []Message{
		{Text: "b", Timestamp: "c"},
		{Username: "  ", Text: "b", Timestamp: "c"},
		{Username: "a", Timestamp: "c"},
		{Username: "a", Text: "b"},
	}
	for i, m := range bad {
		if err := m.Validate(); !errors.Is(err, ErrInvalidMessage) {
			t.Errorf("case %d: Validate() = %v, want ErrInvalidMessage", i, err)
		}
	}
}

func TestParseType(t *testing.T) {
	tests := map[string]Type{
		"user":    TypeUser,
		"tutor":   TypeTutor,
		"master":  TypeTutor,
		"MASTER":  TypeTutor,
		"system":  TypeSystem,
		"":        TypeUser,
		"unknown": TypeUser,
	}
	for in, want := range tests {
		if got := ParseType(in); got != want {
			t.Errorf("ParseType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewSystemMessage(t *testing.T) {
	msg := NewSystemMessage("olena joined the chat", time.Now())
	if !msg.IsSystem() || msg.ID != "" || msg.Username != SystemUsername {
		t.Errorf("unexpected system message: %+v", msg)
	}
}

// =============================================================================
// HISTORY TESTS
// =============================================================================

func TestHistory_Tail(t *testing.T) {
	h := History{{ID: "1"}, {ID: "2"}, {ID: "3"}}

	if got := h.Tail(2); len(got) != 2 || got[0].ID != "2" {
		t.Errorf("Tail(2) = %+v", got)
	}
	if got := h.Tail(10); len(got) != 3 {
		t.Errorf("Tail(10) len = %d, want 3", len(got))
	}
	if got := h.Tail(0); len(got) != 0 {
		t.Errorf("Tail(0) len = %d, want 0", len(got))
	}
}

func TestHistory_CloneIsIndependent(t *testing.T) {
	h := History{{ID: "1"}}
	c := h.Clone()
	c[0].ID = "changed"
	if h[0].ID != "1" {
		t.Error("Clone must not share storage")
	}
}

func TestIdentity_Valid(t *testing.T) {
	if (Identity{Username: "a"}).Valid() {
		t.Error("identity without user id must be invalid")
	}
	if !(Identity{Username: "a", UserID: "1"}).Valid() {
		t.Error("identity with username and user id must be valid")
	}
}
