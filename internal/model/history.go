// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// History is an ordered list of messages, ascending by timestamp.
// It is a best-effort reconstruction and need not be complete.
type History []Message

// Clone returns a copy that shares no backing array with h.
func (h History) Clone() History {
	if h == nil {
		return nil
	}
	out := make(History, len(h))
	copy(out, h)
	return out
}

// Tail returns the most recent n messages.
func (h History) Tail(n int) History {
	if n <= 0 {
		return History{}
	}
	if len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}

// Keys returns the identity keys of h in order.
func (h History) Keys() []string {
	keys := make([]string, len(h))
	for i, m := range h {
		keys[i] = m.Key()
	}
	return keys
}

// Contains reports whether a message with the same identity key is present.
func (h History) Contains(m Message) bool {
	key := m.Key()
	for _, existing := range h {
		if existing.Key() == key {
			return true
		}
	}
	return false
}
