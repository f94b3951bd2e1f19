// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat messages and identities.
package model

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SystemUsername is the display name used for synthesized system messages.
const SystemUsername = "System"

// TimestampLayout is the ISO-8601 layout used for message timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrInvalidMessage is returned when a message is missing required fields.
var ErrInvalidMessage = errors.New("invalid message")

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Type controls how a message is rendered.
type Type string

const (
	TypeUser   Type = "user"
	TypeTutor  Type = "tutor"
	TypeSystem Type = "system"

	// typeLegacyTutor is what older clients sent for tutors.
	typeLegacyTutor Type = "master"
)

// ParseType normalizes a wire value into a Type.
// Unknown or empty values fall back to TypeUser.
func ParseType(s string) Type {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypeTutor, typeLegacyTutor:
		return TypeTutor
	case TypeSystem:
		return TypeSystem
	default:
		return TypeUser
	}
}

// String returns the string representation of the type.
func (t Type) String() string {
	return string(t)
}

// DisplayName returns a human-readable label for the type.
func (t Type) DisplayName() string {
	switch t {
	case TypeTutor:
		return "Tutor"
	case TypeSystem:
		return "System"
	default:
		return "Student"
	}
}

// =============================================================================
// MESSAGE
// =============================================================================

// Message is a single chat message. Messages are never mutated once created.
// Text and Username are untrusted and must be escaped before display.
type Message struct {
	ID        string `json:"id,omitempty"`
	Username  string `json:"username"`
	Type      Type   `json:"type"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// NewMessage creates a message authored by the given identity.
// The id is built from the sender's user id, the creation time and a random suffix.
func NewMessage(from Identity, text string, now time.Time) Message {
	return Message{
		ID:        newMessageID(from.UserID, now),
		Username:  from.Username,
		Type:      from.Role,
		Text:      text,
		Timestamp: FormatTimestamp(now),
	}
}

// NewSystemMessage creates an informational message with no real sender.
// System messages carry no id and are keyed by their tuple.
func NewSystemMessage(text string, now time.Time) Message {
	return Message{
		Username:  SystemUsername,
		Type:      TypeSystem,
		Text:      text,
		Timestamp: FormatTimestamp(now),
	}
}

// Key returns the identity key used for deduplication.
func (m Message) Key() string {
	if m.ID != "" {
		return "id:" + m.ID
	}
	return "tuple:" + m.Username + "\x00" + m.Text + "\x00" + m.Timestamp
}

// Time parses the message timestamp.
// The second return value is false when the timestamp is malformed.
func (m Message) Time() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, m.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsSystem reports whether the message is an informational system message.
func (m Message) IsSystem() bool {
	return m.Type == TypeSystem
}

// Validate checks that the message carries the fields every consumer relies on.
func (m Message) Validate() error {
	switch {
	case strings.TrimSpace(m.Username) == "":
		return errors.Join(ErrInvalidMessage, errors.New("missing username"))
	case m.Text == "":
		return errors.Join(ErrInvalidMessage, errors.New("missing text"))
	case m.Timestamp == "":
		return errors.Join(ErrInvalidMessage, errors.New("missing timestamp"))
	}
	return nil
}

// Normalize returns a copy with the type folded onto the known set.
func (m Message) Normalize() Message {
	m.Type = ParseType(string(m.Type))
	return m
}

// FormatTimestamp renders t as an ISO-8601 UTC timestamp with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// newMessageID builds "<userID>-<unixMillis>-<suffix>".
func newMessageID(userID string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	if userID == "" {
		userID = "anon"
	}
	return userID + "-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + suffix
}
