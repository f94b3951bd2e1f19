// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeranaias/tutorchat/internal/model"
)

// Outbound (client to relay) events.
const (
	EventJoin          = "join"
	EventLeave         = "leave"
	EventMessage       = "message"
	EventGetHistory    = "get-chat-history"
	EventUpdateHistory = "update-server-history"
	EventShareHistory  = "share-history"
)

// Inbound (relay to client) events. EventMessage is used in both directions.
const (
	EventChatHistory   = "chat-history"
	EventUserJoined    = "user-joined"
	EventUserLeft      = "user-left"
	EventSharedHistory = "receive-shared-history"
)

// Synthetic events produced by a transport about its own link state.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)

// ErrBadPayload is returned when a payload does not decode into the
// structure its event requires.
var ErrBadPayload = errors.New("bad payload")

// Envelope is one frame on the wire.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SharePayload is the body of share-history.
type SharePayload struct {
	UserID  string        `json:"userId"`
	History model.History `json:"history"`
}

// NewEnvelope encodes payload into an envelope. A nil payload is omitted.
func NewEnvelope(event string, payload any) (Envelope, error) {
	env := Envelope{Event: event}
	if payload == nil {
		return env, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		env.Payload = raw
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	env.Payload = data
	return env, nil
}

// MustEnvelope is NewEnvelope for payloads that cannot fail to encode.
func MustEnvelope(event string, payload any) Envelope {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		panic(err)
	}
	return env
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: %s has no payload", ErrBadPayload, e.Event)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadPayload, e.Event, err)
	}
	return nil
}

// IsOutbound reports whether event is one a client may send to the relay.
func IsOutbound(event string) bool {
	switch event {
	case EventJoin, EventLeave, EventMessage, EventGetHistory, EventUpdateHistory, EventShareHistory:
		return true
	}
	return false
}
