// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"fmt"

	"github.com/jeranaias/tutorchat/internal/history"
	"github.com/jeranaias/tutorchat/internal/model"
	"github.com/jeranaias/tutorchat/internal/protocol"
)

// ============================================================================
// EVENT KIND
// ============================================================================

// Kind identifies an Event variant.
type Kind int

const (
	KindMessageReceived Kind = iota
	KindHistoryPushed
	KindPeerJoined
	KindPeerLeft
	KindPeerHistoryShared
	KindConnected
	KindDisconnected
	KindStoreChanged
)

// String returns the metric label for the kind.
func (k Kind) String() string {
	switch k {
	case KindMessageReceived:
		return "message"
	case KindHistoryPushed:
		return "history"
	case KindPeerJoined:
		return "peer_joined"
	case KindPeerLeft:
		return "peer_left"
	case KindPeerHistoryShared:
		return "peer_shared"
	case KindConnected:
		return "connected"
	case KindDisconnected:
		return "disconnected"
	case KindStoreChanged:
		return "store_changed"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// ============================================================================
// EVENTS
// ============================================================================

// Event is one inbound occurrence.
type Event interface {
	Kind() Kind
}

// MessageReceived carries one live chat message.
type MessageReceived struct{ Message model.Message }

// HistoryPushed carries the relay's history, sent after join or on request.
type HistoryPushed struct{ History model.History }

// PeerJoined announces another participant.
type PeerJoined struct{ Peer model.Identity }

// PeerLeft announces a departure.
type PeerLeft struct{ Peer model.Identity }

// PeerHistoryShared carries history another client shared with us.
type PeerHistoryShared struct{ History model.History }

// Connected means the transport link is up.
type Connected struct{}

// Disconnected means the transport link went down.
type Disconnected struct{ Reason string }

// StoreChanged means the persisted history was written by another process.
type StoreChanged struct{}

func (MessageReceived) Kind() Kind   { return KindMessageReceived }
func (HistoryPushed) Kind() Kind     { return KindHistoryPushed }
func (PeerJoined) Kind() Kind        { return KindPeerJoined }
func (PeerLeft) Kind() Kind          { return KindPeerLeft }
func (PeerHistoryShared) Kind() Kind { return KindPeerHistoryShared }
func (Connected) Kind() Kind         { return KindConnected }
func (Disconnected) Kind() Kind      { return KindDisconnected }
func (StoreChanged) Kind() Kind      { return KindStoreChanged }

// ============================================================================
// DECODING
// ============================================================================

// Decode converts an inbound envelope into an Event. Unknown events and
// unreadable payloads return an error wrapping protocol.ErrBadPayload.
func Decode(env protocol.Envelope) (Event, error) {
	switch env.Event {
	case protocol.EventMessage:
		var m model.Message
		if err := env.Decode(&m); err != nil {
			return nil, err
		}
		return MessageReceived{Message: m}, nil

	case protocol.EventChatHistory:
		h, err := decodeHistory(env)
		if err != nil {
			return nil, err
		}
		return HistoryPushed{History: h}, nil

	case protocol.EventSharedHistory:
		h, err := decodeHistory(env)
		if err != nil {
			return nil, err
		}
		return PeerHistoryShared{History: h}, nil

	case protocol.EventUserJoined:
		var id model.Identity
		if err := env.Decode(&id); err != nil {
			return nil, err
		}
		return PeerJoined{Peer: id}, nil

	case protocol.EventUserLeft:
		var id model.Identity
		if err := env.Decode(&id); err != nil {
			return nil, err
		}
		return PeerLeft{Peer: id}, nil

	case protocol.EventConnect:
		return Connected{}, nil

	case protocol.EventDisconnect:
		var body struct {
			Reason string `json:"reason"`
		}
		if len(env.Payload) > 0 {
			_ = env.Decode(&body)
		}
		return Disconnected{Reason: body.Reason}, nil

	default:
		return nil, fmt.Errorf("%w: unexpected inbound event %q", protocol.ErrBadPayload, env.Event)
	}
}

func decodeHistory(env protocol.Envelope) (model.History, error) {
	h, _, err := history.Decode(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", protocol.ErrBadPayload, env.Event, err)
	}
	return h, nil
}
