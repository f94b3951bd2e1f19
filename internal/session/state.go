// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

// State is the lifecycle state of a session.
type State int

const (
	StateInit State = iota
	StateAwaitingHistoryChoice
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateAwaitingHistoryChoice:
		return "awaiting-history-choice"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Choice is the answer to the load/discard prompt.
type Choice int

const (
	ChoiceUndecided Choice = iota
	ChoiceLoad
	ChoiceDiscard
)

func (c Choice) String() string {
	switch c {
	case ChoiceLoad:
		return "load"
	case ChoiceDiscard:
		return "discard"
	default:
		return "undecided"
	}
}
