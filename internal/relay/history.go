// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"sync"

	"github.com/jeranaias/tutorchat/internal/history"
	"github.com/jeranaias/tutorchat/internal/model"
)

// DefaultRetention is how many messages the relay keeps.
const DefaultRetention = 100

// History is the server-held chat history.
type History interface {
	// Load returns the retained history, oldest first.
	Load(ctx context.Context) (model.History, error)
	// Append adds one message. Duplicates are ignored.
	Append(ctx context.Context, m model.Message) error
	// Merge folds a client-pushed history in and reports how many messages
	// were admitted.
	Merge(ctx context.Context, h model.History) (int, error)
}

// MemoryHistory keeps history in process memory.
type MemoryHistory struct {
	mu        sync.Mutex
	retention int
	msgs      model.History
}

// NewMemoryHistory returns an empty history retaining at most retention
// messages.
func NewMemoryHistory(retention int) *MemoryHistory {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryHistory{retention: retention, msgs: model.History{}}
}

func (h *MemoryHistory) Load(_ context.Context) (model.History, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.msgs.Clone(), nil
}

func (h *MemoryHistory) Append(ctx context.Context, m model.Message) error {
	_, err := h.Merge(ctx, model.History{m})
	return err
}

func (h *MemoryHistory) Merge(_ context.Context, incoming model.History) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	merged, stats := history.MergeStats(h.msgs, incoming)
	h.msgs = merged.Tail(h.retention).Clone()
	return stats.Admitted, nil
}
