// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeranaias/tutorchat/internal/logging"
	"github.com/jeranaias/tutorchat/internal/metrics"
	"github.com/jeranaias/tutorchat/internal/model"
	"github.com/jeranaias/tutorchat/internal/storage"
)

// DefaultLimit is the number of messages retained locally.
const DefaultLimit = 200

// =============================================================================
// STORE
// =============================================================================

// Store is the bounded, durable local history.
type Store struct {
	kv      storage.KV
	key     string
	limit   int
	log     *logging.Logger
	metrics *metrics.Metrics

	msgs model.History
}

// Option configures a Store.
type Option func(*Store)

// WithLimit sets the retention cap. Values <= 0 keep the default.
func WithLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records merge statistics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore creates an empty store backed by kv. Call Load to read the
// persisted copy.
func NewStore(kv storage.KV, opts ...Option) *Store {
	s := &Store{
		kv:    kv,
		key:   storage.KeyChatHistory,
		limit: DefaultLimit,
		log:   logging.Nop(),
		msgs:  model.History{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limit returns the retention cap.
func (s *Store) Limit() int { return s.limit }

// Len returns the number of retained messages.
func (s *Store) Len() int { return len(s.msgs) }

// Empty reports whether the store holds no messages.
func (s *Store) Empty() bool { return len(s.msgs) == 0 }

// Messages returns a copy of the retained history.
func (s *Store) Messages() model.History { return s.msgs.Clone() }

// Tail returns a copy of the newest n messages.
func (s *Store) Tail(n int) model.History { return s.msgs.Tail(n).Clone() }

// =============================================================================
// PERSISTENCE
// =============================================================================

// Load replaces the in-memory copy with the persisted one. Missing or
// malformed data loads as an empty history and is only logged. Other read
// errors are returned with the store left empty.
func (s *Store) Load(ctx context.Context) error {
	h, err := s.read(ctx)
	s.msgs = h
	return err
}

// Peek reads the persisted history without touching the in-memory copy.
func (s *Store) Peek(ctx context.Context) (model.History, error) {
	return s.read(ctx)
}

func (s *Store) read(ctx context.Context) (model.History, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return model.History{}, nil
	}
	if err != nil {
		s.log.Error("history_read_failed", "key", s.key, "error", err)
		return model.History{}, fmt.Errorf("failed to read history: %w", err)
	}

	h, skipped, err := Decode(raw)
	if err != nil {
		s.log.Warn("history_malformed", "key", s.key, "error", err)
		return model.History{}, nil
	}
	if skipped > 0 {
		s.log.Warn("history_entries_skipped", "key", s.key, "skipped", skipped)
	}
	// Re-establish the invariants in case another writer broke them.
	h, _ = MergeStats(model.History{}, h)
	return h.Tail(s.limit).Clone(), nil
}

// Persist writes the newest Limit messages to storage.
func (s *Store) Persist(ctx context.Context) error {
	data, err := Encode(s.msgs.Tail(s.limit))
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		s.log.Error("history_persist_failed", "key", s.key, "error", err)
		return fmt.Errorf("failed to persist history: %w", err)
	}
	return nil
}

// =============================================================================
// MUTATION
// =============================================================================

// Merge folds incoming into the store and persists when anything was
// admitted. The in-memory copy is updated even if persisting fails.
func (s *Store) Merge(ctx context.Context, incoming model.History) (Stats, error) {
	merged, stats := MergeStats(s.msgs, incoming)
	s.metrics.ObserveMerge(stats.Admitted, stats.Duplicates, stats.Invalid, len(merged))
	if stats.Invalid > 0 {
		s.log.Warn("merge_entries_skipped", "invalid", stats.Invalid)
	}
	if stats.Admitted == 0 {
		return stats, nil
	}
	s.msgs = s.trim(merged)
	return stats, s.Persist(ctx)
}

// Append merges a single message.
func (s *Store) Append(ctx context.Context, m model.Message) (bool, error) {
	stats, err := s.Merge(ctx, model.History{m})
	return stats.Admitted > 0, err
}

// Replace discards the current history in favour of h and persists it.
func (s *Store) Replace(ctx context.Context, h model.History) error {
	clean, stats := MergeStats(model.History{}, h)
	if stats.Invalid > 0 {
		s.log.Warn("replace_entries_skipped", "invalid", stats.Invalid)
	}
	s.msgs = s.trim(clean)
	return s.Persist(ctx)
}

// Clear empties the store and its persisted copy.
func (s *Store) Clear(ctx context.Context) error {
	s.msgs = model.History{}
	if err := s.kv.Delete(ctx, s.key); err != nil {
		s.log.Error("history_clear_failed", "key", s.key, "error", err)
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Reload merges the persisted copy into memory, picking up writes made by
// another client sharing the same storage. Nothing is written back.
func (s *Store) Reload(ctx context.Context) (Stats, error) {
	disk, err := s.read(ctx)
	if err != nil {
		return Stats{}, err
	}
	merged, stats := MergeStats(s.msgs, disk)
	s.msgs = s.trim(merged)
	return stats, nil
}

func (s *Store) trim(h model.History) model.History {
	if len(h) <= s.limit {
		return h
	}
	return h.Tail(s.limit).Clone()
}
