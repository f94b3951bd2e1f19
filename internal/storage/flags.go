// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Flag names persisted alongside the history.
const (
	// FlagHistoryChoiceMade holds the session id for which the user already
	// answered the load/discard prompt.
	FlagHistoryChoiceMade = "historyChoiceMade"
	FlagTheme             = "theme"
	FlagModalShown        = "modalShown"
)

// Flags is a small string map stored as one JSON document under KeyFlags.
type Flags struct {
	kv KV
	mu sync.Mutex
}

// NewFlags wraps kv.
func NewFlags(kv KV) *Flags {
	return &Flags{kv: kv}
}

// Get returns the flag value and whether it is set.
func (f *Flags) Get(ctx context.Context, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load(ctx)
	if err != nil {
		return "", false, err
	}
	v, ok := m[name]
	return v, ok, nil
}

// Set writes a flag.
func (f *Flags) Set(ctx context.Context, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load(ctx)
	if err != nil {
		return err
	}
	m[name] = value
	return f.save(ctx, m)
}

// Unset removes a flag.
func (f *Flags) Unset(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := m[name]; !ok {
		return nil
	}
	delete(m, name)
	return f.save(ctx, m)
}

// All returns a copy of every flag.
func (f *Flags) All(ctx context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load(ctx)
}

func (f *Flags) load(ctx context.Context) (map[string]string, error) {
	raw, err := f.kv.Get(ctx, KeyFlags)
	if errors.Is(err, ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	m := map[string]string{}
	if err := json.Unmarshal(raw, &m); err != nil {
		// A corrupt flags document is treated as empty.
		return map[string]string{}, nil
	}
	return m, nil
}

func (f *Flags) save(ctx context.Context, m map[string]string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode flags: %w", err)
	}
	return f.kv.Set(ctx, KeyFlags, data)
}
