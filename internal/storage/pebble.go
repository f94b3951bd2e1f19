// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

const pebblePrefix = "kv:"

// PebbleKV stores keys in an embedded Pebble LSM.
type PebbleKV struct {
	db *pebble.DB
}

// NewPebbleKV opens the Pebble database in dir.
func NewPebbleKV(dir string) (*PebbleKV, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return nil, err
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleKV{db: db}, nil
}

func (s *PebbleKV) Get(_ context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	v, closer, err := s.db.Get([]byte(pebblePrefix + key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *PebbleKV) Set(_ context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return s.db.Set([]byte(pebblePrefix+key), value, pebble.Sync)
}

func (s *PebbleKV) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return s.db.Delete([]byte(pebblePrefix+key), pebble.Sync)
}

func (s *PebbleKV) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
