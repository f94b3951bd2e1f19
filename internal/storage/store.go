// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Well-known keys.
const (
	KeyChatHistory = "chatHistory"
	KeyFlags       = "flags"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendPebble = "pebble"
	BackendMemory = "memory"
)

// =============================================================================
// INTERFACES
// =============================================================================

// KV is the storage contract shared by every backend.
type KV interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the value for key durably.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Watcher is implemented by backends that can report writes made by other
// processes sharing the same storage.
type Watcher interface {
	// Watch streams keys changed externally until ctx is done.
	Watch(ctx context.Context) (<-chan string, error)
}

// =============================================================================
// FACTORY
// =============================================================================

// Options selects and configures a backend.
type Options struct {
	Backend string
	// Dir holds the backend's files. Empty means ~/.tutorchat/data.
	Dir string
}

// DefaultDir returns the default data directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".tutorchat", "data")
	}
	return filepath.Join(home, ".tutorchat", "data")
}

// Open creates the backend named by opts.Backend.
func Open(opts Options) (KV, error) {
	dir := opts.Dir
	if dir == "" {
		dir = DefaultDir()
	}
	switch strings.ToLower(opts.Backend) {
	case "", BackendFile:
		return NewFileKV(dir)
	case BackendSQLite:
		return NewSQLiteKV(filepath.Join(dir, "tutorchat.db"))
	case BackendPebble:
		return NewPebbleKV(filepath.Join(dir, "pebble"))
	case BackendMemory:
		return NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned when a key has never been written.
	ErrNotFound = &StoreError{Message: "key not found"}
	// ErrInvalidKey is returned for keys that cannot be mapped to storage.
	ErrInvalidKey = &StoreError{Message: "invalid key"}
	// ErrUnknownBackend is returned by Open for unsupported backend names.
	ErrUnknownBackend = &StoreError{Message: "unknown storage backend"}
	// ErrClosed is returned after Close.
	ErrClosed = &StoreError{Message: "store closed"}
)

// StoreError represents a storage-related error.
// It can be compared using errors.Is.
type StoreError struct {
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

func validateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
