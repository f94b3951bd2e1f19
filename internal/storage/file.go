// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/tutorchat/internal/util"
)

// FileKV stores each key as <dir>/<key>.json.
type FileKV struct {
	dir string

	mu sync.Mutex
	// written tracks the hash of the last value this process wrote per key,
	// so the watcher can ignore its own writes.
	written map[string]string
	closed  bool
}

// NewFileKV creates a file backend rooted at dir.
func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileKV{dir: dir, written: make(map[string]string)}, nil
}

// Dir returns the backing directory.
func (s *FileKV) Dir() string {
	return s.dir
}

func (s *FileKV) Get(_ context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *FileKV) Set(_ context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(s.filePath(key), value, 0644); err != nil {
		return err
	}
	s.written[key] = contentHash(value)
	return nil
}

func (s *FileKV) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.filePath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	s.written[key] = ""
	return nil
}

func (s *FileKV) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// =============================================================================
// WATCH
// =============================================================================

// Watch reports keys rewritten by another process. Writes made through this
// FileKV are recognised by content hash and suppressed.
func (s *FileKV) Watch(ctx context.Context) (<-chan string, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return nil, err
	}

	out := make(chan string, 16)
	go func() {
		defer close(out)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
					continue
				}
				key, ok := s.keyFromPath(ev.Name)
				if !ok || s.isOwnWrite(key) {
					continue
				}
				select {
				case out <- key:
				case <-ctx.Done():
					return
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *FileKV) isOwnWrite(key string) bool {
	data, err := os.ReadFile(s.filePath(key))
	current := ""
	if err == nil {
		current = contentHash(data)
	} else if !errors.Is(err, os.ErrNotExist) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	last, seen := s.written[key]
	if !seen {
		return false
	}
	if last == current {
		return true
	}
	// Record the external value so repeated events for it collapse.
	s.written[key] = current
	return false
}

func (s *FileKV) keyFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".tmp-") || !strings.HasSuffix(base, ".json") {
		return "", false
	}
	key := strings.TrimSuffix(base, ".json")
	return key, validateKey(key) == nil
}

func (s *FileKV) filePath(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
