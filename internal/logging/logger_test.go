// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chat.log")

	log, err := New(Options{Mode: "production", Level: "debug", File: path})
	require.NoError(t, err)

	log.Info("history_loaded", "count", 3, "token", "abc.def.ghi", "user_id", "42")
	log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	require.Contains(t, out, "history_loaded")
	require.Contains(t, out, "[REDACTED]")
	require.NotContains(t, out, "abc.def.ghi")
	require.Contains(t, out, "hash:")
	require.False(t, strings.Contains(out, `"user_id":"42"`), "user id must be hashed")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	require.Error(t, err)
}

func TestNop(t *testing.T) {
	log := Nop().With("component", "test")
	log.Debug("ignored")
	log.Error("ignored", "odd")
}
