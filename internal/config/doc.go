// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for tutorchat.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - IdentityConfig: Who is chatting, or where to fetch the profile from
//   - TransportConfig: Relay connection and reconnect policy
//   - StorageConfig: Local history backend
//   - ChatConfig: Render pipeline sizing and send throttling
//   - RelayConfig: Settings for `tutorchat relay`
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (TUTORCHAT_*), including a .env file loaded by main
//   - ~/.tutorchat/config.toml
//   - ~/.tutorchat/config.yaml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	limit := cfg.Storage.HistoryLimit
package config
