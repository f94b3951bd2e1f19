// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// Identity is the current user as resolved from stored credentials.
// The JSON shape matches the join/leave payloads on the wire.
type Identity struct {
	Username string `json:"username"`
	Role     Type   `json:"type"`
	UserID   string `json:"userId"`
}

// Valid reports whether the identity can take part in a chat session.
func (i Identity) Valid() bool {
	return strings.TrimSpace(i.Username) != "" && strings.TrimSpace(i.UserID) != ""
}

// Label returns "username (Role)" for headers and status lines.
func (i Identity) Label() string {
	return i.Username + " (" + i.Role.DisplayName() + ")"
}
