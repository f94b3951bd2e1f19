// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/x/ansi"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/tutorchat/internal/model"
)

// Sanitize makes untrusted text safe to print on a terminal: escape
// sequences are stripped, control characters other than newline and tab are
// dropped, and the result is NFC-normalized.
func Sanitize(s string) string {
	s = ansi.Strip(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\r':
			return -1
		case unicode.IsControl(r):
			return -1
		case unicode.Is(unicode.Cf, r) && r != '\u200d':
			// Format characters such as bidi overrides can reorder what the
			// reader sees. ZWJ stays for emoji sequences.
			return -1
		}
		return r
	}, s)
	return norm.NFC.String(s)
}

// SanitizeMessage returns m with its display fields sanitized.
func SanitizeMessage(m model.Message) model.Message {
	m.Username = Sanitize(m.Username)
	m.Text = Sanitize(m.Text)
	return m
}
