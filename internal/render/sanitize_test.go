// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"testing"

	"github.com/jeranaias/tutorchat/internal/model"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"keeps newlines and tabs", "a\n\tb", "a\n\tb"},
		{"strips color", "\x1b[31mred\x1b[0m", "red"},
		{"strips osc title", "\x1b]0;pwned\x07text", "text"},
		{"drops carriage return", "over\rwrite", "overwrite"},
		{"drops bell", "ding\x07", "ding"},
		{"drops bidi override", "abc\u202edef", "abcdef"},
		{"markup stays literal", "<script>alert(1)</script>", "<script>alert(1)</script>"},
		{"nfc", "e\u0301", "\u00e9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeMessage(t *testing.T) {
	m := SanitizeMessage(model.Message{Username: "\x1b[1mbob", Text: "hi\x1b[2J"})
	if m.Username != "bob" || m.Text != "hi" {
		t.Errorf("SanitizeMessage = %+v", m)
	}
}
