// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantLen     int
		wantSkipped int
		wantErr     error
	}{
		{"empty", "", 0, 0, nil},
		{"null", "null", 0, 0, nil},
		{"empty array", "[]", 0, 0, nil},
		{"not an array", `{"id":"x"}`, 0, 0, ErrMalformed},
		{"garbage", `[{"id":`, 0, 0, ErrMalformed},
		{
			"mixed entries",
			`[{"id":"a","username":"u","type":"user","text":"hi","timestamp":"2025-03-01T12:00:00.000Z"},
			  42,
			  {"username":"u","text":"","timestamp":"2025-03-01T12:00:00.000Z"},
			  {"username":"System","type":"system","text":"joined","timestamp":"2025-03-01T12:01:00.000Z"}]`,
			2, 2, nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, skipped, err := Decode([]byte(tt.raw))
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "err = %v", err)
			} else {
				require.NoError(t, err)
			}
			assert.NotNil(t, h)
			assert.Len(t, h, tt.wantLen)
			assert.Equal(t, tt.wantSkipped, skipped)
		})
	}
}

func TestEncode_NilIsEmptyArray(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}
