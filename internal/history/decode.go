// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeranaias/tutorchat/internal/model"
)

// ErrMalformed is returned when a payload is not a JSON array.
var ErrMalformed = errors.New("malformed history")

// Decode parses a JSON array of messages. Elements that fail to decode or
// validate are skipped and counted; they never abort the rest of the batch.
// Empty input and JSON null decode to an empty history.
func Decode(raw []byte) (model.History, int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return model.History{}, 0, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return model.History{}, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	out := make(model.History, 0, len(elems))
	skipped := 0
	for _, elem := range elems {
		var m model.Message
		if err := json.Unmarshal(elem, &m); err != nil {
			skipped++
			continue
		}
		if err := m.Validate(); err != nil {
			skipped++
			continue
		}
		out = append(out, m.Normalize())
	}
	return out, skipped, nil
}

// Encode serializes h as a JSON array. A nil history encodes as [].
func Encode(h model.History) ([]byte, error) {
	if h == nil {
		h = model.History{}
	}
	return json.Marshal(h)
}
