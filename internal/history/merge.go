// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"sort"
	"time"

	"github.com/jeranaias/tutorchat/internal/model"
)

// Stats describes the outcome of a merge.
type Stats struct {
	// Admitted counts incoming messages added to the result.
	Admitted int
	// Duplicates counts incoming messages whose key was already present.
	Duplicates int
	// Invalid counts incoming entries skipped for missing fields.
	Invalid int
	// Added holds the admitted messages in incoming order.
	Added model.History
}

// Merge returns existing plus every valid incoming message whose identity key
// is not already present, sorted ascending by timestamp.
func Merge(existing, incoming model.History) model.History {
	merged, _ := MergeStats(existing, incoming)
	return merged
}

// MergeStats is Merge with bookkeeping.
func MergeStats(existing, incoming model.History) (model.History, Stats) {
	var stats Stats
	if len(incoming) == 0 {
		return existing, stats
	}

	seen := make(map[string]struct{}, len(existing)+len(incoming))
	merged := make(model.History, 0, len(existing)+len(incoming))
	for _, m := range existing {
		seen[m.Key()] = struct{}{}
		merged = append(merged, m)
	}

	for _, m := range incoming {
		if err := m.Validate(); err != nil {
			stats.Invalid++
			continue
		}
		m = m.Normalize()
		key := m.Key()
		if _, dup := seen[key]; dup {
			stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, m)
		stats.Added = append(stats.Added, m)
	}
	stats.Admitted = len(stats.Added)

	SortByTime(merged)
	return merged, stats
}

// SortByTime stable-sorts h ascending by parsed timestamp. Entries with an
// unparsable timestamp sort as the zero time, ahead of everything else, and
// keep their relative order.
func SortByTime(h model.History) {
	times := make([]time.Time, len(h))
	for i, m := range h {
		times[i], _ = m.Time()
	}
	sort.Stable(byTime{h: h, t: times})
}

type byTime struct {
	h model.History
	t []time.Time
}

func (b byTime) Len() int           { return len(b.h) }
func (b byTime) Less(i, j int) bool { return b.t[i].Before(b.t[j]) }
func (b byTime) Swap(i, j int) {
	b.h[i], b.h[j] = b.h[j], b.h[i]
	b.t[i], b.t[j] = b.t[j], b.t[i]
}
