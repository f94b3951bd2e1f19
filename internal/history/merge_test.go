// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tutorchat/internal/model"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func msg(id string, minute int) model.Message {
	return model.Message{
		ID:        id,
		Username:  "alice",
		Type:      model.TypeUser,
		Text:      "text " + id,
		Timestamp: model.FormatTimestamp(base.Add(time.Duration(minute) * time.Minute)),
	}
}

func ids(h model.History) []string {
	out := make([]string, len(h))
	for i, m := range h {
		out[i] = m.ID
	}
	return out
}

func TestMerge_LoadScenario(t *testing.T) {
	local := model.History{msg("m1", 1), msg("m2", 2), msg("m3", 3)}
	pushed := model.History{msg("m2", 2), msg("m4", 4)}

	got, stats := MergeStats(local, pushed)

	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, ids(got))
	assert.Equal(t, 1, stats.Admitted)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, []string{"m4"}, ids(stats.Added))
}

func TestMerge_EmptyIncomingIsNoop(t *testing.T) {
	// Deliberately out of order: a no-op merge must not re-sort.
	existing := model.History{msg("b", 5), msg("a", 1)}

	got := Merge(existing, nil)
	assert.Equal(t, []string{"b", "a"}, ids(got))

	got = Merge(existing, model.History{})
	assert.Equal(t, []string{"b", "a"}, ids(got))
}

func TestMerge_SelfIsIdempotent(t *testing.T) {
	s := model.History{msg("a", 1), msg("b", 2), {Username: "bob", Text: "no id", Timestamp: model.FormatTimestamp(base)}}
	SortByTime(s)

	got := Merge(s, s)
	assert.ElementsMatch(t, s.Keys(), got.Keys())
	assert.Len(t, got, len(s))
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	existing := model.History{msg("a", 3)}
	incoming := model.History{msg("b", 1)}

	_ = Merge(existing, incoming)

	assert.Equal(t, "a", existing[0].ID)
	assert.Equal(t, "b", incoming[0].ID)
}

func TestMerge_UnionProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		var a, b model.History
		want := map[string]bool{}
		for i := 0; i < 20; i++ {
			id := fmt.Sprintf("m%d", rng.Intn(30))
			m := msg(id, rng.Intn(600))
			target := &a
			if rng.Intn(2) == 0 {
				target = &b
			}
			if target.Contains(m) {
				continue
			}
			*target = append(*target, m)
		}
		// Keys within a sequence are unique by construction; identical ids
		// carry different timestamps across sequences, so dedupe is by id.
		for _, m := range a {
			want[m.Key()] = true
		}
		for _, m := range b {
			want[m.Key()] = true
		}

		got := Merge(a, b)

		seen := map[string]bool{}
		for i, m := range got {
			require.False(t, seen[m.Key()], "duplicate key %s", m.Key())
			seen[m.Key()] = true
			if i > 0 {
				prev, _ := got[i-1].Time()
				cur, _ := m.Time()
				require.False(t, cur.Before(prev), "not sorted at %d", i)
			}
		}
		assert.Equal(t, want, seen)
	}
}

func TestMerge_SkipsInvalidEntries(t *testing.T) {
	incoming := model.History{
		msg("ok1", 1),
		{ID: "bad", Username: "", Text: "x", Timestamp: model.FormatTimestamp(base)},
		{ID: "bad2", Username: "x", Text: "", Timestamp: model.FormatTimestamp(base)},
		msg("ok2", 2),
	}

	got, stats := MergeStats(nil, incoming)

	assert.Equal(t, []string{"ok1", "ok2"}, ids(got))
	assert.Equal(t, 2, stats.Invalid)
}

func TestMerge_MalformedTimestampsSortFirst(t *testing.T) {
	odd := model.Message{ID: "odd", Username: "x", Text: "y", Timestamp: "yesterday-ish"}
	got := Merge(model.History{msg("a", 1)}, model.History{msg("b", 2), odd})
	assert.Equal(t, []string{"odd", "a", "b"}, ids(got))
}

func TestMerge_LegacyRoleNormalized(t *testing.T) {
	m := msg("t1", 1)
	m.Type = "master"
	got := Merge(nil, model.History{m})
	assert.Equal(t, model.TypeTutor, got[0].Type)
}

// Two messages without ids that repeat the same text from the same user in
// the same millisecond share an identity key. The second one is dropped.
func TestMerge_TupleKeyCollision(t *testing.T) {
	ts := model.FormatTimestamp(base)
	first := model.Message{Username: "alice", Type: model.TypeUser, Text: "ok", Timestamp: ts}
	repeat := model.Message{Username: "alice", Type: model.TypeUser, Text: "ok", Timestamp: ts}

	got, stats := MergeStats(model.History{first}, model.History{repeat})

	assert.Len(t, got, 1)
	assert.Equal(t, 1, stats.Duplicates)

	// One millisecond apart is enough to keep both.
	repeat.Timestamp = model.FormatTimestamp(base.Add(time.Millisecond))
	assert.Len(t, Merge(model.History{first}, model.History{repeat}), 2)
}

func TestMerge_IdTakesPrecedenceOverTuple(t *testing.T) {
	a := msg("x1", 1)
	b := a
	b.ID = "x2"
	assert.Len(t, Merge(model.History{a}, model.History{b}), 2)
}

func TestMerge_Associative(t *testing.T) {
	s := model.History{msg("a", 1), msg("c", 3)}
	a := model.History{msg("b", 2), msg("c", 3)}
	b := model.History{msg("d", 4), msg("a", 1)}

	left := Merge(Merge(s, a), b)
	right := Merge(s, Merge(a, b))

	assert.Equal(t, ids(left), ids(right))
}
