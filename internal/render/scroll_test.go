// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/tutorchat/internal/model"
)

func TestScroll_ThresholdTransitions(t *testing.T) {
	p := New(Config{NearBottom: 50}, me)
	assert.Equal(t, Following, p.State())

	p.OnScroll(49)
	assert.Equal(t, Following, p.State())

	p.OnScroll(50)
	assert.Equal(t, Browsing, p.State())

	p.OnScroll(0)
	assert.Equal(t, Following, p.State())
}

func TestScroll_SendForcesFollowing(t *testing.T) {
	p := New(Config{}, me)
	p.OnScroll(500)
	p.OnIncoming(model.NewMessage(them, "hi", t0))
	assert.True(t, p.Unread())

	p.OnSend()

	assert.Equal(t, Following, p.State())
	assert.False(t, p.Unread())
	assert.True(t, p.TakeScrollRequest())
}

func TestScroll_IncomingWhileBrowsing(t *testing.T) {
	p := New(Config{}, me)
	p.OnScroll(500)
	p.TakeScrollRequest()

	p.OnIncoming(model.NewMessage(them, "hi", t0))

	assert.True(t, p.Unread())
	assert.Equal(t, Browsing, p.State())
	assert.False(t, p.TakeScrollRequest(), "scroll position untouched")
}

func TestScroll_IncomingWhileFollowing(t *testing.T) {
	p := New(Config{}, me)

	p.OnIncoming(model.NewMessage(them, "hi", t0))

	assert.False(t, p.Unread())
	assert.True(t, p.TakeScrollRequest())
}

func TestScroll_OwnMessageOverridesBrowsing(t *testing.T) {
	p := New(Config{}, me)
	p.OnScroll(500)

	p.OnIncoming(model.NewMessage(me, "echo of my send", t0))

	assert.Equal(t, Following, p.State())
	assert.True(t, p.TakeScrollRequest())
}

func TestScroll_SystemMessageWhileBrowsingIsQuiet(t *testing.T) {
	p := New(Config{}, me)
	p.OnScroll(500)

	p.OnIncoming(model.NewSystemMessage("bob left", t0))

	assert.False(t, p.Unread())
	assert.False(t, p.TakeScrollRequest())
}

func TestScroll_ToggleAndJump(t *testing.T) {
	p := New(Config{}, me)

	assert.Equal(t, Browsing, p.ToggleAutoScroll())
	p.OnIncoming(model.NewMessage(them, "x", t0))
	assert.True(t, p.Unread())

	assert.Equal(t, Following, p.ToggleAutoScroll())
	assert.False(t, p.Unread())

	p.OnScroll(500)
	p.OnIncoming(model.NewMessage(them, "y", t0))
	p.ScrollToBottom()
	assert.False(t, p.Unread())
	assert.Equal(t, Following, p.State())
}

func TestScroll_DrainRequestsScrollOnlyWhenFollowing(t *testing.T) {
	p := New(Config{}, me)
	p.OnScroll(500)
	p.Display(model.NewMessage(them, "x", t0))
	p.DrainBatch()
	assert.False(t, p.TakeScrollRequest())

	p.OnScroll(0)
	p.TakeScrollRequest()
	p.Display(model.NewMessage(them, "y", t0))
	p.DrainBatch()
	assert.True(t, p.TakeScrollRequest())
}

func TestScrollState_String(t *testing.T) {
	assert.Equal(t, "following", Following.String())
	assert.Equal(t, "browsing", Browsing.String())
}
