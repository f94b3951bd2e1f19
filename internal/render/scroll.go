// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import "github.com/jeranaias/tutorchat/internal/model"

// ScrollState is the scroll-follow mode of the view.
type ScrollState int

const (
	// Following keeps the view pinned to the newest message.
	Following ScrollState = iota
	// Browsing means the user scrolled away; auto-scroll is suspended.
	Browsing
)

// String returns the string representation of the state.
func (s ScrollState) String() string {
	if s == Browsing {
		return "browsing"
	}
	return "following"
}

// State returns the current scroll state.
func (p *Pipeline) State() ScrollState { return p.scroll }

// Unread reports whether the new-messages affordance is showing.
func (p *Pipeline) Unread() bool { return p.unread }

// TakeScrollRequest reports and clears a pending scroll-to-bottom request.
func (p *Pipeline) TakeScrollRequest() bool {
	want := p.wantScroll
	p.wantScroll = false
	return want
}

// OnScroll records the user's scroll position as a distance from the bottom.
func (p *Pipeline) OnScroll(distanceFromBottom int) {
	if distanceFromBottom < p.cfg.NearBottom {
		p.follow()
		return
	}
	p.scroll = Browsing
}

// OnSend is called when the local user sends a message.
func (p *Pipeline) OnSend() {
	p.scrollToBottom()
}

// OnIncoming applies the scroll policy for a message that just arrived.
// Own messages always scroll. Otherwise a following view scrolls, and a
// browsing view flags unread for messages from other people.
func (p *Pipeline) OnIncoming(m model.Message) {
	switch {
	case !m.IsSystem() && p.self.Username != "" && m.Username == p.self.Username:
		p.scrollToBottom()
	case p.scroll == Following:
		p.wantScroll = true
	case !m.IsSystem():
		p.unread = true
	}
}

// ToggleAutoScroll flips between Following and Browsing. Turning it on
// scrolls to the bottom.
func (p *Pipeline) ToggleAutoScroll() ScrollState {
	if p.scroll == Following {
		p.scroll = Browsing
		return p.scroll
	}
	p.scrollToBottom()
	return p.scroll
}

// ScrollToBottom jumps to the newest message, as the scroll-to-bottom key
// and the new-messages affordance do.
func (p *Pipeline) ScrollToBottom() {
	p.scrollToBottom()
}

func (p *Pipeline) scrollToBottom() {
	p.follow()
	p.wantScroll = true
}

func (p *Pipeline) follow() {
	p.scroll = Following
	p.unread = false
}
