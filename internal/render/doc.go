// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns chat history into bounded, incremental view updates.
//
// The Pipeline owns three pieces of view state:
//
//   - a pending queue drained in fixed-size batches, one batch per tick, so a
//     bulk history load never holds the event loop
//   - the rendered list, capped by a periodic Sweep that drops the oldest
//     entries
//   - the scroll-follow state machine (Following or Browsing) with its
//     unread-messages affordance
//
// The Pipeline does no I/O and holds no timers. Callers schedule DrainBatch
// and Sweep on their own event loop, which keeps every mutation on a single
// timeline.
//
// Text is untrusted. Sanitize strips terminal escape sequences and control
// characters and must be applied before any field reaches the screen.
package render
