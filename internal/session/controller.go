// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jeranaias/tutorchat/internal/history"
	"github.com/jeranaias/tutorchat/internal/logging"
	"github.com/jeranaias/tutorchat/internal/model"
	"github.com/jeranaias/tutorchat/internal/protocol"
	"github.com/jeranaias/tutorchat/internal/storage"
	"github.com/jeranaias/tutorchat/internal/transport"
)

var (
	// ErrNoIdentity means no chat session is possible.
	ErrNoIdentity = errors.New("no valid identity")
	// ErrInvalidState is returned when an action is not allowed in the current state.
	ErrInvalidState = errors.New("invalid session state")
	// ErrEmptyMessage is returned by Send for blank input.
	ErrEmptyMessage = errors.New("empty message")
	// ErrRateLimited is returned by Send when the user is sending too fast.
	ErrRateLimited = errors.New("sending too fast")
	// ErrTransportUnavailable wraps a failure to open the transport.
	ErrTransportUnavailable = errors.New("transport unavailable")
)

// =============================================================================
// SESSION CONTROLLER
// =============================================================================

// Config holds send throttling for a session.
type Config struct {
	// SendRate is the sustained number of messages per second.
	SendRate float64
	// SendBurst is the number of messages allowed at once.
	SendBurst int
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		SendRate:  5,
		SendBurst: 10,
	}
}

// Controller drives one chat session.
type Controller struct {
	id       string
	identity model.Identity
	state    State
	choice   Choice

	store   *history.Store
	flags   *storage.Flags
	tr      transport.Transport
	limiter *rate.Limiter
	log     *logging.Logger
	now     func() time.Time

	// joinSent is set when join was emitted for a link whose connect event
	// has not been seen yet.
	joinSent bool
	left     bool

	// requestOnLink asks for server history once the pending dial joins.
	requestOnLink bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(c *Controller) {
		if id != "" {
			c.id = id
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController creates a controller in StateInit.
func NewController(ident model.Identity, store *history.Store, flags *storage.Flags, tr transport.Transport, cfg Config, opts ...Option) *Controller {
	if cfg.SendRate <= 0 {
		cfg.SendRate = DefaultConfig().SendRate
	}
	if cfg.SendBurst <= 0 {
		cfg.SendBurst = DefaultConfig().SendBurst
	}
	c := &Controller{
		id:       uuid.NewString(),
		identity: ident,
		store:    store,
		flags:    flags,
		tr:       tr,
		limiter:  rate.NewLimiter(rate.Limit(cfg.SendRate), cfg.SendBurst),
		log:      logging.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("service", "SessionController", "session_id", c.id)
	return c
}

// ID returns the session id.
func (c *Controller) ID() string { return c.id }

// Identity returns the session identity.
func (c *Controller) Identity() model.Identity { return c.identity }

// State returns the lifecycle state.
func (c *Controller) State() State { return c.state }

// Choice returns the history choice made this session.
func (c *Controller) Choice() Choice { return c.choice }

// Store returns the local history store.
func (c *Controller) Store() *history.Store { return c.store }

// Connected reports whether the session is in StateConnected.
func (c *Controller) Connected() bool { return c.state == StateConnected }

// Start loads local history and either waits for the history choice or
// connects right away. A transport failure leaves the session Disconnected
// with the local history intact and returns ErrTransportUnavailable.
func (c *Controller) Start(ctx context.Context) error {
	dial, err := c.Begin(ctx)
	if err != nil || !dial {
		return err
	}
	return c.Complete(ctx, c.Dial(ctx))
}

// ChooseLoad keeps local history, connects and requests server history.
func (c *Controller) ChooseLoad(ctx context.Context) error {
	if err := c.PrepareLoad(ctx); err != nil {
		return err
	}
	return c.Complete(ctx, c.Dial(ctx))
}

// ChooseDiscard clears local history, connects and requests fresh server
// history.
func (c *Controller) ChooseDiscard(ctx context.Context) error {
	if err := c.PrepareDiscard(ctx); err != nil {
		return err
	}
	return c.Complete(ctx, c.Dial(ctx))
}

// =============================================================================
// STAGED ACTIONS
// =============================================================================

// The staged methods split each blocking action so a UI can run only Dial
// off its event loop. Begin, Prepare* and Complete change session state and
// the store, and must run on the caller's event loop.

// Begin validates the identity and loads local history. It reports whether
// the session should dial now; false means it is awaiting the history choice.
func (c *Controller) Begin(ctx context.Context) (bool, error) {
	if c.state != StateInit {
		return false, fmt.Errorf("%w: start from %s", ErrInvalidState, c.state)
	}
	if !c.identity.Valid() {
		return false, ErrNoIdentity
	}
	if err := c.store.Load(ctx); err != nil {
		return false, err
	}
	if !c.store.Empty() && !c.choiceMade(ctx) {
		c.state = StateAwaitingHistoryChoice
		c.log.Info("awaiting_history_choice", "stored", c.store.Len())
		return false, nil
	}
	return true, nil
}

// PrepareLoad records the load choice. The next Complete requests server
// history.
func (c *Controller) PrepareLoad(ctx context.Context) error {
	if c.state != StateAwaitingHistoryChoice {
		return fmt.Errorf("%w: load from %s", ErrInvalidState, c.state)
	}
	c.choice = ChoiceLoad
	c.recordChoice(ctx)
	c.requestOnLink = true
	return nil
}

// PrepareDiscard clears local history and records the discard choice.
func (c *Controller) PrepareDiscard(ctx context.Context) error {
	if c.state != StateAwaitingHistoryChoice {
		return fmt.Errorf("%w: discard from %s", ErrInvalidState, c.state)
	}
	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	c.choice = ChoiceDiscard
	c.recordChoice(ctx)
	c.requestOnLink = true
	return nil
}

// PrepareResume readies a Disconnected session for another dial.
func (c *Controller) PrepareResume() error {
	if c.state != StateDisconnected {
		return fmt.Errorf("%w: resume from %s", ErrInvalidState, c.state)
	}
	c.left = false
	return nil
}

// Dial opens the transport. It touches no session state and is safe to
// call off the event loop.
func (c *Controller) Dial(ctx context.Context) error {
	if err := c.tr.Connect(ctx); err != nil {
		c.log.Warn("connect_failed", "error", err)
		return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	return nil
}

// Complete applies the outcome of Dial: join on success, Disconnected on
// failure.
func (c *Controller) Complete(ctx context.Context, dialErr error) error {
	request := c.requestOnLink
	c.requestOnLink = false
	if dialErr != nil {
		c.state = StateDisconnected
		return dialErr
	}
	if err := c.emit(ctx, protocol.EventJoin, c.identity); err != nil {
		c.state = StateDisconnected
		return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	c.joinSent = true
	c.state = StateConnected
	c.log.Info("connected", "choice", c.choice.String())
	if request {
		return c.emit(ctx, protocol.EventGetHistory, nil)
	}
	return nil
}

// MergesPushes reports whether a history push is merged into the store
// rather than replacing it.
func (c *Controller) MergesPushes() bool {
	return c.choice == ChoiceLoad || c.store.Empty()
}

// =============================================================================
// LINK EVENTS
// =============================================================================

// OnConnected handles the transport's connect event. A link that was not
// opened by connect (a transport-level reconnect) gets a fresh join. After
// a load choice the local history is pushed so the relay can reconcile.
func (c *Controller) OnConnected(ctx context.Context) error {
	if c.left {
		return nil
	}
	c.state = StateConnected
	if c.joinSent {
		c.joinSent = false
	} else if err := c.emit(ctx, protocol.EventJoin, c.identity); err != nil {
		return err
	}
	if c.choice == ChoiceLoad && !c.store.Empty() {
		return c.PublishLocal(ctx)
	}
	return nil
}

// OnDisconnected handles the transport's disconnect event. The store is
// persisted and kept.
func (c *Controller) OnDisconnected(ctx context.Context, reason string) {
	if c.state == StateConnected {
		c.state = StateDisconnected
	}
	c.joinSent = false
	c.log.Warn("disconnected", "reason", reason)
	if err := c.store.Persist(ctx); err != nil {
		c.log.Error("persist_failed", "error", err)
	}
}

// Leave persists history, emits leave and closes the link. The transport
// waits for its inbound consumer to take the disconnect event, so Leave must
// not be called from the goroutine that drains Inbound; use Close there.
func (c *Controller) Leave(ctx context.Context) error {
	c.depart(ctx)
	return c.tr.Disconnect()
}

func (c *Controller) depart(ctx context.Context) {
	if err := c.store.Persist(ctx); err != nil {
		c.log.Error("persist_failed", "error", err)
	}
	if c.state == StateConnected {
		if err := c.emit(ctx, protocol.EventLeave, c.identity); err != nil {
			c.log.Warn("leave_not_sent", "error", err)
		}
	}
	c.left = true
	c.joinSent = false
	c.state = StateDisconnected
}

// Resume reconnects a Disconnected session without asking for the history
// choice again.
func (c *Controller) Resume(ctx context.Context) error {
	if err := c.PrepareResume(); err != nil {
		return err
	}
	return c.Complete(ctx, c.Dial(ctx))
}

// Close leaves the session and releases the transport. Queued emits, leave
// included, are flushed before the link goes down.
func (c *Controller) Close(ctx context.Context) error {
	if !c.left {
		c.depart(ctx)
	}
	return c.tr.Close()
}

// =============================================================================
// OUTBOUND ACTIONS
// =============================================================================

// Send emits text as a new message. The message is not appended locally;
// it arrives back through the relay's broadcast like any other.
func (c *Controller) Send(ctx context.Context, text string) (model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Message{}, ErrEmptyMessage
	}
	if c.state != StateConnected {
		return model.Message{}, transport.ErrNotConnected
	}
	if !c.limiter.AllowN(c.now(), 1) {
		return model.Message{}, ErrRateLimited
	}
	m := model.NewMessage(c.identity, text, c.now())
	if err := c.emit(ctx, protocol.EventMessage, m); err != nil {
		return model.Message{}, err
	}
	return m, nil
}

// RequestHistory asks the relay for its history. It is a no-op while
// disconnected.
func (c *Controller) RequestHistory(ctx context.Context) error {
	if c.state != StateConnected {
		return nil
	}
	return c.emit(ctx, protocol.EventGetHistory, nil)
}

// PublishLocal pushes the whole local history to the relay.
func (c *Controller) PublishLocal(ctx context.Context) error {
	if c.state != StateConnected || c.store.Empty() {
		return nil
	}
	return c.emit(ctx, protocol.EventUpdateHistory, c.store.Messages())
}

// ShareWith sends the local history to one peer.
func (c *Controller) ShareWith(ctx context.Context, userID string) error {
	if c.state != StateConnected || c.store.Empty() || userID == "" {
		return nil
	}
	return c.emit(ctx, protocol.EventShareHistory, protocol.SharePayload{
		UserID:  userID,
		History: c.store.Messages(),
	})
}

// ClearHistory wipes the local store.
func (c *Controller) ClearHistory(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Controller) emit(ctx context.Context, event string, payload any) error {
	if err := c.tr.Emit(ctx, event, payload); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

func (c *Controller) choiceMade(ctx context.Context) bool {
	v, ok, err := c.flags.Get(ctx, storage.FlagHistoryChoiceMade)
	if err != nil {
		c.log.Warn("flags_unreadable", "error", err)
		return false
	}
	return ok && v == c.id
}

func (c *Controller) recordChoice(ctx context.Context) {
	if err := c.flags.Set(ctx, storage.FlagHistoryChoiceMade, c.id); err != nil {
		c.log.Warn("flag_write_failed", "flag", storage.FlagHistoryChoiceMade, "error", err)
	}
}
