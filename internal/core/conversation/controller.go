// Package conversation runs the turn-taking protocol between the user, the
// session store and the model gateway.
//
// A turn appends the user message and a streaming placeholder, then merges
// the gateway output into the placeholder until it settles. Only one turn
// runs at a time. A turn is bound to the session that was active when it
// started, even if the user switches sessions while it runs.
package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neilberkman/thinkchat/internal/core/llm"
	"github.com/neilberkman/thinkchat/internal/core/models"
	"github.com/neilberkman/thinkchat/internal/core/store"
	"github.com/rs/zerolog"
)

// State is the phase of the current turn
type State int

const (
	StateIdle State = iota
	StateAwaitingResponse
	StateStreaming
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingResponse:
		return "awaiting"
	case StateStreaming:
		return "streaming"
	case StateSettled:
		return "settled"
	}
	return "unknown"
}

// Result describes a settled turn
type Result struct {
	SessionID string
	Kind      Kind
	Reply     models.Message

	// Err is the reason the turn did not complete normally: a
	// *ValidationError, an *llm.GenerationError or a context error
	Err error
}

// Failed reports whether the turn ended with the apology message
func (r Result) Failed() bool {
	var gerr *llm.GenerationError
	return errors.As(r.Err, &gerr)
}

// Cancelled reports whether the turn was cancelled
func (r Result) Cancelled() bool {
	return errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded)
}

// Controller owns the generating gate and drives turns
type Controller struct {
	store   *store.Store
	gateway llm.Gateway
	logger  zerolog.Logger
	now     func() time.Time
	newID   func() string

	mu         sync.Mutex
	generating bool
	state      State
	turnID     string
	cancel     context.CancelFunc
	banners    map[string]string
	turns      sync.WaitGroup

	// gwMu serializes context changes on the gateway. contextID names the
	// session the gateway context was seeded from; "" means stale.
	gwMu      sync.Mutex
	contextID string
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the controller logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithClock overrides the time source for message timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDGenerator overrides message id generation
func WithIDGenerator(newID func() string) Option {
	return func(c *Controller) { c.newID = newID }
}

// New creates a controller over st and gw
func New(st *store.Store, gw llm.Gateway, opts ...Option) *Controller {
	c := &Controller{
		store:   st,
		gateway: gw,
		logger:  zerolog.Nop(),
		now:     time.Now,
		newID:   uuid.NewString,
		banners: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generating reports whether a turn is in progress
func (c *Controller) Generating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generating
}

// State returns the phase of the current or most recent turn and the id of
// its session
func (c *Controller) State() (State, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.turnID
}

// Banner returns the error banner recorded for a session, if any
func (c *Controller) Banner(sessionID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.banners[sessionID]
}

// DismissBanner clears the banner of a session
func (c *Controller) DismissBanner(sessionID string) {
	c.mu.Lock()
	delete(c.banners, sessionID)
	c.mu.Unlock()
}

// Cancel stops the in-flight turn. The placeholder settles with whatever
// was received. It reports whether a turn was running.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// Shutdown cancels the in-flight turn and waits until it has settled
func (c *Controller) Shutdown() {
	c.Cancel()
	c.turns.Wait()
}

// Activate selects a session and seeds the gateway context from its settled
// messages. While a turn runs the seeding waits for the next turn.
func (c *Controller) Activate(ctx context.Context, id string) error {
	if err := c.store.Select(id); err != nil {
		return err
	}
	c.syncContext(ctx)
	return nil
}

// NewSession creates and activates an empty session
func (c *Controller) NewSession(ctx context.Context) models.ChatSession {
	sess := c.store.CreateSession()
	c.syncContext(ctx)
	return sess
}

// DeleteSession removes a session and seeds the context of whichever
// session becomes active
func (c *Controller) DeleteSession(ctx context.Context, id string) bool {
	if !c.store.DeleteSession(id) {
		return false
	}
	c.DismissBanner(id)
	c.syncContext(ctx)
	return true
}

func (c *Controller) syncContext(ctx context.Context) {
	if c.Generating() {
		return
	}
	active, ok := c.store.Active()
	if !ok {
		return
	}
	c.gwMu.Lock()
	defer c.gwMu.Unlock()
	c.seedLocked(ctx, active)
}

// seedLocked (re-)starts the gateway context for sess unless it already
// holds it. Callers hold gwMu.
func (c *Controller) seedLocked(ctx context.Context, sess models.ChatSession) {
	if c.contextID == sess.ID {
		return
	}
	if err := c.gateway.StartContext(ctx, sess.Settled()); err != nil {
		c.contextID = ""
		c.logger.Warn().Err(err).Str("session", sess.ID).Msg("failed to start conversation context")
		return
	}
	c.contextID = sess.ID
}

func (c *Controller) invalidateContext() {
	c.gwMu.Lock()
	c.contextID = ""
	c.gwMu.Unlock()
}

// Submit runs one turn in the active session and blocks until it settles.
// Whitespace-only input and submissions during a running turn are rejected
// without touching the session. Generation failures are not returned as
// errors; they settle the placeholder and show up in Result.Err.
func (c *Controller) Submit(ctx context.Context, input string) (Result, error) {
	cmd := Parse(input)
	if cmd.Text == "" {
		return Result{}, ErrEmptyInput
	}

	c.mu.Lock()
	if c.generating {
		c.mu.Unlock()
		return Result{}, ErrTurnActive
	}
	active, ok := c.store.Active()
	if !ok {
		c.mu.Unlock()
		return Result{}, ErrNoSession
	}
	turnCtx, cancel := context.WithCancel(ctx)
	c.generating = true
	c.state = StateAwaitingResponse
	c.turnID = active.ID
	c.cancel = cancel
	delete(c.banners, active.ID)
	c.turns.Add(1)
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.generating = false
		c.state = StateSettled
		c.cancel = nil
		c.mu.Unlock()
		c.turns.Done()
	}()

	t := &turn{
		c:      c,
		handle: c.store.Handle(active.ID),
		cmd:    cmd,
	}
	return t.run(turnCtx), nil
}

type turn struct {
	c      *Controller
	handle store.Handle
	cmd    Command
	reply  string
}

func (t *turn) run(ctx context.Context) Result {
	c := t.c
	sid := t.handle.ID()
	log := c.logger.With().Str("session", sid).Str("kind", t.cmd.Kind.String()).Logger()
	log.Debug().Msg("turn started")

	user := models.NewMessage(c.newID(), models.RoleUser, t.cmd.Text, c.now())
	placeholder := models.NewMessage(c.newID(), models.RoleModel, "", c.now())
	placeholder.IsStreaming = true
	if t.cmd.Kind == KindImage {
		placeholder.Content = MsgGenerating
	}

	ok := t.handle.Update(func(s models.ChatSession) models.ChatSession {
		now := c.now()
		return s.WithMessage(user, now).WithMessage(placeholder, now)
	})
	if !ok {
		return Result{SessionID: sid, Kind: t.cmd.Kind, Err: ErrNoSession}
	}

	var err error
	switch t.cmd.Kind {
	case KindImage:
		err = t.image(ctx)
	default:
		err = t.text(ctx)
	}

	res := Result{SessionID: sid, Kind: t.cmd.Kind, Err: err}
	var verr *ValidationError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		t.reply = verr.Msg
	case ctx.Err() != nil:
		res.Err = ctx.Err()
		log.Debug().Int("received", len(t.reply)).Msg("turn cancelled")
	case errors.Is(err, ErrNoSession):
		log.Warn().Msg("session removed during turn")
		return res
	default:
		t.reply = MsgApology
		c.mu.Lock()
		c.banners[sid] = MsgBanner
		c.mu.Unlock()
		log.Error().Err(err).Msg("turn failed")
	}

	t.settle()
	if last, ok := t.handle.Get(); ok {
		if m, ok := last.Last(); ok && m.ID == placeholder.ID {
			res.Reply = m
		}
	}
	log.Debug().Msg("turn settled")
	return res
}

func (t *turn) text(ctx context.Context) error {
	c := t.c

	c.gwMu.Lock()
	if sess, ok := t.handle.Get(); ok {
		// the context must not contain the user message just appended
		history := sess
		history.Messages = sess.Messages[:len(sess.Messages)-2]
		c.seedLocked(ctx, history)
	}
	stream := c.gateway.SendTextTurn(ctx, t.cmd.Text)
	c.gwMu.Unlock()

	var b strings.Builder
	for fragment, err := range stream {
		if err != nil {
			c.invalidateContext()
			return err
		}
		if err := ctx.Err(); err != nil {
			c.invalidateContext()
			return err
		}
		if b.Len() == 0 {
			c.mu.Lock()
			c.state = StateStreaming
			c.mu.Unlock()
		}
		b.WriteString(fragment)
		t.reply = b.String()
		if !t.replace(t.reply, true) {
			c.invalidateContext()
			return ErrNoSession
		}
	}
	if err := ctx.Err(); err != nil {
		c.invalidateContext()
		return err
	}
	return nil
}

func (t *turn) image(ctx context.Context) error {
	if t.cmd.Prompt == "" {
		return &ValidationError{Msg: MsgImageNoPrompt}
	}
	ref, err := t.c.gateway.GenerateImage(ctx, t.cmd.Prompt)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.reply = ref.Markdown()
	return nil
}

// settle performs the single replacement that ends streaming
func (t *turn) settle() {
	t.replace(t.reply, false)
}

func (t *turn) replace(content string, streaming bool) bool {
	return t.handle.Update(func(s models.ChatSession) models.ChatSession {
		return s.WithLastReplaced(content, streaming, t.c.now())
	})
}
