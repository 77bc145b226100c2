// Package store owns the canonical collection of chat sessions and keeps it
// persisted to a key-value backend.
//
// All mutation replaces a session as a whole. Readers receive snapshots and
// never observe a partially applied update.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neilberkman/thinkchat/internal/core/models"
	"github.com/rs/zerolog"
)

// DefaultKey is the fixed key the collection is stored under
const DefaultKey = "gemini_chat_history_v1"

// EventKind describes a change to the collection
type EventKind int

const (
	EventLoaded EventKind = iota
	EventCreated
	EventUpdated
	EventDeleted
	EventSelected
	EventImported
)

func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventCreated:
		return "created"
	case EventUpdated:
		return "updated"
	case EventDeleted:
		return "deleted"
	case EventSelected:
		return "selected"
	case EventImported:
		return "imported"
	}
	return "unknown"
}

// Event is delivered to subscribers after every change
type Event struct {
	Kind      EventKind
	SessionID string
}

// Store holds the session collection and the active session id
type Store struct {
	mu       sync.RWMutex
	sessions []models.ChatSession
	activeID string

	backend Backend
	key     string
	logger  zerolog.Logger
	now     func() time.Time
	newID   func() string

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int

	writeMu   sync.Mutex
	persistCh chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures a Store
type Option func(*Store)

// WithKey overrides the storage key
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithLogger sets the logger used for persistence failures
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides session id generation
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// New creates a store over backend and starts its background persister.
// Call Close to flush pending writes.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		key:       DefaultKey,
		logger:    zerolog.Nop(),
		now:       time.Now,
		newID:     uuid.NewString,
		subs:      make(map[int]chan Event),
		persistCh: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.persistLoop()
	return s
}

// Load reads the persisted collection. Missing data creates one fresh
// session. Unreadable or malformed data leaves the collection empty and
// returns a *ReadError; call EnsureSession to heal.
func (s *Store) Load(ctx context.Context) error {
	data, ok, err := s.backend.Get(ctx, s.key)
	if err != nil {
		return s.degrade(err)
	}
	if !ok {
		s.CreateSession()
		return nil
	}

	sessions, err := Decode(data)
	if err != nil {
		return s.degrade(err)
	}

	settleInterrupted(sessions, s.now())

	s.mu.Lock()
	s.sessions = sessions
	s.activeID = ""
	if len(sessions) > 0 {
		s.activeID = sessions[0].ID
	}
	s.mu.Unlock()

	s.logger.Debug().Int("sessions", len(sessions)).Str("key", s.key).Msg("loaded chat history")
	s.notify(Event{Kind: EventLoaded})

	if len(sessions) == 0 {
		s.CreateSession()
	}
	return nil
}

// settleInterrupted settles messages left streaming by an interrupted run,
// keeping whatever content they had
func settleInterrupted(sessions []models.ChatSession, now time.Time) {
	for i, sess := range sessions {
		if last, ok := sess.Last(); ok && last.IsStreaming {
			sessions[i] = sess.WithLastReplaced(last.Content, false, now)
		}
	}
}

func (s *Store) degrade(err error) error {
	rerr := &ReadError{Key: s.key, Err: err}
	s.logger.Warn().Err(err).Str("key", s.key).Msg("chat history unreadable, starting empty")

	s.mu.Lock()
	s.sessions = nil
	s.activeID = ""
	s.mu.Unlock()
	return rerr
}

// EnsureSession creates a session when the collection is empty and makes
// sure the active id names a member. It returns the active session.
func (s *Store) EnsureSession() models.ChatSession {
	s.mu.Lock()
	if len(s.sessions) > 0 {
		if s.indexLocked(s.activeID) < 0 {
			s.activeID = s.sessions[0].ID
		}
		active := s.sessions[s.indexLocked(s.activeID)]
		s.mu.Unlock()
		return active
	}
	s.mu.Unlock()
	return s.CreateSession()
}

// CreateSession prepends a new empty session and makes it active
func (s *Store) CreateSession() models.ChatSession {
	s.mu.Lock()
	sess := s.createLocked()
	s.mu.Unlock()

	s.notify(Event{Kind: EventCreated, SessionID: sess.ID})
	s.schedulePersist()
	return sess
}

func (s *Store) createLocked() models.ChatSession {
	sess := models.NewSession(s.newID(), s.now())
	sessions := make([]models.ChatSession, 0, len(s.sessions)+1)
	sessions = append(sessions, sess)
	s.sessions = append(sessions, s.sessions...)
	s.activeID = sess.ID
	return sess
}

// UpdateSession applies transform to the session with id and stores the
// result in its place. It reports whether the session existed.
func (s *Store) UpdateSession(id string, transform func(models.ChatSession) models.ChatSession) bool {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	updated := transform(s.sessions[idx])
	updated.ID = id
	s.sessions[idx] = updated
	s.mu.Unlock()

	s.notify(Event{Kind: EventUpdated, SessionID: id})
	s.schedulePersist()
	return true
}

// DeleteSession removes the session with id. Deleting the active session
// activates the new first session; deleting the last one replaces it with a
// fresh session in the same step.
func (s *Store) DeleteSession(id string) bool {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}

	remaining := make([]models.ChatSession, 0, len(s.sessions)-1)
	remaining = append(remaining, s.sessions[:idx]...)
	remaining = append(remaining, s.sessions[idx+1:]...)
	s.sessions = remaining

	var created string
	switch {
	case len(s.sessions) == 0:
		created = s.createLocked().ID
	case s.activeID == id:
		s.activeID = s.sessions[0].ID
	}
	s.mu.Unlock()

	s.notify(Event{Kind: EventDeleted, SessionID: id})
	if created != "" {
		s.notify(Event{Kind: EventCreated, SessionID: created})
	}
	s.schedulePersist()
	return true
}

// Select makes the session with id active
func (s *Store) Select(id string) error {
	s.mu.Lock()
	if s.indexLocked(id) < 0 {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	changed := s.activeID != id
	s.activeID = id
	s.mu.Unlock()

	if changed {
		s.notify(Event{Kind: EventSelected, SessionID: id})
	}
	return nil
}

// Import appends sessions whose ids are not already present and returns how
// many were added. Imported sessions keep their relative order.
func (s *Store) Import(sessions []models.ChatSession) int {
	incoming := make([]models.ChatSession, len(sessions))
	copy(incoming, sessions)
	settleInterrupted(incoming, s.now())

	s.mu.Lock()
	added := 0
	for _, sess := range incoming {
		if s.indexLocked(sess.ID) >= 0 {
			continue
		}
		s.sessions = append(s.sessions, sess)
		added++
	}
	if s.activeID == "" && len(s.sessions) > 0 {
		s.activeID = s.sessions[0].ID
	}
	s.mu.Unlock()

	if added > 0 {
		s.notify(Event{Kind: EventImported})
		s.schedulePersist()
	}
	return added
}

// Sessions returns a snapshot of the collection in display order
func (s *Store) Sessions() []models.ChatSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChatSession, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Len returns the number of sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Session returns a snapshot of the session with id
func (s *Store) Session(id string) (models.ChatSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return models.ChatSession{}, false
	}
	return s.sessions[idx], true
}

// ActiveID returns the id of the selected session, or "" when none
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Active returns a snapshot of the selected session
func (s *Store) Active() (models.ChatSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexLocked(s.activeID)
	if idx < 0 {
		return models.ChatSession{}, false
	}
	return s.sessions[idx], true
}

func (s *Store) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

// Handle returns an accessor scoped to a single session
func (s *Store) Handle(id string) Handle {
	return Handle{store: s, id: id}
}

// Handle reads and updates exactly one session of a Store
type Handle struct {
	store *Store
	id    string
}

// ID returns the session id the handle is bound to
func (h Handle) ID() string { return h.id }

// Get returns a snapshot of the bound session
func (h Handle) Get() (models.ChatSession, bool) {
	return h.store.Session(h.id)
}

// Update applies transform to the bound session
func (h Handle) Update(transform func(models.ChatSession) models.ChatSession) bool {
	return h.store.UpdateSession(h.id, transform)
}

// Subscribe returns a channel of change events and a function that ends the
// subscription. Events are dropped rather than blocking the store when the
// subscriber falls behind; every event means "re-read the snapshot".
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, 64)
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
			s.subMu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Store) notify(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Persist writes the current collection to the backend. An empty collection
// is never written. Failures are logged and returned as *WriteError.
func (s *Store) Persist(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sessions := s.Sessions()
	if len(sessions) == 0 {
		return nil
	}

	data, err := Encode(sessions)
	if err == nil {
		err = s.backend.Put(ctx, s.key, data)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("failed to persist chat history")
		return &WriteError{Key: s.key, Err: err}
	}
	return nil
}

func (s *Store) schedulePersist() {
	select {
	case s.persistCh <- struct{}{}:
	default:
		// a write is already pending and will pick up this change
	}
}

func (s *Store) persistLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.persistCh:
			_ = s.Persist(context.Background())
		case <-s.done:
			return
		}
	}
}

// Close stops the background persister and performs a final write
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()

		err = s.Persist(context.Background())

		s.subMu.Lock()
		for id, ch := range s.subs {
			delete(s.subs, id)
			close(ch)
		}
		s.subMu.Unlock()
	})
	return err
}
