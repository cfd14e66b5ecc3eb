// Package session owns the set of conversation sessions: persistent sessions
// keyed by id plus at most one ephemeral session. Every mutation goes through
// a pure reducer applied under the store lock, so concurrent calls for
// different sessions never interfere and a streaming replace of the tail
// message is atomic.
package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"parley/internal/logging"
	"parley/internal/types"
)

// ErrNotFound is returned for an unknown session id.
var ErrNotFound = errors.New("session not found")

// titleMaxRunes bounds the derived session title.
const titleMaxRunes = 40

// Store is the process-wide session registry.
type Store struct {
	mu         sync.Mutex
	persistent map[string]*types.Session
	ephemeral  *types.Session
	activeID   string // "" = none, types.EphemeralSessionID = ephemeral

	now         func() time.Time
	onChange    func(types.Session) // flush hook, persistent sessions only
	onDelete    func(id string)
	personaName func(id string) string
}

// Option customizes a Store.
type Option func(*Store)

// WithClock injects the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithOnChange registers the persistence flush hook. It receives a clone of
// the mutated session after every persistent-session mutation.
func WithOnChange(fn func(types.Session)) Option {
	return func(s *Store) { s.onChange = fn }
}

// WithOnDelete registers the persistence delete hook.
func WithOnDelete(fn func(id string)) Option {
	return func(s *Store) { s.onDelete = fn }
}

// WithPersonaNames provides persona name lookup for title derivation.
func WithPersonaNames(fn func(id string) string) Option {
	return func(s *Store) { s.personaName = fn }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		persistent: make(map[string]*types.Session),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load seeds the store from previously persisted sessions. Ephemeral
// sessions are never persisted, so everything loaded is persistent.
func (s *Store) Load(sessions []types.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range sessions {
		c := sess.Clone()
		c.Ephemeral = false
		s.persistent[c.ID] = &c
	}
	logging.Session("loaded %d persistent sessions", len(sessions))
}

// =============================================================================
// CREATION AND SELECTION
// =============================================================================

// CreatePersistent creates, activates, and returns a new persistent session.
// Activating it deactivates the ephemeral session.
func (s *Store) CreatePersistent(settings types.Settings, personaID string) types.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := &types.Session{
		ID:        types.NewSessionID(now),
		Settings:  settings,
		PersonaID: personaID,
		CreatedAt: now,
	}
	s.persistent[sess.ID] = sess
	s.activeID = sess.ID

	logging.Session("created persistent session %s", sess.ID)
	s.flushLocked(sess)
	return sess.Clone()
}

// CreateEphemeral replaces the singleton ephemeral session with a fresh one,
// activates it, and deactivates any persistent selection. It is never
// persisted.
func (s *Store) CreateEphemeral(settings types.Settings, personaID string) types.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.ephemeral = &types.Session{
		ID:        types.EphemeralSessionID,
		Ephemeral: true,
		Settings:  settings,
		PersonaID: personaID,
		CreatedAt: now,
	}
	s.activeID = types.EphemeralSessionID

	logging.Session("ephemeral session started")
	return s.ephemeral.Clone()
}

// Select activates the given session (persistent id or the ephemeral
// sentinel). Selection is exclusive: activating one kind deactivates the
// other.
func (s *Store) Select(id string) (types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookupLocked(id)
	if err != nil {
		return types.Session{}, err
	}
	s.activeID = id
	return sess.Clone(), nil
}

// ActiveID returns the active session id ("" when none).
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Active returns a clone of the active session.
func (s *Store) Active() (types.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == "" {
		return types.Session{}, false
	}
	sess, err := s.lookupLocked(s.activeID)
	if err != nil {
		return types.Session{}, false
	}
	return sess.Clone(), true
}

// Get returns a clone of the identified session.
func (s *Store) Get(id string) (types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.lookupLocked(id)
	if err != nil {
		return types.Session{}, err
	}
	return sess.Clone(), nil
}

// Persistent returns clones of all persistent sessions, unordered.
func (s *Store) Persistent() []types.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Session, 0, len(s.persistent))
	for _, sess := range s.persistent {
		out = append(out, sess.Clone())
	}
	return out
}

// =============================================================================
// MUTATION - REDUCER APPLICATION
// =============================================================================

// Apply runs the reducer against the identified session and swaps the result
// in atomically. The reducer must be pure; it receives and returns a value,
// never a shared pointer.
func (s *Store) Apply(id string, reduce func(types.Session) types.Session) (types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookupLocked(id)
	if err != nil {
		return types.Session{}, err
	}

	next := reduce(sess.Clone())
	// Identity and lifetime are not reducible.
	next.ID = sess.ID
	next.Ephemeral = sess.Ephemeral
	*sess = next

	s.flushLocked(sess)
	return sess.Clone(), nil
}

// AppendUserMessage appends a user message and derives the title on the
// session's first real exchange. Title derivation happens exactly once: from
// the first user message, truncated, or from the attached persona's name.
func (s *Store) AppendUserMessage(id string, msg types.Message) (types.Session, error) {
	return s.Apply(id, func(sess types.Session) types.Session {
		if !sess.Ephemeral && sess.Title == "" {
			sess.Title = s.deriveTitle(sess, msg)
		}
		sess.Messages = append(sess.Messages, msg)
		return sess
	})
}

// PutModelMessage appends the message, or replaces the tail wholesale when
// the tail carries the same id. Streaming calls this repeatedly: once to
// install the provisional message, then for every delta and the terminal
// classification. Replacement is atomic under the store lock.
func (s *Store) PutModelMessage(id string, msg types.Message) (types.Session, error) {
	return s.Apply(id, func(sess types.Session) types.Session {
		if last := sess.LastMessage(); last != nil && last.ID == msg.ID {
			sess.Messages[len(sess.Messages)-1] = msg
		} else {
			sess.Messages = append(sess.Messages, msg)
		}
		return sess
	})
}

// UpdateSettings replaces the session settings.
func (s *Store) UpdateSettings(id string, settings types.Settings) (types.Session, error) {
	return s.Apply(id, func(sess types.Session) types.Session {
		sess.Settings = settings
		return sess
	})
}

// AddKnowledge appends a knowledge file.
func (s *Store) AddKnowledge(id string, file types.KnowledgeFile) (types.Session, error) {
	return s.Apply(id, func(sess types.Session) types.Session {
		sess.Knowledge = append(sess.Knowledge, file)
		return sess
	})
}

// RemoveKnowledge removes the named knowledge file. Unknown names are a
// no-op.
func (s *Store) RemoveKnowledge(id string, name string) (types.Session, error) {
	return s.Apply(id, func(sess types.Session) types.Session {
		kept := sess.Knowledge[:0]
		for _, k := range sess.Knowledge {
			if k.Name != name {
				kept = append(kept, k)
			}
		}
		sess.Knowledge = kept
		return sess
	})
}

// Delete destroys a session. Deleting the active session clears the active
// selection, falling back to the most recent remaining persistent session
// (highest id) or none.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == types.EphemeralSessionID {
		if s.ephemeral == nil {
			return ErrNotFound
		}
		s.ephemeral = nil
	} else {
		if _, ok := s.persistent[id]; !ok {
			return ErrNotFound
		}
		delete(s.persistent, id)
		if s.onDelete != nil {
			s.onDelete(id)
		}
	}

	if s.activeID == id {
		s.activeID = s.newestPersistentIDLocked()
	}
	logging.Session("deleted session %s (active now %q)", id, s.activeID)
	return nil
}

// =============================================================================
// INTERNALS
// =============================================================================

func (s *Store) lookupLocked(id string) (*types.Session, error) {
	if id == types.EphemeralSessionID {
		if s.ephemeral == nil {
			return nil, fmt.Errorf("%w: no ephemeral session active", ErrNotFound)
		}
		return s.ephemeral, nil
	}
	sess, ok := s.persistent[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, nil
}

func (s *Store) deriveTitle(sess types.Session, first types.Message) string {
	if sess.PersonaID != "" && s.personaName != nil {
		if name := s.personaName(sess.PersonaID); name != "" {
			return name
		}
	}
	runes := []rune(first.Text())
	if len(runes) > titleMaxRunes {
		runes = runes[:titleMaxRunes]
	}
	return string(runes)
}

func (s *Store) newestPersistentIDLocked() string {
	ids := make([]string, 0, len(s.persistent))
	for id := range s.persistent {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return ""
	}
	sort.Strings(ids)
	return ids[len(ids)-1]
}

// flushLocked hands a clone to the persistence hook. Ephemeral sessions are
// never flushed.
func (s *Store) flushLocked(sess *types.Session) {
	if sess.Ephemeral || s.onChange == nil {
		return
	}
	s.onChange(sess.Clone())
}
