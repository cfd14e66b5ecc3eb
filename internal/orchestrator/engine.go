// Package orchestrator wires the conversation pipeline together and owns the
// application state aggregate: sessions, personas, profile, memories, and the
// point balance. All public operations return snapshots, never internal
// pointers, and flush durable state through the persisted store on every
// mutation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"parley/internal/economy"
	"parley/internal/logging"
	"parley/internal/model"
	"parley/internal/persona"
	"parley/internal/profile"
	"parley/internal/session"
	"parley/internal/types"
)

// ErrStreamOpen rejects a submit while the target session still has an open
// stream. At most one stream per session at a time.
var ErrStreamOpen = errors.New("a response stream is already open for this session")

// ErrInsufficientBalance rejects a cost-bearing submit the gate cannot cover.
// No message is sent to the model and nothing is deducted.
var ErrInsufficientBalance = errors.New("insufficient point balance")

// Persistence is the durable-store surface the engine flushes through. All
// writes are best effort: a failed flush is logged, never surfaced.
type Persistence interface {
	SaveSession(types.Session) error
	DeleteSession(id string) error
	SavePersona(types.Persona) error
	DeletePersona(id string) error
	SaveProfile(types.UserProfile) error
	SaveMemories(general, pinned []string) error
	SaveEconomy(types.EconomyState) error
}

// Options carries everything New needs. Source is required; everything else
// has a usable zero value.
type Options struct {
	Source    model.StreamSource
	Extractor profile.Extractor
	Persist   Persistence
	Locale    string

	EconomyConfig economy.Config
	EconomyState  types.EconomyState

	Profile         types.UserProfile
	GeneralMemories []string
	PinnedMemories  []string
	Sessions        []types.Session
	Personas        []types.Persona
	PersonaDir      string

	Clock func() time.Time
}

// Engine is the conversation orchestration engine.
type Engine struct {
	source   model.StreamSource
	sessions *session.Store
	personas *persona.Registry
	gate     *economy.Gate
	persist  Persistence
	tasks    *profile.TaskGroup
	locale   string
	now      func() time.Time

	mu      sync.Mutex
	busy    map[string]bool
	profile types.UserProfile
	general []string
	pinned  []string
}

// New assembles an engine from previously persisted state.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("a stream source is required")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.EconomyConfig.DailyAllotment == 0 {
		opts.EconomyConfig = economy.DefaultConfig()
	}
	if opts.Locale == "" {
		opts.Locale = "en"
	}

	e := &Engine{
		source:  opts.Source,
		persist: opts.Persist,
		locale:  opts.Locale,
		now:     opts.Clock,
		busy:    make(map[string]bool),
		profile: opts.Profile.Clone(),
		general: append([]string(nil), opts.GeneralMemories...),
		pinned:  append([]string(nil), opts.PinnedMemories...),
	}

	e.personas = persona.NewRegistry(
		persona.WithDir(opts.PersonaDir),
		persona.WithOnChange(func(p types.Persona) {
			e.flush(func(s Persistence) error { return s.SavePersona(p) })
		}),
		persona.WithOnDelete(func(id string) {
			e.flush(func(s Persistence) error { return s.DeletePersona(id) })
		}),
	)
	e.personas.Load(opts.Personas)
	if err := e.personas.ReloadDir(); err != nil {
		logging.Get(logging.CategoryBoot).Warn("persona dir load failed: %v", err)
	}

	e.sessions = session.NewStore(
		session.WithClock(opts.Clock),
		session.WithPersonaNames(e.personas.Name),
		session.WithOnChange(func(sess types.Session) {
			e.flush(func(s Persistence) error { return s.SaveSession(sess) })
		}),
		session.WithOnDelete(func(id string) {
			e.flush(func(s Persistence) error { return s.DeleteSession(id) })
		}),
	)
	e.sessions.Load(opts.Sessions)

	e.gate = economy.New(opts.EconomyConfig, opts.EconomyState,
		economy.WithClock(opts.Clock),
		economy.WithOnChange(func(state types.EconomyState) {
			e.flush(func(s Persistence) error { return s.SaveEconomy(state) })
		}),
	)

	if opts.Extractor != nil {
		e.tasks = profile.NewTaskGroup(ctx, opts.Extractor, e.applyFacts)
	}

	logging.Get(logging.CategoryBoot).Info(
		"engine ready: %d sessions, %d personas, balance=%d",
		len(opts.Sessions), len(opts.Personas), e.gate.Snapshot().Balance)
	return e, nil
}

// Close drains background work.
func (e *Engine) Close() {
	if e.tasks != nil {
		e.tasks.Close()
	}
}

// =============================================================================
// SESSION OPERATIONS
// =============================================================================

// CreateSession creates and activates a session. Ephemeral sessions replace
// any previous ephemeral session and are never persisted.
func (e *Engine) CreateSession(settings types.Settings, personaID string, ephemeral bool) types.Session {
	if ephemeral {
		return e.sessions.CreateEphemeral(settings, personaID)
	}
	return e.sessions.CreatePersistent(settings, personaID)
}

// SelectSession activates the identified session.
func (e *Engine) SelectSession(id string) (types.Session, error) {
	return e.sessions.Select(id)
}

// ActiveSession returns the active session snapshot, if any.
func (e *Engine) ActiveSession() (types.Session, bool) {
	return e.sessions.Active()
}

// Sessions returns snapshots of all persistent sessions.
func (e *Engine) Sessions() []types.Session {
	return e.sessions.Persistent()
}

// DeleteSession destroys a session, reassigning the active selection to the
// most recent remaining session or none.
func (e *Engine) DeleteSession(id string) error {
	return e.sessions.Delete(id)
}

// UpdateSettings replaces a session's settings.
func (e *Engine) UpdateSettings(id string, settings types.Settings) (types.Session, error) {
	return e.sessions.UpdateSettings(id, settings)
}

// AddKnowledge attaches an already-decoded knowledge file to a session.
func (e *Engine) AddKnowledge(id string, file types.KnowledgeFile) (types.Session, error) {
	return e.sessions.AddKnowledge(id, file)
}

// RemoveKnowledge detaches the named knowledge file.
func (e *Engine) RemoveKnowledge(id string, name string) (types.Session, error) {
	return e.sessions.RemoveKnowledge(id, name)
}

// =============================================================================
// ECONOMY, PERSONAS, MEMORIES
// =============================================================================

// Balance returns the current economy state, applying the daily reset.
func (e *Engine) Balance() types.EconomyState {
	return e.gate.Snapshot()
}

// Personas lists all known personas.
func (e *Engine) Personas() []types.Persona {
	return e.personas.List()
}

// SavePersona creates or edits a persona. Edits apply to future turns only.
func (e *Engine) SavePersona(p types.Persona) error {
	return e.personas.Upsert(p)
}

// DeletePersona removes a stored persona.
func (e *Engine) DeletePersona(id string) error {
	return e.personas.Delete(id)
}

// PersonaRegistry exposes the registry for the file watcher.
func (e *Engine) PersonaRegistry() *persona.Registry {
	return e.personas
}

// Profile returns the accumulated user profile.
func (e *Engine) Profile() types.UserProfile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile.Clone()
}

// AddGeneralMemory records a remembered statement for future directives.
func (e *Engine) AddGeneralMemory(text string) {
	e.mu.Lock()
	e.general = append(e.general, text)
	general, pinned := append([]string(nil), e.general...), append([]string(nil), e.pinned...)
	e.mu.Unlock()
	e.flush(func(s Persistence) error { return s.SaveMemories(general, pinned) })
}

// AddPinnedMemory records a high-importance user statement.
func (e *Engine) AddPinnedMemory(text string) {
	e.mu.Lock()
	e.pinned = append(e.pinned, text)
	general, pinned := append([]string(nil), e.general...), append([]string(nil), e.pinned...)
	e.mu.Unlock()
	e.flush(func(s Persistence) error { return s.SaveMemories(general, pinned) })
}

// =============================================================================
// INTERNALS
// =============================================================================

// applyFacts merges extracted facts into the profile and flushes it.
func (e *Engine) applyFacts(facts types.ProfileFacts) {
	e.mu.Lock()
	e.profile.Merge(facts)
	snapshot := e.profile.Clone()
	e.mu.Unlock()

	logging.Get(logging.CategoryProfile).Info("profile updated")
	e.flush(func(s Persistence) error { return s.SaveProfile(snapshot) })
}

// flush runs a persistence write, logging failures instead of surfacing them.
func (e *Engine) flush(write func(Persistence) error) {
	if e.persist == nil {
		return
	}
	if err := write(e.persist); err != nil {
		logging.Get(logging.CategoryStore).Error("flush failed: %v", err)
	}
}

func (e *Engine) setBusy(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy[id] {
		return false
	}
	e.busy[id] = true
	return true
}

func (e *Engine) clearBusy(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.busy, id)
}

func (e *Engine) memorySnapshot() (types.UserProfile, []string, []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile.Clone(),
		append([]string(nil), e.general...),
		append([]string(nil), e.pinned...)
}
