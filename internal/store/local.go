// Package store persists the application state aggregate using SQLite:
// sessions, personas, the user profile, memories, and the economy state.
// Callers treat it as a keyed get/set surface; schema and durability are this
// package's concern alone.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"parley/internal/logging"
	"parley/internal/types"
)

// LocalStore is the SQLite-backed persisted store.
type LocalStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewLocalStore initializes the SQLite database at the given path.
func NewLocalStore(path string) (*LocalStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &LocalStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initialize creates the required tables.
func (s *LocalStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS personas (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	logging.StoreDebug("schema ready at %s", s.dbPath)
	return nil
}

// Close closes the underlying database.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// SESSIONS
// =============================================================================

// SaveSession upserts a session. Ephemeral sessions are rejected: they must
// never reach durable storage.
func (s *LocalStore) SaveSession(sess types.Session) error {
	if sess.Ephemeral {
		return fmt.Errorf("refusing to persist ephemeral session")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", sess.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		`INSERT INTO sessions (id, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		sess.ID, string(data),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to save session %s: %v", sess.ID, err)
		return err
	}
	logging.StoreDebug("saved session %s (%d messages)", sess.ID, len(sess.Messages))
	return nil
}

// LoadSessions returns all persisted sessions.
func (s *LocalStore) LoadSessions() ([]types.Session, error) {
	timer := logging.StartTimer(logging.CategoryStore, "LoadSessions")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT data FROM sessions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []types.Session
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			continue
		}
		var sess types.Session
		if err := json.Unmarshal([]byte(data), &sess); err != nil {
			logging.Get(logging.CategoryStore).Warn("Skipping corrupt session record: %v", err)
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session record. Unknown ids are a no-op.
func (s *LocalStore) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// =============================================================================
// PERSONAS
// =============================================================================

// SavePersona upserts a persona.
func (s *LocalStore) SavePersona(p types.Persona) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal persona %s: %w", p.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		`INSERT INTO personas (id, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		p.ID, string(data),
	)
	return err
}

// LoadPersonas returns all persisted personas.
func (s *LocalStore) LoadPersonas() ([]types.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT data FROM personas ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query personas: %w", err)
	}
	defer rows.Close()

	var personas []types.Persona
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			continue
		}
		var p types.Persona
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			continue
		}
		personas = append(personas, p)
	}
	return personas, rows.Err()
}

// DeletePersona removes a persona record.
func (s *LocalStore) DeletePersona(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM personas WHERE id = ?`, id)
	return err
}

// =============================================================================
// KEYED SINGLETONS (profile, memories, economy)
// =============================================================================

const (
	keyProfile  = "profile"
	keyMemories = "memories"
	keyEconomy  = "economy"
)

// memoriesRecord bundles both memory lists under one key.
type memoriesRecord struct {
	General []string `json:"general"`
	Pinned  []string `json:"pinned"`
}

// SaveProfile persists the user profile.
func (s *LocalStore) SaveProfile(p types.UserProfile) error {
	return s.setKV(keyProfile, p)
}

// LoadProfile returns the persisted profile; a zero profile when absent.
func (s *LocalStore) LoadProfile() (types.UserProfile, error) {
	var p types.UserProfile
	_, err := s.getKV(keyProfile, &p)
	return p, err
}

// SaveMemories persists both memory lists.
func (s *LocalStore) SaveMemories(general, pinned []string) error {
	return s.setKV(keyMemories, memoriesRecord{General: general, Pinned: pinned})
}

// LoadMemories returns the persisted memory lists.
func (s *LocalStore) LoadMemories() (general, pinned []string, err error) {
	var rec memoriesRecord
	_, err = s.getKV(keyMemories, &rec)
	return rec.General, rec.Pinned, err
}

// SaveEconomy persists the economy state.
func (s *LocalStore) SaveEconomy(state types.EconomyState) error {
	return s.setKV(keyEconomy, state)
}

// LoadEconomy returns the persisted economy state and whether one existed.
func (s *LocalStore) LoadEconomy() (types.EconomyState, bool, error) {
	var state types.EconomyState
	found, err := s.getKV(keyEconomy, &state)
	return state, found, err
}

func (s *LocalStore) setKV(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, string(data),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to save %s: %v", key, err)
	}
	return err
}

func (s *LocalStore) getKV(key string, out any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return false, fmt.Errorf("corrupt %s record: %w", key, err)
	}
	return true, nil
}
