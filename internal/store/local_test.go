package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"parley/internal/types"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "parley.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)

	sess := types.Session{
		ID:    "00001-abc",
		Title: "Garden talk",
		Messages: []types.Message{
			{
				ID: "m1", Role: types.RoleUser, State: types.StateFinal,
				Content:   types.Narrative{Text: "hello"},
				CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			},
			{
				ID: "m2", Role: types.RoleModel, State: types.StateFinal,
				Content: types.Artifact{Kind: types.KindTable, Fields: map[string]any{"kind": "table", "title": "T"}},
				Sources: []types.Source{{URI: "https://a.example", Title: "A"}},
			},
		},
		Settings:  types.Settings{DeepThinking: true},
		Knowledge: []types.KnowledgeFile{{Name: "k.txt", Text: "body"}},
	}
	require.NoError(t, s.SaveSession(sess))

	loaded, err := s.LoadSessions()
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	require.Equal(t, sess.ID, got.ID)
	require.Equal(t, sess.Title, got.Title)
	require.Len(t, got.Messages, 2)
	require.Equal(t, types.Narrative{Text: "hello"}, got.Messages[0].Content)

	art, ok := got.Messages[1].Content.(types.Artifact)
	require.True(t, ok, "artifact content lost in round trip")
	require.Equal(t, types.KindTable, art.Kind)
	require.Equal(t, "T", art.Fields["title"])
	require.Equal(t, sess.Messages[1].Sources, got.Messages[1].Sources)
}

func TestSaveSession_RejectsEphemeral(t *testing.T) {
	s := newTestStore(t)
	err := s.SaveSession(types.Session{ID: types.EphemeralSessionID, Ephemeral: true})
	require.Error(t, err)
}

func TestSaveSession_Upsert(t *testing.T) {
	s := newTestStore(t)

	sess := types.Session{ID: "s1", Title: "first"}
	require.NoError(t, s.SaveSession(sess))
	sess.Title = "second"
	require.NoError(t, s.SaveSession(sess))

	loaded, err := s.LoadSessions()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "second", loaded[0].Title)
}

func TestDeleteSession(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveSession(types.Session{ID: "s1"}))
	require.NoError(t, s.DeleteSession("s1"))
	require.NoError(t, s.DeleteSession("missing")) // no-op

	loaded, err := s.LoadSessions()
	require.NoError(t, err)
	require.Empty(t, loaded)
}

func TestPersonaRoundTrip(t *testing.T) {
	s := newTestStore(t)

	p := types.Persona{
		ID: "p1", Name: "Chef", Icon: "🍳",
		DirectiveOverride: "You are a chef.",
		Knowledge:         []types.KnowledgeFile{{Name: "menu", Text: "soup"}},
	}
	require.NoError(t, s.SavePersona(p))

	personas, err := s.LoadPersonas()
	require.NoError(t, err)
	require.Equal(t, []types.Persona{p}, personas)

	require.NoError(t, s.DeletePersona("p1"))
	personas, err = s.LoadPersonas()
	require.NoError(t, err)
	require.Empty(t, personas)
}

func TestKeyedSingletons(t *testing.T) {
	s := newTestStore(t)

	// Absent records come back zero-valued without error.
	profile, err := s.LoadProfile()
	require.NoError(t, err)
	require.Equal(t, types.UserProfile{}, profile)

	_, found, err := s.LoadEconomy()
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.SaveProfile(types.UserProfile{Name: "Ada", Interests: []string{"go"}}))
	require.NoError(t, s.SaveMemories([]string{"likes tea"}, []string{"vegetarian"}))
	require.NoError(t, s.SaveEconomy(types.EconomyState{Balance: 42, LastResetDay: "2026-03-01"}))

	profile, err = s.LoadProfile()
	require.NoError(t, err)
	require.Equal(t, "Ada", profile.Name)

	general, pinned, err := s.LoadMemories()
	require.NoError(t, err)
	require.Equal(t, []string{"likes tea"}, general)
	require.Equal(t, []string{"vegetarian"}, pinned)

	state, found, err := s.LoadEconomy()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 42, state.Balance)
}
