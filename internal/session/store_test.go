package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	"parley/internal/types"
)

func testClock() func() time.Time {
	t := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func userMsg(id, text string) types.Message {
	return types.Message{ID: id, Role: types.RoleUser, State: types.StateFinal, Content: types.Narrative{Text: text}}
}

func TestSelectionExclusive(t *testing.T) {
	s := NewStore(WithClock(testClock()))

	p := s.CreatePersistent(types.Settings{}, "")
	if got := s.ActiveID(); got != p.ID {
		t.Fatalf("active = %q, want %q", got, p.ID)
	}

	s.CreateEphemeral(types.Settings{}, "")
	if got := s.ActiveID(); got != types.EphemeralSessionID {
		t.Fatalf("active = %q, want ephemeral", got)
	}

	if _, err := s.Select(p.ID); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := s.ActiveID(); got != p.ID {
		t.Fatalf("active = %q, want %q after reselect", got, p.ID)
	}
}

func TestTitleDerivedExactlyOnce(t *testing.T) {
	s := NewStore(WithClock(testClock()))
	p := s.CreatePersistent(types.Settings{}, "")

	long := strings.Repeat("word ", 20)
	if _, err := s.AppendUserMessage(p.ID, userMsg("m1", long)); err != nil {
		t.Fatalf("AppendUserMessage: %v", err)
	}

	got, _ := s.Get(p.ID)
	if len([]rune(got.Title)) != 40 {
		t.Fatalf("title length = %d, want 40", len([]rune(got.Title)))
	}
	first := got.Title

	if _, err := s.AppendUserMessage(p.ID, userMsg("m2", "a different message")); err != nil {
		t.Fatalf("AppendUserMessage: %v", err)
	}
	got, _ = s.Get(p.ID)
	if got.Title != first {
		t.Fatalf("title changed on second message: %q -> %q", first, got.Title)
	}
}

func TestTitleFromPersonaName(t *testing.T) {
	s := NewStore(WithClock(testClock()), WithPersonaNames(func(id string) string {
		if id == "p1" {
			return "Chef"
		}
		return ""
	}))
	p := s.CreatePersistent(types.Settings{}, "p1")
	s.AppendUserMessage(p.ID, userMsg("m1", "hello"))

	got, _ := s.Get(p.ID)
	if got.Title != "Chef" {
		t.Fatalf("title = %q, want Chef", got.Title)
	}
}

func TestEphemeralNeverFlushed(t *testing.T) {
	var flushed []string
	s := NewStore(WithClock(testClock()), WithOnChange(func(sess types.Session) {
		flushed = append(flushed, sess.ID)
	}))

	e := s.CreateEphemeral(types.Settings{}, "")
	s.AppendUserMessage(e.ID, userMsg("m1", "secret"))
	if len(flushed) != 0 {
		t.Fatalf("ephemeral session flushed: %v", flushed)
	}

	p := s.CreatePersistent(types.Settings{}, "")
	s.AppendUserMessage(p.ID, userMsg("m2", "hello"))
	if len(flushed) != 2 { // create + append
		t.Fatalf("flush calls = %v, want create+append for persistent", flushed)
	}
}

func TestPutModelMessage_ReplaceTailById(t *testing.T) {
	s := NewStore(WithClock(testClock()))
	p := s.CreatePersistent(types.Settings{}, "")
	s.AppendUserMessage(p.ID, userMsg("m1", "hi"))

	prov := types.Message{ID: "m2", Role: types.RoleModel, State: types.StateProvisional, Content: types.Narrative{Text: "He"}}
	if _, err := s.PutModelMessage(p.ID, prov); err != nil {
		t.Fatalf("PutModelMessage: %v", err)
	}

	prov.Content = types.Narrative{Text: "Hello"}
	prov.State = types.StateFinal
	sess, err := s.PutModelMessage(p.ID, prov)
	if err != nil {
		t.Fatalf("PutModelMessage: %v", err)
	}

	if len(sess.Messages) != 2 {
		t.Fatalf("messages = %d, want 2 (replace, not append)", len(sess.Messages))
	}
	last := sess.Messages[1]
	if last.State != types.StateFinal || last.Text() != "Hello" {
		t.Fatalf("tail = %+v, want finalized Hello", last)
	}
}

func TestDelete_ActiveFallback(t *testing.T) {
	s := NewStore(WithClock(testClock()))
	a := s.CreatePersistent(types.Settings{}, "")
	b := s.CreatePersistent(types.Settings{}, "")
	c := s.CreatePersistent(types.Settings{}, "")

	// c is newest and active.
	if s.ActiveID() != c.ID {
		t.Fatalf("active = %q, want %q", s.ActiveID(), c.ID)
	}
	if err := s.Delete(c.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.ActiveID() != b.ID {
		t.Fatalf("active = %q, want newest remaining %q", s.ActiveID(), b.ID)
	}

	if err := s.Delete(a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.ActiveID() != b.ID {
		t.Fatalf("deleting inactive session moved selection to %q", s.ActiveID())
	}

	if err := s.Delete(b.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.ActiveID() != "" {
		t.Fatalf("active = %q, want none", s.ActiveID())
	}
}

func TestDelete_Unknown(t *testing.T) {
	s := NewStore()
	if err := s.Delete("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete(unknown) = %v, want ErrNotFound", err)
	}
	if err := s.Delete(types.EphemeralSessionID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete(ephemeral, none active) = %v, want ErrNotFound", err)
	}
}

func TestApply_SnapshotNotAliased(t *testing.T) {
	s := NewStore(WithClock(testClock()))
	p := s.CreatePersistent(types.Settings{}, "")
	s.AppendUserMessage(p.ID, userMsg("m1", "hi"))

	snap, _ := s.Get(p.ID)
	snap.Messages[0] = userMsg("m1", "mutated")

	fresh, _ := s.Get(p.ID)
	if fresh.Messages[0].Text() != "hi" {
		t.Fatal("caller mutation leaked into store")
	}
}

func TestApply_CannotChangeIdentity(t *testing.T) {
	s := NewStore(WithClock(testClock()))
	p := s.CreatePersistent(types.Settings{}, "")

	got, err := s.Apply(p.ID, func(sess types.Session) types.Session {
		sess.ID = "hijacked"
		sess.Ephemeral = true
		return sess
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got.ID != p.ID || got.Ephemeral {
		t.Fatalf("reducer changed identity: %+v", got)
	}
}
