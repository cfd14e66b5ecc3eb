package retrieval

import (
	"fmt"
	"reflect"
	"testing"

	"parley/internal/types"
)

func userMsg(text string) types.Message {
	return types.Message{Role: types.RoleUser, State: types.StateFinal, Content: types.Narrative{Text: text}}
}

func modelMsg(text string) types.Message {
	return types.Message{Role: types.RoleModel, State: types.StateFinal, Content: types.Narrative{Text: text}}
}

func TestTokenize_FiltersShortAndNumeric(t *testing.T) {
	got := Tokenize("The 12345 cat ate 99 fresh Salmon, salmon!")
	want := map[string]bool{"fresh": true, "salmon": true}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize() = %v, want %v", got, want)
	}
}

func TestFind_RequiresMoreThanOneSharedWord(t *testing.T) {
	sessions := []types.Session{{
		ID:       "001",
		Messages: []types.Message{userMsg("quantum computing basics")},
	}}

	// Only "quantum" overlaps: below threshold.
	if got := Find("tell me about quantum physics", sessions); got != nil {
		t.Fatalf("Find() = %v, want nil for single shared word", got)
	}

	// "quantum" and "computing" overlap: qualifies.
	got := Find("more quantum computing please", sessions)
	if len(got) != 1 || got[0].UserText != "quantum computing basics" {
		t.Fatalf("Find() = %#v, want one snippet", got)
	}
}

func TestFind_EmptyPromptTokens(t *testing.T) {
	sessions := []types.Session{{ID: "001", Messages: []types.Message{userMsg("anything at all here")}}}
	if got := Find("a an 12 of", sessions); got != nil {
		t.Fatalf("Find() = %v, want nil for empty token set", got)
	}
}

func TestFind_AttachesImmediateModelReply(t *testing.T) {
	sessions := []types.Session{{
		ID: "001",
		Messages: []types.Message{
			userMsg("planning garden irrigation systems"),
			modelMsg("Drip irrigation works best."),
		},
	}}

	got := Find("garden irrigation question", sessions)
	want := []types.ContextSnippet{{
		SessionID: "001",
		UserText:  "planning garden irrigation systems",
		ReplyText: "Drip irrigation works best.",
	}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Find() = %#v, want %#v", got, want)
	}
}

func TestFind_NewestFirstAndCapped(t *testing.T) {
	var sessions []types.Session
	for i := 1; i <= 5; i++ {
		sessions = append(sessions, types.Session{
			ID:       fmt.Sprintf("%03d", i),
			Messages: []types.Message{userMsg(fmt.Sprintf("garden irrigation topic %d", i))},
		})
	}

	got := Find("garden irrigation", sessions)
	if len(got) != MaxSnippets {
		t.Fatalf("len = %d, want %d", len(got), MaxSnippets)
	}
	// Newest sessions (highest ids) first.
	if got[0].SessionID != "005" || got[1].SessionID != "004" || got[2].SessionID != "003" {
		t.Fatalf("order = %v, want 005,004,003", []string{got[0].SessionID, got[1].SessionID, got[2].SessionID})
	}
}

func TestFind_NewestMessageFirstWithinSession(t *testing.T) {
	sessions := []types.Session{{
		ID: "001",
		Messages: []types.Message{
			userMsg("garden irrigation early question"),
			modelMsg("early reply"),
			userMsg("garden irrigation later question"),
		},
	}}

	got := Find("garden irrigation", sessions)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].UserText != "garden irrigation later question" {
		t.Fatalf("got[0] = %q, want the later question first", got[0].UserText)
	}
}

func TestRenderBlock(t *testing.T) {
	if got := RenderBlock(nil); got != "" {
		t.Fatalf("RenderBlock(nil) = %q, want empty", got)
	}

	got := RenderBlock([]types.ContextSnippet{
		{UserText: "u1", ReplyText: "r1"},
		{UserText: "u2"},
	})
	want := "Relevant exchanges from earlier conversations:\n" +
		"- User said: u1\n" +
		"  You replied: r1\n" +
		"- User said: u2\n"
	if got != want {
		t.Fatalf("RenderBlock() = %q, want %q", got, want)
	}
}
