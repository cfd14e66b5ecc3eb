// Package types provides shared type definitions used across parley packages.
// This package exists to break import cycles between the orchestrator, the
// classifier, and the stores. Types in this package should be foundational
// data structures with no complex dependencies.
package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLES AND MESSAGE LIFECYCLE
// =============================================================================

// Role identifies the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// MessageState tags where a message is in its two-phase lifecycle.
// A Provisional message has a mutable content tail (an open stream is still
// appending to it); a Final message is immutable and safe to persist.
type MessageState string

const (
	StateProvisional MessageState = "provisional"
	StateFinal       MessageState = "final"
)

// =============================================================================
// MESSAGE CONTENT - TAGGED UNION
// =============================================================================

// Content is the tagged union over the two interpretations of a model
// payload: free-form narrative text, or a structured artifact. The concrete
// types are Narrative and Artifact; nothing else implements this interface.
type Content interface {
	isContent()
}

// Narrative is free-form text. Downstream rendering interprets embedded
// diagram/formula/table spans; this layer never alters the string.
type Narrative struct {
	Text string
}

func (Narrative) isContent() {}

// Artifact is a structured response of one of the closed set of kinds.
// Fields holds the full parsed object, including the "kind" key. Fields
// beyond a kind's declared schema are preserved but not validated.
type Artifact struct {
	Kind   ArtifactKind
	Fields map[string]any
}

func (Artifact) isContent() {}

// =============================================================================
// MESSAGES
// =============================================================================

// Source is a citation reference collected during streaming.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Attachment is a lightweight reference to a user-supplied file or image.
// Decoding is the ingestion collaborator's concern; only the reference
// travels with the message.
type Attachment struct {
	Name string `json:"name"`
	MIME string `json:"mime"`
	URI  string `json:"uri"`
}

// Message is a single conversation entry. Immutable once created except
// Content and Sources, which are replaced wholesale during streaming and
// finalization. IDs are opaque monotonic tokens: lexicographic order equals
// creation order.
type Message struct {
	ID          string
	Role        Role
	State       MessageState
	Content     Content
	Sources     []Source
	Attachments []Attachment
	CreatedAt   time.Time
}

// Text returns the narrative text of the message, or "" for artifacts.
func (m Message) Text() string {
	if n, ok := m.Content.(Narrative); ok {
		return n.Text
	}
	return ""
}

// NewMessageID returns an opaque token that sorts lexicographically in
// creation order for time-ordered now values.
func NewMessageID(now time.Time) string {
	return fmt.Sprintf("%020d-%s", now.UnixNano(), uuid.NewString())
}

// NewSessionID returns a session id with the same monotonic property.
// The retriever and the delete-fallback rule both rely on reverse
// lexicographic id order being a recency proxy.
func NewSessionID(now time.Time) string {
	return fmt.Sprintf("%020d-%s", now.UnixNano(), uuid.NewString())
}

// =============================================================================
// SESSIONS
// =============================================================================

// Settings are the per-session behavioral flags.
type Settings struct {
	SearchEnabled  bool `json:"search_enabled"`
	DeepThinking   bool `json:"deep_thinking"`
	ScientificMode bool `json:"scientific_mode"`
}

// KnowledgeFile is an already-decoded document attached to a session or a
// persona. Name and full text only; extraction happens upstream.
type KnowledgeFile struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Session is one conversation track. Persistent sessions are keyed by ID and
// survive restarts; the ephemeral session is a singleton that is never
// persisted (Ephemeral=true, ID=EphemeralSessionID).
type Session struct {
	ID        string
	Title     string
	Ephemeral bool
	Messages  []Message
	Settings  Settings
	PersonaID string
	Knowledge []KnowledgeFile
	CreatedAt time.Time
}

// EphemeralSessionID is the sentinel id of the singleton ephemeral session.
const EphemeralSessionID = "ephemeral"

// Clone returns a deep copy. Public engine operations hand out clones so
// callers can never alias store-internal state.
func (s Session) Clone() Session {
	out := s
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		cm := m
		cm.Sources = append([]Source(nil), m.Sources...)
		cm.Attachments = append([]Attachment(nil), m.Attachments...)
		if a, ok := m.Content.(Artifact); ok {
			cm.Content = Artifact{Kind: a.Kind, Fields: cloneFields(a.Fields)}
		}
		out.Messages[i] = cm
	}
	out.Knowledge = append([]KnowledgeFile(nil), s.Knowledge...)
	return out
}

func cloneFields(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// LastMessage returns a pointer to the tail message, or nil if empty.
func (s *Session) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// =============================================================================
// PERSONAS
// =============================================================================

// Persona is a user-defined assistant identity. DirectiveOverride replaces
// the default system persona wholesale when the persona is active. Editing a
// persona does not retroactively change directives already assembled for
// past sessions.
type Persona struct {
	ID                string          `json:"id" yaml:"id"`
	Name              string          `json:"name" yaml:"name"`
	Icon              string          `json:"icon" yaml:"icon"`
	DirectiveOverride string          `json:"directive" yaml:"directive"`
	Knowledge         []KnowledgeFile `json:"knowledge" yaml:"knowledge"`
}

// =============================================================================
// ECONOMY
// =============================================================================

// EconomyState is the point balance with its daily-reset marker.
// Balance never goes negative; LastResetDay is a date-only key in the
// process-local timezone.
type EconomyState struct {
	Balance      int    `json:"balance"`
	LastResetDay string `json:"last_reset_day"`
}

// DayKey formats t as the date-only reset marker.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// =============================================================================
// RETRIEVED CONTEXT
// =============================================================================

// ContextSnippet is one prior exchange surfaced by the relevance retriever:
// a past user message and, when one immediately followed, the model reply.
type ContextSnippet struct {
	SessionID string
	UserText  string
	ReplyText string
}
