package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// messageJSON is the persisted wire form of Message. The content union is
// encoded with an explicit type tag so decoding never has to sniff shapes.
type messageJSON struct {
	ID          string         `json:"id"`
	Role        Role           `json:"role"`
	State       MessageState   `json:"state"`
	ContentType string         `json:"content_type"`
	Text        string         `json:"text,omitempty"`
	Kind        ArtifactKind   `json:"kind,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
	Sources     []Source       `json:"sources,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

const (
	contentTypeNarrative = "narrative"
	contentTypeArtifact  = "artifact"
)

// MarshalJSON implements json.Marshaler.
func (m Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{
		ID:          m.ID,
		Role:        m.Role,
		State:       m.State,
		Sources:     m.Sources,
		Attachments: m.Attachments,
		CreatedAt:   m.CreatedAt,
	}
	switch c := m.Content.(type) {
	case Narrative:
		out.ContentType = contentTypeNarrative
		out.Text = c.Text
	case Artifact:
		out.ContentType = contentTypeArtifact
		out.Kind = c.Kind
		out.Fields = c.Fields
	case nil:
		out.ContentType = contentTypeNarrative
	default:
		return nil, fmt.Errorf("unknown content type %T", m.Content)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Message) UnmarshalJSON(data []byte) error {
	var in messageJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*m = Message{
		ID:          in.ID,
		Role:        in.Role,
		State:       in.State,
		Sources:     in.Sources,
		Attachments: in.Attachments,
		CreatedAt:   in.CreatedAt,
	}
	switch in.ContentType {
	case contentTypeArtifact:
		m.Content = Artifact{Kind: in.Kind, Fields: in.Fields}
	case contentTypeNarrative, "":
		m.Content = Narrative{Text: in.Text}
	default:
		return fmt.Errorf("unknown content_type %q", in.ContentType)
	}
	return nil
}

// sessionJSON mirrors Session for persistence.
type sessionJSON struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Messages  []Message       `json:"messages"`
	Settings  Settings        `json:"settings"`
	PersonaID string          `json:"persona_id,omitempty"`
	Knowledge []KnowledgeFile `json:"knowledge,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// MarshalJSON implements json.Marshaler. The Ephemeral flag is deliberately
// absent: ephemeral sessions are never serialized.
func (s Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(sessionJSON{
		ID:        s.ID,
		Title:     s.Title,
		Messages:  s.Messages,
		Settings:  s.Settings,
		PersonaID: s.PersonaID,
		Knowledge: s.Knowledge,
		CreatedAt: s.CreatedAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Session) UnmarshalJSON(data []byte) error {
	var in sessionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = Session{
		ID:        in.ID,
		Title:     in.Title,
		Messages:  in.Messages,
		Settings:  in.Settings,
		PersonaID: in.PersonaID,
		Knowledge: in.Knowledge,
		CreatedAt: in.CreatedAt,
	}
	return nil
}
