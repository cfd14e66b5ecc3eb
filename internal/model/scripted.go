package model

import (
	"context"
	"io"
	"sync"

	"parley/internal/types"
)

// =============================================================================
// SCRIPTED SOURCE (deterministic, for tests and offline runs)
// =============================================================================

// Script is one canned stream: its deltas in order, then FailAfter if set.
type Script struct {
	Deltas    []Delta
	FailAfter error // returned after the deltas instead of io.EOF
	OpenErr   error // returned from Generate itself
}

// Scripted replays canned streams in sequence, one per Generate call.
// It records every request it sees.
type Scripted struct {
	mu       sync.Mutex
	scripts  []Script
	calls    int
	Requests []Request
}

// NewScripted creates a source that replays the given scripts in order.
// Calls beyond the script list replay the last script.
func NewScripted(scripts ...Script) *Scripted {
	return &Scripted{scripts: scripts}
}

// TextScript is shorthand for a successful stream of plain text deltas.
func TextScript(chunks ...string) Script {
	deltas := make([]Delta, len(chunks))
	for i, c := range chunks {
		deltas[i] = Delta{Text: c}
	}
	return Script{Deltas: deltas}
}

// Generate implements StreamSource.
func (s *Scripted) Generate(_ context.Context, req Request) (Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Requests = append(s.Requests, req)
	idx := s.calls
	if idx >= len(s.scripts) {
		idx = len(s.scripts) - 1
	}
	s.calls++

	if idx < 0 {
		return &scriptedStream{}, nil
	}
	script := s.scripts[idx]
	if script.OpenErr != nil {
		return nil, script.OpenErr
	}
	return &scriptedStream{script: script}, nil
}

// Calls returns how many streams were opened.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// LastRequest returns the most recent request, or a zero Request.
func (s *Scripted) LastRequest() Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Requests) == 0 {
		return Request{}
	}
	return s.Requests[len(s.Requests)-1]
}

type scriptedStream struct {
	script Script
	pos    int
}

func (s *scriptedStream) Recv() (Delta, error) {
	if s.pos < len(s.script.Deltas) {
		d := s.script.Deltas[s.pos]
		s.pos++
		return d, nil
	}
	if s.script.FailAfter != nil {
		return Delta{}, s.script.FailAfter
	}
	return Delta{}, io.EOF
}

func (s *scriptedStream) Close() {}

// SourcedDelta builds a delta carrying a single citation.
func SourcedDelta(text, uri, title string) Delta {
	return Delta{Text: text, Sources: []types.Source{{URI: uri, Title: title}}}
}
