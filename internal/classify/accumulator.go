package classify

import (
	"strings"

	"parley/internal/types"
)

// Accumulator collects stream deltas and citation sources for one turn.
// Deltas are order-sensitive and append-only; the partial text is published
// after every append and must never be the final persisted value. Not safe
// for concurrent use: one open stream per session feeds one accumulator.
type Accumulator struct {
	text    strings.Builder
	sources []types.Source
	seen    map[string]bool
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{seen: make(map[string]bool)}
}

// Append adds a delta and returns the provisional text so far.
func (a *Accumulator) Append(delta string) string {
	a.text.WriteString(delta)
	return a.text.String()
}

// AddSources admits citation sources collected alongside deltas. A source is
// admissible only with a non-empty URI; duplicates (by URI) are dropped.
func (a *Accumulator) AddSources(sources []types.Source) {
	for _, src := range sources {
		if src.URI == "" || a.seen[src.URI] {
			continue
		}
		a.seen[src.URI] = true
		a.sources = append(a.sources, src)
	}
}

// Text returns the accumulated text so far.
func (a *Accumulator) Text() string {
	return a.text.String()
}

// Sources returns the admitted sources in collection order.
func (a *Accumulator) Sources() []types.Source {
	return append([]types.Source(nil), a.sources...)
}

// Finalize runs the terminal classification over the accumulated text and
// returns the content plus the admitted sources.
func (a *Accumulator) Finalize() (types.Content, []types.Source) {
	return Decode(a.text.String()), a.Sources()
}

// FinalizeError produces the fixed stream-failure content. Sources gathered
// before the failure are discarded with the partial text.
func (a *Accumulator) FinalizeError() types.Content {
	return types.Narrative{Text: StreamFailureNarrative}
}
