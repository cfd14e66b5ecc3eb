// Package classify turns the model's accumulated streamed output into a
// terminal message content: a structured artifact when the payload carries a
// recognized kind, free-form narrative otherwise. The decision is an explicit
// attempt-then-fallback decode, made exactly once at stream end.
package classify

import (
	"encoding/json"
	"strings"

	"parley/internal/logging"
	"parley/internal/types"
)

// StreamFailureNarrative is the fixed content a message is finalized with
// when the upstream stream collaborator fails mid-turn. The point cost
// already deducted for the turn is not refunded.
const StreamFailureNarrative = "Something went wrong while generating this response. Please try again."

// Decode classifies the full accumulated stream text.
//
// It locates the first '{' and the last '}' in the text and attempts to parse
// that span as JSON, exactly once. If the span parses to an object whose
// "kind" field names one of the closed artifact kinds, the artifact wins;
// any failure (no braces, malformed JSON, unknown kind) silently falls back
// to narrative. Narrative content is the accumulated text exactly, unaltered.
func Decode(accumulated string) types.Content {
	fields, ok := tryArtifact(accumulated)
	if !ok {
		return types.Narrative{Text: accumulated}
	}

	kind := types.ArtifactKind(stringField(fields, "kind"))
	if !types.IsClassifierKind(kind) {
		logging.Classify("unrecognized artifact kind %q, falling back to narrative", kind)
		return types.Narrative{Text: accumulated}
	}

	if kind == types.KindResume {
		if stringField(fields, "template") == "" {
			fields["template"] = types.DefaultResumeTemplate
		}
	}

	logging.Classify("accepted artifact kind=%s fields=%d", kind, len(fields))
	return types.Artifact{Kind: kind, Fields: fields}
}

// tryArtifact extracts and parses the brace-delimited span. The single parse
// attempt is the whole contract: no retries on inner candidates.
func tryArtifact(s string) (map[string]any, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return nil, false
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(s[start:end+1]), &fields); err != nil {
		logging.Classify("artifact span rejected: %v", err)
		return nil, false
	}
	return fields, true
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}
