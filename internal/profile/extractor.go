// Package profile infers durable user facts from completed exchanges and
// folds them into the accumulated profile. Extraction is best effort and
// fully asynchronous: a failed or empty extraction changes nothing.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"parley/internal/logging"
	"parley/internal/model"
	"parley/internal/types"
)

// Extractor produces profile facts from one user/model exchange.
type Extractor interface {
	Extract(ctx context.Context, userText, replyText string) (types.ProfileFacts, error)
}

// extractionDirective instructs the model to emit a bare JSON object.
const extractionDirective = `You extract durable facts about a user from one exchange of a conversation.
Return a single JSON object with any of these keys, omitting keys you have no evidence for:
  "name": the user's name
  "profession": the user's occupation
  "interests": array of short interest phrases
  "facts": array of short standalone statements about the user
Only include facts the user stated about themselves. If the exchange reveals nothing, return {}.
Return the JSON object and nothing else.`

// ModelExtractor runs extraction through a stream source.
type ModelExtractor struct {
	src model.StreamSource
}

// NewModelExtractor creates an extractor backed by the given source.
func NewModelExtractor(src model.StreamSource) *ModelExtractor {
	return &ModelExtractor{src: src}
}

// Extract implements Extractor.
func (e *ModelExtractor) Extract(ctx context.Context, userText, replyText string) (types.ProfileFacts, error) {
	prompt := fmt.Sprintf("User said:\n%s\n\nAssistant replied:\n%s", userText, replyText)

	text, err := model.Complete(ctx, e.src, model.Request{
		Directive: extractionDirective,
		Prompt:    prompt,
	})
	if err != nil {
		return types.ProfileFacts{}, fmt.Errorf("extraction call: %w", err)
	}
	return parseFacts(text)
}

// parseFacts reads the single JSON object out of the completion. Models wrap
// JSON in fences or prose often enough that the first-brace-to-last-brace
// span is taken.
func parseFacts(text string) (types.ProfileFacts, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end < start {
		return types.ProfileFacts{}, fmt.Errorf("no JSON object in extraction output")
	}

	var facts types.ProfileFacts
	if err := json.Unmarshal([]byte(text[start:end+1]), &facts); err != nil {
		return types.ProfileFacts{}, fmt.Errorf("malformed extraction output: %w", err)
	}
	logging.Get(logging.CategoryProfile).Debug(
		"extracted facts: name=%q profession=%q interests=%d facts=%d",
		facts.Name, facts.Profession, len(facts.Interests), len(facts.Facts))
	return facts, nil
}
