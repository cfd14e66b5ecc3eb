package model

import (
	"context"
	"fmt"
	"io"
	"iter"

	"google.golang.org/genai"

	"parley/internal/logging"
	"parley/internal/types"
)

// =============================================================================
// GEMINI STREAM SOURCE
// =============================================================================

// defaultModel is used when no model name is configured.
const defaultModel = "gemini-2.5-flash"

// deepThinkingBudget is the token budget handed to the provider when the
// deep-thinking flag is on. Without the flag thinking is disabled entirely.
const deepThinkingBudget = int32(8192)

// GeminiSource generates streams through the Google GenAI API.
type GeminiSource struct {
	client *genai.Client
	model  string
}

// NewGeminiSource creates a source backed by the given API key.
func NewGeminiSource(ctx context.Context, apiKey, model string) (*GeminiSource, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiSource{client: client, model: model}, nil
}

// Generate opens a content stream for the request.
func (g *GeminiSource) Generate(ctx context.Context, req Request) (Stream, error) {
	contents := buildContents(req)
	config := g.buildConfig(req)

	logging.Get(logging.CategoryAPI).Debug(
		"opening stream: model=%s history=%d search=%v thinking=%v",
		g.model, len(req.History), req.Settings.SearchEnabled, req.Settings.DeepThinking)

	seq := g.client.Models.GenerateContentStream(ctx, g.model, contents, config)
	next, stop := iter.Pull2(seq)
	return &geminiStream{next: next, stop: stop}, nil
}

// buildContents maps the history plus the live prompt into provider turns.
// Artifact messages contribute no text; their turn is skipped.
func buildContents(req Request) []*genai.Content {
	var contents []*genai.Content
	for _, m := range req.History {
		text := m.Text()
		if text == "" {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if m.Role == types.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(text, role))
	}
	contents = append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))
	return contents
}

func (g *GeminiSource) buildConfig(req Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.Directive, genai.RoleUser),
	}
	if req.Settings.SearchEnabled {
		config.Tools = []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		}
	}
	if req.Settings.DeepThinking {
		budget := deepThinkingBudget
		config.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: &budget,
		}
	}
	return config
}

// geminiStream adapts the SDK's push iterator to the pull-based Stream.
type geminiStream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()
}

func (s *geminiStream) Recv() (Delta, error) {
	resp, err, ok := s.next()
	if !ok {
		return Delta{}, io.EOF
	}
	if err != nil {
		logging.Get(logging.CategoryAPI).Error("stream failed: %v", err)
		return Delta{}, fmt.Errorf("generation stream: %w", err)
	}
	return Delta{
		Text:    resp.Text(),
		Sources: extractSources(resp),
	}, nil
}

func (s *geminiStream) Close() {
	s.stop()
}

// extractSources pulls web citations out of grounding metadata, if present.
func extractSources(resp *genai.GenerateContentResponse) []types.Source {
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	var sources []types.Source
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		sources = append(sources, types.Source{
			URI:   chunk.Web.URI,
			Title: chunk.Web.Title,
		})
	}
	return sources
}
