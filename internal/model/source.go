// Package model abstracts the streaming text model behind a small pull-based
// interface so the orchestrator and the profile extractor never touch a
// provider SDK directly.
package model

import (
	"context"
	"io"
	"strings"

	"parley/internal/types"
)

// Request carries everything a generation needs: the assembled directive, the
// conversation so far, and the per-session flags that select provider
// features.
type Request struct {
	Directive string
	History   []types.Message
	Prompt    string
	Settings  types.Settings
}

// Delta is one streamed increment. Text may be empty when a chunk carried
// only citation metadata.
type Delta struct {
	Text    string
	Sources []types.Source
}

// Stream is a finite, non-restartable sequence of deltas. Recv returns
// io.EOF after the last delta; any other error means the stream failed
// mid-flight and no further deltas will arrive.
type Stream interface {
	Recv() (Delta, error)
	Close()
}

// StreamSource opens generation streams.
type StreamSource interface {
	Generate(ctx context.Context, req Request) (Stream, error)
}

// Complete drains a stream into its full accumulated text. Used for
// non-interactive calls where streaming granularity does not matter.
func Complete(ctx context.Context, src StreamSource, req Request) (string, error) {
	stream, err := src.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var b strings.Builder
	for {
		delta, err := stream.Recv()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return "", err
		}
		b.WriteString(delta.Text)
	}
}
