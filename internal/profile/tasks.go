package profile

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"parley/internal/logging"
	"parley/internal/types"
)

// TaskGroup runs post-turn extractions in the background. Failures are
// logged and dropped; a conversation turn never waits on profile work.
type TaskGroup struct {
	extractor Extractor
	apply     func(types.ProfileFacts)

	group *errgroup.Group
	ctx   context.Context

	mu     sync.Mutex
	closed bool
}

// NewTaskGroup creates the group. apply receives every non-empty extraction
// result and is responsible for merging and persisting it.
func NewTaskGroup(ctx context.Context, extractor Extractor, apply func(types.ProfileFacts)) *TaskGroup {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	return &TaskGroup{
		extractor: extractor,
		apply:     apply,
		group:     g,
		ctx:       gctx,
	}
}

// Submit queues extraction for one finished exchange. Calls after Close are
// dropped.
func (t *TaskGroup) Submit(userText, replyText string) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.group.Go(func() error {
		facts, err := t.extractor.Extract(t.ctx, userText, replyText)
		if err != nil {
			logging.Get(logging.CategoryProfile).Warn("extraction failed: %v", err)
			return nil
		}
		if facts.IsEmpty() {
			return nil
		}
		t.apply(facts)
		return nil
	})
}

// Close waits for in-flight extractions to finish.
func (t *TaskGroup) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.group.Wait()
}
