package orchestrator

import (
	"context"
	"io"
	"strings"

	"parley/internal/classify"
	"parley/internal/directive"
	"parley/internal/economy"
	"parley/internal/logging"
	"parley/internal/model"
	"parley/internal/retrieval"
	"parley/internal/types"
)

// SubmitMessage runs one full turn against the identified session:
// gate, retrieve, assemble, stream, classify, finalize, flush, then
// fire-and-forget profile extraction. It blocks until the model message is
// finalized and returns the updated session and economy snapshots.
//
// The cost is deducted before the stream opens and is not refunded if the
// stream fails; the user sees the fixed failure narrative instead.
func (e *Engine) SubmitMessage(ctx context.Context, sessionID, promptText string, attachments []types.Attachment) (types.Session, types.EconomyState, error) {
	sess, err := e.sessions.Get(sessionID)
	if err != nil {
		return types.Session{}, e.gate.Snapshot(), err
	}

	if !e.setBusy(sessionID) {
		return types.Session{}, e.gate.Snapshot(), ErrStreamOpen
	}
	defer e.clearBusy(sessionID)

	cost := e.gate.Cost(promptText, sess.Settings)
	if !e.gate.TryDeduct(cost) {
		return types.Session{}, e.gate.Snapshot(), ErrInsufficientBalance
	}

	userMsg := types.Message{
		ID:          types.NewMessageID(e.now()),
		Role:        types.RoleUser,
		State:       types.StateFinal,
		Content:     types.Narrative{Text: promptText},
		Attachments: attachments,
		CreatedAt:   e.now(),
	}
	sess, err = e.sessions.AppendUserMessage(sessionID, userMsg)
	if err != nil {
		return types.Session{}, e.gate.Snapshot(), err
	}

	if cmd, ok := economy.ParseCommand(promptText); ok && cmd == economy.CommandImage {
		sess, err = e.submitImage(sessionID, promptText)
		return sess, e.gate.Snapshot(), err
	}

	sess, err = e.streamTurn(ctx, sess, promptText)
	return sess, e.gate.Snapshot(), err
}

// submitImage handles the image command locally: an image-request artifact
// is produced without calling the text model.
func (e *Engine) submitImage(sessionID, promptText string) (types.Session, error) {
	_, rest, _ := strings.Cut(strings.TrimSpace(promptText), " ")

	msg := types.Message{
		ID:    types.NewMessageID(e.now()),
		Role:  types.RoleModel,
		State: types.StateFinal,
		Content: types.Artifact{
			Kind: types.KindImage,
			Fields: map[string]any{
				"kind":   string(types.KindImage),
				"prompt": strings.TrimSpace(rest),
			},
		},
		CreatedAt: e.now(),
	}
	return e.sessions.PutModelMessage(sessionID, msg)
}

// streamTurn opens the model stream and drives the provisional message until
// terminal classification.
func (e *Engine) streamTurn(ctx context.Context, sess types.Session, promptText string) (types.Session, error) {
	dir := e.assembleDirective(sess, promptText)

	// History excludes the user message just appended; it travels as Prompt.
	history := sess.Messages[:len(sess.Messages)-1]

	msgID := types.NewMessageID(e.now())
	acc := classify.NewAccumulator()

	stream, err := e.source.Generate(ctx, model.Request{
		Directive: dir,
		History:   history,
		Prompt:    promptText,
		Settings:  sess.Settings,
	})
	if err != nil {
		logging.Get(logging.CategoryAPI).Error("stream open failed: %v", err)
		return e.finalize(sess.ID, msgID, acc.FinalizeError(), nil, promptText)
	}
	defer stream.Close()

	timer := logging.StartTimer(logging.CategoryAPI, "stream")
	defer timer.Stop()

	for {
		delta, err := stream.Recv()
		if err == io.EOF {
			content, sources := acc.Finalize()
			return e.finalize(sess.ID, msgID, content, sources, promptText)
		}
		if err != nil {
			logging.Get(logging.CategoryAPI).Error("stream failed mid-flight: %v", err)
			return e.finalize(sess.ID, msgID, acc.FinalizeError(), nil, promptText)
		}

		acc.AddSources(delta.Sources)
		if delta.Text == "" {
			continue
		}
		partial := acc.Append(delta.Text)
		if _, err := e.sessions.PutModelMessage(sess.ID, types.Message{
			ID:        msgID,
			Role:      types.RoleModel,
			State:     types.StateProvisional,
			Content:   types.Narrative{Text: partial},
			CreatedAt: e.now(),
		}); err != nil {
			return types.Session{}, err
		}
	}
}

// finalize replaces the provisional tail with the terminal content and
// schedules profile extraction for narrative replies.
func (e *Engine) finalize(sessionID, msgID string, content types.Content, sources []types.Source, promptText string) (types.Session, error) {
	sess, err := e.sessions.PutModelMessage(sessionID, types.Message{
		ID:        msgID,
		Role:      types.RoleModel,
		State:     types.StateFinal,
		Content:   content,
		Sources:   sources,
		CreatedAt: e.now(),
	})
	if err != nil {
		return types.Session{}, err
	}

	if n, ok := content.(types.Narrative); ok && n.Text != classify.StreamFailureNarrative && e.tasks != nil {
		e.tasks.Submit(promptText, n.Text)
	}
	return sess, nil
}

// assembleDirective gathers the directive inputs for a turn. Persona
// knowledge precedes session knowledge; retrieval scans the other persistent
// sessions so a session never cites itself.
func (e *Engine) assembleDirective(sess types.Session, promptText string) string {
	prof, general, pinned := e.memorySnapshot()

	var active *types.Persona
	var knowledge []types.KnowledgeFile
	if p, ok := e.personas.Get(sess.PersonaID); ok {
		active = &p
		knowledge = append(knowledge, p.Knowledge...)
	}
	knowledge = append(knowledge, sess.Knowledge...)

	var others []types.Session
	for _, s := range e.sessions.Persistent() {
		if s.ID != sess.ID {
			others = append(others, s)
		}
	}
	snippets := retrieval.Find(promptText, others)

	timer := logging.StartTimer(logging.CategoryContext, "assemble")
	defer timer.Stop()

	return directive.Build(directive.Input{
		Settings:        sess.Settings,
		Profile:         prof,
		GeneralMemories: general,
		Persona:         active,
		Knowledge:       knowledge,
		PinnedMemories:  pinned,
		Snippets:        snippets,
		Locale:          e.locale,
	})
}
