// Package chat runs one question/answer turn against the model.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	ctxpkg "github.com/stupiduntilnot/csast/internal/context"
	"github.com/stupiduntilnot/csast/internal/db"
	"github.com/stupiduntilnot/csast/internal/model"
	"github.com/stupiduntilnot/csast/internal/session"
)

var (
	// ErrEmptyInput is returned for blank submissions. Nothing changes and
	// callers ignore it.
	ErrEmptyInput = errors.New("empty input")
	// ErrBusy is returned while the session already awaits a reply.
	ErrBusy = session.ErrBusy
	// ErrDiscarded is returned when the transcript was reset while the model
	// was answering; the reply is not recorded.
	ErrDiscarded = errors.New("reply discarded after reset")
)

// Recorder receives turn events. *db.TurnLog implements it.
type Recorder interface {
	Record(sessionID, eventType string, payload map[string]any)
}

type nopRecorder struct{}

func (nopRecorder) Record(string, string, map[string]any) {}

// Config wires an Orchestrator.
type Config struct {
	Provider     model.Provider
	Model        string
	Instructions string
	Knowledge    string
	Assembler    ctxpkg.Assembler
	Recorder     Recorder
	Log          logrus.FieldLogger
}

// Orchestrator is shared by all sessions. It holds no per-session state.
type Orchestrator struct {
	provider     model.Provider
	model        string
	instructions string
	knowledge    string
	assembler    ctxpkg.Assembler
	recorder     Recorder
	log          logrus.FieldLogger
	now          func() time.Time
}

func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		provider:     cfg.Provider,
		model:        cfg.Model,
		instructions: cfg.Instructions,
		knowledge:    cfg.Knowledge,
		assembler:    cfg.Assembler,
		recorder:     cfg.Recorder,
		log:          cfg.Log,
		now:          time.Now,
	}
	if o.instructions == "" {
		o.instructions = ctxpkg.DefaultInstructions
	}
	if o.assembler == nil {
		o.assembler = &ctxpkg.StandardAssembler{}
	}
	if o.recorder == nil {
		o.recorder = nopRecorder{}
	}
	if o.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		o.log = l
	}
	return o
}

// Submit runs one turn for st. The user message is recorded before the model
// is called; the assistant message only on success. A failed call returns a
// *model.UpstreamError and leaves the transcript with the user message as
// its last entry.
func (o *Orchestrator) Submit(ctx context.Context, st *session.State, input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", ErrEmptyInput
	}

	epoch, err := st.Begin()
	if err != nil {
		return "", err
	}
	defer st.Finish()

	history := st.HistoryText()
	if !st.AppendAt(epoch, session.RoleUser, input) {
		return "", ErrDiscarded
	}

	prompt := o.assembler.Assemble(o.instructions, o.knowledge, input, history)
	req := model.NewRequest(o.model, prompt)

	log := o.log.WithFields(logrus.Fields{"session": st.ID(), "model": o.model})
	o.recorder.Record(st.ID(), db.EventTurnStarted, map[string]any{
		"model":            o.model,
		"question":         input,
		"prompt_chars":     len(prompt),
		"history_chars":    len(history),
		"estimated_tokens": model.EstimateTokens(prompt),
	})

	start := o.now()
	resp, err := o.provider.Complete(ctx, req)
	latency := o.now().Sub(start).Milliseconds()
	if err != nil {
		var up *model.UpstreamError
		if !errors.As(err, &up) {
			up = &model.UpstreamError{Provider: "unknown", Class: "provider", Err: err}
		}
		o.recorder.Record(st.ID(), db.EventTurnFailed, map[string]any{
			"class":      up.Class,
			"error":      up.Error(),
			"latency_ms": latency,
		})
		log.WithError(up).WithField("latency_ms", latency).Warn("model call failed")
		return "", up
	}

	if !st.AppendAt(epoch, session.RoleAssistant, resp.Content) {
		o.recorder.Record(st.ID(), db.EventTurnDiscarded, map[string]any{"latency_ms": latency})
		log.Info("reply discarded, transcript was reset")
		return resp.Content, ErrDiscarded
	}

	o.recorder.Record(st.ID(), db.EventTurnCompleted, map[string]any{
		"latency_ms":    latency,
		"input_tokens":  resp.InputTokens,
		"output_tokens": resp.OutputTokens,
	})
	log.WithFields(logrus.Fields{
		"latency_ms":    latency,
		"input_tokens":  resp.InputTokens,
		"output_tokens": resp.OutputTokens,
	}).Info("turn completed")
	return resp.Content, nil
}

// Reset clears the session transcript.
func (o *Orchestrator) Reset(st *session.State) {
	st.Reset()
	o.recorder.Record(st.ID(), db.EventSessionReset, nil)
	o.log.WithField("session", st.ID()).Info("session reset")
}

// PromptFor returns the prompt a submission of input would send now. It has
// no side effects.
func (o *Orchestrator) PromptFor(st *session.State, input string) string {
	return o.assembler.Assemble(o.instructions, o.knowledge, input, st.HistoryText())
}

// Describe is a short summary for startup logs.
func (o *Orchestrator) Describe() string {
	return fmt.Sprintf("model=%s knowledge_chars=%d", o.model, len(o.knowledge))
}
