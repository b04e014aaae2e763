package careerflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Engine ties the supervisor and specialist frames to a provider and the
// persistence layer, and runs one conversation turn at a time.
type Engine struct {
	provider    Provider
	embedder    EmbeddingProvider
	checkpoints Checkpointer
	memory      MemoryStore
	jobs        JobStore
	compactor   *Compactor

	frames map[FrameID]*Frame

	defaultJobID string
	searchTopK   int
	searchMin    float64

	logger *slog.Logger
	tracer Tracer
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a structured logger. When not set, logs are discarded.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithTracer sets a span tracer, e.g. observer.NewTracer().
func WithTracer(t Tracer) EngineOption {
	return func(e *Engine) { e.tracer = t }
}

// WithDefaultJobID sets the job description id used when the user names no
// job. It replaces the hardcoded demo posting id.
func WithDefaultJobID(id string) EngineOption {
	return func(e *Engine) { e.defaultJobID = id }
}

// WithSearchTuning overrides the retrieval fan (top-k) and the minimum
// cosine similarity for job search hits.
func WithSearchTuning(topK int, minScore float64) EngineOption {
	return func(e *Engine) {
		if topK > 0 {
			e.searchTopK = topK
		}
		e.searchMin = minScore
	}
}

// NewEngine wires an engine from its collaborators. checkpoints, memory,
// and jobs may be backed by store/sqlite or store/postgres.
func NewEngine(p Provider, emb EmbeddingProvider, cp Checkpointer, mem MemoryStore, jobs JobStore, opts ...EngineOption) *Engine {
	e := &Engine{
		provider:     p,
		embedder:     emb,
		checkpoints:  cp,
		memory:       mem,
		jobs:         jobs,
		defaultJobID: "4942",
		searchTopK:   3,
		searchMin:    0.5,
		logger:       nopLogger,
	}
	for _, o := range opts {
		o(e)
	}
	e.compactor = NewCompactor(p, emb, mem, CompactorWithLogger(e.logger))
	e.frames = buildFrames(e)
	return e
}

// Turn runs one user turn: load or create the thread, append the message,
// compact history if due, execute the supervisor frame, and persist the
// terminal reply.
func (e *Engine) Turn(ctx context.Context, threadID, userID, text string) (string, error) {
	ctx, span := e.startSpan(ctx, "engine.turn",
		StringAttr("thread_id", threadID), StringAttr("user_id", userID))
	defer e.endSpan(span)

	start := time.Now()
	st, err := e.loadOrCreate(ctx, threadID, userID)
	if err != nil {
		return "", err
	}
	st.Append("user", text)

	if err := e.compactor.MaybeCompact(ctx, st); err != nil {
		// Compaction failure leaves the thread uncompacted, which is
		// safe; the next turn retries.
		e.logger.Warn("compaction failed", "thread_id", threadID, "error", err)
	}

	out, err := e.runFrame(ctx, e.frames[FrameSupervisor], st)
	if err != nil {
		e.spanError(span, err)
		return "", err
	}
	term, ok := out.(Terminal)
	if !ok {
		err := fmt.Errorf("supervisor frame ended without a terminal outcome (%T)", out)
		e.spanError(span, err)
		return "", err
	}

	st.Append("assistant", term.Reply)
	if err := e.checkpoints.SaveCheckpoint(ctx, st); err != nil {
		return "", fmt.Errorf("save final checkpoint: %w", err)
	}
	e.logger.Info("turn completed",
		"thread_id", threadID,
		"messages", len(st.Messages),
		"cursor", st.Cursor,
		"duration", time.Since(start))
	return term.Reply, nil
}

// UploadCV attaches extracted CV text to the thread and clears insights
// derived from the previous CV.
func (e *Engine) UploadCV(ctx context.Context, threadID, userID, cvText string) error {
	st, err := e.loadOrCreate(ctx, threadID, userID)
	if err != nil {
		return err
	}
	st.CVText = cvText
	st.Requirements = nil
	st.Analysis = nil
	st.ContentReview = nil
	st.FormatReview = ""
	st.RewrittenCV = ""
	return e.checkpoints.SaveCheckpoint(ctx, st)
}

// SetMode switches the thread between think and no_think.
func (e *Engine) SetMode(ctx context.Context, threadID, userID string, mode Mode) error {
	if mode != ModeThink && mode != ModeNoThink {
		return fmt.Errorf("unknown mode %q", mode)
	}
	st, err := e.loadOrCreate(ctx, threadID, userID)
	if err != nil {
		return err
	}
	st.Mode = mode
	return e.checkpoints.SaveCheckpoint(ctx, st)
}

func (e *Engine) loadOrCreate(ctx context.Context, threadID, userID string) (*ThreadState, error) {
	st, err := e.checkpoints.LoadThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	if st == nil {
		st = NewThreadState(threadID, userID)
	}
	return st, nil
}

// runFrame executes a frame from its entry node, interpreting StepOutcome
// values until the frame produces a Terminal or a Resume addressed above
// it. State is checkpointed after every node execution.
func (e *Engine) runFrame(ctx context.Context, f *Frame, st *ThreadState) (StepOutcome, error) {
	cur := f.Entry
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			out StepOutcome
			err error
		)
		if child, ok := f.Mounts[cur]; ok {
			out, err = e.runFrame(ctx, e.frames[child], st)
		} else {
			node, ok := f.Nodes[cur]
			if !ok {
				return nil, fmt.Errorf("frame %s: no node %q", f.ID, cur)
			}
			out, err = e.runNode(ctx, f, node, st)
		}
		if err != nil {
			return nil, err
		}

		switch o := out.(type) {
		case Terminal:
			return o, nil
		case Continue:
			cur = o.Next
		case Resume:
			if o.Target == f.ID {
				// Delivered: hand the payload to this frame's entry.
				p := o.Payload
				st.Transfer = &p
				st.Sender = p.From
				cur = f.Entry
				continue
			}
			if !e.isAncestor(o.Target, f.ID) {
				return nil, &ErrUnknownFrame{Target: o.Target, From: f.ID}
			}
			return o, nil
		default:
			return nil, fmt.Errorf("frame %s node %s: nil outcome", f.ID, cur)
		}
	}
}

func (e *Engine) runNode(ctx context.Context, f *Frame, n Node, st *ThreadState) (StepOutcome, error) {
	ctx, span := e.startSpan(ctx, "engine.node",
		StringAttr("frame", string(f.ID)), StringAttr("node", string(n.Name())))
	defer e.endSpan(span)

	start := time.Now()
	out, err := n.Run(ctx, st)
	if err != nil {
		e.spanError(span, err)
		return nil, fmt.Errorf("frame %s node %s: %w", f.ID, n.Name(), err)
	}
	e.logger.Debug("node executed",
		"frame", f.ID, "node", n.Name(),
		"outcome", outcomeName(out), "duration", time.Since(start))

	if err := e.checkpoints.SaveCheckpoint(ctx, st); err != nil {
		return nil, fmt.Errorf("checkpoint after %s/%s: %w", f.ID, n.Name(), err)
	}
	return out, nil
}

// isAncestor reports whether target is a proper ancestor of from in the
// static frame tree.
func (e *Engine) isAncestor(target, from FrameID) bool {
	f, ok := e.frames[from]
	if !ok {
		return false
	}
	for f.Parent != "" {
		if f.Parent == target {
			return true
		}
		f = e.frames[f.Parent]
	}
	return false
}

func outcomeName(o StepOutcome) string {
	switch v := o.(type) {
	case Continue:
		return "continue:" + string(v.Next)
	case Resume:
		return "resume:" + string(v.Target)
	case Terminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// --- tracing helpers (nil-safe) ---

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...SpanAttr) (context.Context, Span) {
	if e.tracer == nil {
		return ctx, nil
	}
	return e.tracer.Start(ctx, name, attrs...)
}

func (e *Engine) endSpan(s Span) {
	if s != nil {
		s.End()
	}
}

func (e *Engine) spanError(s Span, err error) {
	if s != nil {
		s.Error(err)
	}
}

// --- no-op logger ---

var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
