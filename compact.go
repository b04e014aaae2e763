package careerflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Sliding-window compaction constants. Compaction triggers only once the
// unsummarized tail holds at least MinNewMessages beyond the window, and
// always leaves the most recent SummaryWindow messages verbatim.
const (
	MinNewMessages = 4
	SummaryWindow  = 6
)

// Compactor folds old history into a rolling summary, archives the folded
// messages for semantic recall, and mines them for profile facts.
type Compactor struct {
	provider Provider
	embedder EmbeddingProvider
	memory   MemoryStore
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// CompactorOption configures a Compactor.
type CompactorOption func(*Compactor)

// CompactorWithLogger sets a structured logger.
func CompactorWithLogger(l *slog.Logger) CompactorOption {
	return func(c *Compactor) { c.logger = l }
}

// NewCompactor wires a compactor. embedder may be nil, in which case
// folded messages are archived without embeddings.
func NewCompactor(p Provider, emb EmbeddingProvider, mem MemoryStore, opts ...CompactorOption) *Compactor {
	c := &Compactor{
		provider: p,
		embedder: emb,
		memory:   mem,
		logger:   nopLogger,
		locks:    map[string]*sync.Mutex{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// threadLock returns the mutex serializing compaction of one thread.
// Different threads compact independently.
func (c *Compactor) threadLock(threadID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[threadID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[threadID] = l
	}
	return l
}

// MaybeCompact compacts the thread when the unsummarized tail has grown to
// MinNewMessages+SummaryWindow or more. Two passes run in order:
//
//  1. Profile extraction over the whole tail, merged into the stored
//     profile. Best effort: failure never blocks the fold.
//  2. Summarization of everything except the last SummaryWindow messages
//     into the rolling summary (wholesale replacement), archival of the
//     folded messages, and cursor advance by the folded count.
//
// On return either the state is unchanged or the cursor advanced and
// len(messages)-cursor >= SummaryWindow holds. The cursor never moves
// backward.
func (c *Compactor) MaybeCompact(ctx context.Context, st *ThreadState) error {
	if len(st.Tail()) < MinNewMessages+SummaryWindow {
		return nil
	}

	lock := c.threadLock(st.ThreadID)
	lock.Lock()
	defer lock.Unlock()

	tail := st.Tail()
	if len(tail) < MinNewMessages+SummaryWindow {
		return nil
	}

	start := time.Now()
	c.extractProfile(ctx, st, tail)

	fold := tail[:len(tail)-SummaryWindow]
	summary, err := c.summarize(ctx, st.RollingSummary, fold)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	c.archive(ctx, st.UserID, fold)

	st.RollingSummary = summary
	st.Cursor += len(fold)
	c.logger.Info("history compacted",
		"thread_id", st.ThreadID,
		"folded", len(fold),
		"cursor", st.Cursor,
		"duration", time.Since(start))
	return nil
}

const extractProfilePrompt = `You maintain a career profile for the user.
Read the conversation excerpt and extract profile facts the user stated
about themselves. Leave out anything not explicitly said. Respond with a
JSON object; omit fields you found nothing for.`

var profileSchema = &ResponseSchema{
	Name: "user_profile",
	Schema: []byte(`{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"email": {"type": "string"},
			"phone": {"type": "string"},
			"location": {"type": "string"},
			"career_goal": {"type": "string"},
			"preferred_roles": {"type": "array", "items": {"type": "string"}},
			"skills": {"type": "array", "items": {"type": "string"}},
			"experience_summary": {"type": "string"},
			"achievements": {"type": "array", "items": {"type": "string"}},
			"education_background": {"type": "string"},
			"availability": {"type": "string"},
			"preferences": {"type": "array", "items": {"type": "string"}}
		}
	}`),
}

// extractProfile is pass 1. Errors are logged and swallowed.
func (c *Compactor) extractProfile(ctx context.Context, st *ThreadState, tail []StoredMessage) {
	msgs := []ChatMessage{
		SystemMessage(st.SystemPrompt(extractProfilePrompt)),
		UserMessage(renderTranscript(tail)),
	}
	var extracted Profile
	if _, err := ChatInto(ctx, c.provider, "profile_extraction", msgs, profileSchema, &extracted); err != nil {
		c.logger.Warn("profile extraction failed", "thread_id", st.ThreadID, "error", err)
		return
	}
	if extracted.IsZero() {
		return
	}
	stored, err := c.memory.LoadProfile(ctx, st.UserID)
	if err != nil {
		c.logger.Warn("profile load failed", "user_id", st.UserID, "error", err)
		return
	}
	stored.Merge(extracted)
	if err := c.memory.SaveProfile(ctx, st.UserID, stored); err != nil {
		c.logger.Warn("profile save failed", "user_id", st.UserID, "error", err)
	}
}

const summarizePrompt = `You compress conversation history for a career
assistant. Merge the previous summary and the new messages into one
concise summary that keeps every fact needed to continue the
conversation: the user's goals, constraints, decisions made, and any job
or CV details discussed. Respond with the summary text only.`

func (c *Compactor) summarize(ctx context.Context, prev string, fold []StoredMessage) (string, error) {
	var b strings.Builder
	if prev != "" {
		b.WriteString("Previous summary:\n")
		b.WriteString(prev)
		b.WriteString("\n\n")
	}
	b.WriteString("New messages:\n")
	b.WriteString(renderTranscript(fold))

	resp, err := c.provider.Chat(ctx, ChatRequest{Messages: []ChatMessage{
		SystemMessage(summarizePrompt),
		UserMessage(b.String()),
	}})
	if err != nil {
		return "", err
	}
	summary := StripThink(resp.Content)
	if summary == "" {
		return "", fmt.Errorf("empty summary")
	}
	return summary, nil
}

// archive stores folded messages in long-term memory. Best effort.
func (c *Compactor) archive(ctx context.Context, userID string, fold []StoredMessage) {
	msgs := make([]StoredMessage, len(fold))
	copy(msgs, fold)
	if c.embedder != nil {
		texts := make([]string, len(msgs))
		for i, m := range msgs {
			texts[i] = m.Content
		}
		if vecs, err := c.embedder.Embed(ctx, texts); err == nil && len(vecs) == len(msgs) {
			for i := range msgs {
				msgs[i].Embedding = vecs[i]
			}
		} else if err != nil {
			c.logger.Warn("embedding folded messages failed", "error", err)
		}
	}
	if err := c.memory.ArchiveMessages(ctx, userID, msgs); err != nil {
		c.logger.Warn("archive failed", "user_id", userID, "error", err)
	}
}

func renderTranscript(msgs []StoredMessage) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	return b.String()
}
