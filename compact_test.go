package careerflow

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func threadWithMessages(n int) *ThreadState {
	st := NewThreadState("t1", "u1")
	for i := 0; i < n; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		st.Append(role, fmt.Sprintf("message %d", i))
	}
	return st
}

// Two canned responses per compaction: profile extraction, then summary.
func compactionProvider(summary string) *mockProvider {
	return &mockProvider{responses: []ChatResponse{
		textResponse(`{}`),
		textResponse(summary),
	}}
}

func TestCompactionBelowThresholdIsNoop(t *testing.T) {
	p := &mockProvider{}
	c := NewCompactor(p, mockEmbedder{}, newMemMemory())
	st := threadWithMessages(MinNewMessages + SummaryWindow - 1)

	if err := c.MaybeCompact(context.Background(), st); err != nil {
		t.Fatalf("MaybeCompact: %v", err)
	}
	if st.Cursor != 0 || st.RollingSummary != "" {
		t.Errorf("state changed below threshold: cursor=%d summary=%q", st.Cursor, st.RollingSummary)
	}
	if p.calls() != 0 {
		t.Errorf("provider called %d times below threshold", p.calls())
	}
}

func TestCompactionFoldsAllButWindow(t *testing.T) {
	mem := newMemMemory()
	c := NewCompactor(compactionProvider("folded summary"), mockEmbedder{}, mem)
	st := threadWithMessages(11)

	if err := c.MaybeCompact(context.Background(), st); err != nil {
		t.Fatalf("MaybeCompact: %v", err)
	}
	if want := 11 - SummaryWindow; st.Cursor != want {
		t.Errorf("cursor = %d, want %d", st.Cursor, want)
	}
	if len(st.Tail()) != SummaryWindow {
		t.Errorf("tail = %d, want %d", len(st.Tail()), SummaryWindow)
	}
	if st.RollingSummary != "folded summary" {
		t.Errorf("summary = %q", st.RollingSummary)
	}
	if got := len(mem.archived["u1"]); got != 5 {
		t.Errorf("archived %d messages, want 5", got)
	}
}

func TestCompactionCursorNeverDecreases(t *testing.T) {
	c := NewCompactor(compactionProvider("s1"), mockEmbedder{}, newMemMemory())
	st := threadWithMessages(11)

	if err := c.MaybeCompact(context.Background(), st); err != nil {
		t.Fatalf("first compaction: %v", err)
	}
	first := st.Cursor

	// Tail is exactly the window now; another run must not move the cursor.
	if err := c.MaybeCompact(context.Background(), st); err != nil {
		t.Fatalf("second compaction: %v", err)
	}
	if st.Cursor != first {
		t.Errorf("cursor moved from %d to %d without new messages", first, st.Cursor)
	}

	// Grow the tail past the threshold again.
	c2 := NewCompactor(compactionProvider("s2"), mockEmbedder{}, newMemMemory())
	for i := 0; i < MinNewMessages; i++ {
		st.Append("user", "more")
	}
	if err := c2.MaybeCompact(context.Background(), st); err != nil {
		t.Fatalf("third compaction: %v", err)
	}
	if st.Cursor < first {
		t.Errorf("cursor decreased: %d -> %d", first, st.Cursor)
	}
	if len(st.Tail()) < SummaryWindow {
		t.Errorf("tail shrank below window: %d", len(st.Tail()))
	}
}

func TestCompactionExtractionFailureDoesNotBlockFold(t *testing.T) {
	// First response is invalid JSON for the profile schema; the fold must
	// proceed anyway.
	p := &mockProvider{responses: []ChatResponse{
		textResponse("not json at all"),
		textResponse("summary anyway"),
	}}
	c := NewCompactor(p, mockEmbedder{}, newMemMemory())
	st := threadWithMessages(11)

	if err := c.MaybeCompact(context.Background(), st); err != nil {
		t.Fatalf("MaybeCompact: %v", err)
	}
	if st.Cursor != 5 || st.RollingSummary != "summary anyway" {
		t.Errorf("fold blocked: cursor=%d summary=%q", st.Cursor, st.RollingSummary)
	}
}

func TestCompactionSummaryFailureLeavesStateUnchanged(t *testing.T) {
	// Extraction succeeds, then the provider runs out of responses and the
	// summarize call fails.
	p := &mockProvider{responses: []ChatResponse{textResponse(`{}`)}}
	c := NewCompactor(p, mockEmbedder{}, newMemMemory())
	st := threadWithMessages(11)

	if err := c.MaybeCompact(context.Background(), st); err == nil {
		t.Fatal("expected error from failed summarization")
	}
	if st.Cursor != 0 || st.RollingSummary != "" {
		t.Errorf("state changed on failure: cursor=%d summary=%q", st.Cursor, st.RollingSummary)
	}
}

func TestCompactionMergesExtractedProfile(t *testing.T) {
	mem := newMemMemory()
	mem.profiles["u1"] = Profile{Name: "Dana", Skills: []string{"Go"}}
	p := &mockProvider{responses: []ChatResponse{
		textResponse(`{"career_goal": "platform engineering", "skills": ["Go", "Kubernetes"]}`),
		textResponse("summary"),
	}}
	c := NewCompactor(p, mockEmbedder{}, mem)
	st := threadWithMessages(11)

	if err := c.MaybeCompact(context.Background(), st); err != nil {
		t.Fatalf("MaybeCompact: %v", err)
	}
	got := mem.profiles["u1"]
	if got.Name != "Dana" {
		t.Errorf("existing field overwritten by empty value: %q", got.Name)
	}
	if got.CareerGoal != "platform engineering" {
		t.Errorf("career goal = %q", got.CareerGoal)
	}
	if len(got.Skills) != 2 || got.Skills[1] != "Kubernetes" {
		t.Errorf("skills not replaced wholesale: %v", got.Skills)
	}
}

func TestRenderTranscript(t *testing.T) {
	msgs := []StoredMessage{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi"},
	}
	got := renderTranscript(msgs)
	if !strings.Contains(got, "user: hello") || !strings.Contains(got, "assistant: hi") {
		t.Errorf("transcript = %q", got)
	}
}
