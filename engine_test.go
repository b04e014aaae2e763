package careerflow

import (
	"context"
	"errors"
	"testing"
)

// testTree builds a three-level frame tree for router tests:
// root mounts "mid" which mounts "leaf". The leaf node's outcome is
// injectable per test.
func testTree(e *Engine, leaf func(st *ThreadState) (StepOutcome, error)) map[FrameID]*Frame {
	const (
		midID  FrameID = "mid"
		leafID FrameID = "leaf"
	)
	root := &Frame{ID: FrameSupervisor, Entry: "enter"}
	root.add(&NodeFunc{ID: "enter", Fn: func(_ context.Context, st *ThreadState) (StepOutcome, error) {
		if st.Transfer != nil {
			return Terminal{Reply: "delivered:" + st.Transfer.Body}, nil
		}
		return Continue{Next: "go_mid"}, nil
	}})
	root.mount("go_mid", midID)

	mid := &Frame{ID: midID, Parent: FrameSupervisor, Entry: "enter"}
	mid.add(&NodeFunc{ID: "enter", Fn: func(_ context.Context, _ *ThreadState) (StepOutcome, error) {
		return Continue{Next: "go_leaf"}, nil
	}})
	mid.mount("go_leaf", leafID)

	lf := &Frame{ID: leafID, Parent: midID, Entry: "enter"}
	lf.add(&NodeFunc{ID: "enter", Fn: func(_ context.Context, st *ThreadState) (StepOutcome, error) {
		return leaf(st)
	}})

	// A frame that exists but sits on another branch of the tree.
	other := &Frame{ID: "other", Parent: FrameSupervisor, Entry: "enter"}
	other.add(&NodeFunc{ID: "enter", Fn: func(_ context.Context, _ *ThreadState) (StepOutcome, error) {
		return Terminal{Reply: "other"}, nil
	}})

	return map[FrameID]*Frame{FrameSupervisor: root, midID: mid, leafID: lf, "other": other}
}

func TestRunFrameDeliversResumeAcrossTwoLevels(t *testing.T) {
	e, _, _ := newTestEngine(&mockProvider{}, nil)
	payload := Transfer{Kind: TransferJobSearch, From: "leaf", Body: "found 3 jobs"}
	e.frames = testTree(e, func(_ *ThreadState) (StepOutcome, error) {
		return Resume{Target: FrameSupervisor, Payload: payload}, nil
	})

	st := NewThreadState("t1", "u1")
	out, err := e.runFrame(context.Background(), e.frames[FrameSupervisor], st)
	if err != nil {
		t.Fatalf("runFrame: %v", err)
	}
	term, ok := out.(Terminal)
	if !ok {
		t.Fatalf("outcome = %T, want Terminal", out)
	}
	// The payload crosses the intermediate frame untouched.
	if term.Reply != "delivered:found 3 jobs" {
		t.Errorf("reply = %q", term.Reply)
	}
	if st.Sender != "leaf" {
		t.Errorf("sender = %q, want leaf", st.Sender)
	}
}

func TestRunFrameUnknownResumeTarget(t *testing.T) {
	e, _, _ := newTestEngine(&mockProvider{}, nil)
	e.frames = testTree(e, func(_ *ThreadState) (StepOutcome, error) {
		return Resume{Target: "nowhere", Payload: Transfer{Body: "x"}}, nil
	})

	_, err := e.runFrame(context.Background(), e.frames[FrameSupervisor], NewThreadState("t1", "u1"))
	var unknown *ErrUnknownFrame
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want *ErrUnknownFrame", err)
	}
	if unknown.Target != "nowhere" {
		t.Errorf("target = %q", unknown.Target)
	}
}

func TestRunFrameResumeToNonAncestorIsUnknown(t *testing.T) {
	// "other" exists in the tree but is not an ancestor of the leaf;
	// resuming to it must fail the same way as a bogus id.
	e, _, _ := newTestEngine(&mockProvider{}, nil)
	e.frames = testTree(e, func(_ *ThreadState) (StepOutcome, error) {
		return Resume{Target: "other", Payload: Transfer{Body: "x"}}, nil
	})

	_, err := e.runFrame(context.Background(), e.frames[FrameSupervisor], NewThreadState("t1", "u1"))
	var unknown *ErrUnknownFrame
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want *ErrUnknownFrame", err)
	}
}

func TestRunFrameCheckpointsEveryNode(t *testing.T) {
	e, cp, _ := newTestEngine(&mockProvider{}, nil)
	e.frames = testTree(e, func(_ *ThreadState) (StepOutcome, error) {
		return Resume{Target: FrameSupervisor, Payload: Transfer{Body: "done"}}, nil
	})

	_, err := e.runFrame(context.Background(), e.frames[FrameSupervisor], NewThreadState("t1", "u1"))
	if err != nil {
		t.Fatalf("runFrame: %v", err)
	}
	// root enter, mid enter, leaf enter, root enter again after delivery.
	if cp.saves != 4 {
		t.Errorf("checkpoints = %d, want 4", cp.saves)
	}
}

func TestRunFrameNodeErrorStopsRun(t *testing.T) {
	e, cp, _ := newTestEngine(&mockProvider{}, nil)
	boom := errors.New("boom")
	e.frames = testTree(e, func(_ *ThreadState) (StepOutcome, error) {
		return nil, boom
	})

	_, err := e.runFrame(context.Background(), e.frames[FrameSupervisor], NewThreadState("t1", "u1"))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	// The two successful nodes before the failure were checkpointed.
	if cp.saves != 2 {
		t.Errorf("checkpoints = %d, want 2", cp.saves)
	}
}

func TestIsAncestor(t *testing.T) {
	e, _, _ := newTestEngine(&mockProvider{}, nil)
	cases := []struct {
		target, from FrameID
		want         bool
	}{
		{FrameSupervisor, FrameJDScore, true},
		{FrameJD, FrameJDScore, true},
		{FrameSupervisor, FrameCV, true},
		{FrameJDScore, FrameJD, false},
		{FrameCV, FrameJD, false},
		{FrameSupervisor, FrameSupervisor, false},
	}
	for _, c := range cases {
		if got := e.isAncestor(c.target, c.from); got != c.want {
			t.Errorf("isAncestor(%s, %s) = %v, want %v", c.target, c.from, got, c.want)
		}
	}
}

func TestTurnAppendsAndPersistsReply(t *testing.T) {
	p := &mockProvider{responses: []ChatResponse{
		textResponse(`{"route": "finish", "reply": "hello there"}`),
	}}
	e, cp, _ := newTestEngine(p, nil)

	reply, err := e.Turn(context.Background(), "t1", "u1", "hi")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if reply != "hello there" {
		t.Errorf("reply = %q", reply)
	}
	st, err := cp.LoadThread(context.Background(), "t1")
	if err != nil || st == nil {
		t.Fatalf("LoadThread: %v %v", st, err)
	}
	if len(st.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(st.Messages))
	}
	if st.Messages[0].Role != "user" || st.Messages[1].Content != "hello there" {
		t.Errorf("history = %+v", st.Messages)
	}
}

func TestTurnResumesExistingThread(t *testing.T) {
	p := &mockProvider{responses: []ChatResponse{
		textResponse(`{"route": "finish", "reply": "first"}`),
		textResponse(`{"route": "finish", "reply": "second"}`),
	}}
	e, cp, _ := newTestEngine(p, nil)

	if _, err := e.Turn(context.Background(), "t1", "u1", "one"); err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if _, err := e.Turn(context.Background(), "t1", "u1", "two"); err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	st, _ := cp.LoadThread(context.Background(), "t1")
	if len(st.Messages) != 4 {
		t.Errorf("messages = %d, want 4", len(st.Messages))
	}
}

func TestUploadCVClearsStaleInsights(t *testing.T) {
	e, cp, _ := newTestEngine(&mockProvider{}, nil)
	st := NewThreadState("t1", "u1")
	st.CVText = "old cv"
	st.FormatReview = "stale"
	st.RewrittenCV = "stale"
	st.Analysis = &CVAnalysis{}
	if err := cp.SaveCheckpoint(context.Background(), st); err != nil {
		t.Fatal(err)
	}

	if err := e.UploadCV(context.Background(), "t1", "u1", "new cv"); err != nil {
		t.Fatalf("UploadCV: %v", err)
	}
	got, _ := cp.LoadThread(context.Background(), "t1")
	if got.CVText != "new cv" {
		t.Errorf("cv = %q", got.CVText)
	}
	if got.FormatReview != "" || got.RewrittenCV != "" || got.Analysis != nil {
		t.Errorf("stale insights survived: %+v", got)
	}
}

func TestSetModeRejectsUnknown(t *testing.T) {
	e, _, _ := newTestEngine(&mockProvider{}, nil)
	if err := e.SetMode(context.Background(), "t1", "u1", "loud"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	if err := e.SetMode(context.Background(), "t1", "u1", ModeNoThink); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
}
