package sqlite

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/nevindra/careerflow"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "test.db"))
	t.Cleanup(func() { s.Close() })
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return s
}

func TestCheckpointRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st := careerflow.NewThreadState("t1", "u1")
	st.Append("user", "hello")
	st.RollingSummary = "summary"
	st.Cursor = 1
	st.CVText = "a cv"
	st.Feedback = []careerflow.MatchFeedback{{JobID: "101", OverallFit: 7.5}}

	if err := s.SaveCheckpoint(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LoadThread(ctx, "t1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.UserID != "u1" || got.Cursor != 1 || got.RollingSummary != "summary" || got.CVText != "a cv" {
		t.Errorf("got %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "hello" {
		t.Errorf("messages = %+v", got.Messages)
	}
	if len(got.Feedback) != 1 || got.Feedback[0].OverallFit != 7.5 {
		t.Errorf("feedback = %+v", got.Feedback)
	}
}

func TestCheckpointOverwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st := careerflow.NewThreadState("t1", "u1")
	if err := s.SaveCheckpoint(ctx, st); err != nil {
		t.Fatal(err)
	}
	st.Append("user", "later")
	if err := s.SaveCheckpoint(ctx, st); err != nil {
		t.Fatal(err)
	}
	got, _ := s.LoadThread(ctx, "t1")
	if len(got.Messages) != 1 {
		t.Errorf("messages = %d, want the newer state", len(got.Messages))
	}
}

func TestLoadThreadAbsent(t *testing.T) {
	s := newTestStore(t)
	got, err := s.LoadThread(context.Background(), "missing")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil for an unknown thread", got)
	}
}

func TestProfileRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := careerflow.Profile{Name: "Dana", Skills: []string{"Go", "SQL"}}
	if err := s.SaveProfile(ctx, "u1", p); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LoadProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Name != "Dana" || len(got.Skills) != 2 {
		t.Errorf("got %+v", got)
	}

	// Absent profiles are zero, not an error.
	empty, err := s.LoadProfile(ctx, "nobody")
	if err != nil || !empty.IsZero() {
		t.Errorf("got %+v, %v", empty, err)
	}
}

func TestArchiveSearchRanksByCosine(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msgs := []careerflow.StoredMessage{
		{ID: "m1", ThreadID: "t1", Role: "user", Content: "exact match", Embedding: []float32{1, 0, 0}, CreatedAt: 1},
		{ID: "m2", ThreadID: "t1", Role: "user", Content: "close match", Embedding: []float32{0.9, 0.1, 0}, CreatedAt: 2},
		{ID: "m3", ThreadID: "t1", Role: "user", Content: "orthogonal", Embedding: []float32{0, 1, 0}, CreatedAt: 3},
		{ID: "m4", ThreadID: "t1", Role: "user", Content: "no embedding", CreatedAt: 4},
	}
	if err := s.ArchiveMessages(ctx, "u1", msgs); err != nil {
		t.Fatalf("archive: %v", err)
	}

	hits, err := s.SearchArchive(ctx, "u1", []float32{1, 0, 0}, 10, 0.5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2 above the floor", len(hits))
	}
	if hits[0].Content != "exact match" || hits[1].Content != "close match" {
		t.Errorf("order = %q, %q", hits[0].Content, hits[1].Content)
	}

	// Another user sees nothing.
	other, err := s.SearchArchive(ctx, "u2", []float32{1, 0, 0}, 10, 0)
	if err != nil || len(other) != 0 {
		t.Errorf("got %d hits for the wrong user", len(other))
	}
}

func TestArchiveSearchLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var msgs []careerflow.StoredMessage
	for i := 0; i < 5; i++ {
		msgs = append(msgs, careerflow.StoredMessage{
			ID: careerflow.NewID(), ThreadID: "t1", Role: "user",
			Content: "msg", Embedding: []float32{1, 0, 0}, CreatedAt: int64(i),
		})
	}
	if err := s.ArchiveMessages(ctx, "u1", msgs); err != nil {
		t.Fatal(err)
	}
	hits, err := s.SearchArchive(ctx, "u1", []float32{1, 0, 0}, 3, 0)
	if err != nil || len(hits) != 3 {
		t.Errorf("hits = %d, want 3", len(hits))
	}
}

func seedJobs(t *testing.T, s *Store) {
	t.Helper()
	err := s.AddJobs(context.Background(), []careerflow.Job{
		{ID: "101", Title: "Backend Engineer", Company: "Acme", JobType: "full_time", Position: "backend", Description: "Go and Postgres", Embedding: []float32{1, 0, 0}},
		{ID: "102", Title: "Platform Engineer", Company: "Globex", JobType: "contract", Position: "platform", Description: "Kubernetes", Embedding: []float32{0.8, 0.2, 0}},
		{ID: "103", Title: "Designer", Company: "Initech", JobType: "full_time", Position: "design", Description: "Figma", Embedding: []float32{0, 1, 0}},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestGetJobsPreservesRequestedOrder(t *testing.T) {
	s := newTestStore(t)
	seedJobs(t, s)

	jobs, err := s.GetJobs(context.Background(), []string{"103", "101", "999"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "103" || jobs[1].ID != "101" {
		t.Errorf("jobs = %+v", jobs)
	}

	none, err := s.GetJobs(context.Background(), nil)
	if err != nil || none != nil {
		t.Errorf("got %+v, %v for empty ids", none, err)
	}
}

func TestSearchJobsFiltersAndRanks(t *testing.T) {
	s := newTestStore(t)
	seedJobs(t, s)
	ctx := context.Background()

	hits, err := s.SearchJobs(ctx, []float32{1, 0, 0}, careerflow.JobFilter{}, 10, 0.5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 || hits[0].Job.ID != "101" {
		t.Errorf("hits = %+v", hits)
	}
	if hits[0].Score < hits[1].Score {
		t.Error("hits not ranked by similarity")
	}

	// job_type filter cuts the full-time posting out.
	contract, err := s.SearchJobs(ctx, []float32{1, 0, 0}, careerflow.JobFilter{JobType: "contract"}, 10, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(contract) != 1 || contract[0].Job.ID != "102" {
		t.Errorf("contract hits = %+v", contract)
	}

	// top-k bound.
	topOne, err := s.SearchJobs(ctx, []float32{1, 0, 0}, careerflow.JobFilter{}, 1, 0)
	if err != nil || len(topOne) != 1 {
		t.Errorf("topOne = %+v", topOne)
	}
}

func TestCosine(t *testing.T) {
	cases := []struct {
		a, b []float32
		want float64
	}{
		{[]float32{1, 0}, []float32{1, 0}, 1},
		{[]float32{1, 0}, []float32{0, 1}, 0},
		{[]float32{1, 0}, []float32{-1, 0}, -1},
		{[]float32{1, 0}, []float32{1, 0, 0}, 0}, // length mismatch
		{nil, nil, 0},
		{[]float32{0, 0}, []float32{1, 0}, 0}, // zero vector
	}
	for _, c := range cases {
		if got := cosine(c.a, c.b); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("cosine(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
