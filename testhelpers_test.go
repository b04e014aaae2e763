package careerflow

import (
	"context"
	"fmt"
	"sync"
)

// mockProvider returns canned responses in order, or routes through a
// handler when set. Safe for concurrent use (fan-out tests).
type mockProvider struct {
	mu        sync.Mutex
	responses []ChatResponse
	idx       int
	handler   func(req ChatRequest) (ChatResponse, error)
	requests  []ChatRequest
}

func (m *mockProvider) Chat(_ context.Context, req ChatRequest) (ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.handler != nil {
		return m.handler(req)
	}
	if m.idx >= len(m.responses) {
		return ChatResponse{}, fmt.Errorf("mockProvider: no canned response for call %d", m.idx)
	}
	r := m.responses[m.idx]
	m.idx++
	return r, nil
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// mockEmbedder returns a fixed vector per text.
type mockEmbedder struct{}

func (mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (mockEmbedder) Dimensions() int { return 3 }
func (mockEmbedder) Name() string    { return "mock-embed" }

// memCheckpointer keeps checkpoints in memory and counts saves.
type memCheckpointer struct {
	mu     sync.Mutex
	states map[string]*ThreadState
	saves  int
}

func newMemCheckpointer() *memCheckpointer {
	return &memCheckpointer{states: map[string]*ThreadState{}}
}

func (c *memCheckpointer) SaveCheckpoint(_ context.Context, st *ThreadState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *st
	c.states[st.ThreadID] = &cp
	c.saves++
	return nil
}

func (c *memCheckpointer) LoadThread(_ context.Context, threadID string) (*ThreadState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[threadID]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

// memMemory is an in-memory MemoryStore.
type memMemory struct {
	mu       sync.Mutex
	profiles map[string]Profile
	archived map[string][]StoredMessage
}

func newMemMemory() *memMemory {
	return &memMemory{profiles: map[string]Profile{}, archived: map[string][]StoredMessage{}}
}

func (m *memMemory) SaveProfile(_ context.Context, userID string, p Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[userID] = p
	return nil
}

func (m *memMemory) LoadProfile(_ context.Context, userID string) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profiles[userID], nil
}

func (m *memMemory) ArchiveMessages(_ context.Context, userID string, msgs []StoredMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archived[userID] = append(m.archived[userID], msgs...)
	return nil
}

func (m *memMemory) SearchArchive(_ context.Context, userID string, _ []float32, limit int, _ float64) ([]StoredMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.archived[userID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

// memJobs serves a fixed posting set.
type memJobs struct {
	jobs []Job
}

func (m *memJobs) GetJobs(_ context.Context, ids []string) ([]Job, error) {
	var out []Job
	for _, id := range ids {
		for _, j := range m.jobs {
			if j.ID == id {
				out = append(out, j)
			}
		}
	}
	return out, nil
}

func (m *memJobs) SearchJobs(_ context.Context, _ []float32, _ JobFilter, k int, _ float64) ([]ScoredJob, error) {
	var out []ScoredJob
	for i, j := range m.jobs {
		if k > 0 && i >= k {
			break
		}
		out = append(out, ScoredJob{Job: j, Score: 0.9 - float64(i)*0.1})
	}
	return out, nil
}

// textResponse builds a plain assistant reply.
func textResponse(s string) ChatResponse {
	return ChatResponse{Content: s}
}

// toolCallResponse builds a reply carrying a single capability call.
func toolCallResponse(name, args string) ChatResponse {
	return ChatResponse{ToolCalls: []ToolCall{{ID: "call-1", Name: name, Args: []byte(args)}}}
}

// newTestEngine wires an engine on in-memory fakes.
func newTestEngine(p Provider, jobs []Job) (*Engine, *memCheckpointer, *memMemory) {
	cp := newMemCheckpointer()
	mem := newMemMemory()
	e := NewEngine(p, mockEmbedder{}, cp, mem, &memJobs{jobs: jobs})
	return e, cp, mem
}

var testJobs = []Job{
	{ID: "101", Title: "Backend Engineer", Company: "Acme", Description: "Go, Postgres, 3+ years"},
	{ID: "102", Title: "Platform Engineer", Company: "Globex", Description: "Kubernetes, Go, 5+ years"},
	{ID: "103", Title: "SRE", Company: "Initech", Description: "On-call, Terraform, Go"},
	{ID: "4942", Title: "Software Engineer", Company: "Hooli", Description: "General software role"},
}
