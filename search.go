package careerflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

const jobSearchPrompt = `You are a job search specialist. Use your
capabilities to find relevant postings for the request below, then report
the findings: for each posting give its id, title, company, and a short
description snippet. If nothing was found, say so plainly. Do not invent
postings.`

// jobSearchNode is the single expert of the job search frame. It runs the
// capability loop over the vector search tools and hands its findings back
// to the supervisor.
type jobSearchNode struct {
	e *Engine
}

func (n *jobSearchNode) Name() NodeID { return "search_expert" }

func (n *jobSearchNode) Run(ctx context.Context, st *ThreadState) (StepOutcome, error) {
	reg := NewToolRegistry(
		newQuerySearchTool(n.e),
		newCVSearchTool(n.e, st),
		NewRecallTool(n.e.embedder, n.e.memory, st.UserID),
	)
	msgs := []ChatMessage{
		SystemMessage(st.SystemPrompt(jobSearchPrompt)),
		UserMessage(st.Brief),
	}
	text, _, err := runCapabilityLoop(ctx, loopConfig{
		provider: n.e.provider,
		registry: reg,
		logger:   n.e.logger,
	}, msgs)
	if err != nil {
		return nil, err
	}
	return Resume{
		Target:  FrameSupervisor,
		Payload: Transfer{Kind: TransferJobSearch, From: FrameJobSearch, Body: text},
	}, nil
}

// searchJobs embeds the query and runs filtered vector search with the
// engine's retrieval tuning (top-k and similarity floor).
func (e *Engine) searchJobs(ctx context.Context, query string, f JobFilter) ([]ScoredJob, error) {
	vecs, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedder returned no vector")
	}
	return e.jobs.SearchJobs(ctx, vecs[0], f, e.searchTopK, e.searchMin)
}

func newQuerySearchTool(e *Engine) Tool {
	return &FuncTool{
		Def: ToolDefinition{
			Name:        "search_jobs_by_query",
			Description: "Search the job index with a free-text query. Optional filters: job_type (e.g. full_time, contract), position (e.g. backend engineer).",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string"},
					"job_type": {"type": "string"},
					"position": {"type": "string"}
				},
				"required": ["query"]
			}`),
		},
		Fn: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Query    string `json:"query"`
				JobType  string `json:"job_type"`
				Position string `json:"position"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("bad arguments: %w", err)
			}
			if strings.TrimSpace(in.Query) == "" {
				return "", fmt.Errorf("query is required")
			}
			hits, err := e.searchJobs(ctx, in.Query, JobFilter{JobType: in.JobType, Position: in.Position})
			if err != nil {
				return "", err
			}
			return formatJobHits(hits), nil
		},
	}
}

func newCVSearchTool(e *Engine, st *ThreadState) Tool {
	return &FuncTool{
		Def: ToolDefinition{
			Name:        "search_jobs_by_cv",
			Description: "Search the job index using the user's uploaded CV as the query.",
			Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
		},
		Fn: func(ctx context.Context, _ json.RawMessage) (string, error) {
			if strings.TrimSpace(st.CVText) == "" {
				return "", fmt.Errorf("no CV uploaded")
			}
			hits, err := e.searchJobs(ctx, st.CVText, JobFilter{})
			if err != nil {
				return "", err
			}
			return formatJobHits(hits), nil
		},
	}
}

func formatJobHits(hits []ScoredJob) string {
	if len(hits) == 0 {
		return "No matching postings found."
	}
	var b strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&b, "[%s] %s at %s (similarity %.2f)\n%s\n\n",
			h.Job.ID, h.Job.Title, h.Job.Company, h.Score, snippet(h.Job.Description, 300))
	}
	return strings.TrimRight(b.String(), "\n")
}

func snippet(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	// Back off to a rune boundary so the cut never splits a multi-byte
	// character.
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
