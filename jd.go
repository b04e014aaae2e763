package careerflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// maxParallelAnalysis caps the fan-out worker pool for per-JD scoring and
// comparison.
const maxParallelAnalysis = 10

const jdExpertPrompt = `You are a job description analysis expert. Decide
how to handle the request below.

- To score the user's CV against specific postings, call
  run_batch_scoring with their ids.
- To compare postings as a market overview, call run_market_synthesis
  with their ids.
- If the user has not found postings yet, call forward_job_search with a
  search query on their behalf.
- If the request needs none of these, answer directly.

When the user names no posting ids, call the capability with an empty id
list and the default posting is used.`

var jdCapabilityDefs = []ToolDefinition{
	{
		Name:        "run_batch_scoring",
		Description: "Score the user's CV against each listed job description and rank the results.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {"jd_ids": {"type": "array", "items": {"type": "string"}}}
		}`),
	},
	{
		Name:        "run_market_synthesis",
		Description: "Compare the listed job descriptions into a market overview.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {"jd_ids": {"type": "array", "items": {"type": "string"}}}
		}`),
	},
	{
		Name:        "forward_job_search",
		Description: "Ask the job search specialist to find postings first.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {"query": {"type": "string"}},
			"required": ["query"]
		}`),
	},
}

// jdExpertNode is the entry of the JD frame. It makes a single tool-bound
// model call and interprets only the first capability call: batch flows
// run as nested frames, a search request bounces through the supervisor,
// and a plain answer resumes the supervisor directly.
type jdExpertNode struct {
	e *Engine
}

func (n *jdExpertNode) Name() NodeID { return "jd_expert" }

func (n *jdExpertNode) Run(ctx context.Context, st *ThreadState) (StepOutcome, error) {
	msgs := []ChatMessage{
		SystemMessage(st.SystemPrompt(jdExpertPrompt)),
		UserMessage(st.Brief),
	}
	resp, err := n.e.provider.Chat(ctx, ChatRequest{Messages: msgs, Tools: jdCapabilityDefs})
	if err != nil {
		return nil, fmt.Errorf("jd expert: %w", err)
	}

	if len(resp.ToolCalls) == 0 {
		return Resume{
			Target:  FrameSupervisor,
			Payload: Transfer{Kind: TransferJDReport, From: FrameJD, Body: StripThink(resp.Content)},
		}, nil
	}

	call := resp.ToolCalls[0]
	if len(resp.ToolCalls) > 1 {
		n.e.logger.Debug("jd expert: dropping extra capability calls", "kept", call.Name)
	}

	switch call.Name {
	case "run_batch_scoring", "run_market_synthesis":
		var in struct {
			JDIDs []string `json:"jd_ids"`
		}
		if len(call.Args) > 0 {
			if err := json.Unmarshal(call.Args, &in); err != nil {
				return nil, &ErrSchema{Stage: "jd_expert", Reason: fmt.Sprintf("bad capability args: %v", err)}
			}
		}
		st.JDBatch = in.JDIDs
		if len(st.JDBatch) == 0 {
			st.JDBatch = []string{n.e.defaultJobID}
		}
		st.ResolvedJDs = nil
		if call.Name == "run_batch_scoring" {
			return Continue{Next: "score_batch"}, nil
		}
		return Continue{Next: "synthesize_batch"}, nil
	case "forward_job_search":
		var in struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal(call.Args, &in); err != nil || strings.TrimSpace(in.Query) == "" {
			return nil, &ErrSchema{Stage: "jd_expert", Reason: "forward_job_search without a query"}
		}
		return Resume{
			Target:  FrameSupervisor,
			Payload: Transfer{Kind: TransferForward, From: FrameJD, Body: in.Query},
		}, nil
	default:
		return nil, &ErrSchema{Stage: "jd_expert", Reason: fmt.Sprintf("unknown capability %q", call.Name)}
	}
}

// resolveJDsNode loads the postings for the current batch. An empty
// resolution short-circuits the whole subflow back to the supervisor
// instead of fanning out over nothing.
type resolveJDsNode struct {
	e     *Engine
	frame FrameID
	next  NodeID
}

func (n *resolveJDsNode) Name() NodeID { return "resolve" }

func (n *resolveJDsNode) Run(ctx context.Context, st *ThreadState) (StepOutcome, error) {
	jobs, err := n.e.jobs.GetJobs(ctx, st.JDBatch)
	if err != nil {
		return nil, fmt.Errorf("resolve jds: %w", err)
	}
	if len(jobs) == 0 {
		ids := strings.Join(st.JDBatch, ", ")
		st.JDBatch = nil
		return Resume{
			Target: FrameSupervisor,
			Payload: Transfer{
				Kind: TransferFailure,
				From: n.frame,
				Body: "No job descriptions were found for ids: " + ids + ". Ask the user to search for jobs first.",
			},
		}, nil
	}
	st.ResolvedJDs = jobs
	return Continue{Next: n.next}, nil
}

// --- batch scoring subflow ---

var feedbackSchema = &ResponseSchema{
	Name: "cv_jd_match_feedback",
	Schema: []byte(`{
		"type": "object",
		"properties": {
			"job_title_relevance": {"$ref": "#/$defs/criterion"},
			"years_of_experience": {"$ref": "#/$defs/criterion"},
			"required_skills_match": {"$ref": "#/$defs/criterion"},
			"education_certification": {"$ref": "#/$defs/criterion"},
			"project_work_history": {"$ref": "#/$defs/criterion"},
			"softskills_language": {"$ref": "#/$defs/criterion"}
		},
		"required": ["job_title_relevance", "years_of_experience", "required_skills_match",
			"education_certification", "project_work_history", "softskills_language"],
		"$defs": {
			"criterion": {
				"type": "object",
				"properties": {
					"score": {"type": "number", "minimum": 0, "maximum": 10},
					"weight": {"type": "number", "minimum": 0, "maximum": 1},
					"comment": {"type": "string"}
				},
				"required": ["score", "weight"]
			}
		}
	}`),
}

const scoreJDPrompt = `You score how well a CV matches one job description.
Score each criterion from 0 to 10 and assign it a weight from 0 to 1
reflecting how much the posting emphasizes it. Be strict and justify each
score in its comment.`

// scoreBatchNode fans one scoring task per resolved posting over a
// bounded worker pool and collects the feedback in posting order.
type scoreBatchNode struct {
	e *Engine
}

func (n *scoreBatchNode) Name() NodeID { return "score_each" }

func (n *scoreBatchNode) Run(ctx context.Context, st *ThreadState) (StepOutcome, error) {
	if strings.TrimSpace(st.CVText) == "" {
		st.JDBatch = nil
		st.ResolvedJDs = nil
		return Resume{
			Target: FrameSupervisor,
			Payload: Transfer{
				Kind: TransferFailure,
				From: FrameJDScore,
				Body: "No CV is on file, so the postings cannot be scored. Ask the user to upload their CV.",
			},
		}, nil
	}

	feedback, err := fanOut(ctx, len(st.ResolvedJDs), maxParallelAnalysis, func(ctx context.Context, i int) (MatchFeedback, error) {
		job := st.ResolvedJDs[i]
		msgs := []ChatMessage{
			SystemMessage(st.SystemPrompt(scoreJDPrompt)),
			UserMessage(fmt.Sprintf("Job description [%s] %s at %s:\n%s\n\nCV:\n%s",
				job.ID, job.Title, job.Company, job.Description, st.CVText)),
		}
		var fb MatchFeedback
		if _, err := ChatInto(ctx, n.e.provider, "score_jd", msgs, feedbackSchema, &fb); err != nil {
			return MatchFeedback{}, err
		}
		fb.JobID = job.ID
		fb.JobTitle = job.Title
		fb.Normalize()
		return fb, nil
	})
	if err != nil {
		return nil, err
	}
	st.Feedback = Rank(feedback)
	return Continue{Next: "summarize_scores"}, nil
}

const summarizeScoresPrompt = `You present CV match results to the user.
Write a concise report over the ranked feedback below: overall fit per
posting, the strongest and weakest criteria, and what to improve. Keep
the ranking order exactly as given.`

type summarizeScoresNode struct {
	e *Engine
}

func (n *summarizeScoresNode) Name() NodeID { return "summarize_scores" }

func (n *summarizeScoresNode) Run(ctx context.Context, st *ThreadState) (StepOutcome, error) {
	resp, err := n.e.provider.Chat(ctx, ChatRequest{Messages: []ChatMessage{
		SystemMessage(st.SystemPrompt(summarizeScoresPrompt)),
		UserMessage(renderFeedback(st.Feedback)),
	}})
	if err != nil {
		return nil, fmt.Errorf("summarize scores: %w", err)
	}
	st.JDBatch = nil
	st.ResolvedJDs = nil
	return Resume{
		Target:  FrameSupervisor,
		Payload: Transfer{Kind: TransferJDReport, From: FrameJDScore, Body: StripThink(resp.Content)},
	}, nil
}

func renderFeedback(fs []MatchFeedback) string {
	var b strings.Builder
	for i, f := range fs {
		fmt.Fprintf(&b, "#%d [%s] %s, overall fit %.2f\n", i+1, f.JobID, f.JobTitle, f.OverallFit)
		render := func(name string, c Criterion) {
			fmt.Fprintf(&b, "  %s: %.1f (weight %.2f) %s\n", name, c.Score, c.Weight, c.Comment)
		}
		render("title relevance", f.TitleRelevance)
		render("years of experience", f.YearsOfExperience)
		render("required skills", f.RequiredSkills)
		render("education", f.Education)
		render("project history", f.ProjectHistory)
		render("soft skills / language", f.SoftSkillsLanguage)
		b.WriteByte('\n')
	}
	return b.String()
}

// --- market synthesis subflow ---

// JobCriteria is the structured comparison of one posting for the market
// overview.
type JobCriteria struct {
	JobID          string `json:"job_id"`
	JobTitle       string `json:"job_title"`
	Seniority      string `json:"seniority"`
	YearsRequired  string `json:"years_required"`
	CoreSkills     string `json:"core_skills"`
	NiceToHaves    string `json:"nice_to_haves"`
	Education      string `json:"education"`
	Industry       string `json:"industry"`
	LocationRemote string `json:"location_remote"`
	SalaryHints    string `json:"salary_hints"`
	CultureSignals string `json:"culture_signals"`
}

var criteriaSchema = &ResponseSchema{
	Name: "job_criteria_comparison",
	Schema: []byte(`{
		"type": "object",
		"properties": {
			"job_title": {"type": "string"},
			"seniority": {"type": "string"},
			"years_required": {"type": "string"},
			"core_skills": {"type": "string"},
			"nice_to_haves": {"type": "string"},
			"education": {"type": "string"},
			"industry": {"type": "string"},
			"location_remote": {"type": "string"},
			"salary_hints": {"type": "string"},
			"culture_signals": {"type": "string"}
		},
		"required": ["job_title", "seniority", "years_required", "core_skills",
			"nice_to_haves", "education", "industry", "location_remote",
			"salary_hints", "culture_signals"]
	}`),
}

const parseJDPrompt = `You extract structured hiring criteria from one job
description. Fill every field; write "not stated" when the posting is
silent on a field.`

type compareBatchNode struct {
	e *Engine
}

func (n *compareBatchNode) Name() NodeID { return "compare_each" }

func (n *compareBatchNode) Run(ctx context.Context, st *ThreadState) (StepOutcome, error) {
	criteria, err := fanOut(ctx, len(st.ResolvedJDs), maxParallelAnalysis, func(ctx context.Context, i int) (JobCriteria, error) {
		job := st.ResolvedJDs[i]
		msgs := []ChatMessage{
			SystemMessage(st.SystemPrompt(parseJDPrompt)),
			UserMessage(fmt.Sprintf("Job description [%s] %s at %s:\n%s",
				job.ID, job.Title, job.Company, job.Description)),
		}
		var c JobCriteria
		if _, err := ChatInto(ctx, n.e.provider, "parse_jd", msgs, criteriaSchema, &c); err != nil {
			return JobCriteria{}, err
		}
		c.JobID = job.ID
		if c.JobTitle == "" {
			c.JobTitle = job.Title
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}

	payload, err := json.MarshalIndent(criteria, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render criteria: %w", err)
	}
	resp, err := n.e.provider.Chat(ctx, ChatRequest{Messages: []ChatMessage{
		SystemMessage(st.SystemPrompt(summarizeMarketPrompt)),
		UserMessage(string(payload)),
	}})
	if err != nil {
		return nil, fmt.Errorf("summarize market: %w", err)
	}
	st.MarketSummary = StripThink(resp.Content)
	st.JDBatch = nil
	st.ResolvedJDs = nil
	return Resume{
		Target:  FrameSupervisor,
		Payload: Transfer{Kind: TransferJDReport, From: FrameJDSynth, Body: st.MarketSummary},
	}, nil
}

const summarizeMarketPrompt = `You compare job postings for a candidate.
From the structured criteria below, write a market overview: what the
postings have in common, how they differ, and which demands show up
everywhere versus occasionally. End with what the candidate should
prioritize learning.`

// fanOut runs fn for indices 0..n-1 on a bounded worker pool and returns
// results in index order. The first error cancels the remaining work.
func fanOut[T any](ctx context.Context, n, limit int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	if n == 0 {
		return []T{}, nil
	}
	if limit > n {
		limit = n
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]T, n)
	errs := make([]error, n)
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			r, err := fn(ctx, i)
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			results[i] = r
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil && err != context.Canceled {
			return nil, err
		}
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
