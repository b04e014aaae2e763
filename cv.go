package careerflow

import (
	"context"
	"fmt"
	"strings"
)

// CV pipeline branch and action values. Closed enums; anything else from
// the classifier is fatal.
const (
	cvBranchFormat  = "format"
	cvBranchContent = "content"

	cvActionReview  = "review"
	cvActionRewrite = "rewrite"
)

// JDRequirements is what the requirement extractor pulls out of a job
// description, grouped into the five categories the analyst scores.
type JDRequirements struct {
	TechnicalSkills         []string `json:"technical_skills"`
	SoftSkills              []string `json:"soft_skills"`
	ExperienceRequirements  []string `json:"experience_requirements"`
	EducationCertifications []string `json:"education_certifications"`
	HiddenInsights          []string `json:"hidden_insights"`
}

func (r JDRequirements) Render() string {
	var b strings.Builder
	add := func(label string, vs []string) {
		if len(vs) > 0 {
			fmt.Fprintf(&b, "%s: %s\n", label, strings.Join(vs, "; "))
		}
	}
	add("Technical skills", r.TechnicalSkills)
	add("Soft skills", r.SoftSkills)
	add("Experience requirements", r.ExperienceRequirements)
	add("Education and certifications", r.EducationCertifications)
	add("Hidden insights", r.HiddenInsights)
	return strings.TrimRight(b.String(), "\n")
}

// CategoryScore is the analyst's verdict on one requirement category.
type CategoryScore struct {
	Score   float64 `json:"score"`
	Comment string  `json:"comment"`
}

// CVAnalysis scores the CV against each requirement category, 0 to 10.
type CVAnalysis struct {
	TechnicalSkills         CategoryScore `json:"technical_skills"`
	SoftSkills              CategoryScore `json:"soft_skills"`
	ExperienceRequirements  CategoryScore `json:"experience_requirements"`
	EducationCertifications CategoryScore `json:"education_certifications"`
	HiddenInsights          CategoryScore `json:"hidden_insights"`
}

func (a CVAnalysis) Render() string {
	var b strings.Builder
	row := func(label string, c CategoryScore) {
		fmt.Fprintf(&b, "%s: %.1f/10. %s\n", label, c.Score, c.Comment)
	}
	row("Technical skills", a.TechnicalSkills)
	row("Soft skills", a.SoftSkills)
	row("Experience", a.ExperienceRequirements)
	row("Education and certifications", a.EducationCertifications)
	row("Hidden insights", a.HiddenInsights)
	return strings.TrimRight(b.String(), "\n")
}

// ContentReview is the suggestor's verdict on whether and how the CV
// content should change.
type ContentReview struct {
	ActionNeeded      string   `json:"action_needed"` // yes | no | cannot_be_improved
	Recommendation    string   `json:"recommendation"`
	SuggestedKeywords []string `json:"suggested_keywords"`
}

func (r ContentReview) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Action needed: %s\n", r.ActionNeeded)
	if r.Recommendation != "" {
		fmt.Fprintf(&b, "Recommendation: %s\n", r.Recommendation)
	}
	if len(r.SuggestedKeywords) > 0 {
		fmt.Fprintf(&b, "Suggested keywords: %s\n", strings.Join(r.SuggestedKeywords, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// --- classifier ---

type cvDecision struct {
	Branch string `json:"branch"`
	Action string `json:"action"`
	JDID   string `json:"jd_id"`
}

var cvDecisionSchema = &ResponseSchema{
	Name: "cv_request_decision",
	Schema: []byte(`{
		"type": "object",
		"properties": {
			"branch": {"type": "string", "enum": ["format", "content"]},
			"action": {"type": "string", "enum": ["review", "rewrite"]},
			"jd_id": {"type": "string"}
		},
		"required": ["branch", "action"]
	}`),
}

const classifyCVPrompt = `You run the CV desk of a career assistant.
Classify the request below.

- branch "format": the request is about layout, length, structure, or
  general presentability of the CV.
- branch "content": the request is about tailoring the CV's substance to
  a job description.
- action "review": the user wants feedback.
- action "rewrite": the user wants the CV changed.
- jd_id: the job posting id the request targets, when the user named one.
  Leave it empty otherwise.`

// classifyCVNode is the entry of the CV frame. When the insights for the
// requested branch already exist it skips straight past the analysis
// chain: a rewrite goes to the writer, a review is answered from the
// stored insights.
type classifyCVNode struct {
	e *Engine
}

func (n *classifyCVNode) Name() NodeID { return "classify" }

func (n *classifyCVNode) Run(ctx context.Context, st *ThreadState) (StepOutcome, error) {
	if strings.TrimSpace(st.CVText) == "" {
		return Resume{
			Target: FrameSupervisor,
			Payload: Transfer{
				Kind: TransferFailure,
				From: FrameCV,
				Body: "No CV is on file. Ask the user to upload their CV first.",
			},
		}, nil
	}

	msgs := []ChatMessage{
		SystemMessage(st.SystemPrompt(classifyCVPrompt)),
		UserMessage(st.Brief),
	}
	var dec cvDecision
	if _, err := ChatInto(ctx, n.e.provider, "cv_classify", msgs, cvDecisionSchema, &dec); err != nil {
		return nil, err
	}
	if dec.Branch != cvBranchFormat && dec.Branch != cvBranchContent {
		return nil, &ErrSchema{Stage: "cv_classify", Reason: fmt.Sprintf("unknown branch %q", dec.Branch)}
	}
	if dec.Action != cvActionReview && dec.Action != cvActionRewrite {
		return nil, &ErrSchema{Stage: "cv_classify", Reason: fmt.Sprintf("unknown action %q", dec.Action)}
	}

	st.CVAction = dec.Action
	st.CVJobID = dec.JDID
	if st.CVJobID == "" {
		st.CVJobID = n.e.defaultJobID
	}

	switch dec.Branch {
	case cvBranchFormat:
		if st.FormatReview != "" {
			if dec.Action == cvActionRewrite {
				return Continue{Next: "write"}, nil
			}
			return cvResult(st.FormatReview), nil
		}
		return Continue{Next: "format_review"}, nil
	default: // content
		if st.ContentReview != nil {
			if dec.Action == cvActionRewrite {
				return Continue{Next: "write"}, nil
			}
			return cvResult(renderContentInsights(st)), nil
		}
		return Continue{Next: "extract_requirements"}, nil
	}
}

func cvResult(body string) Resume {
	return Resume{
		Target:  FrameSupervisor,
		Payload: Transfer{Kind: TransferCVResult, From: FrameCV, Body: body},
	}
}

func renderContentInsights(st *ThreadState) string {
	var parts []string
	if st.Analysis != nil {
		parts = append(parts, "CV analysis:\n"+st.Analysis.Render())
	}
	if st.ContentReview != nil {
		parts = append(parts, "Review:\n"+st.ContentReview.Render())
	}
	return strings.Join(parts, "\n\n")
}

// --- format branch ---

const formatReviewPrompt = `You review the FORMAT of a CV, not its
content. Go through this checklist and comment on each point:
1. overall layout, 2. length, 3. fonts and typography, 4. section order
and completeness, 5. bullet style, 6. date formatting, 7. contact block,
8. file hygiene (naming, export), 9. internal consistency, 10. ATS
safety (no tables, graphics, or columns that parsers choke on).
Finish with the three most impactful fixes.`

type formatReviewNode struct {
	e *Engine
}

func (n *formatReviewNode) Name() NodeID { return "format_review" }

func (n *formatReviewNode) Run(ctx context.Context, st *ThreadState) (StepOutcome, error) {
	resp, err := n.e.provider.Chat(ctx, ChatRequest{Messages: []ChatMessage{
		SystemMessage(st.SystemPrompt(formatReviewPrompt)),
		UserMessage(st.CVText),
	}})
	if err != nil {
		return nil, fmt.Errorf("format review: %w", err)
	}
	st.FormatReview = StripThink(resp.Content)
	if st.CVAction == cvActionRewrite {
		return Continue{Next: "write"}, nil
	}
	return cvResult(st.FormatReview), nil
}

// --- content branch ---

var requirementsSchema = &ResponseSchema{
	Name: "jd_requirements",
	Schema: []byte(`{
		"type": "object",
		"properties": {
			"technical_skills": {"type": "array", "items": {"type": "string"}},
			"soft_skills": {"type": "array", "items": {"type": "string"}},
			"experience_requirements": {"type": "array", "items": {"type": "string"}},
			"education_certifications": {"type": "array", "items": {"type": "string"}},
			"hidden_insights": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["technical_skills", "soft_skills", "experience_requirements",
			"education_certifications", "hidden_insights"]
	}`),
}

const extractRequirementsPrompt = `You extract requirements from a job
description. Sort every requirement into one of five categories:
technical skills, soft skills, experience requirements, education and
certifications, and hidden insights (expectations implied between the
lines, e.g. on-call duty behind "ownership"). Every category must appear;
use an empty list when the posting has nothing for it.`

type extractRequirementsNode struct {
	e *Engine
}

func (n *extractRequirementsNode) Name() NodeID { return "extract_requirements" }

func (n *extractRequirementsNode) Run(ctx context.Context, st *ThreadState) (StepOutcome, error) {
	jobs, err := n.e.jobs.GetJobs(ctx, []string{st.CVJobID})
	if err != nil {
		return nil, fmt.Errorf("load jd %s: %w", st.CVJobID, err)
	}
	if len(jobs) == 0 {
		return Resume{
			Target: FrameSupervisor,
			Payload: Transfer{
				Kind: TransferFailure,
				From: FrameCV,
				Body: fmt.Sprintf("Job description %s was not found. Ask the user to search for jobs first.", st.CVJobID),
			},
		}, nil
	}
	job := jobs[0]

	msgs := []ChatMessage{
		SystemMessage(st.SystemPrompt(extractRequirementsPrompt)),
		UserMessage(fmt.Sprintf("Job description [%s] %s at %s:\n%s",
			job.ID, job.Title, job.Company, job.Description)),
	}
	var reqs JDRequirements
	if _, err := ChatInto(ctx, n.e.provider, "extract_requirements", msgs, requirementsSchema, &reqs); err != nil {
		return nil, err
	}
	st.Requirements = &reqs
	return Continue{Next: "analyze_cv"}, nil
}

var analysisSchema = &ResponseSchema{
	Name: "cv_analysis",
	Schema: []byte(`{
		"type": "object",
		"properties": {
			"technical_skills": {"$ref": "#/$defs/cat"},
			"soft_skills": {"$ref": "#/$defs/cat"},
			"experience_requirements": {"$ref": "#/$defs/cat"},
			"education_certifications": {"$ref": "#/$defs/cat"},
			"hidden_insights": {"$ref": "#/$defs/cat"}
		},
		"required": ["technical_skills", "soft_skills", "experience_requirements",
			"education_certifications", "hidden_insights"],
		"$defs": {
			"cat": {
				"type": "object",
				"properties": {
					"score": {"type": "number", "minimum": 0, "maximum": 10},
					"comment": {"type": "string"}
				},
				"required": ["score", "comment"]
			}
		}
	}`),
}

const analyzeCVPrompt = `You analyze how well a CV covers extracted job
requirements. For each of the five categories give a score from 0 to 10
and a comment naming what is present and what is missing.`

type analyzeCVNode struct {
	e *Engine
}

func (n *analyzeCVNode) Name() NodeID { return "analyze_cv" }

func (n *analyzeCVNode) Run(ctx context.Context, st *ThreadState) (StepOutcome, error) {
	msgs := []ChatMessage{
		SystemMessage(st.SystemPrompt(analyzeCVPrompt)),
		UserMessage(fmt.Sprintf("Requirements:\n%s\n\nCV:\n%s", st.Requirements.Render(), st.CVText)),
	}
	var an CVAnalysis
	if _, err := ChatInto(ctx, n.e.provider, "analyze_cv", msgs, analysisSchema, &an); err != nil {
		return nil, err
	}
	st.Analysis = &an
	return Continue{Next: "suggest"}, nil
}

var contentReviewSchema = &ResponseSchema{
	Name: "content_review",
	Schema: []byte(`{
		"type": "object",
		"properties": {
			"action_needed": {"type": "string", "enum": ["yes", "no", "cannot_be_improved"]},
			"recommendation": {"type": "string"},
			"suggested_keywords": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["action_needed", "recommendation"]
	}`),
}

const suggestPrompt = `You decide whether a CV's content should change for
a target job, based on the analysis below.

- action_needed "yes": concrete improvements exist; describe them in the
  recommendation and list keywords worth adding.
- action_needed "no": the CV already covers the requirements well.
- action_needed "cannot_be_improved": the gaps are real experience the
  user does not have; a rewrite cannot close them honestly.`

type suggestNode struct {
	e *Engine
}

func (n *suggestNode) Name() NodeID { return "suggest" }

func (n *suggestNode) Run(ctx context.Context, st *ThreadState) (StepOutcome, error) {
	msgs := []ChatMessage{
		SystemMessage(st.SystemPrompt(suggestPrompt)),
		UserMessage(fmt.Sprintf("Requirements:\n%s\n\nAnalysis:\n%s",
			st.Requirements.Render(), st.Analysis.Render())),
	}
	var rev ContentReview
	if _, err := ChatInto(ctx, n.e.provider, "content_review", msgs, contentReviewSchema, &rev); err != nil {
		return nil, err
	}
	st.ContentReview = &rev

	if st.CVAction == cvActionRewrite {
		if rev.ActionNeeded == "cannot_be_improved" {
			return cvResult("The CV cannot honestly be improved for this posting:\n" + rev.Recommendation), nil
		}
		return Continue{Next: "write"}, nil
	}
	return cvResult(renderContentInsights(st)), nil
}

// --- writer ---

const writeCVPrompt = `You rewrite a CV applying the reviewer insights
below. Rules:
- Never invent experience, employers, dates, degrees, or skills the
  original CV does not contain.
- Reword, reorder, and emphasize; weave in suggested keywords only where
  the underlying experience supports them.
- Respond with the new CV text only, no commentary before or after.`

type writeCVNode struct {
	e *Engine
}

func (n *writeCVNode) Name() NodeID { return "write" }

func (n *writeCVNode) Run(ctx context.Context, st *ThreadState) (StepOutcome, error) {
	var insights []string
	if st.FormatReview != "" {
		insights = append(insights, "Format review:\n"+st.FormatReview)
	}
	if s := renderContentInsights(st); s != "" {
		insights = append(insights, s)
	}
	msgs := []ChatMessage{
		SystemMessage(st.SystemPrompt(writeCVPrompt)),
		UserMessage(fmt.Sprintf("%s\n\nOriginal CV:\n%s", strings.Join(insights, "\n\n"), st.CVText)),
	}
	resp, err := n.e.provider.Chat(ctx, ChatRequest{Messages: msgs})
	if err != nil {
		return nil, fmt.Errorf("write cv: %w", err)
	}
	st.RewrittenCV = StripThink(resp.Content)
	return cvResult(st.RewrittenCV), nil
}
