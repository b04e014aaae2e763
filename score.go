package careerflow

import (
	"math"
	"sort"
)

// Criterion is one scored dimension of a CV/JD match: a score in [0,10]
// and a weight in [0,1] reflecting how much the dimension matters for the
// particular posting.
type Criterion struct {
	Score   float64 `json:"score"`
	Weight  float64 `json:"weight"`
	Comment string  `json:"comment,omitempty"`
}

// MatchFeedback is the full scoring of one CV against one job description.
// OverallFit is always derived from the six criteria via Recompute; a
// value arriving from the model is never trusted.
type MatchFeedback struct {
	JobID    string `json:"job_id"`
	JobTitle string `json:"job_title,omitempty"`

	TitleRelevance     Criterion `json:"job_title_relevance"`
	YearsOfExperience  Criterion `json:"years_of_experience"`
	RequiredSkills     Criterion `json:"required_skills_match"`
	Education          Criterion `json:"education_certification"`
	ProjectHistory     Criterion `json:"project_work_history"`
	SoftSkillsLanguage Criterion `json:"softskills_language"`

	OverallFit float64 `json:"overall_fit_score"`
}

func (f *MatchFeedback) criteria() []*Criterion {
	return []*Criterion{
		&f.TitleRelevance,
		&f.YearsOfExperience,
		&f.RequiredSkills,
		&f.Education,
		&f.ProjectHistory,
		&f.SoftSkillsLanguage,
	}
}

// Normalize clamps every criterion into its legal range and recomputes
// the overall fit. Call it on anything decoded from a model reply.
func (f *MatchFeedback) Normalize() {
	for _, c := range f.criteria() {
		c.Score = clamp(c.Score, 0, 10)
		c.Weight = clamp(c.Weight, 0, 1)
	}
	f.Recompute()
}

// Recompute derives OverallFit = round2(Σ score·weight) from the parts.
// Any mutation of a score or weight must be followed by Recompute.
func (f *MatchFeedback) Recompute() {
	var sum float64
	for _, c := range f.criteria() {
		sum += c.Score * c.Weight
	}
	f.OverallFit = round2(sum)
}

// Rank returns the feedback list sorted by overall fit, best first. The
// sort is stable, so equal scores keep their input order. An empty input
// yields an empty (non-nil) slice.
func Rank(fs []MatchFeedback) []MatchFeedback {
	out := make([]MatchFeedback, len(fs))
	copy(out, fs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OverallFit > out[j].OverallFit
	})
	return out
}

// round2 rounds to 2 decimals, half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
