package careerflow

import (
	"fmt"
	"strings"
)

// Profile is the long-term career profile distilled from conversation
// history. All fields are optional; extraction only ever fills in what the
// user actually said.
type Profile struct {
	Name                string   `json:"name,omitempty"`
	Email               string   `json:"email,omitempty"`
	Phone               string   `json:"phone,omitempty"`
	Location            string   `json:"location,omitempty"`
	CareerGoal          string   `json:"career_goal,omitempty"`
	PreferredRoles      []string `json:"preferred_roles,omitempty"`
	Skills              []string `json:"skills,omitempty"`
	ExperienceSummary   string   `json:"experience_summary,omitempty"`
	Achievements        []string `json:"achievements,omitempty"`
	EducationBackground string   `json:"education_background,omitempty"`
	Availability        string   `json:"availability,omitempty"`
	Preferences         []string `json:"preferences,omitempty"`
}

// Merge overlays extracted values onto the stored profile. A field is
// replaced only when the incoming value is non-empty; list fields are set
// wholesale, not unioned, so a fresh extraction can correct stale entries.
func (p *Profile) Merge(in Profile) {
	if in.Name != "" {
		p.Name = in.Name
	}
	if in.Email != "" {
		p.Email = in.Email
	}
	if in.Phone != "" {
		p.Phone = in.Phone
	}
	if in.Location != "" {
		p.Location = in.Location
	}
	if in.CareerGoal != "" {
		p.CareerGoal = in.CareerGoal
	}
	if len(in.PreferredRoles) > 0 {
		p.PreferredRoles = in.PreferredRoles
	}
	if len(in.Skills) > 0 {
		p.Skills = in.Skills
	}
	if in.ExperienceSummary != "" {
		p.ExperienceSummary = in.ExperienceSummary
	}
	if len(in.Achievements) > 0 {
		p.Achievements = in.Achievements
	}
	if in.EducationBackground != "" {
		p.EducationBackground = in.EducationBackground
	}
	if in.Availability != "" {
		p.Availability = in.Availability
	}
	if len(in.Preferences) > 0 {
		p.Preferences = in.Preferences
	}
}

// IsZero reports whether nothing has been extracted yet.
func (p Profile) IsZero() bool {
	return p.Name == "" && p.Email == "" && p.Phone == "" && p.Location == "" &&
		p.CareerGoal == "" && len(p.PreferredRoles) == 0 && len(p.Skills) == 0 &&
		p.ExperienceSummary == "" && len(p.Achievements) == 0 &&
		p.EducationBackground == "" && p.Availability == "" && len(p.Preferences) == 0
}

// Render formats the profile for inclusion in a system prompt. Empty
// fields are omitted.
func (p Profile) Render() string {
	var b strings.Builder
	add := func(label, v string) {
		if v != "" {
			fmt.Fprintf(&b, "- %s: %s\n", label, v)
		}
	}
	add("Name", p.Name)
	add("Email", p.Email)
	add("Phone", p.Phone)
	add("Location", p.Location)
	add("Career goal", p.CareerGoal)
	add("Preferred roles", strings.Join(p.PreferredRoles, ", "))
	add("Skills", strings.Join(p.Skills, ", "))
	add("Experience", p.ExperienceSummary)
	add("Achievements", strings.Join(p.Achievements, "; "))
	add("Education", p.EducationBackground)
	add("Availability", p.Availability)
	add("Preferences", strings.Join(p.Preferences, ", "))
	return strings.TrimRight(b.String(), "\n")
}
