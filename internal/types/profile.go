package types

import "strings"

// =============================================================================
// USER PROFILE - ACCUMULATED INFERRED FACTS
// =============================================================================

// UserProfile is the accumulating mapping of facts inferred about the user
// across turns. Interests and Facts keep insertion order.
type UserProfile struct {
	Name       string   `json:"name,omitempty"`
	Profession string   `json:"profession,omitempty"`
	Interests  []string `json:"interests,omitempty"`
	Facts      []string `json:"facts,omitempty"`
}

// ProfileFacts is a partial profile produced by the best-effort extractor.
type ProfileFacts struct {
	Name       string   `json:"name,omitempty"`
	Profession string   `json:"profession,omitempty"`
	Interests  []string `json:"interests,omitempty"`
	Facts      []string `json:"facts,omitempty"`
}

// IsEmpty reports whether the extraction produced nothing usable.
func (f ProfileFacts) IsEmpty() bool {
	return f.Name == "" && f.Profession == "" && len(f.Interests) == 0 && len(f.Facts) == 0
}

// Merge folds extracted facts into the profile. The merge is additive and
// idempotent: scalar fields are overwritten only by non-empty values, and
// re-adding an interest or fact that is already present (by trimmed string
// equality) is a no-op. Merging the same ProfileFacts twice leaves the
// profile unchanged after the first application.
func (p *UserProfile) Merge(facts ProfileFacts) {
	if v := strings.TrimSpace(facts.Name); v != "" {
		p.Name = v
	}
	if v := strings.TrimSpace(facts.Profession); v != "" {
		p.Profession = v
	}
	p.Interests = appendUnique(p.Interests, facts.Interests)
	p.Facts = appendUnique(p.Facts, facts.Facts)
}

func appendUnique(dst []string, add []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range add {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		dst = append(dst, s)
	}
	return dst
}

// Clone returns an independent copy.
func (p UserProfile) Clone() UserProfile {
	out := p
	out.Interests = append([]string(nil), p.Interests...)
	out.Facts = append([]string(nil), p.Facts...)
	return out
}
