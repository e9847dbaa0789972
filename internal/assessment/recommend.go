package assessment

import "sort"

const (
	TierQuickWin   = "quick_win"
	TierMediumTerm = "medium_term"
	TierCompliance = "compliance"
)

// Context tags derived from answers and profile.
const (
	TagPublicWebsite           = "public_website"
	TagSocialMedia             = "social_media"
	TagHandlesSensitiveData    = "handles_sensitive_data"
	TagHandlesCardPayments     = "handles_card_payments"
	TagProcessesEUPersonalData = "processes_eu_personal_data"
	TagRemoteWorkforce         = "remote_workforce"
	TagBYOD                    = "byod"
)

var tierOrder = []string{TierQuickWin, TierMediumTerm, TierCompliance}

func tierRank(t string) int {
	for i, v := range tierOrder {
		if v == t {
			return i
		}
	}
	return -1
}

func knownTag(t string) bool {
	switch t {
	case TagPublicWebsite, TagSocialMedia, TagHandlesSensitiveData, TagHandlesCardPayments,
		TagProcessesEUPersonalData, TagRemoteWorkforce, TagBYOD:
		return true
	}
	return false
}

// Recommendation is one catalog entry. It is selected when its clause matches
// and every required tag is present.
type Recommendation struct {
	Clause       `yaml:",inline"`
	ID           string   `yaml:"id" json:"id"`
	Tier         string   `yaml:"tier" json:"tier"`
	Title        string   `yaml:"title" json:"title"`
	Text         string   `yaml:"text" json:"text"`
	RequiresTags []string `yaml:"requires_tags,omitempty" json:"requiresTags,omitempty"`
	References   []string `yaml:"references,omitempty" json:"references,omitempty"`
}

// Advice is a selected recommendation as handed to callers.
type Advice struct {
	ID         string   `json:"id"`
	Tier       string   `json:"tier"`
	Title      string   `json:"title"`
	Text       string   `json:"text"`
	References []string `json:"references,omitempty"`
}

// ContextTags derives the sorted set of tags used to gate compliance items.
func ContextTags(a Answers, p Profile) []string {
	tags := []string{}
	if a.Get("df_website") == Yes {
		tags = append(tags, TagPublicWebsite)
	}
	if a.Get("df_social") == Yes {
		tags = append(tags, TagSocialMedia)
	}
	if a.Get("bp_sensitive") == Yes {
		tags = append(tags, TagHandlesSensitiveData)
		if p.InEU() {
			tags = append(tags, TagProcessesEUPersonalData)
		}
	}
	if a.Get("bp_card_payments") == Yes {
		tags = append(tags, TagHandlesCardPayments)
	}
	if b := a.Get("bp_byod"); b == Yes || b == Partially {
		tags = append(tags, TagBYOD)
	}
	if p.WorkMode == WorkModeRemote || p.WorkMode == WorkModeMixed {
		tags = append(tags, TagRemoteWorkforce)
	}
	sort.Strings(tags)
	return tags
}

// SelectRecommendations returns matching advice ordered quick wins first,
// then medium-term, then compliance, catalog order within a tier, capped at
// the configured maximum.
func SelectRecommendations(r *Rules, a Answers, tags []string) []Advice {
	have := make(map[string]bool, len(tags))
	for _, t := range tags {
		have[t] = true
	}

	out := []Advice{}
	for _, tier := range tierOrder {
		for _, rec := range r.Recommendations {
			if rec.Tier != tier || !rec.Matches(a) || !hasAll(have, rec.RequiresTags) {
				continue
			}
			out = append(out, Advice{
				ID:         rec.ID,
				Tier:       rec.Tier,
				Title:      rec.Title,
				Text:       rec.Text,
				References: rec.References,
			})
			if len(out) == r.MaxRecommendations {
				return out
			}
		}
	}
	return out
}

func hasAll(have map[string]bool, want []string) bool {
	for _, t := range want {
		if !have[t] {
			return false
		}
	}
	return true
}
