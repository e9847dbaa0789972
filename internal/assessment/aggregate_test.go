package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bestAnswers() Answers {
	return Answers{
		"bp_inventory":     Yes,
		"bp_byod":          No,
		"bp_sensitive":     No,
		"bp_card_payments": No,
		"df_website":       Yes,
		"df_https":         Yes,
		"df_email":         Yes,
		"df_social":        No,
		"df_review":        Yes,
	}
}

func worstAnswers() Answers {
	return Answers{
		"bp_inventory":     No,
		"bp_byod":          Yes,
		"bp_sensitive":     Yes,
		"bp_card_payments": Yes,
		"df_website":       Yes,
		"df_https":         No,
		"df_email":         No,
		"df_social":        Yes,
		"df_review":        No,
	}
}

func withPolicy(t *testing.T, policy string) *Rules {
	r := mustDefault(t)
	r.OverallPolicy = policy
	return r
}

func TestAggregate_Weighted(t *testing.T) {
	r := mustDefault(t)

	tests := []struct {
		name     string
		answers  Answers
		maturity int
		band     string
	}{
		{"all unanswered", Answers{}, 50, "moderate"},
		{"all best", bestAnswers(), 100, "strong"},
		{"all worst", worstAnswers(), 0, "very_low"},
		{
			name: "mixed",
			answers: Answers{
				"bp_inventory": Partially, "bp_byod": No, "bp_sensitive": Yes,
				"df_website": No, "df_email": Yes, "df_review": Partially,
			},
			maturity: 67,
			band:     "good",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(r, tt.answers)
			assert.Equal(t, PolicyWeightedBands, got.Policy)
			assert.Equal(t, tt.maturity, got.Maturity)
			assert.Equal(t, tt.band, got.Band)
		})
	}
}

func TestAggregate_TopicSeverity(t *testing.T) {
	r := withPolicy(t, PolicyTopicSeverity)

	assert.Equal(t, "Medium", Aggregate(r, Answers{}).Label)
	assert.Equal(t, "Low", Aggregate(r, bestAnswers()).Label)

	high := Aggregate(r, Answers{"df_website": Yes, "df_https": No, "df_email": No, "bp_byod": Yes, "bp_sensitive": Yes})
	assert.Equal(t, "High", high.Label)
	assert.Equal(t, "🔴", high.Color)
	assert.Equal(t, 6, high.Severity)
}

func TestSectionScores_HTTPSWithoutWebsiteScoresBest(t *testing.T) {
	r := mustDefault(t)

	without := SectionScores(r, Answers{"df_website": No, "df_https": No, "df_email": Yes, "df_review": Yes})
	with := SectionScores(r, Answers{"df_website": Yes, "df_https": No, "df_email": Yes, "df_review": Yes})
	unknown := SectionScores(r, Answers{"df_https": No, "df_email": Yes, "df_review": Yes})

	require.Len(t, without, 2)
	require.Len(t, with, 2)
	require.Len(t, unknown, 2)
	assert.Equal(t, 3, without[1].Counted)
	assert.Equal(t, 2, without[1].Answered)
	assert.Equal(t, 0.0, without[1].Average)
	assert.Equal(t, 3, with[1].Counted)
	assert.InDelta(t, 2.0/3.0, with[1].Average, 1e-9)
	assert.InDelta(t, 2.0/3.0, unknown[1].Average, 1e-9)
}

func TestAggregate_NoWebsiteNeverWorse(t *testing.T) {
	r := mustDefault(t)
	a := Answers{
		"bp_inventory": Yes, "bp_byod": Partially, "bp_sensitive": NotSure,
		"df_https": Yes, "df_email": Yes, "df_review": No,
	}

	withSite := a.Clone()
	withSite["df_website"] = Yes
	noSite := a.Clone()
	noSite["df_website"] = No

	assert.Equal(t, 67, Aggregate(r, withSite).Maturity)
	assert.Equal(t, 67, Aggregate(r, noSite).Maturity)
	assert.Equal(t, Aggregate(r, withSite).Band, Aggregate(r, noSite).Band)
}

func TestWeightedMean_NoSections(t *testing.T) {
	r := mustDefault(t)
	assert.Equal(t, 1.0, WeightedMean(r, nil))
}

func TestWeightedMean_UsesWeights(t *testing.T) {
	r := mustDefault(t)
	mean := WeightedMean(r, []SectionScore{
		{Weight: 3, Average: 0},
		{Weight: 1, Average: 2},
	})
	assert.InDelta(t, 0.5, mean, 1e-9)
}

func TestAggregate_Deterministic(t *testing.T) {
	r := mustDefault(t)
	for _, a := range []Answers{{}, bestAnswers(), worstAnswers()} {
		assert.Equal(t, Aggregate(r, a), Aggregate(r, a.Clone()))
		assert.Equal(t, Evaluate(r, a, DefaultProfile()), Evaluate(r, a.Clone(), DefaultProfile()))
	}
}

func TestAggregate_BestAnswersNeverWorseThanGood(t *testing.T) {
	r := mustDefault(t)
	best := bestAnswers()
	// Context answers must not drag the band down.
	for _, website := range []Answer{Yes, No, Unanswered} {
		a := best.Clone()
		a["df_website"] = website
		got := Aggregate(r, a)
		assert.GreaterOrEqual(t, got.Maturity, 60, "website=%q", website)
	}
}

// Improving any single scored answer (lower code) never lowers maturity.
func TestAggregate_Monotonic(t *testing.T) {
	r := mustDefault(t)
	bases := []Answers{
		{}, bestAnswers(), worstAnswers(),
		{"df_website": Yes, "bp_byod": Partially},
		{"bp_inventory": Yes, "bp_byod": Partially, "bp_sensitive": NotSure, "df_https": Yes, "df_email": Yes, "df_review": No},
		{"df_https": NotSure, "df_email": Partially},
	}
	candidates := append([]Answer{}, AllAnswers...)

	// Having no website is the safer answer to the gating question.
	for _, base := range bases {
		safer := base.Clone()
		safer["df_website"] = No
		for _, riskier := range []Answer{Yes, Unanswered} {
			a := base.Clone()
			a["df_website"] = riskier
			assert.GreaterOrEqual(t, Aggregate(r, safer).Maturity, Aggregate(r, a).Maturity,
				"df_website: no vs %q on %v", riskier, base)
			assert.LessOrEqual(t, AssessDependency(r, safer).Points, AssessDependency(r, a).Points)
		}
	}

	for _, base := range bases {
		for _, q := range r.Questions {
			if !q.Scored {
				continue
			}
			for _, better := range candidates {
				for _, worse := range candidates {
					if r.Code(q, better) > r.Code(q, worse) {
						continue
					}
					ab := base.Clone()
					ab[q.ID] = better
					aw := base.Clone()
					aw[q.ID] = worse
					assert.GreaterOrEqual(t, Aggregate(r, ab).Maturity, Aggregate(r, aw).Maturity,
						"question %s: %q vs %q", q.ID, better, worse)
				}
			}
		}
	}
}

func TestCode_Polarity(t *testing.T) {
	r := mustDefault(t)
	inventory, _ := r.Question("bp_inventory")
	byod, _ := r.Question("bp_byod")

	assert.Equal(t, 0.0, r.Code(inventory, Yes))
	assert.Equal(t, 2.0, r.Code(inventory, No))
	assert.Equal(t, 2.0, r.Code(byod, Yes))
	assert.Equal(t, 0.0, r.Code(byod, No))
	assert.Equal(t, 1.0, r.Code(byod, Unanswered))
	assert.Equal(t, 1.0, r.Code(inventory, NotSure))
}

func TestBandFor(t *testing.T) {
	r := mustDefault(t)
	assert.Equal(t, "Strong", r.BandFor(80).Label)
	assert.Equal(t, "Good", r.BandFor(79).Label)
	assert.Equal(t, "Moderate", r.BandFor(40).Label)
	assert.Equal(t, "Low", r.BandFor(39).Label)
	assert.Equal(t, "Very Low", r.BandFor(0).Label)
}

func TestAssessDependency(t *testing.T) {
	r := mustDefault(t)

	t.Run("exposed business is high", func(t *testing.T) {
		d := AssessDependency(r, Answers{"df_website": Yes, "df_https": No, "df_email": No, "bp_byod": Yes, "bp_sensitive": Yes})
		assert.Equal(t, "High", d.Label)
		assert.Equal(t, "🔴", d.Color)
		assert.Equal(t, 3, d.Points)
		assert.Equal(t, []string{"web", "email", "data"}, d.Factors)
	})

	t.Run("safe business is low", func(t *testing.T) {
		d := AssessDependency(r, Answers{"df_website": No, "df_email": Yes, "bp_byod": No, "bp_sensitive": No})
		assert.Equal(t, "Low", d.Label)
		assert.Equal(t, "🟢", d.Color)
		assert.Empty(t, d.Factors)

		d = AssessDependency(r, Answers{"df_website": Yes, "df_https": Yes, "df_email": Yes, "bp_byod": No, "bp_sensitive": No})
		assert.Equal(t, "Low", d.Label)
	})

	t.Run("one factor is medium", func(t *testing.T) {
		d := AssessDependency(r, Answers{"df_website": No, "df_email": Partially, "bp_byod": No, "bp_sensitive": No})
		assert.Equal(t, "Medium", d.Label)
		assert.Equal(t, "🟡", d.Color)
	})
}
