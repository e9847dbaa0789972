package assessment

import "math"

// Overall is the single headline category for an assessment.
type Overall struct {
	Policy string `json:"policy"`
	Band   string `json:"band"`
	Label  string `json:"label"`
	Color  string `json:"color"`
	// Maturity is 0..100, set by the weighted policy.
	Maturity int `json:"maturity"`
	// Mean is the weighted average code (0 best, 2 worst).
	Mean float64 `json:"mean"`
	// Severity is the summed topic severity, set by the topic policy.
	Severity int `json:"severity"`
}

// SectionScore is the average code of one section's applicable questions.
type SectionScore struct {
	Section  string  `json:"section"`
	Title    string  `json:"title"`
	Weight   float64 `json:"weight"`
	Average  float64 `json:"average"`
	Counted  int     `json:"counted"`
	Answered int     `json:"answered"`
}

// Code returns the numeric value of a for question q. Unanswered takes the
// configured neutral value.
func (r *Rules) Code(q Question, a Answer) float64 {
	c := r.AnswerCodes
	yes, no := c.Yes, c.No
	if q.Polarity == PolarityNegative {
		yes, no = no, yes
	}
	switch a {
	case Yes:
		return yes
	case No:
		return no
	case Partially:
		return c.Partially
	case NotSure:
		return c.NotSure
	default:
		return c.Unanswered
	}
}

// BestCode is the most favourable code any answer can take.
func (r *Rules) BestCode() float64 {
	return math.Min(r.AnswerCodes.Yes, r.AnswerCodes.No)
}

// SectionScores averages scored questions per section. A question whose
// applies_when does not hold carries no exposure and counts at the best code,
// so answering a gating question more safely never lowers the average.
// Sections without any scored question are omitted.
func SectionScores(r *Rules, a Answers) []SectionScore {
	out := make([]SectionScore, 0, len(r.Sections))
	for _, s := range r.Sections {
		var sum float64
		score := SectionScore{Section: s.ID, Title: s.Title, Weight: s.Weight}
		for _, q := range r.Questions {
			if q.Section != s.ID || !q.Scored {
				continue
			}
			score.Counted++
			if !q.AppliesWhen.Matches(a) {
				sum += r.BestCode()
				continue
			}
			sum += r.Code(q, a.Get(q.ID))
			if a.Get(q.ID) != Unanswered {
				score.Answered++
			}
		}
		if score.Counted == 0 {
			continue
		}
		score.Average = sum / float64(score.Counted)
		out = append(out, score)
	}
	return out
}

// WeightedMean combines section averages by weight. With nothing to weigh it
// returns the neutral code.
func WeightedMean(r *Rules, sections []SectionScore) float64 {
	var num, den float64
	for _, s := range sections {
		num += s.Weight * s.Average
		den += s.Weight
	}
	if den == 0 {
		return r.AnswerCodes.Unanswered
	}
	return num / den
}

// Maturity turns a mean code into a 0..100 value, higher is better.
func (r *Rules) Maturity(mean float64) int {
	worst := math.Max(r.AnswerCodes.No, r.AnswerCodes.Yes)
	best := r.BestCode()
	if worst == best {
		return 100
	}
	m := int(math.Round(100 * (1 - (mean-best)/(worst-best))))
	if m < 0 {
		return 0
	}
	if m > 100 {
		return 100
	}
	return m
}

// BandFor returns the first band whose minimum the maturity reaches.
func (r *Rules) BandFor(maturity int) Band {
	for _, b := range r.Bands {
		if maturity >= b.Min {
			return b
		}
	}
	return r.Bands[len(r.Bands)-1]
}

// Aggregate computes the overall category with the policy the rules select.
func Aggregate(r *Rules, a Answers) Overall {
	if r.OverallPolicy == PolicyTopicSeverity {
		return aggregateSeverity(r, RateTopics(r, a))
	}
	return aggregateWeighted(r, SectionScores(r, a))
}

func aggregateWeighted(r *Rules, sections []SectionScore) Overall {
	mean := WeightedMean(r, sections)
	maturity := r.Maturity(mean)
	band := r.BandFor(maturity)
	return Overall{
		Policy:   PolicyWeightedBands,
		Band:     band.ID,
		Label:    band.Label,
		Color:    band.Color,
		Maturity: maturity,
		Mean:     math.Round(mean*1000) / 1000,
	}
}

func aggregateSeverity(r *Rules, topics []TopicRating) Overall {
	sum := 0
	for _, t := range topics {
		sum += t.Rating.Severity()
	}
	o := Overall{Policy: PolicyTopicSeverity, Severity: sum}
	switch {
	case sum >= r.SeverityThresholds.High:
		o.Band, o.Label, o.Color = "high", "High", "🔴"
	case sum >= r.SeverityThresholds.Medium:
		o.Band, o.Label, o.Color = "medium", "Medium", "🟡"
	default:
		o.Band, o.Label, o.Color = "low", "Low", "🟢"
	}
	return o
}

// Dependency is the three-factor digital dependency indicator. It is reported
// next to the overall category and never folded into it.
type Dependency struct {
	Level   string   `json:"level"`
	Label   string   `json:"label"`
	Color   string   `json:"color"`
	Points  int      `json:"points"`
	Factors []string `json:"factors"`
}

// AssessDependency counts the configured risk factors that hold.
func AssessDependency(r *Rules, a Answers) Dependency {
	d := Dependency{Factors: []string{}}
	for _, f := range r.Dependency.Factors {
		if f.Matches(a) {
			d.Points++
			d.Factors = append(d.Factors, f.ID)
		}
	}
	switch {
	case d.Points >= r.Dependency.High:
		d.Level, d.Label, d.Color = "high", "High", "🔴"
	case d.Points >= r.Dependency.Medium:
		d.Level, d.Label, d.Color = "medium", "Medium", "🟡"
	default:
		d.Level, d.Label, d.Color = "low", "Low", "🟢"
	}
	return d
}
