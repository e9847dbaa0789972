package assessment

// Report is everything derived from one answer snapshot.
type Report struct {
	RulesVersion    string         `json:"rulesVersion"`
	Topics          []TopicRating  `json:"topics"`
	Overall         Overall        `json:"overall"`
	Sections        []SectionScore `json:"sections"`
	Dependency      Dependency     `json:"dependency"`
	ContextTags     []string       `json:"contextTags"`
	Recommendations []Advice       `json:"recommendations"`
	Answered        int            `json:"answered"`
	Total           int            `json:"total"`
}

// Evaluate runs topic rating, aggregation, the dependency indicator and
// recommendation selection over the same answers.
func Evaluate(r *Rules, a Answers, p Profile) Report {
	topics := RateTopics(r, a)
	sections := SectionScores(r, a)

	var overall Overall
	if r.OverallPolicy == PolicyTopicSeverity {
		overall = aggregateSeverity(r, topics)
	} else {
		overall = aggregateWeighted(r, sections)
	}

	tags := ContextTags(a, p)
	answered := 0
	for _, q := range r.Questions {
		if a.Get(q.ID) != Unanswered {
			answered++
		}
	}

	return Report{
		RulesVersion:    r.Version,
		Topics:          topics,
		Overall:         overall,
		Sections:        sections,
		Dependency:      AssessDependency(r, a),
		ContextTags:     tags,
		Recommendations: SelectRecommendations(r, a, tags),
		Answered:        answered,
		Total:           len(r.Questions),
	}
}
