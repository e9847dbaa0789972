// Package assessment holds the decision logic of the self-assessment: answer
// normalization, topic rating tables, overall aggregation and recommendation
// selection. Everything here is pure; callers pass answers and profile in.
package assessment

import (
	"strings"
	"unicode"
)

// Answer is the canonical value of a questionnaire answer.
type Answer string

const (
	Unanswered Answer = ""
	Yes        Answer = "yes"
	Partially  Answer = "partially"
	No         Answer = "no"
	NotSure    Answer = "not sure"
)

// AllAnswers lists every value an Answer can take, unanswered last.
var AllAnswers = []Answer{Yes, Partially, No, NotSure, Unanswered}

var answerAliases = map[string]Answer{
	"yes":        Yes,
	"y":          Yes,
	"true":       Yes,
	"partially":  Partially,
	"partial":    Partially,
	"sometimes":  Partially,
	"no":         No,
	"n":          No,
	"false":      No,
	"not sure":   NotSure,
	"unsure":     NotSure,
	"dont know":  NotSure,
	"don't know": NotSure,
	"unknown":    NotSure,
}

// Normalize maps a loosely typed answer ("🟢 Yes", " NOT_SURE ", "Sometimes")
// to its canonical value. Anything unrecognised is Unanswered.
func Normalize(raw string) Answer {
	s := strings.TrimFunc(raw, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if s == "" {
		return Unanswered
	}
	s = strings.ToLower(s)
	s = strings.NewReplacer("_", " ", "-", " ", "’", "'").Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	if a, ok := answerAliases[s]; ok {
		return a
	}
	return Unanswered
}

// Valid reports whether a is one of the canonical values.
func (a Answer) Valid() bool {
	switch a {
	case Yes, Partially, No, NotSure, Unanswered:
		return true
	}
	return false
}

// Label is the display form used in reports.
func (a Answer) Label() string {
	switch a {
	case Yes:
		return "Yes"
	case Partially:
		return "Partially"
	case No:
		return "No"
	case NotSure:
		return "Not sure"
	default:
		return "—"
	}
}

// Answers maps question ids to their current answer. A missing key is Unanswered.
type Answers map[string]Answer

// Get returns the answer for id, Unanswered when absent.
func (a Answers) Get(id string) Answer {
	if a == nil {
		return Unanswered
	}
	return a[id]
}

// Clone returns an independent copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// NormalizeAll converts a raw id->string map into Answers.
func NormalizeAll(raw map[string]string) Answers {
	out := make(Answers, len(raw))
	for id, v := range raw {
		out[id] = Normalize(v)
	}
	return out
}

// Strings is the inverse of NormalizeAll, used for job variables and storage.
func (a Answers) Strings() map[string]string {
	out := make(map[string]string, len(a))
	for id, v := range a {
		out[id] = string(v)
	}
	return out
}
