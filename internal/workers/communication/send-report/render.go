// internal/workers/communication/send-report/render.go
package sendreport

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode"

	"sme-cyber-assessment/internal/assessment"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxSubjectLen is one below the SNS limit of 100 characters.
const maxSubjectLen = 99

var placeholder = regexp.MustCompile(`\{\{(\w+)\}\}`)

const textTemplate = `Hello {{personName}},

Thank you for completing the cybersecurity self-assessment for {{companyName}}.

Overall result: {{overallColor}} {{overallLabel}} (maturity {{maturity}}/100)
Digital dependency: {{dependencyColor}} {{dependencyLabel}}

Topic ratings
{{topics}}
Recommended next steps
{{recommendations}}
Report reference: {{reportId}} (rules {{rulesVersion}})
`

const htmlTemplate = `<html><body>
<p>Hello {{personName}},</p>
<p>Thank you for completing the cybersecurity self-assessment for <strong>{{companyName}}</strong>.</p>
<p>Overall result: {{overallColor}} <strong>{{overallLabel}}</strong> (maturity {{maturity}}/100)<br>
Digital dependency: {{dependencyColor}} {{dependencyLabel}}</p>
<h3>Topic ratings</h3>
<ul>{{topics}}</ul>
<h3>Recommended next steps</h3>
<ol>{{recommendations}}</ol>
<p><small>Report reference: {{reportId}} (rules {{rulesVersion}})</small></p>
</body></html>`

// renderTemplate substitutes {{key}} placeholders in one pass over tmpl.
// Unknown keys render empty; substituted values are never rescanned.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		switch t := data[m[2:len(m)-2]].(type) {
		case string:
			return t
		case int:
			return fmt.Sprintf("%d", t)
		case nil:
			return ""
		default:
			return fmt.Sprintf("%v", t)
		}
	})
}

// snsSubject folds s to printable ASCII and cuts it to the SNS subject limit.
// Accented letters keep their base letter ("Café" becomes "Cafe").
func snsSubject(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn))), s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range folded {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case r >= 0x20 && r <= 0x7e:
			b.WriteRune(r)
		}
	}
	out := strings.Join(strings.Fields(b.String()), " ")
	if len(out) > maxSubjectLen {
		out = strings.TrimSpace(out[:maxSubjectLen])
	}
	return out
}

func reportFields(input *Input, escape func(string) string) map[string]interface{} {
	return map[string]interface{}{
		"personName":      escape(assessment.Display(input.Profile.PersonName)),
		"companyName":     escape(assessment.Display(input.Profile.CompanyName)),
		"overallColor":    input.Overall.Color,
		"overallLabel":    escape(input.Overall.Label),
		"maturity":        input.Overall.Maturity,
		"dependencyColor": input.Dependency.Color,
		"dependencyLabel": escape(input.Dependency.Label),
		"reportId":        escape(assessment.Display(input.ReportID)),
		"rulesVersion":    escape(input.RulesVersion),
	}
}

// renderReport returns the subject, plain text and HTML bodies.
func renderReport(subjectTmpl string, input *Input) (string, string, string) {
	plain := func(s string) string { return s }

	textData := reportFields(input, plain)
	var topics, recs strings.Builder
	for _, r := range input.Ratings {
		topics.WriteString(fmt.Sprintf("  %s %s: %s\n", r.Color, r.Title, r.Label))
	}
	if len(input.Recommendations) == 0 {
		recs.WriteString("  Nothing urgent. Review your answers again in six months.\n")
	}
	for i, a := range input.Recommendations {
		recs.WriteString(fmt.Sprintf("  %d. %s\n     %s\n", i+1, a.Title, a.Text))
	}
	textData["topics"] = topics.String()
	textData["recommendations"] = recs.String()

	htmlData := reportFields(input, html.EscapeString)
	topics.Reset()
	recs.Reset()
	for _, r := range input.Ratings {
		topics.WriteString(fmt.Sprintf("<li>%s %s: %s</li>", r.Color, html.EscapeString(r.Title), html.EscapeString(r.Label)))
	}
	if len(input.Recommendations) == 0 {
		recs.WriteString("<li>Nothing urgent. Review your answers again in six months.</li>")
	}
	for _, a := range input.Recommendations {
		recs.WriteString(fmt.Sprintf("<li><strong>%s</strong><br>%s</li>", html.EscapeString(a.Title), html.EscapeString(a.Text)))
	}
	htmlData["topics"] = topics.String()
	htmlData["recommendations"] = recs.String()

	subject := renderTemplate(subjectTmpl, textData)
	return subject, renderTemplate(textTemplate, textData), renderTemplate(htmlTemplate, htmlData)
}
