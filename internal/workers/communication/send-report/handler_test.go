package sendreport

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"sme-cyber-assessment/internal/assessment"
	"sme-cyber-assessment/internal/common/config"
	apperrors "sme-cyber-assessment/internal/common/errors"
	"sme-cyber-assessment/internal/common/logger"
	"sme-cyber-assessment/internal/common/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mocks
// ==========================

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, to, subject, text, html string) (string, error) {
	args := m.Called(ctx, to, subject, text, html)
	return args.String(0), args.Error(1)
}

func (m *mockSender) Provider() string {
	return "SES"
}

type mockAlerts struct {
	mock.Mock
}

func (m *mockAlerts) PublishAlert(ctx context.Context, subject, message string, attrs map[string]string) (string, error) {
	args := m.Called(ctx, subject, message, attrs)
	return args.String(0), args.Error(1)
}

// ==========================
// Helpers
// ==========================

func createTestHandler(t *testing.T, sender Sender, alerts AlertPublisher) *Handler {
	t.Helper()
	cfg := NewConfig(config.WorkerConfig{Enabled: true, Timeout: 5000}, true)
	h := NewHandler(cfg, sender, alerts, observability.Noop(), logger.NewTestLogger(t))
	h.now = func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) }
	return h
}

func createTestInput() *Input {
	p := assessment.DefaultProfile()
	p.PersonName = "Aoife"
	p.CompanyName = "Harbour <Bakery>"
	p.Sector = "Food retail"
	p.Region = "Ireland"
	return &Input{
		Email:        "owner@bakery.ie",
		SessionID:    "4b1e5c36-5d6f-4b8f-9a53-8f0e8c1d1b11",
		ReportID:     "9d2b4f0e-1111-4c2a-8e55-0a6a0c1f2e33",
		RulesVersion: "2025.1",
		Profile:      p,
		Overall:      assessment.Overall{Band: "low", Label: "Low", Color: "🟠", Maturity: 30},
		Ratings: []assessment.TopicRating{
			{Topic: "systems", Title: "Systems & devices", Rating: assessment.AtRisk, Label: "At risk", Color: "🔴"},
		},
		Dependency: assessment.Dependency{Level: "low", Label: "Low", Color: "🟢"},
		Recommendations: []assessment.Advice{
			{ID: "enable-https", Title: "Turn on HTTPS for your website", Text: "Ask your web host."},
		},
	}
}

// ==========================
// Execute
// ==========================

func TestExecute_SendsReport(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything, "owner@bakery.ie",
		"Your cybersecurity self-assessment: Harbour <Bakery>",
		mock.MatchedBy(func(text string) bool {
			return strings.Contains(text, "Hello Aoife") &&
				strings.Contains(text, "🟠 Low (maturity 30/100)") &&
				strings.Contains(text, "1. Turn on HTTPS for your website") &&
				!strings.Contains(text, "{{")
		}),
		mock.MatchedBy(func(html string) bool {
			return strings.Contains(html, "Harbour &lt;Bakery&gt;") && !strings.Contains(html, "<Bakery>")
		}),
	).Return("ses-msg-1", nil)

	h := createTestHandler(t, sender, new(mockAlerts))
	out, err := h.Execute(context.Background(), createTestInput())

	require.NoError(t, err)
	assert.Equal(t, StatusSent, out.EmailStatus)
	assert.Equal(t, "ses-msg-1", out.MessageID)
	assert.Equal(t, "SES", out.Provider)
	assert.Equal(t, StatusSkipped, out.AlertStatus)
	assert.Equal(t, "2025-03-14T09:30:00Z", out.SentAt)
	sender.AssertExpectations(t)
}

func TestExecute_NoEmailIsSkipped(t *testing.T) {
	sender := new(mockSender)
	h := createTestHandler(t, sender, nil)

	input := createTestInput()
	input.Email = "  "
	out, err := h.Execute(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, out.EmailStatus)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExecute_InvalidEmail(t *testing.T) {
	h := createTestHandler(t, new(mockSender), nil)

	input := createTestInput()
	input.Email = "owner@bakery"
	_, err := h.Execute(context.Background(), input)

	require.Error(t, err)
	std := apperrors.AsStandard(err)
	assert.Equal(t, apperrors.ErrCodeInvalidEmail, std.Code)
	assert.Equal(t, 0, apperrors.ConvertToBPMNError(std).Retries)
}

func TestExecute_TransportFailureIsRetryable(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("throttling: maximum sending rate exceeded"))
	h := createTestHandler(t, sender, nil)

	_, err := h.Execute(context.Background(), createTestInput())

	require.Error(t, err)
	std := apperrors.AsStandard(err)
	assert.Equal(t, apperrors.ErrCodeEmailSendFailed, std.Code)
	assert.True(t, std.Retryable)
}

func TestExecute_HighDependencyAlert(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("ses-msg-2", nil)
	alerts := new(mockAlerts)
	alerts.On("PublishAlert", mock.Anything, "High digital dependency: Harbour <Bakery>",
		mock.MatchedBy(func(msg string) bool { return strings.Contains(msg, "web, email, data") }),
		map[string]string{"dependency": "high", "overallBand": "low", "region": "Ireland"},
	).Return("alert-1", nil)

	h := createTestHandler(t, sender, alerts)
	input := createTestInput()
	input.Dependency = assessment.Dependency{Level: "high", Label: "High", Color: "🔴", Points: 3, Factors: []string{"web", "email", "data"}}

	out, err := h.Execute(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, StatusPublished, out.AlertStatus)
	assert.Equal(t, "alert-1", out.AlertMessageID)
	alerts.AssertExpectations(t)
}

func TestExecute_AlertFailureStopsBeforeEmail(t *testing.T) {
	sender := new(mockSender)
	alerts := new(mockAlerts)
	alerts.On("PublishAlert", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("sns unavailable"))

	h := createTestHandler(t, sender, alerts)
	input := createTestInput()
	input.Dependency.Level = "high"

	_, err := h.Execute(context.Background(), input)

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAlertFailed))
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExecute_AlertSubjectIsSNSSafe(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("id", nil)
	alerts := new(mockAlerts)
	alerts.On("PublishAlert", mock.Anything, "High digital dependency: Cafe Muller", mock.Anything, mock.Anything).
		Return("alert-2", nil)

	h := createTestHandler(t, sender, alerts)
	input := createTestInput()
	input.Profile.CompanyName = "Café Müller"
	input.Dependency.Level = "high"

	_, err := h.Execute(context.Background(), input)

	require.NoError(t, err)
	alerts.AssertExpectations(t)
}

func TestSNSSubject(t *testing.T) {
	long := snsSubject("High digital dependency: " + strings.Repeat("a", 70) + "é Müller")
	assert.Len(t, long, 99)
	assert.True(t, utf8.ValidString(long))
	for _, r := range long {
		assert.True(t, r >= 0x20 && r <= 0x7e, "rune %q", r)
	}
	assert.True(t, strings.HasSuffix(long, "aaae Mu"), long)

	assert.Equal(t, "Line one line two", snsSubject("Line one\nline two"))
	assert.Equal(t, "Zurich Bakery", snsSubject("Zürich 🥐 Bakery"))
}

func TestExecute_AlertsDisabled(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("id", nil)
	alerts := new(mockAlerts)

	h := createTestHandler(t, sender, alerts)
	h.config.AlertsEnabled = false
	input := createTestInput()
	input.Dependency.Level = "high"

	out, err := h.Execute(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, out.AlertStatus)
	alerts.AssertNotCalled(t, "PublishAlert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// ==========================
// Rendering and SMTP
// ==========================

func TestRenderTemplate(t *testing.T) {
	out := renderTemplate("Hi {{name}}, score {{score}}{{missing}}!", map[string]interface{}{
		"name":  "Aoife",
		"score": 72,
	})
	assert.Equal(t, "Hi Aoife, score 72!", out)
}

func TestRenderTemplate_ValuesAreNotExpanded(t *testing.T) {
	data := map[string]interface{}{
		"companyName": "Harbour {{reportId}} Bakery",
		"reportId":    "9d2b4f0e",
		"note":        "{{unknown}} stays",
	}
	for i := 0; i < 20; i++ {
		out := renderTemplate("{{companyName}} / {{reportId}} / {{note}}", data)
		assert.Equal(t, "Harbour {{reportId}} Bakery / 9d2b4f0e / {{unknown}} stays", out)
	}
}

func TestRenderReport_BracesInCompanyName(t *testing.T) {
	input := createTestInput()
	input.Profile.CompanyName = "Harbour {{reportId}} Bakery"

	subject, text, html := renderReport("Your cybersecurity self-assessment: {{companyName}}", input)

	assert.Equal(t, "Your cybersecurity self-assessment: Harbour {{reportId}} Bakery", subject)
	assert.Contains(t, text, "for Harbour {{reportId}} Bakery.")
	assert.Contains(t, html, "<strong>Harbour {{reportId}} Bakery</strong>")
	assert.Contains(t, text, "Report reference: 9d2b4f0e-1111-4c2a-8e55-0a6a0c1f2e33")
}

func TestRenderReport_NoRecommendations(t *testing.T) {
	input := createTestInput()
	input.Recommendations = nil
	input.Profile.PersonName = ""

	_, text, html := renderReport("s", input)

	assert.Contains(t, text, "Hello —")
	assert.Contains(t, text, "Nothing urgent")
	assert.Contains(t, html, "Nothing urgent")
}

func TestSMTPConfig_Validate(t *testing.T) {
	assert.Error(t, SMTPConfig{}.Validate())
	assert.Error(t, SMTPConfig{Host: "smtp.example.com", Port: 70000, DefaultFrom: "a@b.io"}.Validate())
	assert.NoError(t, SMTPConfig{Host: "smtp.example.com", Port: 587, DefaultFrom: "a@b.io"}.Validate())
}

func TestSMTPSender_Send(t *testing.T) {
	sender, err := NewSMTPSender(SMTPConfig{
		Host:        "smtp.example.com",
		Port:        2525,
		Username:    "mailer",
		Password:    "secret",
		DefaultFrom: "reports@example.com",
	})
	require.NoError(t, err)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	sender.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.NotNil(t, auth)
		return nil
	}

	id, err := sender.Send(context.Background(), "owner@bakery.ie", "Your report", "plain body", "<p>html body</p>")

	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(id, "@smtp.example.com>"))
	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.Equal(t, "reports@example.com", gotFrom)
	assert.Equal(t, []string{"owner@bakery.ie"}, gotTo)

	msg := string(gotMsg)
	assert.Contains(t, msg, "To: owner@bakery.ie\r\n")
	assert.Contains(t, msg, "Message-ID: "+id)
	assert.Contains(t, msg, "multipart/alternative")
	assert.Contains(t, msg, "plain body")
	assert.Contains(t, msg, "<p>html body</p>")
	assert.Equal(t, "SMTP", sender.Provider())
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	sender, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 25, DefaultFrom: "a@b.io"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sender.Send(ctx, "owner@bakery.ie", "s", "t", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildMessage_PlainText(t *testing.T) {
	msg := buildMessage("a@b.io", "c@d.io", "Ærlig talt", "<id@x>", "body", "")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\nbody")
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
	assert.NotContains(t, msg, "multipart")
}
