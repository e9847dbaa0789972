package session

import (
	"testing"
	"time"

	"sme-cyber-assessment/internal/assessment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRules(t *testing.T) *assessment.Rules {
	t.Helper()
	r, err := assessment.Default()
	require.NoError(t, err)
	return r
}

func TestSession_SetAnswer(t *testing.T) {
	r := mustRules(t)
	s := newSession("id-1", r.Version, assessment.DefaultProfile(), time.Now())

	require.NoError(t, s.SetAnswer(r, "bp_inventory", assessment.Partially))
	assert.Equal(t, assessment.Partially, s.Answers.Get("bp_inventory"))

	err := s.SetAnswer(r, "bp_laptops", assessment.Yes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown question")

	err = s.SetAnswer(r, "bp_sensitive", assessment.Partially)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an option")

	require.NoError(t, s.SetAnswer(r, "bp_inventory", assessment.Unanswered))
	_, present := s.Answers["bp_inventory"]
	assert.False(t, present)
}

func TestSession_SetAnswersIsAllOrNothing(t *testing.T) {
	r := mustRules(t)
	s := newSession("id-1", r.Version, assessment.DefaultProfile(), time.Now())

	err := s.SetAnswers(r, assessment.Answers{
		"bp_inventory": assessment.Yes,
		"df_unknown":   assessment.No,
	})
	require.Error(t, err)
	assert.Empty(t, s.Answers)

	require.NoError(t, s.SetAnswers(r, assessment.Answers{
		"bp_inventory": assessment.Yes,
		"df_website":   assessment.No,
	}))
	assert.Len(t, s.Answers, 2)
}

func TestSession_UpdateProfile(t *testing.T) {
	s := newSession("id-1", "2025.1", assessment.DefaultProfile(), time.Now())

	p := assessment.DefaultProfile()
	p.PersonName = "Aoife"
	p.CompanyName = "Harbour Bakery"
	require.NoError(t, s.UpdateProfile(p))
	assert.True(t, s.Profile.Complete())

	bad := p
	bad.EmployeeRange = "a few"
	assert.Error(t, s.UpdateProfile(bad))
	assert.Equal(t, p, s.Profile)
}

func TestSession_ResetKeepsID(t *testing.T) {
	r := mustRules(t)
	s := newSession("id-1", r.Version, assessment.DefaultProfile(), time.Now())
	s.Profile.CompanyName = "Harbour Bakery"
	require.NoError(t, s.SetAnswer(r, "df_email", assessment.No))
	now := time.Now()
	s.SubmittedAt = &now
	s.Email = "owner@bakery.ie"

	s.Reset()

	assert.Equal(t, "id-1", s.ID)
	assert.Equal(t, assessment.DefaultProfile(), s.Profile)
	assert.Empty(t, s.Answers)
	assert.Empty(t, s.Email)
	assert.False(t, s.Submitted())
}

func TestSession_SnapshotIsACopy(t *testing.T) {
	r := mustRules(t)
	s := newSession("id-1", r.Version, assessment.DefaultProfile(), time.Now())
	require.NoError(t, s.SetAnswer(r, "df_email", assessment.Yes))

	snap := s.Snapshot()
	snap["df_email"] = assessment.No

	assert.Equal(t, assessment.Yes, s.Answers.Get("df_email"))
}
