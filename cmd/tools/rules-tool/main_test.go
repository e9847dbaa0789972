package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"sme-cyber-assessment/internal/assessment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidate_BuiltIn(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, validate("", &buf))
	assert.Contains(t, buf.String(), "Rules 2025.2 are valid.")
	assert.Contains(t, buf.String(), "weighted_bands")
}

func TestValidate_Invalid(t *testing.T) {
	path := writeFile(t, "rules.yaml", "version: \"\"\nsections: []\n")
	var buf bytes.Buffer
	assert.Error(t, validate(path, &buf))
	assert.Empty(t, buf.String())
}

func TestExport_RoundTrips(t *testing.T) {
	out := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, export(out))

	var buf bytes.Buffer
	require.NoError(t, validate(out, &buf))
	assert.Contains(t, buf.String(), "are valid")
}

func TestSchema(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, schema("", &buf))

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, false, doc["additionalProperties"])
	props, ok := doc["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "df_website")
}

func TestEvaluate(t *testing.T) {
	answers := writeFile(t, "answers.json", `{
		"df_website": "🟢 Yes",
		"df_https": "No",
		"df_email": "No",
		"bp_byod": "Yes",
		"bp_sensitive": "Yes"
	}`)
	profile := writeFile(t, "profile.json", `{"personName":"Aoife","companyName":"Harbour Bakery","region":"Ireland"}`)

	var buf bytes.Buffer
	require.NoError(t, evaluate("", answers, profile, &buf))

	var report assessment.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, "high", report.Dependency.Level)
	assert.Equal(t, 5, report.Answered)
}

func TestEvaluate_RejectsUnknownQuestion(t *testing.T) {
	answers := writeFile(t, "answers.json", `{"favourite_colour": "Yes"}`)
	var buf bytes.Buffer
	assert.Error(t, evaluate("", answers, "", &buf))
}
