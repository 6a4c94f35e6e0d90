package formatters

import (
	"encoding/json"
	"strings"
	"testing"

	"resumematch/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() types.AnalysisResult {
	return types.AnalysisResult{
		ATSScore:      72.5,
		MatchedSkills: []string{"Go", "SQL"},
		MissingSkills: []string{"Kubernetes"},
		Suggestions: []types.Suggestion{
			{Title: "Trim summary", Description: "Keep it short", Priority: types.PriorityLow},
			{Title: "Add metrics", Description: "Quantify impact", Priority: types.PriorityHigh},
			{Title: "Ignored", Description: "bad priority", Priority: "urgent"},
		},
		TopCompanies: []types.CompanyMatch{
			{Company: "Acme", Position: "Backend Engineer", Location: "Remote", Score: 81, MatchedSkills: 7, TotalSkills: 9},
		},
	}
}

func TestScoreBand(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, ExcellentBand},
		{80, ExcellentBand},
		{79.9, GoodBand},
		{60, GoodBand},
		{59, LowBand},
		{0, LowBand},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ScoreBand(tt.score), "score %v", tt.score)
	}
}

func TestSkillCounts(t *testing.T) {
	result := sampleResult()
	matched, missing := SkillCounts(&result)
	assert.Equal(t, 2, matched)
	assert.Equal(t, 1, missing)

	matched, missing = SkillCounts(nil)
	assert.Zero(t, matched)
	assert.Zero(t, missing)
}

func TestTextFormatter(t *testing.T) {
	out, err := GlobalRegistry.Format(sampleResult(), "text")
	require.NoError(t, err)

	assert.Contains(t, out, "Score: 72.5/100")
	assert.Contains(t, out, GoodBand)
	assert.Contains(t, out, "=== MATCHED SKILLS (2) ===")
	assert.Contains(t, out, "=== MISSING SKILLS (1) ===")
	assert.Contains(t, out, "1. Acme - Backend Engineer (Remote)")
	assert.Contains(t, out, "Match: 81%, skills 7/9")
	assert.NotContains(t, out, "Ignored")

	assert.Less(t, strings.Index(out, "[HIGH] Add metrics"), strings.Index(out, "[LOW] Trim summary"),
		"suggestions are ordered by priority")
}

func TestMarkdownFormatter(t *testing.T) {
	result := sampleResult()
	out, err := GlobalRegistry.Format(&result, "markdown")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "# ATS Analysis"))
	assert.Contains(t, out, "**ATS Score:** 72.5/100")
	assert.Contains(t, out, "### High priority")
	assert.Contains(t, out, "### Low priority")
	assert.NotContains(t, out, "### Medium priority")
	assert.Contains(t, out, "| Acme | Backend Engineer | Remote | 81% | 7/9 |")
}

func TestJSONFormatterKeepsWireNames(t *testing.T) {
	out, err := GlobalRegistry.Format(sampleResult(), "json")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, 72.5, decoded["atsScore"])
	assert.Contains(t, decoded, "topCompanies")
}

func TestRegistry(t *testing.T) {
	_, err := GlobalRegistry.Format(sampleResult(), "yaml")
	assert.Error(t, err)

	_, err = GlobalRegistry.Format("plain string", "text")
	assert.Error(t, err, "text has no generic formatter")

	var nilResult *types.AnalysisResult
	_, err = GlobalRegistry.Format(nilResult, "markdown")
	assert.Error(t, err)

	assert.Equal(t, []string{"json", "markdown", "text"}, GlobalRegistry.GetSupportedFormats())
}
