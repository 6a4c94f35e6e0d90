package ai

import (
	"bytes"
	"encoding/json"
	"testing"

	"resumematch/internal/config"
	"resumematch/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequestAcceptsWhitespace(t *testing.T) {
	assert.NoError(t, ValidateRequest(types.AnalysisRequest{Resume: " ", JobDescription: "\n", CompanyName: "\t"}))
	assert.Error(t, ValidateRequest(types.AnalysisRequest{Resume: "r", JobDescription: "jd"}))
}

func TestExtractToolArgumentsUsesFirstCall(t *testing.T) {
	body := `{"choices":[{"message":{"tool_calls":[
		{"function":{"name":"analyze_resume","arguments":"{\"atsScore\":1}"}},
		{"function":{"name":"analyze_resume","arguments":"{\"atsScore\":2}"}}
	]}}]}`

	args, usage, err := ExtractToolArguments([]byte(body))
	require.NoError(t, err)
	assert.Nil(t, usage)
	assert.JSONEq(t, `{"atsScore":1}`, string(args))
}

func TestDecodeAnalysisStrict(t *testing.T) {
	result, err := DecodeAnalysis([]byte("  "+validArgs+"\n"), true)
	require.NoError(t, err)
	require.Len(t, result.Suggestions, 1)
	assert.Equal(t, types.PriorityHigh, result.Suggestions[0].Priority)
	require.Len(t, result.TopCompanies, 1)
	assert.Equal(t, 7.0, result.TopCompanies[0].MatchedSkills)

	var extra map[string]any
	require.NoError(t, json.Unmarshal([]byte(validArgs), &extra))
	extra["confidence"] = 0.9
	raw, err := json.Marshal(extra)
	require.NoError(t, err)
	_, err = DecodeAnalysis(raw, true)
	assert.Error(t, err)
}

func TestSchemaValidate(t *testing.T) {
	decode := func(s string) any {
		dec := json.NewDecoder(bytes.NewReader([]byte(s)))
		dec.UseNumber()
		var v any
		require.NoError(t, dec.Decode(&v))
		return v
	}

	schema := AnalysisSchema()
	assert.NoError(t, schema.Validate(decode(validArgs)))

	bad := []string{
		`[]`,
		`{"atsScore":50,"matchedSkills":[],"missingSkills":[],"suggestions":[]}`,
		`{"atsScore":50,"matchedSkills":[1],"missingSkills":[],"suggestions":[],"topCompanies":[]}`,
		`{"atsScore":50,"matchedSkills":[],"missingSkills":[],"suggestions":[{"title":"t","description":"d","priority":"urgent"}],"topCompanies":[]}`,
		`{"atsScore":50,"matchedSkills":[],"missingSkills":[],"suggestions":[],"topCompanies":[{"company":"A"}]}`,
	}
	for _, s := range bad {
		assert.Error(t, schema.Validate(decode(s)), s)
	}
}

func TestGenaiSchemaMirrorsJSONSchema(t *testing.T) {
	gs := AnalysisSchema().GenaiSchema()
	require.NotNil(t, gs)
	assert.ElementsMatch(t, AnalysisSchema().Required, gs.Required)
	require.Contains(t, gs.Properties, "suggestions")
	require.NotNil(t, gs.Properties["suggestions"].Items)
	assert.Equal(t, []string{"high", "medium", "low"}, gs.Properties["suggestions"].Items.Properties["priority"].Enum)

	var nilSchema *JSONSchema
	assert.Nil(t, nilSchema.GenaiSchema())
}

func TestPromptStore(t *testing.T) {
	store := NewPromptStore(config.LoadedPrompts{}, true)
	assert.Equal(t, DefaultSystemPrompt, store.System())
	assert.Equal(t, map[string]string{"system": config.PromptSourceDefault, "user": config.PromptSourceDefault}, store.Sources())

	// inputs containing placeholders are not expanded a second time
	rendered := store.RenderUser(types.AnalysisRequest{
		Resume:         "I wrote {jobDescription} once",
		JobDescription: "JD",
		CompanyName:    "Acme",
	})
	assert.Contains(t, rendered, "I wrote {jobDescription} once")
	assert.Contains(t, rendered, "for Acme.")

	assert.True(t, store.Update("user", "Company={companyName}", config.PromptSourceFile))
	assert.False(t, store.Update("user", "", config.PromptSourceFile))
	assert.False(t, store.Update("assistant", "x", config.PromptSourceFile))
	assert.Equal(t, "Company=Acme", store.RenderUser(types.AnalysisRequest{CompanyName: "Acme"}))
	assert.Equal(t, config.PromptSourceFile, store.Sources()["user"])

	disabled := NewPromptStore(config.LoadedPrompts{System: "custom", SystemSource: config.PromptSourceConfig}, false)
	assert.Empty(t, disabled.System())
	assert.Equal(t, config.PromptSourceConfig, disabled.Sources()["system"])
}
