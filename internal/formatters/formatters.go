package formatters

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"resumematch/internal/types"
)

// Score band thresholds and texts shown with every rendered result
const (
	ExcellentThreshold = 80
	GoodThreshold      = 60

	ExcellentBand = "Excellent match! Your resume is well-optimized for this position."
	GoodBand      = "Good match with room for improvement. Review the suggestions below."
	LowBand       = "Consider updating your resume to better match this role."
)

// ScoreBand returns the guidance text for an ATS score
func ScoreBand(score float64) string {
	switch {
	case score >= ExcellentThreshold:
		return ExcellentBand
	case score >= GoodThreshold:
		return GoodBand
	default:
		return LowBand
	}
}

// SkillCounts returns the number of matched and missing skills
func SkillCounts(result *types.AnalysisResult) (matched, missing int) {
	if result == nil {
		return 0, 0
	}
	return len(result.MatchedSkills), len(result.MissingSkills)
}

// Formatter renders data in one output format
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", analysisType, &AnalysisTextFormatter{})
	registry.RegisterFormatter("markdown", analysisType, &AnalysisMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the most specific formatter registered for format
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	slices.Sort(formats)
	return formats
}

const analysisType = "AnalysisResult"

func getDataType(data any) string {
	switch data.(type) {
	case types.AnalysisResult, *types.AnalysisResult:
		return analysisType
	default:
		return "any"
	}
}

func asAnalysis(data any) (*types.AnalysisResult, error) {
	switch v := data.(type) {
	case types.AnalysisResult:
		return &v, nil
	case *types.AnalysisResult:
		if v == nil {
			return nil, fmt.Errorf("nil AnalysisResult")
		}
		return v, nil
	default:
		return nil, fmt.Errorf("expected AnalysisResult, got %T", data)
	}
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// suggestionsByPriority groups suggestions in high, medium, low order.
// Unknown priorities are dropped.
func suggestionsByPriority(suggestions []types.Suggestion) map[types.Priority][]types.Suggestion {
	grouped := make(map[types.Priority][]types.Suggestion)
	for _, s := range suggestions {
		if s.Priority.Valid() {
			grouped[s.Priority] = append(grouped[s.Priority], s)
		}
	}
	return grouped
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// AnalysisTextFormatter renders an analysis for a terminal
type AnalysisTextFormatter struct{}

func (atf *AnalysisTextFormatter) Format(data any) (string, error) {
	result, err := asAnalysis(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	matched, missing := SkillCounts(result)

	output.WriteString("=== ATS SCORE ===\n")
	fmt.Fprintf(&output, "Score: %s/100\n", number(result.ATSScore))
	output.WriteString(ScoreBand(result.ATSScore))
	output.WriteString("\n\n")

	fmt.Fprintf(&output, "=== MATCHED SKILLS (%d) ===\n", matched)
	for _, skill := range result.MatchedSkills {
		fmt.Fprintf(&output, "  + %s\n", skill)
	}
	output.WriteString("\n")

	fmt.Fprintf(&output, "=== MISSING SKILLS (%d) ===\n", missing)
	for _, skill := range result.MissingSkills {
		fmt.Fprintf(&output, "  - %s\n", skill)
	}
	output.WriteString("\n")

	if len(result.Suggestions) > 0 {
		output.WriteString("=== SUGGESTIONS ===\n")
		grouped := suggestionsByPriority(result.Suggestions)
		for _, priority := range types.Priorities {
			for _, s := range grouped[priority] {
				fmt.Fprintf(&output, "[%s] %s\n    %s\n", strings.ToUpper(string(priority)), s.Title, s.Description)
			}
		}
		output.WriteString("\n")
	}

	if len(result.TopCompanies) > 0 {
		output.WriteString("=== TOP COMPANIES ===\n")
		for i, c := range result.TopCompanies {
			fmt.Fprintf(&output, "%d. %s - %s (%s)\n", i+1, c.Company, c.Position, c.Location)
			fmt.Fprintf(&output, "   Match: %s%%, skills %s/%s\n", number(c.Score), number(c.MatchedSkills), number(c.TotalSkills))
		}
	}

	return output.String(), nil
}

func (atf *AnalysisTextFormatter) SupportedType() string {
	return analysisType
}

// AnalysisMarkdownFormatter renders an analysis as a markdown report
type AnalysisMarkdownFormatter struct{}

func (amf *AnalysisMarkdownFormatter) Format(data any) (string, error) {
	result, err := asAnalysis(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	matched, missing := SkillCounts(result)

	output.WriteString("# ATS Analysis\n\n")
	fmt.Fprintf(&output, "**ATS Score:** %s/100\n\n", number(result.ATSScore))
	fmt.Fprintf(&output, "> %s\n\n", ScoreBand(result.ATSScore))

	fmt.Fprintf(&output, "## Matched Skills (%d)\n\n", matched)
	for _, skill := range result.MatchedSkills {
		fmt.Fprintf(&output, "- %s\n", skill)
	}
	output.WriteString("\n")

	fmt.Fprintf(&output, "## Missing Skills (%d)\n\n", missing)
	for _, skill := range result.MissingSkills {
		fmt.Fprintf(&output, "- %s\n", skill)
	}
	output.WriteString("\n")

	if len(result.Suggestions) > 0 {
		output.WriteString("## Suggestions\n\n")
		grouped := suggestionsByPriority(result.Suggestions)
		for _, priority := range types.Priorities {
			if len(grouped[priority]) == 0 {
				continue
			}
			fmt.Fprintf(&output, "### %s priority\n\n", strings.ToUpper(string(priority[:1]))+string(priority[1:]))
			for _, s := range grouped[priority] {
				fmt.Fprintf(&output, "- **%s**: %s\n", s.Title, s.Description)
			}
			output.WriteString("\n")
		}
	}

	if len(result.TopCompanies) > 0 {
		output.WriteString("## Top Companies\n\n")
		output.WriteString("| Company | Position | Location | Match | Skills |\n")
		output.WriteString("|---|---|---|---|---|\n")
		for _, c := range result.TopCompanies {
			fmt.Fprintf(&output, "| %s | %s | %s | %s%% | %s/%s |\n",
				c.Company, c.Position, c.Location, number(c.Score), number(c.MatchedSkills), number(c.TotalSkills))
		}
	}

	return output.String(), nil
}

func (amf *AnalysisMarkdownFormatter) SupportedType() string {
	return analysisType
}

// Global formatter registry
var GlobalRegistry = NewFormatterRegistry()
