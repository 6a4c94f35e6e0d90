package types

import "slices"

// AnalysisRequest represents the input for analyzing a resume against a job description
type AnalysisRequest struct {
	Resume         string `json:"resume"`
	JobDescription string `json:"jobDescription"`
	CompanyName    string `json:"companyName"`
}

// Priority is the urgency of an improvement suggestion
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Priorities lists the accepted priority values in display order
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// Valid reports whether p is one of the accepted priority values
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Suggestion represents a prioritized resume improvement
type Suggestion struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
}

// CompanyMatch represents a company where the resume might be a good fit
type CompanyMatch struct {
	Company       string  `json:"company"`
	Position      string  `json:"position"`
	Location      string  `json:"location"`
	Score         float64 `json:"score"`
	MatchedSkills float64 `json:"matchedSkills"`
	TotalSkills   float64 `json:"totalSkills"`
}

// AnalysisResult represents the structured analysis returned by the AI provider
type AnalysisResult struct {
	ATSScore      float64        `json:"atsScore"` // 0-100 by contract, not enforced
	MatchedSkills []string       `json:"matchedSkills"`
	MissingSkills []string       `json:"missingSkills"`
	Suggestions   []Suggestion   `json:"suggestions"`
	TopCompanies  []CompanyMatch `json:"topCompanies"`
}

// Clone returns a deep copy of the result
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	out := *r
	out.MatchedSkills = slices.Clone(r.MatchedSkills)
	out.MissingSkills = slices.Clone(r.MissingSkills)
	out.Suggestions = slices.Clone(r.Suggestions)
	out.TopCompanies = slices.Clone(r.TopCompanies)
	return &out
}

// ErrorResponse is the JSON envelope for every non-2xx bridge response
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// TokenUsage records upstream token consumption for a single call
type TokenUsage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}
