package ai

import (
	"strings"
	"sync"

	"resumematch/internal/config"
	"resumematch/internal/types"
)

// DefaultSystemPrompt instructs the model to act as an ATS analyzer and career coach
const DefaultSystemPrompt = `You are an expert ATS (Applicant Tracking System) analyzer and career coach. Your job is to analyze resumes against job descriptions and provide detailed, actionable feedback.

When analyzing a resume against a job description, you must:
1. Calculate an ATS score (0-100) based on keyword matching, skills alignment, and experience relevance
2. Identify matched skills that appear in both the resume and job description
3. Identify missing skills that are in the job description but not in the resume
4. Provide 3-5 prioritized improvement suggestions
5. Suggest 5 similar companies where this resume might be a good fit

Be specific, actionable, and encouraging. Focus on practical improvements.`

// DefaultUserPrompt embeds the raw inputs verbatim.
// Placeholders: {companyName}, {resume}, {jobDescription}.
const DefaultUserPrompt = `Analyze this resume against the job description for {companyName}.

RESUME:
{resume}

JOB DESCRIPTION:
{jobDescription}

Provide your analysis using the ` + ToolName + ` function.`

// PromptStore holds the active prompts and allows them to be swapped at runtime
type PromptStore struct {
	mu               sync.RWMutex
	system           string
	systemSource     string
	user             string
	userSource       string
	useSystemPrompts bool
}

// NewPromptStore builds a store from loaded prompts, falling back to the defaults
func NewPromptStore(loaded config.LoadedPrompts, useSystemPrompts bool) *PromptStore {
	s := &PromptStore{
		system:           DefaultSystemPrompt,
		systemSource:     config.PromptSourceDefault,
		user:             DefaultUserPrompt,
		userSource:       config.PromptSourceDefault,
		useSystemPrompts: useSystemPrompts,
	}
	if loaded.System != "" {
		s.system, s.systemSource = loaded.System, loaded.SystemSource
	}
	if loaded.User != "" {
		s.user, s.userSource = loaded.User, loaded.UserSource
	}
	return s
}

// System returns the system instruction, or "" when system prompts are disabled
func (s *PromptStore) System() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.useSystemPrompts {
		return ""
	}
	return s.system
}

// RenderUser fills the user template. Inputs are inserted verbatim in a single pass.
func (s *PromptStore) RenderUser(req types.AnalysisRequest) string {
	s.mu.RLock()
	template := s.user
	s.mu.RUnlock()

	return strings.NewReplacer(
		"{companyName}", req.CompanyName,
		"{resume}", req.Resume,
		"{jobDescription}", req.JobDescription,
	).Replace(template)
}

// Update swaps a prompt. kind is "system" or "user"; empty content is ignored.
func (s *PromptStore) Update(kind, content, source string) bool {
	if content == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case "system":
		s.system, s.systemSource = content, source
	case "user":
		s.user, s.userSource = content, source
	default:
		return false
	}
	return true
}

// Sources reports where each active prompt came from
func (s *PromptStore) Sources() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]string{
		"system": s.systemSource,
		"user":   s.userSource,
	}
}
