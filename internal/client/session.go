package client

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"resumematch/internal/errors"
	"resumematch/internal/types"
)

// Notifications emitted by a Session
var (
	MissingInformation = Notification{
		Title:       "Missing information",
		Description: "Please provide your resume, company name, and job description.",
		Variant:     VariantDestructive,
	}
	TooManyRequests = Notification{
		Title:       "Too many requests",
		Description: "Please wait a moment before trying again.",
		Variant:     VariantDestructive,
	}
	CreditsExhausted = Notification{
		Title:       "Credits exhausted",
		Description: "Please add AI credits to continue using this feature.",
		Variant:     VariantDestructive,
	}
)

// AnalysisComplete is the success notification for company and score
func AnalysisComplete(company string, score float64) Notification {
	return Notification{
		Title:       "Analysis complete!",
		Description: fmt.Sprintf("Your ATS score for %s is %s%%", company, FormatScore(score)),
		Variant:     VariantDefault,
	}
}

// AnalysisFailed is the generic failure notification
func AnalysisFailed(message string) Notification {
	return Notification{
		Title:       "Analysis failed",
		Description: message,
		Variant:     VariantDestructive,
	}
}

// FormatScore prints integral scores without decimals
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// Session is the client-side state of the analysis workflow
type Session struct {
	bridge   Bridge
	notifier Notifier
	logger   *errors.Logger

	mu          sync.RWMutex
	isAnalyzing bool
	results     *types.AnalysisResult
}

// NewSession creates a session. A nil notifier discards notifications and
// a nil logger discards log output.
func NewSession(bridge Bridge, notifier Notifier, logger *errors.Logger) *Session {
	if notifier == nil {
		notifier = NotifierFunc(func(Notification) {})
	}
	if logger == nil {
		logger = errors.NewLoggerWithHandler(slog.DiscardHandler)
	}
	return &Session{bridge: bridge, notifier: notifier, logger: logger}
}

// IsAnalyzing reports whether a request is in flight. It is advisory only.
func (s *Session) IsAnalyzing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isAnalyzing
}

// Results returns a copy of the last successful result, or nil
func (s *Session) Results() *types.AnalysisResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.results.Clone()
}

// ClearResults discards the stored result
func (s *Session) ClearResults() {
	s.mu.Lock()
	s.results = nil
	s.mu.Unlock()
}

func (s *Session) setAnalyzing(v bool) {
	s.mu.Lock()
	s.isAnalyzing = v
	s.mu.Unlock()
}

// notify delivers n; a panicking notifier is logged and otherwise ignored
func (s *Session) notify(n Notification) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("Notifier panicked", "panic", fmt.Sprint(r), "title", n.Title)
		}
	}()
	s.notifier.Notify(n)
}

// AnalyzeResume runs one analysis. It never returns an error: failures are
// reported through the notifier and a nil result.
func (s *Session) AnalyzeResume(ctx context.Context, resume, jobDescription, companyName string) (result *types.AnalysisResult) {
	if strings.TrimSpace(resume) == "" || strings.TrimSpace(jobDescription) == "" || strings.TrimSpace(companyName) == "" {
		s.notify(MissingInformation)
		return nil
	}

	s.setAnalyzing(true)
	// registered first so it runs after the recover below, whatever happens there
	defer s.setAnalyzing(false)
	defer func() {
		if r := recover(); r != nil {
			result = nil
			s.logger.Warn("Analysis panicked", "panic", fmt.Sprint(r))
			s.notify(AnalysisFailed(fmt.Sprint(r)))
		}
	}()

	res, err := s.bridge.Analyze(ctx, types.AnalysisRequest{
		Resume:         resume,
		JobDescription: jobDescription,
		CompanyName:    companyName,
	})
	if err == nil && res == nil {
		err = stderrors.New(errors.MsgInvalidAIResponse)
	}
	if err != nil {
		s.logger.Warn("Analysis request failed", "error", err.Error(), "company", companyName)
		s.notify(Classify(err))
		return nil
	}

	s.mu.Lock()
	s.results = res.Clone()
	s.mu.Unlock()

	s.notify(AnalysisComplete(companyName, res.ATSScore))
	return res
}

// Classify maps a bridge failure to the notification shown to the user.
// A structured kind wins; otherwise the message is inspected.
func Classify(err error) Notification {
	var bErr *BridgeError
	if stderrors.As(err, &bErr) && bErr.Kind != "" {
		switch bErr.Kind {
		case string(errors.ErrorTypeRateLimited):
			return TooManyRequests
		case string(errors.ErrorTypeCreditsExhausted):
			return CreditsExhausted
		default:
			return AnalysisFailed(bErr.Message)
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "Rate limit"):
		return TooManyRequests
	case strings.Contains(msg, "credits"):
		return CreditsExhausted
	default:
		return AnalysisFailed(msg)
	}
}
