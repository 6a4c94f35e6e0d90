package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeConfig            ErrorType = "configuration"
	ErrorTypeRateLimited       ErrorType = "rate_limited"
	ErrorTypeCreditsExhausted  ErrorType = "credits_exhausted"
	ErrorTypeUpstream          ErrorType = "upstream_error"
	ErrorTypeMalformedResponse ErrorType = "malformed_upstream_response"
	ErrorTypeIO                ErrorType = "io"
	ErrorTypeInternal          ErrorType = "internal"
)

// Caller-facing messages. Causes are never included in these.
const (
	MsgMissingFields      = "Missing required fields: resume, jobDescription, companyName"
	MsgInvalidBody        = "Invalid request body"
	MsgNotConfigured      = "AI service not configured"
	MsgRateLimited        = "Rate limit exceeded. Please try again in a moment."
	MsgCreditsExhausted   = "AI credits exhausted. Please add funds to continue."
	MsgInvalidAIResponse  = "Invalid AI response format"
	MsgGatewayUnavailable = "AI gateway temporarily unavailable"
	MsgGatewayFailed      = "AI gateway request failed"
	MsgInternal           = "Internal server error"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"cause,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func newAppError(typ ErrorType, code, message string, cause error) *AppError {
	return &AppError{
		Type:    typ,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error constructors for different types
func NewValidationError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, code, message, cause)
}

func NewConfigError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeConfig, code, message, cause)
}

func NewRateLimitedError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeRateLimited, code, message, cause)
}

func NewCreditsExhaustedError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeCreditsExhausted, code, message, cause)
}

func NewUpstreamError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeUpstream, code, message, cause)
}

func NewMalformedResponseError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeMalformedResponse, code, message, cause)
}

func NewIOError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeIO, code, message, cause)
}

func NewInternalError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, code, message, cause)
}

// WithContext adds context to an error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// As extracts the first *AppError in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of the given type
func IsType(err error, typ ErrorType) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == typ
}

// HTTPStatus maps an error to the status code the bridge responds with
func HTTPStatus(err error) int {
	appErr, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch appErr.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeRateLimited:
		return http.StatusTooManyRequests
	case ErrorTypeCreditsExhausted:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// Kind returns the wire kind for err
func Kind(err error) string {
	appErr, ok := As(err)
	if !ok {
		return string(ErrorTypeInternal)
	}
	return string(appErr.Type)
}

// PublicMessage returns the message that is safe to hand back to a caller.
// Causes and context stay server side.
func PublicMessage(err error) string {
	appErr, ok := As(err)
	if !ok || appErr.Message == "" {
		return MsgInternal
	}
	return appErr.Message
}

// Logger wraps slog with application-specific methods
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a new structured logger
func NewLogger(level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return &Logger{logger: slog.New(handler)}
}

// NewLoggerWithHandler wraps an existing slog handler
func NewLoggerWithHandler(handler slog.Handler) *Logger {
	return &Logger{logger: slog.New(handler)}
}

// LogError logs an application error with appropriate level and context
func (l *Logger) LogError(err error, message string, args ...any) {
	if appErr, ok := As(err); ok {
		logArgs := []any{
			"error_type", appErr.Type,
			"error_code", appErr.Code,
			"error_message", appErr.Message,
		}
		if appErr.Cause != nil {
			logArgs = append(logArgs, "cause", appErr.Cause.Error())
		}

		for key, value := range appErr.Context {
			logArgs = append(logArgs, key, value)
		}

		logArgs = append(logArgs, args...)
		l.logger.Error(message, logArgs...)
		return
	}

	logArgs := append([]any{"error", err.Error()}, args...)
	l.logger.Error(message, logArgs...)
}

func (l *Logger) Info(message string, args ...any) {
	l.logger.Info(message, args...)
}

func (l *Logger) Debug(message string, args ...any) {
	l.logger.Debug(message, args...)
}

func (l *Logger) Warn(message string, args ...any) {
	l.logger.Warn(message, args...)
}

// With returns a logger that always includes the given attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

// New creates a new logger instance
func New(level string) (*Logger, error) {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	return NewLogger(slogLevel), nil
}

// Common error codes
const (
	ErrCodeFileNotFound       = "FILE_NOT_FOUND"
	ErrCodeFileNotReadable    = "FILE_NOT_READABLE"
	ErrCodeInvalidFormat      = "INVALID_FORMAT"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeMissingFields      = "MISSING_FIELDS"
	ErrCodeRequestTooLarge    = "REQUEST_TOO_LARGE"
	ErrCodeMissingAPIKey      = "MISSING_API_KEY"
	ErrCodeInvalidConfig      = "INVALID_CONFIG"
	ErrCodeUpstreamStatus     = "UPSTREAM_STATUS"
	ErrCodeUpstreamTransport  = "UPSTREAM_TRANSPORT"
	ErrCodeCircuitOpen        = "CIRCUIT_OPEN"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeCreditsExhausted   = "CREDITS_EXHAUSTED"
	ErrCodeMissingToolCall    = "MISSING_TOOL_CALL"
	ErrCodeWrongToolCall      = "WRONG_TOOL_CALL"
	ErrCodeInvalidArguments   = "INVALID_TOOL_ARGUMENTS"
	ErrCodeSchemaViolation    = "SCHEMA_VIOLATION"
	ErrCodeRequestEncoding    = "REQUEST_ENCODING"
	ErrCodeClientRateLimited  = "CLIENT_RATE_LIMITED"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeUnsupportedMedia   = "UNSUPPORTED_MEDIA_TYPE"
	ErrCodeHTMLConversion     = "HTML_CONVERSION"
	ErrCodeUnsupportedFormat  = "UNSUPPORTED_FILE_FORMAT"
	ErrCodeProviderInitFailed = "PROVIDER_INIT_FAILED"
)
