package common

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"resumematch/internal/errors"
	"resumematch/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = errors.NewLoggerWithHandler(slog.NewTextHandler(io.Discard, nil))

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestValidateAndReadFiles(t *testing.T) {
	dir := t.TempDir()
	resume := writeFile(t, dir, "resume.txt", "  Go developer\n")
	posting := writeFile(t, dir, "job.html", "<h1>Backend</h1><p>Needs <em>Go</em></p>")

	fp := NewFileProcessor(testLogger, 0)
	contents, err := fp.ValidateAndReadFiles(resume, posting)
	require.NoError(t, err)

	assert.Equal(t, "  Go developer\n", contents[0], "text files are read verbatim")
	assert.Contains(t, contents[1], "Backend")
	assert.NotContains(t, contents[1], "<p>")
}

func TestValidateAndReadFilesRejects(t *testing.T) {
	dir := t.TempDir()
	pdf := writeFile(t, dir, "resume.pdf", "%PDF")
	big := writeFile(t, dir, "big.txt", strings.Repeat("x", 100))

	_, err := NewFileProcessor(testLogger, 0).ValidateAndReadFiles(pdf)
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeValidation, appErr.Type)
	assert.Equal(t, errors.ErrCodeUnsupportedFormat, appErr.Code)

	_, err = NewFileProcessor(testLogger, 10).ValidateAndReadFiles(big)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestRunFileCommand(t *testing.T) {
	dir := t.TempDir()
	resume := writeFile(t, dir, "resume.md", "resume text")
	job := writeFile(t, dir, "job.txt", "job text")

	var out strings.Builder
	handler := NewOutputHandlerWithWriter(testLogger, &out)

	var got types.AnalysisRequest
	err := RunFileCommand(context.Background(), testLogger,
		CommandConfig{OutputFormat: "text"},
		[]string{resume, job},
		func(contents []string) (types.AnalysisRequest, error) {
			return types.AnalysisRequest{Resume: contents[0], JobDescription: contents[1], CompanyName: "Acme"}, nil
		},
		func(_ context.Context, req types.AnalysisRequest) (*types.AnalysisResult, error) {
			got = req
			return &types.AnalysisResult{ATSScore: 85, MatchedSkills: []string{"Go"}}, nil
		},
		handler)
	require.NoError(t, err)

	assert.Equal(t, "resume text", got.Resume)
	assert.Equal(t, "job text", got.JobDescription)
	assert.Contains(t, out.String(), "Score: 85/100")
}

func TestRunFileCommandWritesFileAndPropagatesErrors(t *testing.T) {
	dir := t.TempDir()
	resume := writeFile(t, dir, "resume.txt", "r")
	job := writeFile(t, dir, "job.txt", "j")
	outFile := filepath.Join(dir, "out", "result.json")

	create := func(contents []string) (types.AnalysisRequest, error) {
		return types.AnalysisRequest{Resume: contents[0], JobDescription: contents[1], CompanyName: "c"}, nil
	}

	err := RunFileCommand(context.Background(), testLogger,
		CommandConfig{OutputFormat: "json", OutputFile: outFile},
		[]string{resume, job}, create,
		func(context.Context, types.AnalysisRequest) (*types.AnalysisResult, error) {
			return &types.AnalysisResult{ATSScore: 40}, nil
		}, nil)
	require.NoError(t, err)
	written, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(written), `"atsScore": 40`)

	boom := stderrors.New("boom")
	err = RunFileCommand(context.Background(), testLogger,
		CommandConfig{OutputFormat: "json"},
		[]string{resume, job}, create,
		func(context.Context, types.AnalysisRequest) (*types.AnalysisResult, error) {
			return nil, boom
		}, nil)
	assert.ErrorIs(t, err, boom)
}
