package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"resumematch/internal/client"
	"resumematch/internal/common"
	"resumematch/internal/config"
	"resumematch/internal/errors"
	"resumematch/internal/types"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <resume-file> <job-description-file>",
	Short: "Score a resume against a job description",
	Long: `Score a resume against a job description and list matched and missing
skills, prioritized suggestions and companies where the profile fits.

Files are sent verbatim. A .html or .htm job description is converted to
markdown first. PDF and Word documents are not supported.

With --server the request goes to a running bridge; otherwise the analysis
runs in-process with the configured AI provider.`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if analyzeOpts.OutputFormat == "" {
			analyzeOpts.OutputFormat = cfg.App.DefaultFormat
		}
		return common.ValidateOutputFormat(analyzeOpts.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runAnalyze,
}

type analyzeOptions struct {
	common.CommandConfig
	Company   string
	ServerURL string
	APIKey    string
	Timeout   time.Duration
}

var analyzeOpts analyzeOptions

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOpts.Company, "company", "c", "", "Company name the job is at")
	analyzeCmd.Flags().StringVar(&analyzeOpts.ServerURL, "server", "", "Bridge URL, e.g. http://localhost:8080/analyze-resume (default: analyze in-process)")
	analyzeCmd.Flags().StringVar(&analyzeOpts.APIKey, "api-key", "", "Key sent to the bridge as apikey and bearer token")
	analyzeCmd.Flags().DurationVar(&analyzeOpts.Timeout, "timeout", 0, "Bridge request timeout (0 for none)")
	analyzeCmd.Flags().StringVarP(&analyzeOpts.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	analyzeCmd.Flags().StringVar(&analyzeOpts.OutputFormat, "format", "", "Output format: json, text, or markdown")

	_ = analyzeCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return []string{}, cobra.ShellCompDirectiveError
		}
		return cfg.App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return err
	}

	bridge, closeBridge, err := newBridge(cfg, logger, analyzeOpts)
	if err != nil {
		return err
	}
	defer closeBridge()

	opts := analyzeOpts.CommandConfig
	opts.MaxFileSize = cfg.App.MaxFileSize

	err = analyzeFiles(cmd.Context(), logger, bridge, cmd.ErrOrStderr(), opts, analyzeOpts.Company, args)
	if err != nil {
		return fmt.Errorf("failed to analyze resume: %w", err)
	}
	return nil
}

// analyzeFiles reads the two files and runs one analysis through a client session
func analyzeFiles(ctx context.Context, logger *errors.Logger, bridge client.Bridge, notices io.Writer, opts common.CommandConfig, company string, args []string) error {
	session := client.NewSession(bridge, client.WriterNotifier{W: notices}, logger)

	createInput := func(contents []string) (types.AnalysisRequest, error) {
		if len(contents) != 2 {
			return types.AnalysisRequest{}, fmt.Errorf("expected 2 file paths, got %d", len(contents))
		}
		return types.AnalysisRequest{
			Resume:         contents[0],
			JobDescription: contents[1],
			CompanyName:    company,
		}, nil
	}

	analyze := func(ctx context.Context, req types.AnalysisRequest) (*types.AnalysisResult, error) {
		logger.Info("Starting resume analysis",
			"resume_chars", len(req.Resume),
			"job_chars", len(req.JobDescription),
			"company", req.CompanyName,
			"output_format", opts.OutputFormat)

		result := session.AnalyzeResume(ctx, req.Resume, req.JobDescription, req.CompanyName)
		if result == nil {
			return nil, fmt.Errorf("no analysis result")
		}
		return result, nil
	}

	return common.RunFileCommand(ctx, logger, opts, args, createInput, analyze, nil)
}

// newBridge picks the remote bridge when a server URL is set, else an in-process one
func newBridge(cfg *config.Config, logger *errors.Logger, opts analyzeOptions) (client.Bridge, func(), error) {
	if opts.ServerURL != "" {
		url := opts.ServerURL
		if !strings.Contains(strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "http://"), "/") {
			url = strings.TrimSuffix(url, "/") + "/analyze-resume"
		}
		logger.Debug("Using remote bridge", "url", url)
		return client.NewHTTPBridge(client.HTTPBridgeOptions{
			URL:        url,
			APIKey:     opts.APIKey,
			ClientInfo: "resumematch-cli/" + Version,
			Timeout:    opts.Timeout,
		}), func() {}, nil
	}

	rt, err := buildRuntime(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Using in-process bridge", "provider", rt.service.ProviderName())
	return client.NewLocalBridge(rt.service), func() {
		if err := rt.service.Close(); err != nil {
			logger.LogError(err, "Failed to close AI service")
		}
	}, nil
}
