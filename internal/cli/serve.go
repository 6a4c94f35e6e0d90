package cli

import (
	"fmt"

	"resumematch/internal/config"
	"resumematch/internal/observability"
	"resumematch/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis bridge HTTP server",
	Long: `Start the HTTP bridge that forwards resume analysis requests to the AI gateway.

Available endpoints:
- POST /analyze-resume: Analyze a resume against a job description
- POST /functions/v1/analyze-resume: Same endpoint, hosted-function path
- GET /health: Health check endpoint
- GET /stats: Server statistics and rate limiting info

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled, server, mutual
- Use --cert-file and --key-file for TLS certificates
- Use --ca-file for mutual TLS client certificate verification`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().String("tls-mode", "", "TLS mode: disabled, server, mutual (overrides config)")
	serveCmd.Flags().String("cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().String("key-file", "", "Server private key file (PEM, overrides config)")
	serveCmd.Flags().String("ca-file", "", "CA certificate file for client cert verification (PEM, overrides config)")
}

// applyServeFlags copies explicitly set flags over the loaded config
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	overrides := map[string]*string{
		"port":      &cfg.Server.Port,
		"host":      &cfg.Server.Host,
		"tls-mode":  &cfg.Server.TLS.Mode,
		"cert-file": &cfg.Server.TLS.CertFile,
		"key-file":  &cfg.Server.TLS.KeyFile,
		"ca-file":   &cfg.Server.TLS.CAFile,
	}
	for name, target := range overrides {
		if cmd.Flags().Changed(name) {
			*target, _ = cmd.Flags().GetString(name)
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return err
	}

	applyServeFlags(cmd, cfg)
	if err := cfg.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	rt, err := buildRuntime(cfg, logger)
	if err != nil {
		return err
	}

	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(cfg, Version), logger)
	if err != nil {
		if closeErr := rt.service.Close(); closeErr != nil {
			logger.LogError(closeErr, "Failed to close AI service")
		}
		return fmt.Errorf("failed to initialize observability: %w", err)
	}

	srv := server.NewServer(server.ServerConfigFrom(cfg, Version), rt.service, om, logger)

	if rt.vault != nil && cfg.Vault.Watch.Enabled && cfg.Vault.Secrets.GatewayKey != "" {
		srv.KeyWatcher = server.NewKeyWatcher(rt.vault, cfg.Vault.Secrets.GatewayKey,
			cfg.Vault.Watch.PollInterval, rt.keys, om, logger)
	}

	if files := cfg.PromptFiles(); cfg.Server.PromptWatch.Enabled && len(files) > 0 {
		pw, err := server.NewPromptWatcher(files, rt.service.Prompts(), cfg.Server.PromptWatch.DebounceDelay, om, logger)
		if err != nil {
			srv.Close()
			return fmt.Errorf("failed to create prompt watcher: %w", err)
		}
		srv.PromptWatcher = pw
	}

	return srv.Start(cmd.Context())
}
