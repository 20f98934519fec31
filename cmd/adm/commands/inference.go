package commands

import (
	"context"
	"fmt"
	"strings"
	"syscall"
	"time"

	"evolveedu/internal/config"
	"evolveedu/internal/inference"
	"evolveedu/internal/observability"
	contextutils "evolveedu/internal/utils"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// InferenceCommands returns the inference endpoint commands
func InferenceCommands(cfg *config.Config, logger *observability.Logger) *cobra.Command {
	inferenceCmd := &cobra.Command{
		Use:   "inference",
		Short: "Inference endpoint commands",
	}

	inferenceCmd.AddCommand(inferencePingCmd(cfg, logger))
	return inferenceCmd
}

// inferencePingCmd checks that the configured inference endpoint accepts a
// minimal generation request. Prompts for the API key when the config and
// environment leave it empty.
func inferencePingCmd(cfg *config.Config, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check inference endpoint reachability",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			inferenceCfg := cfg.Inference
			if inferenceCfg.APIKey == "" {
				fmt.Print("Inference API key: ")
				keyBytes, err := term.ReadPassword(int(syscall.Stdin))
				fmt.Println()
				if err != nil {
					return contextutils.WrapErrorf(err, "failed to read API key")
				}
				inferenceCfg.APIKey = strings.TrimSpace(string(keyBytes))
			}

			// A single attempt is enough for a reachability probe
			inferenceCfg.MaxRetries = 1

			client := inference.NewClient(inferenceCfg, logger)
			defer func() {
				if err := client.Shutdown(ctx); err != nil {
					logger.Warn(ctx, "Failed to shut down inference client", map[string]interface{}{"error": err.Error()})
				}
			}()

			params := inference.DefaultParams(8)

			start := time.Now()
			_, err := client.Generate(ctx, cfg.Domains.Notes.Model, "Reply with the word pong.", params)
			elapsed := time.Since(start)

			if err != nil {
				logger.Error(ctx, "Inference ping failed", err, map[string]interface{}{
					"base_url": inferenceCfg.BaseURL,
					"model":    cfg.Domains.Notes.Model,
				})
				return contextutils.WrapErrorf(err, "inference endpoint unreachable")
			}

			fmt.Printf("ok: %s responded in %s\n", inferenceCfg.BaseURL, elapsed.Round(time.Millisecond))
			return nil
		},
	}
}
