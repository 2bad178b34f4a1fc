package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/foiahound/foiahound/internal/crawler"
	"github.com/foiahound/foiahound/internal/fetcher"
	"github.com/foiahound/foiahound/internal/llmclient"
	"github.com/foiahound/foiahound/internal/observability"
)

// newFindCmd creates and configures the `find` command.
func newFindCmd() *cobra.Command {
	findCmd := &cobra.Command{
		Use:   "find [seed-url]",
		Short: "Crawls outward from a government site to locate its records request portal",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line values override
			// the config file and environment.
			if err := viper.BindPFlag("crawler.agents", cmd.Flags().Lookup("agents")); err != nil {
				return err
			}
			if err := viper.BindPFlag("crawler.max_attempts", cmd.Flags().Lookup("max-attempts")); err != nil {
				return err
			}
			return viper.BindPFlag("crawler.max_depth", cmd.Flags().Lookup("depth"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := appConfig

			// Re-unmarshal so the flag bindings from PreRunE take effect.
			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to apply flag overrides: %w", err)
			}

			seedURL := fetcher.RepairURL(args[0])

			router, err := llmclient.NewRouterFromConfig(cfg.LLM(), logger)
			if err != nil {
				return fmt.Errorf("failed to initialize LLM router: %w", err)
			}
			pageFetcher, err := fetcher.New(cfg.Fetcher(), logger)
			if err != nil {
				return fmt.Errorf("failed to initialize page fetcher: %w", err)
			}

			c := crawler.New(cfg.Crawler(), pageFetcher, router, logger)
			result, runErr := c.Run(ctx, seedURL)

			// The result is written even when the crawl failed part-way; an
			// aborted run still carries its attempt trail.
			if result != nil {
				if path, err := crawler.WriteArtifacts(result, cfg.Artifacts().Dir); err != nil {
					logger.Warn("Failed to write crawl artifacts", zap.Error(err))
				} else {
					logger.Info("Crawl artifacts written", zap.String("path", path))
				}
				if err := persistCrawlResult(ctx, cfg, logger, result); err != nil {
					logger.Warn("Failed to persist crawl result", zap.Error(err))
				}
			}
			if runErr != nil {
				return runErr
			}

			if result.Found {
				fmt.Fprintf(cmd.OutOrStdout(), "Portal found: %s\n", result.PortalURL)
				fmt.Fprintf(cmd.OutOrStdout(), "Run ID: %s\n", result.RunID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "No portal found after %d attempts. Run ID: %s\n",
					len(result.Attempts), result.RunID)
			}
			return nil
		},
	}

	findCmd.Flags().IntP("agents", "a", 0, "Number of crawl agents. (Overrides config/env)")
	findCmd.Flags().Int("max-attempts", 0, "Shared page-fetch budget across agents. (Overrides config/env)")
	findCmd.Flags().IntP("depth", "d", 0, "Maximum crawl depth per agent. (Overrides config/env)")

	return findCmd
}
