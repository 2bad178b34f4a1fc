package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/foiahound/foiahound/api/schemas"
	"github.com/foiahound/foiahound/internal/observability"
	"github.com/foiahound/foiahound/internal/request"
)

// newSubmitCmd creates and configures the `submit` command.
func newSubmitCmd() *cobra.Command {
	var optionIndex int

	submitCmd := &cobra.Command{
		Use:   "submit [topic]",
		Short: "Generates a records request on a topic and files it on the portal",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("portal.url", cmd.Flags().Lookup("portal")); err != nil {
				return err
			}
			return viper.BindPFlag("request.options", cmd.Flags().Lookup("options"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := appConfig

			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to apply flag overrides: %w", err)
			}

			topic := strings.TrimSpace(strings.Join(args, " "))
			if topic == "" {
				return fmt.Errorf("a request topic is required")
			}

			components, err := openPortal(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Shutdown(ctx)

			flow := request.NewWorkflow(cfg, components.Router, components.Session, chooserForIndex(optionIndex), logger)
			report, runErr := flow.Run(ctx, topic)

			// The report carries every step that completed, so it is worth
			// persisting even when the run failed.
			if report != nil {
				if path, err := writeJSONArtifact(cfg.Artifacts().Dir, "request_submission", report); err != nil {
					logger.Warn("Failed to write submission artifact", zap.Error(err))
				} else {
					logger.Info("Submission artifact written", zap.String("path", path))
				}
			}
			if runErr != nil {
				return runErr
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Request submitted for topic: %s\n", topic)
			if report.Submission != nil && report.Submission.Confirmation != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Confirmation: %s\n", report.Submission.Confirmation)
			}
			return nil
		},
	}

	submitCmd.Flags().StringP("portal", "p", "", "Portal URL to submit on. (Overrides config/env)")
	submitCmd.Flags().Int("options", 0, "Number of request options to generate. (Overrides config/env)")
	submitCmd.Flags().IntVar(&optionIndex, "choose", 0, "1-based index of the generated option to file. Defaults to the first.")

	return submitCmd
}

// chooserForIndex picks the generated option to file. Zero means take the
// first; anything else is a 1-based index validated against the option list.
func chooserForIndex(index int) request.Chooser {
	if index <= 0 {
		return request.ChooseFirst
	}
	return func(opts schemas.RequestOptions) (int, error) {
		if index > len(opts.Options) {
			return 0, fmt.Errorf("option %d requested but only %d were generated", index, len(opts.Options))
		}
		return index - 1, nil
	}
}
