package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/foiahound/foiahound/api/schemas"
	"github.com/foiahound/foiahound/internal/observability"
	"github.com/foiahound/foiahound/internal/tracker"
)

// newStatusCmd creates and configures the `status` command.
func newStatusCmd() *cobra.Command {
	var (
		statuses  []string
		sendReply string
		replyTo   string
	)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Logs into the portal and reports on the account's filed requests",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("portal.url", cmd.Flags().Lookup("portal")); err != nil {
				return err
			}
			return viper.BindPFlag("tracker.detail_limit", cmd.Flags().Lookup("detail-limit"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := appConfig

			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to apply flag overrides: %w", err)
			}
			if sendReply != "" && replyTo == "" {
				return fmt.Errorf("--reply requires --request to name the request to reply on")
			}

			components, err := openPortal(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Shutdown(ctx)

			tr := tracker.New(cfg, components.Session, components.Router, logger)

			summary, records, err := tr.StatusReport(ctx, statuses)
			if err != nil {
				return err
			}

			if path, err := writeJSONArtifact(cfg.Artifacts().Dir, "status_report", summary); err != nil {
				logger.Warn("Failed to write status artifact", zap.Error(err))
			} else {
				logger.Info("Status artifact written", zap.String("path", path))
			}

			sessionID := uuid.NewString()
			if err := persistSnapshot(ctx, cfg, logger, sessionID, records); err != nil {
				logger.Warn("Failed to persist request snapshot", zap.Error(err))
			}

			printSummary(cmd, summary)

			if sendReply != "" {
				if err := replyOnRequest(ctx, tr, replyTo, sendReply); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reply sent on request %s\n", replyTo)
			}
			return nil
		},
	}

	statusCmd.Flags().StringP("portal", "p", "", "Portal URL to check. (Overrides config/env)")
	statusCmd.Flags().Int("detail-limit", 0, "How many requests get a detail-page analysis. (Overrides config/env)")
	statusCmd.Flags().StringSliceVar(&statuses, "statuses", nil, "Status filters to apply before reading the table (e.g. open,closed)")
	statusCmd.Flags().StringVar(&sendReply, "reply", "", "Message to post on a request. 'auto' drafts one from the request's state.")
	statusCmd.Flags().StringVar(&replyTo, "request", "", "Request ID the --reply message is posted on")

	return statusCmd
}

func printSummary(cmd *cobra.Command, summary schemas.RequestSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Requests on file: %d\n", summary.Total)

	statuses := make([]string, 0, len(summary.ByStatus))
	for status := range summary.ByStatus {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Fprintf(out, "  %s: %d\n", status, summary.ByStatus[status])
	}
	if len(summary.Highlights) > 0 {
		fmt.Fprintln(out, "Needs attention:")
		for _, h := range summary.Highlights {
			fmt.Fprintf(out, "  - %s\n", h)
		}
	}
}

// replyOnRequest opens the request's detail page and posts a message on it.
// The literal "auto" asks the model to draft the reply from the request's
// current state.
func replyOnRequest(ctx context.Context, tr *tracker.Tracker, id, message string) error {
	if err := tr.NavigateToRequests(ctx); err != nil {
		return err
	}
	if err := tr.OpenRequest(ctx, id); err != nil {
		return err
	}
	detail, err := tr.AnalyzeDetail(ctx, id)
	if err != nil {
		return err
	}
	if message == "auto" {
		message, err = tr.DraftReply(ctx, detail)
		if err != nil {
			return err
		}
	}
	return tr.SendMessage(ctx, message)
}
