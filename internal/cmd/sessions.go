package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/reasonloop/internal/config"
	"github.com/Iron-Ham/reasonloop/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved reasoning sessions",
	Long:  `Commands for listing and deleting sessions saved to local history.`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions",
	RunE:  runSessionsList,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	history, err := openHistory()
	if err != nil {
		return err
	}

	summaries, err := history.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No saved sessions.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tITERS\tSCORE\tUPDATED\tTASK")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.1f\t%s\t%s\n",
			s.ID, s.Status, s.Iterations, s.FinalScore, s.UpdatedAt, s.Task)
	}
	return w.Flush()
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	history, err := openHistory()
	if err != nil {
		return err
	}
	if err := history.Delete(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
	return nil
}

func openHistory() (*session.History, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return session.NewHistory(cfg.HistoryDir())
}
