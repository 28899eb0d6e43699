package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/reasonloop/internal/session"
	"github.com/Iron-Ham/reasonloop/internal/tui"
)

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "View a saved session",
	Long: `Load a session from local history and render it. The view is
read-only: the session already finished, so no commands apply.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var showPlain bool

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showPlain, "plain", false, "print the session instead of opening the interactive view")
}

func runShow(cmd *cobra.Command, args []string) error {
	history, err := openHistory()
	if err != nil {
		return err
	}
	sess, err := history.Load(args[0])
	if err != nil {
		return err
	}

	store := session.NewStore(nil, nil)
	store.LoadHistorical(sess)

	if showPlain {
		return printSession(cmd, store.Snapshot())
	}
	_, err = tea.NewProgram(tui.New(store, nil), tea.WithAltScreen()).Run()
	return err
}

func printSession(cmd *cobra.Command, sess session.Session) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session %s (%s)\n", sess.ID, sess.Status)
	fmt.Fprintf(out, "Task: %s\n\n", sess.Task)

	for _, it := range sess.Iterations {
		if it.Number < 0 {
			fmt.Fprintln(out, "Council pre-phase:")
		} else {
			fmt.Fprintf(out, "Iteration %d (%s generates, %s critiques):\n",
				it.Number, it.GenerationModel, it.CritiqueModel)
		}
		if it.Generation != "" {
			fmt.Fprintln(out, it.Generation)
		}
		if it.Critique != nil {
			fmt.Fprintf(out, "score: %.1f\n", it.Critique.Score)
		}
		fmt.Fprintln(out)
	}

	if sess.Status == session.StatusCompleted {
		fmt.Fprintf(out, "Final output (score %.1f):\n%s\n", sess.FinalScore, sess.FinalOutput)
	}
	if sess.LastError != "" {
		fmt.Fprintf(out, "Session error: %s\n", sess.LastError)
	}
	return nil
}
