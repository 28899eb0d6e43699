package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/reasonloop/internal/api"
	"github.com/Iron-Ham/reasonloop/internal/config"
)

// One-shot control commands for a session running elsewhere. They talk to
// the server directly, without a local store: the authoritative status
// change arrives on whatever client is streaming the session.

var stopCmd = &cobra.Command{
	Use:   "stop <session-id>",
	Short: "Stop a running session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return control(cmd, args[0], "stopped", func(ctx context.Context, c *api.Client) error {
			return c.Stop(ctx, args[0])
		})
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause <session-id>",
	Short: "Pause a running session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return control(cmd, args[0], "paused", func(ctx context.Context, c *api.Client) error {
			return c.Pause(ctx, args[0])
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Resume a paused session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return control(cmd, args[0], "resumed", func(ctx context.Context, c *api.Client) error {
			return c.Resume(ctx, args[0])
		})
	},
}

var injectCmd = &cobra.Command{
	Use:   "inject <session-id> <feedback>",
	Short: "Inject human feedback into the next iteration",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return control(cmd, args[0], "feedback queued", func(ctx context.Context, c *api.Client) error {
			return c.Inject(ctx, args[0], args[1])
		})
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <session-id>",
	Short: "Retry reasoning from the rejected output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return control(cmd, args[0], "retry started", func(ctx context.Context, c *api.Client) error {
			return c.Retry(ctx, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(injectCmd)
	rootCmd.AddCommand(retryCmd)
}

func control(cmd *cobra.Command, sessionID, okMsg string, fn func(context.Context, *api.Client) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	client := api.NewClient(httpBaseURL(cfg.Server.URL), nil, log)

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()
	if err := fn(ctx, client); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Session %s: %s\n", sessionID, okMsg)
	return nil
}
