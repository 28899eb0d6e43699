package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/reasonloop/internal/api"
	"github.com/Iron-Ham/reasonloop/internal/config"
	"github.com/Iron-Ham/reasonloop/internal/event"
	"github.com/Iron-Ham/reasonloop/internal/session"
	"github.com/Iron-Ham/reasonloop/internal/stream"
	"github.com/Iron-Ham/reasonloop/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Submit a task and watch the reasoning session live",
	Long: `Submit a task to the reasoning server and follow the session as it
iterates: generation, critique and refinement rotate across the configured
three-model roster until the score threshold or iteration limit is reached.

The finished session is saved to local history and can be reopened later
with 'reasonloop show <id>'.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runGenerator      string
	runCritic         string
	runRefiner        string
	runTemperature    float64
	runMaxIterations  int
	runScoreThreshold float64
	runOutputLength   string
	runMode           string
	runNoTUI          bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runGenerator, "generator", "", "generator model (first roster slot)")
	runCmd.Flags().StringVar(&runCritic, "critic", "", "critic model (second roster slot)")
	runCmd.Flags().StringVar(&runRefiner, "refiner", "", "refiner model (third roster slot)")
	runCmd.Flags().Float64Var(&runTemperature, "temperature", -1, "model temperature (0-1)")
	runCmd.Flags().IntVar(&runMaxIterations, "max-iterations", 0, "iteration limit (1-20)")
	runCmd.Flags().Float64Var(&runScoreThreshold, "score-threshold", 0, "stop early at this critique score (1-10)")
	runCmd.Flags().StringVar(&runOutputLength, "output-length", "", "output length hint: short, medium, long")
	runCmd.Flags().StringVar(&runMode, "mode", "", "reasoning mode: standard, council")
	runCmd.Flags().BoolVar(&runNoTUI, "no-tui", false, "log progress to stdout instead of the interactive view")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	sessionCfg := sessionConfigFromFlags(cfg)

	bus := event.NewBus()
	store := session.NewStore(bus, log)
	client := api.NewClient(httpBaseURL(cfg.Server.URL), store, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	id, err := client.Start(ctx, args[0], sessionCfg)
	if err != nil {
		return err
	}

	manager := stream.NewManager(stream.Options{
		BaseURL:              cfg.Server.URL,
		MaxReconnectAttempts: cfg.Stream.MaxReconnectAttempts,
		ReconnectBackoff:     cfg.Stream.Backoff(),
	}, store, log)
	if err := manager.Connect(ctx, id); err != nil {
		// The manager keeps retrying within its budget; the session is
		// already running server-side, so don't abandon it yet.
		log.Warn("initial stream connection failed", "error", err)
	}
	defer manager.Disconnect()

	if runNoTUI {
		err = followPlain(ctx, cmd, bus, store)
	} else {
		_, err = tea.NewProgram(tui.New(store, client), tea.WithAltScreen()).Run()
	}

	if saveErr := saveToHistory(cfg, store); saveErr != nil {
		log.Warn("failed to save session history", "error", saveErr)
	}
	return err
}

// sessionConfigFromFlags starts from the configured reasoning defaults and
// applies any explicit flag overrides.
func sessionConfigFromFlags(cfg *config.Config) session.Config {
	sc := cfg.Reasoning.SessionConfig()
	if runGenerator != "" {
		sc.GeneratorModel = runGenerator
	}
	if runCritic != "" {
		sc.CriticModel = runCritic
	}
	if runRefiner != "" {
		sc.RefinerModel = runRefiner
	}
	if runTemperature >= 0 {
		sc.Temperature = runTemperature
	}
	if runMaxIterations > 0 {
		sc.MaxIterations = runMaxIterations
	}
	if runScoreThreshold > 0 {
		sc.ScoreThreshold = runScoreThreshold
	}
	if runOutputLength != "" {
		sc.OutputLength = runOutputLength
	}
	if runMode != "" {
		sc.Mode = runMode
	}
	return sc
}

// followPlain prints progress lines until the session reaches a terminal
// status or the context is cancelled.
func followPlain(ctx context.Context, cmd *cobra.Command, bus *event.Bus, store *session.Store) error {
	done := make(chan struct{})
	var once sync.Once

	bus.SubscribeStatusChanged(func(sc event.StatusChangedEvent) {
		fmt.Fprintf(cmd.OutOrStdout(), "status: %s -> %s\n", sc.Previous, sc.Current)
		if session.Status(sc.Current).Terminal() {
			once.Do(func() { close(done) })
		}
	})
	var mu sync.Mutex
	seen := make(map[int]bool)
	bus.SubscribeIterationUpdated(func(iu event.IterationUpdatedEvent) {
		mu.Lock()
		first := !seen[iu.Iteration]
		seen[iu.Iteration] = true
		mu.Unlock()
		if first {
			if iu.Iteration < 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "council pre-phase started")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "iteration %d started\n", iu.Iteration)
			}
		}
	})

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	sess := store.Snapshot()
	if sess.Status == session.StatusCompleted {
		fmt.Fprintf(cmd.OutOrStdout(), "\nfinal output (score %.1f):\n%s\n", sess.FinalScore, sess.FinalOutput)
	}
	return nil
}

// saveToHistory persists the session snapshot so it can be reloaded later.
func saveToHistory(cfg *config.Config, store *session.Store) error {
	sess := store.Snapshot()
	if sess.ID == "" {
		return nil
	}
	history, err := session.NewHistory(cfg.HistoryDir())
	if err != nil {
		return err
	}
	return history.Save(sess)
}

// commandTimeout bounds one-shot control requests issued from the CLI.
const commandTimeout = 15 * time.Second
