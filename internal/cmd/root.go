// Package cmd wires the ReasonLoop CLI: submitting tasks, watching live
// sessions, controlling them, and browsing finished ones.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/reasonloop/internal/config"
	"github.com/Iron-Ham/reasonloop/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "reasonloop",
	Short: "Client for iterative multi-model reasoning sessions",
	Long: `ReasonLoop drives a reasoning server that iterates on a task through
rounds of generation, critique and refinement across a rotating roster of
three models. It streams session events live, keeps a consistent local view
of the run, and survives connection drops with bounded reconnection.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/reasonloop/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.PersistentFlags().String("server", "", "reasoning server URL (overrides server.url)")
	_ = viper.BindPFlag("server.url", rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("REASONLOOP")
	// Replace dots with underscores for nested keys in env vars
	// e.g., REASONLOOP_SERVER_URL for server.url
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// newLogger builds the process logger from the loaded configuration.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.NewLogger(cfg.Logging.Dir, logging.ParseLevel(cfg.Logging.Level))
}

// httpBaseURL translates the configured server URL into its REST root; the
// commands travel over plain HTTP while the event stream uses WebSocket.
func httpBaseURL(serverURL string) string {
	switch {
	case strings.HasPrefix(serverURL, "ws://"):
		return "http://" + strings.TrimPrefix(serverURL, "ws://")
	case strings.HasPrefix(serverURL, "wss://"):
		return "https://" + strings.TrimPrefix(serverURL, "wss://")
	default:
		return serverURL
	}
}
