package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/swipesafe/backend/internal/config"
	"github.com/zhouzirui/swipesafe/backend/internal/logger"
)

var (
	cfg *config.Config

	playerID    string
	dbPath      string
	maxDuration time.Duration
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "calltester",
	Short: "Play a simulated scam call in the terminal",
	Long: `calltester rings a simulated call using the configured persona service
(in-process by default, or PERSONA_SERVICE_URL), lets you talk to the caller
line by line and prints the verdict when the call ends.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("配置加载失败: %w", err)
		}
		if logLevel == "" {
			logLevel = cfg.Server.LogLevel
		}
		logger.Setup(logLevel)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return play(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.Flags().StringVar(&playerID, "player", "terminal", "player id used when recording the attempt")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "sqlite path for recording the attempt (default: do not record)")
	rootCmd.Flags().DurationVar(&maxDuration, "max-duration", 0, "override CALL_MAX_DURATION")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
