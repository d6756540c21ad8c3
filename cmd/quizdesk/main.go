// cmd/quizdesk/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jason-s-yu/quizdesk/internal/config"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagPort    string
	flagStore   string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "quizdesk",
	Short: "Quiz event planning dashboard",
	Long: `quizdesk serves the organizer dashboard and the public team
registration form, and runs the supporting jobs.

Settings come from the environment (a .env file is loaded if present);
flags override them.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagPort, "port", "", "HTTP port (overrides PORT)")
	rootCmd.PersistentFlags().StringVar(&flagStore, "store", "", "game store: postgres or memory (overrides STORE)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd, migrateCmd, historianCmd, templateCmd)
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() config.Config {
	cfg := config.Load()
	if flagPort != "" {
		cfg.Port = flagPort
	}
	if flagStore != "" {
		cfg.Store = flagStore
	}
	if flagVerbose {
		cfg.LogLevel = logrus.DebugLevel
	}
	return cfg
}

func newLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(cfg.LogLevel)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
