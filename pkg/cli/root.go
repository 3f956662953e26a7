// Package cli implements the conduit command line interface.
package cli

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is the current version of Conduit.
const Version = "1.0.0"

// Config holds the global configuration for the Conduit CLI.
type Config struct {
	// DBPath is the SQLite database path (default: ~/.conduit/conduit.db).
	DBPath string
	// User is the acting user id for owner-scoped operations.
	User string
	// Debug enables debug-level logging.
	Debug bool
}

// GlobalConfig is the shared configuration instance.
var GlobalConfig = &Config{}

// NewRootCommand creates the root cobra command for Conduit.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conduit",
		Short: "Conduit - workflow automation engine",
		Long: `Conduit executes workflow graphs: triggers, HTTP requests, LLM calls,
context variables, and Telegram messaging, wired together as nodes and
connections. Workflows are stored locally in SQLite and runs are recorded
with full output for inspection.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	cmd.PersistentFlags().BoolVar(&GlobalConfig.Debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&GlobalConfig.DBPath, "db", "", "Database path (default: ~/.conduit/conduit.db)")
	cmd.PersistentFlags().StringVar(&GlobalConfig.User, "user", "", "Acting user id (default: $CONDUIT_USER or \"local\")")

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewWorkflowCommand())
	cmd.AddCommand(NewExecutionsCommand())
	cmd.AddCommand(NewCredentialCommand())

	return cmd
}

// initConfig fills unset configuration from the environment. A .env file in
// the working directory is loaded first when present.
func initConfig() error {
	_ = godotenv.Load()

	if GlobalConfig.DBPath == "" {
		GlobalConfig.DBPath = os.Getenv("CONDUIT_DB")
	}
	if GlobalConfig.DBPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			GlobalConfig.DBPath = filepath.Join(home, ".conduit", "conduit.db")
		}
	}

	if GlobalConfig.User == "" {
		GlobalConfig.User = os.Getenv("CONDUIT_USER")
	}
	if GlobalConfig.User == "" {
		GlobalConfig.User = "local"
	}

	return nil
}

// newLogger builds the process logger honoring the debug flag.
func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if GlobalConfig.Debug {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}
