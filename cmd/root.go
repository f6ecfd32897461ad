package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/querygenie/querygenie/internal/api"
	"github.com/querygenie/querygenie/internal/config"
	"github.com/querygenie/querygenie/internal/logger"
	"github.com/querygenie/querygenie/internal/session"
)

var (
	cfgFile    string
	serverFlag string
	useTUI     bool

	// Package-level version info, set by Execute().
	appVersion string
	appCommit  string
	appDate    string
)

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date

	rootCmd := &cobra.Command{
		Use:   "querygenie",
		Short: "Chat with your database in plain English",
		Long:  "querygenie turns natural-language questions into SQL through a Query Genie server and shows the results in your terminal.",
		// Running querygenie with no subcommand starts chat mode.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Default TUI on when stdout is a terminal and --tui was not explicitly set.
			if !cmd.Root().PersistentFlags().Changed("tui") && term.IsTerminal(int(os.Stdout.Fd())) {
				useTUI = true
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ~/.config/querygenie/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&serverFlag, "server", "s", "", "Query Genie server base URL")
	rootCmd.PersistentFlags().BoolVar(&useTUI, "tui", false, "use the full-screen chat UI (default: auto-detect terminal)")

	// Subcommands
	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newVersionCmd(version, commit, date))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig loads configuration, applying CLI flag overrides.
func initConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// CLI flags override config values
	if serverFlag != "" {
		cfg.Server.BaseURL = serverFlag
	}

	logger.SetLevel(cfg.LogLevel)
	return cfg
}

// openLocal opens the local mirror database under the configured data dir.
func openLocal(cfg *config.Config) (*session.LocalStore, error) {
	dataDir, err := cfg.DefaultDataDir()
	if err != nil {
		return nil, err
	}
	return session.OpenLocal(session.DefaultDBPath(dataDir))
}

// requireUser returns the locally stored account or fails with a login hint.
func requireUser(local *session.LocalStore) (api.User, error) {
	user, ok, err := local.User()
	if err != nil {
		return api.User{}, err
	}
	if !ok {
		return api.User{}, fmt.Errorf("not logged in; run: querygenie auth login")
	}
	return user, nil
}

// connDefaults maps the config's connection section onto an API request.
func connDefaults(cfg *config.Config) api.ConnectionConfig {
	return api.ConnectionConfig{
		Host:     cfg.Connection.Host,
		Port:     cfg.Connection.Port,
		User:     cfg.Connection.User,
		Password: cfg.Connection.Password,
		Database: cfg.Connection.Database,
	}
}
