package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/csheth/tapwrite/internal/backend"
	"github.com/csheth/tapwrite/internal/compose"
	"github.com/csheth/tapwrite/internal/config"
	"github.com/csheth/tapwrite/internal/logging"
	"github.com/csheth/tapwrite/internal/tui"
)

var (
	// Global flags
	configPath string
	backendURL string
	logFile    string
	verbose    bool

	// Interactive flags
	modeFlag    string
	noAltScreen bool

	cfg       *config.Config
	logger    *zap.Logger
	sessionID string
)

var rootCmd = &cobra.Command{
	Use:   "tapwrite",
	Short: "Compose text by picking candidates from a lookup service",
	Long: `tapwrite turns typed pinyin into text one pick at a time.

Typing looks up candidate words. Picking a word appends it to the output and
suggests sentences using it; picking a sentence splits it into fragments
that can be appended in turn.

Run without arguments to start the interactive composer.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runInteractive,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "lookup service base URL (overrides config and "+config.EnvBackend+")")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log destination, - for stderr (overrides config and "+config.EnvLog+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.Flags().StringVar(&modeFlag, "mode", "", "panel layout: classic or bci")
	rootCmd.Flags().BoolVar(&noAltScreen, "no-alt-screen", false, "disable the alternate screen buffer")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(weChatCmd)
	rootCmd.AddCommand(historyCmd)
}

// setup loads configuration, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if backendURL != "" {
		loaded.Backend.URL = backendURL
	}
	if logFile != "" {
		loaded.Log.Path = logFile
	}
	if modeFlag != "" {
		loaded.UI.Mode = modeFlag
	}
	if noAltScreen {
		loaded.UI.AltScreen = false
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = loaded

	sessionID = uuid.NewString()
	logger, err = logging.New(logging.Options{
		Path:      cfg.Log.Path,
		Level:     cfg.Log.Level,
		Verbose:   verbose,
		SessionID: sessionID,
	})
	if err != nil {
		return err
	}
	logger.Debug("configuration loaded",
		zap.String("config", configPath),
		zap.String("backend", cfg.Backend.URL),
		zap.String("mode", cfg.UI.Mode))
	return nil
}

func newClient() (*backend.Client, error) {
	clientConfig := cfg.BackendClientConfig()
	clientConfig.Logger = logger
	return backend.New(clientConfig)
}

func runInteractive(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	mode, err := compose.ParseMode(cfg.UI.Mode)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	opts := []tea.ProgramOption{}
	if cfg.UI.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	program := tea.NewProgram(
		tui.New(tui.Config{
			Lookup:      client,
			Messenger:   client,
			Mode:        mode,
			HistoryPath: cfg.History.Path,
			SessionID:   sessionID,
			Logger:      logger,
			Context:     ctx,
		}),
		opts...,
	)

	logger.Info("composer started", zap.String("backend", cfg.Backend.URL), zap.Stringer("mode", mode))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("program error: %w", err)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
