package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/banktx/internal/buildinfo"
	"github.com/cleared-dev/banktx/internal/config"
	"github.com/cleared-dev/banktx/internal/ledger"
	"github.com/cleared-dev/banktx/internal/logger"
	"github.com/cleared-dev/banktx/internal/store"
	"github.com/cleared-dev/banktx/internal/view"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "banktx",
		Short:   "Import, deduplicate and list bank transactions from CSV",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.FileName, "path to banktx.yaml")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newImportCommand(&configPath))
	rootCmd.AddCommand(newListCommand(&configPath))
	rootCmd.AddCommand(newExportCommand(&configPath))
	rootCmd.AddCommand(newServeCommand(&configPath))

	return rootCmd
}

// env is everything a command needs once the config is loaded.
type env struct {
	cfg       *config.Config
	log       zerolog.Logger
	store     store.Store
	ledger    *ledger.Service
	formatter *view.Formatter
}

// openEnv loads the config at path and opens the store it names. Relative
// paths in the config are resolved against the config file's directory.
func openEnv(ctx context.Context, path string) (*env, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	base := filepath.Dir(path)
	cfg.Store.Path = resolve(base, cfg.Store.Path)
	cfg.Import.Inbox = resolve(base, cfg.Import.Inbox)
	cfg.Import.LogFile = resolve(base, cfg.Import.LogFile)

	log, err := logger.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}

	opts, err := view.OptionsFromConfig(cfg.Display)
	if err != nil {
		return nil, err
	}

	s, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	return &env{
		cfg:       cfg,
		log:       log,
		store:     s,
		ledger:    ledger.NewService(s),
		formatter: view.New(opts),
	}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
