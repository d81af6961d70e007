package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/banktx/internal/config"
	"github.com/cleared-dev/banktx/internal/store"
)

func newInitCommand() *cobra.Command {
	var driver string
	var dsn string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new banktx project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			cfg := config.Default()
			cfg.Store.Driver = driver
			cfg.Store.DSN = dsn
			if cfg.Store.DSN == "" {
				cfg.Store.DSN = os.Getenv(config.DSNEnv)
			}
			return runInit(cmd, absDir, cfg)
		},
	}

	cmd.Flags().StringVar(&driver, "driver", config.DriverFile, "store driver: file, memory or postgres")
	cmd.Flags().StringVar(&dsn, "dsn", "", "postgres connection URL (postgres driver only)")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	path := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	dirs := []string{
		filepath.Dir(cfg.Store.Path),
		filepath.Dir(cfg.Import.LogFile),
		cfg.Import.Inbox,
		filepath.Join(cfg.Import.Inbox, "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, cfg.Import.Inbox, ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	gitignore := "data/\nlogs/\n" + filepath.ToSlash(filepath.Join(cfg.Import.Inbox, "processed")) + "/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	// The DSN may carry credentials; keep it out of the file when the
	// environment provides it.
	saved := *cfg
	if os.Getenv(config.DSNEnv) == cfg.Store.DSN {
		saved.Store.DSN = ""
	}
	if err := config.Save(path, &saved); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	if cfg.Store.Driver == config.DriverPostgres {
		s, err := store.OpenPostgres(cmd.Context(), cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer s.Close()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized banktx project at %s\n", dir)
	return nil
}
