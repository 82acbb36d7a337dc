// Package main provides the CLI entrypoint for dactilo.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ayusman/dactilo/internal/config"
	"github.com/ayusman/dactilo/internal/logging"
	"github.com/ayusman/dactilo/internal/session"
	"github.com/ayusman/dactilo/internal/store"
)

var configPath string

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "dactilo",
		Short:        "Real-time fingerspelling recognition",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "path to the TOML config file")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newDatasetCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// loadConfig reads the config file and initializes logging from it.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	logging.Init(cfg.Log)
	return cfg, nil
}

// openDataset opens the database and a session over its stored dataset.
func openDataset(cfg config.Config) (*store.Store, *session.Session, error) {
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db: %w", err)
	}
	sess := session.New(cfg.Session, st.Settings())
	if err := sess.Load(); err != nil {
		st.Close()
		return nil, nil, err
	}
	return st, sess, nil
}

func newConfigCmd() *cobra.Command {
	var printOnly bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create the config file with every default commented out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if printOnly {
				fmt.Fprint(out, config.Template())
				return nil
			}

			if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}
			if _, err := os.Stat(configPath); err == nil {
				fmt.Fprintf(out, "Config already exists: %s\n", configPath)
				return nil
			} else if !os.IsNotExist(err) {
				return fmt.Errorf("failed to stat config: %w", err)
			}
			if err := os.WriteFile(configPath, []byte(config.Template()), 0o644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Fprintf(out, "Wrote %s\n", configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the template instead of writing it")
	return cmd
}
