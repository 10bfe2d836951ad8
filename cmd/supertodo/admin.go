package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/supertodo/internal/model"
	"github.com/nhle/supertodo/internal/store"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := store.NewSQLiteStore(cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("opening store %s: %w", cfg.Store.Path, err)
			}
			defer st.Close()

			v, err := st.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s at schema v%d\n", cfg.Store.Path, v)
			return nil
		},
	}
}

func newInitConfigCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write the effective configuration to --config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("config %s already exists (use --force to overwrite)", configPath)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := model.SaveConfig(configPath, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
