package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Simplici0/kalkia/internal/db"
	"github.com/Simplici0/kalkia/internal/migrations"
	"github.com/Simplici0/kalkia/internal/seed"
)

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Apply all pending migrations to the SQLite database and print the
resulting schema version.

Examples:
  kalkia migrate
  kalkia migrate --db ./kalkia.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			database, err := db.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer database.Close()

			ctx := cmd.Context()
			applied, err := migrations.Up(ctx, database)
			if err != nil {
				return err
			}
			version, err := migrations.Version(ctx, database)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations, schema version %d\n", applied, version)
			return nil
		},
	}
}

func newSeedCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo catalog",
		Long: `Insert demo components, variants, materials, rules, building profiles
and global factors. Rows that already exist are left untouched, so seeding
twice is safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			database, err := db.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer database.Close()

			ctx := cmd.Context()
			if _, err := migrations.Up(ctx, database); err != nil {
				return err
			}
			stats, err := seed.Run(ctx, database)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d rows\n", stats.Inserts)
			return nil
		},
	}
}
