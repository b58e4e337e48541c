package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

type migrateOptions struct {
	databaseURL string
	path        string
}

// migrator is the part of *migrate.Migrate the commands drive.
type migrator interface {
	Up() error
	Steps(n int) error
	Version() (uint, bool, error)
}

// MigrationResult reports the schema state after a migrate command.
type MigrationResult struct {
	Command string `json:"command"`
	Changed bool   `json:"changed"`
	Version uint   `json:"version"`
	Dirty   bool   `json:"dirty"`
}

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &migrateOptions{}

	cmd := &cobra.Command{
		Use:       "migrate <up|down|version>",
		Short:     "Apply or inspect storefront Postgres migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.databaseURL == "" {
				opts.databaseURL = os.Getenv("DATABASE_URL")
			}
			if opts.path == "" {
				opts.path = os.Getenv("MIGRATIONS_PATH")
			}
			if opts.path == "" {
				opts.path = "file://migrations"
			}
			if opts.databaseURL == "" {
				return errors.New("DATABASE_URL environment variable or --database-url is required")
			}

			m, err := migrate.New(opts.path, opts.databaseURL)
			if err != nil {
				return fmt.Errorf("failed to create migrate instance: %w", err)
			}
			defer func() { _, _ = m.Close() }()

			res, err := runMigrate(m, args[0])
			if err != nil {
				return err
			}
			return rootOpts.print(cmd, res, func(w io.Writer) { printMigration(w, res) })
		},
	}

	cmd.Flags().StringVar(&opts.databaseURL, "database-url", "", "Postgres connection URL (default $DATABASE_URL)")
	cmd.Flags().StringVar(&opts.path, "path", "", "migrations source URL (default $MIGRATIONS_PATH or file://migrations)")

	return cmd
}

func runMigrate(m migrator, command string) (MigrationResult, error) {
	res := MigrationResult{Command: command}

	var err error
	switch command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	case "version":
	default:
		return res, fmt.Errorf("unknown migrate command %q", command)
	}

	switch {
	case errors.Is(err, migrate.ErrNoChange):
	case err != nil:
		return res, fmt.Errorf("migration %s failed: %w", command, err)
	default:
		res.Changed = command != "version"
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return res, fmt.Errorf("failed to get version: %w", err)
	}
	res.Version, res.Dirty = version, dirty

	return res, nil
}

func printMigration(w io.Writer, res MigrationResult) {
	switch {
	case res.Command == "version" && res.Version == 0:
		_, _ = fmt.Fprintln(w, "no migrations applied yet")
	case res.Command == "version":
		_, _ = fmt.Fprintf(w, "current version %d (dirty=%t)\n", res.Version, res.Dirty)
	case !res.Changed:
		_, _ = fmt.Fprintf(w, "no change, version %d\n", res.Version)
	default:
		_, _ = fmt.Fprintf(w, "migrated %s, now at version %d\n", res.Command, res.Version)
	}
}
