package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/elee1766/dataagent/src/storage"
)

// MigrateCmd manages application database migrations
type MigrateCmd struct {
	Up     MigrateUpCmd     `cmd:"" help:"Run pending migrations"`
	Status MigrateStatusCmd `cmd:"" help:"Show migration status"`
}

// MigrateUpCmd runs pending migrations
type MigrateUpCmd struct {
	DBPath string `help:"Database path (defaults to storage.path)"`
}

func (c *MigrateUpCmd) Run(cli *CLI) error {
	path, err := storagePath(cli, c.DBPath)
	if err != nil {
		return err
	}
	ctx := context.Background()

	db, err := storage.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	fmt.Fprintf(cli.stdout(), "Database migrated: %s\n", path)
	return printMigrations(ctx, cli, db)
}

// MigrateStatusCmd shows migration status
type MigrateStatusCmd struct {
	DBPath string `help:"Database path (defaults to storage.path)"`
}

func (c *MigrateStatusCmd) Run(cli *CLI) error {
	path, err := storagePath(cli, c.DBPath)
	if err != nil {
		return err
	}
	db, err := storage.OpenNoMigrate(path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	return printMigrations(context.Background(), cli, db)
}

func storagePath(cli *CLI, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	cfg, err := cli.loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.Storage.Path, nil
}

func printMigrations(ctx context.Context, cli *CLI, db *storage.DB) error {
	status, err := db.MigrationStatus(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cli.stdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
	for _, m := range status {
		applied := "pending"
		if m.AppliedAt != nil {
			applied = m.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", m.Version, m.Name, applied)
	}
	return tw.Flush()
}
