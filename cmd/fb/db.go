package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/floorboard/internal/config"
	"github.com/zulandar/floorboard/internal/db"
	"github.com/zulandar/floorboard/internal/store"
	"gorm.io/gorm"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Floorboard database",
		Long:  "Creates the database if needed, migrates all tables and seeds the roles from the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded config for owner %q from %s\n", cfg.Owner, configPath)

	adminDB, err := db.ConnectAdmin(cfg.Database)
	if err != nil {
		return err
	}
	if adminDB != nil {
		if err := db.CreateDatabase(adminDB, cfg.Database.Driver, cfg.Database.Name); err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s ready\n", cfg.Database.Name)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	return migrateAndSeed(cmd, cfg, gormDB, db.AutoMigrate)
}

func migrateAndSeed(cmd *cobra.Command, cfg *config.Config, gormDB *gorm.DB, migrate func(*gorm.DB) error) error {
	out := cmd.OutOrStdout()
	if err := migrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	s := store.New(store.Opts{DB: gormDB, Logger: cfg.Log.NewLogger(cmd.ErrOrStderr())})
	if err := db.SeedRoles(context.Background(), s, cfg.Roles); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %s:", plural(len(cfg.Roles), "role"))
	for _, r := range cfg.Roles {
		fmt.Fprintf(out, " %s", r.ID)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "\nFloorboard database initialized successfully.")
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-create every Floorboard table",
		Long: `Drops every Floorboard table, migrates them again and re-seeds the roles
from the config file. All tasks, users and notifications are lost.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	name := cfg.Database.Name
	if cfg.Database.Driver == config.DriverSQLite {
		name = cfg.Database.Path
	}
	if !skipConfirm && !confirmReset(cmd, name) {
		fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
		return nil
	}
	return migrateAndSeed(cmd, cfg, gormDB, db.Reset)
}

func confirmReset(cmd *cobra.Command, dbName string) bool {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "WARNING: This will permanently delete all data in database %q.\n", dbName)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
