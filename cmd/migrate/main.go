package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/juspay/airborne/internal/config"
	"github.com/juspay/airborne/internal/migrations"
	"github.com/juspay/airborne/pkg/logger"
)

func main() {
	var configPath string

	var manager *migrations.Manager
	var log *slog.Logger
	var db *sql.DB

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply and inspect the release engine's Postgres schema",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log = logger.NewLogger(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: "stdout"})

			db, err = sql.Open("pgx", cfg.Database.DSN())
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}

			manager, err = migrations.New(db, log)
			if err != nil {
				return fmt.Errorf("build migration manager: %w", err)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if db != nil {
				return db.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML configuration file")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return manager.Up(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recently applied migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return manager.Down(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied/pending state of every migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return manager.Status(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the current schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := manager.Version(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("current migration version: %d\n", version)
				return nil
			},
		},
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		if log != nil {
			log.Error("migration command failed", "error", err)
		} else {
			fmt.Fprintf(os.Stderr, "migration command failed: %v\n", err)
		}
		os.Exit(1)
	}
}
