package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docextract/internal/repository"
	"github.com/joseph-ayodele/docextract/internal/server"
)

var dbHealthTimeout time.Duration

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the job and document tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := server.ConnectDB(cmd.Context(), cfg.Database, logger)
		if err != nil {
			return err
		}
		db.Close()
		fmt.Printf("migrated %s database\n", cfg.Database.Driver)
		return nil
	},
}

var dbHealthCmd = &cobra.Command{
	Use:   "dbhealth",
	Short: "Check that the record database is reachable",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		db, err := repository.Open(ctx, repository.Config{
			Driver:      cfg.Database.Driver,
			DSN:         cfg.Database.DSN,
			DialTimeout: cfg.Database.DialTimeout,
		}, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := server.PingDB(ctx, db, logger, dbHealthTimeout); err != nil {
			return err
		}
		fmt.Println("DB health OK")
		return nil
	},
}

func init() {
	dbHealthCmd.Flags().DurationVar(&dbHealthTimeout, "timeout", 3*time.Second, "ping timeout")
	rootCmd.AddCommand(migrateCmd, dbHealthCmd)
}
