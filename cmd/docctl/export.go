package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/export"
	"github.com/joseph-ayodele/docextract/internal/repository"
	"github.com/joseph-ayodele/docextract/internal/server"
)

var (
	exportOut    string
	exportUser   string
	exportStatus string
	exportFrom   string
	exportTo     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write stored documents and their extracted fields to XLSX",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "documents.xlsx", "XLSX output path")
	exportCmd.Flags().StringVar(&exportUser, "user", "", "only documents owned by this user")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "only documents in this status (processing|completed|failed)")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "from date YYYY-MM-DD")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "to date YYYY-MM-DD")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	f := export.Filter{UserID: exportUser, Status: constants.DocumentStatus(exportStatus)}
	var err error
	if f.From, err = parseDateFlag("from", exportFrom); err != nil {
		return err
	}
	if f.To, err = parseDateFlag("to", exportTo); err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := export.NewService(repository.NewDocumentRepository(db, logger), logger)
	xlsx, err := svc.ExportDocumentsXLSX(ctx, f)
	if err != nil {
		return err
	}
	return os.WriteFile(exportOut, xlsx, 0o644)
}

func parseDateFlag(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s date format, use YYYY-MM-DD: %w", name, err)
	}
	return &t, nil
}
