package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/app"
	"github.com/joseph-ayodele/docextract/internal/export"
	"github.com/joseph-ayodele/docextract/internal/services/ingest"
)

var (
	batchDir        string
	batchMetadata   string
	batchUser       string
	batchOut        string
	batchSkipHidden bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Submit every document under a directory and wait for the results",
	Long: `Walk a directory, submit each pdf/png/jpg/jpeg through the same path as POST /process,
wait for the workers to drain, then write an XLSX export of the processed documents.`,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&batchDir, "dir", "d", "", "directory to process documents from (required)")
	batchCmd.Flags().StringVarP(&batchMetadata, "metadata", "m", "", "metadata JSON or @file applied to every document (required)")
	batchCmd.Flags().StringVar(&batchUser, "user", "local", "user id recorded on the documents")
	batchCmd.Flags().StringVarP(&batchOut, "output", "o", "", "XLSX output path (defaults to documents.xlsx beside --dir)")
	batchCmd.Flags().BoolVar(&batchSkipHidden, "skip-hidden", true, "skip dot files and directories")
	_ = batchCmd.MarkFlagRequired("dir")
	_ = batchCmd.MarkFlagRequired("metadata")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	raw, err := readMetadata(batchMetadata)
	if err != nil {
		return err
	}
	if batchOut == "" {
		batchOut = filepath.Join(filepath.Dir(filepath.Clean(batchDir)), "documents.xlsx")
	}
	total, err := ingest.CountDocuments(batchDir, batchSkipHidden)
	if err != nil {
		return err
	}
	if total == 0 {
		return errors.New("no pdf, png, jpg or jpeg files found")
	}

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	start := time.Now()

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("submitting"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(os.Stderr) }),
	)
	results, stats, err := a.Ingest.SubmitDirectory(ctx, ingest.DirectoryRequest{
		UserID:     batchUser,
		Root:       batchDir,
		SkipHidden: batchSkipHidden,
		Metadata:   raw,
	}, func(ingest.FileResult) { _ = bar.Add(1) })
	_ = bar.Finish()
	if err != nil {
		a.Close(ctx)
		return err
	}

	// Draining the queue lets every submitted task reach a terminal state.
	a.Queue.Shutdown(ctx)

	var completed, failed int
	for _, r := range results {
		if r.Err != "" {
			logger.Warn("batch.submit.failed", "path", r.Path, "error", r.Err)
			continue
		}
		t, ok := a.Tasks.Get(r.TaskID)
		if !ok {
			continue
		}
		switch t.Status {
		case constants.TaskStatusCompleted:
			completed++
		case constants.TaskStatusFailed:
			failed++
			logger.Warn("batch.document.failed", "path", r.Path, "error", t.Error)
		}
	}

	xlsx, err := a.Export.ExportDocumentsXLSX(ctx, export.Filter{UserID: batchUser})
	a.Close(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(batchOut, xlsx, 0o644); err != nil {
		return err
	}

	logger.Info("batch done",
		"matched", stats.Matched,
		"submitted", stats.Submitted,
		"submit_failed", stats.Failed,
		"completed", completed,
		"failed", failed,
		"output", batchOut,
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	return nil
}
