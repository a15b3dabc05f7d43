package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docextract/internal/app"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
)

var (
	convertFile string
	convertURL  string
	convertOut  string
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert one document to normalized text",
	Long:  "Run the primary conversion engine on a local file, falling back to OCR of --url when the engine reports errors.",
	RunE:  runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertFile, "file", "f", "", "path to a pdf, png, jpg or jpeg file (required)")
	convertCmd.Flags().StringVar(&convertURL, "url", "", "public URL of the same document, enables fallback")
	convertCmd.Flags().StringVarP(&convertOut, "output", "o", "", "write markdown here instead of stdout")
	_ = convertCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(convertCmd)
}

func convertLocal(ctx context.Context, path, url string) (string, error) {
	stage := pipeline.NewConvertStage(
		app.NewConverter(cfg.Conversion, logger),
		app.NewFallback(cfg.Fallback, logger),
		logger,
	)
	return stage.Run(ctx, pipeline.Submission{
		TaskID:      "cli",
		LocalPath:   path,
		FileName:    filepath.Base(path),
		DocumentURL: url,
	})
}

func runConvert(cmd *cobra.Command, _ []string) error {
	if _, err := os.Stat(convertFile); err != nil {
		return err
	}
	text, err := convertLocal(cmd.Context(), convertFile, convertURL)
	if err != nil {
		return err
	}
	return writeOutput(convertOut, []byte(text))
}

func writeOutput(path string, b []byte) error {
	if path == "" {
		_, err := fmt.Fprintln(os.Stdout, string(b))
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return err
	}
	logger.Info("output written", "path", path, "bytes", len(b))
	return nil
}
