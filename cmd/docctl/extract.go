package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docextract/internal/app"
	"github.com/joseph-ayodele/docextract/internal/llm"
	"github.com/joseph-ayodele/docextract/internal/presets"
	"github.com/joseph-ayodele/docextract/internal/services/ingest"
)

var (
	extractFile     string
	extractURL      string
	extractMetadata string
	extractOut      string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Convert one document and extract the requested fields",
	Long: `Convert a local document and run field extraction against the normalized text.
Metadata uses the same JSON as POST /process, e.g. {"document_type":"paystub"}.
Prefix the value with @ to read it from a file.`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractFile, "file", "f", "", "path to a pdf, png, jpg or jpeg file (required)")
	extractCmd.Flags().StringVar(&extractURL, "url", "", "public URL of the same document, enables fallback")
	extractCmd.Flags().StringVarP(&extractMetadata, "metadata", "m", "", "metadata JSON or @file (required)")
	extractCmd.Flags().StringVarP(&extractOut, "output", "o", "", "write the JSON result here instead of stdout")
	_ = extractCmd.MarkFlagRequired("file")
	_ = extractCmd.MarkFlagRequired("metadata")
	rootCmd.AddCommand(extractCmd)
}

type extractOutput struct {
	Markdown string            `json:"markdown"`
	Data     map[string]string `json:"data"`
}

func runExtract(cmd *cobra.Command, _ []string) error {
	raw, err := readMetadata(extractMetadata)
	if err != nil {
		return err
	}
	parser, err := metadataParser()
	if err != nil {
		return err
	}
	schema, err := parser.Parse(raw)
	if err != nil {
		return err
	}
	if _, err := os.Stat(extractFile); err != nil {
		return err
	}

	ctx := cmd.Context()
	text, err := convertLocal(ctx, extractFile, extractURL)
	if err != nil {
		return err
	}
	data, err := app.NewExtractor(cfg.LLM, nil, logger).Extract(ctx, llm.Request{
		Text:         text,
		DocumentType: schema.DocumentType,
		Fields:       schema.Fields,
	})
	if err != nil {
		return err
	}

	b, err := json.MarshalIndent(extractOutput{Markdown: text, Data: data}, "", "  ")
	if err != nil {
		return err
	}
	return writeOutput(extractOut, b)
}

func readMetadata(v string) ([]byte, error) {
	if len(v) > 1 && v[0] == '@' {
		return os.ReadFile(v[1:])
	}
	return []byte(v), nil
}

func metadataParser() (*ingest.MetadataParser, error) {
	set, err := presets.Load(cfg.PresetsFile)
	if err != nil {
		return nil, err
	}
	return ingest.NewMetadataParser(set)
}
