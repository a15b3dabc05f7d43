package ocr

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/docextract/constants"
)

func (e *Extractor) extractImage(ctx context.Context, path string) ExtractionResult {
	page := Page{Number: 1, Method: "image-ocr"}
	if txt, err := e.tesseractOCR(ctx, path); err != nil {
		page.Err = err
	} else {
		page.Text = Normalize(txt)
	}
	return ExtractionResult{SourceType: constants.IMAGE, Pages: []Page{page}}
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return string(out), nil
}
