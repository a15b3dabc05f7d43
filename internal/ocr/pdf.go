package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/docextract/constants"
)

// extractPDF reads the embedded text layer and OCRs only the pages that have none.
func (e *Extractor) extractPDF(ctx context.Context, path string) (ExtractionResult, error) {
	res := ExtractionResult{SourceType: constants.PDF}

	texts, err := e.pdfToText(ctx, path)
	if err != nil {
		e.logger.Warn("ocr.pdf.text_layer_failed", "path", path, "error", err)
		pages, ocrErr := e.pdfToOCR(ctx, path)
		if ocrErr != nil {
			return res, fmt.Errorf("pdf text and ocr both failed: %w", ocrErr)
		}
		res.Pages = pages
		return res, nil
	}

	for i, txt := range texts {
		if e.cfg.MaxPages > 0 && i >= e.cfg.MaxPages {
			break
		}
		num := i + 1
		if norm := Normalize(txt); norm != "" {
			res.Pages = append(res.Pages, Page{Number: num, Text: norm, Method: "pdf-text"})
			continue
		}
		res.Pages = append(res.Pages, e.ocrPDFPage(ctx, path, num))
	}
	return res, nil
}

// pdfToText splits pdftotext output on the form feed page separator.
func (e *Extractor) pdfToText(ctx context.Context, path string) ([]string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w: %s", err, truncate(string(errb), 512))
	}
	pages := strings.Split(string(out), "\f")
	// pdftotext terminates the last page with \f too
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages, nil
}

func (e *Extractor) ocrPDFPage(ctx context.Context, path string, num int) Page {
	page := Page{Number: num, Method: "pdf-ocr"}
	tmpDir, err := os.MkdirTemp("", "docx-pp-*")
	if err != nil {
		page.Err = err
		return page
	}
	defer e.removeAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	n := strconv.Itoa(num)
	// pdftoppm -f N -l N -r 300 -png <in.pdf> <tmp/page>
	if _, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-f", n, "-l", n, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix); err != nil {
		page.Err = fmt.Errorf("pdftoppm page %d: %w: %s", num, err, truncate(string(errb), 512))
		return page
	}
	matches, _ := filepath.Glob(prefix + "*.png")
	if len(matches) == 0 {
		page.Err = fmt.Errorf("pdftoppm page %d produced no image", num)
		return page
	}
	txt, err := e.tesseractOCR(ctx, matches[0])
	if err != nil {
		page.Err = err
		return page
	}
	page.Text = Normalize(txt)
	return page
}

// pdfToOCR rasterizes every page and OCRs each one.
func (e *Extractor) pdfToOCR(ctx context.Context, path string) ([]Page, error) {
	tmpDir, err := os.MkdirTemp("", "docx-pp-*")
	if err != nil {
		return nil, err
	}
	defer e.removeAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	if _, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no pages rendered")
	}

	pages := make([]Page, 0, len(matches))
	for i, img := range matches {
		p := Page{Number: i + 1, Method: "pdf-ocr"}
		if txt, err := e.tesseractOCR(ctx, img); err != nil {
			p.Err = err
		} else {
			p.Text = Normalize(txt)
		}
		pages = append(pages, p)
	}
	return pages, nil
}

func (e *Extractor) removeAll(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		e.logger.Warn("ocr.tmp.remove_failed", "dir", dir, "error", err)
	}
}
