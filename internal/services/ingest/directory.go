package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/docextract/constants"
)

// FileResult is the per-file outcome of a directory submission.
type FileResult struct {
	Path   string
	TaskID string
	Err    string
}

// DirStats summarizes a directory submission.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Submitted uint32
	Failed    uint32
}

// DirectoryRequest submits every allowed file under Root with one metadata document.
type DirectoryRequest struct {
	UserID     string
	Root       string
	SkipHidden bool
	Metadata   []byte
}

// SubmitDirectory walks Root and submits each matching file. onFile, when set,
// is called after every matched file.
func (s *Service) SubmitDirectory(ctx context.Context, req DirectoryRequest, onFile func(FileResult)) ([]FileResult, DirStats, error) {
	root := strings.TrimSpace(req.Root)
	if root == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}
	if _, err := s.meta.Parse(req.Metadata); err != nil {
		return nil, DirStats{}, err
	}

	var (
		results []FileResult
		stats   DirStats
	)
	report := func(r FileResult) {
		results = append(results, r)
		if onFile != nil {
			onFile(r)
		}
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			stats.Failed++
			report(FileResult{Path: path, Err: walkErr.Error()})
			return nil
		}
		if req.SkipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !constants.IsAllowedFile(path) {
			return nil
		}
		stats.Matched++

		f, err := os.Open(path)
		if err != nil {
			stats.Failed++
			report(FileResult{Path: path, Err: err.Error()})
			return nil
		}
		res, err := s.Submit(ctx, SubmitRequest{
			UserID:   req.UserID,
			FileName: filepath.Base(path),
			Content:  f,
			Metadata: req.Metadata,
		})
		_ = f.Close()
		if err != nil {
			stats.Failed++
			report(FileResult{Path: path, Err: err.Error()})
			return nil
		}
		stats.Submitted++
		report(FileResult{Path: path, TaskID: res.TaskID})
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}

	s.logger.Info("ingest.directory.done", "root", root, "scanned", stats.Scanned, "matched", stats.Matched,
		"submitted", stats.Submitted, "failed", stats.Failed)
	return results, stats, nil
}

// CountDocuments returns how many allowed files SubmitDirectory would visit.
func CountDocuments(root string, skipHidden bool) (int, error) {
	n := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && constants.IsAllowedFile(path) {
			n++
		}
		return nil
	})
	return n, err
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}
