// Package storage keeps uploaded documents on local disk under a bucket
// directory and exposes them by public URL.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
)

type Config struct {
	Root          string // directory holding bucket directories
	Bucket        string // default "documents"
	PublicBaseURL string // prefix for public URLs, e.g. http://localhost:8000/files
	TempDir       string // staging directory; empty uses os.TempDir()
}

// Object describes a stored upload.
type Object struct {
	Key         string // {user_id}/{uuid}{ext}
	URL         string
	Size        int64
	ContentType string
	SHA256      string
}

type LocalStore struct {
	cfg Config
	log *slog.Logger
}

func NewLocalStore(cfg Config, logger *slog.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "documents"
	}
	if cfg.Root == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "storage root is required", common.ErrInvalidInput)
	}
	if err := os.MkdirAll(filepath.Join(cfg.Root, cfg.Bucket), 0o755); err != nil {
		return nil, &common.StorageError{Op: "init", Path: cfg.Root, Err: err}
	}
	return &LocalStore{cfg: cfg, log: logger}, nil
}

// ObjectKey returns a fresh key for a user's upload, keeping the original extension.
func ObjectKey(userID, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return path.Join(userID, uuid.NewString()+ext)
}

// Upload copies r into the bucket under a new key for userID.
func (s *LocalStore) Upload(ctx context.Context, userID, fileName string, r io.Reader) (Object, error) {
	key := ObjectKey(userID, fileName)
	dst := s.objectPath(key)

	if err := ctx.Err(); err != nil {
		return Object{}, &common.StorageError{Op: "upload", Path: key, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Object{}, &common.StorageError{Op: "upload", Path: key, Err: err}
	}
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Object{}, &common.StorageError{Op: "upload", Path: key, Err: err}
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return Object{}, &common.StorageError{Op: "upload", Path: key, Err: err}
	}

	obj := Object{
		Key:         key,
		URL:         s.PublicURL(key),
		Size:        n,
		ContentType: constants.MimeTypeFor(fileName),
		SHA256:      hex.EncodeToString(h.Sum(nil)),
	}
	s.log.Info("storage.upload.ok", "bucket", s.cfg.Bucket, "key", key, "size", n, "content_type", obj.ContentType)
	return obj, nil
}

// UploadFile uploads a file already on disk.
func (s *LocalStore) UploadFile(ctx context.Context, userID, localPath string) (Object, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return Object{}, &common.StorageError{Op: "upload", Path: localPath, Err: err}
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			s.log.Warn("close file error", "path", localPath, "error", err)
		}
	}(f)
	return s.Upload(ctx, userID, filepath.Base(localPath), f)
}

// PublicURL is the URL a remote engine can fetch key from.
func (s *LocalStore) PublicURL(key string) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + s.cfg.Bucket + "/" + key
}

// StageTemp writes r to a new temp file keeping fileName's extension and returns its path.
func (s *LocalStore) StageTemp(fileName string, r io.Reader) (string, int64, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	f, err := os.CreateTemp(s.cfg.TempDir, "docextract-*"+ext)
	if err != nil {
		return "", 0, &common.StorageError{Op: "stage", Path: fileName, Err: err}
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", 0, &common.StorageError{Op: "stage", Path: f.Name(), Err: err}
	}
	s.log.Debug("storage.stage.ok", "path", f.Name(), "size", n)
	return f.Name(), n, nil
}

// Cleanup removes a staged file. A file that is already gone is not an error.
func (s *LocalStore) Cleanup(p string) error {
	if p == "" {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &common.StorageError{Op: "cleanup", Path: p, Err: err}
	}
	return nil
}

// Handler serves bucket objects under the given URL prefix.
func (s *LocalStore) Handler(prefix string) http.Handler {
	root := filepath.Join(s.cfg.Root, s.cfg.Bucket)
	return http.StripPrefix(strings.TrimRight(prefix, "/")+"/"+s.cfg.Bucket, http.FileServer(noListing{http.Dir(root)}))
}

func (s *LocalStore) objectPath(key string) string {
	return filepath.Join(s.cfg.Root, s.cfg.Bucket, filepath.FromSlash(key))
}

// noListing hides directory indexes.
type noListing struct{ fs http.FileSystem }

func (n noListing) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
