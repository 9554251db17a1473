package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrFileTooLarge is returned by Stage when the upload exceeds its limit.
var ErrFileTooLarge = errors.New("uploaded file exceeds size limit")

// StagedFile is an upload written to the staging directory.
type StagedFile struct {
	Path         string
	OriginalName string
	Size         int64
}

// Staging keeps uploads on disk for the duration of one ingestion.
type Staging struct {
	dir string
	now func() time.Time
}

// NewStaging prepares dir, creating it when missing.
func NewStaging(dir string) (*Staging, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Staging{dir: dir, now: time.Now}, nil
}

// Dir returns the staging directory.
func (s *Staging) Dir() string {
	return s.dir
}

// Stage copies at most limit bytes of r into a new file. Oversized uploads
// are removed before ErrFileTooLarge is returned.
func (s *Staging) Stage(r io.Reader, originalName string, limit int64) (StagedFile, error) {
	name := fmt.Sprintf("%d-%s-%s", s.now().UnixNano(), uuid.NewString()[:8], sanitizeName(originalName))
	path := filepath.Join(s.dir, name)

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return StagedFile{}, fmt.Errorf("create staged file: %w", err)
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, copyErr := io.Copy(out, src)
	closeErr := out.Close()

	staged := StagedFile{Path: path, OriginalName: originalName, Size: n}
	switch {
	case copyErr != nil:
		_ = s.Discard(staged)
		return StagedFile{}, fmt.Errorf("write staged file: %w", copyErr)
	case closeErr != nil:
		_ = s.Discard(staged)
		return StagedFile{}, fmt.Errorf("close staged file: %w", closeErr)
	case limit > 0 && n > limit:
		_ = s.Discard(staged)
		return StagedFile{}, ErrFileTooLarge
	}
	return staged, nil
}

// Read loads a staged file into memory.
func (s *Staging) Read(f StagedFile) ([]byte, error) {
	return os.ReadFile(f.Path)
}

// Discard deletes a staged file. A file that is already gone is not an error.
func (s *Staging) Discard(f StagedFile) error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Sweep deletes regular files in the staging directory last modified before
// maxAge ago and returns how many it removed.
func (s *Staging) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read upload dir: %w", err)
	}
	cutoff := s.now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func sanitizeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "upload"
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if len(out) > 64 {
		out = out[len(out)-64:]
	}
	return out
}
