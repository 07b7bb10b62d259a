package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"livescribe/internal/logging"
)

const maxCollisions = 1000

var ErrInvalidName = errors.New("export file name must be a plain file name")

// FileExporter writes transcripts into a directory. Files appear atomically
// and never overwrite an existing file.
type FileExporter struct {
	dir string
	log zerolog.Logger
}

// NewFileExporter exports into dir, or the user's Downloads folder when dir
// is empty.
func NewFileExporter(dir string, log zerolog.Logger) (*FileExporter, error) {
	if strings.TrimSpace(dir) == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dir = filepath.Join(home, "Downloads")
	}
	return &FileExporter{dir: dir, log: logging.Component(log, "export")}, nil
}

// Dir returns the export directory.
func (e *FileExporter) Dir() string { return e.dir }

// Save writes data as name inside the export directory and returns the
// final path. An existing file gets a " (n)" suffix before the extension.
func (e *FileExporter) Save(ctx context.Context, name string, data []byte) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(e.dir, ".livescribe-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write transcript: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to sync transcript: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close transcript: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return "", fmt.Errorf("failed to set transcript permissions: %w", err)
	}

	target, err := e.claim(name, tmpPath)
	if err != nil {
		return "", err
	}
	committed = true
	e.log.Debug().Str("path", target).Int("bytes", len(data)).Msg("transcript exported")
	return target, nil
}

// claim links the temp file to the first free name. Link fails when the
// target exists, so two saves can never clobber each other.
func (e *FileExporter) claim(name string, tmpPath string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for n := 0; n < maxCollisions; n++ {
		candidate := name
		if n > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, n, ext)
		}
		target := filepath.Join(e.dir, candidate)

		err := os.Link(tmpPath, target)
		if err == nil {
			_ = os.Remove(tmpPath)
			return target, nil
		}
		if errors.Is(err, os.ErrExist) {
			continue
		}
		// Filesystems without hard links fall back to a checked rename.
		if _, statErr := os.Stat(target); statErr == nil {
			continue
		}
		if err := os.Rename(tmpPath, target); err != nil {
			return "", fmt.Errorf("failed to move transcript into place: %w", err)
		}
		return target, nil
	}
	return "", fmt.Errorf("too many files named like %q", name)
}
