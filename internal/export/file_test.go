package export

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func newTestExporter(t *testing.T) (*FileExporter, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "out")
	exporter, err := NewFileExporter(dir, zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("new exporter failed: %v", err)
	}
	return exporter, dir
}

func TestFileExporterSave(t *testing.T) {
	t.Parallel()

	exporter, dir := newTestExporter(t)
	path, err := exporter.Save(context.Background(), "transcript-2024-01-02T03-04-05.txt", []byte("hi"))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if path != filepath.Join(dir, "transcript-2024-01-02T03-04-05.txt") {
		t.Fatalf("unexpected path: %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "hi" {
		t.Fatalf("unexpected file contents: %q err=%v", data, err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, got %d entries", len(entries))
	}
}

func TestFileExporterCollisionSuffix(t *testing.T) {
	t.Parallel()

	exporter, dir := newTestExporter(t)
	for i, want := range []string{"notes.txt", "notes (1).txt", "notes (2).txt"} {
		path, err := exporter.Save(context.Background(), "notes.txt", []byte{byte('a' + i)})
		if err != nil {
			t.Fatalf("save %d failed: %v", i, err)
		}
		if filepath.Base(path) != want {
			t.Fatalf("save %d wrote %q, want %q", i, filepath.Base(path), want)
		}
	}

	first, _ := os.ReadFile(filepath.Join(dir, "notes.txt"))
	if string(first) != "a" {
		t.Fatalf("existing file was overwritten: %q", first)
	}
}

func TestFileExporterRejectsPathNames(t *testing.T) {
	t.Parallel()

	exporter, _ := newTestExporter(t)
	for _, name := range []string{"", "..", "../escape.txt", "sub/dir.txt"} {
		if _, err := exporter.Save(context.Background(), name, []byte("x")); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("expected invalid name error for %q, got %v", name, err)
		}
	}
}

func TestFileExporterCancelledContext(t *testing.T) {
	t.Parallel()

	exporter, dir := newTestExporter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := exporter.Save(ctx, "x.txt", []byte("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected nothing to be written")
	}
}

func TestNewFileExporterDefaultsToDownloads(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	exporter, err := NewFileExporter("", zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("new exporter failed: %v", err)
	}
	if exporter.Dir() != filepath.Join(home, "Downloads") {
		t.Fatalf("unexpected default dir: %q", exporter.Dir())
	}
}
