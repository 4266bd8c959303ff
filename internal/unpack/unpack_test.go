package unpack

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/envboot/envboot/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewLogger(io.Discard, "test")
}

// buildTarGz writes a tar.gz archive containing the given file map.
func buildTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

// buildZip writes a zip archive containing the given file map.
func buildZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestUnpack_TarGz verifies extraction, nested directories, and archive
// removal on success.
func TestUnpack_TarGz(t *testing.T) {
	t.Parallel()
	work := t.TempDir()
	archive := filepath.Join(work, "model.tar.gz")
	dest := filepath.Join(work, "models", "acoustic")
	buildTarGz(t, archive, map[string]string{
		"weights.bin":     "weights",
		"conf/model.yaml": "rate: 16000",
	})

	u := NewUnpacker(testLogger(), false)
	if err := u.Unpack(Item{Name: "acoustic-model", Archive: archive, Dest: dest}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "conf", "model.yaml"))
	if err != nil {
		t.Fatalf("nested file missing: %v", err)
	}
	if string(got) != "rate: 16000" {
		t.Errorf("content = %q", got)
	}
	if _, err := os.Stat(archive); !os.IsNotExist(err) {
		t.Error("archive should be removed after successful extraction")
	}
}

// TestUnpack_Zip verifies the zip path.
func TestUnpack_Zip(t *testing.T) {
	t.Parallel()
	work := t.TempDir()
	archive := filepath.Join(work, "tools.zip")
	dest := filepath.Join(work, "tools")
	buildZip(t, archive, map[string]string{"bin/convert": "#!/bin/sh"})

	u := NewUnpacker(testLogger(), false)
	if err := u.Unpack(Item{Name: "tools", Archive: archive, Dest: dest}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "bin", "convert")); err != nil {
		t.Errorf("extracted file missing: %v", err)
	}
}

// tarEntry describes one entry for buildTarGzEntries: a regular file when
// Link is empty, a symlink otherwise.
type tarEntry struct {
	Name    string
	Content string
	Link    string
}

// buildTarGzEntries writes a tar.gz archive preserving entry order, so tests
// can place symlinks before the files routed through them.
func buildTarGzEntries(t *testing.T, path string, entries []tarEntry) {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: 0o644}
		if e.Link != "" {
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.Link
			hdr.Mode = 0o777
		} else {
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.Content))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if e.Link == "" {
			if _, err := tw.Write([]byte(e.Content)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestUnpack_RejectsEscapingEntries verifies the traversal guard.
func TestUnpack_RejectsEscapingEntries(t *testing.T) {
	t.Parallel()
	work := t.TempDir()
	archive := filepath.Join(work, "evil.tar.gz")
	dest := filepath.Join(work, "dest")
	buildTarGz(t, archive, map[string]string{"../outside.txt": "nope"})

	u := NewUnpacker(testLogger(), false)
	if err := u.Unpack(Item{Name: "evil", Archive: archive, Dest: dest}); err == nil {
		t.Fatal("expected traversal entry to be rejected")
	}
	if _, err := os.Stat(filepath.Join(work, "outside.txt")); !os.IsNotExist(err) {
		t.Error("escaping entry must not be written")
	}
}

// TestUnpack_RejectsEscapingSymlinks verifies a symlink cannot be used to
// route a later file outside the destination.
func TestUnpack_RejectsEscapingSymlinks(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		link string
	}{
		{"absolute target", ""}, // filled in below with a path outside dest
		{"relative target", "../../outside"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			work := t.TempDir()
			outside := filepath.Join(work, "outside")
			link := tt.link
			if link == "" {
				link = outside
			}

			archive := filepath.Join(work, "evil.tar.gz")
			dest := filepath.Join(work, "dest")
			buildTarGzEntries(t, archive, []tarEntry{
				{Name: "exit", Link: link},
				{Name: "exit/pwned", Content: "escaped"},
			})

			u := NewUnpacker(testLogger(), false)
			if err := u.Unpack(Item{Name: "evil", Archive: archive, Dest: dest}); err == nil {
				t.Fatal("expected escaping symlink to be rejected")
			}
			if _, err := os.Stat(filepath.Join(outside, "pwned")); !os.IsNotExist(err) {
				t.Error("file must not be written outside the destination")
			}
			if _, err := os.Stat(filepath.Join(work, "pwned")); !os.IsNotExist(err) {
				t.Error("file must not be written outside the destination")
			}
		})
	}
}

// TestUnpack_AllowsInternalSymlinks verifies symlinks staying inside the
// destination still extract.
func TestUnpack_AllowsInternalSymlinks(t *testing.T) {
	t.Parallel()
	work := t.TempDir()
	archive := filepath.Join(work, "model.tar.gz")
	dest := filepath.Join(work, "dest")
	buildTarGzEntries(t, archive, []tarEntry{
		{Name: "weights/v2.bin", Content: "weights"},
		{Name: "current", Link: "weights/v2.bin"},
	})

	u := NewUnpacker(testLogger(), false)
	if err := u.Unpack(Item{Name: "model", Archive: archive, Dest: dest}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dest, "current"))
	if err != nil {
		t.Fatalf("reading through symlink: %v", err)
	}
	if string(got) != "weights" {
		t.Errorf("content = %q", got)
	}
}

// TestUnpack_UnsupportedFormat verifies unknown extensions error out and the
// archive is kept for inspection.
func TestUnpack_UnsupportedFormat(t *testing.T) {
	t.Parallel()
	work := t.TempDir()
	archive := filepath.Join(work, "blob.rar")
	if err := os.WriteFile(archive, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	u := NewUnpacker(testLogger(), false)
	if err := u.Unpack(Item{Name: "blob", Archive: archive, Dest: work}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if _, err := os.Stat(archive); err != nil {
		t.Error("failed unpack should keep the archive")
	}
}

// TestUnpackAll verifies sequential processing and fail-fast ordering.
func TestUnpackAll(t *testing.T) {
	t.Parallel()
	work := t.TempDir()
	good := filepath.Join(work, "good.tar.gz")
	bad := filepath.Join(work, "bad.tar.gz")
	never := filepath.Join(work, "never.tar.gz")
	buildTarGz(t, good, map[string]string{"a": "1"})
	if err := os.WriteFile(bad, []byte("not gzip"), 0o644); err != nil {
		t.Fatal(err)
	}
	buildTarGz(t, never, map[string]string{"c": "3"})

	u := NewUnpacker(testLogger(), false)
	err := u.UnpackAll(context.Background(), []Item{
		{Name: "good", Archive: good, Dest: filepath.Join(work, "good")},
		{Name: "bad", Archive: bad, Dest: filepath.Join(work, "bad")},
		{Name: "never", Archive: never, Dest: filepath.Join(work, "never")},
	})
	if err == nil {
		t.Fatal("expected failure on the corrupt archive")
	}
	if _, statErr := os.Stat(filepath.Join(work, "good", "a")); statErr != nil {
		t.Error("items before the failure should be extracted")
	}
	if _, statErr := os.Stat(never); statErr != nil {
		t.Error("items after the failure should be untouched")
	}
}

// TestUnpack_DryRun verifies dry-run leaves the archive and destination alone.
func TestUnpack_DryRun(t *testing.T) {
	t.Parallel()
	work := t.TempDir()
	archive := filepath.Join(work, "model.tar.gz")
	buildTarGz(t, archive, map[string]string{"weights.bin": "w"})

	u := NewUnpacker(testLogger(), true)
	if err := u.Unpack(Item{Name: "model", Archive: archive, Dest: filepath.Join(work, "out")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(archive); err != nil {
		t.Error("dry-run must not remove the archive")
	}
	if _, err := os.Stat(filepath.Join(work, "out")); !os.IsNotExist(err) {
		t.Error("dry-run must not create the destination")
	}
}
