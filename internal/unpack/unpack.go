// Package unpack extracts the downloaded archives into their install
// directories. Extraction is strictly sequential: it is disk-bound, and one
// half-written tree at a time is the most a failed run should ever leave.
package unpack

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/envboot/envboot/internal/errors"
	"github.com/envboot/envboot/internal/logging"
	"github.com/envboot/envboot/internal/metrics"
)

// Item is one archive to extract.
type Item struct {
	// Name identifies the item in logs and metrics.
	Name string
	// Archive is the path of the downloaded archive.
	Archive string
	// Dest is the directory the archive contents are extracted into.
	Dest string
}

// Unpacker extracts archives and removes them once their contents are in
// place, so the destination directory itself becomes the durable marker that
// the resource is installed.
type Unpacker struct {
	log    logging.Logger
	dryRun bool
}

// NewUnpacker creates an unpacker.
//
// Parameters:
//   - log: Destination for extraction diagnostics.
//   - dryRun: When true, extraction is logged but not performed.
//
// Returns:
//   - *Unpacker: The configured unpacker.
func NewUnpacker(log logging.Logger, dryRun bool) *Unpacker {
	return &Unpacker{log: log, dryRun: dryRun}
}

// UnpackAll extracts the items one at a time, in order, stopping at the
// first failure.
func (u *Unpacker) UnpackAll(ctx context.Context, items []Item) error {
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := u.Unpack(item); err != nil {
			return apperrors.WrapError(err, "unpacking %q", item.Name)
		}
	}
	return nil
}

// Unpack extracts one archive into its destination and deletes the archive
// on success. The archive format is chosen by filename extension.
func (u *Unpacker) Unpack(item Item) error {
	u.log.Info("unpacking archive",
		logging.String("archive", item.Archive),
		logging.String("dest", item.Dest))

	if u.dryRun {
		u.log.Info("dry-run: extraction skipped", logging.String("archive", item.Archive))
		return nil
	}

	start := time.Now()
	var err error
	switch {
	case strings.HasSuffix(item.Archive, ".tar.gz"), strings.HasSuffix(item.Archive, ".tgz"):
		err = extractTarGz(item.Archive, item.Dest)
	case strings.HasSuffix(item.Archive, ".zip"):
		err = extractZip(item.Archive, item.Dest)
	default:
		err = fmt.Errorf("unsupported archive format: %q", item.Archive)
	}
	if err != nil {
		return err
	}
	metrics.UnpackDuration.WithLabelValues(item.Name).Observe(time.Since(start).Seconds())

	if err := os.Remove(item.Archive); err != nil {
		return apperrors.WrapError(err, "removing archive %q", item.Archive)
	}
	u.log.Info("unpack complete",
		logging.String("archive", item.Archive),
		logging.String("duration", time.Since(start).Round(time.Millisecond).String()))
	return nil
}

// securePath resolves an archive entry name under dest, rejecting entries
// that would escape it.
func securePath(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	if target != dest && !strings.HasPrefix(target, dest+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}
	return target, nil
}

// secureLinkTarget checks a symlink entry's target the same way securePath
// checks entry names. The target is resolved relative to the symlink's own
// directory; absolute targets and targets resolving outside dest are
// rejected, otherwise a later entry written through the link would land
// outside the destination.
func secureLinkTarget(dest, name, linkname string) error {
	if filepath.IsAbs(linkname) {
		return fmt.Errorf("symlink %q targets absolute path %q", name, linkname)
	}
	entryDir := filepath.Dir(filepath.Join(dest, filepath.FromSlash(name)))
	resolved := filepath.Join(entryDir, filepath.FromSlash(linkname))
	if resolved != dest && !strings.HasPrefix(resolved, dest+string(os.PathSeparator)) {
		return fmt.Errorf("symlink %q escapes destination", name)
	}
	return nil
}

func extractTarGz(archive, dest string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return apperrors.WrapError(err, "opening gzip stream")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return apperrors.WrapError(err, "reading tar stream")
		}

		target, err := securePath(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(hdr.Mode)&0o777); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := secureLinkTarget(dest, hdr.Name, hdr.Linkname); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil && !os.IsExist(err) {
				return err
			}
		default:
			// Character devices and the like have no business in a model
			// archive; skip them.
		}
	}
}

func extractZip(archive, dest string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return apperrors.WrapError(err, "opening zip archive")
	}
	defer zr.Close()

	for _, entry := range zr.File {
		target, err := securePath(dest, entry.Name)
		if err != nil {
			return err
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return err
		}
		err = writeFile(target, rc, entry.Mode()&0o777)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeFile(target string, src io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
