// Package resources declares the static catalog of remote archives the
// bootstrap fetches, and resolves their URLs against the selected mirror.
package resources

import (
	"os"
	"path"
	"path/filepath"

	"github.com/envboot/envboot/internal/config"
	apperrors "github.com/envboot/envboot/internal/errors"
)

// Resource describes one named remote archive and where it lives locally.
type Resource struct {
	// Name identifies the resource in logs, results and failure lists.
	Name string
	// RemotePath is the fixed path appended to the mirror base URL.
	RemotePath string
	// Archive is the archive filename written into the working directory.
	Archive string
	// DestDir is the directory, relative to the working directory, the
	// archive unpacks into. It doubles as the presence-check target.
	DestDir string
	// Optional resources are fetched only when explicitly requested.
	Optional bool
	// ApproxBytes is the rough unpacked size, used for the preflight
	// disk-space floor. Zero means unknown.
	ApproxBytes uint64
}

// mirrorBases maps each mirror to its base URL.
var mirrorBases = map[config.Mirror]string{
	config.MirrorPrimary: "https://models.envboot.io/release",
	config.MirrorEU:      "https://eu-mirror.envboot.io/release",
	config.MirrorCN:      "https://cn-mirror.envboot.io/release",
}

// catalog is the full set of declared resources. Order is stable so runs are
// reproducible in logs and summaries.
var catalog = []Resource{
	{
		Name:        "acoustic-model",
		RemotePath:  "models/acoustic-model.tar.gz",
		Archive:     "acoustic-model.tar.gz",
		DestDir:     "models/acoustic",
		ApproxBytes: 2 << 30,
	},
	{
		Name:        "language-model",
		RemotePath:  "models/language-model.tar.gz",
		Archive:     "language-model.tar.gz",
		DestDir:     "models/language",
		ApproxBytes: 4 << 30,
	},
	{
		Name:        "embeddings",
		RemotePath:  "models/embeddings.tar.gz",
		Archive:     "embeddings.tar.gz",
		DestDir:     "models/embeddings",
		ApproxBytes: 1 << 30,
	},
	{
		Name:        "tools",
		RemotePath:  "tools/tools.tar.gz",
		Archive:     "tools.tar.gz",
		DestDir:     "tools",
		ApproxBytes: 256 << 20,
	},
	{
		Name:        "eval-corpus",
		RemotePath:  "data/eval-corpus.tar.gz",
		Archive:     "eval-corpus.tar.gz",
		DestDir:     "data/eval-corpus",
		Optional:    true,
		ApproxBytes: 8 << 30,
	},
}

// BaseURL returns the base URL for the given mirror.
//
// Parameters:
//   - m: The mirror selection.
//
// Returns:
//   - string: The mirror base URL.
//   - error: A ConfigError for unknown mirrors.
func BaseURL(m config.Mirror) (string, error) {
	base, ok := mirrorBases[m]
	if !ok {
		return "", apperrors.NewConfigError("unknown mirror %q", string(m))
	}
	return base, nil
}

// Catalog returns the resources to fetch. Optional resources are included
// only when withOptional is true.
//
// Parameters:
//   - withOptional: Whether to include optional resources.
//
// Returns:
//   - []Resource: The selected resources, in declaration order.
func Catalog(withOptional bool) []Resource {
	out := make([]Resource, 0, len(catalog))
	for _, r := range catalog {
		if r.Optional && !withOptional {
			continue
		}
		out = append(out, r)
	}
	return out
}

// URL joins the mirror base with the resource's fixed remote path.
func (r Resource) URL(base string) string {
	return base + "/" + path.Clean(r.RemotePath)
}

// ArchivePath returns the archive's location under the working directory.
func (r Resource) ArchivePath(workDir string) string {
	return filepath.Join(workDir, r.Archive)
}

// DestPath returns the unpack destination under the working directory.
func (r Resource) DestPath(workDir string) string {
	return filepath.Join(workDir, filepath.FromSlash(r.DestDir))
}

// TotalApproxBytes sums the rough unpacked sizes of the given resources.
func TotalApproxBytes(rs []Resource) uint64 {
	var total uint64
	for _, r := range rs {
		total += r.ApproxBytes
	}
	return total
}

// DirPresent is the presence-check predicate: it reports whether dir exists
// and contains at least one entry. A present resource is never fetched again,
// which is what makes re-runs an idempotent resume.
//
// Parameters:
//   - dir: The directory to check.
//
// Returns:
//   - bool: true when the directory exists and is non-empty.
func DirPresent(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	return len(entries) > 0
}
