// Package artifact resolves verification artifacts produced by earlier verus
// runs. Artifacts live under a verify/ directory next to cargo's own outputs
// and are keyed by crate name and the -C metadata hash cargo assigned.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
)

// VerifyDirName is the subdirectory of cargo's output directory that holds
// everything verus produces.
const VerifyDirName = "verify"

const (
	// DataExt is the extension of the exported proof summary.
	DataExt = ".verusdata"
	// MetaExt is the extension of the crate metadata verus emits.
	MetaExt = ".rmeta"
)

// Identity names one compiled configuration of one crate.
type Identity struct {
	Name string
	Hash string
}

// String returns "name-hash", the stem shared by both artifact files.
func (id Identity) String() string {
	return id.Name + "-" + id.Hash
}

// Artifact is the pair of files a successful verus run leaves behind.
type Artifact struct {
	Identity
	// DataPath is the file passed to --import by dependents.
	DataPath string
	// MetaPath replaces the rlib in the dependent's --extern.
	MetaPath string
}

// Dir returns the verify directory for an output directory. The path is
// built by plain concatenation so that it matches what rustc is told in
// the rewritten --out-dir.
func Dir(outDir string) string {
	return outDir + string(filepath.Separator) + VerifyDirName
}

// For returns the artifact paths for id under the verify directory of outDir.
func For(outDir string, id Identity) Artifact {
	dir := Dir(outDir)
	return Artifact{
		Identity: id,
		DataPath: filepath.Join(dir, id.String()+DataExt),
		MetaPath: filepath.Join(dir, "lib"+id.String()+MetaExt),
	}
}

// Cache looks up artifacts on the file system. Artifacts are written once by
// the verus run for their own identity and never modified, so no locking is
// needed.
type Cache struct{}

// NewCache creates a Cache.
func NewCache() *Cache {
	return &Cache{}
}

// Lookup reports whether both artifact files for id exist under depsDir.
// Each file is opened rather than stat-ed; any open failure is a miss.
func (c *Cache) Lookup(depsDir string, id Identity) (Artifact, bool) {
	a := For(depsDir, id)
	for _, path := range []string{a.DataPath, a.MetaPath} {
		f, err := os.Open(path)
		if err != nil {
			return Artifact{}, false
		}
		info, err := f.Stat()
		f.Close()
		if err != nil || info.IsDir() {
			return Artifact{}, false
		}
	}
	return a, true
}

// Prepare creates the verify directory under outDir if it does not exist.
func (c *Cache) Prepare(outDir string) (string, error) {
	dir := Dir(outDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create verify directory: %w", err)
	}
	return dir, nil
}
