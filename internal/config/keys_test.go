package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestCrateFromEnv(t *testing.T) {
	c, err := CrateFromEnv(mapLookup(map[string]string{
		EnvCrateName:   "crate_b",
		EnvPkgVersion:  "0.2.0",
		EnvManifestDir: "/src/crate_b",
	}))
	require.NoError(t, err)

	assert.Equal(t, Crate{Name: "crate_b", Version: "0.2.0", ManifestDir: "/src/crate_b"}, c)
	assert.Equal(t, "/src/crate_b/Cargo.toml", c.ManifestPath())
}

func TestCrateFromEnv_Missing(t *testing.T) {
	_, err := CrateFromEnv(mapLookup(map[string]string{
		EnvCrateName:  "crate_b",
		EnvPkgVersion: "0.2.0",
	}))

	assert.ErrorIs(t, err, ErrMissingEnv)
	assert.Contains(t, err.Error(), EnvManifestDir)
}

func TestManifestFlags(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	withFlags := write("with.toml", `
[package]
name = "crate_a"
version = "0.1.0"

[dependencies]
vstd = { path = "../vstd" }

[verus]
extra_flags = "--rlimit 20 --expand-errors"
`)
	withoutSection := write("without.toml", "[package]\nname = \"crate_a\"\n")
	wrongType := write("wrong.toml", "[verus]\nextra_flags = 3\n")
	broken := write("broken.toml", "[package\nname = ")

	assert.Equal(t, "--rlimit 20 --expand-errors", ManifestFlags(withFlags))
	assert.Equal(t, "", ManifestFlags(withoutSection))
	assert.Equal(t, "", ManifestFlags(wrongType))
	assert.Equal(t, "", ManifestFlags(broken))
	assert.Equal(t, "", ManifestFlags(filepath.Join(dir, "missing.toml")))
}
