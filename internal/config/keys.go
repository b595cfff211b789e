package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Variables cargo sets for every rustc invocation it makes.
const (
	EnvCrateName   = "CARGO_CRATE_NAME"
	EnvPkgVersion  = "CARGO_PKG_VERSION"
	EnvManifestDir = "CARGO_MANIFEST_DIR"
)

// ErrMissingEnv is returned when a variable cargo should have set is absent.
var ErrMissingEnv = errors.New("environment variable not set")

// Crate identifies the crate cargo is currently compiling.
type Crate struct {
	Name        string
	Version     string
	ManifestDir string
}

// CrateFromEnv reads the crate identity cargo exports to rustc wrappers.
// lookup is usually os.LookupEnv.
func CrateFromEnv(lookup func(string) (string, bool)) (Crate, error) {
	var c Crate
	for _, f := range []struct {
		key string
		dst *string
	}{
		{EnvCrateName, &c.Name},
		{EnvPkgVersion, &c.Version},
		{EnvManifestDir, &c.ManifestDir},
	} {
		v, ok := lookup(f.key)
		if !ok {
			return Crate{}, fmt.Errorf("%s: %w", f.key, ErrMissingEnv)
		}
		*f.dst = v
	}
	return c, nil
}

// ManifestPath returns the crate's Cargo.toml.
func (c Crate) ManifestPath() string {
	return filepath.Join(c.ManifestDir, "Cargo.toml")
}

// ManifestFlags returns the [verus] extra_flags string from a Cargo.toml.
// A missing or unreadable manifest yields "".
func ManifestFlags(path string) string {
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return ""
	}
	flags, ok := v.Get("verus.extra_flags").(string)
	if !ok {
		return ""
	}
	return flags
}
