// Package rustc inspects the argument list cargo passes to rustc and derives
// the argument list for a verus run of the same crate.
package rustc

import (
	"path/filepath"
	"strings"

	"github.com/ShayCichocki/vargo/internal/artifact"
)

const (
	// VerifiedStd is the crate whose presence as an --extern turns
	// verification on.
	VerifiedStd = "vstd"
)

// builtinCrates are provided by verus itself and must not be forwarded.
var builtinCrates = []string{VerifiedStd, "builtin", "builtin_macros"}

// Resolver finds the artifact of an already verified dependency.
type Resolver interface {
	Lookup(depsDir string, id artifact.Identity) (artifact.Artifact, bool)
}

// Rewrite is the outcome of classifying one rustc invocation.
type Rewrite struct {
	// Applies is true when the crate depends on vstd.
	Applies bool
	// Args is the argument list for verus.
	Args []string
	// OutDir is the value of --out-dir, or empty.
	OutDir string
	// Hash is the -C metadata value, or empty.
	Hash string
	// Imports lists dependencies whose artifacts replaced their rlibs.
	Imports []artifact.Artifact
}

// Ready reports whether verus should run: the crate depends on vstd and
// both the output directory and the crate hash are known.
func (r Rewrite) Ready() bool {
	return r.Applies && r.OutDir != "" && r.Hash != ""
}

// Classify walks args once, left to right, and builds the verus argument
// list. Unrecognized arguments are copied in order. args is not modified.
func Classify(args []string, resolver Resolver) Rewrite {
	var rw Rewrite
	out := make([]string, 0, len(args)+4)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		next, hasNext := "", i+1 < len(args)
		if hasNext {
			next = args[i+1]
		}

		switch {
		case arg == "--extern" && hasNext:
			if isBuiltinExtern(next) {
				if externName(next) == VerifiedStd {
					rw.Applies = true
				}
				i++
				continue
			}
			if a, ok := lookupExtern(next, rw.OutDir, resolver); ok {
				rw.Imports = append(rw.Imports, a)
				out = append(out,
					"--import", a.Name+"="+a.DataPath,
					"--extern", a.Name+"="+a.MetaPath,
				)
				i++
				continue
			}
			out = append(out, arg, next)
			i++

		case (arg == "-C" || arg == "--codegen") && hasNext:
			if h, ok := strings.CutPrefix(next, "metadata="); ok {
				rw.Hash = h
			}
			out = append(out, arg, next)
			i++

		case strings.HasPrefix(arg, "-Cmetadata="):
			rw.Hash = strings.TrimPrefix(arg, "-Cmetadata=")
			out = append(out, arg)

		case strings.HasPrefix(arg, "--edition="):
			// verus pins its own edition

		case arg == "--edition" && hasNext:
			i++

		case arg == "--out-dir" && hasNext:
			rw.OutDir = next
			out = append(out, arg, artifact.Dir(next))
			i++

		case strings.HasPrefix(arg, "--out-dir="):
			rw.OutDir = strings.TrimPrefix(arg, "--out-dir=")
			out = append(out, "--out-dir="+artifact.Dir(rw.OutDir))

		case strings.HasPrefix(arg, "--emit="):
			// rustc produces the real outputs afterwards

		case arg == "--emit" && hasNext:
			i++

		default:
			out = append(out, arg)
		}
	}

	rw.Args = out
	return rw
}

// ParseExtern splits an --extern value of the form
// <name>=<dir>/<prefix>-<hash>.<ext> into name and hash.
func ParseExtern(value string) (name, hash string, ok bool) {
	name, path, found := strings.Cut(value, "=")
	if !found || name == "" {
		return "", "", false
	}
	file := filepath.Base(path)
	dot := strings.LastIndexByte(file, '.')
	if dot < 0 {
		return "", "", false
	}
	stem := file[:dot]
	dash := strings.LastIndexByte(stem, '-')
	if dash < 0 {
		return "", "", false
	}
	hash = stem[dash+1:]
	if hash == "" {
		return "", "", false
	}
	return name, hash, true
}

func lookupExtern(value, depsDir string, resolver Resolver) (artifact.Artifact, bool) {
	if depsDir == "" || resolver == nil {
		return artifact.Artifact{}, false
	}
	name, hash, ok := ParseExtern(value)
	if !ok {
		return artifact.Artifact{}, false
	}
	return resolver.Lookup(depsDir, artifact.Identity{Name: name, Hash: hash})
}

func externName(value string) string {
	name, _, _ := strings.Cut(value, "=")
	return name
}

func isBuiltinExtern(value string) bool {
	for _, c := range builtinCrates {
		if strings.HasPrefix(value, c+"=") {
			return true
		}
	}
	return false
}
