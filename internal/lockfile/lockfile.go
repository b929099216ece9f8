// Package lockfile loads and verifies the dependency lock file
// (kiln.lock.yaml) that fixes the exact store pins of every tool for every
// supported platform.
//
// The lock file is what makes the package build reproducible: each tool's
// entry records the content hash, download URL, checksum, and size of the
// exact build the binary cache serves. A build with a missing or
// inconsistent lock file aborts before doing any work.
package lockfile

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/kiln/internal/model"
	"github.com/mmr-tortoise/kiln/internal/platform"
)

// FormatVersion is the lock file schema version this binary understands.
// Bumped only on incompatible schema changes.
const FormatVersion = 1

// Lockfile is the parsed kiln.lock.yaml.
type Lockfile struct {
	// Version is the lock file format version.
	Version int `yaml:"version"`

	// Tools maps a tool ref ("name-version") to its per-platform pins.
	Tools map[string]map[string]Pin `yaml:"tools"`
}

// Pin fixes one tool build for one platform.
type Pin struct {
	// Hash is the store hash of the pinned build (nix-base32, 32 chars).
	// The local store directory is named "<hash>-<name>-<version>".
	Hash string `yaml:"hash"`

	// URL is where the xz-compressed NAR is fetched from. May be relative
	// to the descriptor's cache base URL.
	URL string `yaml:"url"`

	// SHA256 is the checksum of the compressed archive, in either hex or
	// nix-base32 spelling (prefixed "sha256:" or bare).
	SHA256 string `yaml:"sha256"`

	// Size is the compressed archive size in bytes. Zero means unknown;
	// a non-zero value is enforced during fetch.
	Size int64 `yaml:"size,omitempty"`
}

// Load reads and parses a lock file.
//
// A missing lock file returns a CLIError with ExitLockfileError: the
// package build treats this as fatal, and the dev shell surfaces it when
// tools need fetching.
func Load(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitLockfileError,
				fmt.Sprintf("dependency lock file not found: %s (builds require a complete lock file)", path),
				err,
			)
		}
		return nil, fmt.Errorf("failed to read lock file %s: %w", path, err)
	}

	var lf Lockfile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, model.WrapCLIError(
			model.ExitLockfileError,
			fmt.Sprintf("failed to parse lock file %s", path),
			err,
		)
	}

	if lf.Version != FormatVersion {
		return nil, model.NewCLIError(
			model.ExitLockfileError,
			fmt.Sprintf("lock file %s has format version %d, expected %d", path, lf.Version, FormatVersion),
		)
	}

	return &lf, nil
}

// Pin returns the lock entry for a tool on a platform.
func (lf *Lockfile) Pin(tool model.Tool, p platform.Platform) (Pin, error) {
	platforms, ok := lf.Tools[tool.Ref()]
	if !ok {
		return Pin{}, fmt.Errorf("no lock entry for tool %s", tool.Ref())
	}
	pin, ok := platforms[string(p)]
	if !ok {
		return Pin{}, fmt.Errorf("no lock entry for tool %s on platform %s", tool.Ref(), p)
	}
	return pin, nil
}

// Verify checks the lock file against the resolution result for one
// platform. Every tool in required (the platform's resolved tool set) must
// have a structurally complete pin for that platform, and no lock entry may
// be orphaned — present in the lock but absent from declared (the full tool
// set across all platforms, so tools excluded on this platform don't read
// as orphans). Any mismatch means the lock file is stale relative to the
// descriptor, which is fatal for the package build.
//
// Passing declared as nil uses required as the orphan baseline.
func (lf *Lockfile) Verify(required, declared []model.Tool, p platform.Platform) error {
	var problems []string

	for _, t := range required {
		pin, err := lf.Pin(t, p)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		if pin.Hash == "" || pin.URL == "" || pin.SHA256 == "" {
			problems = append(problems, fmt.Sprintf("incomplete lock entry for tool %s on platform %s", t.Ref(), p))
		}
	}

	if declared == nil {
		declared = required
	}
	want := make(map[string]bool, len(declared))
	for _, t := range declared {
		want[t.Ref()] = true
	}

	// Orphaned entries indicate the descriptor changed after locking.
	var orphans []string
	for ref := range lf.Tools {
		if !want[ref] {
			orphans = append(orphans, ref)
		}
	}
	if len(orphans) > 0 {
		sort.Strings(orphans)
		problems = append(problems, fmt.Sprintf("lock entries for undeclared tools: %s", strings.Join(orphans, ", ")))
	}

	if len(problems) > 0 {
		return model.WrapCLIError(
			model.ExitLockfileError,
			"lock file is inconsistent with the resolved tool set",
			fmt.Errorf("%s", strings.Join(problems, "; ")),
		)
	}
	return nil
}
