package descriptor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/mmr-tortoise/kiln/internal/model"
)

// FileName is the standard descriptor file name at the project root.
const FileName = "kiln.json"

// Default paths for the external files the descriptor references when the
// corresponding fields are omitted. Both are relative to the descriptor's
// directory; their formats are owned by the external tools that consume
// them (rustup and kiln's own lock writer).
const (
	DefaultToolchainFile = "rust-toolchain.toml"
	DefaultLockFile      = "kiln.lock.yaml"
)

// Descriptor represents a parsed kiln.json environment descriptor.
// Only the fields kiln understands are declared; unknown fields are
// silently ignored during parsing, which keeps older binaries compatible
// with newer descriptor files.
type Descriptor struct {
	// Name is the environment's identifier. It appears in store paths,
	// sandbox container names, and Docker labels.
	Name string `json:"name"`

	// Toolchain is the relative path of the toolchain declaration file.
	// Defaults to "rust-toolchain.toml".
	Toolchain string `json:"toolchain,omitempty"`

	// Lockfile is the relative path of the dependency lock file.
	// Defaults to "kiln.lock.yaml". The package build refuses to start
	// when this file is missing or inconsistent.
	Lockfile string `json:"lockfile,omitempty"`

	// Cache is the binary cache base URL tools are fetched from when a
	// lock entry carries a relative URL.
	Cache string `json:"cache,omitempty"`

	// Tools is the ordered list of auxiliary tools. Order is preserved
	// through resolution (it only affects PATH precedence).
	Tools []ToolSpec `json:"tools"`

	// Env maps derived environment variable names to value templates.
	// Templates may reference resolved tools as "${toolname}", which
	// expands to the tool's store path.
	Env map[string]string `json:"env,omitempty"`

	// Build configures the package build output.
	Build *BuildSpec `json:"build,omitempty"`

	// Dir is the absolute directory the descriptor was loaded from.
	// Populated by Load, never serialized.
	Dir string `json:"-"`
}

// ToolSpec declares one tool in the descriptor's tool list.
type ToolSpec struct {
	// Name is the tool's package name (e.g., "chromedriver").
	Name string `json:"name"`

	// Version is the pinned version string.
	Version string `json:"version"`

	// ExcludeOn lists operating-system families the tool is omitted on.
	// The only family the descriptor uses is "darwin": the browser and
	// its driver are included iff the platform is not Darwin-family.
	ExcludeOn []string `json:"excludeOn,omitempty"`
}

// BuildSpec configures the package build.
type BuildSpec struct {
	// Command is the build command argv run with the resolved environment
	// in the source tree (e.g., ["wasm-pack", "build", "--release"]).
	Command []string `json:"command"`

	// Artifact is the relative path of the wasm artifact the command
	// produces, verified after the build.
	Artifact string `json:"artifact"`

	// SandboxImage is the pinned container image used by sandboxed builds.
	SandboxImage string `json:"sandboxImage,omitempty"`
}

// ToolchainPath returns the absolute path of the toolchain declaration file.
func (d *Descriptor) ToolchainPath() string {
	p := d.Toolchain
	if p == "" {
		p = DefaultToolchainFile
	}
	return filepath.Join(d.Dir, p)
}

// LockfilePath returns the absolute path of the dependency lock file.
func (d *Descriptor) LockfilePath() string {
	p := d.Lockfile
	if p == "" {
		p = DefaultLockFile
	}
	return filepath.Join(d.Dir, p)
}

// Load reads a kiln.json file, strips JSONC comments, and parses it into a
// Descriptor. The descriptor's directory is recorded so relative references
// (toolchain file, lock file) can be resolved later.
//
// Returns a CLIError with ExitDescriptorNotFound if the file does not exist.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitDescriptorNotFound,
				fmt.Sprintf("descriptor not found: %s", path),
				err,
			)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	// Strip JSONC comments (// and /* */) and trailing commas before
	// parsing. Descriptors are hand-maintained, so comments are common.
	cleanJSON := jsonc.ToJSON(data)

	var d Descriptor
	if err := json.Unmarshal(cleanJSON, &d); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve descriptor directory: %w", err)
	}
	d.Dir = abs

	return &d, nil
}

// Find locates the descriptor by checking startDir and then each parent
// directory until the filesystem root. This mirrors how the tool is invoked
// from anywhere inside a project tree.
//
// Returns a CLIError with ExitDescriptorNotFound when no descriptor exists
// on the walk.
func Find(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve search directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached the filesystem root without finding a descriptor.
			break
		}
		dir = parent
	}

	return "", model.NewCLIError(
		model.ExitDescriptorNotFound,
		fmt.Sprintf("%s not found in %s or any parent directory", FileName, startDir),
	)
}
