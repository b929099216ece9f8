// Package model defines the domain types for the kiln CLI.
//
// All entities in this package represent the configuration values described
// in the environment descriptor contract. These types are used throughout
// the application for passing data between components.
//
// Key design decision: environment resolution is a pure, single-pass
// computation re-executed identically on every invocation, so every type
// here is an immutable snapshot — nothing is mutated after resolution.
package model

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mmr-tortoise/kiln/internal/platform"
)

// Tool represents a single resolved entry in the environment's tool set.
// The tool list is ordered (declaration order, toolchain compiler first),
// but order does not affect behavior beyond PATH precedence.
type Tool struct {
	// Name is the tool's canonical package name (e.g., "clang", "wasm-pack").
	Name string `json:"name"`

	// Version is the pinned version string (e.g., "14.0.6").
	Version string `json:"version"`

	// StorePath is the absolute path of the tool's local store directory
	// once materialized (e.g., "~/.kiln/store/<hash>-clang-14.0.6").
	// Empty until the store has resolved the pin from the lock file.
	StorePath string `json:"storePath,omitempty"`

	// FromToolchain marks the compiler entry contributed by the toolchain
	// declaration file rather than the descriptor's tool list.
	FromToolchain bool `json:"fromToolchain,omitempty"`
}

// Ref returns the "name-version" spelling of the tool, which is how
// store directory names and lock file entries refer to it.
func (t Tool) Ref() string {
	if t.Version == "" {
		return t.Name
	}
	return t.Name + "-" + t.Version
}

// ResolvedEnv is the output of a single resolution pass: the ordered tool
// set and the derived environment variables for one target platform.
//
// A ResolvedEnv is never mutated after resolution. Re-resolving the same
// descriptor, toolchain, and platform yields a deeply equal value
// (idempotence is a tested property of the resolver).
type ResolvedEnv struct {
	// Name is the environment name from the descriptor.
	Name string `json:"name"`

	// Platform is the target platform identifier (e.g., "x86_64-linux").
	Platform platform.Platform `json:"platform"`

	// Toolchain is the pinned compiler channel from the toolchain
	// declaration file (e.g., "1.71.0").
	Toolchain string `json:"toolchain"`

	// Tools is the ordered resolved tool set. The toolchain compiler is
	// always first; descriptor tools follow in declaration order with
	// platform-excluded entries already removed.
	Tools []Tool `json:"tools"`

	// Env holds the derived environment variables exported into the dev
	// shell and the build process. For this descriptor there are exactly
	// four: LIBCLANG_PATH, LD_LIBRARY_PATH, CC_wasm32_unknown_unknown,
	// and CFLAGS_wasm32_unknown_unknown.
	Env map[string]string `json:"env"`
}

// HasTool reports whether the resolved tool set contains a tool with the
// given name. Used by conditional-inclusion tests and by the build
// orchestrator to check harness availability.
func (e *ResolvedEnv) HasTool(name string) bool {
	for _, t := range e.Tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// EnvNames returns the derived environment variable names in sorted order.
// Sorting makes CLI output and export scripts deterministic.
func (e *ResolvedEnv) EnvNames() []string {
	names := make([]string, 0, len(e.Env))
	for k := range e.Env {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate checks the structural invariants of a resolved environment:
// a non-empty platform, at least one tool, and no empty derived variable
// values. Environment construction either fully succeeds or aborts, so a
// ResolvedEnv failing validation is a resolver bug, not a user error.
func (e *ResolvedEnv) Validate() error {
	if e.Platform == "" {
		return fmt.Errorf("resolved environment has no platform")
	}
	if len(e.Tools) == 0 {
		return fmt.Errorf("resolved environment has an empty tool set")
	}
	for name, value := range e.Env {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("derived environment variable %s is empty", name)
		}
	}
	return nil
}

// BuildResult describes a completed package build.
type BuildResult struct {
	// ArtifactPath is the absolute path of the built package artifact.
	ArtifactPath string `json:"artifactPath"`

	// SizeBytes is the artifact size on disk.
	SizeBytes int64 `json:"sizeBytes"`

	// Platform is the platform the environment was resolved for.
	Platform string `json:"platform"`

	// Revision is the source tree's VCS revision at build time.
	// Empty when the source tree is not a Git repository.
	Revision string `json:"revision,omitempty"`

	// Dirty indicates the source tree had uncommitted changes.
	Dirty bool `json:"dirty,omitempty"`

	// Sandboxed indicates the build ran inside a container sandbox
	// rather than directly on the host.
	Sandboxed bool `json:"sandboxed"`

	// Verified indicates the produced wasm artifact passed compilation
	// verification.
	Verified bool `json:"verified"`

	// Duration is the wall-clock build time.
	Duration time.Duration `json:"duration"`
}

// SandboxInfo holds runtime information about a sandbox build container.
// This data is fetched dynamically from the Docker API, not persisted.
type SandboxInfo struct {
	// ContainerID is the unique Docker container identifier.
	ContainerID string `json:"containerId"`

	// ContainerName is the human-readable Docker container name.
	ContainerName string `json:"containerName"`

	// Environment is the kiln environment name the sandbox was built for.
	Environment string `json:"environment"`

	// Status is the Docker container status (e.g., "running", "exited").
	Status string `json:"status"`

	// Labels is the full set of Docker labels on the container,
	// including the kiln.* management labels.
	Labels map[string]string `json:"labels,omitempty"`
}

// envNamePattern restricts environment names to characters that are safe in
// store directory names, container names, and Docker label values.
var envNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// ValidateName checks that an environment name is safe to embed in store
// paths, container names, and labels. Names must start with an alphanumeric
// character and may contain only alphanumerics, hyphens, underscores, and
// dots. The length cap matches Docker's container-name limit.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("environment name must not be empty")
	}
	if len(name) > 63 {
		return fmt.Errorf("environment name too long (%d chars, max 63)", len(name))
	}
	if !envNamePattern.MatchString(name) {
		return fmt.Errorf("invalid environment name %q: must start with alphanumeric and contain only [a-zA-Z0-9_.-]", name)
	}
	return nil
}

// ExitCode defines standard CLI exit codes. These codes allow scripts and
// CI systems to programmatically determine the outcome of a command.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitDescriptorNotFound indicates kiln.json was not found in the
	// current directory or any parent.
	ExitDescriptorNotFound ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	// Only sandbox builds and sandbox listing require Docker.
	ExitDockerNotRunning ExitCode = 3

	// ExitLockfileError indicates the dependency lock file is absent or
	// inconsistent with the resolved tool set. The package build refuses
	// to start in this state.
	ExitLockfileError ExitCode = 4

	// ExitToolchainError indicates the toolchain declaration file is
	// missing, malformed, or does not declare the required target.
	ExitToolchainError ExitCode = 5

	// ExitUnsupportedPlatform indicates the platform identifier is not a
	// member of the closed supported set.
	ExitUnsupportedPlatform ExitCode = 6

	// ExitVerifyFailed indicates a fetched tool failed hash verification
	// or the built wasm artifact failed compilation verification.
	ExitVerifyFailed ExitCode = 7
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
