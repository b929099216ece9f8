// Package toolchain parses the toolchain declaration file
// (rust-toolchain.toml) that pins the exact compiler version, components,
// and cross-compilation targets for the environment.
//
// The file format is owned by rustup; kiln reads it but never writes it.
// Only the [toolchain] table is consumed — any other content is ignored.
package toolchain

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/mmr-tortoise/kiln/internal/model"
)

// WasmTarget is the cross-compilation target the descriptor's build
// produces packages for. The declaration must list it; a toolchain without
// the wasm target cannot build the package at all.
const WasmTarget = "wasm32-unknown-unknown"

// Toolchain is the parsed [toolchain] table of a rust-toolchain.toml file.
type Toolchain struct {
	// Channel is the pinned compiler version or channel (e.g., "1.71.0").
	Channel string `toml:"channel"`

	// Components lists the toolchain components to install alongside the
	// compiler (e.g., "rust-src", "clippy").
	Components []string `toml:"components"`

	// Targets lists the cross-compilation targets. Must include WasmTarget.
	Targets []string `toml:"targets"`

	// Profile selects the rustup installation profile (e.g., "minimal").
	Profile string `toml:"profile"`
}

// declarationFile is the on-disk shape: a single [toolchain] table.
type declarationFile struct {
	Toolchain Toolchain `toml:"toolchain"`
}

// Load reads and parses a toolchain declaration file.
//
// Returns a CLIError with ExitToolchainError if the file is missing or
// malformed — the environment cannot be constructed without a pinned
// compiler, so this is fatal.
func Load(path string) (*Toolchain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitToolchainError,
				fmt.Sprintf("toolchain declaration not found: %s", path),
				err,
			)
		}
		return nil, fmt.Errorf("failed to read toolchain declaration %s: %w", path, err)
	}

	var file declarationFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, model.WrapCLIError(
			model.ExitToolchainError,
			fmt.Sprintf("failed to parse toolchain declaration %s", path),
			err,
		)
	}

	tc := file.Toolchain
	if tc.Channel == "" {
		return nil, model.NewCLIError(
			model.ExitToolchainError,
			fmt.Sprintf("toolchain declaration %s does not pin a channel", path),
		)
	}

	return &tc, nil
}

// Validate checks the declaration pins everything the build needs. The only
// hard requirement beyond a channel is the wasm32 cross-compilation target.
func (tc *Toolchain) Validate() error {
	if !tc.HasTarget(WasmTarget) {
		return model.NewCLIError(
			model.ExitToolchainError,
			fmt.Sprintf("toolchain declaration does not list target %s", WasmTarget),
		)
	}
	return nil
}

// HasTarget reports whether the declaration lists the given target.
func (tc *Toolchain) HasTarget(target string) bool {
	for _, t := range tc.Targets {
		if t == target {
			return true
		}
	}
	return false
}

// Tool returns the resolved-tool entry the toolchain contributes to the
// environment's tool set. It is always the first tool in the resolved list
// and is referenced from env templates as "${rust}".
func (tc *Toolchain) Tool() model.Tool {
	return model.Tool{
		Name:          "rust",
		Version:       tc.Channel,
		FromToolchain: true,
	}
}
