// Package cli — build.go implements the "kiln build" command.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/kiln/internal/build"
	"github.com/mmr-tortoise/kiln/internal/model"
	"github.com/mmr-tortoise/kiln/internal/platform"
)

// buildFlags holds the flag values for the build command.
type buildFlags struct {
	sandbox    bool
	skipVerify bool
	platform   string
}

// NewBuildCommand creates the "build" cobra command.
func NewBuildCommand() *cobra.Command {
	flags := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run the reproducible package build",
		Long: `Run the descriptor's build command with the fully resolved environment
and verify the produced wasm artifact.

The lock file is mandatory: a missing or inconsistent kiln.lock.yaml
aborts the build before anything runs. With --sandbox the command runs
inside a Docker container with only the source tree and tool store mounted.

Examples:
  kiln build
  kiln build --sandbox
  kiln build --platform x86_64-linux --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.sandbox, "sandbox", false, "Run the build inside a Docker container")
	cmd.Flags().BoolVar(&flags.skipVerify, "skip-verify", false, "Skip wasm artifact verification")
	cmd.Flags().StringVar(&flags.platform, "platform", "", "Target platform (default: detect host)")

	return cmd
}

func runBuild(ctx context.Context, flags *buildFlags) error {
	var p platform.Platform
	if flags.platform != "" {
		parsed, err := resolvePlatform(flags.platform)
		if err != nil {
			return err
		}
		p = parsed
	}

	b := build.New(build.Options{
		Platform:   p,
		Sandbox:    flags.sandbox,
		SkipVerify: flags.skipVerify,
		// Build command output streams to stderr so stdout carries only
		// the result (important for --json consumers).
		Output: os.Stderr,
		Logger: newLogger(),
	})

	result, err := b.Run(ctx)
	if err != nil {
		return err
	}

	return printBuildResult(result)
}

func printBuildResult(result *model.BuildResult) error {
	if IsJSONOutput() {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Built %s (%d bytes) for %s in %s\n",
		result.ArtifactPath, result.SizeBytes, result.Platform, result.Duration.Round(time.Millisecond))
	if result.Revision != "" {
		dirty := ""
		if result.Dirty {
			dirty = " (dirty)"
		}
		fmt.Printf("Source revision: %s%s\n", result.Revision, dirty)
	}
	if result.Verified {
		fmt.Println("Artifact verified: valid WebAssembly module")
	}
	return nil
}
