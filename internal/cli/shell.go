// Package cli — shell.go implements the "kiln shell" command.
//
// The shell command resolves the environment, materializes any missing
// tools into the local store, and replaces the user's interaction with an
// interactive $SHELL carrying the resolved PATH and derived variables.
// With --print it instead writes POSIX export lines to stdout for eval'ing
// into an existing shell.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/kiln/internal/shell"
)

// shellFlags holds the flag values for the shell command.
type shellFlags struct {
	// print renders export lines instead of spawning a shell.
	print bool

	// platform overrides host platform detection.
	platform string
}

// NewShellCommand creates the "shell" cobra command.
func NewShellCommand() *cobra.Command {
	flags := &shellFlags{}

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Enter the development shell",
		Long: `Resolve the environment descriptor and enter an interactive shell with
every pinned tool on PATH and the derived compiler variables exported.

Tools missing from the local store are fetched from the binary cache first.

Examples:
  kiln shell
  kiln shell --print            # emit export lines for eval "$(kiln shell --print)"
  kiln shell --platform aarch64-darwin --print`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.print, "print", false, "Print POSIX export lines instead of entering a shell")
	cmd.Flags().StringVar(&flags.platform, "platform", "", "Target platform (default: detect host)")

	return cmd
}

func runShell(ctx context.Context, flags *shellFlags) error {
	s, err := loadSession(flags.platform)
	if err != nil {
		return err
	}
	env, err := s.resolve()
	if err != nil {
		return err
	}

	// --print is a pure rendering of the resolution result; it must not
	// touch the store or the network.
	if flags.print {
		fmt.Print(shell.ExportScript(env))
		return nil
	}

	if err := s.store.EnsureAll(ctx, s.tools(), s.lf, s.platform); err != nil {
		return err
	}

	VerboseLog("Entering shell for environment %q on %s", env.Name, env.Platform)
	return shell.Enter(ctx, env, s.desc.Dir)
}
