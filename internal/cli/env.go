// Package cli — env.go implements the "kiln env" command, which prints
// the derived environment variables of the resolved environment without
// touching the store or the network.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/kiln/internal/model"
)

type envFlags struct {
	platform string
}

// NewEnvCommand creates the "env" cobra command.
func NewEnvCommand() *cobra.Command {
	flags := &envFlags{}

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Print the resolved environment variables",
		Long: `Resolve the environment descriptor and print the derived environment
variables with tool references expanded to store paths.

Resolution is pure: no tools are fetched and the store is not modified.

Examples:
  kiln env
  kiln env --platform aarch64-darwin
  kiln env --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnv(flags)
		},
	}

	cmd.Flags().StringVar(&flags.platform, "platform", "", "Target platform (default: detect host)")

	return cmd
}

func runEnv(flags *envFlags) error {
	s, err := loadSession(flags.platform)
	if err != nil {
		return err
	}
	env, err := s.resolve()
	if err != nil {
		return err
	}

	fmt.Print(renderEnv(env, IsJSONOutput()))
	return nil
}

// renderEnv formats the derived variables, sorted by name for stable
// output. Split from runEnv so the formatting is testable.
func renderEnv(env *model.ResolvedEnv, asJSON bool) string {
	if asJSON {
		data, _ := json.MarshalIndent(env.Env, "", "  ")
		return string(data) + "\n"
	}

	out := ""
	for _, name := range env.EnvNames() {
		out += fmt.Sprintf("%s=%s\n", name, env.Env[name])
	}
	return out
}
