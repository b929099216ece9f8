// Package cli — fetch.go implements the "kiln fetch" command, which
// populates the local store from the binary cache without entering a
// shell or running a build.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type fetchFlags struct {
	platform string
}

// NewFetchCommand creates the "fetch" cobra command.
func NewFetchCommand() *cobra.Command {
	flags := &fetchFlags{}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch all pinned tools into the local store",
		Long: `Download every tool the target platform needs from the binary cache
into the local store, verifying checksums. Tools already present are
skipped, so fetch is safe to run repeatedly.

Examples:
  kiln fetch
  kiln fetch --platform aarch64-linux`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.platform, "platform", "", "Target platform (default: detect host)")

	return cmd
}

func runFetch(ctx context.Context, flags *fetchFlags) error {
	s, err := loadSession(flags.platform)
	if err != nil {
		return err
	}

	tools := s.tools()
	VerboseLog("Fetching %d tools into %s", len(tools), s.store.Dir())
	if err := s.store.EnsureAll(ctx, tools, s.lf, s.platform); err != nil {
		return err
	}

	if IsJSONOutput() {
		data, err := json.MarshalIndent(map[string]interface{}{
			"tools":    len(tools),
			"platform": s.platform,
			"store":    s.store.Dir(),
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Store is complete: %d tools for %s in %s\n",
		len(tools), s.platform, s.store.Dir())
	return nil
}
