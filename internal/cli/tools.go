// Package cli — tools.go implements the "kiln tools" command, which prints
// the resolved tool set for a platform along with each tool's store status.
package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/kiln/internal/lockfile"
	"github.com/mmr-tortoise/kiln/internal/model"
	"github.com/mmr-tortoise/kiln/internal/platform"
	"github.com/mmr-tortoise/kiln/internal/store"
)

type toolsFlags struct {
	platform string
}

// toolStatus is the JSON shape of one tool row.
type toolStatus struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	FromToolchain bool   `json:"fromToolchain"`
	Cached        bool   `json:"cached"`
	StorePath     string `json:"storePath"`
}

// NewToolsCommand creates the "tools" cobra command.
func NewToolsCommand() *cobra.Command {
	flags := &toolsFlags{}

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the resolved tool set",
		Long: `Resolve the environment descriptor and list every tool the target
platform gets, with its pinned version and whether it is already present
in the local store.

Platform-conditional tools (e.g. browser tooling excluded on Darwin) are
omitted from the listing when the platform excludes them.

Examples:
  kiln tools
  kiln tools --platform x86_64-darwin
  kiln tools --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runTools(flags)
		},
	}

	cmd.Flags().StringVar(&flags.platform, "platform", "", "Target platform (default: detect host)")

	return cmd
}

func runTools(flags *toolsFlags) error {
	s, err := loadSession(flags.platform)
	if err != nil {
		return err
	}

	statuses, err := toolStatuses(s.tools(), s.lf, s.platform, s.store)
	if err != nil {
		return err
	}

	fmt.Print(renderTools(statuses, IsJSONOutput()))
	return nil
}

// toolStatuses pairs each resolved tool with its store presence. The lock
// file has already been verified, so every tool has a pin.
func toolStatuses(tools []model.Tool, lf *lockfile.Lockfile, p platform.Platform, st *store.Store) ([]toolStatus, error) {
	statuses := make([]toolStatus, 0, len(tools))
	for _, tool := range tools {
		pin, err := lf.Pin(tool, p)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, toolStatus{
			Name:          tool.Name,
			Version:       tool.Version,
			FromToolchain: tool.FromToolchain,
			Cached:        st.Present(tool, pin),
			StorePath:     st.PathFor(tool, pin),
		})
	}
	return statuses, nil
}

// renderTools formats the tool table. Split from runTools so the
// formatting is testable.
func renderTools(statuses []toolStatus, asJSON bool) string {
	if asJSON {
		data, _ := json.MarshalIndent(statuses, "", "  ")
		return string(data) + "\n"
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tSOURCE\tSTATUS")
	for _, s := range statuses {
		source := "descriptor"
		if s.FromToolchain {
			source = "toolchain"
		}
		status := "missing"
		if s.Cached {
			status = "cached"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Name, s.Version, source, status)
	}
	w.Flush()
	return b.String()
}
