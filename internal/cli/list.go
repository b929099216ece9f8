// Package cli — list.go implements the "kiln list" command.
//
// The list command displays sandbox build containers by querying Docker
// for containers with the "kiln.managed-by=kiln" label. Containers are
// grouped by environment name and presented as a text table or JSON
// array, depending on the --json flag.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/kiln/internal/model"
	"github.com/mmr-tortoise/kiln/internal/sandbox"
)

// NewListCommand creates the "list" cobra command.
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sandbox build containers",
		Long: `List Docker containers created by sandboxed builds, grouped by
environment name. All state is read from container labels.

Examples:
  kiln list
  kiln list --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context())
		},
	}
}

func runList(ctx context.Context) error {
	cli, err := sandbox.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return err
	}
	VerboseLog("Connected to Docker daemon")

	containers, err := sandbox.ListManagedContainers(ctx, cli)
	if err != nil {
		return err
	}
	VerboseLog("Found %d managed containers", len(containers))

	fmt.Print(renderContainers(containers, IsJSONOutput()))
	return nil
}

// renderContainers formats the container listing. Split from runList so
// the formatting is testable without a Docker daemon.
func renderContainers(containers []model.SandboxInfo, asJSON bool) string {
	if asJSON {
		// Emit an empty array rather than null when nothing is managed.
		if containers == nil {
			containers = []model.SandboxInfo{}
		}
		data, _ := json.MarshalIndent(containers, "", "  ")
		return string(data) + "\n"
	}

	if len(containers) == 0 {
		return "No sandbox containers found.\n"
	}

	groups := sandbox.GroupByEnvironment(containers)
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENVIRONMENT\tCONTAINER\tPLATFORM\tTOOLCHAIN\tSTATUS")
	for _, name := range names {
		for _, c := range groups[name] {
			// Containers with incomplete labels still get listed; the
			// metadata columns just stay blank.
			platformCol, toolchainCol := "-", "-"
			if meta, err := sandbox.ParseLabels(c.Labels); err == nil {
				platformCol = meta.Platform.String()
				toolchainCol = meta.Toolchain
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				name, c.ContainerName, platformCol, toolchainCol, c.Status)
		}
	}
	w.Flush()
	return b.String()
}
