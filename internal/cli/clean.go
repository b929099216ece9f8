// Package cli — clean.go implements the "kiln clean" command, which
// removes leftover sandbox build containers.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/kiln/internal/model"
	"github.com/mmr-tortoise/kiln/internal/sandbox"
)

type cleanFlags struct {
	// all removes running containers too (force removal). Default is to
	// remove only exited ones.
	all bool
}

// NewCleanCommand creates the "clean" cobra command.
func NewCleanCommand() *cobra.Command {
	flags := &cleanFlags{}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove sandbox build containers",
		Long: `Remove Docker containers left behind by sandboxed builds.

By default only exited containers are removed. With --all, running
containers are killed and removed as well.

Examples:
  kiln clean
  kiln clean --all`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd.Context(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.all, "all", false, "Also remove running containers")

	return cmd
}

func runClean(ctx context.Context, flags *cleanFlags) error {
	cli, err := sandbox.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return err
	}

	containers, err := sandbox.ListManagedContainers(ctx, cli)
	if err != nil {
		return err
	}

	targets := selectCleanTargets(containers, flags.all)
	for _, c := range targets {
		VerboseLog("Removing container %s (%s)", c.ContainerName, c.Status)
		if err := sandbox.RemoveContainer(ctx, cli, c.ContainerID, flags.all); err != nil {
			return err
		}
	}

	if IsJSONOutput() {
		data, err := json.MarshalIndent(map[string]int{"removed": len(targets)}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Removed %d sandbox containers\n", len(targets))
	return nil
}

// selectCleanTargets picks the containers to remove. Running containers
// are only included when all is set.
func selectCleanTargets(containers []model.SandboxInfo, all bool) []model.SandboxInfo {
	targets := make([]model.SandboxInfo, 0, len(containers))
	for _, c := range containers {
		if !all && c.Status == "running" {
			continue
		}
		targets = append(targets, c)
	}
	return targets
}
