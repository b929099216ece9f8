// container.go implements the sandbox container lifecycle: running a
// one-shot build container, listing kiln-managed containers, and removing
// them during cleanup.
//
// Builds run via `docker run` (os/exec) rather than the SDK's
// ContainerCreate + Start + Wait sequence: a build needs bind mounts,
// labels, env injection, and streamed output, all of which the CLI
// expresses directly, while the SDK requires assembling Config/HostConfig
// structs and a separate attach. Listing and removal use the SDK, where
// server-side label filtering does the work.
package sandbox

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"

	"github.com/mmr-tortoise/kiln/internal/model"
)

// workDir is where the source tree is mounted inside the build container.
const workDir = "/src"

// RunOptions describes a single sandboxed build run.
type RunOptions struct {
	// Name is the container name. Empty lets Docker assign one.
	Name string

	// Image is the container image the build runs in.
	Image string

	// SourceDir is the host path of the source tree, bind-mounted at /src.
	SourceDir string

	// StoreDir is the host path of the tool store. It is mounted read-only
	// at the same path inside the container so resolved store paths in the
	// injected environment stay valid.
	StoreDir string

	// Command is the build command and its arguments.
	Command []string

	// Env is the resolved environment to inject, as KEY=VALUE pairs.
	Env []string

	// Labels tag the container with kiln.* metadata.
	Labels map[string]string

	// Output receives the combined build output. Nil discards it.
	Output io.Writer
}

// Run executes a build inside a fresh container and blocks until it
// exits. The container is removed automatically (--rm); only its exit
// status and output survive. A non-zero exit from the build command maps
// to ExitGeneralError since the failure is the build's, not Docker's.
func Run(ctx context.Context, opts RunOptions) error {
	if opts.Image == "" {
		return model.NewCLIError(model.ExitGeneralError, "sandbox image is not set")
	}
	if len(opts.Command) == 0 {
		return model.NewCLIError(model.ExitGeneralError, "sandbox build command is empty")
	}

	args := make([]string, 0, len(opts.Labels)*2+len(opts.Env)*2+len(opts.Command)+12)
	args = append(args, "run", "--rm")
	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}
	args = append(args, "--workdir", workDir)
	args = append(args, "--volume", opts.SourceDir+":"+workDir)
	if opts.StoreDir != "" {
		args = append(args, "--volume", opts.StoreDir+":"+opts.StoreDir+":ro")
	}
	for key, value := range opts.Labels {
		args = append(args, "--label", key+"="+value)
	}
	for _, kv := range opts.Env {
		args = append(args, "--env", kv)
	}
	args = append(args, opts.Image)
	args = append(args, opts.Command...)

	// #nosec G204 — args are constructed internally, not from user input
	cmd := exec.CommandContext(ctx, "docker", args...)
	if opts.Output != nil {
		cmd.Stdout = opts.Output
		cmd.Stderr = opts.Output
	}

	if err := cmd.Run(); err != nil {
		return model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("sandboxed build failed: %s", strings.Join(opts.Command, " ")),
			err,
		)
	}
	return nil
}

// ListManagedContainers queries the Docker daemon for all containers
// carrying the kiln.managed-by label, including stopped ones. All state
// is derived from labels; there is no external registry.
func ListManagedContainers(ctx context.Context, cli *Client) ([]model.SandboxInfo, error) {
	// Server-side filtering avoids transferring unrelated containers.
	filterArgs := filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
	)

	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker containers",
			err,
		)
	}

	result := make([]model.SandboxInfo, 0, len(containers))
	for _, c := range containers {
		result = append(result, containerToInfo(c))
	}
	return result, nil
}

// containerToInfo maps a Docker API container to the domain model,
// decoupling callers from SDK types. Docker returns names with a leading
// "/" that we strip for display.
func containerToInfo(c types.Container) model.SandboxInfo {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}

	return model.SandboxInfo{
		ContainerID:   c.ID,
		ContainerName: name,
		Environment:   c.Labels[LabelEnvironment],
		Status:        c.State,
		Labels:        c.Labels,
	}
}

// GroupByEnvironment groups containers by their kiln.environment label.
// Containers without the label are skipped; ListManagedContainers already
// filters for kiln labels, so this is a guard against partial labeling.
func GroupByEnvironment(containers []model.SandboxInfo) map[string][]model.SandboxInfo {
	groups := make(map[string][]model.SandboxInfo)
	for _, c := range containers {
		if c.Environment == "" {
			continue
		}
		groups[c.Environment] = append(groups[c.Environment], c)
	}
	return groups
}

// RemoveContainer removes a container by ID. When force is true Docker
// kills the container before removal, which `kiln clean --force` uses to
// clear stuck builds.
func RemoveContainer(ctx context.Context, cli *Client, containerID string, force bool) error {
	err := cli.Inner().ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force: force,
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove container %q", containerID),
			err,
		)
	}
	return nil
}

// ContainerName builds a deterministic-prefix, unique container name for
// a sandbox build, e.g. "kiln-mutiny-wallet-1700000000".
func ContainerName(environment string, now time.Time) string {
	return fmt.Sprintf("kiln-%s-%d", environment, now.Unix())
}
