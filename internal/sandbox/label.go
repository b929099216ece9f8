package sandbox

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmr-tortoise/kiln/internal/model"
	"github.com/mmr-tortoise/kiln/internal/platform"
)

// Label key constants define the Docker labels that record which
// environment a sandbox container was built for. Labels are the only
// persistence mechanism — listing and cleanup reconstruct everything
// from container inspection.
//
// All keys share the "kiln." prefix to avoid collisions with labels set
// by other tools (Docker Compose, VS Code, etc.).
const (
	// LabelPrefix is the common prefix for all kiln labels.
	LabelPrefix = "kiln."

	// LabelManagedBy identifies containers created by kiln. This is the
	// primary label used for filtering and discovery.
	// Key: "kiln.managed-by", Value: always "kiln".
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelEnvironment stores the environment name from the descriptor.
	// Key: "kiln.environment", Value: e.g. "mutiny-wallet".
	LabelEnvironment = LabelPrefix + "environment"

	// LabelPlatform stores the platform the build resolved for.
	// Key: "kiln.platform", Value: e.g. "x86_64-linux".
	LabelPlatform = LabelPrefix + "platform"

	// LabelToolchain stores the pinned Rust toolchain channel.
	// Key: "kiln.toolchain", Value: e.g. "1.74.0".
	LabelToolchain = LabelPrefix + "toolchain"

	// LabelCreatedAt stores the RFC3339 timestamp of container creation.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value of the LabelManagedBy label on
// every container kiln creates.
const ManagedByValue = "kiln"

// Metadata is the environment identity recorded on a sandbox container,
// reconstructed from its labels.
type Metadata struct {
	// Environment is the descriptor's environment name.
	Environment string

	// Platform is the platform the sandbox resolved for.
	Platform platform.Platform

	// Toolchain is the pinned toolchain channel.
	Toolchain string

	// CreatedAt is when the container was created, in UTC.
	CreatedAt time.Time
}

// BuildLabels constructs the Docker label map applied to a sandbox build
// container. The labels identify the environment well enough that
// `kiln list` and `kiln clean` need no other state.
func BuildLabels(env *model.ResolvedEnv, createdAt time.Time) map[string]string {
	return map[string]string{
		LabelManagedBy:   ManagedByValue,
		LabelEnvironment: env.Name,
		LabelPlatform:    env.Platform.String(),
		LabelToolchain:   env.Toolchain,
		// UTC keeps timestamps comparable regardless of host timezone.
		LabelCreatedAt: createdAt.UTC().Format(time.RFC3339),
	}
}

// ParseLabels reconstructs sandbox Metadata from Docker container labels.
// This is the inverse of BuildLabels. Missing required labels cause an
// error listing all of them, so a single inspect run shows everything
// that is wrong with a mislabeled container.
func ParseLabels(labels map[string]string) (*Metadata, error) {
	requiredKeys := []string{
		LabelManagedBy,
		LabelEnvironment,
		LabelPlatform,
		LabelToolchain,
		LabelCreatedAt,
	}

	var missing []string
	for _, key := range requiredKeys {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf(
			"label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue,
		)
	}

	p, err := platform.Parse(labels[LabelPlatform])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelPlatform, err)
	}

	createdAt, err := time.Parse(time.RFC3339, labels[LabelCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelCreatedAt, err)
	}

	return &Metadata{
		Environment: labels[LabelEnvironment],
		Platform:    p,
		Toolchain:   labels[LabelToolchain],
		CreatedAt:   createdAt,
	}, nil
}

// FilterLabels returns the label filter that selects only kiln-managed
// containers when listing via the Docker API.
func FilterLabels() map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
	}
}
