// Package cli — render_test.go contains unit tests for the pure formatting
// functions used by the env, tools, list, and clean commands.
//
// These tests verify output formatting without requiring a Docker daemon,
// a descriptor on disk, or any external dependencies.
package cli

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/kiln/internal/model"
	"github.com/mmr-tortoise/kiln/internal/platform"
	"github.com/mmr-tortoise/kiln/internal/sandbox"
)

func TestRenderEnv_Text(t *testing.T) {
	// Arrange
	env := &model.ResolvedEnv{
		Env: map[string]string{
			"LIBCLANG_PATH":                 "/store/a-libclang-14.0.6/lib",
			"LD_LIBRARY_PATH":               "/store/b-openssl-3.0.12/lib",
			"CC_wasm32_unknown_unknown":     "/store/c-clang-14.0.6/bin/clang-14",
			"CFLAGS_wasm32_unknown_unknown": "-I/store/c-clang-14.0.6/include",
		},
	}

	// Act
	out := renderEnv(env, false)

	// Assert: one line per variable, sorted by name.
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "CC_wasm32_unknown_unknown=/store/c-clang-14.0.6/bin/clang-14", lines[0])
	assert.True(t, strings.HasPrefix(lines[3], "LIBCLANG_PATH="))
}

func TestRenderEnv_JSON(t *testing.T) {
	// Arrange
	env := &model.ResolvedEnv{
		Env: map[string]string{"LIBCLANG_PATH": "/store/a/lib"},
	}

	// Act
	out := renderEnv(env, true)

	// Assert
	var parsed map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "/store/a/lib", parsed["LIBCLANG_PATH"])
}

func TestRenderTools_Text(t *testing.T) {
	// Arrange
	statuses := []toolStatus{
		{Name: "rust", Version: "1.71.0", FromToolchain: true, Cached: true},
		{Name: "clang", Version: "14.0.6", Cached: false},
	}

	// Act
	out := renderTools(statuses, false)

	// Assert
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3, "header plus one row per tool")
	assert.Contains(t, lines[0], "NAME")
	assert.Contains(t, lines[1], "toolchain")
	assert.Contains(t, lines[1], "cached")
	assert.Contains(t, lines[2], "descriptor")
	assert.Contains(t, lines[2], "missing")
}

func TestRenderTools_JSON(t *testing.T) {
	// Arrange
	statuses := []toolStatus{
		{Name: "clang", Version: "14.0.6", Cached: true, StorePath: "/store/x-clang-14.0.6"},
	}

	// Act
	out := renderTools(statuses, true)

	// Assert
	var parsed []toolStatus
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	require.Len(t, parsed, 1)
	assert.Equal(t, "clang", parsed[0].Name)
	assert.True(t, parsed[0].Cached)
}

func TestRenderContainers_Empty(t *testing.T) {
	assert.Equal(t, "No sandbox containers found.\n", renderContainers(nil, false))
}

func TestRenderContainers_EmptyJSON(t *testing.T) {
	// A nil slice must render as an empty JSON array, not null.
	assert.Equal(t, "[]\n", renderContainers(nil, true))
}

func TestRenderContainers_GroupedAndSorted(t *testing.T) {
	// Arrange
	containers := []model.SandboxInfo{
		{ContainerID: "c1", ContainerName: "kiln-wallet-1", Environment: "wallet", Status: "exited"},
		{ContainerID: "c2", ContainerName: "kiln-indexer-1", Environment: "indexer", Status: "running"},
	}

	// Act
	out := renderContainers(containers, false)

	// Assert: environments appear alphabetically, and containers without
	// full kiln labels show blank metadata columns.
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "indexer")
	assert.Contains(t, lines[1], "-")
	assert.Contains(t, lines[2], "wallet")
}

func TestRenderContainers_LabeledMetadata(t *testing.T) {
	// Arrange
	env := &model.ResolvedEnv{Name: "wallet", Platform: platform.X8664Linux, Toolchain: "1.71.0"}
	containers := []model.SandboxInfo{{
		ContainerID:   "c1",
		ContainerName: "kiln-wallet-1",
		Environment:   "wallet",
		Status:        "exited",
		Labels:        sandbox.BuildLabels(env, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)),
	}}

	// Act
	out := renderContainers(containers, false)

	// Assert
	assert.Contains(t, out, "x86_64-linux")
	assert.Contains(t, out, "1.71.0")
}

func TestSelectCleanTargets(t *testing.T) {
	// Arrange
	containers := []model.SandboxInfo{
		{ContainerID: "a", Status: "exited"},
		{ContainerID: "b", Status: "running"},
		{ContainerID: "c", Status: "created"},
	}

	// Act + Assert: default skips running containers.
	targets := selectCleanTargets(containers, false)
	require.Len(t, targets, 2)
	for _, c := range targets {
		assert.NotEqual(t, "running", c.Status)
	}

	// --all removes everything.
	assert.Len(t, selectCleanTargets(containers, true), 3)
}

func TestResolvePlatform_Override(t *testing.T) {
	// Act
	p, err := resolvePlatform("aarch64-darwin")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, platform.Aarch64Darwin, p)
}

func TestResolvePlatform_Invalid(t *testing.T) {
	// Act
	_, err := resolvePlatform("mips-linux")

	// Assert
	require.Error(t, err)
	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitUnsupportedPlatform, cliErr.Code)
}
