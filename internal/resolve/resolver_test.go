package resolve

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/kiln/internal/descriptor"
	"github.com/mmr-tortoise/kiln/internal/lockfile"
	"github.com/mmr-tortoise/kiln/internal/model"
	"github.com/mmr-tortoise/kiln/internal/platform"
	"github.com/mmr-tortoise/kiln/internal/toolchain"
)

// testDescriptor mirrors the descriptor this tool ships: a wasm32 build
// environment with four derived env vars and browser tools excluded on
// the Darwin family.
func testDescriptor() *descriptor.Descriptor {
	return &descriptor.Descriptor{
		Name: "wallet-wasm",
		Tools: []descriptor.ToolSpec{
			{Name: "clang", Version: "14.0.6"},
			{Name: "libclang", Version: "14.0.6"},
			{Name: "openssl", Version: "3.0.12"},
			{Name: "wasm-pack", Version: "0.12.1"},
			{Name: "nodejs", Version: "18.17.1"},
			{Name: "chromium", Version: "117.0.5938.62", ExcludeOn: []string{"darwin"}},
			{Name: "chromedriver", Version: "117.0.5938.62", ExcludeOn: []string{"darwin"}},
		},
		Env: map[string]string{
			"LIBCLANG_PATH":                 "${libclang}/lib",
			"LD_LIBRARY_PATH":               "${openssl}/lib",
			"CC_wasm32_unknown_unknown":     "${clang}/bin/clang-14",
			"CFLAGS_wasm32_unknown_unknown": "-I${clang}/lib/clang/14.0.6/include",
		},
	}
}

func testToolchain() *toolchain.Toolchain {
	return &toolchain.Toolchain{
		Channel: "1.71.0",
		Targets: []string{toolchain.WasmTarget},
	}
}

// testLock builds a lock file covering every declared tool on every
// supported platform. Hashes are synthetic but shape-correct: resolution
// never inspects them, it only derives store paths.
func testLock(d *descriptor.Descriptor, tc *toolchain.Toolchain) *lockfile.Lockfile {
	lf := &lockfile.Lockfile{
		Version: lockfile.FormatVersion,
		Tools:   make(map[string]map[string]lockfile.Pin),
	}
	for _, tool := range DeclaredTools(d, tc) {
		pins := make(map[string]lockfile.Pin)
		for i, p := range platform.All() {
			hash := fmt.Sprintf("%032d", i) // 32 chars, per-platform distinct
			pins[string(p)] = lockfile.Pin{
				Hash:   hash,
				URL:    "nar/" + hash + ".nar.xz",
				SHA256: "0000000000000000000000000000000000000000000000000000000000000000",
			}
		}
		lf.Tools[tool.Ref()] = pins
	}
	return lf
}

// TestResolve_DarwinExclusion verifies the platform-conditional rule: the
// browser and driver are in the tool set iff the platform is not
// Darwin-family. No other tool's membership varies by platform.
func TestResolve_DarwinExclusion(t *testing.T) {
	d, tc, lf := testDescriptor(), testToolchain(), testLock(testDescriptor(), testToolchain())

	for _, p := range platform.All() {
		env, err := Resolve(d, tc, lf, p, "/kiln/store")
		require.NoError(t, err, "platform %s should resolve", p)

		if p.IsDarwin() {
			assert.False(t, env.HasTool("chromium"), "%s must exclude the browser", p)
			assert.False(t, env.HasTool("chromedriver"), "%s must exclude the driver", p)
			assert.Len(t, env.Tools, 6, "toolchain + 5 unconditional tools")
		} else {
			assert.True(t, env.HasTool("chromium"), "%s must include the browser", p)
			assert.True(t, env.HasTool("chromedriver"), "%s must include the driver", p)
			assert.Len(t, env.Tools, 8, "toolchain + 7 tools")
		}

		// The unconditional tools are present everywhere.
		for _, name := range []string{"rust", "clang", "libclang", "openssl", "wasm-pack", "nodejs"} {
			assert.True(t, env.HasTool(name), "%s missing on %s", name, p)
		}
	}
}

// TestResolve_TypedPlatform verifies the resolved environment carries the
// platform as the typed identifier, so downstream consumers (sandbox
// labels, build results) can format it without conversion.
func TestResolve_TypedPlatform(t *testing.T) {
	d, tc := testDescriptor(), testToolchain()
	lf := testLock(d, tc)

	for _, p := range platform.All() {
		env, err := Resolve(d, tc, lf, p, "/kiln/store")
		require.NoError(t, err)

		assert.Equal(t, p, env.Platform)
		assert.Equal(t, string(p), env.Platform.String())
	}
}

// TestResolve_FourEnvVars verifies every supported platform exports exactly
// the four derived environment variables, each expanding to a non-empty
// store-rooted value.
func TestResolve_FourEnvVars(t *testing.T) {
	d, tc := testDescriptor(), testToolchain()
	lf := testLock(d, tc)

	for _, p := range platform.All() {
		env, err := Resolve(d, tc, lf, p, "/kiln/store")
		require.NoError(t, err)

		assert.Equal(t, []string{
			"CC_wasm32_unknown_unknown",
			"CFLAGS_wasm32_unknown_unknown",
			"LD_LIBRARY_PATH",
			"LIBCLANG_PATH",
		}, env.EnvNames(), "platform %s", p)

		for name, value := range env.Env {
			assert.NotEmpty(t, value, "%s must be non-empty on %s", name, p)
		}

		// The compiler override points inside the pinned clang store path.
		assert.Contains(t, env.Env["CC_wasm32_unknown_unknown"], "clang-14.0.6")
		assert.Contains(t, env.Env["CC_wasm32_unknown_unknown"], "/bin/clang-14")
	}
}

// TestResolve_Idempotent verifies re-resolving identical inputs yields a
// deeply equal environment — resolution has no hidden state.
func TestResolve_Idempotent(t *testing.T) {
	d, tc := testDescriptor(), testToolchain()
	lf := testLock(d, tc)

	first, err := Resolve(d, tc, lf, platform.X8664Linux, "/kiln/store")
	require.NoError(t, err)
	second, err := Resolve(d, tc, lf, platform.X8664Linux, "/kiln/store")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// TestResolve_ToolOrder verifies the toolchain compiler heads the list and
// descriptor order is preserved for the rest.
func TestResolve_ToolOrder(t *testing.T) {
	d, tc := testDescriptor(), testToolchain()
	lf := testLock(d, tc)

	env, err := Resolve(d, tc, lf, platform.X8664Linux, "/kiln/store")
	require.NoError(t, err)

	var names []string
	for _, tool := range env.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"rust", "clang", "libclang", "openssl", "wasm-pack", "nodejs", "chromium", "chromedriver"}, names)
}

// TestResolve_MissingPin verifies a tool without a lock pin for the target
// platform is an unresolvable reference that aborts resolution.
func TestResolve_MissingPin(t *testing.T) {
	d, tc := testDescriptor(), testToolchain()
	lf := testLock(d, tc)
	delete(lf.Tools["nodejs-18.17.1"], string(platform.Aarch64Linux))

	_, err := Resolve(d, tc, lf, platform.Aarch64Linux, "/kiln/store")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitLockfileError, cliErr.Code)
}

// TestResolve_DanglingTemplate verifies an env template referencing a tool
// excluded on the target platform aborts resolution instead of exporting an
// empty value.
func TestResolve_DanglingTemplate(t *testing.T) {
	d, tc := testDescriptor(), testToolchain()
	d.Env["CHROME_BINARY"] = "${chromium}/bin/chromium"
	lf := testLock(d, tc)

	// Fine on Linux, where chromium is resolved.
	_, err := Resolve(d, tc, lf, platform.X8664Linux, "/kiln/store")
	require.NoError(t, err)

	// Fatal on Darwin, where chromium is excluded.
	_, err = Resolve(d, tc, lf, platform.Aarch64Darwin, "/kiln/store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chromium")
}

// TestResolve_UnsupportedPlatform verifies identifiers outside the closed
// set are fatal with the dedicated exit code.
func TestResolve_UnsupportedPlatform(t *testing.T) {
	d, tc := testDescriptor(), testToolchain()
	lf := testLock(d, tc)

	_, err := Resolve(d, tc, lf, platform.Platform("x86_64-windows"), "/kiln/store")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitUnsupportedPlatform, cliErr.Code)
}

// TestResolve_ToolchainWithoutWasmTarget verifies resolution propagates the
// toolchain validation failure.
func TestResolve_ToolchainWithoutWasmTarget(t *testing.T) {
	d := testDescriptor()
	tc := &toolchain.Toolchain{Channel: "1.71.0", Targets: []string{"x86_64-unknown-linux-gnu"}}
	lf := testLock(d, tc)

	_, err := Resolve(d, tc, lf, platform.X8664Linux, "/kiln/store")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitToolchainError, cliErr.Code)
}
