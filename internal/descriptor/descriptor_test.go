package descriptor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/kiln/internal/model"
)

// sampleDescriptor is a realistic kiln.json with JSONC comments, matching
// the descriptor this tool ships for wasm32 builds.
const sampleDescriptor = `{
	// Build environment for the wasm wallet package.
	"name": "wallet-wasm",
	"toolchain": "rust-toolchain.toml",
	"lockfile": "kiln.lock.yaml",
	"cache": "https://cache.example.org",
	"tools": [
		{"name": "clang", "version": "14.0.6"},
		{"name": "libclang", "version": "14.0.6"},
		{"name": "openssl", "version": "3.0.12"},
		{"name": "wasm-pack", "version": "0.12.1"},
		{"name": "nodejs", "version": "18.17.1"},
		{"name": "chromium", "version": "117.0.5938.62", "excludeOn": ["darwin"]},
		{"name": "chromedriver", "version": "117.0.5938.62", "excludeOn": ["darwin"]},
	],
	"env": {
		"LIBCLANG_PATH": "${libclang}/lib",
		"LD_LIBRARY_PATH": "${openssl}/lib",
		"CC_wasm32_unknown_unknown": "${clang}/bin/clang-14",
		"CFLAGS_wasm32_unknown_unknown": "-I${clang}/lib/clang/14.0.6/include",
	},
	"build": {
		"command": ["wasm-pack", "build", "--release"],
		"artifact": "pkg/wallet_bg.wasm",
	},
}`

// writeDescriptor writes the sample descriptor into dir and returns its path.
func writeDescriptor(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

// TestLoad verifies that a JSONC descriptor with comments and trailing
// commas parses into a fully populated Descriptor.
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeDescriptor(t, dir, sampleDescriptor)

	d, err := Load(path)
	require.NoError(t, err, "JSONC descriptors with comments should parse")

	assert.Equal(t, "wallet-wasm", d.Name)
	assert.Equal(t, "https://cache.example.org", d.Cache)
	assert.Len(t, d.Tools, 7)
	assert.Equal(t, []string{"darwin"}, d.Tools[5].ExcludeOn)
	assert.Len(t, d.Env, 4)
	require.NotNil(t, d.Build)
	assert.Equal(t, []string{"wasm-pack", "build", "--release"}, d.Build.Command)

	// Dir must be recorded so relative file references resolve later.
	assert.True(t, filepath.IsAbs(d.Dir))
	assert.Equal(t, filepath.Join(d.Dir, "rust-toolchain.toml"), d.ToolchainPath())
	assert.Equal(t, filepath.Join(d.Dir, "kiln.lock.yaml"), d.LockfilePath())
}

// TestLoad_Defaults verifies the toolchain and lock file paths fall back to
// their default names when the descriptor omits them.
func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeDescriptor(t, dir, `{"name": "minimal", "tools": [{"name": "clang", "version": "14.0.6"}]}`)

	d, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(d.Dir, DefaultToolchainFile), d.ToolchainPath())
	assert.Equal(t, filepath.Join(d.Dir, DefaultLockFile), d.LockfilePath())
}

// TestLoad_NotFound verifies the missing-descriptor error carries the
// dedicated exit code so the CLI surfaces it distinctly.
func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), FileName))
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitDescriptorNotFound, cliErr.Code)
}

// TestLoad_InvalidJSON verifies malformed descriptors fail with a parse error.
func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeDescriptor(t, dir, `{"name": "broken", "tools": [`)

	_, err := Load(path)
	assert.Error(t, err)
}

// TestFind verifies the upward walk: a descriptor at the project root is
// found from a nested subdirectory.
func TestFind(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, sampleDescriptor)

	nested := filepath.Join(root, "src", "networking")
	require.NoError(t, os.MkdirAll(nested, 0755))

	found, err := Find(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, FileName), found)
}

// TestFind_NotFound verifies the walk terminates at the filesystem root
// with the dedicated exit code.
func TestFind_NotFound(t *testing.T) {
	_, err := Find(t.TempDir())
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitDescriptorNotFound, cliErr.Code)
}
