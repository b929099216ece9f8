package source

import (
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRepo creates a temporary directory with an initialized Git
// repository containing a single commit. A local user.name and user.email
// are configured so `git commit` works in CI environments without global
// Git configuration.
func setupTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	runTestGit(t, dir, "init")
	runTestGit(t, dir, "config", "user.email", "test@example.com")
	runTestGit(t, dir, "config", "user.name", "Test User")

	err := os.WriteFile(filepath.Join(dir, "kiln.json"), []byte("{\"name\": \"demo\"}\n"), 0644)
	require.NoError(t, err, "failed to create initial file")

	runTestGit(t, dir, "add", ".")
	runTestGit(t, dir, "commit", "-m", "initial commit")

	return dir
}

// runTestGit runs a git command in the specified directory and fails the
// test immediately on a non-zero exit.
func runTestGit(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, string(output))
	return string(output)
}

func TestDescribe_CleanRepo(t *testing.T) {
	// Arrange
	dir := setupTestRepo(t)

	// Act
	info, err := Describe(dir)

	// Assert
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile("^[0-9a-f]{40}$"), info.Revision)
	assert.False(t, info.Dirty)

	// macOS temp dirs resolve through /private symlinks, so compare
	// the resolved paths.
	wantRoot, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	gotRoot, err := filepath.EvalSymlinks(info.Root)
	require.NoError(t, err)
	assert.Equal(t, wantRoot, gotRoot)
}

func TestDescribe_FromSubdirectory(t *testing.T) {
	// Arrange
	dir := setupTestRepo(t)
	sub := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(sub, 0755))

	// Act
	info, err := Describe(sub)

	// Assert
	require.NoError(t, err)
	rootInfo, err := Describe(dir)
	require.NoError(t, err)
	assert.Equal(t, rootInfo.Revision, info.Revision)
	assert.Equal(t, rootInfo.Root, info.Root)
}

func TestDirty_TrackedModification(t *testing.T) {
	// Arrange
	dir := setupTestRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kiln.json"), []byte("{\"name\": \"changed\"}\n"), 0644))

	// Act
	dirty, err := Dirty(dir)

	// Assert
	require.NoError(t, err)
	assert.True(t, dirty)
}

func TestDirty_UntrackedFilesIgnored(t *testing.T) {
	// Arrange
	dir := setupTestRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scratch.txt"), []byte("notes\n"), 0644))

	// Act
	dirty, err := Dirty(dir)

	// Assert
	require.NoError(t, err)
	assert.False(t, dirty, "untracked files do not make the tree dirty")
}

func TestDescribe_NotARepository(t *testing.T) {
	// Arrange
	dir := t.TempDir()

	// Act
	_, err := Describe(dir)

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotRepository)
}
