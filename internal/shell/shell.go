// Package shell constructs and enters the interactive development shell
// for a resolved environment.
//
// The shell environment is the invoking process environment with every
// resolved tool's bin directory prepended to PATH and the four derived
// variables merged in. LD_LIBRARY_PATH is the one additive variable: the
// resolved value is prepended to whatever the host already exports, since
// it is a search path rather than an override.
package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mmr-tortoise/kiln/internal/model"
)

// searchPathVars are treated as search paths: the resolved value is
// prepended to the inherited value instead of replacing it.
var searchPathVars = map[string]bool{
	"LD_LIBRARY_PATH": true,
}

// Environ builds the complete process environment for a dev shell or build:
// the base environment (usually os.Environ()) with PATH and the derived
// variables merged in. The input slices are not modified.
func Environ(base []string, env *model.ResolvedEnv) []string {
	merged := make(map[string]string, len(base)+len(env.Env)+1)
	var order []string
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if _, seen := merged[k]; !seen {
			order = append(order, k)
		}
		merged[k] = v
	}

	set := func(k, v string) {
		if _, seen := merged[k]; !seen {
			order = append(order, k)
		}
		merged[k] = v
	}

	// Tool bin directories go ahead of the inherited PATH so pinned tools
	// shadow any host-installed versions.
	set("PATH", joinPath(PathEntries(env), merged["PATH"]))

	for name, value := range env.Env {
		if searchPathVars[name] {
			set(name, joinPath([]string{value}, merged[name]))
		} else {
			set(name, value)
		}
	}

	result := make([]string, 0, len(order))
	for _, k := range order {
		result = append(result, k+"="+merged[k])
	}
	return result
}

// PathEntries returns the bin directory of every resolved tool, in tool
// order. Tools without a materialized store path are skipped; callers that
// need a complete PATH ensure the store first.
func PathEntries(env *model.ResolvedEnv) []string {
	entries := make([]string, 0, len(env.Tools))
	for _, tool := range env.Tools {
		if tool.StorePath == "" {
			continue
		}
		entries = append(entries, filepath.Join(tool.StorePath, "bin"))
	}
	return entries
}

// ExportScript renders the derived environment as POSIX export lines, for
// `kiln shell --print` and for eval'ing into an existing shell. Output is
// sorted by variable name with PATH last, and values are single-quoted.
func ExportScript(env *model.ResolvedEnv) string {
	var b strings.Builder

	names := env.EnvNames()
	for _, name := range names {
		value := env.Env[name]
		if searchPathVars[name] {
			// Preserve the host's search path at eval time.
			fmt.Fprintf(&b, "export %s=%s\"${%s:+:$%s}\"\n", name, quote(value), name, name)
		} else {
			fmt.Fprintf(&b, "export %s=%s\n", name, quote(value))
		}
	}
	fmt.Fprintf(&b, "export PATH=%s:\"$PATH\"\n", quote(strings.Join(PathEntries(env), ":")))
	return b.String()
}

// Enter replaces the current process's interaction with an interactive
// $SHELL (fallback /bin/sh) running in the constructed environment. It
// blocks until the shell exits and returns its error, if any.
func Enter(ctx context.Context, env *model.ResolvedEnv, workDir string) error {
	sh := os.Getenv("SHELL")
	if sh == "" {
		sh = "/bin/sh"
	}

	cmd := exec.CommandContext(ctx, sh)
	cmd.Dir = workDir
	cmd.Env = Environ(os.Environ(), env)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		// A non-zero exit from the user's shell is normal (e.g., last
		// command failed); only report errors starting the shell.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil
		}
		return fmt.Errorf("starting shell %s: %w", sh, err)
	}
	return nil
}

// joinPath joins non-empty path segments with the list separator.
func joinPath(entries []string, tail string) string {
	parts := make([]string, 0, len(entries)+1)
	for _, e := range entries {
		if e != "" {
			parts = append(parts, e)
		}
	}
	if tail != "" {
		parts = append(parts, tail)
	}
	return strings.Join(parts, string(os.PathListSeparator))
}

// quote single-quotes a value for POSIX shells, escaping embedded quotes.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
