package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmr-tortoise/kiln/internal/descriptor"
	"github.com/mmr-tortoise/kiln/internal/lockfile"
	"github.com/mmr-tortoise/kiln/internal/model"
	"github.com/mmr-tortoise/kiln/internal/platform"
	"github.com/mmr-tortoise/kiln/internal/toolchain"
)

// Resolve performs the single-pass environment resolution.
//
// Steps, in order:
//  1. Validate the toolchain declaration (wasm target must be pinned).
//  2. Assemble the tool set: the toolchain compiler first, then the
//     descriptor's tools in declaration order, dropping any tool whose
//     excludeOn list names the platform's OS family.
//  3. Attach each tool's store path from its lock pin. A tool without a
//     pin for the platform is an unresolvable reference, which aborts
//     resolution.
//  4. Expand the descriptor's env templates: "${tool}" becomes the tool's
//     store path. References to tools outside the resolved set abort
//     resolution.
//
// The result is validated before return, so callers can rely on a
// non-empty tool set and non-empty derived variables.
func Resolve(d *descriptor.Descriptor, tc *toolchain.Toolchain, lf *lockfile.Lockfile, p platform.Platform, storeDir string) (*model.ResolvedEnv, error) {
	if !p.IsValid() {
		return nil, model.NewCLIError(
			model.ExitUnsupportedPlatform,
			fmt.Sprintf("unsupported platform %q", p),
		)
	}
	if err := tc.Validate(); err != nil {
		return nil, err
	}

	tools := Tools(d, tc, p)

	// Attach store paths from the lock pins. Store paths are pure
	// derivations of the pin hash: no filesystem access happens here.
	byName := make(map[string]string, len(tools))
	for i := range tools {
		pin, err := lf.Pin(tools[i], p)
		if err != nil {
			return nil, model.WrapCLIError(
				model.ExitLockfileError,
				fmt.Sprintf("unresolvable tool reference on platform %s", p),
				err,
			)
		}
		tools[i].StorePath = filepath.Join(storeDir, pin.Hash+"-"+tools[i].Ref())
		byName[tools[i].Name] = tools[i].StorePath
	}

	env, err := expandEnv(d.Env, byName)
	if err != nil {
		return nil, err
	}

	resolved := &model.ResolvedEnv{
		Name:      d.Name,
		Platform:  p,
		Toolchain: tc.Channel,
		Tools:     tools,
		Env:       env,
	}
	if err := resolved.Validate(); err != nil {
		return nil, fmt.Errorf("resolution produced an invalid environment: %w", err)
	}
	return resolved, nil
}

// Tools assembles the platform's tool set without lock pins or env
// expansion: the toolchain compiler first, then descriptor tools in
// declaration order with the Darwin-family exclusion applied. This is the
// inclusion rule in its entirety — no other conditional logic exists.
func Tools(d *descriptor.Descriptor, tc *toolchain.Toolchain, p platform.Platform) []model.Tool {
	tools := make([]model.Tool, 0, len(d.Tools)+1)
	tools = append(tools, tc.Tool())

	for _, spec := range d.Tools {
		if excludedOn(spec, p) {
			continue
		}
		tools = append(tools, model.Tool{Name: spec.Name, Version: spec.Version})
	}
	return tools
}

// DeclaredTools returns the full tool set across all platforms (no
// exclusions applied). This is the orphan baseline for lock verification:
// a tool excluded on the current platform is still a legitimate lock entry.
func DeclaredTools(d *descriptor.Descriptor, tc *toolchain.Toolchain) []model.Tool {
	tools := make([]model.Tool, 0, len(d.Tools)+1)
	tools = append(tools, tc.Tool())
	for _, spec := range d.Tools {
		tools = append(tools, model.Tool{Name: spec.Name, Version: spec.Version})
	}
	return tools
}

// excludedOn reports whether the spec's excludeOn list names the platform's
// OS family.
func excludedOn(spec descriptor.ToolSpec, p platform.Platform) bool {
	for _, osName := range spec.ExcludeOn {
		if osName == p.OS() {
			return true
		}
	}
	return false
}

// expandEnv expands "${tool}" references in every env template against the
// resolved store paths. Unknown references abort resolution: a dangling
// reference would otherwise export a silently broken compiler override.
func expandEnv(templates map[string]string, storePaths map[string]string) (map[string]string, error) {
	env := make(map[string]string, len(templates))
	var missing []string

	for name, tmpl := range templates {
		expanded := os.Expand(tmpl, func(ref string) string {
			path, ok := storePaths[ref]
			if !ok {
				missing = append(missing, fmt.Sprintf("%s -> ${%s}", name, ref))
				return ""
			}
			return path
		})
		env[name] = expanded
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("env templates reference tools not resolved for this platform: %s", strings.Join(missing, ", "))
	}
	return env, nil
}
