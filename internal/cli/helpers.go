// helpers.go holds the environment-loading pipeline shared by the
// shell, env, tools, and fetch commands: discover the descriptor from
// the working directory, load and validate all three input files, pick
// the target platform, and verify the lock file before resolving.
package cli

import (
	"fmt"
	"strings"

	"github.com/mmr-tortoise/kiln/internal/descriptor"
	"github.com/mmr-tortoise/kiln/internal/lockfile"
	"github.com/mmr-tortoise/kiln/internal/model"
	"github.com/mmr-tortoise/kiln/internal/platform"
	"github.com/mmr-tortoise/kiln/internal/resolve"
	"github.com/mmr-tortoise/kiln/internal/store"
	"github.com/mmr-tortoise/kiln/internal/toolchain"
)

// session is the loaded and verified input set a command operates on.
type session struct {
	desc     *descriptor.Descriptor
	tc       *toolchain.Toolchain
	lf       *lockfile.Lockfile
	platform platform.Platform
	store    *store.Store
}

// loadSession runs the shared pipeline. platformFlag overrides host
// detection when non-empty; invalid values are fatal since the supported
// platform set is closed.
func loadSession(platformFlag string) (*session, error) {
	descPath, err := descriptor.Find(".")
	if err != nil {
		return nil, err
	}
	VerboseLog("Using descriptor %s", descPath)

	d, err := descriptor.Load(descPath)
	if err != nil {
		return nil, err
	}
	if issues := descriptor.Validate(d); len(issues) > 0 {
		msgs := make([]string, len(issues))
		for i, issue := range issues {
			msgs[i] = issue.Error()
		}
		return nil, model.NewCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("invalid %s: %s", descriptor.FileName, strings.Join(msgs, "; ")),
		)
	}

	tc, err := toolchain.Load(d.ToolchainPath())
	if err != nil {
		return nil, err
	}

	p, err := resolvePlatform(platformFlag)
	if err != nil {
		return nil, err
	}
	VerboseLog("Target platform %s, toolchain %s", p, tc.Channel)

	lf, err := lockfile.Load(d.LockfilePath())
	if err != nil {
		return nil, err
	}
	required := resolve.Tools(d, tc, p)
	declared := resolve.DeclaredTools(d, tc)
	if err := lf.Verify(required, declared, p); err != nil {
		return nil, err
	}

	st := store.New(store.Config{
		CacheURL: d.Cache,
		Logger:   newLogger(),
	})

	return &session{desc: d, tc: tc, lf: lf, platform: p, store: st}, nil
}

// resolve runs the pure resolution step on the loaded inputs.
func (s *session) resolve() (*model.ResolvedEnv, error) {
	return resolve.Resolve(s.desc, s.tc, s.lf, s.platform, s.store.Dir())
}

// tools returns the platform's resolved tool set, exclusions applied.
func (s *session) tools() []model.Tool {
	return resolve.Tools(s.desc, s.tc, s.platform)
}

// resolvePlatform turns the --platform flag into a Platform, falling back
// to host detection. Both paths reject anything outside the supported set.
func resolvePlatform(flag string) (platform.Platform, error) {
	if flag == "" {
		p, err := platform.Detect()
		if err != nil {
			return "", model.WrapCLIError(
				model.ExitUnsupportedPlatform, "cannot detect platform", err)
		}
		return p, nil
	}
	p, err := platform.Parse(flag)
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitUnsupportedPlatform,
			fmt.Sprintf("invalid --platform value %q", flag),
			err,
		)
	}
	return p, nil
}
