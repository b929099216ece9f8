package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmr-tortoise/kiln/internal/descriptor"
	"github.com/mmr-tortoise/kiln/internal/lockfile"
	"github.com/mmr-tortoise/kiln/internal/model"
	"github.com/mmr-tortoise/kiln/internal/platform"
	"github.com/mmr-tortoise/kiln/internal/resolve"
	"github.com/mmr-tortoise/kiln/internal/sandbox"
	"github.com/mmr-tortoise/kiln/internal/shell"
	"github.com/mmr-tortoise/kiln/internal/source"
	"github.com/mmr-tortoise/kiln/internal/store"
	"github.com/mmr-tortoise/kiln/internal/toolchain"
)

// sandboxBasePath is the PATH a sandboxed build starts from. Sandboxes
// get a minimal base rather than the host's PATH so only mounted store
// tools and the image's own binaries are reachable.
const sandboxBasePath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// Options configures a Builder.
type Options struct {
	// Dir is where descriptor discovery starts. Empty means the current
	// working directory.
	Dir string

	// Platform overrides host platform detection when non-empty.
	Platform platform.Platform

	// StoreDir overrides the default tool store location.
	StoreDir string

	// Sandbox runs the build command inside a Docker container instead
	// of directly on the host.
	Sandbox bool

	// SkipVerify disables wasm artifact verification after the build.
	SkipVerify bool

	// Output receives the build command's combined output. Nil discards it.
	Output io.Writer

	// Logger receives progress events. Nil means no logging.
	Logger *zap.Logger
}

// Builder runs one package build. Construct with New and call Run once;
// a Builder is not reusable across builds.
type Builder struct {
	opts   Options
	logger *zap.Logger
}

// New creates a Builder with the given options.
func New(opts Options) *Builder {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{opts: opts, logger: logger}
}

// Run executes the full build pipeline and returns the result. Any
// failure aborts the build; partial artifacts are left in place for
// inspection but never reported as a result.
func (b *Builder) Run(ctx context.Context) (*model.BuildResult, error) {
	d, tc, lf, p, err := b.loadInputs()
	if err != nil {
		return nil, err
	}
	if d.Build == nil {
		return nil, model.NewCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("%s has no build section; nothing to build", descriptor.FileName),
		)
	}

	st := store.New(store.Config{
		Dir:      b.opts.StoreDir,
		CacheURL: d.Cache,
		Logger:   b.logger,
	})

	env, err := resolve.Resolve(d, tc, lf, p, st.Dir())
	if err != nil {
		return nil, err
	}

	b.logger.Info("materializing tool store",
		zap.String("store", st.Dir()),
		zap.Int("tools", len(env.Tools)))
	if err := st.EnsureAll(ctx, resolve.Tools(d, tc, p), lf, p); err != nil {
		return nil, err
	}

	// Provenance is best-effort: building outside a Git checkout, or on a
	// host without git installed, yields a result without a revision.
	var revision string
	var dirty bool
	if info, err := source.Describe(d.Dir); err == nil {
		revision = info.Revision
		dirty = info.Dirty
	} else if !errors.Is(err, source.ErrNotRepository) && !errors.Is(err, exec.ErrNotFound) {
		return nil, err
	}

	start := time.Now()
	if b.opts.Sandbox {
		err = b.runSandboxed(ctx, d, env, st.Dir())
	} else {
		err = b.runOnHost(ctx, d, env)
	}
	if err != nil {
		return nil, err
	}
	duration := time.Since(start)

	artifactPath := filepath.Join(d.Dir, d.Build.Artifact)
	verified := false
	if !b.opts.SkipVerify {
		if err := VerifyArtifact(ctx, artifactPath); err != nil {
			return nil, err
		}
		verified = true
	}

	stat, err := os.Stat(artifactPath)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitVerifyFailed,
			fmt.Sprintf("build did not produce artifact %s", artifactPath),
			err,
		)
	}

	b.logger.Info("build complete",
		zap.String("artifact", artifactPath),
		zap.Int64("sizeBytes", stat.Size()),
		zap.Duration("duration", duration))

	return &model.BuildResult{
		ArtifactPath: artifactPath,
		SizeBytes:    stat.Size(),
		Platform:     env.Platform.String(),
		Revision:     revision,
		Dirty:        dirty,
		Sandboxed:    b.opts.Sandbox,
		Verified:     verified,
		Duration:     duration,
	}, nil
}

// loadInputs discovers and loads the descriptor, toolchain declaration,
// and lock file, and determines the target platform. The lock file is
// verified against the full declared tool set before anything runs.
func (b *Builder) loadInputs() (*descriptor.Descriptor, *toolchain.Toolchain, *lockfile.Lockfile, platform.Platform, error) {
	dir := b.opts.Dir
	if dir == "" {
		dir = "."
	}

	descPath, err := descriptor.Find(dir)
	if err != nil {
		return nil, nil, nil, "", err
	}
	d, err := descriptor.Load(descPath)
	if err != nil {
		return nil, nil, nil, "", err
	}
	if issues := descriptor.Validate(d); len(issues) > 0 {
		msgs := make([]string, len(issues))
		for i, issue := range issues {
			msgs[i] = issue.Error()
		}
		return nil, nil, nil, "", model.NewCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("invalid %s: %s", descriptor.FileName, strings.Join(msgs, "; ")),
		)
	}

	tc, err := toolchain.Load(d.ToolchainPath())
	if err != nil {
		return nil, nil, nil, "", err
	}

	p := b.opts.Platform
	if p == "" {
		p, err = platform.Detect()
		if err != nil {
			return nil, nil, nil, "", model.WrapCLIError(
				model.ExitUnsupportedPlatform, "cannot detect platform", err)
		}
	}

	lf, err := lockfile.Load(d.LockfilePath())
	if err != nil {
		return nil, nil, nil, "", err
	}
	required := resolve.Tools(d, tc, p)
	declared := resolve.DeclaredTools(d, tc)
	if err := lf.Verify(required, declared, p); err != nil {
		return nil, nil, nil, "", err
	}

	b.logger.Debug("inputs loaded",
		zap.String("descriptor", descPath),
		zap.String("platform", p.String()),
		zap.String("toolchain", tc.Channel))

	return d, tc, lf, p, nil
}

// runOnHost executes the build command directly, in the descriptor's
// directory, with the resolved environment layered over the host's.
func (b *Builder) runOnHost(ctx context.Context, d *descriptor.Descriptor, env *model.ResolvedEnv) error {
	command := d.Build.Command
	b.logger.Info("running build command",
		zap.Strings("command", command),
		zap.Bool("sandboxed", false))

	// #nosec G204 — the command comes from the project's own descriptor
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = d.Dir
	cmd.Env = shell.Environ(os.Environ(), env)
	if b.opts.Output != nil {
		cmd.Stdout = b.opts.Output
		cmd.Stderr = b.opts.Output
	}

	if err := cmd.Run(); err != nil {
		return model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("build command failed: %s", strings.Join(command, " ")),
			err,
		)
	}
	return nil
}

// runSandboxed executes the build command inside a Docker container with
// the source tree and tool store mounted. The container environment is
// built from a minimal base PATH, not the host environment.
func (b *Builder) runSandboxed(ctx context.Context, d *descriptor.Descriptor, env *model.ResolvedEnv, storeDir string) error {
	if d.Build.SandboxImage == "" {
		return model.NewCLIError(
			model.ExitGeneralError,
			"sandboxed build requested but build.sandboxImage is not set",
		)
	}

	cli, err := sandbox.NewClient()
	if err != nil {
		return err
	}
	defer cli.Close()
	if err := cli.Ping(ctx); err != nil {
		return err
	}

	now := time.Now()
	b.logger.Info("running build command",
		zap.Strings("command", d.Build.Command),
		zap.Bool("sandboxed", true),
		zap.String("image", d.Build.SandboxImage))

	return sandbox.Run(ctx, sandbox.RunOptions{
		Name:      sandbox.ContainerName(env.Name, now),
		Image:     d.Build.SandboxImage,
		SourceDir: d.Dir,
		StoreDir:  storeDir,
		Command:   d.Build.Command,
		Env:       shell.Environ([]string{"PATH=" + sandboxBasePath}, env),
		Labels:    sandbox.BuildLabels(env, now),
		Output:    b.opts.Output,
	})
}
