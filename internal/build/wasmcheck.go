package build

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"

	"github.com/mmr-tortoise/kiln/internal/model"
)

// wasmMagic is the 4-byte preamble of every WebAssembly binary.
var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

// VerifyArtifact checks that the file at path is a well-formed WebAssembly
// module by compiling it with wazero. Compilation catches truncated files,
// malformed sections, and invalid function bodies that a magic-number check
// alone would pass. All failures map to ExitVerifyFailed.
//
// The interpreter runtime is used because verification only needs
// decoding and validation, not execution speed, and it behaves identically
// on every host architecture.
func VerifyArtifact(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.WrapCLIError(
			model.ExitVerifyFailed,
			fmt.Sprintf("build did not produce artifact %s", path),
			err,
		)
	}

	if len(data) < 8 || !bytes.HasPrefix(data, wasmMagic) {
		return model.NewCLIError(
			model.ExitVerifyFailed,
			fmt.Sprintf("artifact %s is not a WebAssembly module", path),
		)
	}

	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, data)
	if err != nil {
		return model.WrapCLIError(
			model.ExitVerifyFailed,
			fmt.Sprintf("artifact %s failed WebAssembly validation", path),
			err,
		)
	}
	return compiled.Close(ctx)
}
