// Package build orchestrates a reproducible package build: it loads and
// validates the descriptor, toolchain, and lock file, resolves the
// environment, materializes the tool store, runs the build command (on the
// host or in a Docker sandbox), and verifies the produced wasm artifact.
//
// The lock file gates everything. A missing, malformed, or incomplete
// lock file fails the build before any command runs, so the only inputs a
// build ever sees are pinned ones.
package build
