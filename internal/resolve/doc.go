// Package resolve implements the environment resolution pass: given a
// parsed descriptor, toolchain declaration, lock file, and target platform,
// it produces the resolved tool set and derived environment variables.
//
// Resolution is a pure, single-pass computation with no I/O and no state.
// It is re-executed identically on every invocation, and re-resolving the
// same inputs yields a deeply equal result. The only conditional logic is
// the Darwin-family exclusion rule on the descriptor's tool list.
package resolve
