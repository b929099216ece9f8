// Package model defines the domain types and value objects for the
// kiln CLI.
//
// This package contains pure data structures with no external dependencies.
// All entities (Tool, ResolvedEnv, BuildResult, SandboxInfo) are transient
// representations produced by a single resolution pass — there are no
// persistent state files; sandbox build metadata lives in Docker container
// labels.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
