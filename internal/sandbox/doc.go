// Package sandbox runs builds inside Docker containers so the only inputs
// visible to the build command are the mounted source tree and the injected
// environment. Sandbox containers are labeled with kiln.* metadata, which is
// the sole record of what kiln has created — there is no state file.
package sandbox
