// Package store manages the local content-addressed tool store and fetches
// pinned tool builds from the binary cache.
//
// Each tool build lives under a directory named "<hash>-<name>-<version>"
// inside the store root. The hash comes from the dependency lock file, so a
// store path is a pure function of the lock — two machines with the same
// lock materialize identical paths.
//
// Fetching downloads an xz-compressed NAR archive, verifies its sha256
// (hex or nix-base32 spelling) and size against the lock pin, and unpacks
// it. Fetch is idempotent: present store paths are never re-downloaded,
// and unpacking goes through a temporary directory so a crashed fetch
// never leaves a half-populated store path behind.
package store
