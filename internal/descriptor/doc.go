// Package descriptor handles loading, locating, and validating kiln.json
// environment descriptor files.
//
// The descriptor format supports JSONC (JSON with Comments), so this package
// uses github.com/tidwall/jsonc to strip comments before parsing with the
// standard encoding/json library.
//
// Key responsibilities:
//   - Load and parse kiln.json (with JSONC support)
//   - Locate kiln.json by walking up from the working directory
//   - Validate the declared tool list, env templates, and build section
package descriptor
