// validate.go provides validation for parsed descriptors. Validation runs
// once, immediately after Load, so every later stage (resolution, lock
// verification, build) can assume a structurally sound descriptor.
package descriptor

import (
	"fmt"
	"regexp"

	"github.com/mmr-tortoise/kiln/internal/model"
)

// ValidationError represents a specific validation failure in a kiln.json file.
type ValidationError struct {
	// Field is the JSON field path that failed validation (e.g., "tools[2].name").
	Field string

	// Message describes what's wrong with the field value.
	Message string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("kiln.json validation error: %s: %s", e.Field, e.Message)
}

// knownOSFamilies lists the operating-system family names accepted in a
// tool's excludeOn list. Only families that appear in the supported
// platform set are meaningful.
var knownOSFamilies = map[string]bool{
	"linux":  true,
	"darwin": true,
}

// toolchainRef is the template name the resolver assigns to the compiler
// entry from the toolchain declaration file. Env templates may reference
// it even though it is not part of the descriptor's tool list.
const toolchainRef = "rust"

// templateRefPattern matches ${name} references inside env value templates.
var templateRefPattern = regexp.MustCompile(`\$\{([^}]*)\}`)

// Validate performs structural checks on a parsed descriptor. It returns a
// list of validation errors (empty list = valid descriptor).
//
// Checks performed:
//   - name is present and safe for store paths / container names
//   - at least one tool is declared, each with a name and version
//   - excludeOn entries name known OS families
//   - env templates only reference declared tools (or the toolchain)
//   - the build section, when present, has a command and an artifact path
func Validate(d *Descriptor) []ValidationError {
	var errs []ValidationError

	if err := model.ValidateName(d.Name); err != nil {
		errs = append(errs, ValidationError{Field: "name", Message: err.Error()})
	}

	if len(d.Tools) == 0 {
		errs = append(errs, ValidationError{
			Field:   "tools",
			Message: "at least one tool must be declared",
		})
	}

	declared := map[string]bool{toolchainRef: true}
	for i, t := range d.Tools {
		field := fmt.Sprintf("tools[%d]", i)
		if t.Name == "" {
			errs = append(errs, ValidationError{Field: field + ".name", Message: "tool name must not be empty"})
			continue
		}
		if t.Version == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".version",
				Message: fmt.Sprintf("tool %q must pin a version", t.Name),
			})
		}
		if declared[t.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("tool %q is declared more than once", t.Name),
			})
		}
		declared[t.Name] = true

		for _, osName := range t.ExcludeOn {
			if !knownOSFamilies[osName] {
				errs = append(errs, ValidationError{
					Field:   field + ".excludeOn",
					Message: fmt.Sprintf("unknown OS family %q (known: darwin, linux)", osName),
				})
			}
		}
	}

	// Env templates may only reference declared tools. A dangling
	// reference would surface as an empty expansion at shell time, which
	// is exactly the kind of silent failure validation exists to prevent.
	for name, tmpl := range d.Env {
		for _, m := range templateRefPattern.FindAllStringSubmatch(tmpl, -1) {
			ref := m[1]
			if !declared[ref] {
				errs = append(errs, ValidationError{
					Field:   "env." + name,
					Message: fmt.Sprintf("template references undeclared tool %q", ref),
				})
			}
		}
	}

	if d.Build != nil {
		if len(d.Build.Command) == 0 {
			errs = append(errs, ValidationError{
				Field:   "build.command",
				Message: "build command must not be empty",
			})
		}
		if d.Build.Artifact == "" {
			errs = append(errs, ValidationError{
				Field:   "build.artifact",
				Message: "build artifact path must not be empty",
			})
		}
	}

	return errs
}
