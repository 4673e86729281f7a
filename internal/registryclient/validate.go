package registryclient

import (
	"fmt"
	"regexp"
)

// ValidationError is one field-level problem found in a registry entry.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult is the outcome of validating one RegistryTool.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

var (
	idPattern     = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	envVarPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
)

var validDistributionTypes = map[string]bool{
	"npm": true, "pypi": true, "docker": true, "binary": true, "wasm": true, "custom": true,
}

// Validate checks a RegistryTool against the catalog's field rules before
// it is allowed to become a ServerDefinition.
func Validate(tool RegistryTool) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if tool.ID == "" {
		result.Errors = append(result.Errors, ValidationError{"id", "required field is missing"})
	} else if !idPattern.MatchString(tool.ID) {
		result.Errors = append(result.Errors, ValidationError{"id", "must be lowercase letters, numbers, and hyphens only, starting with a letter"})
	}

	if tool.Name == "" {
		result.Errors = append(result.Errors, ValidationError{"name", "required field is missing"})
	}

	if tool.Description == "" {
		result.Errors = append(result.Errors, ValidationError{"description", "required field is missing"})
	} else if len(tool.Description) < 10 {
		result.Errors = append(result.Errors, ValidationError{"description", "must be at least 10 characters"})
	}

	if tool.Distribution.Type != "" && !validDistributionTypes[tool.Distribution.Type] {
		result.Errors = append(result.Errors, ValidationError{"distribution.type", fmt.Sprintf("invalid distribution type: %s", tool.Distribution.Type)})
	}

	if tool.Config.Command == "" && tool.Distribution.Type != "wasm" {
		result.Errors = append(result.Errors, ValidationError{"config.command", "required unless distribution.type is wasm"})
	}

	for name := range tool.Config.Env {
		if !envVarPattern.MatchString(name) {
			result.Errors = append(result.Errors, ValidationError{fmt.Sprintf("config.env[%s]", name), "must be uppercase letters, numbers, and underscores"})
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}
