// Package sandbox compiles and runs caller-supplied scripts against a
// capability object inside an isolated goja runtime, and provides the static
// deny-list validator applied before scripts are stored or executed.
package sandbox

import (
	"fmt"
	"strings"
)

// denyPattern names a forbidden substring and the reason it is rejected.
type denyPattern struct {
	substr string
	reason string
}

// Substring match, not parsing. This is a defense-in-depth layer on top of
// the engine's restricted global set, not the isolation boundary itself.
var denyPatterns = []denyPattern{
	{"eval(", "dynamic evaluation of strings as code (eval) is not allowed"},
	{"Function(", "dynamic function construction (Function constructor) is not allowed"},
	{"require(", "module loading (require) is not allowed"},
	{"import(", "dynamic module loading (import) is not allowed"},
	{"process.exit", "process termination (process.exit) is not allowed"},
	{"child_process", "subprocess access (child_process) is not allowed"},
	{"__dirname", "filesystem path access (__dirname) is not allowed"},
	{"__filename", "filesystem path access (__filename) is not allowed"},
}

// ValidationResult is the outcome of a static code scan.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidateCode scans script text for forbidden patterns. Valid is true iff
// nothing matched.
func ValidateCode(code string) ValidationResult {
	var errs []string
	for _, p := range denyPatterns {
		if strings.Contains(code, p.substr) {
			errs = append(errs, fmt.Sprintf("forbidden pattern %q: %s", p.substr, p.reason))
		}
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
