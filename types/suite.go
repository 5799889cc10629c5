package types

import "fmt"

// SuiteProvider identifies where a suite definition came from
type SuiteProvider string

const (
	ProviderBuiltin  SuiteProvider = "builtin"
	ProviderDeclared SuiteProvider = "declared"
)

// SuiteDefinition describes one runnable suite. IDs are stable
// lower_snake_case strings and act as the merge key across runs; the on-disk
// spec name is the dash-cased form of the id.
type SuiteDefinition struct {
	ID           string        `yaml:"id"`
	Label        string        `yaml:"label"`
	Description  string        `yaml:"description,omitempty"`
	Weight       int           `yaml:"weight,omitempty"`
	Dependencies []string      `yaml:"dependencies,omitempty"`
	SpecLocator  string        `yaml:"spec,omitempty"`
	Detected     bool          `yaml:"-"`
	ProviderID   SuiteProvider `yaml:"-"`
}

// StructuredError is the classified form of a raw subprocess failure
type StructuredError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
	Raw     string `json:"raw,omitempty"`
}

func (e *StructuredError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
