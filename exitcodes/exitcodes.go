// Package exitcodes defines the standard exit codes used by smoke.
package exitcodes

// Exit code constants used by smoke
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when every check passes
// * CheckFailure (1): Used when one or more checks fail
// * RuntimeErr (2): Used for runtime errors such as panics, bad configuration
//   or an environment that cannot run checks at all
const (
	Success      = 0 // All checks pass
	CheckFailure = 1 // Check failures
	RuntimeErr   = 2 // Runtime errors or unusable environment
)
