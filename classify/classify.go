// Package classify maps raw runner stderr to structured errors the rest of
// the engine can act on.
package classify

import (
	"fmt"
	"strings"

	"github.com/acarl005/stripansi"

	"github.com/DanePete/smoke-sub000/types"
)

// RawLimit bounds the raw diagnostic carried on a structured error
const RawLimit = 2000

// Error codes produced by Analyze
const (
	CodeBrowserLaunchFailed = "BROWSER_LAUNCH_FAILED"
	CodeMissingDependencies = "MISSING_DEPENDENCIES"
	CodeNodeNotFound        = "NODE_NOT_FOUND"
	CodeTargetUnreachable   = "TARGET_UNREACHABLE"
	CodeDNSFailure          = "DNS_FAILURE"
	CodePermissionDenied    = "PERMISSION_DENIED"
	CodeTimeout             = "TIMEOUT"
	CodeUnknown             = "UNKNOWN_ERROR"
)

type signature struct {
	substr  string
	code    string
	message string
	hint    string
}

// signatures is matched in order; earlier entries are more specific.
// First match wins.
var signatures = []signature{
	{
		substr:  "browserType.launch: Executable doesn't exist",
		code:    CodeBrowserLaunchFailed,
		message: "The browser engine is not installed",
		hint:    "Install the runner's browser dependencies with 'npx playwright install --with-deps'",
	},
	{
		substr:  "Executable doesn't exist",
		code:    CodeBrowserLaunchFailed,
		message: "The browser engine is not installed",
		hint:    "Install the runner's browser dependencies with 'npx playwright install --with-deps'",
	},
	{
		substr:  "Failed to launch browser",
		code:    CodeBrowserLaunchFailed,
		message: "The browser engine failed to start",
		hint:    "Reinstall the browser dependencies with 'npx playwright install --with-deps'",
	},
	{
		substr:  "Cannot find module",
		code:    CodeMissingDependencies,
		message: "The runner's Node dependencies are not installed",
		hint:    "Run 'npm install' inside the runner directory",
	},
	{
		substr:  "npx: command not found",
		code:    CodeNodeNotFound,
		message: "Node.js tooling is not available on PATH",
		hint:    "Install Node.js 18 or newer and ensure npx is on PATH",
	},
	{
		substr:  "node: not found",
		code:    CodeNodeNotFound,
		message: "Node.js is not available on PATH",
		hint:    "Install Node.js 18 or newer",
	},
	{
		substr:  "net::ERR_NAME_NOT_RESOLVED",
		code:    CodeDNSFailure,
		message: "The target host could not be resolved",
		hint:    "Check the target URL for typos and verify DNS from this machine",
	},
	{
		substr:  "ECONNREFUSED",
		code:    CodeTargetUnreachable,
		message: "The target site refused the connection",
		hint:    "Verify the site is running and reachable from this machine",
	},
	{
		substr:  "EACCES",
		code:    CodePermissionDenied,
		message: "Permission denied while starting the runner",
		hint:    "Check file permissions on the runner directory",
	},
	{
		substr:  "Timed out waiting",
		code:    CodeTimeout,
		message: "The runner timed out before producing results",
		hint:    "Increase the timeout or check the target site's responsiveness",
	},
}

// Analyze strips ANSI sequences from the raw error and matches it against
// the signature table. Unmatched input yields a generic classification using
// the first non-stack-frame line. Analyze is pure: identical input always
// yields the identical code.
func Analyze(rawError string, exitCode int) *types.StructuredError {
	clean := stripansi.Strip(rawError)

	for _, sig := range signatures {
		if strings.Contains(clean, sig.substr) {
			return &types.StructuredError{
				Code:    sig.code,
				Message: sig.message,
				Hint:    sig.hint,
				Raw:     truncate(clean, RawLimit),
			}
		}
	}

	message := firstMeaningfulLine(clean)
	if message == "" {
		message = fmt.Sprintf("Runner exited with code %d and no diagnostic output", exitCode)
	}
	return &types.StructuredError{
		Code:    CodeUnknown,
		Message: message,
		Hint:    "Re-run with --verbose to see the full runner output",
		Raw:     truncate(clean, RawLimit),
	}
}

// IsSetupError reports whether a code signals an environment that is not
// ready, as opposed to a genuine test failure. Only these codes trigger the
// one-shot remediation retry.
func IsSetupError(code string) bool {
	switch code {
	case CodeBrowserLaunchFailed, CodeMissingDependencies, CodeNodeNotFound:
		return true
	}
	return false
}

// IsLaunchFailure reports whether an individual test error string carries the
// browser-launch-failure signature. This is the second, independent
// detection path scanned after parsing.
func IsLaunchFailure(errText string) bool {
	clean := stripansi.Strip(errText)
	return strings.Contains(clean, "browserType.launch") ||
		strings.Contains(clean, "Executable doesn't exist")
}

// firstMeaningfulLine returns the first line that is neither blank nor a
// stack frame
func firstMeaningfulLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "at ") {
			continue
		}
		return line
	}
	return ""
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
