package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "SMOKE"

func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	RunnerDir = &cli.StringFlag{
		Name:     "runner-dir",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVars("RUNNER_DIR"),
		Usage:    "Path to the Playwright runner directory (contains package.json and the suite tree)",
	}
	CapsFile = &cli.StringFlag{
		Name:     "caps-file",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVars("CAPS_FILE"),
		Usage:    "Path to the site capability snapshot file (eg. 'site.yaml')",
	}
	DeclaredDir = &cli.StringFlag{
		Name:    "declared-dir",
		Value:   "",
		EnvVars: prefixEnvVars("DECLARED_DIR"),
		Usage:   "Directory of declared suite descriptor files to merge with the built-in catalog",
	}
	BaseSpecDir = &cli.StringFlag{
		Name:    "base-spec-dir",
		Value:   "",
		EnvVars: prefixEnvVars("BASE_SPEC_DIR"),
		Usage:   "Fallback directory searched for spec files not found in the runner's suite tree",
	}
	StateDir = &cli.StringFlag{
		Name:    "state-dir",
		Value:   "state",
		EnvVars: prefixEnvVars("STATE_DIR"),
		Usage:   "Directory where run results and timestamps are persisted",
	}
	SecretsFile = &cli.StringFlag{
		Name:    "secrets-file",
		Value:   "",
		EnvVars: prefixEnvVars("SECRETS_FILE"),
		Usage:   "Path to the local test credential file used by the authentication suite",
	}
	Suite = &cli.StringFlag{
		Name:    "suite",
		Value:   "",
		EnvVars: prefixEnvVars("SUITE"),
		Usage:   "Run a single suite by id (eg. 'core_pages'). Omit to run every enabled suite.",
	}
	TargetURL = &cli.StringFlag{
		Name:    "target-url",
		Value:   "",
		EnvVars: prefixEnvVars("TARGET_URL"),
		Usage:   "Check a remote site at this URL instead of the locally captured one",
	}
	RemoteUser = &cli.StringFlag{
		Name:    "remote-user",
		Value:   "",
		EnvVars: prefixEnvVars("REMOTE_USER"),
		Usage:   "Username for the authentication suite when targeting a remote site",
	}
	RemotePassword = &cli.StringFlag{
		Name:    "remote-password",
		Value:   "",
		EnvVars: prefixEnvVars("REMOTE_PASSWORD"),
		Usage:   "Password for the authentication suite when targeting a remote site",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVars("RUN_INTERVAL"),
		Usage:   "Interval between check runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   0,
		EnvVars: prefixEnvVars("TIMEOUT"),
		Usage:   "Ceiling for one runner invocation. Omit for the built-in default.",
	}
	NodeBinary = &cli.StringFlag{
		Name:    "node-binary",
		Value:   "node",
		EnvVars: prefixEnvVars("NODE_BINARY"),
		Usage:   "Path to the Node binary used for the environment precondition check",
	}
	Parallel = &cli.BoolFlag{
		Name:    "parallel",
		Value:   false,
		EnvVars: prefixEnvVars("PARALLEL"),
		Usage:   "Let the runner use its own worker pool instead of a single worker",
	}
	Verbose = &cli.BoolFlag{
		Name:    "verbose",
		Value:   false,
		EnvVars: prefixEnvVars("VERBOSE"),
		Usage:   "Forward verbose output settings to the runner",
	}
	JUnitOutput = &cli.StringFlag{
		Name:    "junit-output",
		Value:   "",
		EnvVars: prefixEnvVars("JUNIT_OUTPUT"),
		Usage:   "Write a JUnit XML report to this path after each run",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "Log level (debug, info, warn, error)",
	}
)

var requiredFlags = []cli.Flag{
	RunnerDir,
	CapsFile,
}

var optionalFlags = []cli.Flag{
	DeclaredDir,
	BaseSpecDir,
	StateDir,
	SecretsFile,
	Suite,
	TargetURL,
	RemoteUser,
	RemotePassword,
	RunInterval,
	Timeout,
	NodeBinary,
	Parallel,
	Verbose,
	JUnitOutput,
	LogLevel,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
