package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/DanePete/smoke-sub000/classify"
	"github.com/DanePete/smoke-sub000/types"
)

// NodeVersionFloor is the minimum Node.js version the runner supports
const NodeVersionFloor = "v18.0.0"

// CodeNodeTooOld marks an installed Node.js below the supported floor
const CodeNodeTooOld = "NODE_VERSION_TOO_OLD"

const versionProbeTimeout = 10 * time.Second

// EnvironmentChecker verifies the runner's preconditions before any
// subprocess is spawned. A non-nil result means the environment is not
// ready; the orchestrator fails fast without retrying.
type EnvironmentChecker interface {
	Check(ctx context.Context) *types.StructuredError
}

// nodeEnvironment is the production checker: Node version floor plus the
// runner's installed dependencies
type nodeEnvironment struct {
	runnerDir  string
	nodeBinary string
}

var _ EnvironmentChecker = (*nodeEnvironment)(nil)

// NewNodeEnvironment creates the production environment checker
func NewNodeEnvironment(runnerDir, nodeBinary string) EnvironmentChecker {
	if nodeBinary == "" {
		nodeBinary = "node"
	}
	return &nodeEnvironment{runnerDir: runnerDir, nodeBinary: nodeBinary}
}

func (e *nodeEnvironment) Check(ctx context.Context) *types.StructuredError {
	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.nodeBinary, "--version")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return &types.StructuredError{
			Code:    classify.CodeNodeNotFound,
			Message: "Node.js is not available",
			Hint:    fmt.Sprintf("Install Node.js %s or newer and ensure it is on PATH", strings.TrimPrefix(NodeVersionFloor, "v")),
			Raw:     err.Error(),
		}
	}

	version := strings.TrimSpace(out.String())
	if !semver.IsValid(version) || semver.Compare(version, NodeVersionFloor) < 0 {
		return &types.StructuredError{
			Code:    CodeNodeTooOld,
			Message: fmt.Sprintf("Node.js %s is below the supported floor %s", version, NodeVersionFloor),
			Hint:    fmt.Sprintf("Upgrade Node.js to %s or newer", strings.TrimPrefix(NodeVersionFloor, "v")),
			Raw:     version,
		}
	}

	if !dirExists(filepath.Join(e.runnerDir, "node_modules", "@playwright", "test")) {
		return &types.StructuredError{
			Code:    classify.CodeMissingDependencies,
			Message: "The runner's Node dependencies are not installed",
			Hint:    "Run 'npm install' inside the runner directory",
		}
	}

	return nil
}
