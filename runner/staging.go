package runner

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// stageSpec resolves the requested suite's spec and, when it lives outside
// the runner's own suite tree, copies it into the staging subdirectory. The
// runner resolves its shared helpers relative to its own tree, so out-of-tree
// specs cannot be referenced in place. The returned filter is the spec path
// relative to the runner dir; cleanup removes any staged copy and must run
// regardless of outcome.
func (o *Orchestrator) stageSpec(suiteID string) (filter string, cleanup func(), err error) {
	cleanup = func() {}
	if suiteID == "" {
		return "", cleanup, nil
	}

	spec, err := filepath.Abs(o.config.Registry.GetSpecPath(suiteID))
	if err != nil {
		return "", cleanup, fmt.Errorf("resolving spec path for suite %s: %w", suiteID, err)
	}
	runnerDir, err := filepath.Abs(o.config.RunnerDir)
	if err != nil {
		return "", cleanup, fmt.Errorf("resolving runner directory: %w", err)
	}
	suitesDir := filepath.Join(runnerDir, SuitesDirName)

	if isWithin(suitesDir, spec) {
		rel, err := filepath.Rel(runnerDir, spec)
		if err != nil {
			return "", cleanup, err
		}
		return rel, cleanup, nil
	}

	stagingDir := filepath.Join(suitesDir, StagingDirName)
	staged := filepath.Join(stagingDir, filepath.Base(spec))
	if err := copyPath(spec, staged); err != nil {
		return "", cleanup, fmt.Errorf("staging spec for suite %s: %w", suiteID, err)
	}
	cleanup = func() {
		if err := os.RemoveAll(stagingDir); err != nil {
			o.config.Log.Warn("Cannot remove staged spec", "dir", stagingDir, "err", err)
		}
	}

	rel, err := filepath.Rel(runnerDir, staged)
	if err != nil {
		cleanup()
		return "", func() {}, err
	}
	return rel, cleanup, nil
}

// isWithin reports whether path sits under dir
func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// copyPath copies a spec file, or a multi-file suite directory recursively
func copyPath(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return copyDir(src, dst)
	}
	return copyFile(src, dst)
}

func copyDir(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	for _, entry := range entries {
		s := filepath.Join(src, entry.Name())
		d := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := copyDir(s, d); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(s, d); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
