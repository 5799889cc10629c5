package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanePete/smoke-sub000/bridge"
	"github.com/DanePete/smoke-sub000/registry"
	"github.com/DanePete/smoke-sub000/sitecaps"
	"github.com/DanePete/smoke-sub000/state"
)

func setupStagingOrchestrator(t *testing.T, baseSpecDir string) (*Orchestrator, string) {
	t.Helper()
	runnerDir := t.TempDir()
	suitesDir := filepath.Join(runnerDir, SuitesDirName)
	require.NoError(t, os.MkdirAll(suitesDir, 0755))

	caps := &sitecaps.Snapshot{URL: "https://site.test"}
	reg, err := registry.NewRegistry(registry.Config{
		Caps:        caps,
		SuitesDir:   suitesDir,
		BaseSpecDir: baseSpecDir,
	})
	require.NoError(t, err)

	writer, err := bridge.NewWriter(bridge.Config{Registry: reg, Caps: caps, RunnerDir: runnerDir})
	require.NoError(t, err)
	store, err := state.NewFileStore(t.TempDir())
	require.NoError(t, err)

	o, err := NewOrchestrator(Config{
		Registry:  reg,
		Bridge:    writer,
		State:     store,
		Adapter:   &fakeAdapter{t: t},
		Env:       &fakeEnv{},
		RunnerDir: runnerDir,
	})
	require.NoError(t, err)
	return o, runnerDir
}

func TestStageSpecEmptyID(t *testing.T) {
	o, _ := setupStagingOrchestrator(t, "")
	filter, cleanup, err := o.stageSpec("")
	require.NoError(t, err)
	defer cleanup()
	assert.Empty(t, filter, "a full run passes no suite filter")
}

func TestStageSpecInTree(t *testing.T) {
	o, runnerDir := setupStagingOrchestrator(t, "")
	spec := filepath.Join(runnerDir, SuitesDirName, "core-pages.spec.ts")
	require.NoError(t, os.WriteFile(spec, []byte("// spec"), 0644))

	filter, cleanup, err := o.stageSpec("core_pages")
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, filepath.Join(SuitesDirName, "core-pages.spec.ts"), filter,
		"in-tree specs are referenced in place, relative to the runner dir")

	// Nothing was staged, so cleanup must not disturb the suite tree
	cleanup()
	_, statErr := os.Stat(spec)
	assert.NoError(t, statErr)
}

func TestStageSpecOutOfTree(t *testing.T) {
	baseDir := t.TempDir()
	outOfTree := filepath.Join(baseDir, "search.spec.ts")
	require.NoError(t, os.WriteFile(outOfTree, []byte("// base spec"), 0644))

	o, runnerDir := setupStagingOrchestrator(t, baseDir)

	filter, cleanup, err := o.stageSpec("search")
	require.NoError(t, err)

	staged := filepath.Join(runnerDir, SuitesDirName, StagingDirName, "search.spec.ts")
	assert.Equal(t, filepath.Join(SuitesDirName, StagingDirName, "search.spec.ts"), filter)

	data, err := os.ReadFile(staged)
	require.NoError(t, err)
	assert.Equal(t, "// base spec", string(data))

	cleanup()
	_, statErr := os.Stat(filepath.Join(runnerDir, SuitesDirName, StagingDirName))
	assert.True(t, os.IsNotExist(statErr), "cleanup removes the staging directory")

	_, statErr = os.Stat(outOfTree)
	assert.NoError(t, statErr, "the source spec is untouched")
}

func TestStageSpecOutOfTreeDirectory(t *testing.T) {
	baseDir := t.TempDir()
	suiteSrc := filepath.Join(baseDir, "media")
	require.NoError(t, os.MkdirAll(filepath.Join(suiteSrc, "helpers"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(suiteSrc, "media.spec.ts"), []byte("// a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(suiteSrc, "helpers", "util.ts"), []byte("// b"), 0644))

	o, runnerDir := setupStagingOrchestrator(t, "")
	o.config.Registry = mustRegistry(t, runnerDir, map[string]string{"media": suiteSrc})

	filter, cleanup, err := o.stageSpec("media")
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, filepath.Join(SuitesDirName, StagingDirName, "media"), filter)
	_, err = os.Stat(filepath.Join(runnerDir, SuitesDirName, StagingDirName, "media", "helpers", "util.ts"))
	assert.NoError(t, err, "multi-file suites are copied recursively")
}

func mustRegistry(t *testing.T, runnerDir string, overrides map[string]string) *registry.Registry {
	t.Helper()
	reg, err := registry.NewRegistry(registry.Config{
		Caps:      &sitecaps.Snapshot{URL: "https://site.test"},
		SuitesDir: filepath.Join(runnerDir, SuitesDirName),
		Overrides: overrides,
	})
	require.NoError(t, err)
	return reg
}
