package bridge

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanePete/smoke-sub000/registry"
	"github.com/DanePete/smoke-sub000/secrets"
	"github.com/DanePete/smoke-sub000/sitecaps"
)

func setupWriter(t *testing.T, caps *sitecaps.Snapshot, store secrets.Store) *Writer {
	t.Helper()
	reg, err := registry.NewRegistry(registry.Config{
		Caps:      caps,
		SuitesDir: t.TempDir(),
	})
	require.NoError(t, err)

	w, err := NewWriter(Config{
		Registry:  reg,
		Caps:      caps,
		Secrets:   store,
		RunnerDir: t.TempDir(),
	})
	require.NoError(t, err)
	return w
}

func TestNewWriterValidation(t *testing.T) {
	caps := &sitecaps.Snapshot{URL: "https://site.test"}
	reg, err := registry.NewRegistry(registry.Config{Caps: caps, SuitesDir: t.TempDir()})
	require.NoError(t, err)

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Registry: reg, Caps: caps, RunnerDir: t.TempDir()}, false},
		{"missing registry", Config{Caps: caps, RunnerDir: t.TempDir()}, true},
		{"missing caps", Config{Registry: reg, RunnerDir: t.TempDir()}, true},
		{"missing runner dir", Config{Registry: reg, Caps: caps}, true},
		{"negative timeout", Config{Registry: reg, Caps: caps, RunnerDir: t.TempDir(), Timeout: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWriter(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestGenerateLocalMode(t *testing.T) {
	caps := &sitecaps.Snapshot{
		URL:          "https://local.site",
		Title:        "Local Site",
		Capabilities: []string{"user", "webform"},
		ExtraURLs:    []string{"/about", "/contact"},
	}
	store := &secrets.Static{Credential: secrets.Credential{Username: "smoketest", Password: "hunter2"}}
	w := setupWriter(t, caps, store)

	cb, err := w.Generate("", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://local.site", cb.BaseURL)
	assert.False(t, cb.Remote)
	assert.False(t, cb.RemoteAuth)
	assert.Equal(t, "Local Site", cb.SiteTitle)
	assert.Equal(t, DefaultTimeout.Milliseconds(), cb.Timeout)
	assert.Equal(t, []string{"/about", "/contact"}, cb.CustomURLs)

	// Only detected suites are included
	assert.Contains(t, cb.Suites, "core_pages")
	assert.Contains(t, cb.Suites, "auth")
	assert.Contains(t, cb.Suites, "webform")
	assert.NotContains(t, cb.Suites, "media")
	assert.NotContains(t, cb.Suites, "search")

	// The local credential is injected into the auth suite only
	auth := cb.Suites["auth"]
	assert.Equal(t, "smoketest", auth.TestUser)
	assert.Equal(t, "hunter2", auth.TestPassword)
	for id, entry := range cb.Suites {
		if id == registry.AuthSuiteID {
			continue
		}
		assert.Empty(t, entry.TestUser, id)
		assert.Empty(t, entry.TestPassword, id)
	}
}

func TestGenerateRemoteMode(t *testing.T) {
	caps := &sitecaps.Snapshot{URL: "https://local.site", Capabilities: []string{"user"}}
	w := setupWriter(t, caps, &secrets.Static{Credential: secrets.Credential{Username: "local", Password: "localpw"}})

	t.Run("remote with credentials", func(t *testing.T) {
		creds := &secrets.Credential{Username: "remote", Password: "remotepw"}
		cb, err := w.Generate("https://remote.site", creds, nil)
		require.NoError(t, err)

		assert.Equal(t, "https://remote.site", cb.BaseURL, "target overrides the captured base URL")
		assert.True(t, cb.Remote)
		assert.True(t, cb.RemoteAuth)
		assert.Equal(t, "remote", cb.Suites["auth"].TestUser, "remote credentials win over the local store")
	})

	t.Run("remote without credentials", func(t *testing.T) {
		cb, err := w.Generate("https://remote.site", nil, nil)
		require.NoError(t, err)

		assert.True(t, cb.Remote)
		assert.False(t, cb.RemoteAuth)
		assert.Equal(t, "local", cb.Suites["auth"].TestUser, "falls back to the local store")
	})

	t.Run("empty password does not enable remote auth", func(t *testing.T) {
		creds := &secrets.Credential{Username: "remote"}
		cb, err := w.Generate("https://remote.site", creds, nil)
		require.NoError(t, err)
		assert.False(t, cb.RemoteAuth)
	})
}

func TestGenerateEnabledFilter(t *testing.T) {
	caps := &sitecaps.Snapshot{URL: "https://site.test", Capabilities: []string{"user", "webform", "media"}}
	w := setupWriter(t, caps, nil)

	cb, err := w.Generate("", nil, []string{"webform"})
	require.NoError(t, err)

	assert.Len(t, cb.Suites, 1)
	assert.Contains(t, cb.Suites, "webform")
}

func TestGenerateDeterministic(t *testing.T) {
	caps := &sitecaps.Snapshot{URL: "https://site.test", Capabilities: []string{"user"}}
	w := setupWriter(t, caps, &secrets.Static{Credential: secrets.Credential{Username: "u", Password: "p"}})

	first, err := w.Generate("", nil, nil)
	require.NoError(t, err)
	second, err := w.Generate("", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWriteConfigOverwrites(t *testing.T) {
	caps := &sitecaps.Snapshot{URL: "https://site.test"}
	reg, err := registry.NewRegistry(registry.Config{Caps: caps, SuitesDir: t.TempDir()})
	require.NoError(t, err)

	runnerDir := t.TempDir()
	w, err := NewWriter(Config{Registry: reg, Caps: caps, RunnerDir: runnerDir})
	require.NoError(t, err)

	// A prior bridge file from an earlier invocation
	path := filepath.Join(runnerDir, BridgeFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"stale": true}`), 0644))

	cb, err := w.Generate("", nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.WriteConfig(cb))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded ConfigBridge
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "https://site.test", decoded.BaseURL)
	assert.NotContains(t, string(data), "stale")
}
