// Package bridge writes the JSON handoff file the external runner reads at
// startup. The file is the only contract between the two runtimes; its
// schema is by convention, not negotiated.
package bridge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/DanePete/smoke-sub000/registry"
	"github.com/DanePete/smoke-sub000/secrets"
	"github.com/DanePete/smoke-sub000/sitecaps"
)

// BridgeFileName is the well-known filename inside the runner's directory
// tree. It is rewritten, never appended, before every invocation.
const BridgeFileName = "smoke.config.json"

// DefaultTimeout caps a single runner invocation when the caller does not
// override it
const DefaultTimeout = 30 * time.Second

// SuiteEntry is one suite's metadata as the runner sees it. Credentials are
// only ever populated on the auth suite.
type SuiteEntry struct {
	Enabled      bool     `json:"enabled"`
	Detected     bool     `json:"detected"`
	Label        string   `json:"label"`
	Description  string   `json:"description,omitempty"`
	Weight       int      `json:"weight,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	Spec         string   `json:"spec,omitempty"`
	TestUser     string   `json:"testUser,omitempty"`
	TestPassword string   `json:"testPassword,omitempty"`
}

// ConfigBridge is the serialized form handed to the runner
type ConfigBridge struct {
	BaseURL    string                `json:"baseUrl"`
	Remote     bool                  `json:"remote"`
	RemoteAuth bool                  `json:"remoteAuth"`
	SiteTitle  string                `json:"siteTitle"`
	Timeout    int64                 `json:"timeout"` // milliseconds
	CustomURLs []string              `json:"customUrls"`
	Suites     map[string]SuiteEntry `json:"suites"`
}

// Writer generates and persists bridge files
type Writer struct {
	config Config
}

// Config contains bridge writer configuration
type Config struct {
	Log       *log.Logger
	Registry  *registry.Registry
	Caps      sitecaps.Provider
	Secrets   secrets.Store
	RunnerDir string        // root of the external runner's tree
	Timeout   time.Duration // zero means DefaultTimeout
}

// NewWriter creates a bridge writer
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Caps == nil {
		return nil, fmt.Errorf("capability provider is required")
	}
	if cfg.RunnerDir == "" {
		return nil, fmt.Errorf("runner directory is required")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative, got %s", cfg.Timeout)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Log == nil {
		cfg.Log = log.New(os.Stderr)
	}
	return &Writer{config: cfg}, nil
}

// Path returns the well-known bridge file location
func (w *Writer) Path() string {
	return filepath.Join(w.config.RunnerDir, BridgeFileName)
}

// Generate builds the bridge for one invocation. A non-empty targetURL puts
// the run in remote mode; remoteAuth additionally requires credentials with
// a non-empty secret. The enabled filter limits suites (nil means all); only
// suites that are both enabled and detected are included. Generate is
// deterministic: identical inputs yield an identical bridge.
func (w *Writer) Generate(targetURL string, remoteCreds *secrets.Credential, enabled []string) (*ConfigBridge, error) {
	remote := targetURL != ""
	remoteAuth := remote && remoteCreds != nil && !remoteCreds.Empty()

	baseURL := targetURL
	if baseURL == "" {
		baseURL = w.config.Caps.BaseURL()
	}

	cb := &ConfigBridge{
		BaseURL:    baseURL,
		Remote:     remote,
		RemoteAuth: remoteAuth,
		SiteTitle:  w.config.Caps.SiteTitle(),
		Timeout:    w.config.Timeout.Milliseconds(),
		CustomURLs: w.config.Caps.CustomURLs(),
		Suites:     make(map[string]SuiteEntry),
	}
	if cb.CustomURLs == nil {
		cb.CustomURLs = []string{}
	}

	enabledSet := make(map[string]bool, len(enabled))
	for _, id := range enabled {
		enabledSet[id] = true
	}

	for id, def := range w.config.Registry.Detect() {
		if len(enabled) > 0 && !enabledSet[id] {
			continue
		}
		if !def.Detected {
			continue
		}
		entry := SuiteEntry{
			Enabled:      true,
			Detected:     true,
			Label:        def.Label,
			Description:  def.Description,
			Weight:       def.Weight,
			Dependencies: def.Dependencies,
			Spec:         def.SpecLocator,
		}
		if id == registry.AuthSuiteID {
			cred, err := w.authCredential(remoteAuth, remoteCreds)
			if err != nil {
				return nil, err
			}
			entry.TestUser = cred.Username
			entry.TestPassword = cred.Password
		}
		cb.Suites[id] = entry
	}

	return cb, nil
}

// WriteConfig serializes the bridge to the well-known path, unconditionally
// replacing the prior file. Concurrent callers are last-writer-wins; callers
// must serialize invocations.
func (w *Writer) WriteConfig(cb *ConfigBridge) error {
	data, err := json.MarshalIndent(cb, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding bridge config: %w", err)
	}
	path := w.Path()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing bridge config: %w", err)
	}
	w.config.Log.Debug("Wrote bridge config", "path", path, "suites", len(cb.Suites))
	return nil
}

// authCredential picks the credential injected into the auth suite: the
// remote credential in remoteAuth mode, otherwise the local secret store
func (w *Writer) authCredential(remoteAuth bool, remoteCreds *secrets.Credential) (secrets.Credential, error) {
	if remoteAuth {
		return *remoteCreds, nil
	}
	if w.config.Secrets == nil {
		return secrets.Credential{}, nil
	}
	cred, err := w.config.Secrets.TestCredential()
	if err != nil {
		return secrets.Credential{}, fmt.Errorf("loading local test credential: %w", err)
	}
	return cred, nil
}
