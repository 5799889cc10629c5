// Package sitecaps exposes what the target site supports. The orchestrator
// only consumes the Provider interface; the real detection lives in the CMS
// and is handed over as a snapshot file.
package sitecaps

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Provider answers suite capability questions for the target site
type Provider interface {
	// Has reports whether the site satisfies a capability flag,
	// e.g. "webform" or "media"
	Has(capability string) bool
	// BaseURL returns the site's own URL, used when no target override is given
	BaseURL() string
	// SiteTitle returns the human-readable site name
	SiteTitle() string
	// CustomURLs returns extra paths the core-pages suite should visit
	CustomURLs() []string
}

// Snapshot is a file-backed Provider, typically exported by the CMS side
// before the orchestrator runs
type Snapshot struct {
	URL          string   `yaml:"base_url"`
	Title        string   `yaml:"site_title"`
	Capabilities []string `yaml:"capabilities"`
	ExtraURLs    []string `yaml:"custom_urls,omitempty"`
}

var _ Provider = (*Snapshot)(nil)

// Load reads a capability snapshot from a YAML file
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading capability snapshot: %w", err)
	}
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing capability snapshot: %w", err)
	}
	return &s, nil
}

func (s *Snapshot) Has(capability string) bool {
	return slices.Contains(s.Capabilities, capability)
}

func (s *Snapshot) BaseURL() string      { return s.URL }
func (s *Snapshot) SiteTitle() string    { return s.Title }
func (s *Snapshot) CustomURLs() []string { return s.ExtraURLs }
