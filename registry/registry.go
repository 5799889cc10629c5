package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/DanePete/smoke-sub000/sitecaps"
	"github.com/DanePete/smoke-sub000/types"
)

// AuthSuiteID is the one suite that needs an authenticated session. The
// bridge writer injects credentials for this suite only.
const AuthSuiteID = "auth"

// Registry resolves the set of runnable suites from built-in descriptors and
// provider-declared YAML files. Definitions are resolved fresh on every
// Detect call; nothing is cached across invocations.
type Registry struct {
	config Config
}

// Config contains registry configuration
type Config struct {
	Log         *log.Logger
	Caps        sitecaps.Provider
	SuitesDir   string            // the external runner's own suite tree
	DeclaredDir string            // directory of declared suite descriptors
	BaseSpecDir string            // built-in fallback spec location
	Overrides   map[string]string // explicit per-suite spec path overrides
}

// builtinSuite pairs a definition with its eagerly evaluated capability
// predicate
type builtinSuite struct {
	def    types.SuiteDefinition
	detect func(caps sitecaps.Provider) bool
}

var builtinSuites = []builtinSuite{
	{
		def: types.SuiteDefinition{
			ID:          "core_pages",
			Label:       "Core pages",
			Description: "Front page, listed custom URLs and response sanity",
			Weight:      -10,
		},
		detect: func(sitecaps.Provider) bool { return true },
	},
	{
		def: types.SuiteDefinition{
			ID:           "auth",
			Label:        "Authentication",
			Description:  "Login, logout and session persistence",
			Dependencies: []string{"user"},
		},
		detect: func(caps sitecaps.Provider) bool { return caps.Has("user") },
	},
	{
		def: types.SuiteDefinition{
			ID:           "content_editing",
			Label:        "Content editing",
			Description:  "Create, edit and publish content",
			Dependencies: []string{"node"},
		},
		detect: func(caps sitecaps.Provider) bool { return caps.Has("node") },
	},
	{
		def: types.SuiteDefinition{
			ID:           "webform",
			Label:        "Webform",
			Description:  "Form submission and validation messages",
			Dependencies: []string{"webform"},
		},
		detect: func(caps sitecaps.Provider) bool { return caps.Has("webform") },
	},
	{
		def: types.SuiteDefinition{
			ID:           "media",
			Label:        "Media",
			Description:  "Media library upload and embedding",
			Dependencies: []string{"media"},
		},
		detect: func(caps sitecaps.Provider) bool { return caps.Has("media") },
	},
	{
		def: types.SuiteDefinition{
			ID:           "search",
			Label:        "Search",
			Description:  "Search indexing and result pages",
			Dependencies: []string{"search"},
		},
		detect: func(caps sitecaps.Provider) bool { return caps.Has("search") },
	},
}

// NewRegistry creates a new registry instance
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Caps == nil {
		return nil, fmt.Errorf("capability provider is required")
	}
	if cfg.SuitesDir == "" {
		return nil, fmt.Errorf("suites directory is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New(os.Stderr)
		cfg.Log.Error("No logger provided, using default")
	}
	return &Registry{config: cfg}, nil
}

// Detect returns the id-keyed suite set. Built-in suites carry the result of
// their capability predicate; declared suites are detected when every
// declared dependency is satisfied and their resolved spec exists on disk.
// A declared suite without a spec is silently excluded, not an error. On id
// collision the built-in definition wins.
func (r *Registry) Detect() map[string]types.SuiteDefinition {
	suites := make(map[string]types.SuiteDefinition)

	for _, b := range builtinSuites {
		def := b.def
		def.ProviderID = types.ProviderBuiltin
		def.Detected = b.detect(r.config.Caps)
		suites[def.ID] = def
	}

	for _, def := range r.loadDeclared() {
		if _, exists := suites[def.ID]; exists {
			r.config.Log.Debug("Declared suite shadowed by built-in", "suite", def.ID)
			continue
		}
		def.ProviderID = types.ProviderDeclared
		def.Detected = r.dependenciesSatisfied(def.Dependencies)
		if spec, ok := r.resolveSpec(def); ok {
			def.SpecLocator = spec
		} else {
			r.config.Log.Debug("Declared suite has no spec on disk, excluding", "suite", def.ID)
			continue
		}
		suites[def.ID] = def
	}

	return suites
}

// DetectedIDs returns the sorted ids of all detected suites
func (r *Registry) DetectedIDs() []string {
	var ids []string
	for id, def := range r.Detect() {
		if def.Detected {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// GetSpecPath resolves the on-disk spec location for a suite id.
// Resolution order: explicit override, single-file spec in the runner's
// suite tree, multi-file suite directory, then the built-in base path.
func (r *Registry) GetSpecPath(id string) string {
	if override, ok := r.config.Overrides[id]; ok && override != "" {
		return override
	}

	name := DashCase(id)
	if p := filepath.Join(r.config.SuitesDir, name+SpecSuffix); fileExists(p) {
		return p
	}
	if p := filepath.Join(r.config.SuitesDir, name); dirExists(p) {
		return p
	}
	return filepath.Join(r.config.BaseSpecDir, name+SpecSuffix)
}

// declaredFile is the shape of a provider-declared suite descriptor
type declaredFile struct {
	Suites []types.SuiteDefinition `yaml:"suites"`
}

// loadDeclared reads every descriptor in the declared directory. Errors are
// logged per file and never abort the scan.
func (r *Registry) loadDeclared() []types.SuiteDefinition {
	if r.config.DeclaredDir == "" {
		return nil
	}
	entries, err := os.ReadDir(r.config.DeclaredDir)
	if err != nil {
		if !os.IsNotExist(err) {
			r.config.Log.Warn("Cannot read declared suites directory", "dir", r.config.DeclaredDir, "err", err)
		}
		return nil
	}

	var defs []types.SuiteDefinition
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		path := filepath.Join(r.config.DeclaredDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			r.config.Log.Warn("Cannot read suite descriptor", "path", path, "err", err)
			continue
		}
		var file declaredFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			r.config.Log.Warn("Cannot parse suite descriptor", "path", path, "err", err)
			continue
		}
		for _, def := range file.Suites {
			if def.ID == "" {
				r.config.Log.Warn("Suite descriptor entry missing id", "path", path)
				continue
			}
			defs = append(defs, def)
		}
	}
	return defs
}

// resolveSpec returns the spec path for a declared suite and whether it
// exists on disk
func (r *Registry) resolveSpec(def types.SuiteDefinition) (string, bool) {
	if def.SpecLocator != "" {
		return def.SpecLocator, fileExists(def.SpecLocator) || dirExists(def.SpecLocator)
	}
	name := DashCase(def.ID)
	if p := filepath.Join(r.config.SuitesDir, name+SpecSuffix); fileExists(p) {
		return p, true
	}
	if p := filepath.Join(r.config.SuitesDir, name); dirExists(p) {
		return p, true
	}
	return "", false
}

func (r *Registry) dependenciesSatisfied(deps []string) bool {
	for _, dep := range deps {
		if !r.config.Caps.Has(dep) {
			return false
		}
	}
	return true
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
