// Package classifier maps (action, role, context) tuples to karma categories
// and severity tiers. Classification runs against a versioned, immutable
// catalog loaded at startup and hot-reloaded behind an atomic pointer swap.
package classifier

import (
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/jkaninda/samsara/internal/domain"
)

// Well-known category names with special handling in the merit calculator.
const (
	CategoryNeutral         = "neutral"
	CategoryAccumulatedPast = "accumulated-past"
	CategoryAncestralDebt   = "ancestral-debt"
)

// ActionSpec is one row of the action table: the category an action maps to,
// its base karma delta, and (for punitive actions) the starting severity.
type ActionSpec struct {
	Name      string          `yaml:"name"`
	Category  string          `yaml:"category"`
	BaseDelta float64         `yaml:"base_delta"`
	Severity  domain.Severity `yaml:"severity,omitempty"`
}

// Catalog is an immutable, versioned classification table. It is never
// mutated after construction; reloads build a fresh Catalog and swap it in.
type Catalog struct {
	Version    int
	categories map[string]*domain.TokenCategory
	actions    map[string]ActionSpec
}

// Category looks up a token category by name.
func (c *Catalog) Category(name string) (*domain.TokenCategory, bool) {
	cat, ok := c.categories[name]
	return cat, ok
}

// Action looks up an action spec by name.
func (c *Catalog) Action(name string) (ActionSpec, bool) {
	spec, ok := c.actions[name]
	return spec, ok
}

// Actions returns the recognized action names. This is the action space of
// the reward predictor.
func (c *Catalog) Actions() []string {
	out := make([]string, 0, len(c.actions))
	for name := range c.actions {
		out = append(out, name)
	}
	return out
}

// Categories returns all token categories in the catalog.
func (c *Catalog) Categories() []*domain.TokenCategory {
	out := make([]*domain.TokenCategory, 0, len(c.categories))
	for _, cat := range c.categories {
		out = append(out, cat)
	}
	return out
}

// catalogFile is the YAML serialization of a catalog.
type catalogFile struct {
	Version    int            `yaml:"version"`
	Categories []categoryFile `yaml:"categories"`
	Actions    []ActionSpec   `yaml:"actions"`
}

type categoryFile struct {
	Name                string                      `yaml:"name"`
	Polarity            domain.Polarity             `yaml:"polarity"`
	Weight              float64                     `yaml:"weight"`
	DecayRate           float64                     `yaml:"decay_rate"`
	SeverityMultipliers map[domain.Severity]float64 `yaml:"severity_multipliers,omitempty"`
}

// LoadCatalog reads a catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	return buildCatalog(&file)
}

// buildCatalog validates the file and resolves duplicate action entries.
// When an action appears in both a positive and a negative category, the
// negative (punitive) classification dominates.
func buildCatalog(file *catalogFile) (*Catalog, error) {
	c := &Catalog{
		Version:    file.Version,
		categories: make(map[string]*domain.TokenCategory, len(file.Categories)+1),
		actions:    make(map[string]ActionSpec, len(file.Actions)),
	}

	for _, cf := range file.Categories {
		if cf.Name == "" {
			return nil, fmt.Errorf("catalog v%d: category with empty name", file.Version)
		}
		c.categories[cf.Name] = &domain.TokenCategory{
			Name:                cf.Name,
			Polarity:            cf.Polarity,
			Weight:              cf.Weight,
			DecayRate:           cf.DecayRate,
			SeverityMultipliers: cf.SeverityMultipliers,
		}
	}

	// The neutral category always exists so classification misses have a home.
	if _, ok := c.categories[CategoryNeutral]; !ok {
		c.categories[CategoryNeutral] = &domain.TokenCategory{
			Name:     CategoryNeutral,
			Polarity: domain.PolarityNeutral,
		}
	}

	for _, spec := range file.Actions {
		cat, ok := c.categories[spec.Category]
		if !ok {
			return nil, fmt.Errorf("catalog v%d: action %q references unknown category %q", file.Version, spec.Name, spec.Category)
		}
		if cat.Polarity == domain.PolarityNegative && !spec.Severity.Valid() {
			spec.Severity = domain.SeverityMinor
		}
		if prev, dup := c.actions[spec.Name]; dup {
			// Tie-break: a punitive classification dominates a meritorious one.
			prevCat := c.categories[prev.Category]
			if prevCat.Polarity == domain.PolarityNegative && cat.Polarity != domain.PolarityNegative {
				continue
			}
		}
		c.actions[spec.Name] = spec
	}

	return c, nil
}

// Provider holds the active catalog behind an atomic pointer, allowing
// lock-free reads and hot reloads.
type Provider struct {
	current atomic.Pointer[Catalog]
}

// NewProvider creates a Provider serving the given catalog.
func NewProvider(c *Catalog) *Provider {
	p := &Provider{}
	p.current.Store(c)
	return p
}

// Catalog returns the active catalog.
func (p *Provider) Catalog() *Catalog {
	return p.current.Load()
}

// Actions returns the action names of the active catalog version, so a
// hot reload updates every consumer of the action space, not just the
// classifier.
func (p *Provider) Actions() []string {
	return p.Catalog().Actions()
}

// Reload loads the catalog file and swaps it in. In-flight classifications
// keep using the catalog version they started with.
func (p *Provider) Reload(path string) (*Catalog, error) {
	c, err := LoadCatalog(path)
	if err != nil {
		return nil, err
	}
	p.current.Store(c)
	return c, nil
}
