package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sentinel errors for catalog lookups.
var (
	ErrUnknownAbility = errors.New("catalog: unknown ability")
	ErrUnknownProfile = errors.New("catalog: unknown profile")
)

// Catalog is the immutable, in-memory view of ability and profile
// definitions. Read-only to the engine; safe for concurrent use without
// locking once loaded.
type Catalog struct {
	abilities map[string]*Ability
	order     map[string]int // ability id -> catalog load order
	parsers   map[string]Parser
	profiles  map[string]*Profile
}

// Load reads every *.yml/*.yaml file under abilityDir and profileDir and
// builds a validated catalog.
func Load(abilityDir, profileDir string) (*Catalog, error) {
	c := &Catalog{
		abilities: map[string]*Ability{},
		order:     map[string]int{},
		parsers:   map[string]Parser{},
		profiles:  map[string]*Profile{},
	}
	if err := c.loadAbilities(abilityDir); err != nil {
		return nil, err
	}
	if err := c.loadProfiles(profileDir); err != nil {
		return nil, err
	}
	return c, nil
}

func yamlFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yml" || ext == ".yaml" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func (c *Catalog) loadAbilities(dir string) error {
	files, err := yamlFiles(dir)
	if err != nil {
		return fmt.Errorf("catalog: scan abilities: %w", err)
	}
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("catalog: read %s: %w", path, err)
		}
		var batch []*Ability
		if err := yaml.Unmarshal(raw, &batch); err != nil {
			return fmt.Errorf("catalog: parse %s: %w", path, err)
		}
		for _, a := range batch {
			if err := c.addAbility(a); err != nil {
				return fmt.Errorf("catalog: %s: %w", path, err)
			}
		}
	}
	return nil
}

func (c *Catalog) addAbility(a *Ability) error {
	if a.ID == "" {
		return fmt.Errorf("ability missing id")
	}
	if _, exists := c.abilities[a.ID]; exists {
		return fmt.Errorf("duplicate ability id %q", a.ID)
	}
	if a.Executor == "" {
		return fmt.Errorf("ability %q missing executor", a.ID)
	}
	if a.Command == "" {
		return fmt.Errorf("ability %q missing command", a.ID)
	}
	parser, err := buildParser(a.Parser)
	if err != nil {
		return err
	}
	a.required = mergeRequired(a)
	c.order[a.ID] = len(c.abilities)
	c.abilities[a.ID] = a
	c.parsers[a.ID] = parser
	return nil
}

func (c *Catalog) loadProfiles(dir string) error {
	files, err := yamlFiles(dir)
	if err != nil {
		return fmt.Errorf("catalog: scan profiles: %w", err)
	}
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("catalog: read %s: %w", path, err)
		}
		var p Profile
		if err := yaml.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("catalog: parse %s: %w", path, err)
		}
		if p.ID == "" {
			return fmt.Errorf("catalog: %s: profile missing id", path)
		}
		if _, exists := c.profiles[p.ID]; exists {
			return fmt.Errorf("catalog: duplicate profile id %q", p.ID)
		}
		for _, id := range p.AbilityIDs() {
			if _, ok := c.abilities[id]; !ok {
				return fmt.Errorf("catalog: profile %q references %w %q", p.ID, ErrUnknownAbility, id)
			}
		}
		c.profiles[p.ID] = &p
	}
	return nil
}

// Ability fetches an ability definition by id.
func (c *Catalog) Ability(id string) (*Ability, error) {
	a := c.abilities[id]
	if a == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAbility, id)
	}
	return a, nil
}

// Profile fetches a profile definition by id.
func (c *Catalog) Profile(id string) (*Profile, error) {
	p := c.profiles[id]
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, id)
	}
	return p, nil
}

// Parser returns the output parser for an ability. Abilities without a
// parser spec get a no-op parser, never nil.
func (c *Catalog) Parser(abilityID string) Parser {
	if p := c.parsers[abilityID]; p != nil {
		return p
	}
	return noopParser{}
}

// Order returns the catalog load order index for an ability id, used as a
// scheduling tie-break.
func (c *Catalog) Order(abilityID string) int {
	return c.order[abilityID]
}

// Abilities returns every loaded ability in catalog order.
func (c *Catalog) Abilities() []*Ability {
	out := make([]*Ability, len(c.abilities))
	for id, a := range c.abilities {
		out[c.order[id]] = a
	}
	return out
}

// Profiles returns every loaded profile.
func (c *Catalog) Profiles() []*Profile {
	out := make([]*Profile, 0, len(c.profiles))
	for _, p := range c.profiles {
		out = append(out, p)
	}
	return out
}
