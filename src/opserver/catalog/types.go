package catalog

import "time"

// Ability is an immutable technique definition loaded from the catalog.
// Never mutated after load; shared freely across operations.
type Ability struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Platforms   []string    `yaml:"platforms"`
	Executor    string      `yaml:"executor"`
	Command     string      `yaml:"command"`
	Requires    []string    `yaml:"requires"`
	MaxAttempts int         `yaml:"max_attempts"`
	TimeoutSec  int         `yaml:"timeout"`
	Parser      *ParserSpec `yaml:"parser"`

	// union of Requires and the command's placeholders, computed at load
	required []string
}

// ParserSpec selects one of the registered output parser kinds.
type ParserSpec struct {
	Kind    string `yaml:"kind"`
	Key     string `yaml:"key"`
	Pattern string `yaml:"pattern"`
}

// RequiredFacts returns the fact keys that must resolve before this ability
// can be rendered.
func (a *Ability) RequiredFacts() []string {
	out := make([]string, len(a.required))
	copy(out, a.required)
	return out
}

// SupportsPlatform reports whether the ability applies to the given platform
// tag. An empty platform list means the ability runs anywhere.
func (a *Ability) SupportsPlatform(platform string) bool {
	if len(a.Platforms) == 0 {
		return true
	}
	for _, p := range a.Platforms {
		if p == platform {
			return true
		}
	}
	return false
}

// Timeout returns the per-ability execution timeout, or def when unset.
func (a *Ability) Timeout(def time.Duration) time.Duration {
	if a.TimeoutSec <= 0 {
		return def
	}
	return time.Duration(a.TimeoutSec) * time.Second
}

// Attempts returns the maximum number of attempts for the ability. Abilities
// without an explicit retry policy get a single attempt.
func (a *Ability) Attempts() int {
	if a.MaxAttempts < 1 {
		return 1
	}
	return a.MaxAttempts
}

// Phase is one tactic bucket inside an adversary profile. Abilities in a
// phase are only eligible once every strictly-earlier non-optional phase has
// produced at least one success.
type Phase struct {
	Name      string   `yaml:"name"`
	Optional  bool     `yaml:"optional"`
	Abilities []string `yaml:"abilities"`
}

// Profile is an immutable adversary profile: ordered tactic phases over
// catalog ability ids.
type Profile struct {
	ID     string  `yaml:"id"`
	Name   string  `yaml:"name"`
	Phases []Phase `yaml:"phases"`
}

// AbilityIDs returns every ability referenced by the profile, in phase order.
func (p *Profile) AbilityIDs() []string {
	var out []string
	for _, ph := range p.Phases {
		out = append(out, ph.Abilities...)
	}
	return out
}
