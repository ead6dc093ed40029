package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrMissingFact indicates a command template was rendered without all of its
// placeholders resolved. The scheduler resolves before rendering, so hitting
// this at runtime is a caller bug, not a normal condition.
var ErrMissingFact = errors.New("catalog: missing fact for placeholder")

// placeholderPattern matches #{key} template placeholders.
var placeholderPattern = regexp.MustCompile(`#\{([a-zA-Z0-9._-]+)\}`)

// Placeholders extracts the distinct fact keys referenced by a command
// template, sorted for determinism.
func Placeholders(template string) []string {
	seen := map[string]bool{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		seen[m[1]] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Render substitutes every #{key} placeholder in the ability's command with
// the matching fact value. All placeholders must be present in facts.
func Render(ability *Ability, facts map[string]string) (string, error) {
	var missing string
	cmd := placeholderPattern.ReplaceAllStringFunc(ability.Command, func(ph string) string {
		key := ph[2 : len(ph)-1]
		val, ok := facts[key]
		if !ok {
			if missing == "" {
				missing = key
			}
			return ph
		}
		return val
	})
	if missing != "" {
		return "", fmt.Errorf("%w: %s (ability %s)", ErrMissingFact, missing, ability.ID)
	}
	return cmd, nil
}

// mergeRequired computes an ability's full requirement set: the explicit
// requires list plus every placeholder in its command template.
func mergeRequired(a *Ability) []string {
	seen := map[string]bool{}
	for _, k := range a.Requires {
		k = strings.TrimSpace(k)
		if k != "" {
			seen[k] = true
		}
	}
	for _, k := range Placeholders(a.Command) {
		seen[k] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
