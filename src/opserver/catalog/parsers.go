package catalog

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// FactTuple is one key/value observation extracted from link output.
type FactTuple struct {
	Key   string
	Value string
}

// Parser extracts facts from raw link output. Malformed output yields zero
// facts rather than an error: output parsing is best-effort by contract.
type Parser interface {
	Parse(output string) []FactTuple
}

// noopParser is used for abilities without a parser spec.
type noopParser struct{}

func (noopParser) Parse(string) []FactTuple { return nil }

// kvParser reads key=value pairs, one per line.
type kvParser struct{}

func (kvParser) Parse(output string) []FactTuple {
	var out []FactTuple
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out = append(out, FactTuple{Key: k, Value: v})
	}
	return out
}

// jsonParser reads a flat JSON object of key to scalar value.
type jsonParser struct{}

func (jsonParser) Parse(output string) []FactTuple {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &obj); err != nil {
		return nil
	}
	var out []FactTuple
	for k, v := range obj {
		switch val := v.(type) {
		case string:
			if val != "" {
				out = append(out, FactTuple{Key: k, Value: val})
			}
		case float64, bool:
			out = append(out, FactTuple{Key: k, Value: fmt.Sprintf("%v", val)})
		}
	}
	return out
}

// regexParser applies a compiled pattern to the output. Named capture groups
// become fact keys; with no named groups each whole match becomes a value for
// the spec's key.
type regexParser struct {
	re  *regexp.Regexp
	key string
}

func (p regexParser) Parse(output string) []FactTuple {
	var out []FactTuple
	names := p.re.SubexpNames()
	named := false
	for _, n := range names {
		if n != "" {
			named = true
			break
		}
	}
	for _, match := range p.re.FindAllStringSubmatch(output, -1) {
		if named {
			for i, n := range names {
				if n == "" || i >= len(match) || match[i] == "" {
					continue
				}
				out = append(out, FactTuple{Key: n, Value: match[i]})
			}
		} else if p.key != "" && match[0] != "" {
			out = append(out, FactTuple{Key: p.key, Value: match[0]})
		}
	}
	return out
}

// linesParser treats every non-empty output line as one value for the spec's
// key.
type linesParser struct {
	key string
}

func (p linesParser) Parse(output string) []FactTuple {
	var out []FactTuple
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, FactTuple{Key: p.key, Value: line})
	}
	return out
}

// buildParser compiles a parser spec into its implementation. The set of
// parser kinds is closed: new output formats are added here as new tagged
// variants, not loaded dynamically.
func buildParser(spec *ParserSpec) (Parser, error) {
	if spec == nil {
		return noopParser{}, nil
	}
	switch spec.Kind {
	case "kv":
		return kvParser{}, nil
	case "json":
		return jsonParser{}, nil
	case "regex":
		if spec.Pattern == "" {
			return nil, fmt.Errorf("catalog: regex parser requires a pattern")
		}
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("catalog: bad parser pattern %q: %w", spec.Pattern, err)
		}
		return regexParser{re: re, key: spec.Key}, nil
	case "lines":
		if spec.Key == "" {
			return nil, fmt.Errorf("catalog: lines parser requires a key")
		}
		return linesParser{key: spec.Key}, nil
	default:
		return nil, fmt.Errorf("catalog: unknown parser kind %q", spec.Kind)
	}
}
