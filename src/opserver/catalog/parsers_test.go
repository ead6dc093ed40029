package catalog

import (
	"reflect"
	"testing"
)

func TestKVParser(t *testing.T) {
	p, err := buildParser(&ParserSpec{Kind: "kv"})
	if err != nil {
		t.Fatal(err)
	}
	out := p.Parse("user=admin\n\ngarbage line\nhost = web01 \n=empty\nkeyonly=\n")
	want := []FactTuple{
		{Key: "user", Value: "admin"},
		{Key: "host", Value: "web01"},
	}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("kv parse = %v, want %v", out, want)
	}
}

func TestJSONParser(t *testing.T) {
	p, err := buildParser(&ParserSpec{Kind: "json"})
	if err != nil {
		t.Fatal(err)
	}

	out := p.Parse(`{"user":"admin","uid":1000,"elevated":true,"skip":null,"empty":""}`)
	got := map[string]string{}
	for _, tuple := range out {
		got[tuple.Key] = tuple.Value
	}
	want := map[string]string{"user": "admin", "uid": "1000", "elevated": "true"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("json parse = %v, want %v", got, want)
	}

	if facts := p.Parse("not json at all"); facts != nil {
		t.Errorf("malformed output should yield zero facts, got %v", facts)
	}
}

func TestRegexParserNamedGroups(t *testing.T) {
	p, err := buildParser(&ParserSpec{Kind: "regex", Pattern: `(?m)^(?P<user>\w+):x:(?P<uid>\d+):`})
	if err != nil {
		t.Fatal(err)
	}
	out := p.Parse("root:x:0:0:root:/root:/bin/bash\ndaemon:x:1:1:daemon:/usr/sbin\n")
	want := []FactTuple{
		{Key: "user", Value: "root"},
		{Key: "uid", Value: "0"},
		{Key: "user", Value: "daemon"},
		{Key: "uid", Value: "1"},
	}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("regex parse = %v, want %v", out, want)
	}
}

func TestRegexParserWholeMatch(t *testing.T) {
	p, err := buildParser(&ParserSpec{Kind: "regex", Key: "ip", Pattern: `\d+\.\d+\.\d+\.\d+`})
	if err != nil {
		t.Fatal(err)
	}
	out := p.Parse("eth0 10.0.0.5 up\nlo 127.0.0.1 up\n")
	want := []FactTuple{
		{Key: "ip", Value: "10.0.0.5"},
		{Key: "ip", Value: "127.0.0.1"},
	}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("regex parse = %v, want %v", out, want)
	}
}

func TestLinesParser(t *testing.T) {
	p, err := buildParser(&ParserSpec{Kind: "lines", Key: "share"})
	if err != nil {
		t.Fatal(err)
	}
	out := p.Parse("\\\\srv\\finance\n\n  \\\\srv\\it  \n")
	want := []FactTuple{
		{Key: "share", Value: "\\\\srv\\finance"},
		{Key: "share", Value: "\\\\srv\\it"},
	}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("lines parse = %v, want %v", out, want)
	}
}

func TestBuildParserValidation(t *testing.T) {
	tests := []struct {
		name string
		spec *ParserSpec
	}{
		{"unknown kind", &ParserSpec{Kind: "xml"}},
		{"regex without pattern", &ParserSpec{Kind: "regex"}},
		{"regex with bad pattern", &ParserSpec{Kind: "regex", Pattern: "("}},
		{"lines without key", &ParserSpec{Kind: "lines"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := buildParser(tt.spec); err == nil {
				t.Errorf("expected error for %+v", tt.spec)
			}
		})
	}
}

func TestNilSpecYieldsNoopParser(t *testing.T) {
	p, err := buildParser(nil)
	if err != nil {
		t.Fatal(err)
	}
	if out := p.Parse("user=admin"); out != nil {
		t.Errorf("noop parser should extract nothing, got %v", out)
	}
}
