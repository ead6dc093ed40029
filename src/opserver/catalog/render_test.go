package catalog

import (
	"errors"
	"reflect"
	"testing"
)

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     []string
	}{
		{
			name:     "no placeholders",
			template: "whoami",
			want:     []string{},
		},
		{
			name:     "single placeholder",
			template: "cat #{target.file}",
			want:     []string{"target.file"},
		},
		{
			name:     "repeated placeholder counted once",
			template: "echo #{user} && sudo -u #{user} id",
			want:     []string{"user"},
		},
		{
			name:     "multiple sorted",
			template: "scp #{file} #{user}@#{host}:/tmp/",
			want:     []string{"file", "host", "user"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Placeholders(tt.template)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Placeholders(%q) = %v, want %v", tt.template, got, tt.want)
			}
		})
	}
}

func TestRenderSubstitutesAll(t *testing.T) {
	ability := &Ability{ID: "copy", Command: "scp #{file} #{user}@#{host}:/tmp/"}
	cmd, err := Render(ability, map[string]string{
		"file": "/etc/passwd",
		"user": "admin",
		"host": "web01",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "scp /etc/passwd admin@web01:/tmp/"
	if cmd != want {
		t.Errorf("Render = %q, want %q", cmd, want)
	}
}

func TestRenderMissingFact(t *testing.T) {
	ability := &Ability{ID: "copy", Command: "cat #{secret}"}
	_, err := Render(ability, map[string]string{"other": "x"})
	if !errors.Is(err, ErrMissingFact) {
		t.Fatalf("expected ErrMissingFact, got %v", err)
	}
}

func TestMergeRequired(t *testing.T) {
	a := &Ability{
		Command:  "run #{host}",
		Requires: []string{"creds", "host", " "},
	}
	got := mergeRequired(a)
	want := []string{"creds", "host"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mergeRequired = %v, want %v", got, want)
	}
}
