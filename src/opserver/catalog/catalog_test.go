package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCatalog(t *testing.T, abilities, profile string) (string, string) {
	t.Helper()
	abilityDir := t.TempDir()
	profileDir := t.TempDir()
	if abilities != "" {
		if err := os.WriteFile(filepath.Join(abilityDir, "set.yml"), []byte(abilities), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if profile != "" {
		if err := os.WriteFile(filepath.Join(profileDir, "profile.yaml"), []byte(profile), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return abilityDir, profileDir
}

const validAbilities = `
- id: enum-users
  name: Enumerate users
  platforms: [linux, darwin]
  executor: shell
  command: cat /etc/passwd
  parser:
    kind: regex
    pattern: '(?m)^(?P<user>\w+):'
- id: crack
  name: Use found user
  executor: shell
  command: "hydra -l #{user} target"
  requires: [wordlist]
  max_attempts: 2
  timeout: 120
`

const validProfile = `
id: smash
name: Smash and grab
phases:
  - name: discovery
    abilities: [enum-users]
  - name: access
    optional: true
    abilities: [crack]
`

func TestLoadValidCatalog(t *testing.T) {
	abilityDir, profileDir := writeCatalog(t, validAbilities, validProfile)
	cat, err := Load(abilityDir, profileDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := len(cat.Abilities()); got != 2 {
		t.Fatalf("expected 2 abilities, got %d", got)
	}
	if cat.Order("enum-users") != 0 || cat.Order("crack") != 1 {
		t.Errorf("catalog order not preserved: %d, %d", cat.Order("enum-users"), cat.Order("crack"))
	}

	crack, err := cat.Ability("crack")
	if err != nil {
		t.Fatal(err)
	}
	// requires list plus command placeholder, sorted
	want := []string{"user", "wordlist"}
	got := crack.RequiredFacts()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("RequiredFacts = %v, want %v", got, want)
	}
	if crack.Attempts() != 2 {
		t.Errorf("Attempts = %d, want 2", crack.Attempts())
	}

	profile, err := cat.Profile("smash")
	if err != nil {
		t.Fatal(err)
	}
	if len(profile.Phases) != 2 || !profile.Phases[1].Optional {
		t.Errorf("profile phases parsed wrong: %+v", profile.Phases)
	}

	if _, err := cat.Ability("nope"); err == nil {
		t.Error("expected unknown ability error")
	}
	if _, err := cat.Profile("nope"); err == nil {
		t.Error("expected unknown profile error")
	}
}

func TestLoadRejectsBadDefinitions(t *testing.T) {
	tests := []struct {
		name      string
		abilities string
		profile   string
		wantErr   string
	}{
		{
			name:      "duplicate ability id",
			abilities: "- id: a\n  executor: shell\n  command: x\n- id: a\n  executor: shell\n  command: y\n",
			wantErr:   "duplicate ability",
		},
		{
			name:      "missing executor",
			abilities: "- id: a\n  command: x\n",
			wantErr:   "missing executor",
		},
		{
			name:      "missing command",
			abilities: "- id: a\n  executor: shell\n",
			wantErr:   "missing command",
		},
		{
			name:      "unknown parser kind",
			abilities: "- id: a\n  executor: shell\n  command: x\n  parser:\n    kind: csv\n",
			wantErr:   "unknown parser kind",
		},
		{
			name:      "profile references unknown ability",
			abilities: "- id: a\n  executor: shell\n  command: x\n",
			profile:   "id: p\nphases:\n  - name: one\n    abilities: [ghost]\n",
			wantErr:   "unknown ability",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			abilityDir, profileDir := writeCatalog(t, tt.abilities, tt.profile)
			_, err := Load(abilityDir, profileDir)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}
