package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/redquill/redquill/src/opserver/catalog"
)

var (
	abilityFlag = flag.String("abilities", "catalog/abilities", "Ability definition directory")
	profileFlag = flag.String("profiles", "catalog/profiles", "Adversary profile directory")
	verboseFlag = flag.Bool("v", false, "Print per-ability requirement detail")
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	cat, err := catalog.Load(*abilityFlag, *profileFlag)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}

	abilities := cat.Abilities()
	profiles := cat.Profiles()
	fmt.Printf("loaded %d abilities, %d profiles\n", len(abilities), len(profiles))

	if *verboseFlag {
		for _, a := range abilities {
			fmt.Printf("  %-32s executor=%-8s platforms=%s requires=%s\n",
				a.ID, a.Executor, join(a.Platforms), join(a.RequiredFacts()))
		}
	}

	exit := 0
	for _, p := range profiles {
		// facts produced anywhere in the profile, plus whatever the operator
		// could seed; flag requirements nothing in the profile can satisfy
		produced := map[string]bool{}
		for _, id := range p.AbilityIDs() {
			a, err := cat.Ability(id)
			if err != nil {
				continue
			}
			if a.Parser != nil && a.Parser.Key != "" {
				produced[a.Parser.Key] = true
			}
		}
		var unseeded []string
		for _, id := range p.AbilityIDs() {
			a, _ := cat.Ability(id)
			for _, key := range a.RequiredFacts() {
				if !produced[key] {
					unseeded = append(unseeded, fmt.Sprintf("%s needs %s", id, key))
				}
			}
		}
		fmt.Printf("profile %s: %d phases, %d abilities\n", p.ID, len(p.Phases), len(p.AbilityIDs()))
		for _, warn := range unseeded {
			fmt.Printf("  note: %s (seed it at operation start or it stays blocked)\n", warn)
		}
	}
	os.Exit(exit)
}

func join(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}
