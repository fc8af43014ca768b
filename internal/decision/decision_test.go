package decision

import (
	"context"
	"strings"
	"testing"

	"github.com/mindlab-sim/mindlab/internal/geo"
	"github.com/mindlab-sim/mindlab/internal/simulation/domain"
)

func routesTo(names ...string) []geo.Route {
	routes := make([]geo.Route, 0, len(names))
	for _, name := range names {
		routes = append(routes, geo.Route{
			Origin:      domain.Location{Name: "Jiankang"},
			Destination: domain.Location{Name: name},
			DistanceKm:  100,
			Direction:   "west",
			FootHours:   25,
			BoatHours:   16,
			HorseHours:  12.5,
		})
	}
	return routes
}

func TestScriptedStressBands(t *testing.T) {
	tests := []struct {
		name   string
		stress int
		routes []geo.Route
		want   string
	}{
		{"calm", 40, routesTo("Xunyang", "Jiangling"), "wait:observe_situation"},
		{"uneasy", 55, routesTo("Xunyang", "Jiangling"), "gather_information"},
		{"alarmed", 65, routesTo("Xunyang", "Jiangling"), "move_to:Xunyang"},
		{"desperate", 75, routesTo("Xunyang", "Jiangling"), "move_to:Jiangling"},
		{"desperate without refuge route", 75, routesTo("Xunyang"), "move_to:Xunyang"},
		{"alarmed without routes", 65, nil, "gather_information"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Scripted{}.Decide(context.Background(), Context{
				Location: "Jiankang",
				Stress:   tc.stress,
				Routes:   tc.routes,
			})
			if err != nil {
				t.Fatalf("decide: %v", err)
			}
			if out.Action != tc.want {
				t.Fatalf("stress %d: got action %q, want %q", tc.stress, out.Action, tc.want)
			}
			if out.Reasoning == "" {
				t.Fatal("expected reasoning")
			}
		})
	}
}

func TestPromptIncludesContext(t *testing.T) {
	profile := domain.AgentProfile{
		Name:        "Yan Zhitui",
		BirthYear:   531,
		Personality: "ISTP",
		Values:      []string{"family safety", "cultural preservation"},
	}
	prompt, err := Prompt(profile, Context{
		Location:  "Jiankang",
		Stress:    85,
		Event:     "Rebel forces besiege the palace city.",
		Inventory: []string{"family genealogy records"},
		Routes:    routesTo("Jiangling"),
	})
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}

	for _, want := range []string{
		"Yan Zhitui",
		"Jiankang",
		"85/100",
		"Rebel forces besiege the palace city.",
		"family genealogy records",
		"Jiangling",
		"next_action",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	// High stress changes the voice.
	if !strings.Contains(prompt, "heart pounds") {
		t.Fatal("expected high-stress voice")
	}
}

func TestPromptOmitsEmptySections(t *testing.T) {
	prompt, err := Prompt(domain.AgentProfile{Name: "A", BirthYear: 531, Personality: "ISTP", Values: []string{"survival"}}, Context{
		Location: "Jiankang",
		Stress:   20,
	})
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	if strings.Contains(prompt, "escape routes") {
		t.Fatal("expected no routes section without routes")
	}
	if strings.Contains(prompt, "You carry") {
		t.Fatal("expected no inventory section without inventory")
	}
}

func TestParseOutcome(t *testing.T) {
	out, err := ParseOutcome(`{"reasoning": "The city is lost.", "next_action": "move_to:Jiangling"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.Action != "move_to:Jiangling" || out.Reasoning != "The city is lost." {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestParseOutcomeFencedBlock(t *testing.T) {
	raw := "```json\n{\"reasoning\": \"Wait it out.\", \"next_action\": \"wait:nightfall\"}\n```"
	out, err := ParseOutcome(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.Action != "wait:nightfall" {
		t.Fatalf("unexpected action %q", out.Action)
	}
}

func TestParseOutcomeRejectsGarbage(t *testing.T) {
	if _, err := ParseOutcome("I think I should flee."); err == nil {
		t.Fatal("expected error for non-JSON reply")
	}
	if _, err := ParseOutcome(`{"reasoning": "hm"}`); err == nil {
		t.Fatal("expected error for missing next_action")
	}
}
