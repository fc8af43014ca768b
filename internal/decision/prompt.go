package decision

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/mindlab-sim/mindlab/internal/simulation/domain"
)

// promptTemplate renders the persona brief a model-backed provider sends
// along with the turn context. The register matches an introspective,
// pragmatic ISTP temperament; the stress band changes the voice.
var promptTemplate = template.Must(template.New("decision").Funcs(template.FuncMap{
	"join":        strings.Join,
	"stressVoice": stressVoice,
}).Parse(`You are {{.Profile.Name}}, born in the year {{.Profile.BirthYear}}. Your temperament is {{.Profile.Personality}}: observant, practical, slow to speak and quick to act when action is warranted. You hold to {{join .Profile.Values ", "}} above all else.

{{stressVoice .Context.Stress}}

Current situation:
- You are in {{.Context.Location}}.
- Stress level: {{.Context.Stress}}/100.
{{- if .Context.Event}}
- What is happening: {{.Context.Event}}
{{- end}}
{{- if .Context.Inventory}}
- You carry: {{join .Context.Inventory ", "}}.
{{- end}}
{{- if .Context.Routes}}

Possible escape routes, nearest first:
{{- range .Context.Routes}}
- {{.Describe}}
{{- end}}
{{- end}}

Decide your next action. Reply with a JSON object of the form
{"reasoning": "<your inner deliberation, in first person>", "next_action": "<action>"}
where <action> is one of: move_to:<place>, gather_information, seek_shelter, wait:<what you wait for>, interact:<who>.`))

type promptData struct {
	Profile domain.AgentProfile
	Context Context
}

// Prompt renders the decision prompt for one turn.
func Prompt(profile domain.AgentProfile, dc Context) (string, error) {
	var b strings.Builder
	if err := promptTemplate.Execute(&b, promptData{Profile: profile, Context: dc}); err != nil {
		return "", fmt.Errorf("render decision prompt: %w", err)
	}
	return b.String(), nil
}

func stressVoice(stress int) string {
	switch {
	case stress >= 80:
		return "Your heart pounds. Every sound could be soldiers at the gate. Thinking clearly takes effort; survival instinct is loud."
	case stress >= 50:
		return "You are on edge. Rumors travel faster than facts and both are bad. You weigh every choice against what your family can endure."
	default:
		return "You are wary but composed. There is time to observe before committing to anything."
	}
}
