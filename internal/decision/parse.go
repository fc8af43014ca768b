package decision

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseOutcome parses a provider reply into an outcome. Replies wrapped in
// fenced code blocks are tolerated since models often add them despite
// instructions.
func ParseOutcome(raw string) (Outcome, error) {
	text := strings.TrimSpace(raw)
	text = stripFence(text)

	var out Outcome
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return Outcome{}, fmt.Errorf("parse decision reply: %w", err)
	}
	out.Action = strings.TrimSpace(out.Action)
	out.Reasoning = strings.TrimSpace(out.Reasoning)
	if out.Action == "" {
		return Outcome{}, fmt.Errorf("decision reply has no next_action")
	}
	return out, nil
}

func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		// Drop the language tag line, e.g. "json".
		text = text[idx+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
