package domain

import (
	"strings"

	apperrors "github.com/mindlab-sim/mindlab/internal/errors"
)

// AgentProfile describes the simulated historical figure. The profile is
// immutable once a session is created.
type AgentProfile struct {
	Name        string
	BirthYear   int
	Personality string
	Values      []string
}

// NormalizeAgentProfile trims and validates an agent profile.
func NormalizeAgentProfile(profile AgentProfile) (AgentProfile, error) {
	profile.Name = strings.TrimSpace(profile.Name)
	if profile.Name == "" {
		return AgentProfile{}, apperrors.New(apperrors.CodeInvalidArgument, "agent name is required")
	}
	if profile.BirthYear <= 0 {
		return AgentProfile{}, apperrors.New(apperrors.CodeInvalidArgument, "agent birth year must be positive")
	}
	profile.Personality = strings.ToUpper(strings.TrimSpace(profile.Personality))

	values := make([]string, 0, len(profile.Values))
	for _, value := range profile.Values {
		value = strings.TrimSpace(value)
		if value == "" {
			return AgentProfile{}, apperrors.New(apperrors.CodeInvalidArgument, "agent values must be non-empty")
		}
		values = append(values, value)
	}
	profile.Values = values
	return profile, nil
}
