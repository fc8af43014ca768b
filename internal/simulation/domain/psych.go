package domain

// StressMin and StressMax bound the stress scale. Every write clamps into
// this range.
const (
	StressMin = 0
	StressMax = 100
)

// PsychState captures the cognitive and emotional state driving the agent's
// decisions. Only the turn algorithm mutates it.
type PsychState struct {
	Stress      int
	Focus       string
	Personality string
}

// ClampStress forces a stress value into [StressMin, StressMax].
func ClampStress(stress int) int {
	if stress < StressMin {
		return StressMin
	}
	if stress > StressMax {
		return StressMax
	}
	return stress
}

// AddStress applies a delta to the state's stress, clamped to the scale.
func (p *PsychState) AddStress(delta int) {
	p.Stress = ClampStress(p.Stress + delta)
}
