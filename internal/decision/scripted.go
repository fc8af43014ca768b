package decision

import (
	"context"
	"fmt"

	"github.com/mindlab-sim/mindlab/internal/geo"
)

// Scripted is a deterministic provider keyed on stress bands. Higher
// stress pushes the agent toward flight along a known route; lower
// stress keeps it gathering information or waiting.
type Scripted struct{}

// Decide picks an action from the stress level and available routes.
func (Scripted) Decide(_ context.Context, dc Context) (Outcome, error) {
	if dc.Stress >= 70 {
		if route, ok := routeTo(dc, "Jiangling"); ok {
			return Outcome{
				Reasoning: fmt.Sprintf("The danger here is unbearable. %s is the nearest real refuge; leaving now by water is the only sensible move.", route.Destination.Name),
				Action:    "move_to:" + route.Destination.Name,
			}, nil
		}
	}
	if dc.Stress >= 60 {
		if route, ok := routeTo(dc, "Xunyang"); ok {
			return Outcome{
				Reasoning: fmt.Sprintf("Staying is getting riskier. %s is close enough to reach before things worsen.", route.Destination.Name),
				Action:    "move_to:" + route.Destination.Name,
			}, nil
		}
	}
	if dc.Stress >= 50 {
		return Outcome{
			Reasoning: "Too little is known to commit to a route. Better to find out what is actually happening first.",
			Action:    "gather_information",
		}, nil
	}
	return Outcome{
		Reasoning: "Nothing demands action yet. Watch, and conserve strength.",
		Action:    "wait:observe_situation",
	}, nil
}

func routeTo(dc Context, destination string) (geo.Route, bool) {
	for _, route := range dc.Routes {
		if route.Destination.Name == destination {
			return route, true
		}
	}
	return geo.Route{}, false
}

var _ Provider = Scripted{}
