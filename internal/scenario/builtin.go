package scenario

import (
	"fmt"

	"github.com/motorsim/drivetrain/internal/model/core"
)

// Builtin returns one of the bundled scenarios by name.
func Builtin(name string) (*Scenario, error) {
	switch name {
	case "full-throttle":
		return fullThrottle(), nil
	case "city":
		return city(), nil
	case "kickdown-sprint":
		return kickdownSprint(), nil
	default:
		return nil, fmt.Errorf("unknown builtin scenario %q", name)
	}
}

// BuiltinNames lists the bundled scenarios.
func BuiltinNames() []string {
	return []string{"full-throttle", "city", "kickdown-sprint"}
}

// fullThrottle is a standing-start acceleration run with a hard stop.
func fullThrottle() *Scenario {
	return &Scenario{
		Name: "full-throttle",
		Steps: []Step{
			{AtSeconds: 0, Inputs: core.ControlInputs{Mode: core.ModeDrive, HasMode: true}},
			{AtSeconds: 1, Inputs: core.ControlInputs{Throttle: 1}},
			{AtSeconds: 25, Inputs: core.ControlInputs{Brake: 1}},
			{AtSeconds: 40, Inputs: core.ControlInputs{}},
		},
	}
}

// city alternates gentle acceleration, cruising and braking with turns.
func city() *Scenario {
	return &Scenario{
		Name: "city",
		Steps: []Step{
			{AtSeconds: 0, Inputs: core.ControlInputs{Mode: core.ModeDrive, HasMode: true}},
			{AtSeconds: 1, Inputs: core.ControlInputs{Throttle: 0.4}},
			{AtSeconds: 8, Inputs: core.ControlInputs{Throttle: 0.2}},
			{AtSeconds: 12, Inputs: core.ControlInputs{Throttle: 0.2, Steering: 0.5}},
			{AtSeconds: 15, Inputs: core.ControlInputs{Throttle: 0.3}},
			{AtSeconds: 20, Inputs: core.ControlInputs{Brake: 0.6}},
			{AtSeconds: 24, Inputs: core.ControlInputs{Throttle: 0.4, Steering: -0.5}},
			{AtSeconds: 28, Inputs: core.ControlInputs{Throttle: 0.25}},
			{AtSeconds: 35, Inputs: core.ControlInputs{Brake: 0.8}},
			{AtSeconds: 40, Inputs: core.ControlInputs{}},
		},
	}
}

// kickdownSprint cruises at part throttle and then floors it mid-speed to
// exercise passing downshifts.
func kickdownSprint() *Scenario {
	return &Scenario{
		Name: "kickdown-sprint",
		Steps: []Step{
			{AtSeconds: 0, Inputs: core.ControlInputs{Mode: core.ModeDrive, HasMode: true}},
			{AtSeconds: 1, Inputs: core.ControlInputs{Throttle: 0.35}},
			{AtSeconds: 15, Inputs: core.ControlInputs{Throttle: 0.95}},
			{AtSeconds: 25, Inputs: core.ControlInputs{Throttle: 0.3}},
			{AtSeconds: 32, Inputs: core.ControlInputs{Brake: 0.7}},
			{AtSeconds: 38, Inputs: core.ControlInputs{}},
		},
	}
}
