// Package scenario scripts driver inputs over time. Scenarios come from
// semicolon-delimited script files or from the built-in profiles.
package scenario

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/motorsim/drivetrain/internal/model/core"
)

// Step is one scripted control change, applied from AtSeconds onward.
type Step struct {
	AtSeconds float64
	Inputs    core.ControlInputs
}

// Scenario is a named, time-ordered input script.
type Scenario struct {
	Name  string
	Steps []Step
}

// Duration returns the time of the last step.
func (s *Scenario) Duration() float64 {
	if len(s.Steps) == 0 {
		return 0
	}
	return s.Steps[len(s.Steps)-1].AtSeconds
}

// Parse reads a script. Each non-comment line is
//
//	time;throttle;brake;steering;mode;shift;surface
//
// where mode is p/r/n/d/s/m, shift is up/down, and any of the last three
// may be "-" to leave it unset. Lines starting with # are comments.
func Parse(r io.Reader, name string) (*Scenario, error) {
	sc := &Scenario{Name: name}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		step, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		sc.Steps = append(sc.Steps, step)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", name)
	}

	sort.SliceStable(sc.Steps, func(i, j int) bool {
		return sc.Steps[i].AtSeconds < sc.Steps[j].AtSeconds
	})
	return sc, nil
}

func parseLine(line string) (Step, error) {
	parts := strings.Split(line, ";")
	if len(parts) < 4 {
		return Step{}, fmt.Errorf("expected at least 4 fields, got %d", len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	at, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return Step{}, fmt.Errorf("bad time %q: %w", parts[0], err)
	}
	throttle, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Step{}, fmt.Errorf("bad throttle %q: %w", parts[1], err)
	}
	brake, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return Step{}, fmt.Errorf("bad brake %q: %w", parts[2], err)
	}
	steering, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return Step{}, fmt.Errorf("bad steering %q: %w", parts[3], err)
	}

	step := Step{
		AtSeconds: at,
		Inputs: core.ControlInputs{
			Throttle: throttle,
			Brake:    brake,
			Steering: steering,
		},
	}

	if len(parts) > 4 && parts[4] != "" && parts[4] != "-" {
		mode, err := core.ParseShiftMode(parts[4])
		if err != nil {
			return Step{}, err
		}
		step.Inputs.Mode = mode
		step.Inputs.HasMode = true
	}
	if len(parts) > 5 && parts[5] != "" && parts[5] != "-" {
		switch parts[5] {
		case "up", "+":
			step.Inputs.Shift = core.ShiftUp
		case "down", "-1":
			step.Inputs.Shift = core.ShiftDown
		default:
			return Step{}, fmt.Errorf("bad shift request %q", parts[5])
		}
	}
	if len(parts) > 6 && parts[6] != "" && parts[6] != "-" {
		surface, err := core.ParseSurfaceType(parts[6])
		if err != nil {
			return Step{}, err
		}
		step.Inputs.Surface = surface
	}

	return step, nil
}

// Load reads a scenario script from disk, named after the file.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(strings.TrimSuffix(path, ".scn"), ".txt")
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		name = name[i+1:]
	}
	return Parse(f, name)
}

// Player walks a scenario, returning the active inputs for each tick.
// Discrete requests (shift, mode) fire only on the tick a step activates.
type Player struct {
	sc   *Scenario
	next int
	cur  core.ControlInputs
}

// NewPlayer creates a player positioned before the first step.
func NewPlayer(sc *Scenario) *Player {
	return &Player{sc: sc}
}

// At returns the control inputs for simulation time t. Continuous inputs
// hold their last scripted value between steps.
func (p *Player) At(t float64) core.ControlInputs {
	entered := false
	for p.next < len(p.sc.Steps) && p.sc.Steps[p.next].AtSeconds <= t {
		p.cur = p.sc.Steps[p.next].Inputs
		p.next++
		entered = true
	}

	out := p.cur
	if !entered {
		// one-shot requests already consumed
		out.Shift = core.ShiftNone
		out.HasMode = false
	}
	return out
}

// Done reports whether the script has run past its last step.
func (p *Player) Done(t float64) bool {
	return p.next >= len(p.sc.Steps) && t >= p.sc.Duration()
}
