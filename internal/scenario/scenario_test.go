package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorsim/drivetrain/internal/model/core"
)

const sampleScript = `
# standing start, short sprint
0.0; 0; 0; 0; d
1.0; 1.0; 0; 0
6.0; 0.5; 0; 0.25; -; up
10.0; 0; 1.0; 0; -; -; wet
`

func TestParse(t *testing.T) {
	sc, err := Parse(strings.NewReader(sampleScript), "sprint")
	require.NoError(t, err)

	assert.Equal(t, "sprint", sc.Name)
	require.Len(t, sc.Steps, 4)

	assert.True(t, sc.Steps[0].Inputs.HasMode)
	assert.Equal(t, core.ModeDrive, sc.Steps[0].Inputs.Mode)

	assert.InDelta(t, 1.0, sc.Steps[1].Inputs.Throttle, 1e-9)
	assert.False(t, sc.Steps[1].Inputs.HasMode)

	assert.Equal(t, core.ShiftUp, sc.Steps[2].Inputs.Shift)
	assert.InDelta(t, 0.25, sc.Steps[2].Inputs.Steering, 1e-9)

	assert.Equal(t, core.SurfaceWet, sc.Steps[3].Inputs.Surface)
	assert.InDelta(t, 10.0, sc.Duration(), 1e-9)
}

func TestParse_SortsOutOfOrderSteps(t *testing.T) {
	sc, err := Parse(strings.NewReader("5;1;0;0\n0;0;0;0\n"), "unsorted")
	require.NoError(t, err)
	assert.InDelta(t, 0, sc.Steps[0].AtSeconds, 1e-9)
	assert.InDelta(t, 5, sc.Steps[1].AtSeconds, 1e-9)
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		name   string
		script string
	}{
		{"empty", "# nothing\n"},
		{"too few fields", "0;1\n"},
		{"bad time", "x;0;0;0\n"},
		{"bad throttle", "0;x;0;0\n"},
		{"bad mode", "0;0;0;0;zz\n"},
		{"bad shift", "0;0;0;0;-;sideways\n"},
		{"bad surface", "0;0;0;0;-;-;moon\n"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.script), "bad")
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oval.scn")
	require.NoError(t, os.WriteFile(path, []byte("0;0;0;0;d\n2;1;0;0\n"), 0o644))

	sc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "oval", sc.Name)
	require.Len(t, sc.Steps, 2)
}

func TestPlayer_HoldsContinuousInputs(t *testing.T) {
	sc, err := Parse(strings.NewReader("0;0;0;0;d\n1;0.8;0;0\n5;0;1;0\n"), "p")
	require.NoError(t, err)

	p := NewPlayer(sc)

	in := p.At(0)
	assert.True(t, in.HasMode)

	// Between steps the throttle holds, but the mode request does not repeat.
	in = p.At(1.5)
	assert.InDelta(t, 0.8, in.Throttle, 1e-9)
	assert.False(t, in.HasMode)

	in = p.At(3.0)
	assert.InDelta(t, 0.8, in.Throttle, 1e-9)

	in = p.At(5.0)
	assert.InDelta(t, 1.0, in.Brake, 1e-9)
	assert.True(t, p.Done(5.0))
}

func TestPlayer_ShiftFiresOnce(t *testing.T) {
	sc, err := Parse(strings.NewReader("0;0.5;0;0;m\n2;0.5;0;0;-;up\n"), "p")
	require.NoError(t, err)

	p := NewPlayer(sc)
	p.At(0)

	in := p.At(2.0)
	assert.Equal(t, core.ShiftUp, in.Shift)

	in = p.At(2.1)
	assert.Equal(t, core.ShiftNone, in.Shift)
}

func TestBuiltin(t *testing.T) {
	for _, name := range BuiltinNames() {
		t.Run(name, func(t *testing.T) {
			sc, err := Builtin(name)
			require.NoError(t, err)
			assert.Equal(t, name, sc.Name)
			assert.NotEmpty(t, sc.Steps)
			// Every builtin starts by selecting a mode.
			assert.True(t, sc.Steps[0].Inputs.HasMode)
		})
	}

	_, err := Builtin("nope")
	assert.Error(t, err)
}
