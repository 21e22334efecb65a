package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/johnnewto/circuitjs1-sub006/internal/config"
)

// RC charging: 5V battery, 1kOhm resistor, 1uF capacitor, battery
// negative tied to ground. After 5ms (500 steps of 10us), v_cap should
// approach 5*(1-e^-5) ~= 4.9663V (spec §8 Scenario A).
func TestEngineRCCharging(t *testing.T) {
	src := "$ 1 1e-05 1 0 5\n" +
		"v 0 1 0 0 0 dc 5\n" +
		"r 0 1 0 2 0 1000\n" +
		"c 0 2 0 0 0 1e-06\n" +
		"g 0 0 0 0 0\n"

	eng := New(config.New())
	require.NoError(t, eng.LoadFromText(src))
	eng.SetRunning(true)

	for i := 0; i < 500; i++ {
		_, err := eng.StepOnce()
		require.NoError(t, err)
	}

	vCap, ok := eng.NodeVoltage("2")
	require.True(t, ok)
	require.InDelta(t, 4.9663, vCap, 0.5*4.9663/100)
}

func TestEngineRunFramePausedIsNoop(t *testing.T) {
	src := "$ 1 1e-05 1 0 5\n" +
		"v 0 0 0 1 0 dc 5\n" +
		"r 0 1 0 0 0 1000\n" +
		"g 0 0 0 0 0\n"

	eng := New(config.New())
	require.NoError(t, eng.LoadFromText(src))

	report := eng.RunFrame(50)
	require.Equal(t, 0, report.Steps)
	require.Equal(t, 0.0, report.T)
}

func TestEngineRoundTripLoadExport(t *testing.T) {
	src := "$ 1 1e-05 1 0 5\n" +
		"v 0 0 0 1 0 dc 5\n" +
		"r 0 1 0 0 0 1000\n" +
		"g 0 0 0 0 0\n"

	eng := New(config.New())
	require.NoError(t, eng.LoadFromText(src))
	out := eng.ExportText()

	eng2 := New(config.New())
	require.NoError(t, eng2.LoadFromText(out))
	require.Len(t, eng2.Elements(), len(eng.Elements()))
}

func TestEngineResetDiscardsCapacitorCharge(t *testing.T) {
	src := "$ 1 1e-05 1 0 5\n" +
		"v 0 1 0 0 0 dc 5\n" +
		"r 0 1 0 2 0 1000\n" +
		"c 0 2 0 0 0 1e-06 0\n" +
		"g 0 0 0 0 0\n"

	eng := New(config.New())
	require.NoError(t, eng.LoadFromText(src))
	eng.SetRunning(true)
	for i := 0; i < 50; i++ {
		_, err := eng.StepOnce()
		require.NoError(t, err)
	}
	charged, ok := eng.NodeVoltage("2")
	require.True(t, ok)
	require.Greater(t, charged, 0.01)

	eng.Reset()
	require.Equal(t, 0.0, eng.Solver.Time)
	fresh, ok := eng.NodeVoltage("2")
	require.True(t, ok)
	require.InDelta(t, 0.0, fresh, 1e-9)
}
