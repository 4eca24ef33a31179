package correction

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario F: endstops (0,0,0), height 242, probe deviations
// (-0.4374, -0.7375, -0.6312, 0), radius 96.7.
func TestCalculateConvergesAndReSimulatesWithinTolerance(t *testing.T) {
	probes := ProbePoints{
		Tower0Z: -0.4374,
		Tower1Z: -0.7375,
		Tower2Z: -0.6312,
		CenterZ: 0,
	}

	result, ok := Calculate(0, 0, 0, 242, probes, 96.7)
	require.True(t, ok)

	data := &Data{DeltaRadius: result.R, MaxZ: result.H}
	p := [4]vector3{
		{towerFootXY[0][0], towerFootXY[0][1], probes.Tower0Z},
		{towerFootXY[1][0], towerFootXY[1][1], probes.Tower1Z},
		{towerFootXY[2][0], towerFootXY[2][1], probes.Tower2Z},
		{towerFootXY[3][0], towerFootXY[3][1], probes.CenterZ},
	}

	endstop := [3]float64{-result.X, -result.Y, -result.Z}
	var temp [4]vector3
	for i, probe := range p {
		actuator := inverseKinematics(probe, data.DeltaRadius, data)
		for a := 0; a < 3; a++ {
			actuator[a] += endstop[a]
		}
		temp[i] = forwardKinematics(actuator, data.DeltaRadius, data)
	}

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if i == j {
				continue
			}
			assert.Less(t, math.Abs(temp[i].Z-temp[j].Z), 0.002)
		}
	}
}

func TestCalculateNonConvergenceReturnsFalse(t *testing.T) {
	// Wildly inconsistent probe deviations should exhaust the iteration
	// bound rather than loop forever.
	probes := ProbePoints{
		Tower0Z: 1e6,
		Tower1Z: -1e6,
		Tower2Z: 1e6,
		CenterZ: -1e6,
	}
	_, ok := Calculate(0, 0, 0, 242, probes, 96.7)
	assert.False(t, ok)
}

func TestVector3Operations(t *testing.T) {
	a := vector3{1, 0, 0}
	b := vector3{0, 1, 0}

	assert.Equal(t, vector3{0, 0, 1}, a.cross(b))
	assert.Equal(t, 0.0, a.dot(b))
	assert.Equal(t, 1.0, a.magsq())
	assert.Equal(t, vector3{1, 1, 0}, a.add(b))
	assert.Equal(t, vector3{1, -1, 0}, a.sub(b))
	assert.Equal(t, vector3{2, 0, 0}, a.mul(2))
}
