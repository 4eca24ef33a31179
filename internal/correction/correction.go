// Package correction implements the delta-geometry calibration solver:
// forward/inverse kinematics for a delta robot and the iterative
// endstop/radius/height error-correction loop.
package correction

import "math"

// deltaDiagonalRod is the fixed-length arm from carriage to effector.
const deltaDiagonalRod = 189.75

// maxIterations bounds the solver's convergence loop.
const maxIterations = 25530

// towerAdjustment holds the per-tower angular offset (in degrees) and
// radial bias applied when deriving tower base positions.
type towerAdjustment struct {
	AngleDeg [3]float64
	Radius   [3]float64
}

// Data is the working state the forward/inverse kinematics and solver
// mutate across iterations.
type Data struct {
	DeltaRadius    float64
	TowerAdj       towerAdjustment
	EndstopAdj     [3]float64
	MaxZ           float64
	diagonalRodSq  float64
}

// Result is the five-real correction the solver produces.
type Result struct {
	X, Y, Z, R, H float64
}

// deltaTower returns the three towers' fixed (x, y) base positions for a
// given delta radius, honouring any per-tower angular/radial adjustment.
func deltaTower(r float64, data *Data) [3]vector3 {
	data.diagonalRodSq = deltaDiagonalRod * deltaDiagonalRod

	baseAngles := [3]float64{210, 330, 90}
	var towers [3]vector3
	for i := 0; i < 3; i++ {
		radius := r + data.TowerAdj.Radius[i]
		angle := (baseAngles[i] + data.TowerAdj.AngleDeg[i]) * math.Pi / 180
		towers[i] = vector3{
			X: radius * math.Cos(angle),
			Y: radius * math.Sin(angle),
		}
	}
	return towers
}

// forwardKinematics computes the Cartesian effector position given the
// three towers' carriage heights, via the circumcentre of the three
// tower-height points offset by the unit normal.
func forwardKinematics(actuatorMM [3]float64, r float64, data *Data) vector3 {
	towers := deltaTower(r, data)

	tower1 := vector3{towers[0].X, towers[0].Y, actuatorMM[0]}
	tower2 := vector3{towers[1].X, towers[1].Y, actuatorMM[1]}
	tower3 := vector3{towers[2].X, towers[2].Y, actuatorMM[2]}

	s12 := tower1.sub(tower2)
	s23 := tower2.sub(tower3)
	s13 := tower1.sub(tower3)

	normal := s12.cross(s23)

	magsqS12 := s12.magsq()
	magsqS23 := s23.magsq()
	magsqS13 := s13.magsq()

	invNmagSq := 1.0 / normal.magsq()
	q := 0.5 * invNmagSq

	a := q * magsqS23 * s12.dot(s13)
	// Negated because s12 is used in place of s21.
	b := q * magsqS13 * s12.dot(s23) * -1.0
	c := q * magsqS12 * s13.dot(s23)

	circumcenter := vector3{
		X: tower1.X*a + tower2.X*b + tower3.X*c,
		Y: tower1.Y*a + tower2.Y*b + tower3.Y*c,
		Z: actuatorMM[0]*a + actuatorMM[1]*b + actuatorMM[2]*c,
	}

	rSq := 0.5 * q * magsqS12 * magsqS23 * magsqS13
	dist := math.Sqrt(invNmagSq * (data.diagonalRodSq - rSq))

	return circumcenter.sub(normal.mul(dist))
}

// inverseKinematics computes the three carriage heights needed to place
// the effector at cartesian, given delta radius r.
func inverseKinematics(cartesian vector3, r float64, data *Data) [3]float64 {
	towers := deltaTower(r, data)
	var actuator [3]float64
	for i := 0; i < 3; i++ {
		dx := towers[i].X - cartesian.X
		dy := towers[i].Y - cartesian.Y
		actuator[i] = math.Sqrt(data.diagonalRodSq-dx*dx-dy*dy) + cartesian.Z
	}
	return actuator
}

// errorSimulation applies the current error vector to one probe point and
// returns the simulated Cartesian position.
func errorSimulation(probe vector3, errVec [5]float64, data *Data) vector3 {
	actuator := inverseKinematics(probe, data.DeltaRadius, data)
	for i := 0; i < 3; i++ {
		actuator[i] += errVec[i]
	}
	return forwardKinematics(actuator, data.DeltaRadius+errVec[3], data)
}

// calculateError runs the iterative endstop/radius/height correction loop
// for the four probe points in p, accumulating
// into err. radiusEnabled/heightEnabled gate the radius/height
// corrections. Returns false on non-convergence.
func calculateError(p [4]vector3, err *[5]float64, radiusEnabled, heightEnabled bool, data *Data) bool {
	var temp [4]vector3
	var errVec [5]float64
	for i := range p {
		temp[i] = errorSimulation(p[i], errVec, data)
	}

	count := 0
	for {
		changed := false
		for i := 0; i < 3; i++ {
			a := temp[i].Z - temp[(i+1)%3].Z
			b := temp[i].Z - temp[(i+2)%3].Z
			if a < -0.001 || b < -0.001 {
				errVec[i] += 0.001
				for j := range p {
					temp[j] = errorSimulation(p[j], errVec, data)
				}
				changed = true
			}
		}

		var c float64
		if radiusEnabled {
			c = temp[3].Z - temp[0].Z
		}
		switch {
		case c < -0.001:
			errVec[3] += 0.001
			for j := range p {
				temp[j] = errorSimulation(p[j], errVec, data)
			}
			changed = true
		case c > 0.001:
			errVec[3] -= 0.001
			for j := range p {
				temp[j] = errorSimulation(p[j], errVec, data)
			}
			changed = true
		}

		if count > maxIterations {
			return false
		}
		count++

		if !changed {
			break
		}
	}

	if heightEnabled {
		errVec[4] -= temp[3].Z
	}

	for i := 0; i < 5; i++ {
		err[i] += errVec[i]
	}

	min := err[0]
	for i := 1; i < 3; i++ {
		if err[i] < min {
			min = err[i]
		}
	}
	for i := 0; i < 3; i++ {
		err[i] -= min
	}

	return true
}

// ProbePoints is the four probed deviations at the fixed tower-foot
// positions plus the near-centre point.
type ProbePoints struct {
	Tower0Z, Tower1Z, Tower2Z, CenterZ float64
}

// towerFootXY are the fixed 120°-symmetric probe positions, plus the
// near-centre point, in (x, y) form.
var towerFootXY = [4][2]float64{
	{-73.61, -42.50},
	{73.61, -42.50},
	{0.00, 85.00},
	{0.00, 0.00},
}

// Calculate runs the calibration solver: given the current endstop
// adjustments, probed deviations at the four points, and the current
// delta radius, it returns the endstop corrections X, Y, Z together with
// the resulting delta radius R and height H (the inputs plus any
// radius/height correction), or ok=false on non-convergence. Radius correction is disabled and height
// correction enabled, matching firmware default behavior.
func Calculate(endstopX, endstopY, endstopZ, endstopH float64, probes ProbePoints, deltaRadius float64) (result Result, ok bool) {
	return CalculateWithOptions(endstopX, endstopY, endstopZ, endstopH, probes, deltaRadius, false, true)
}

// CalculateWithOptions is Calculate with explicit radius/height correction
// toggles, for calibration front-ends that want to surface them.
func CalculateWithOptions(endstopX, endstopY, endstopZ, endstopH float64, probes ProbePoints, deltaRadius float64, radiusEnabled, heightEnabled bool) (result Result, ok bool) {
	data := &Data{
		DeltaRadius: deltaRadius,
		MaxZ:        endstopH,
	}

	p := [4]vector3{
		{towerFootXY[0][0], towerFootXY[0][1], probes.Tower0Z},
		{towerFootXY[1][0], towerFootXY[1][1], probes.Tower1Z},
		{towerFootXY[2][0], towerFootXY[2][1], probes.Tower2Z},
		{towerFootXY[3][0], towerFootXY[3][1], probes.CenterZ},
	}

	var errVec [5]float64
	errVec[0] = -endstopX
	errVec[1] = -endstopY
	errVec[2] = -endstopZ
	errVec[3] = deltaRadius
	errVec[4] = endstopH

	if !calculateError(p, &errVec, radiusEnabled, heightEnabled, data) {
		return Result{}, false
	}

	return Result{
		X: -errVec[0],
		Y: -errVec[1],
		Z: -errVec[2],
		R: errVec[3],
		H: errVec[4],
	}, true
}
