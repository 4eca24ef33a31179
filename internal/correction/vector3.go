package correction

import "math"

// vector3 is a small value type for the bed-leveling geometry below, in
// the spirit of Smoothieware's bed-leveling helper.
type vector3 struct {
	X, Y, Z float64
}

func (v vector3) add(o vector3) vector3 {
	return vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v vector3) sub(o vector3) vector3 {
	return vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v vector3) mul(s float64) vector3 {
	return vector3{v.X * s, v.Y * s, v.Z * s}
}

func (v vector3) cross(o vector3) vector3 {
	return vector3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v vector3) dot(o vector3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v vector3) magsq() float64 {
	return v.dot(v)
}

func (v vector3) mag() float64 {
	return math.Sqrt(v.magsq())
}

func (v vector3) unit() vector3 {
	return v.mul(1.0 / v.mag())
}
