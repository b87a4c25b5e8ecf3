package capability

import (
	"math"
	"time"
)

// BaseVelocity is a planar base velocity: linear x/y in m/s, angular theta in rad/s.
type BaseVelocity struct {
	X     float64
	Y     float64
	Theta float64
}

// IsZero reports whether all components are zero.
func (v BaseVelocity) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Theta == 0
}

// Scale multiplies each component by the matching factor of max.
func (v BaseVelocity) Scale(max BaseVelocity) BaseVelocity {
	return BaseVelocity{X: v.X * max.X, Y: v.Y * max.Y, Theta: v.Theta * max.Theta}
}

// Vector2 is a planar translation.
type Vector2 struct {
	X float64
	Y float64
}

// Isometry2 is a planar rigid transform.
type Isometry2 struct {
	Translation Vector2
	Angle       float64
}

// NewIsometry2 builds a planar transform from x, y and a heading angle in radians.
func NewIsometry2(x, y, angle float64) Isometry2 {
	return Isometry2{Translation: Vector2{X: x, Y: y}, Angle: angle}
}

// Identity2 returns the identity planar transform.
func Identity2() Isometry2 {
	return Isometry2{}
}

// Inverse returns the inverse transform.
func (i Isometry2) Inverse() Isometry2 {
	s, c := math.Sincos(-i.Angle)
	x, y := i.Translation.X, i.Translation.Y
	return Isometry2{
		Translation: Vector2{X: -(c*x - s*y), Y: -(s*x + c*y)},
		Angle:       -i.Angle,
	}
}

// Vector3 is a spatial translation.
type Vector3 struct {
	X float64
	Y float64
	Z float64
}

// Quaternion is a rotation; W is the scalar part.
type Quaternion struct {
	W float64
	X float64
	Y float64
	Z float64
}

// Conjugate returns the conjugate quaternion, which is the inverse of a unit quaternion.
func (q Quaternion) Conjugate() Quaternion {
	return Quaternion{W: q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
}

// Rotate applies q to v.
func (q Quaternion) Rotate(v Vector3) Vector3 {
	// v' = v + 2w(u x v) + 2u x (u x v)
	ux, uy, uz := q.X, q.Y, q.Z
	cx := uy*v.Z - uz*v.Y
	cy := uz*v.X - ux*v.Z
	cz := ux*v.Y - uy*v.X
	ccx := uy*cz - uz*cy
	ccy := uz*cx - ux*cz
	ccz := ux*cy - uy*cx
	return Vector3{
		X: v.X + 2*(q.W*cx+ccx),
		Y: v.Y + 2*(q.W*cy+ccy),
		Z: v.Z + 2*(q.W*cz+ccz),
	}
}

// Isometry3 is a spatial rigid transform.
type Isometry3 struct {
	Translation Vector3
	Rotation    Quaternion
}

// Identity3 returns the identity spatial transform.
func Identity3() Isometry3 {
	return Isometry3{Rotation: Quaternion{W: 1}}
}

// Inverse returns the inverse transform. Rotation must be a unit quaternion.
func (i Isometry3) Inverse() Isometry3 {
	inv := i.Rotation.Conjugate()
	t := inv.Rotate(i.Translation)
	return Isometry3{
		Translation: Vector3{X: -t.X, Y: -t.Y, Z: -t.Z},
		Rotation:    inv,
	}
}

// TrajectoryPoint is one waypoint of a joint trajectory.
type TrajectoryPoint struct {
	Positions     []float64
	Velocities    []float64
	TimeFromStart time.Duration
}
