// =======================
// qhash/point3d.go
// =======================

package qhash

import "math"

// Point3D holds a 3D coordinate.
type Point3D struct{ X, Y, Z float64 }

// Rotate rotates around X, Y, Z axes using proper rotation matrices.
func (p Point3D) Rotate(ax, ay, az float64) Point3D {
	cosX, sinX := math.Cos(ax), math.Sin(ax)
	cosY, sinY := math.Cos(ay), math.Sin(ay)
	cosZ, sinZ := math.Cos(az), math.Sin(az)

	p.Y, p.Z = p.Y*cosX-p.Z*sinX, p.Y*sinX+p.Z*cosX
	p.X, p.Z = p.X*cosY+p.Z*sinY, -p.X*sinY+p.Z*cosY
	p.X, p.Y = p.X*cosZ-p.Y*sinZ, p.X*sinZ+p.Y*cosZ
	return p
}

// Project maps p onto a w x h cell grid centred on (w/2, h/2). Terminal
// cells are about twice as tall as wide, so y is halved.
func (p Point3D) Project(scale float64, w, h int) (int, int) {
	return int(p.X*scale + float64(w)/2), int(p.Y*scale/2 + float64(h)/2)
}

// Trajectory returns n successive points of the Lorenz system seeded by
// data, after discarding the transient.
func Trajectory(data []byte, p LorenzParams, n int) []Point3D {
	x, y, z := seedLorenz(data)
	for i := 0; i < lorenzDiscard; i++ {
		x, y, z = p.Step(x, y, z)
	}
	pts := make([]Point3D, n)
	for i := range pts {
		x, y, z = p.Step(x, y, z)
		// Centre the attractor's z lobe around the origin
		pts[i] = Point3D{X: x, Y: y, Z: z - p.Rho + 1}
	}
	return pts
}
