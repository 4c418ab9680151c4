package geom

import "math"

// epsilon abaixo do qual um vetor é tratado como nulo ao normalizar
const epsilon = 1e-5

// Vec3 representa um vetor tridimensional (x, y, z) com y vertical
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Zero é o vetor nulo
var Zero = Vec3{}

// V cria um novo vetor
func V(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// Add soma dois vetores
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Scale multiplica o vetor por um escalar
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Dot retorna o produto escalar
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Length retorna o módulo do vetor
func (v Vec3) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalized retorna o vetor unitário. Vetores muito pequenos viram o vetor nulo.
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l < epsilon {
		return Zero
	}
	return v.Scale(1 / l)
}

// XZ descarta a componente vertical
func (v Vec3) XZ() Vec3 {
	return Vec3{X: v.X, Z: v.Z}
}
