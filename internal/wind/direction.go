package wind

import (
	"fmt"

	"windrig/internal/geom"
)

// Direction é o índice discreto do vento: 0 = subida, 1..8 = bússola em sentido horário a partir do norte
type Direction int

const (
	Up Direction = iota
	North
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

// CompassCount é o número de direções horizontais
const CompassCount = 8

var names = [...]string{"up", "n", "ne", "e", "se", "s", "sw", "w", "nw"}

// vetores completos usados para o voo (toda direção horizontal também sobe)
var fullVectors = [...]geom.Vec3{
	{X: 0, Y: 1, Z: 0},
	{X: 0, Y: 1, Z: 1},
	{X: 1, Y: 1, Z: 1},
	{X: 1, Y: 1, Z: 0},
	{X: 1, Y: 1, Z: -1},
	{X: 0, Y: 1, Z: -1},
	{X: -1, Y: 1, Z: -1},
	{X: -1, Y: 1, Z: 0},
	{X: -1, Y: 1, Z: 1},
}

// projeções horizontais usadas no cálculo de similaridade
var horizontalVectors = [...]geom.Vec3{
	{X: 0, Y: 0, Z: 0},
	{X: 0, Y: 0, Z: 1},
	{X: 1, Y: 0, Z: 1},
	{X: 1, Y: 0, Z: 0},
	{X: 1, Y: 0, Z: -1},
	{X: 0, Y: 0, Z: -1},
	{X: -1, Y: 0, Z: -1},
	{X: -1, Y: 0, Z: 0},
	{X: -1, Y: 0, Z: 1},
}

// Valid verifica se o índice está dentro da tabela
func (d Direction) Valid() bool {
	return d >= Up && d <= NorthWest
}

// IsCompass indica se é uma das 8 direções horizontais
func (d Direction) IsCompass() bool {
	return d >= North && d <= NorthWest
}

// String implementa fmt.Stringer
func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("direction(%d)", int(d))
	}
	return names[d]
}

// Vector retorna o vetor completo (não normalizado) da direção
func (d Direction) Vector() geom.Vec3 {
	if !d.Valid() {
		return geom.Zero
	}
	return fullVectors[d]
}

// Horizontal retorna a projeção horizontal da direção (nula para Up)
func (d Direction) Horizontal() geom.Vec3 {
	if !d.Valid() {
		return geom.Zero
	}
	return horizontalVectors[d]
}

// Velocity retorna a velocidade de voo com o vento: vetor normalizado vezes a velocidade
func (d Direction) Velocity(speed float64) geom.Vec3 {
	return d.Vector().Normalized().Scale(speed)
}

// Compass lista as direções horizontais na ordem de enumeração
func Compass() []Direction {
	return []Direction{North, NorthEast, East, SouthEast, South, SouthWest, West, NorthWest}
}
