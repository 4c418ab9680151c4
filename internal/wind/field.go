package wind

import (
	"fmt"
	"math/rand"
	"strings"

	"windrig/internal/geom"
)

// Mode define a política de sorteio do próximo vento
type Mode int

const (
	// ModeRandom sorteia uniformemente entre as 8 direções sem repetir a anterior
	ModeRandom Mode = iota
	// ModeDemoSequential percorre as 8 direções em ordem (gravações de demonstração)
	ModeDemoSequential
)

// ParseMode converte o nome de configuração no modo
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "random":
		return ModeRandom, nil
	case "demo", "sequential", "demo-sequential":
		return ModeDemoSequential, nil
	default:
		return ModeRandom, fmt.Errorf("modo de vento desconhecido: %q", s)
	}
}

// String implementa fmt.Stringer
func (m Mode) String() string {
	if m == ModeDemoSequential {
		return "demo-sequential"
	}
	return "random"
}

// Field mantém a direção atual do vento e a anterior.
// Não é seguro para uso concorrente: pertence ao loop de controle.
type Field struct {
	mode     Mode
	rng      *rand.Rand
	current  Direction
	previous Direction

	// último sorteio; independe de Boost e Force
	lastDrawn Direction
}

// NewField cria o campo de vento começando em start
func NewField(mode Mode, rng *rand.Rand, start Direction) *Field {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	if !start.Valid() {
		start = Up
	}
	lastDrawn := start
	if !lastDrawn.IsCompass() {
		lastDrawn = North
	}
	return &Field{
		mode:      mode,
		rng:       rng,
		current:   start,
		previous:  start,
		lastDrawn: lastDrawn,
	}
}

// Mode retorna a política configurada
func (f *Field) Mode() Mode {
	return f.mode
}

// Current retorna a direção ativa
func (f *Field) Current() Direction {
	return f.current
}

// Previous retorna a direção do ciclo anterior
func (f *Field) Previous() Direction {
	return f.previous
}

// Advance sorteia a direção do próximo ciclo
func (f *Field) Advance() Direction {
	var next Direction
	switch f.mode {
	case ModeDemoSequential:
		next = f.lastDrawn%CompassCount + 1
		// boost pode ter deixado o vento exatamente na próxima da sequência
		if next == f.current {
			next = next%CompassCount + 1
		}
	default:
		next = f.draw()
		for next == f.lastDrawn || next == f.current {
			next = f.draw()
		}
	}

	f.lastDrawn = next
	f.previous = f.current
	f.current = next
	return next
}

// Boost escolhe a direção horizontal mais próxima da inclinação do jogador.
// Em caso de empate vence o primeiro índice. changed indica se a direção mudou.
func (f *Field) Boost(tilt geom.Vec3) (dir Direction, changed bool) {
	t := tilt.XZ().Normalized()
	best := f.current
	maxSimilarity := -1.0
	for _, d := range Compass() {
		similarity := t.Dot(d.Horizontal().Normalized())
		if similarity > maxSimilarity {
			maxSimilarity = similarity
			best = d
		}
	}

	changed = best != f.current
	if changed {
		f.previous = f.current
		f.current = best
	}
	return best, changed
}

// Force define a direção sem sorteio (ex.: subida forçada)
func (f *Field) Force(d Direction) {
	if !d.Valid() || d == f.current {
		return
	}
	f.previous = f.current
	f.current = d
}

// draw sorteia uma direção horizontal uniforme em 1..8
func (f *Field) draw() Direction {
	return Direction(f.rng.Intn(CompassCount) + 1)
}
