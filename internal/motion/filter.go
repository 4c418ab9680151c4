package motion

import (
	"math"

	"windrig/internal/geom"
)

// DefaultBatchSize é o número de amostras por lote (K)
const DefaultBatchSize = 3

// Rotation é a rotação estimada do guarda-chuva em graus (eixos x e z)
type Rotation struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// Filter acumula amostras em lotes de K e publica uma nova rotação a cada lote completo.
// O lote é esvaziado depois de cada publicação; não há janela deslizante.
type Filter struct {
	size    int
	batch   []Rotation
	sample  Rotation
	average Rotation
	button  rune
	ready   bool
	batches uint64
}

// NewFilter cria um filtro com lotes de tamanho size (mínimo 1)
func NewFilter(size int) *Filter {
	if size < 1 {
		size = DefaultBatchSize
	}
	return &Filter{
		size:  size,
		batch: make([]Rotation, 0, size),
	}
}

// Ingest adiciona uma amostra bruta. Retorna true quando um lote foi concluído.
func (f *Filter) Ingest(s RawSample) bool {
	f.button = s.Button

	// Eixos do sensor trocados e invertidos em relação ao guarda-chuva
	f.batch = append(f.batch, Rotation{X: float64(-s.Y), Z: float64(-s.X)})
	if len(f.batch) < f.size {
		return false
	}

	var sum Rotation
	for _, r := range f.batch {
		sum.X += r.X
		sum.Z += r.Z
	}
	n := float64(len(f.batch))
	f.average = Rotation{X: sum.X / n, Z: sum.Z / n}

	// A rotação aplicada é a última amostra do lote; a média fica apenas exposta
	f.sample = f.batch[len(f.batch)-1]
	f.ready = true
	f.batches++
	f.batch = f.batch[:0]
	return true
}

// Sample retorna a rotação publicada no último lote
func (f *Filter) Sample() Rotation {
	return f.sample
}

// Average retorna a média do último lote
func (f *Filter) Average() Rotation {
	return f.average
}

// Button retorna o último caractere de botão recebido (0 se nenhum)
func (f *Filter) Button() rune {
	return f.button
}

// Ready indica se algum lote já foi concluído
func (f *Filter) Ready() bool {
	return f.ready
}

// Pending retorna quantas amostras aguardam o fechamento do lote
func (f *Filter) Pending() int {
	return len(f.batch)
}

// Batches retorna o total de lotes concluídos
func (f *Filter) Batches() uint64 {
	return f.batches
}

// Reset descarta o lote parcial. Amostras pendentes nunca são publicadas.
func (f *Filter) Reset() {
	f.batch = f.batch[:0]
}

// Tilt retorna o eixo "para cima" do guarda-chuva para a rotação de Euler (x, 0, z) em graus
func Tilt(r Rotation) geom.Vec3 {
	x := r.X * math.Pi / 180
	z := r.Z * math.Pi / 180
	return geom.V(-math.Sin(z), math.Cos(z)*math.Cos(x), math.Cos(z)*math.Sin(x))
}
