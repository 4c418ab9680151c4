// Package match compara a inclinação do guarda-chuva com o vento ativo e
// confirma um veredito único por ciclo de vento após a janela de julgamento.
package match

import (
	"time"

	"windrig/internal/geom"
	"windrig/internal/wind"
)

// State é o estado instantâneo de alinhamento
type State int

const (
	Unmatched State = iota
	Matching
)

// String implementa fmt.Stringer
func (s State) String() string {
	if s == Matching {
		return "matching"
	}
	return "unmatched"
}

// Config contém os parâmetros do motor
type Config struct {
	Threshold    float64       // similaridade mínima (0.8)
	JudgeWindow  time.Duration // tempo de alinhamento contínuo para finalizar (3s)
	Speed        float64       // módulo da velocidade com o vento
	FallVelocity geom.Vec3     // velocidade quando desalinhado
}

// Engine é a máquina de estados por ciclo de vento.
// Pertence ao loop de controle; não é seguro para uso concorrente.
type Engine struct {
	cfg        Config
	state      State
	judgeTimer time.Duration
	finalized  bool
	verdict    bool
	similarity float64
}

// NewEngine cria um motor no estado Unmatched
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Similarity calcula o alinhamento entre a inclinação (sem y) e a projeção horizontal do vento
func Similarity(tilt geom.Vec3, dir wind.Direction) float64 {
	return tilt.XZ().Normalized().Dot(dir.Horizontal().Normalized())
}

// Observe avalia a inclinação contra o vento e retorna a velocidade resultante
func (e *Engine) Observe(tilt geom.Vec3, dir wind.Direction) geom.Vec3 {
	e.similarity = Similarity(tilt, dir)
	if e.similarity >= e.cfg.Threshold {
		e.state = Matching
		return dir.Velocity(e.cfg.Speed)
	}

	e.setUnmatched()
	return e.cfg.FallVelocity
}

// Hold marca o estado como desalinhado enquanto o controle está travado
func (e *Engine) Hold() geom.Vec3 {
	e.setUnmatched()
	return e.cfg.FallVelocity
}

// Tick acumula o tempo de julgamento. Retorna true no tick em que o veredito é travado.
func (e *Engine) Tick(dt time.Duration) bool {
	if e.state != Matching {
		e.judgeTimer = 0
		return false
	}

	e.judgeTimer += dt
	if e.judgeTimer <= e.cfg.JudgeWindow || e.finalized {
		return false
	}

	// só chega aqui alinhado, então o veredito travado é positivo
	e.verdict = e.state == Matching
	e.finalized = true
	e.judgeTimer = 0
	return true
}

// ResetCycle força o estado inicial do ciclo, independente da similaridade
func (e *Engine) ResetCycle() {
	e.state = Unmatched
	e.finalized = false
	e.verdict = false
	e.judgeTimer = 0
}

// State retorna o estado instantâneo
func (e *Engine) State() State {
	return e.state
}

// Finalized indica se o veredito deste ciclo já foi travado
func (e *Engine) Finalized() bool {
	return e.finalized
}

// FinalVerdict é o veredito travado do ciclo (false antes da finalização)
func (e *Engine) FinalVerdict() bool {
	return e.verdict
}

// JudgeTimer retorna o tempo de alinhamento acumulado
func (e *Engine) JudgeTimer() time.Duration {
	return e.judgeTimer
}

// LastSimilarity retorna a última similaridade calculada
func (e *Engine) LastSimilarity() float64 {
	return e.similarity
}

func (e *Engine) setUnmatched() {
	e.state = Unmatched
	e.judgeTimer = 0
}
