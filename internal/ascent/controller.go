// Package ascent controla as fases de subida do jogador a partir da altitude.
package ascent

import (
	"time"
)

// Phase é a fase de subida
type Phase int

const (
	// Falling: controle livre, o motor de alinhamento decide a velocidade
	Falling Phase = iota
	// PrepareAscent: pré-sinal enviado ao hardware, controle travado
	PrepareAscent
	// Ascending: subida forçada com vento Up
	Ascending
	// HoldAtTop: chegou ao topo, aguarda liberação externa
	HoldAtTop
)

var phaseNames = [...]string{"falling", "prepare_ascent", "ascending", "hold_at_top"}

// String implementa fmt.Stringer
func (p Phase) String() string {
	if p < Falling || p > HoldAtTop {
		return "unknown"
	}
	return phaseNames[p]
}

// ParsePhase converte o nome publicado nos snapshots de volta para Phase
func ParsePhase(name string) (Phase, bool) {
	for i, n := range phaseNames {
		if n == name {
			return Phase(i), true
		}
	}
	return Falling, false
}

// Config contém os limiares de altitude
type Config struct {
	StartUpHeight float64       // abaixo desta altura a subida começa
	UpHeight      float64       // acima desta altura a subida termina
	LeadTime      time.Duration // antecedência do pré-sinal (UP_READY_TIME)
	FallRate      float64       // velocidade vertical de queda (unidades/s)
}

// PrepareHeight é a altura em que o pré-sinal é disparado
func (c Config) PrepareHeight() float64 {
	return c.StartUpHeight + c.LeadTime.Seconds()*c.FallRate
}

// Transition registra uma mudança de fase
type Transition struct {
	From   Phase   `json:"from"`
	To     Phase   `json:"to"`
	Height float64 `json:"height"`
}

// Controller é a máquina de estados de subida.
// Pertence ao loop de controle; não é seguro para uso concorrente.
type Controller struct {
	cfg      Config
	phase    Phase
	upSignal bool
	finished bool
}

// NewController cria o controlador em Falling
func NewController(cfg Config) *Controller {
	return &Controller{cfg: cfg}
}

// Update avalia a altitude e retorna as transições ocorridas neste tick, em ordem.
// A ordem das verificações é fixa: pré-sinal, início da subida, topo. Assim uma queda
// rápida nunca pula PrepareAscent.
func (c *Controller) Update(h float64) []Transition {
	var transitions []Transition

	// Pré-sinal para o hardware antes da subida
	if h < c.cfg.PrepareHeight() {
		c.upSignal = true
		c.finished = false
		if c.phase == Falling || c.phase == HoldAtTop {
			transitions = c.moveTo(PrepareAscent, h, transitions)
		}
	}

	// Início da subida
	if h < c.cfg.StartUpHeight && c.phase != Ascending {
		transitions = c.moveTo(Ascending, h, transitions)
	}

	// Topo alcançado
	if h > c.cfg.UpHeight && c.phase == Ascending {
		c.upSignal = false
		transitions = c.moveTo(HoldAtTop, h, transitions)
	}

	return transitions
}

// Release volta de HoldAtTop para Falling
func (c *Controller) Release() bool {
	if c.phase != HoldAtTop {
		return false
	}
	c.phase = Falling
	return true
}

// SignalFinish libera o término da subida (fim do ciclo de vento)
func (c *Controller) SignalFinish() {
	c.finished = true
}

// Phase retorna a fase atual
func (c *Controller) Phase() Phase {
	return c.phase
}

// FreeControl indica se o motor de alinhamento deve ser respeitado
func (c *Controller) FreeControl() bool {
	return c.phase == Falling
}

// Locked indica que o sinal de subida está ativo (preparação ou subida)
func (c *Controller) Locked() bool {
	return c.upSignal
}

// Finished indica que a subida pode terminar (tampas superiores abrem)
func (c *Controller) Finished() bool {
	return c.finished
}

// Rising indica subida em andamento
func (c *Controller) Rising() bool {
	return c.phase == Ascending
}

func (c *Controller) moveTo(p Phase, h float64, transitions []Transition) []Transition {
	if c.phase == p {
		return transitions
	}
	transitions = append(transitions, Transition{From: c.phase, To: p, Height: h})
	c.phase = p
	return transitions
}
