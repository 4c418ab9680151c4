// Package rig é o loop de controle do equipamento de vento: lê a telemetria do guarda-chuva,
// decide o vento e a velocidade do jogador e envia os comandos de tampa e ventilador.
package rig

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"windrig/internal/ascent"
	"windrig/internal/config"
	"windrig/internal/geom"
	"windrig/internal/match"
	"windrig/internal/models"
	"windrig/internal/motion"
	"windrig/internal/protocol"
	"windrig/internal/serial"
	"windrig/internal/wind"
	"windrig/pkg/logger"
)

// Transport é o lado do transporte serial usado pelo loop
type Transport interface {
	Write(channel int, payload string) error
	Poll() []serial.Event
}

// Loop contém todo o estado de controle. Pertence a uma única goroutine; não usa locks.
type Loop struct {
	cfg       config.ControlConfig
	transport Transport

	filter *motion.Filter
	field  *wind.Field
	engine *match.Engine
	ascent *ascent.Controller

	telemetryChannel int
	boostButton      rune

	tilt       geom.Vec3
	cycleTimer time.Duration
	holdTimer  time.Duration

	boosting   bool
	boostTwice bool

	position geom.Vec3
	velocity geom.Vec3

	sessionID string
	elapsed   time.Duration
	ended     bool

	tick     uint64
	payloads [protocol.ChannelCount]string
	events   []models.RigEvent

	counters struct {
		telemetryLines uint64
		parseErrors    uint64
		sends          uint64
		sendErrors     uint64
	}
	lastError string
	sendLog   *logger.Limiter
}

// NewLoop monta o loop. Sem transporte é um erro de configuração.
func NewLoop(cfg config.ControlConfig, transport Transport, rng *rand.Rand) (*Loop, error) {
	if transport == nil {
		return nil, &config.ConfigError{Field: "transport", Reason: "transporte serial não conectado ao loop"}
	}

	mode, err := wind.ParseMode(cfg.WindMode)
	if err != nil {
		return nil, &config.ConfigError{Field: "control.windMode", Reason: err.Error()}
	}
	if rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}

	var button rune
	if cfg.BoostButton != "" {
		button = []rune(cfg.BoostButton)[0]
	}

	fall := geom.V(0, -cfg.FallSpeed, 0)
	l := &Loop{
		cfg:       cfg,
		transport: transport,
		filter:    motion.NewFilter(cfg.BatchSize),
		field:     wind.NewField(mode, rng, wind.North),
		engine: match.NewEngine(match.Config{
			Threshold:    cfg.SimilarityThreshold,
			JudgeWindow:  cfg.JudgeWindow.Duration,
			Speed:        cfg.Speed,
			FallVelocity: fall,
		}),
		ascent: ascent.NewController(ascent.Config{
			StartUpHeight: cfg.StartUpHeight,
			UpHeight:      cfg.UpHeight,
			LeadTime:      cfg.UpReadyTime.Duration,
			FallRate:      cfg.FallSpeed,
		}),
		telemetryChannel: config.TelemetryChannel,
		boostButton:      button,
		position:         geom.V(0, cfg.StartHeight, 0),
		velocity:         fall,
		sessionID:        uuid.NewString(),
		sendLog:          logger.NewLimiter(5 * time.Second),
	}
	return l, nil
}

// SetTelemetryChannel muda o canal lido como sensor do guarda-chuva
func (l *Loop) SetTelemetryChannel(ch int) {
	l.telemetryChannel = ch
}

// Step executa um tick de controle de duração dt
func (l *Loop) Step(dt time.Duration) {
	l.tick++
	l.ingestTelemetry()

	if l.ended {
		return
	}

	l.elapsed += dt
	if l.cfg.SessionLength.Duration > 0 && l.elapsed > l.cfg.SessionLength.Duration {
		l.ended = true
		logger.Infof("Sessão %s encerrada após %v", l.sessionID, l.elapsed)
		l.emit(models.EventSessionEnd, map[string]interface{}{"elapsed": l.elapsed.Seconds()})
		return
	}

	// Botão do guarda-chuva dispara o boost enquanto estiver pressionado
	if l.boostButton != 0 && l.filter.Button() == l.boostButton {
		l.startBoost("button")
	}

	if l.boosting {
		l.stepBoost(dt)
	} else {
		l.stepFlight(dt)
	}

	if l.engine.Tick(dt) {
		logger.Infof("Veredito do ciclo travado: %v (vento %s)", l.engine.FinalVerdict(), l.field.Current())
		l.emit(models.EventMatchFinalized, map[string]interface{}{
			"verdict":    l.engine.FinalVerdict(),
			"wind":       int(l.field.Current()),
			"similarity": l.engine.LastSimilarity(),
		})
	}

	// Um segundo antes do fim do ciclo volta ao estado inicial e libera o fim da subida
	if l.cycleTimer > l.cfg.CyclePeriod.Duration-time.Second {
		l.engine.ResetCycle()
		if !l.ascent.Finished() {
			l.ascent.SignalFinish()
			logger.Debug("Fim de subida liberado")
		}
	}

	l.position = l.position.Add(l.velocity.Scale(dt.Seconds()))
}

// stepFlight é o tick fora do boost: controle livre, preparação e subida
func (l *Loop) stepFlight(dt time.Duration) {
	if l.ascent.Phase() == ascent.HoldAtTop {
		l.holdTimer += dt
		if l.holdTimer < l.cfg.HoldDuration.Duration {
			l.velocity = geom.Zero
			return
		}
		if l.ascent.Release() {
			l.emitPhase(ascent.Transition{From: ascent.HoldAtTop, To: ascent.Falling, Height: l.Altitude()})
		}
	}

	h := l.Altitude()
	if h > l.cfg.StartUpHeight && !l.ascent.Rising() {
		l.cycleTimer += dt
		if l.cycleTimer > l.cfg.CyclePeriod.Duration {
			from := l.field.Current()
			to := l.field.Advance()
			l.cycleTimer = 0
			l.emitWind(from, to, "cycle")
		}

		// Preparação e subida não aceitam controle
		if l.ascent.Locked() {
			l.velocity = l.engine.Hold()
		} else {
			l.velocity = l.engine.Observe(l.tilt, l.field.Current())
		}
	}

	for _, t := range l.ascent.Update(h) {
		l.emitPhase(t)
		if t.To == ascent.HoldAtTop {
			l.holdTimer = 0
		}
	}

	if l.ascent.Rising() {
		if from := l.field.Current(); from != wind.Up {
			l.field.Force(wind.Up)
			l.emitWind(from, wind.Up, "ascent")
		}
		l.velocity = wind.Up.Vector().Scale(l.cfg.UpPower)
	}
}

// stepBoost mantém a velocidade do boost por um período de ciclo
func (l *Loop) stepBoost(dt time.Duration) {
	l.cycleTimer += dt
	if l.cycleTimer >= l.cfg.CyclePeriod.Duration {
		l.cycleTimer = 0
		l.boosting = false
		logger.Debug("Boost encerrado")
		return
	}

	raw := l.field.Current().Vector()
	if l.boostTwice {
		// Mesma direção: acelera só no plano horizontal
		l.velocity = geom.V(raw.X*l.cfg.Speed, raw.Y, raw.Z*l.cfg.Speed)
	} else {
		l.velocity = raw.Scale(l.cfg.Speed)
	}
}

// TryBoost pede um boost manual. Só é aceito em queda livre e fora de outro boost.
func (l *Loop) TryBoost(source string) models.BoostResponse {
	switch {
	case l.ended:
		return models.BoostResponse{Reason: "sessão encerrada"}
	case l.boosting:
		return models.BoostResponse{Reason: "boost em andamento"}
	case !l.ascent.FreeControl():
		return models.BoostResponse{Reason: "controle travado pela subida"}
	}
	l.startBoost(source)
	return models.BoostResponse{Accepted: true}
}

func (l *Loop) startBoost(source string) {
	if l.boosting || !l.ascent.FreeControl() {
		return
	}

	from := l.field.Current()
	dir, changed := l.field.Boost(l.tilt)
	l.boosting = true
	l.boostTwice = !changed
	l.cycleTimer = 0

	logger.Infof("Boost (%s): vento %s, mesma direção: %v", source, dir, l.boostTwice)
	if changed {
		l.emitWind(from, dir, "boost")
	}
	l.emit(models.EventBoost, map[string]interface{}{
		"source":  source,
		"wind":    int(dir),
		"changed": changed,
	})
}

// ingestTelemetry drena o transporte e alimenta o filtro com as linhas do sensor
func (l *Loop) ingestTelemetry() {
	for _, ev := range l.transport.Poll() {
		if ev.Channel != l.telemetryChannel {
			logger.Debugf("Linha ignorada do canal %s: %q", ev.Name, ev.Line)
			continue
		}
		l.counters.telemetryLines++

		sample, err := motion.ParseTelemetry(ev.Line)
		if err != nil {
			l.counters.parseErrors++
			logger.Debugf("%v", err)
			continue
		}

		if l.filter.Ingest(sample) {
			l.tilt = motion.Tilt(l.filter.Sample()).XZ()
		}
	}
}

// Send codifica o estado atual e escreve em todos os canais, sem aguardar confirmação
func (l *Loop) Send() {
	frame := protocol.Encode(l.EncoderState())
	l.payloads = frame.Payloads()
	l.counters.sends++

	for ch, payload := range l.payloads {
		if err := l.transport.Write(ch, payload); err != nil {
			l.counters.sendErrors++
			l.lastError = err.Error()
			l.sendLog.Warnf("Erro ao enviar comando: %v", err)
		}
	}
}

// EncoderState monta a entrada do codificador a partir do estado atual
func (l *Loop) EncoderState() protocol.State {
	return protocol.State{
		Wind:      l.field.Current(),
		Locked:    l.ascent.Locked(),
		Finished:  l.ascent.Finished(),
		Ascending: l.ascent.Rising(),
		Verdict:   l.engine.FinalVerdict(),
	}
}

// Altitude retorna a altura atual do jogador
func (l *Loop) Altitude() float64 {
	return l.position.Y
}

// SetAltitude reposiciona o jogador (ex.: altitude vinda de um simulador externo)
func (l *Loop) SetAltitude(h float64) {
	l.position.Y = h
}

// SetTilt define a inclinação diretamente (sem telemetria)
func (l *Loop) SetTilt(t geom.Vec3) {
	l.tilt = t.XZ()
}

// Velocity retorna a velocidade de saída para a física
func (l *Loop) Velocity() geom.Vec3 {
	return l.velocity
}

// Wind retorna a direção ativa
func (l *Loop) Wind() wind.Direction {
	return l.field.Current()
}

// Phase retorna a fase de subida
func (l *Loop) Phase() ascent.Phase {
	return l.ascent.Phase()
}

// Boosting indica boost em andamento
func (l *Loop) Boosting() bool {
	return l.boosting
}

// Ended indica fim de sessão
func (l *Loop) Ended() bool {
	return l.ended
}

// SessionID retorna o identificador da sessão
func (l *Loop) SessionID() string {
	return l.sessionID
}

// Snapshot monta a fotografia do estado atual
func (l *Loop) Snapshot() models.RigSnapshot {
	snap := models.RigSnapshot{
		Tick:           l.tick,
		SessionID:      l.sessionID,
		Timestamp:      time.Now(),
		Wind:           int(l.field.Current()),
		WindName:       l.field.Current().String(),
		PreviousWind:   int(l.field.Previous()),
		CycleTimer:     l.cycleTimer.Seconds(),
		Similarity:     l.engine.LastSimilarity(),
		MatchState:     l.engine.State().String(),
		JudgeTimer:     l.engine.JudgeTimer().Seconds(),
		Finalized:      l.engine.Finalized(),
		Verdict:        l.engine.FinalVerdict(),
		Phase:          l.ascent.Phase().String(),
		Locked:         l.ascent.Locked(),
		Finished:       l.ascent.Finished(),
		Boosting:       l.boosting,
		Altitude:       l.Altitude(),
		Position:       l.position,
		Velocity:       l.velocity,
		Tilt:           l.tilt,
		SessionElapsed: l.elapsed.Seconds(),
		SessionEnded:   l.ended,
	}
	if b := l.filter.Button(); b != 0 {
		snap.Button = string(b)
	}
	if l.payloads[0] != "" {
		snap.Commands = append([]string(nil), l.payloads[:]...)
	}
	return snap
}

// DrainEvents retorna e limpa os eventos gerados desde a última chamada
func (l *Loop) DrainEvents() []models.RigEvent {
	events := l.events
	l.events = nil
	return events
}

func (l *Loop) emitWind(from, to wind.Direction, reason string) {
	logger.Debugf("Vento %s -> %s (%s)", from, to, reason)
	l.emit(models.EventWindChanged, map[string]interface{}{
		"from":   int(from),
		"to":     int(to),
		"name":   to.String(),
		"reason": reason,
	})
}

func (l *Loop) emitPhase(t ascent.Transition) {
	logger.Infof("Fase %s -> %s na altura %.2f", t.From, t.To, t.Height)
	l.emit(models.EventPhaseChanged, map[string]interface{}{
		"from":   t.From.String(),
		"to":     t.To.String(),
		"height": t.Height,
	})
}

func (l *Loop) emit(kind models.EventType, data map[string]interface{}) {
	l.events = append(l.events, models.RigEvent{
		ID:        uuid.NewString(),
		Type:      kind,
		Tick:      l.tick,
		SessionID: l.sessionID,
		Timestamp: time.Now(),
		Data:      data,
	})
}
