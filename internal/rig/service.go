package rig

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"windrig/internal/config"
	"windrig/internal/models"
	"windrig/internal/serial"
	"windrig/pkg/logger"
)

// ErrNotRunning indica que o loop de controle não está ativo
var ErrNotRunning = errors.New("loop de controle parado")

// StateHandler recebe os snapshots publicados pelo loop
type StateHandler func(snapshot models.RigSnapshot)

// EventHandler recebe os eventos discretos do loop
type EventHandler func(event models.RigEvent)

// statsProvider é implementado por transportes que expõem contadores por canal
type statsProvider interface {
	Stats() []serial.ChannelStats
}

type boostRequest struct {
	source string
	reply  chan models.BoostResponse
}

// Service executa o loop de controle numa goroutine com dois tickers (controle e envio)
type Service struct {
	loop      *Loop
	transport Transport
	config    config.ControlConfig

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mutex   sync.RWMutex

	status    models.RigStatus
	snapshot  models.RigSnapshot
	history   []models.RigEvent
	maxEvents int

	stateHandlers []StateHandler
	eventHandlers []EventHandler
	handlersLock  sync.RWMutex

	boostRequests chan boostRequest
}

// NewService cria o serviço. O transporte é obrigatório.
func NewService(cfg config.ControlConfig, transport Transport) (*Service, error) {
	return newService(cfg, transport, nil)
}

func newService(cfg config.ControlConfig, transport Transport, rng *rand.Rand) (*Service, error) {
	loop, err := NewLoop(cfg, transport, rng)
	if err != nil {
		return nil, err
	}

	maxEvents := cfg.EventHistory
	if maxEvents <= 0 {
		maxEvents = 200
	}

	s := &Service{
		loop:          loop,
		transport:     transport,
		config:        cfg,
		maxEvents:     maxEvents,
		boostRequests: make(chan boostRequest),
		status: models.RigStatus{
			Status:    "initializing",
			SessionID: loop.SessionID(),
			Timestamp: time.Now(),
		},
	}
	s.snapshot = loop.Snapshot()
	return s, nil
}

// Start inicia o loop de controle
func (s *Service) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return nil
	}

	logger.Infof("Iniciando loop de controle (tick %v, envio %v, sessão %s)",
		s.config.TickInterval.Duration, s.config.SendInterval.Duration, s.loop.SessionID())

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running = true
	s.status.Status = "running"
	s.status.StartedAt = time.Now()
	s.status.Timestamp = time.Now()

	s.wg.Add(1)
	go s.run(s.ctx)
	return nil
}

// Stop para o loop e aguarda a goroutine terminar
func (s *Service) Stop() {
	s.mutex.Lock()
	if !s.running {
		s.mutex.Unlock()
		return
	}
	logger.Info("Parando loop de controle")
	s.cancel()
	s.running = false
	s.mutex.Unlock()

	s.wg.Wait()

	s.mutex.Lock()
	s.status.Status = "stopped"
	s.status.Timestamp = time.Now()
	s.mutex.Unlock()
}

// IsRunning verifica se o serviço está em execução
func (s *Service) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.running
}

// RegisterStateHandler registra uma função para receber snapshots (a cada envio)
func (s *Service) RegisterStateHandler(handler StateHandler) {
	s.handlersLock.Lock()
	defer s.handlersLock.Unlock()
	s.stateHandlers = append(s.stateHandlers, handler)
}

// RegisterEventHandler registra uma função para receber eventos
func (s *Service) RegisterEventHandler(handler EventHandler) {
	s.handlersLock.Lock()
	defer s.handlersLock.Unlock()
	s.eventHandlers = append(s.eventHandlers, handler)
}

// run é o único dono do Loop
func (s *Service) run(ctx context.Context) {
	defer s.wg.Done()

	control := time.NewTicker(s.config.TickInterval.Duration)
	defer control.Stop()
	send := time.NewTicker(s.config.SendInterval.Duration)
	defer send.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-control.C:
			s.processTick()
		case <-send.C:
			s.send()
		case req := <-s.boostRequests:
			req.reply <- s.loop.TryBoost(req.source)
			s.publishEvents()
		}
	}
}

// processTick avança o loop em um passo fixo
func (s *Service) processTick() {
	s.loop.Step(s.config.TickInterval.Duration)
	s.updateSnapshot()
	s.publishEvents()
}

// send escreve os comandos e publica o snapshot
func (s *Service) send() {
	s.loop.Send()
	snapshot := s.updateSnapshot()

	s.handlersLock.RLock()
	handlers := s.stateHandlers
	s.handlersLock.RUnlock()

	for _, handler := range handlers {
		handler(snapshot)
	}
}

// updateSnapshot copia o estado do loop para leitura concorrente
func (s *Service) updateSnapshot() models.RigSnapshot {
	snapshot := s.loop.Snapshot()
	c := s.loop.counters

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.snapshot = snapshot
	s.status.Ticks = snapshot.Tick
	s.status.Sends = c.sends
	s.status.SendErrors = c.sendErrors
	s.status.TelemetryLines = c.telemetryLines
	s.status.ParseErrors = c.parseErrors
	s.status.ErrorCount = int(c.sendErrors + c.parseErrors)
	s.status.LastError = s.loop.lastError
	s.status.Timestamp = snapshot.Timestamp
	if snapshot.SessionEnded && s.running {
		s.status.Status = "session_ended"
	}
	return snapshot
}

// publishEvents guarda os eventos no histórico e notifica os handlers
func (s *Service) publishEvents() {
	events := s.loop.DrainEvents()
	if len(events) == 0 {
		return
	}

	s.mutex.Lock()
	s.history = append(s.history, events...)
	if over := len(s.history) - s.maxEvents; over > 0 {
		s.history = append([]models.RigEvent(nil), s.history[over:]...)
	}
	s.mutex.Unlock()

	s.handlersLock.RLock()
	handlers := s.eventHandlers
	s.handlersLock.RUnlock()

	for _, event := range events {
		for _, handler := range handlers {
			handler(event)
		}
	}
}

// TriggerBoost pede um boost manual ao loop e aguarda a resposta
func (s *Service) TriggerBoost(ctx context.Context, source string) (models.BoostResponse, error) {
	s.mutex.RLock()
	running, loopCtx := s.running, s.ctx
	s.mutex.RUnlock()
	if !running {
		return models.BoostResponse{}, ErrNotRunning
	}

	req := boostRequest{source: source, reply: make(chan models.BoostResponse, 1)}
	select {
	case s.boostRequests <- req:
	case <-ctx.Done():
		return models.BoostResponse{}, ctx.Err()
	case <-loopCtx.Done():
		return models.BoostResponse{}, ErrNotRunning
	}

	select {
	case resp := <-req.reply:
		return resp, nil
	case <-ctx.Done():
		return models.BoostResponse{}, ctx.Err()
	}
}

// GetSnapshot retorna o último snapshot
func (s *Service) GetSnapshot() models.RigSnapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.snapshot
}

// GetStatus retorna o status atual do serviço
func (s *Service) GetStatus() models.RigStatus {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.status
}

// GetEvents retorna os últimos eventos (limit <= 0 retorna todos)
func (s *Service) GetEvents(limit int) []models.RigEvent {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	events := s.history
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return append([]models.RigEvent(nil), events...)
}

// ChannelStats retorna os contadores do transporte, se disponíveis
func (s *Service) ChannelStats() []serial.ChannelStats {
	if p, ok := s.transport.(statsProvider); ok {
		return p.Stats()
	}
	return nil
}

// SessionID retorna o identificador da sessão atual
func (s *Service) SessionID() string {
	return s.loop.SessionID()
}
