package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"windrig/internal/config"
	"windrig/internal/models"
	"windrig/pkg/logger"
)

// ErrUnavailable indica Redis desabilitado ou desconectado
var ErrUnavailable = errors.New("Redis não conectado ou desabilitado")

// Service persiste snapshots, eventos e status do equipamento no Redis
type Service struct {
	client    *redis.Client
	ctx       context.Context
	cancel    context.CancelFunc
	prefix    string
	config    config.RedisConfig
	connected bool
	mutex     sync.RWMutex

	lastWrite  time.Time
	writeEvery time.Duration
	maxHistory int64
	asyncWrite bool
}

// NewService cria um novo serviço Redis. Falha de conexão não é erro: o serviço fica offline.
func NewService(cfg config.RedisConfig) (*Service, error) {
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = 1000
	}

	ctx, cancel := context.WithCancel(context.Background())
	service := &Service{
		ctx:        ctx,
		cancel:     cancel,
		prefix:     cfg.Prefix,
		config:     cfg,
		writeEvery: cfg.WriteEvery.Duration,
		maxHistory: maxHistory,
		asyncWrite: true,
	}

	if !cfg.Enabled {
		logger.Info("Serviço Redis desabilitado por configuração")
		return service, nil
	}

	// Configurar endereço
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	service.client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Testar conexão
	if err := service.TestConnection(); err != nil {
		logger.Warnf("Aviso: %v. O Redis será utilizado em modo offline.", err)
		return service, nil
	}

	return service, nil
}

// TestConnection testa a conexão com o Redis
func (s *Service) TestConnection() error {
	if !s.config.Enabled || s.client == nil {
		return fmt.Errorf("serviço Redis desabilitado")
	}

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	result, err := s.client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("erro ao conectar ao Redis: %w", err)
	}

	logger.Infof("Conexão com o Redis estabelecida. Resposta: %s", result)
	s.mutex.Lock()
	s.connected = true
	s.mutex.Unlock()
	return nil
}

// IsConnected verifica se o serviço está conectado
func (s *Service) IsConnected() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.connected && s.config.Enabled
}

// SetAsyncWrite configura a escrita assíncrona dos handlers
func (s *Service) SetAsyncWrite(async bool) {
	s.asyncWrite = async
}

// key formata uma chave com o prefixo configurado
func (s *Service) key(parts ...interface{}) string {
	k := s.prefix
	for _, p := range parts {
		k += fmt.Sprintf(":%v", p)
	}
	return k
}

// markOffline registra a falha de escrita
func (s *Service) markOffline(err error) {
	s.mutex.Lock()
	s.connected = false
	s.mutex.Unlock()
	logger.Warnf("Redis offline: %v", err)
}

// HandleSnapshot recebe snapshots do loop e grava no máximo um a cada writeEvery
func (s *Service) HandleSnapshot(snapshot models.RigSnapshot) {
	if !s.IsConnected() {
		return
	}

	s.mutex.Lock()
	if s.writeEvery > 0 && !s.lastWrite.IsZero() && snapshot.Timestamp.Sub(s.lastWrite) < s.writeEvery {
		s.mutex.Unlock()
		return
	}
	s.lastWrite = snapshot.Timestamp
	s.mutex.Unlock()

	write := func() {
		if err := s.WriteSnapshot(snapshot); err != nil {
			logger.Errorf("Erro ao escrever snapshot no Redis: %v", err)
		}
	}
	if s.asyncWrite {
		go write()
		return
	}
	write()
}

// HandleEvent grava cada evento do loop
func (s *Service) HandleEvent(event models.RigEvent) {
	if !s.IsConnected() {
		return
	}
	write := func() {
		if err := s.WriteEvent(event); err != nil {
			logger.Errorf("Erro ao escrever evento no Redis: %v", err)
		}
	}
	if s.asyncWrite {
		go write()
		return
	}
	write()
}

// WriteSnapshot escreve o estado atual e o histórico de altitude
func (s *Service) WriteSnapshot(snapshot models.RigSnapshot) error {
	if !s.IsConnected() {
		return nil
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("erro ao serializar snapshot: %w", err)
	}

	// Criar uma pipeline para enviar vários comandos de uma vez
	pipe := s.client.Pipeline()
	timestamp := snapshot.Timestamp.UnixNano() / int64(time.Millisecond)

	pipe.Set(s.ctx, s.key("state"), string(data), 0)
	pipe.Set(s.ctx, s.key("wind"), snapshot.Wind, 0)
	pipe.Set(s.ctx, s.key("phase"), snapshot.Phase, 0)
	pipe.Set(s.ctx, s.key("altitude"), snapshot.Altitude, 0)
	pipe.Set(s.ctx, s.key("timestamp"), timestamp, 0)

	// Histórico de altitude; o tick torna cada membro único
	point, _ := json.Marshal(models.HistoryPoint{Value: snapshot.Altitude, Tick: snapshot.Tick, Timestamp: snapshot.Timestamp})
	histKey := s.key("altitude", "history")
	pipe.ZAdd(s.ctx, histKey, &redis.Z{Score: float64(timestamp), Member: string(point)})
	pipe.ZRemRangeByRank(s.ctx, histKey, 0, -(s.maxHistory + 1))

	if _, err := pipe.Exec(s.ctx); err != nil {
		s.markOffline(err)
		return fmt.Errorf("erro ao escrever snapshot no Redis: %w", err)
	}
	return nil
}

// WriteEvent adiciona o evento à lista global e incrementa o contador do tipo
func (s *Service) WriteEvent(event models.RigEvent) error {
	if !s.IsConnected() {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("erro ao serializar evento: %w", err)
	}

	pipe := s.client.Pipeline()
	score := float64(event.Timestamp.UnixNano() / int64(time.Millisecond))

	eventsKey := s.key("events")
	pipe.ZAdd(s.ctx, eventsKey, &redis.Z{Score: score, Member: string(data)})
	pipe.ZRemRangeByRank(s.ctx, eventsKey, 0, -(s.maxHistory + 1))
	pipe.Incr(s.ctx, s.key("events", event.Type, "count"))
	pipe.Set(s.ctx, s.key("latest_event"), string(data), 0)

	if event.Type == models.EventMatchFinalized {
		if verdict, ok := event.Data["verdict"].(bool); ok && verdict {
			pipe.Incr(s.ctx, s.key("session", event.SessionID, "matches"))
		}
	}

	if _, err := pipe.Exec(s.ctx); err != nil {
		s.markOffline(err)
		return fmt.Errorf("erro ao escrever evento no Redis: %w", err)
	}

	logger.Debugf("Evento %s registrado no Redis", event.Type)
	return nil
}

// WriteStatus escreve o status do serviço no Redis
func (s *Service) WriteStatus(status models.RigStatus) error {
	if !s.IsConnected() {
		return nil
	}

	pipe := s.client.Pipeline()
	pipe.Set(s.ctx, s.key("status"), status.Status, 0)
	pipe.Set(s.ctx, s.key("session"), status.SessionID, 0)
	if status.LastError != "" {
		pipe.Set(s.ctx, s.key("ultimo_erro"), status.LastError, 0)
	}

	if _, err := pipe.Exec(s.ctx); err != nil {
		s.markOffline(err)
		return fmt.Errorf("erro ao escrever status no Redis: %w", err)
	}
	return nil
}

// GetSnapshot obtém o último snapshot gravado
func (s *Service) GetSnapshot() (*models.RigSnapshot, error) {
	if !s.IsConnected() {
		return nil, ErrUnavailable
	}

	data, err := s.client.Get(s.ctx, s.key("state")).Result()
	if err != nil {
		return nil, fmt.Errorf("erro ao obter estado: %w", err)
	}

	var snapshot models.RigSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("estado inválido no Redis: %w", err)
	}
	return &snapshot, nil
}

// GetEvents obtém os eventos mais recentes, do mais novo para o mais antigo
func (s *Service) GetEvents(limit int64) ([]models.RigEvent, error) {
	if !s.IsConnected() {
		return nil, ErrUnavailable
	}
	if limit <= 0 {
		limit = 50
	}

	members, err := s.client.ZRevRange(s.ctx, s.key("events"), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("erro ao obter eventos: %w", err)
	}

	events := make([]models.RigEvent, 0, len(members))
	for _, m := range members {
		var event models.RigEvent
		if err := json.Unmarshal([]byte(m), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// GetAltitudeHistory obtém o histórico de altitude em ordem cronológica
func (s *Service) GetAltitudeHistory() ([]models.HistoryPoint, error) {
	if !s.IsConnected() {
		return nil, ErrUnavailable
	}

	members, err := s.client.ZRange(s.ctx, s.key("altitude", "history"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("erro ao obter histórico de altitude: %w", err)
	}

	history := make([]models.HistoryPoint, 0, len(members))
	for _, m := range members {
		var point models.HistoryPoint
		if err := json.Unmarshal([]byte(m), &point); err != nil {
			continue
		}
		history = append(history, point)
	}
	return history, nil
}

// Shutdown encerra graciosamente o serviço Redis
func (s *Service) Shutdown() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.cancel()

	if s.client != nil {
		if err := s.client.Close(); err != nil {
			logger.Errorf("Erro ao fechar conexão com Redis: %v", err)
		} else {
			logger.Info("Conexão com o Redis fechada")
		}
	}

	s.connected = false
}
