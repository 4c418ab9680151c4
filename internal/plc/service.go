package plc

import (
	"context"
	"sync"
	"time"

	"windrig/internal/ascent"
	"windrig/internal/config"
	"windrig/internal/models"
	"windrig/internal/protocol"
	"windrig/pkg/logger"
)

// Layout do DB espelhado no PLC. INT = 2 bytes, REAL/DINT = 4 bytes.
const (
	OffsetWind     = 0  // INT índice do vento atual
	OffsetPhase    = 2  // INT fase de subida
	OffsetFlags    = 4  // INT bits de estado (Flag*)
	OffsetUnder    = 6  // 4 x INT código inferior por tampa (LF, RF, RB, LB)
	OffsetAbove    = 14 // 4 x INT código superior por tampa
	OffsetBoost    = 22 // INT 1 durante boost
	OffsetAltitude = 24 // REAL altitude
	OffsetTick     = 28 // DINT tick do loop, serve de heartbeat

	RecordSize = 32
)

// Bits de OffsetFlags
const (
	FlagVerdict = 1 << iota
	FlagLocked
	FlagFinished
	FlagBoosting
	FlagSessionEnded
)

// blockWriter é a parte do cliente S7 usada pelo serviço
type blockWriter interface {
	Connect() error
	Disconnect()
	WriteDataBlock(dbNumber int, startOffset int, data []byte) error
}

// PLCService espelha o estado do simulador num DB do PLC
type PLCService struct {
	client  blockWriter
	config  config.PLCConfig
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	errLog  *logger.Limiter
	updates chan models.RigSnapshot

	last    *models.RigSnapshot
	writes  uint64
	mutex   sync.RWMutex
	running bool
}

// NewPLCService cria um novo serviço de PLC
func NewPLCService(cfg config.PLCConfig) *PLCService {
	return newPLCService(cfg, NewS7Client(cfg))
}

func newPLCService(cfg config.PLCConfig, client blockWriter) *PLCService {
	ctx, cancel := context.WithCancel(context.Background())
	return &PLCService{
		client:  client,
		config:  cfg,
		ctx:     ctx,
		cancel:  cancel,
		errLog:  logger.NewLimiter(10 * time.Second),
		updates: make(chan models.RigSnapshot, 10),
	}
}

// Start inicia o serviço. Falha na primeira conexão não impede o início: cada escrita tenta reconectar.
func (s *PLCService) Start() error {
	if !s.config.Enabled {
		logger.Info("Serviço PLC desabilitado por configuração")
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return nil
	}

	if err := s.client.Connect(); err != nil {
		logger.Warnf("PLC indisponível, tentando novamente a cada escrita: %v", err)
	}

	s.running = true
	s.wg.Add(1)
	go s.runUpdateLoop()

	logger.Infof("Serviço PLC iniciado (DB%d, a cada %v)", s.config.DBNumber, s.config.UpdateRate.Duration)
	return nil
}

// Stop para o serviço de comunicação com o PLC
func (s *PLCService) Stop() {
	s.mutex.Lock()
	if !s.running {
		s.mutex.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mutex.Unlock()

	s.wg.Wait()
	s.client.Disconnect()
	logger.Info("Serviço PLC parado")
}

// IsRunning verifica se o serviço está em execução
func (s *PLCService) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.running
}

// Writes retorna quantos registros foram escritos com sucesso
func (s *PLCService) Writes() uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.writes
}

// HandleSnapshot recebe snapshots do loop de controle sem bloquear
func (s *PLCService) HandleSnapshot(snapshot models.RigSnapshot) {
	if !s.IsRunning() {
		return
	}

	select {
	case s.updates <- snapshot:
	default:
		// canal cheio: o loop de atualização já tem um snapshot recente
	}
}

// runUpdateLoop guarda o snapshot mais recente e escreve no ritmo configurado
func (s *PLCService) runUpdateLoop() {
	defer s.wg.Done()

	rate := s.config.UpdateRate.Duration
	if rate <= 0 {
		rate = 500 * time.Millisecond
	}
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	var pending *models.RigSnapshot
	for {
		select {
		case <-s.ctx.Done():
			return

		case snapshot := <-s.updates:
			pending = &snapshot

		case <-ticker.C:
			if pending == nil {
				continue
			}
			if err := s.write(*pending); err != nil {
				s.errLog.Warnf("Falha ao escrever no PLC: %v", err)
				continue
			}
			s.errLog.Reset()
			pending = nil
		}
	}
}

// write envia o registro inteiro numa única escrita
func (s *PLCService) write(snapshot models.RigSnapshot) error {
	record := EncodeRecord(snapshot)
	if err := s.client.WriteDataBlock(s.config.DBNumber, 0, record); err != nil {
		return err
	}

	s.mutex.Lock()
	s.last = &snapshot
	s.writes++
	s.mutex.Unlock()
	return nil
}

// EncodeRecord monta o registro do DB a partir de um snapshot
func EncodeRecord(snapshot models.RigSnapshot) []byte {
	buf := make([]byte, RecordSize)

	putInt(buf, OffsetWind, int16(snapshot.Wind))

	phase, _ := ascent.ParsePhase(snapshot.Phase)
	putInt(buf, OffsetPhase, int16(phase))

	var flags int16
	if snapshot.Verdict {
		flags |= FlagVerdict
	}
	if snapshot.Locked {
		flags |= FlagLocked
	}
	if snapshot.Finished {
		flags |= FlagFinished
	}
	if snapshot.Boosting {
		flags |= FlagBoosting
	}
	if snapshot.SessionEnded {
		flags |= FlagSessionEnded
	}
	putInt(buf, OffsetFlags, flags)

	// Antes do primeiro envio não há comandos; os códigos ficam em zero
	boost := false
	for i := 0; i < protocol.LidCount && i < len(snapshot.Commands); i++ {
		lid, err := protocol.Decode(snapshot.Commands[i])
		if err != nil {
			continue
		}
		putInt(buf, OffsetUnder+2*i, int16(lid.Under))
		putInt(buf, OffsetAbove+2*i, int16(lid.Above))
		boost = boost || lid.Boost == protocol.BoostOn
	}
	if boost {
		putInt(buf, OffsetBoost, 1)
	}

	putReal(buf, OffsetAltitude, float32(snapshot.Altitude))
	putDInt(buf, OffsetTick, int32(snapshot.Tick))
	return buf
}

// Shutdown encerra graciosamente o serviço
func (s *PLCService) Shutdown() {
	s.Stop()
}

// LastWritten retorna o último snapshot escrito com sucesso
func (s *PLCService) LastWritten() (models.RigSnapshot, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.last == nil {
		return models.RigSnapshot{}, false
	}
	return *s.last, true
}
