package serial

import (
	"bufio"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"windrig/internal/config"
	"windrig/pkg/logger"
)

// Options contém os parâmetros do transporte
type Options struct {
	BaudRate       int
	QueueSize      int
	RetryDelay     time.Duration // pausa depois de um erro de leitura
	ReconnectDelay time.Duration // pausa entre tentativas de abertura
	Opener         Opener
}

func (o *Options) applyDefaults() {
	if o.BaudRate <= 0 {
		o.BaudRate = 115200
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 20 * time.Millisecond
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 2 * time.Second
	}
	if o.Opener == nil {
		o.Opener = DefaultOpener
	}
}

// Event é uma linha recebida de um canal
type Event struct {
	Channel  int       `json:"channel"`
	Name     string    `json:"name"`
	Line     string    `json:"line"`
	Received time.Time `json:"received"`
}

// ChannelStats são os contadores de um canal
type ChannelStats struct {
	Channel     int    `json:"channel"`
	Name        string `json:"name"`
	Device      string `json:"device"`
	Open        bool   `json:"open"`
	Received    uint64 `json:"received"`
	Dropped     uint64 `json:"dropped"`
	ReadErrors  uint64 `json:"readErrors"`
	WriteErrors uint64 `json:"writeErrors"`
	Written     uint64 `json:"written"`
}

type channel struct {
	index int
	cfg   PortConfig
	queue chan Event

	mutex sync.Mutex
	port  Port

	received    atomic.Uint64
	dropped     atomic.Uint64
	readErrors  atomic.Uint64
	writeErrors atomic.Uint64
	written     atomic.Uint64

	readLog *logger.Limiter
}

func (c *channel) getPort() Port {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.port
}

// Transport gerencia N canais seriais full-duplex.
// Write e Poll são chamados apenas pelo loop de controle.
type Transport struct {
	opts     Options
	channels []*channel

	running   atomic.Bool
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Open abre todas as portas e inicia uma goroutine de leitura por porta.
// Falha de abertura é registrada e a goroutine continua tentando; só a lista vazia é erro.
func Open(ports []PortConfig, opts Options) (*Transport, error) {
	if len(ports) == 0 {
		return nil, &config.ConfigError{Field: "serial", Reason: "nenhuma porta configurada"}
	}
	opts.applyDefaults()

	t := &Transport{
		opts:     opts,
		channels: make([]*channel, len(ports)),
		stop:     make(chan struct{}),
	}
	t.running.Store(true)

	for i, p := range ports {
		ch := &channel{
			index:   i,
			cfg:     p,
			queue:   make(chan Event, opts.QueueSize),
			readLog: logger.NewLimiter(5 * time.Second),
		}
		t.channels[i] = ch

		if err := t.openChannel(ch); err != nil {
			logger.Error("Erro ao abrir porta serial", err)
		}

		t.wg.Add(1)
		go t.readLoop(ch)
	}

	return t, nil
}

// openChannel abre a porta do canal; descarta a porta se o transporte já foi encerrado
func (t *Transport) openChannel(ch *channel) error {
	port, err := t.opts.Opener(ch.cfg.Device, t.opts.BaudRate)
	if err != nil {
		return &IOError{Channel: ch.index, Name: ch.cfg.Name, Op: "open", Err: err}
	}

	ch.mutex.Lock()
	defer ch.mutex.Unlock()
	if !t.running.Load() {
		port.Close()
		return &IOError{Channel: ch.index, Name: ch.cfg.Name, Op: "open", Err: ErrClosed}
	}
	ch.port = port
	logger.Infof("Porta %s aberta em %s (%d baud)", ch.cfg.Name, ch.cfg.Device, t.opts.BaudRate)
	return nil
}

// readLoop lê linhas do canal até o encerramento.
// Erros de leitura são registrados e a leitura é repetida; nunca afeta os outros canais.
func (t *Transport) readLoop(ch *channel) {
	defer t.wg.Done()

	var (
		reader     *bufio.Reader
		readerPort Port
	)

	for t.running.Load() {
		port := ch.getPort()
		if port == nil {
			if !t.sleep(t.opts.ReconnectDelay) {
				return
			}
			if err := t.openChannel(ch); err != nil {
				if ok, _ := ch.readLog.Allow(); ok {
					logger.Warnf("Nova tentativa de abertura falhou: %v", err)
				}
			}
			continue
		}

		if port != readerPort {
			reader = bufio.NewReader(port)
			readerPort = port
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if !t.running.Load() {
				return
			}
			ch.readErrors.Add(1)
			ch.readLog.Warnf("Erro de leitura na porta %s: %v", ch.cfg.Name, err)
			if !t.sleep(t.opts.RetryDelay) {
				return
			}
			continue
		}
		ch.readLog.Reset()

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		t.deliver(ch, line)
	}
}

// deliver coloca a linha na fila sem bloquear; com a fila cheia a linha nova é descartada
func (t *Transport) deliver(ch *channel, line string) {
	ev := Event{Channel: ch.index, Name: ch.cfg.Name, Line: line, Received: time.Now()}
	select {
	case ch.queue <- ev:
		ch.received.Add(1)
	default:
		if ch.dropped.Add(1) == 1 {
			logger.Warnf("Fila da porta %s cheia, descartando linhas", ch.cfg.Name)
		}
	}
}

// sleep espera d ou o encerramento. Retorna false se o transporte foi encerrado.
func (t *Transport) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-t.stop:
		return false
	case <-timer.C:
		return true
	}
}

// Write envia o payload sem terminador (fire-and-forget)
func (t *Transport) Write(channel int, payload string) error {
	if channel < 0 || channel >= len(t.channels) {
		return &IOError{Channel: channel, Name: "?", Op: "write", Err: ErrUnknownChannel}
	}
	ch := t.channels[channel]
	if !t.running.Load() {
		return &IOError{Channel: channel, Name: ch.cfg.Name, Op: "write", Err: ErrClosed}
	}

	port := ch.getPort()
	if port == nil {
		return &IOError{Channel: channel, Name: ch.cfg.Name, Op: "write", Err: ErrNotOpen}
	}

	if _, err := port.Write([]byte(payload)); err != nil {
		ch.writeErrors.Add(1)
		return &IOError{Channel: channel, Name: ch.cfg.Name, Op: "write", Err: err}
	}
	ch.written.Add(1)
	return nil
}

// Poll drena todas as filas sem bloquear. Cada chamada retorna o que chegou desde a anterior.
func (t *Transport) Poll() []Event {
	var events []Event
	for _, ch := range t.channels {
	drain:
		for {
			select {
			case ev := <-ch.queue:
				events = append(events, ev)
			default:
				break drain
			}
		}
	}
	return events
}

// Channels retorna o número de canais
func (t *Transport) Channels() int {
	return len(t.channels)
}

// Stats retorna os contadores de todos os canais
func (t *Transport) Stats() []ChannelStats {
	stats := make([]ChannelStats, len(t.channels))
	for i, ch := range t.channels {
		stats[i] = ChannelStats{
			Channel:     ch.index,
			Name:        ch.cfg.Name,
			Device:      ch.cfg.Device,
			Open:        ch.getPort() != nil,
			Received:    ch.received.Load(),
			Dropped:     ch.dropped.Load(),
			ReadErrors:  ch.readErrors.Load(),
			WriteErrors: ch.writeErrors.Load(),
			Written:     ch.written.Load(),
		}
	}
	return stats
}

// Close encerra o transporte: sinaliza, fecha as portas para destravar as leituras,
// aguarda as goroutines e descarta as portas. Pode ser chamado mais de uma vez.
func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		t.running.Store(false)
		close(t.stop)

		for _, ch := range t.channels {
			ch.mutex.Lock()
			if ch.port != nil {
				if err := ch.port.Close(); err != nil {
					logger.Warnf("Erro ao fechar porta %s: %v", ch.cfg.Name, err)
				}
			}
			ch.mutex.Unlock()
		}

		t.wg.Wait()

		for _, ch := range t.channels {
			ch.mutex.Lock()
			ch.port = nil
			ch.mutex.Unlock()
		}
		logger.Info("Transporte serial encerrado")
	})
}
