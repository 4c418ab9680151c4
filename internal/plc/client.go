package plc

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/robinson/gos7"

	"windrig/internal/config"
	"windrig/pkg/logger"
)

// S7Client encapsula a comunicação com o PLC S7 que espelha o estado do simulador
type S7Client struct {
	client       gos7.Client
	handler      *gos7.TCPClientHandler
	config       config.PLCConfig
	connected    bool
	lastError    error
	connectMutex sync.Mutex
}

// NewS7Client cria um novo cliente para PLC S7
func NewS7Client(cfg config.PLCConfig) *S7Client {
	return &S7Client{config: cfg}
}

// Connect estabelece conexão com o PLC
func (c *S7Client) Connect() error {
	c.connectMutex.Lock()
	defer c.connectMutex.Unlock()
	return c.connectLocked()
}

func (c *S7Client) connectLocked() error {
	if c.connected {
		return nil
	}

	if c.handler != nil {
		c.handler.Close()
	}

	handler := gos7.NewTCPClientHandler(c.config.Host, c.config.Rack, c.config.Slot)
	handler.Timeout = c.config.Timeout.Duration
	handler.IdleTimeout = 70 * time.Second

	if err := handler.Connect(); err != nil {
		c.lastError = fmt.Errorf("erro ao conectar ao PLC %s: %w", c.config.Host, err)
		return c.lastError
	}

	c.handler = handler
	c.client = gos7.NewClient(handler)
	c.connected = true
	logger.Infof("Conectado ao PLC em %s (Rack: %d, Slot: %d)",
		c.config.Host, c.config.Rack, c.config.Slot)

	return nil
}

// Disconnect fecha a conexão com o PLC
func (c *S7Client) Disconnect() {
	c.connectMutex.Lock()
	defer c.connectMutex.Unlock()

	if c.handler != nil {
		c.handler.Close()
		c.handler = nil
		c.client = nil
		logger.Info("Desconectado do PLC")
	}
	c.connected = false
}

// IsConnected verifica se o cliente está conectado
func (c *S7Client) IsConnected() bool {
	c.connectMutex.Lock()
	defer c.connectMutex.Unlock()
	return c.connected
}

// WriteDataBlock escreve data em DB<dbNumber> a partir de startOffset, reconectando se preciso
func (c *S7Client) WriteDataBlock(dbNumber int, startOffset int, data []byte) error {
	c.connectMutex.Lock()
	defer c.connectMutex.Unlock()

	if err := c.connectLocked(); err != nil {
		return err
	}

	if err := c.client.AGWriteDB(dbNumber, startOffset, len(data), data); err != nil {
		c.connected = false
		c.lastError = fmt.Errorf("erro ao escrever DB%d: %w", dbNumber, err)
		return c.lastError
	}
	return nil
}

// ReadDataBlock lê size bytes de DB<dbNumber>
func (c *S7Client) ReadDataBlock(dbNumber int, startOffset int, size int) ([]byte, error) {
	c.connectMutex.Lock()
	defer c.connectMutex.Unlock()

	if err := c.connectLocked(); err != nil {
		return nil, err
	}

	buffer := make([]byte, size)
	if err := c.client.AGReadDB(dbNumber, startOffset, size, buffer); err != nil {
		c.connected = false
		c.lastError = fmt.Errorf("erro ao ler DB%d: %w", dbNumber, err)
		return nil, c.lastError
	}
	return buffer, nil
}

// GetLastError retorna o último erro ocorrido
func (c *S7Client) GetLastError() error {
	c.connectMutex.Lock()
	defer c.connectMutex.Unlock()
	return c.lastError
}

// putInt grava um INT S7 (big-endian, 16 bits)
func putInt(buf []byte, offset int, value int16) {
	binary.BigEndian.PutUint16(buf[offset:], uint16(value))
}

// putReal grava um REAL S7 (IEEE 754, big-endian)
func putReal(buf []byte, offset int, value float32) {
	binary.BigEndian.PutUint32(buf[offset:], math.Float32bits(value))
}

// putDInt grava um DINT S7
func putDInt(buf []byte, offset int, value int32) {
	binary.BigEndian.PutUint32(buf[offset:], uint32(value))
}
