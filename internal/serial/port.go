// Package serial gerencia as portas seriais do equipamento: uma goroutine de leitura
// por porta e uma fila limitada por canal, drenada sem bloqueio pelo loop de controle.
package serial

import (
	"errors"
	"fmt"
	"io"

	bugserial "go.bug.st/serial"
)

// Port é uma porta serial aberta
type Port interface {
	io.ReadWriteCloser
}

// Opener abre o dispositivo na taxa indicada
type Opener func(device string, baud int) (Port, error)

// DefaultOpener abre a porta com go.bug.st/serial em 8N1
func DefaultOpener(device string, baud int) (Port, error) {
	mode := &bugserial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   bugserial.NoParity,
		StopBits: bugserial.OneStopBit,
	}
	port, err := bugserial.Open(device, mode)
	if err != nil {
		return nil, err
	}
	// Descarta lixo acumulado no buffer durante o boot do ESP32
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}

// ListDevices retorna os dispositivos seriais presentes no sistema
func ListDevices() ([]string, error) {
	return bugserial.GetPortsList()
}

// PortConfig associa um nome de canal ao dispositivo
type PortConfig struct {
	Name   string
	Device string
}

// Erros base envolvidos em IOError
var (
	ErrUnknownChannel = errors.New("canal inexistente")
	ErrNotOpen        = errors.New("porta não aberta")
	ErrClosed         = errors.New("transporte encerrado")
)

// IOError é uma falha de abertura, leitura ou escrita num canal. Nunca é fatal.
type IOError struct {
	Channel int
	Name    string
	Op      string
	Err     error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("serial %s (canal %d) %s: %v", e.Name, e.Channel, e.Op, e.Err)
}

// Unwrap permite errors.Is/As sobre a causa
func (e *IOError) Unwrap() error {
	return e.Err
}
