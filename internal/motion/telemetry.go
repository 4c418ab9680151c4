// Package motion interpreta a telemetria do sensor do guarda-chuva e suaviza a rotação.
package motion

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// telemetryFields é o número exato de campos de uma linha "x,y,z,botão"
const telemetryFields = 4

// RawSample é uma amostra bruta do sensor, já truncada para inteiros
type RawSample struct {
	X      int  `json:"x"`
	Y      int  `json:"y"`
	Z      int  `json:"z"`
	Button rune `json:"button"`
}

// ParseError indica uma linha de telemetria malformada. A linha é descartada.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("telemetria inválida %q: %s", e.Line, e.Reason)
}

// ParseTelemetry decodifica uma linha "{x},{y},{z},{botão}"
func ParseTelemetry(line string) (RawSample, error) {
	trimmed := strings.TrimSpace(line)
	fields := strings.Split(trimmed, ",")
	if len(fields) != telemetryFields {
		return RawSample{}, &ParseError{Line: line, Reason: fmt.Sprintf("esperados %d campos, recebidos %d", telemetryFields, len(fields))}
	}

	var axes [3]int
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return RawSample{}, &ParseError{Line: line, Reason: fmt.Sprintf("campo %d não numérico", i+1)}
		}
		// Truncamento em direção a zero
		axes[i] = int(f)
	}

	button := strings.TrimSpace(fields[3])
	if utf8.RuneCountInString(button) != 1 {
		return RawSample{}, &ParseError{Line: line, Reason: "botão deve ter exatamente um caractere"}
	}
	r, _ := utf8.DecodeRuneInString(button)

	return RawSample{X: axes[0], Y: axes[1], Z: axes[2], Button: r}, nil
}
