// Package protocol traduz o estado do jogo nos códigos de tampa e ventilador enviados ao hardware.
package protocol

import (
	"fmt"
	"strconv"

	"windrig/internal/wind"
)

// Channel identifica um canal de saída do equipamento
type Channel int

const (
	LeftFront Channel = iota
	RightFront
	RightBack
	LeftBack
	NeckFan
)

// LidCount é o número de atuadores de tampa (cantos)
const LidCount = 4

// ChannelCount é o número de canais de saída
const ChannelCount = 5

var channelNames = [...]string{"LF", "RF", "RB", "LB", "NF"}

// String implementa fmt.Stringer
func (c Channel) String() string {
	if c < LeftFront || c > NeckFan {
		return "?"
	}
	return channelNames[c]
}

// Códigos das tampas inferiores
const (
	UnderClosed = 1
	UnderOpen   = 3
)

// Códigos das tampas superiores
const (
	AboveOpen   = 4
	AboveClosed = 6
)

// Caracteres de boost
const (
	BoostOn  byte = 'a'
	BoostOff byte = 'b'
)

// underTable define quais cantos (LF, RF, RB, LB) ficam com a tampa inferior aberta por direção.
// Tabela fixa de roteamento do equipamento.
var underTable = [...][LidCount]int{
	wind.Up:        {3, 3, 3, 3},
	wind.North:     {3, 3, 1, 1},
	wind.NorthEast: {1, 3, 1, 1},
	wind.East:      {1, 3, 3, 1},
	wind.SouthEast: {1, 1, 3, 1},
	wind.South:     {1, 1, 3, 3},
	wind.SouthWest: {1, 1, 1, 3},
	wind.West:      {3, 1, 1, 3},
	wind.NorthWest: {3, 1, 1, 1},
}

// State é a entrada do codificador, montada a cada envio
type State struct {
	Wind      wind.Direction
	Locked    bool // sinal de subida ativo
	Finished  bool // término da subida liberado
	Ascending bool
	Verdict   bool // veredito travado do ciclo
}

// LidCommand é o comando de um atuador de tampa
type LidCommand struct {
	Above int  `json:"above"`
	Under int  `json:"under"`
	Boost byte `json:"boost"`
}

// String serializa no formato "{above}{under}{boost}"
func (c LidCommand) String() string {
	return strconv.Itoa(c.Above) + strconv.Itoa(c.Under) + string(c.Boost)
}

// FanCommand é o comando do ventilador de pescoço
type FanCommand struct {
	Wind  wind.Direction `json:"wind"`
	Boost byte           `json:"boost"`
}

// String serializa no formato "{windIndex}{boost}"
func (c FanCommand) String() string {
	return strconv.Itoa(int(c.Wind)) + string(c.Boost)
}

// Frame reúne os comandos de um envio
type Frame struct {
	Lids [LidCount]LidCommand `json:"lids"`
	Fan  FanCommand           `json:"fan"`
}

// Payloads retorna as cinco strings na ordem dos canais, sem terminador
func (f Frame) Payloads() [ChannelCount]string {
	var out [ChannelCount]string
	for i, l := range f.Lids {
		out[i] = l.String()
	}
	out[NeckFan] = f.Fan.String()
	return out
}

// UnderCodes retorna os códigos das tampas inferiores para a direção
func UnderCodes(d wind.Direction) [LidCount]int {
	if !d.Valid() {
		return underTable[wind.Up]
	}
	return underTable[d]
}

// Encode calcula os comandos de todos os canais
func Encode(s State) Frame {
	under := UnderCodes(s.Wind)

	boost := BoostOff
	if s.Ascending {
		boost = BoostOn
	}

	var frame Frame
	for i := 0; i < LidCount; i++ {
		frame.Lids[i] = LidCommand{
			Above: aboveCode(s, under[i]),
			Under: under[i],
			Boost: boost,
		}
	}
	frame.Fan = FanCommand{Wind: s.Wind, Boost: boost}
	return frame
}

func aboveCode(s State, under int) int {
	switch {
	case s.Locked && !s.Finished:
		return AboveClosed
	case s.Locked && s.Finished:
		return AboveOpen
	case under == UnderOpen && s.Verdict:
		// alinhamento confirmado fecha as tampas de cima dos cantos abertos embaixo
		return AboveClosed
	default:
		return AboveOpen
	}
}

// Decode interpreta um comando de tampa "{above}{under}{boost}"
func Decode(cmd string) (LidCommand, error) {
	if len(cmd) != 3 {
		return LidCommand{}, fmt.Errorf("comando de tampa deve ter 3 caracteres: %q", cmd)
	}

	above := int(cmd[0] - '0')
	if above != AboveOpen && above != AboveClosed {
		return LidCommand{}, fmt.Errorf("código superior inválido em %q", cmd)
	}
	under := int(cmd[1] - '0')
	if under != UnderOpen && under != UnderClosed {
		return LidCommand{}, fmt.Errorf("código inferior inválido em %q", cmd)
	}
	if cmd[2] != BoostOn && cmd[2] != BoostOff {
		return LidCommand{}, fmt.Errorf("caractere de boost inválido em %q", cmd)
	}

	return LidCommand{Above: above, Under: under, Boost: cmd[2]}, nil
}

// DecodeFan interpreta um comando de ventilador "{windIndex}{boost}"
func DecodeFan(cmd string) (FanCommand, error) {
	if len(cmd) != 2 {
		return FanCommand{}, fmt.Errorf("comando de ventilador deve ter 2 caracteres: %q", cmd)
	}
	d := wind.Direction(cmd[0] - '0')
	if cmd[0] < '0' || !d.Valid() {
		return FanCommand{}, fmt.Errorf("índice de vento inválido em %q", cmd)
	}
	if cmd[1] != BoostOn && cmd[1] != BoostOff {
		return FanCommand{}, fmt.Errorf("caractere de boost inválido em %q", cmd)
	}
	return FanCommand{Wind: d, Boost: cmd[1]}, nil
}
