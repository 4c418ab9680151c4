package websocket

import (
	"encoding/json"
	"time"

	"windrig/internal/models"
)

// Tipos de mensagem enviados pelo servidor
const (
	TypeState   = "state"
	TypeEvent   = "event"
	TypeStatus  = "status"
	TypeBoost   = "boost"
	TypeWelcome = "welcome"
	TypePing    = "ping"
	TypePong    = "pong"
	TypeError   = "error"
)

func header(msgType string) models.WebSocketMessage {
	return models.WebSocketMessage{Type: msgType, Timestamp: time.Now()}
}

// NewStateMessage cria uma mensagem com o snapshot do loop
func NewStateMessage(snapshot models.RigSnapshot) *models.StateMessage {
	return &models.StateMessage{WebSocketMessage: header(TypeState), State: snapshot}
}

// NewEventMessage cria uma mensagem de evento
func NewEventMessage(event models.RigEvent) *models.EventMessage {
	return &models.EventMessage{WebSocketMessage: header(TypeEvent), Event: event}
}

// NewStatusMessage cria uma nova mensagem de status
func NewStatusMessage(status models.RigStatus) *models.StatusMessage {
	return &models.StatusMessage{WebSocketMessage: header(TypeStatus), Status: status}
}

// NewBoostMessage cria a resposta a um pedido de boost
func NewBoostMessage(result models.BoostResponse) *models.BoostMessage {
	return &models.BoostMessage{WebSocketMessage: header(TypeBoost), Result: result}
}

// NewErrorMessage cria uma nova mensagem de erro
func NewErrorMessage(message string, errorCode string) models.WebSocketMessage {
	msg := header(TypeError)
	msg.Error = message
	msg.Data = map[string]string{"code": errorCode}
	return msg
}

// SerializeMessage serializa uma mensagem para JSON
func SerializeMessage(message interface{}) ([]byte, error) {
	return json.Marshal(message)
}

// ParseClientCommand analisa um comando recebido do cliente
func ParseClientCommand(data []byte) (models.CommandMessage, error) {
	var command models.CommandMessage
	err := json.Unmarshal(data, &command)
	return command, err
}

// CreatePongResponse cria uma resposta para um ping do cliente
func CreatePongResponse(pingTime int64) *models.PongMessage {
	return &models.PongMessage{
		WebSocketMessage: header(TypePong),
		Time:             pingTime,
		ServerTime:       time.Now().UnixNano() / int64(time.Millisecond),
	}
}

// pingTime extrai params.time de um comando
func pingTime(params interface{}) int64 {
	if m, ok := params.(map[string]interface{}); ok {
		if v, ok := m["time"].(float64); ok {
			return int64(v)
		}
	}
	return 0
}
