package models

import (
	"time"

	"windrig/internal/geom"
)

// RigSnapshot é a fotografia do loop de controle publicada a cada tick
type RigSnapshot struct {
	Tick           uint64    `json:"tick"`
	SessionID      string    `json:"sessionId"`
	Timestamp      time.Time `json:"timestamp"`
	Wind           int       `json:"wind"`
	WindName       string    `json:"windName"`
	PreviousWind   int       `json:"previousWind"`
	CycleTimer     float64   `json:"cycleTimer"` // segundos
	Similarity     float64   `json:"similarity"`
	MatchState     string    `json:"matchState"`
	JudgeTimer     float64   `json:"judgeTimer"` // segundos
	Finalized      bool      `json:"finalized"`
	Verdict        bool      `json:"verdict"`
	Phase          string    `json:"phase"`
	Locked         bool      `json:"locked"`
	Finished       bool      `json:"finished"`
	Boosting       bool      `json:"boosting"`
	Altitude       float64   `json:"altitude"`
	Position       geom.Vec3 `json:"position"`
	Velocity       geom.Vec3 `json:"velocity"`
	Tilt           geom.Vec3 `json:"tilt"`
	Button         string    `json:"button,omitempty"`
	Commands       []string  `json:"commands,omitempty"` // últimos comandos enviados, na ordem dos canais
	SessionElapsed float64   `json:"sessionElapsed"`     // segundos
	SessionEnded   bool      `json:"sessionEnded"`
}

// EventType identifica o tipo de RigEvent
type EventType string

const (
	EventWindChanged    EventType = "wind_changed"
	EventMatchFinalized EventType = "match_finalized"
	EventPhaseChanged   EventType = "phase_changed"
	EventBoost          EventType = "boost"
	EventSessionEnd     EventType = "session_end"
)

// RigEvent é um evento discreto do loop (para UI, animação e histórico)
type RigEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Tick      uint64                 `json:"tick"`
	SessionID string                 `json:"sessionId"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// RigStatus representa o status atual do serviço
type RigStatus struct {
	Status         string    `json:"status"` // "starting", "running", "session_ended", "stopped"
	SessionID      string    `json:"sessionId"`
	Timestamp      time.Time `json:"timestamp"`
	StartedAt      time.Time `json:"startedAt,omitempty"`
	Ticks          uint64    `json:"ticks"`
	Sends          uint64    `json:"sends"`
	SendErrors     uint64    `json:"sendErrors"`
	TelemetryLines uint64    `json:"telemetryLines"`
	ParseErrors    uint64    `json:"parseErrors"`
	LastError      string    `json:"lastError,omitempty"`
	ErrorCount     int       `json:"errorCount,omitempty"`
}

// BoostRequest é o pedido manual de boost (HTTP ou WebSocket)
type BoostRequest struct {
	Source string `json:"source,omitempty"`
}

// BoostResponse informa se o pedido foi aceito pelo loop
type BoostResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// HistoryPoint representa um ponto de histórico de altitude
type HistoryPoint struct {
	Value     float64   `json:"value"`
	Tick      uint64    `json:"tick"`
	Timestamp time.Time `json:"timestamp"`
}
