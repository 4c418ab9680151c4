package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"windrig/internal/models"
	"windrig/internal/rig"
	"windrig/internal/serial"
	"windrig/pkg/logger"
)

// RigController expõe o serviço de controle para a API
type RigController interface {
	GetStatus() models.RigStatus
	GetSnapshot() models.RigSnapshot
	GetEvents(limit int) []models.RigEvent
	ChannelStats() []serial.ChannelStats
	TriggerBoost(ctx context.Context, source string) (models.BoostResponse, error)
}

// HistoryStore fornece o histórico persistido (Redis)
type HistoryStore interface {
	IsConnected() bool
	GetAltitudeHistory() ([]models.HistoryPoint, error)
}

const maxEventsLimit = 1000

// Handler contém os handlers HTTP para a API
type Handler struct {
	rig   RigController
	store HistoryStore
}

// NewHandler cria um novo handler de API. store pode ser nil.
func NewHandler(rigService RigController, store HistoryStore) *Handler {
	return &Handler{
		rig:   rigService,
		store: store,
	}
}

// GetStatus retorna o status do loop de controle
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondWithError(w, http.StatusMethodNotAllowed, "Método não permitido")
		return
	}

	status := h.rig.GetStatus()

	response := map[string]interface{}{
		"status":         status.Status,
		"sessionId":      status.SessionID,
		"timestamp":      status.Timestamp.UnixNano() / int64(time.Millisecond),
		"ticks":          status.Ticks,
		"sends":          status.Sends,
		"sendErrors":     status.SendErrors,
		"telemetryLines": status.TelemetryLines,
		"parseErrors":    status.ParseErrors,
	}
	if !status.StartedAt.IsZero() {
		response["startedAt"] = status.StartedAt.UnixNano() / int64(time.Millisecond)
	}
	if status.LastError != "" {
		response["lastError"] = status.LastError
	}
	if status.ErrorCount > 0 {
		response["errorCount"] = status.ErrorCount
	}

	h.respondWithJSON(w, http.StatusOK, response)
}

// GetState retorna o último snapshot do loop
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondWithError(w, http.StatusMethodNotAllowed, "Método não permitido")
		return
	}

	h.respondWithJSON(w, http.StatusOK, h.rig.GetSnapshot())
}

// GetEvents retorna os eventos recentes; ?limit=N
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondWithError(w, http.StatusMethodNotAllowed, "Método não permitido")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxEventsLimit {
			h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("limit inválido. Deve ser entre 1 e %d.", maxEventsLimit))
			return
		}
		limit = n
	}

	events := h.rig.GetEvents(limit)
	if events == nil {
		events = []models.RigEvent{}
	}
	h.respondWithJSON(w, http.StatusOK, events)
}

// GetChannels retorna os contadores de cada canal serial
func (h *Handler) GetChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondWithError(w, http.StatusMethodNotAllowed, "Método não permitido")
		return
	}

	stats := h.rig.ChannelStats()
	if stats == nil {
		stats = []serial.ChannelStats{}
	}
	h.respondWithJSON(w, http.StatusOK, stats)
}

// GetAltitudeHistory retorna o histórico de altitude gravado no Redis
func (h *Handler) GetAltitudeHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondWithError(w, http.StatusMethodNotAllowed, "Método não permitido")
		return
	}

	if h.store == nil || !h.store.IsConnected() {
		h.respondWithError(w, http.StatusServiceUnavailable, "Histórico indisponível: Redis desconectado")
		return
	}

	history, err := h.store.GetAltitudeHistory()
	if err != nil {
		logger.Errorf("Erro ao obter histórico de altitude: %v", err)
		h.respondWithError(w, http.StatusInternalServerError, "Erro ao obter histórico")
		return
	}
	if history == nil {
		history = []models.HistoryPoint{}
	}
	h.respondWithJSON(w, http.StatusOK, history)
}

// PostBoost pede um boost manual
func (h *Handler) PostBoost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondWithError(w, http.StatusMethodNotAllowed, "Método não permitido")
		return
	}

	var req models.BoostRequest
	if r.Body != nil {
		// Corpo vazio é aceito
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			h.respondWithError(w, http.StatusBadRequest, "Corpo inválido")
			return
		}
	}
	if req.Source == "" {
		req.Source = "api"
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp, err := h.rig.TriggerBoost(ctx, req.Source)
	switch {
	case errors.Is(err, rig.ErrNotRunning):
		h.respondWithError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		h.respondWithError(w, http.StatusGatewayTimeout, err.Error())
		return
	}

	code := http.StatusOK
	if !resp.Accepted {
		code = http.StatusConflict
	}
	h.respondWithJSON(w, code, resp)
}

// respondWithError responde com erro em formato JSON
func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON responde com JSON
func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorf("Erro ao codificar resposta JSON: %v", err)
		fmt.Fprintf(w, `{"error":"Erro interno ao processar resposta"}`)
	}
}
