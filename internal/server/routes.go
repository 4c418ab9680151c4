package server

import (
	"encoding/json"
	"net/http"
	"time"

	"windrig/internal/api"
	"windrig/internal/websocket"
)

// setupRoutes configura todas as rotas do servidor
func (s *Server) setupRoutes() {
	wsHandler := websocket.NewHandler(s.wsHub)

	// O router da API já aplica os middlewares
	apiRouter := api.NewRouter(s.rigService, s.redisService, "/api")
	apiRouter.Setup()

	// /ws fica fora: o wrapper de log não implementa http.Hijacker
	wrap := api.Chain(api.LoggingMiddleware, api.RecoveryMiddleware, api.CorsMiddleware)

	s.router.Handle("/health", wrap(http.HandlerFunc(s.healthHandler)))
	s.router.Handle("/info", wrap(http.HandlerFunc(s.infoHandler)))
	s.router.Handle("/api/discover", wrap(http.HandlerFunc(s.discoverHandler)))

	s.router.Handle("/ws", wsHandler)
	s.router.Handle("/ws/health", wrap(wsHandler.GetHealthHandler()))

	s.router.Handle("/api/", apiRouter.Handler())

	// Painel estático (opcional)
	s.router.Handle("/", wrap(http.FileServer(http.Dir("./static"))))
}

// healthHandler responde com o status de saúde do servidor
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	rigStatus := "ok"
	if s.rigService != nil && !s.rigService.IsRunning() {
		rigStatus = "offline"
	} else if s.rigService != nil && s.rigService.GetSnapshot().SessionEnded {
		rigStatus = "session_ended"
	}

	serialStatus := "ok"
	openPorts := 0
	if s.transport != nil {
		stats := s.transport.Stats()
		for _, st := range stats {
			if st.Open {
				openPorts++
			}
		}
		if openPorts < len(stats) {
			serialStatus = "degraded"
		}
	}

	plcStatus := "disabled"
	if s.config.PLC.Enabled {
		if s.plcService != nil && s.plcService.IsRunning() {
			plcStatus = "ok"
		} else {
			plcStatus = "offline"
		}
	}

	redisStatus := "disabled"
	if s.config.Redis.Enabled {
		redisStatus = "ok"
		if !s.redisService.IsConnected() {
			redisStatus = "offline"
		}
	}

	discoveryStatus := "disabled"
	if s.config.Discovery.Enabled {
		discoveryStatus = "ok"
		if !s.discoveryService.IsRunning() {
			discoveryStatus = "offline"
		}
	}

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"openPorts": openPorts,
		"services": map[string]string{
			"rig":       rigStatus,
			"serial":    serialStatus,
			"redis":     redisStatus,
			"plc":       plcStatus,
			"websocket": "ok",
			"discovery": discoveryStatus,
		},
	}

	// Loop parado ou portas faltando afetam diretamente o equipamento
	if rigStatus == "offline" || serialStatus != "ok" {
		response["status"] = "degraded"
	}

	json.NewEncoder(w).Encode(response)
}

// infoHandler retorna informações sobre o servidor e a sessão
func (s *Server) infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	info := s.GetServerInfo()
	uptime := time.Since(info.StartTime).Round(time.Second)

	response := map[string]interface{}{
		"name":        "Wind Rig Control",
		"version":     info.Version,
		"ip":          info.IP,
		"port":        info.Port,
		"websocket":   info.WebSocketURL,
		"api":         info.APIURL,
		"startTime":   info.StartTime,
		"uptime":      uptime.String(),
		"connections": info.Connections,
		"sessionId":   s.rigService.SessionID(),
		"control": map[string]interface{}{
			"windMode":      s.config.Control.WindMode,
			"tickInterval":  s.config.Control.TickInterval.String(),
			"sendInterval":  s.config.Control.SendInterval.String(),
			"sessionLength": s.config.Control.SessionLength.String(),
		},
		"discovery": map[string]interface{}{
			"enabled":      s.config.Discovery.Enabled,
			"running":      s.discoveryService.IsRunning(),
			"instanceName": s.discoveryService.GetInstanceName(),
			"serviceType":  s.config.Discovery.Service,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// discoverHandler fornece informações para descoberta manual
func (s *Server) discoverHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	info := s.GetServerInfo()

	response := map[string]interface{}{
		"name":        "Wind Rig Control",
		"ip":          info.IP,
		"port":        info.Port,
		"wsUrl":       info.WebSocketURL,
		"apiUrl":      info.APIURL,
		"version":     info.Version,
		"wsEndpoint":  "/ws",
		"apiEndpoint": "/api",
	}

	json.NewEncoder(w).Encode(response)
}
