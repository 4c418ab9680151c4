package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"windrig/internal/config"
	"windrig/internal/discovery"
	"windrig/internal/models"
	"windrig/internal/plc"
	"windrig/internal/redis"
	"windrig/internal/rig"
	"windrig/internal/serial"
	"windrig/internal/websocket"
	"windrig/pkg/logger"
)

// Version é a versão publicada em /info
const Version = "1.0.0"

// Server encapsula o servidor HTTP com todos os componentes
type Server struct {
	config           *config.Config
	httpServer       *http.Server
	router           *http.ServeMux
	transport        *serial.Transport
	rigService       *rig.Service
	redisService     *redis.Service
	plcService       *plc.PLCService
	wsHub            *websocket.Hub
	discoveryService *discovery.DiscoveryService
	serverInfo       ServerInfo

	opener serial.Opener // nil usa o go.bug.st/serial
}

// newRedisService é substituído nos testes
var newRedisService = redis.NewService

// ServerInfo contém informações sobre o servidor
type ServerInfo struct {
	IP           string
	Port         int
	StartTime    time.Time
	Connections  int
	Version      string
	WebSocketURL string
	APIURL       string
}

// NewServer cria uma nova instância do servidor
func NewServer(cfg *config.Config) (*Server, error) {
	server := &Server{
		config: cfg,
		router: http.NewServeMux(),
		serverInfo: ServerInfo{
			StartTime: time.Now(),
			Version:   Version,
			Port:      cfg.Server.Port,
		},
	}

	ip := localIP()
	server.serverInfo.IP = ip
	server.serverInfo.WebSocketURL = fmt.Sprintf("ws://%s:%d/ws", ip, cfg.Server.Port)
	server.serverInfo.APIURL = fmt.Sprintf("http://%s:%d/api", ip, cfg.Server.Port)

	if err := server.initComponents(); err != nil {
		return nil, err
	}

	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  120 * time.Second,
	}

	return server, nil
}

// serialPorts converte a configuração para a lista do transporte, na ordem dos canais
func serialPorts(cfg config.SerialConfig) []serial.PortConfig {
	entries := cfg.Ports()
	ports := make([]serial.PortConfig, len(entries))
	for i, e := range entries {
		ports[i] = serial.PortConfig{Name: e.Name, Device: e.Device}
	}
	return ports
}

// initComponents inicializa todos os componentes do servidor
func (s *Server) initComponents() error {
	transport, err := serial.Open(serialPorts(s.config.Serial), serial.Options{
		BaudRate:       s.config.Serial.BaudRate,
		QueueSize:      s.config.Serial.QueueSize,
		RetryDelay:     s.config.Serial.RetryDelay.Duration,
		ReconnectDelay: s.config.Serial.ReconnectDelay.Duration,
		Opener:         s.opener,
	})
	if err != nil {
		return fmt.Errorf("erro ao abrir portas seriais: %w", err)
	}
	s.transport = transport

	rigService, err := rig.NewService(s.config.Control, transport)
	if err != nil {
		transport.Close()
		return fmt.Errorf("erro ao inicializar loop de controle: %w", err)
	}
	s.rigService = rigService

	s.wsHub = websocket.NewHub(rigService)
	go s.wsHub.Run()

	// Redis desconectado não é fatal: o serviço fica offline
	redisService, err := newRedisService(s.config.Redis)
	if err != nil {
		s.wsHub.Shutdown()
		transport.Close()
		return fmt.Errorf("erro ao inicializar serviço Redis: %w", err)
	}
	s.redisService = redisService

	s.rigService.RegisterStateHandler(s.wsHub.BroadcastState)
	s.rigService.RegisterEventHandler(s.wsHub.BroadcastEvent)
	s.rigService.RegisterStateHandler(s.redisService.HandleSnapshot)
	s.rigService.RegisterEventHandler(s.redisService.HandleEvent)
	s.rigService.RegisterEventHandler(s.onSessionEnd)

	if s.config.PLC.Enabled {
		s.plcService = plc.NewPLCService(s.config.PLC)
		s.rigService.RegisterStateHandler(s.plcService.HandleSnapshot)
	}

	s.discoveryService = discovery.NewDiscoveryService(s.config.Discovery, s.config.Server.Port, rigService.SessionID())

	return nil
}

// onSessionEnd publica o status final quando o cronômetro da sessão expira
func (s *Server) onSessionEnd(event models.RigEvent) {
	if event.Type != models.EventSessionEnd {
		return
	}
	logger.Infof("Sessão %s encerrada após %v", event.SessionID, s.config.Control.SessionLength.Duration)
	// chamado na goroutine do loop: a escrita no Redis não pode bloquear
	go s.publishStatus()
}

// Start inicia o servidor e todos os serviços
func (s *Server) Start() error {
	if err := s.discoveryService.Start(); err != nil {
		logger.Warnf("Erro ao iniciar serviço de descoberta: %v", err)
	}

	if err := s.rigService.Start(); err != nil {
		return fmt.Errorf("erro ao iniciar loop de controle: %w", err)
	}
	s.publishStatus()

	if s.plcService != nil {
		if err := s.plcService.Start(); err != nil {
			logger.Errorf("Erro ao iniciar serviço PLC: %v", err)
		}
	}

	s.logServerInfo()

	logger.Infof("Iniciando servidor HTTP na porta %d", s.config.Server.Port)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("erro ao iniciar servidor HTTP: %w", err)
	}

	return nil
}

// publishStatus envia o status atual para os clientes e o Redis
func (s *Server) publishStatus() {
	status := s.rigService.GetStatus()
	s.wsHub.BroadcastStatus(status)
	if err := s.redisService.WriteStatus(status); err != nil {
		logger.Warnf("Erro ao gravar status no Redis: %v", err)
	}
}

// Shutdown encerra o servidor. O loop para antes do transporte fechar, assim nenhum envio encontra porta fechada.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Iniciando shutdown do servidor")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("Erro ao encerrar servidor HTTP: %v", err)
	}

	if s.discoveryService != nil {
		s.discoveryService.Stop()
	}

	if s.rigService != nil {
		s.rigService.Stop()
		s.publishStatus()
	}

	if s.transport != nil {
		s.transport.Close()
	}

	if s.plcService != nil {
		s.plcService.Shutdown()
	}

	if s.wsHub != nil {
		s.wsHub.Shutdown()
	}

	if s.redisService != nil {
		s.redisService.Shutdown()
	}

	logger.Info("Shutdown completo")
	return nil
}

// localIP obtém o endereço IP local
func localIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "localhost"
	}

	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}

	return "localhost"
}

// GetServerInfo retorna informações sobre o servidor
func (s *Server) GetServerInfo() ServerInfo {
	info := s.serverInfo
	info.Connections = s.wsHub.ClientCount()
	return info
}

// logServerInfo exibe informações do servidor no log
func (s *Server) logServerInfo() {
	logger.Info("===============================================")
	logger.Info("          Wind Rig Control Server              ")
	logger.Info("===============================================")
	logger.Infof("Versão: %s", s.serverInfo.Version)
	logger.Infof("Sessão: %s", s.rigService.SessionID())
	logger.Infof("Modo de vento: %s", s.config.Control.WindMode)
	logger.Infof("Endereço IP: %s", s.serverInfo.IP)
	logger.Infof("Porta HTTP: %d", s.serverInfo.Port)
	logger.Infof("WebSocket URL: %s", s.serverInfo.WebSocketURL)
	logger.Infof("API URL: %s", s.serverInfo.APIURL)
	for _, p := range s.config.Serial.Ports() {
		logger.Infof("Porta %s: %s", p.Name, p.Device)
	}
	if s.config.Discovery.Enabled {
		logger.Infof("mDNS: %s.%s%s",
			s.discoveryService.GetInstanceName(), s.config.Discovery.Service, s.config.Discovery.Domain)
	}
	logger.Info("===============================================")
	logger.Info("Servidor pronto para conexões!")
}
