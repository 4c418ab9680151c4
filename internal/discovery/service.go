// Package discovery anuncia o servidor de controle na rede local via mDNS.
package discovery

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/grandcat/zeroconf"

	"windrig/internal/config"
	"windrig/pkg/logger"
)

// Version é publicada no TXT do anúncio
const Version = "1.0"

// DiscoveryService gerencia o anúncio do serviço na rede local
type DiscoveryService struct {
	server       *zeroconf.Server
	config       config.DiscoveryConfig
	mutex        sync.Mutex
	instanceName string
	port         int
	running      bool
	serverIP     string
	sessionID    string
}

// NewDiscoveryService cria um novo serviço de descoberta
func NewDiscoveryService(cfg config.DiscoveryConfig, port int, sessionID string) *DiscoveryService {
	return &DiscoveryService{
		config:       cfg,
		port:         port,
		instanceName: InstanceName(cfg.Instance),
		sessionID:    sessionID,
	}
}

// InstanceName acrescenta o hostname ao nome configurado, evitando colisão entre equipamentos
func InstanceName(base string) string {
	if base == "" {
		base = "windrig"
	}
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return base
	}
	return fmt.Sprintf("%s-%s", base, hostname)
}

// TXTRecords monta os metadados publicados no anúncio
func (s *DiscoveryService) TXTRecords(ip string) []string {
	return []string{
		"version=" + Version,
		"ip=" + ip,
		"name=Wind Rig Control",
		"session=" + s.sessionID,
		"ws=/ws",
		"api=/api",
	}
}

// Start registra o serviço no mDNS
func (s *DiscoveryService) Start() error {
	if !s.config.Enabled {
		logger.Info("Descoberta mDNS desabilitada por configuração")
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return nil
	}

	ip, err := localIP()
	if err != nil {
		return fmt.Errorf("erro ao obter IP local: %w", err)
	}
	s.serverIP = ip

	server, err := zeroconf.Register(
		s.instanceName,
		s.config.Service,
		s.config.Domain,
		s.port,
		s.TXTRecords(ip),
		nil, // todas as interfaces
	)
	if err != nil {
		return fmt.Errorf("erro ao registrar serviço de descoberta: %w", err)
	}

	s.server = server
	s.running = true

	logger.Infof("Serviço de descoberta iniciado em %s:%d (mDNS: %s.%s%s)",
		ip, s.port, s.instanceName, s.config.Service, s.config.Domain)
	return nil
}

// Stop remove o anúncio
func (s *DiscoveryService) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.running {
		return
	}

	if s.server != nil {
		s.server.Shutdown()
		s.server = nil
	}
	s.running = false

	logger.Info("Serviço de descoberta parado")
}

// GetServerIP retorna o IP anunciado
func (s *DiscoveryService) GetServerIP() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.serverIP
}

// GetInstanceName retorna o nome da instância do serviço
func (s *DiscoveryService) GetInstanceName() string {
	return s.instanceName
}

// IsRunning verifica se o serviço está em execução
func (s *DiscoveryService) IsRunning() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.running
}

// localIP retorna o primeiro IPv4 que não seja loopback
func localIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}

	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String(), nil
			}
		}
	}

	return "", fmt.Errorf("não foi possível determinar o endereço IP local")
}
