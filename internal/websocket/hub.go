package websocket

import (
	"context"
	"sync"
	"time"

	"windrig/internal/models"
	"windrig/pkg/logger"
)

// Controller é a parte do serviço de controle que os clientes podem consultar ou acionar
type Controller interface {
	GetStatus() models.RigStatus
	GetSnapshot() models.RigSnapshot
	TriggerBoost(ctx context.Context, source string) (models.BoostResponse, error)
}

// Hub gerencia todas as conexões WebSocket e distribuição de mensagens
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	// Comando recebido dos clientes
	commands chan models.ClientCommand

	mu sync.RWMutex

	controller Controller

	// Último tick enviado, evita repetir snapshots idênticos
	lastTick  uint64
	stateLock sync.Mutex

	stats struct {
		totalMessages      int64
		totalClients       int64
		droppedMessages    int64
		messagesPerSecond  float64
		lastStatsReset     time.Time
		messagesSinceReset int64
	}
	statsLock sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub cria uma nova instância do Hub
func NewHub(controller Controller) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		commands:   make(chan models.ClientCommand, 100),
		controller: controller,
		ctx:        ctx,
		cancel:     cancel,
	}

	h.stats.lastStatsReset = time.Now()

	return h
}

// Run inicia o loop principal do hub para gerenciar clientes e mensagens
func (h *Hub) Run() {
	logger.Info("Iniciando WebSocket Hub")

	statsTicker := time.NewTicker(30 * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			logger.Info("Encerrando WebSocket Hub")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()

			logger.Infof("Novo cliente WebSocket conectado. ID: %s (%s). Total: %d", client.id, client.ipAddress, clientCount)

			h.statsLock.Lock()
			h.stats.totalClients++
			h.statsLock.Unlock()

			h.sendInitialDataToClient(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)

				logger.Infof("Cliente WebSocket desconectado. ID: %s. Total: %d", client.id, len(h.clients))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.statsLock.Lock()
			h.stats.totalMessages++
			h.stats.messagesSinceReset++
			h.statsLock.Unlock()

			h.mu.RLock()
			deadClients := make([]*Client, 0, 4)
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Canal do cliente está cheio, marcar para desconexão
					deadClients = append(deadClients, client)
				}
			}
			h.mu.RUnlock()

			for _, client := range deadClients {
				h.removeClient(client)
			}

		case cmd := <-h.commands:
			go h.handleClientCommand(cmd)

		case <-statsTicker.C:
			h.statsLock.Lock()
			elapsed := time.Since(h.stats.lastStatsReset).Seconds()
			if elapsed > 0 {
				h.stats.messagesPerSecond = float64(h.stats.messagesSinceReset) / elapsed
			}
			h.stats.messagesSinceReset = 0
			h.stats.lastStatsReset = time.Now()
			mps := h.stats.messagesPerSecond
			total := h.stats.totalMessages
			dropped := h.stats.droppedMessages
			h.statsLock.Unlock()

			logger.Debugf("Estatísticas WebSocket: %d clientes, %.2f msgs/seg, total: %d, descartadas: %d",
				h.ClientCount(), mps, total, dropped)
		}
	}
}

// removeClient desconecta um cliente lento
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		logger.Warnf("Cliente WebSocket %s removido: buffer cheio", client.id)
	}
}

// enqueue entrega a mensagem ao loop do hub sem bloquear quem publica
func (h *Hub) enqueue(message interface{}, what string) {
	data, err := SerializeMessage(message)
	if err != nil {
		logger.Error("Erro ao serializar mensagem de "+what, err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.statsLock.Lock()
		h.stats.droppedMessages++
		h.statsLock.Unlock()
	}
}

// BroadcastState envia o snapshot para todos os clientes; snapshots do mesmo tick são ignorados
func (h *Hub) BroadcastState(snapshot models.RigSnapshot) {
	h.stateLock.Lock()
	if snapshot.Tick != 0 && snapshot.Tick == h.lastTick {
		h.stateLock.Unlock()
		return
	}
	h.lastTick = snapshot.Tick
	h.stateLock.Unlock()

	if h.ClientCount() == 0 {
		return
	}
	h.enqueue(NewStateMessage(snapshot), "estado")
}

// BroadcastEvent envia um evento do loop para todos os clientes
func (h *Hub) BroadcastEvent(event models.RigEvent) {
	h.enqueue(NewEventMessage(event), "evento")
}

// BroadcastStatus envia atualização de status para todos os clientes
func (h *Hub) BroadcastStatus(status models.RigStatus) {
	h.enqueue(NewStatusMessage(status), "status")
}

// handleClientCommand processa comandos recebidos dos clientes
func (h *Hub) handleClientCommand(cmd models.ClientCommand) {
	logger.Debugf("Comando recebido do cliente %s: %s", cmd.ClientID, cmd.Command)

	client := h.getClientByID(cmd.ClientID)
	if client == nil {
		return
	}

	if h.controller == nil && cmd.Command != "ping" {
		h.sendTo(client, NewErrorMessage("Controle indisponível", "unavailable"))
		return
	}

	switch cmd.Command {
	case "ping":
		h.sendTo(client, CreatePongResponse(pingTime(cmd.Params)))
	case "get_status":
		h.sendTo(client, NewStatusMessage(h.controller.GetStatus()))
	case "get_state":
		h.sendTo(client, NewStateMessage(h.controller.GetSnapshot()))
	case "boost":
		ctx, cancel := context.WithTimeout(h.ctx, 2*time.Second)
		defer cancel()

		result, err := h.controller.TriggerBoost(ctx, "websocket:"+client.id)
		if err != nil {
			h.sendTo(client, NewErrorMessage(err.Error(), "boost_failed"))
			return
		}
		h.sendTo(client, NewBoostMessage(result))
	default:
		logger.Warnf("Comando desconhecido: %s", cmd.Command)
		h.sendTo(client, NewErrorMessage("Comando desconhecido: "+cmd.Command, "unknown_command"))
	}
}

// sendTo envia uma mensagem apenas para um cliente, se ele ainda estiver registrado
func (h *Hub) sendTo(client *Client, message interface{}) {
	data, err := SerializeMessage(message)
	if err != nil {
		logger.Error("Erro ao serializar mensagem", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// sendInitialDataToClient envia boas-vindas e o estado atual a um novo cliente
func (h *Hub) sendInitialDataToClient(client *Client) {
	welcome := header(TypeWelcome)
	welcome.Data = map[string]interface{}{
		"message":  "Conectado ao controle do simulador de vento",
		"clientId": client.id,
	}
	h.sendTo(client, welcome)

	if h.controller != nil {
		h.sendTo(client, NewStatusMessage(h.controller.GetStatus()))
		h.sendTo(client, NewStateMessage(h.controller.GetSnapshot()))
	}
}

// Shutdown encerra o hub
func (h *Hub) Shutdown() {
	h.cancel()
}

// closeAllClients fecha todas as conexões dos clientes
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	logger.Info("Fechando todas as conexões de clientes WebSocket")
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// ClientCount retorna o número atual de clientes conectados
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages retorna quantas mensagens foram descartadas com a fila cheia
func (h *Hub) DroppedMessages() int64 {
	h.statsLock.Lock()
	defer h.statsLock.Unlock()
	return h.stats.droppedMessages
}

// getClientByID retorna um cliente pelo seu ID
func (h *Hub) getClientByID(clientID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.id == clientID {
			return client
		}
	}
	return nil
}
