package websocket

import (
	"context"
	"sync"
	"time"

	"inkdown-client/internal/bus"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

type ClientMessage struct {
	Client  *Client
	Message []byte
}

// Manager fans bus events out to connected UI clients and routes their
// requests to a MessageHandler.
type Manager struct {
	clients        map[string]*Client
	clientsMutex   sync.RWMutex
	Unregister     chan *Client
	HandleMessage  chan *ClientMessage
	done           chan struct{}
	maxClients     int
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	maxMessageSize int64
	messageHandler MessageHandler
	logger         zerolog.Logger
}

type MessageHandler interface {
	HandleWebSocketMessage(ctx context.Context, client *Client, msg *Message) error
}

type Options struct {
	MaxClients     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

func NewManager(opts Options, logger zerolog.Logger) *Manager {
	return &Manager{
		clients:        make(map[string]*Client),
		Unregister:     make(chan *Client),
		HandleMessage:  make(chan *ClientMessage),
		done:           make(chan struct{}),
		maxClients:     opts.MaxClients,
		writeWait:      opts.WriteWait,
		pongWait:       opts.PongWait,
		pingPeriod:     opts.PingPeriod,
		maxMessageSize: opts.MaxMessageSize,
		logger:         logger.With().Str("component", "websocket").Logger(),
	}
}

func (m *Manager) SetMessageHandler(handler MessageHandler) {
	m.messageHandler = handler
}

// Run serves unregistrations and client messages until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(m.done)
			m.closeAll()
			return

		case client := <-m.Unregister:
			m.unregisterClient(client)

		case clientMsg := <-m.HandleMessage:
			m.processMessage(ctx, clientMsg)
		}
	}
}

// OnEvent is the bus subscriber that forwards every event to the clients.
func (m *Manager) OnEvent(ctx context.Context, ev bus.Event) error {
	msg, err := EventMessage(ev)
	if err != nil {
		return err
	}
	return m.Broadcast(msg)
}

func (m *Manager) registerClient(client *Client) bool {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	select {
	case <-m.done:
		return false
	default:
	}

	if m.maxClients > 0 && len(m.clients) >= m.maxClients {
		m.logger.Warn().Str("client_id", client.ID).Int("max", m.maxClients).Msg("max connections reached")
		return false
	}

	m.clients[client.ID] = client
	m.logger.Info().Str("client_id", client.ID).Str("session", client.SessionID).Msg("client registered")
	return true
}

func (m *Manager) unregisterClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if _, ok := m.clients[client.ID]; ok {
		delete(m.clients, client.ID)
		close(client.Send)
		m.logger.Info().Str("client_id", client.ID).Msg("client unregistered")
	}
}

func (m *Manager) closeAll() {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	for id, client := range m.clients {
		delete(m.clients, id)
		close(client.Send)
	}
}

func (m *Manager) processMessage(ctx context.Context, clientMsg *ClientMessage) {
	var msg Message
	if err := json.Unmarshal(clientMsg.Message, &msg); err != nil {
		m.logger.Warn().Err(err).Str("client_id", clientMsg.Client.ID).Msg("error unmarshaling message")
		return
	}

	if m.messageHandler != nil {
		if err := m.messageHandler.HandleWebSocketMessage(ctx, clientMsg.Client, &msg); err != nil {
			m.logger.Warn().Err(err).Str("type", string(msg.Type)).Msg("error handling message")
		}
	}
}

// Broadcast queues message on every client. Clients whose buffer is full
// are dropped.
func (m *Manager) Broadcast(message *Message) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	var slow []*Client

	m.clientsMutex.RLock()
	for id, client := range m.clients {
		select {
		case client.Send <- messageBytes:
		default:
			m.logger.Warn().Str("client_id", id).Msg("send buffer full, closing connection")
			slow = append(slow, client)
		}
	}
	m.clientsMutex.RUnlock()

	for _, client := range slow {
		go m.leave(client)
	}
	return nil
}

// Join registers client before returning. It reports false when the
// manager has stopped or is full.
func (m *Manager) Join(client *Client) bool {
	return m.registerClient(client)
}

// leave unregisters client unless the manager has already stopped.
func (m *Manager) leave(client *Client) {
	select {
	case m.Unregister <- client:
	case <-m.done:
	}
}

func (m *Manager) SendToClient(client *Client, message *Message) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	if _, ok := m.clients[client.ID]; !ok {
		return nil
	}

	select {
	case client.Send <- messageBytes:
	default:
		m.logger.Warn().Str("client_id", client.ID).Msg("send buffer full")
	}
	return nil
}

func (m *Manager) Connections() int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()
	return len(m.clients)
}
