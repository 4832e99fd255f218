package handler

import (
	"context"
	"net/http"

	"inkdown-client/internal/cache"
	"inkdown-client/internal/middleware"
	"inkdown-client/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type WebSocketHandler struct {
	manager  *websocket.Manager
	upgrader ws.Upgrader
	logger   zerolog.Logger
}

func NewWebSocketHandler(manager *websocket.Manager, readBuffer, writeBuffer int, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		upgrader: ws.Upgrader{
			ReadBufferSize:  readBuffer,
			WriteBufferSize: writeBuffer,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.With().Str("component", "ws_handler").Logger(),
	}
}

// HandleConnection upgrades an authenticated request and attaches the
// client to the event stream.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := websocket.NewClient(uuid.New().String(), sessionID, conn, h.manager)
	if !h.manager.Join(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()

	welcome, err := websocket.NewMessage(websocket.TypeWelcome, websocket.WelcomePayload{ClientID: client.ID})
	if err == nil {
		h.manager.SendToClient(client, welcome)
	}
}

// WebSocketMessageHandler answers requests sent by connected clients.
type WebSocketMessageHandler struct {
	manager *websocket.Manager
	notes   *cache.NoteCache
	tags    *cache.TagCache
}

func NewWebSocketMessageHandler(manager *websocket.Manager, notes *cache.NoteCache, tags *cache.TagCache) *WebSocketMessageHandler {
	return &WebSocketMessageHandler{
		manager: manager,
		notes:   notes,
		tags:    tags,
	}
}

func (h *WebSocketMessageHandler) HandleWebSocketMessage(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	switch msg.Type {
	case websocket.TypePing:
		return h.handlePing(client)

	case websocket.TypeReload:
		return h.handleReload(ctx, client, msg)

	default:
		return h.ack(client, msg.Type, "unsupported message type: "+string(msg.Type))
	}
}

func (h *WebSocketMessageHandler) handlePing(client *websocket.Client) error {
	pong, err := websocket.NewMessage(websocket.TypePong, nil)
	if err != nil {
		return err
	}
	return h.manager.SendToClient(client, pong)
}

// handleReload refreshes both caches off the manager loop so slow backends
// do not stall other clients.
func (h *WebSocketMessageHandler) handleReload(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	var payload websocket.ReloadPayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		return h.ack(client, msg.Type, "invalid reload payload")
	}

	go func() {
		ctx := context.WithoutCancel(ctx)
		h.tags.LoadAll(ctx)
		h.notes.LoadAll(ctx, payload.IncludeTrash)
		message := h.notes.ErrMessage()
		if message == "" {
			message = h.tags.ErrMessage()
		}
		h.ack(client, websocket.TypeReload, message)
	}()
	return nil
}

func (h *WebSocketMessageHandler) ack(client *websocket.Client, msgType websocket.MessageType, errMessage string) error {
	ack, err := websocket.NewMessage(websocket.TypeAck, websocket.AckPayload{
		Type:    msgType,
		Success: errMessage == "",
		Error:   errMessage,
	})
	if err != nil {
		return err
	}
	return h.manager.SendToClient(client, ack)
}
