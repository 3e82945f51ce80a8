package websocket

import (
	"context"
	"log"

	"github.com/vntrieu/voidthreat/internal/games"
	"github.com/vntrieu/voidthreat/internal/ratelimit"
)

// MoveEngine applies moves and renders per-player state.
type MoveEngine interface {
	ApplyMove(ctx context.Context, gameID string, playerID string, moveType string, payload map[string]interface{}) games.ApplyMoveResult
	StateForPlayer(ctx context.Context, gameID, viewerID string) (map[string]interface{}, error)
}

// EventHandler turns client messages into engine moves and publishes the results.
type EventHandler struct {
	hub         *Hub
	engine      MoveEngine
	rateLimiter ratelimit.Limiter
}

// NewEventHandler creates a new EventHandler. rateLimiter is optional; when
// set, moves are rate-limited by the client's key.
func NewEventHandler(hub *Hub, engine MoveEngine, rateLimiter ratelimit.Limiter) *EventHandler {
	return &EventHandler{
		hub:         hub,
		engine:      engine,
		rateLimiter: rateLimiter,
	}
}

// HandleMessage processes an incoming message (vote, action, sync_state).
// Rejects unknown or invalid message types with an error envelope.
func (h *EventHandler) HandleMessage(ctx context.Context, client *Client, msg *ClientInMessage) {
	if msg == nil {
		sendErrorToClient(client, "", "invalid message")
		return
	}
	if len(msg.Type) > MaxClientMessageTypeLength {
		sendErrorToClient(client, msg.CorrelationID, "invalid message type")
		return
	}
	if !ValidClientMessageTypes[msg.Type] {
		sendErrorToClient(client, msg.CorrelationID, "unsupported message type")
		return
	}
	switch msg.Type {
	case ClientMessageTypeSyncState:
		h.sendState(ctx, client, msg.CorrelationID)
	case ClientMessageTypeVote, ClientMessageTypeAction:
		h.handleMove(ctx, client, msg)
	}
}

// sendState sends the client's view of the game to that client only.
func (h *EventHandler) sendState(ctx context.Context, client *Client, correlationID string) {
	if h.engine == nil {
		sendErrorToClient(client, correlationID, "sync_state not available")
		return
	}
	view, err := h.engine.StateForPlayer(ctx, client.GameID, client.PlayerID)
	if err != nil {
		log.Printf("sync_state failed game_id=%s player_id=%s err=%v", client.GameID, client.PlayerID, err)
		sendErrorToClient(client, correlationID, "failed to load state")
		return
	}
	sendEnvelopeToClient(client, &ServerEnvelope{
		Type:          ServerTypeState,
		Event:         ServerEventState,
		CorrelationID: correlationID,
		Payload:       map[string]interface{}{"game_id": client.GameID, "state": view},
	})
}

// handleMove applies a vote or action for the client's player.
func (h *EventHandler) handleMove(ctx context.Context, client *Client, msg *ClientInMessage) {
	if h.engine == nil {
		sendErrorToClient(client, msg.CorrelationID, msg.Type+" not available")
		return
	}
	if h.rateLimiter != nil && client.RateLimitKey != "" {
		if allowed, _ := h.rateLimiter.Allow(client.RateLimitKey); !allowed {
			sendErrorToClient(client, msg.CorrelationID, "rate limit exceeded; try again later")
			return
		}
	}
	payload := games.DecodePayload(msg.Payload)
	if payload == nil {
		payload = make(map[string]interface{})
	}
	result := h.engine.ApplyMove(ctx, client.GameID, client.PlayerID, msg.Type, payload)
	if result.Error != nil {
		if !games.IsClientError(result.Error) {
			log.Printf("move failed game_id=%s player_id=%s type=%s err=%v", client.GameID, client.PlayerID, msg.Type, result.Error)
		}
		sendErrorToClient(client, msg.CorrelationID, result.Error.Error())
		return
	}
	h.Publish(client.GameID, result)
}

// Publish sends result events to the game's clients, private events to
// their recipient only, followed by each client's view of the new state.
func (h *EventHandler) Publish(gameID string, result games.ApplyMoveResult) {
	if h.hub == nil {
		return
	}
	for _, ev := range result.Events {
		envelope := &ServerEnvelope{Type: ServerTypeEvent, Event: ev.Event, Payload: ev.Payload}
		if ev.Recipient != "" {
			h.hub.SendToPlayer(gameID, ev.Recipient, envelope)
			continue
		}
		h.hub.Broadcast(gameID, envelope)
	}
	if result.State == nil {
		return
	}
	state := result.State
	h.hub.BroadcastView(gameID, func(c *Client) *ServerEnvelope {
		return &ServerEnvelope{
			Type:    ServerTypeState,
			Event:   ServerEventState,
			Payload: map[string]interface{}{"game_id": gameID, "state": state.PublicView(c.PlayerID)},
		}
	})
}

func sendErrorToClient(client *Client, correlationID, message string) {
	sendEnvelopeToClient(client, &ServerEnvelope{
		Type:          ServerTypeError,
		CorrelationID: correlationID,
		Payload:       map[string]interface{}{"message": message},
	})
}

func sendEnvelopeToClient(client *Client, envelope *ServerEnvelope) {
	if client.hub != nil {
		client.hub.mu.RLock()
		defer client.hub.mu.RUnlock()
	}
	if client.closed {
		return
	}
	select {
	case client.send <- envelope:
	default:
		log.Printf("could not send envelope to client (channel full) game_id=%s player_id=%s", client.GameID, client.PlayerID)
	}
}
