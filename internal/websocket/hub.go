package websocket

import (
	"context"
	"log"
	"sync"
)

// Hub maintains the set of active clients per game and fans messages out to them.
type Hub struct {
	// Registered clients by game_id -> client map
	games map[string]map[*Client]bool

	broadcast  chan *BroadcastMessage
	register   chan *Client
	unregister chan *Client

	// done is closed when Run returns.
	done chan struct{}

	eventHandler *EventHandler

	mu sync.RWMutex
}

// BroadcastMessage is a message for the clients of one game.
type BroadcastMessage struct {
	GameID   string
	Envelope *ServerEnvelope
	// Recipient limits delivery to one player; empty means every client.
	Recipient string
	// View builds a per-client envelope and takes precedence over Envelope.
	// A nil result skips that client.
	View          func(c *Client) *ServerEnvelope
	ExcludeClient *Client
}

// NewHub creates a new Hub.
func NewHub(eventHandler *EventHandler) *Hub {
	return &Hub{
		games:        make(map[string]map[*Client]bool),
		broadcast:    make(chan *BroadcastMessage, 256),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		done:         make(chan struct{}),
		eventHandler: eventHandler,
	}
}

// SetEventHandler sets the event handler for the hub.
func (h *Hub) SetEventHandler(handler *EventHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.eventHandler = handler
}

func (h *Hub) handler() *EventHandler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.eventHandler
}

// Run starts the hub's main loop. It returns when ctx is done, closing
// every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for gameID, clients := range h.games {
				for client := range clients {
					client.closed = true
					close(client.send)
				}
				delete(h.games, gameID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.games[client.GameID] == nil {
				h.games[client.GameID] = make(map[*Client]bool)
			}
			h.games[client.GameID][client] = true
			total := len(h.games[client.GameID])
			h.mu.Unlock()
			log.Printf("ws client registered game_id=%s player_id=%s total=%d", client.GameID, client.PlayerID, total)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			log.Printf("ws client unregistered game_id=%s player_id=%s", client.GameID, client.PlayerID)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.games[message.GameID] {
				if message.ExcludeClient != nil && client == message.ExcludeClient {
					continue
				}
				if message.Recipient != "" && client.PlayerID != message.Recipient {
					continue
				}
				out := message.Envelope
				if message.View != nil {
					out = message.View(client)
				}
				if out == nil {
					continue
				}
				select {
				case client.send <- out:
				default:
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// join registers a client unless the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave unregisters a client; a no-op once the hub has stopped.
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// remove drops a client and closes its send channel. Caller holds mu.
func (h *Hub) remove(client *Client) {
	clients, ok := h.games[client.GameID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	client.closed = true
	close(client.send)
	if len(clients) == 0 {
		delete(h.games, client.GameID)
	}
}

// publish queues a message; it is dropped once the hub has stopped.
func (h *Hub) publish(m *BroadcastMessage) {
	select {
	case h.broadcast <- m:
	case <-h.done:
	}
}

// Broadcast sends an envelope to all clients of a game.
func (h *Hub) Broadcast(gameID string, envelope *ServerEnvelope) {
	h.publish(&BroadcastMessage{GameID: gameID, Envelope: envelope})
}

// BroadcastExcept sends an envelope to all clients of a game except one.
func (h *Hub) BroadcastExcept(gameID string, envelope *ServerEnvelope, excludeClient *Client) {
	h.publish(&BroadcastMessage{GameID: gameID, Envelope: envelope, ExcludeClient: excludeClient})
}

// SendToPlayer sends an envelope only to the connections of one player.
func (h *Hub) SendToPlayer(gameID, playerID string, envelope *ServerEnvelope) {
	h.publish(&BroadcastMessage{GameID: gameID, Envelope: envelope, Recipient: playerID})
}

// BroadcastView sends each client of a game its own envelope.
func (h *Hub) BroadcastView(gameID string, view func(c *Client) *ServerEnvelope) {
	h.publish(&BroadcastMessage{GameID: gameID, View: view})
}

// GetGameClientCount returns the number of clients connected to a game.
func (h *Hub) GetGameClientCount(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.games[gameID])
}
