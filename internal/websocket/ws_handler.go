package websocket

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/vntrieu/voidthreat/internal/auth"
	"github.com/vntrieu/voidthreat/internal/store"
)

// GameLookup resolves join codes and players for socket auth.
type GameLookup interface {
	GetGameByCode(ctx context.Context, code string) (*store.Game, error)
	GetGamePlayer(ctx context.Context, gameID, playerID string) (*store.GamePlayer, error)
}

// WSHandler handles game WebSocket connections.
type WSHandler struct {
	hub         *Hub
	games       GameLookup
	tokenSecret []byte
}

// NewWSHandler creates a new WSHandler. If tokenSecret is empty every connection is rejected.
func NewWSHandler(hub *Hub, games GameLookup, tokenSecret []byte) *WSHandler {
	return &WSHandler{
		hub:         hub,
		games:       games,
		tokenSecret: tokenSecret,
	}
}

// HandleGameWebSocket handles GET /ws/games/{code} with token auth. Client
// sends the token via query param or Authorization header.
func (h *WSHandler) HandleGameWebSocket(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		http.Error(w, "code is required", http.StatusBadRequest)
		return
	}
	token := auth.TokenFromRequest(r)
	if token == "" || len(h.tokenSecret) == 0 {
		h.reject(w, "missing or invalid token")
		return
	}
	claims, err := auth.VerifyToken(token, h.tokenSecret)
	if err != nil {
		log.Printf("websocket auth: code=%s token verification failed: %v", code, err)
		h.reject(w, "unauthorized")
		return
	}
	game, err := h.games.GetGameByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}
		log.Printf("websocket: get game code=%s: %v", code, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if game.ID != claims.GameID {
		h.reject(w, "game does not match token")
		return
	}
	player, err := h.games.GetGamePlayer(r.Context(), game.ID, claims.PlayerID)
	if err != nil {
		log.Printf("websocket: code=%s game_id=%s player_id=%s player not in game: %v", code, game.ID, claims.PlayerID, err)
		h.reject(w, "player not in game")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	// Background: the request context is canceled once the handler returns.
	client := &Client{
		hub:          h.hub,
		conn:         conn,
		send:         make(chan *ServerEnvelope, 256),
		GameID:       game.ID,
		PlayerID:     player.ID,
		DisplayName:  player.DisplayName,
		Moderator:    player.IsModerator,
		RateLimitKey: "player:" + player.ID,
		ctx:          context.Background(),
	}
	if eh := h.hub.handler(); eh != nil {
		eh.sendState(client.ctx, client, "")
	}
	if !client.hub.join(client) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

// reject responds with 401 before upgrade.
func (h *WSHandler) reject(w http.ResponseWriter, reason string) {
	http.Error(w, reason, http.StatusUnauthorized)
}
