package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vntrieu/voidthreat/internal/auth"
	"github.com/vntrieu/voidthreat/internal/games"
	"github.com/vntrieu/voidthreat/internal/store"
)

// Validation limits for game endpoints.
const (
	DisplayNameMinLen = 1
	DisplayNameMaxLen = 64
	PasswordMaxLen    = 128
)

// gameCodePattern matches join codes produced by store.GenerateGameCode.
var gameCodePattern = regexp.MustCompile(`^VOID[A-Z0-9]{3}$`)

// GameStore is the lobby side of the store used by the HTTP API.
type GameStore interface {
	CreateGame(ctx context.Context, req store.CreateGameRequest) (*store.CreateGameResponse, error)
	JoinGame(ctx context.Context, req store.JoinGameRequest) (*store.JoinGameResponse, error)
	GetGameByCode(ctx context.Context, code string) (*store.Game, error)
	GetGamePlayersInOrder(ctx context.Context, gameID string) ([]store.GamePlayer, error)
}

// MoveEngine applies moves and renders per-player state.
type MoveEngine interface {
	ApplyMove(ctx context.Context, gameID string, playerID string, moveType string, payload map[string]interface{}) games.ApplyMoveResult
	StateForPlayer(ctx context.Context, gameID, viewerID string) (map[string]interface{}, error)
}

// EventLog reads a game's append-only event log.
type EventLog interface {
	GetGameEvents(ctx context.Context, gameID string) ([]store.GameEvent, error)
}

// Publisher fans a move result out to connected clients.
type Publisher interface {
	Publish(gameID string, result games.ApplyMoveResult)
}

// MoveRequest is the body for POST /api/games/{code}/moves.
type MoveRequest struct {
	Type    string                 `json:"type"` // vote | action
	Payload map[string]interface{} `json:"payload"`
}

// MoveResponse returns the caller's view after a move and the events it may see.
type MoveResponse struct {
	State  map[string]interface{} `json:"state"`
	Events []games.BroadcastEvent `json:"events"`
}

// GameResponse is the public lobby view of a game.
type GameResponse struct {
	Game    *store.Game        `json:"game"`
	Players []store.GamePlayer `json:"players"`
}

// GameHandler handles game lobby and move requests.
type GameHandler struct {
	games       GameStore
	events      EventLog
	engine      MoveEngine
	publisher   Publisher
	tokenSecret []byte
}

// NewGameHandler creates a new GameHandler. If tokenSecret is empty, create/join
// responses omit the token. events and publisher may be nil.
func NewGameHandler(games GameStore, events EventLog, engine MoveEngine, publisher Publisher, tokenSecret []byte) *GameHandler {
	return &GameHandler{games: games, events: events, engine: engine, publisher: publisher, tokenSecret: tokenSecret}
}

func validateDisplayName(displayName string) string {
	s := strings.TrimSpace(displayName)
	if len(s) < DisplayNameMinLen {
		return "display_name is required"
	}
	if len(s) > DisplayNameMaxLen {
		return fmt.Sprintf("display_name must be at most %d characters", DisplayNameMaxLen)
	}
	return ""
}

func validatePasswordLength(password string) string {
	if len(password) > PasswordMaxLen {
		return fmt.Sprintf("password must be at most %d characters", PasswordMaxLen)
	}
	return ""
}

func normalizeGameCode(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	return code, gameCodePattern.MatchString(code)
}

// CreateGame handles POST /api/games. The caller becomes the moderator.
//
// @Summary      Create game
// @Description  Create a new game lobby. The requester becomes the moderator and receives a token.
// @Tags         games
// @Accept       json
// @Produce      json
// @Param        body  body      store.CreateGameRequest   true  "Request body"
// @Success      201   {object}  store.CreateGameResponse
// @Failure      400   {string}  string  "Bad request (invalid display_name, password length, or body)"
// @Failure      500   {string}  string  "Server error"
// @Router       /api/games [post]
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req store.CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if msg := validateDisplayName(req.DisplayName); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if msg := validatePasswordLength(req.Password); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	resp, err := h.games.CreateGame(r.Context(), req)
	if err != nil {
		log.Printf("[%s] create game error: %v", requestID(r), err)
		http.Error(w, "failed to create game", http.StatusInternalServerError)
		return
	}

	if len(h.tokenSecret) > 0 {
		token, expiresAt, err := auth.GenerateToken(resp.Game.ID, resp.Moderator.ID, true, h.tokenSecret, auth.DefaultTokenExpiry)
		if err != nil {
			log.Printf("[%s] generate token error: %v", requestID(r), err)
			http.Error(w, "failed to create game", http.StatusInternalServerError)
			return
		}
		resp.Token = token
		resp.ExpiresAt = &expiresAt
	}
	log.Printf("[%s] game created game_id=%s code=%s", requestID(r), resp.Game.ID, resp.Game.Code)
	writeJSON(w, r, http.StatusCreated, resp)
}

// GetGame handles GET /api/games/{code}.
//
// @Summary      Get game
// @Description  Lobby view: game status and seated players. Roles are never included.
// @Tags         games
// @Produce      json
// @Param        code  path      string  true  "Game code"
// @Success      200   {object}  GameResponse
// @Failure      400   {string}  string  "Invalid game code"
// @Failure      404   {string}  string  "Game not found"
// @Failure      500   {string}  string  "Server error"
// @Router       /api/games/{code} [get]
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	code, ok := normalizeGameCode(chi.URLParam(r, "code"))
	if !ok {
		http.Error(w, "invalid game code format", http.StatusBadRequest)
		return
	}
	game, ok := h.lookupGame(w, r, code)
	if !ok {
		return
	}
	players, err := h.games.GetGamePlayersInOrder(r.Context(), game.ID)
	if err != nil {
		log.Printf("[%s] list players error: %v", requestID(r), err)
		http.Error(w, "failed to load players", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, http.StatusOK, GameResponse{Game: game, Players: players})
}

// JoinGame handles POST /api/games/{code}/join.
//
// @Summary      Join game
// @Description  Take the next free seat of a waiting game and receive a player token.
// @Tags         games
// @Accept       json
// @Produce      json
// @Param        code  path      string                  true  "Game code"
// @Param        body  body      store.JoinGameRequest   true  "Request body (code in path, not body)"
// @Success      200   {object}  store.JoinGameResponse
// @Failure      400   {string}  string  "Bad request"
// @Failure      401   {string}  string  "Invalid password"
// @Failure      404   {string}  string  "Game not found"
// @Failure      409   {string}  string  "Game already started"
// @Failure      500   {string}  string  "Server error"
// @Router       /api/games/{code}/join [post]
func (h *GameHandler) JoinGame(w http.ResponseWriter, r *http.Request) {
	code, ok := normalizeGameCode(chi.URLParam(r, "code"))
	if !ok {
		http.Error(w, "invalid game code format", http.StatusBadRequest)
		return
	}

	var req store.JoinGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Code = code
	if msg := validateDisplayName(req.DisplayName); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if msg := validatePasswordLength(req.Password); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	resp, err := h.games.JoinGame(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, "game not found", http.StatusNotFound)
		case errors.Is(err, store.ErrWrongPassword):
			http.Error(w, err.Error(), http.StatusUnauthorized)
		case errors.Is(err, store.ErrGameStarted):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			log.Printf("[%s] join game error: %v", requestID(r), err)
			http.Error(w, "failed to join game", http.StatusInternalServerError)
		}
		return
	}

	if len(h.tokenSecret) > 0 {
		token, expiresAt, err := auth.GenerateToken(resp.Game.ID, resp.Player.ID, false, h.tokenSecret, auth.DefaultTokenExpiry)
		if err != nil {
			log.Printf("[%s] generate token error: %v", requestID(r), err)
			http.Error(w, "failed to join game", http.StatusInternalServerError)
			return
		}
		resp.Token = token
		resp.ExpiresAt = &expiresAt
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// GetState handles GET /api/games/{code}/state.
//
// @Summary      Get state
// @Description  The caller's view of the game. Hidden roles are masked for everyone but the moderator.
// @Tags         games
// @Produce      json
// @Param        code  path      string  true  "Game code"
// @Success      200   {object}  map[string]interface{}
// @Failure      401   {string}  string  "Unauthorized"
// @Failure      404   {string}  string  "Game not found"
// @Failure      500   {string}  string  "Server error"
// @Security     BearerAuth
// @Router       /api/games/{code}/state [get]
func (h *GameHandler) GetState(w http.ResponseWriter, r *http.Request) {
	game, claims, ok := h.authorizedGame(w, r)
	if !ok {
		return
	}
	view, err := h.engine.StateForPlayer(r.Context(), game.ID, claims.PlayerID)
	if err != nil {
		log.Printf("[%s] load state error game_id=%s: %v", requestID(r), game.ID, err)
		http.Error(w, "failed to load state", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

// Move handles POST /api/games/{code}/moves.
//
// @Summary      Apply move
// @Description  Apply a vote or action as the token's player. Results are also pushed to connected sockets.
// @Tags         games
// @Accept       json
// @Produce      json
// @Param        code  path      string       true  "Game code"
// @Param        body  body      MoveRequest  true  "Move"
// @Success      200   {object}  MoveResponse
// @Failure      400   {string}  string  "Invalid move"
// @Failure      401   {string}  string  "Unauthorized"
// @Failure      403   {string}  string  "Not allowed for this player"
// @Failure      404   {string}  string  "Game not found"
// @Failure      409   {string}  string  "Game finished or action already submitted"
// @Failure      500   {string}  string  "Server error"
// @Security     BearerAuth
// @Router       /api/games/{code}/moves [post]
func (h *GameHandler) Move(w http.ResponseWriter, r *http.Request) {
	game, claims, ok := h.authorizedGame(w, r)
	if !ok {
		return
	}
	var body MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Type != "vote" && body.Type != "action" {
		http.Error(w, "type must be vote or action", http.StatusBadRequest)
		return
	}
	if body.Payload == nil {
		body.Payload = make(map[string]interface{})
	}

	result := h.engine.ApplyMove(r.Context(), game.ID, claims.PlayerID, body.Type, body.Payload)
	if result.Error != nil {
		status := moveErrorStatus(result.Error)
		if status == http.StatusInternalServerError {
			log.Printf("[%s] move error game_id=%s player_id=%s: %v", requestID(r), game.ID, claims.PlayerID, result.Error)
			http.Error(w, "failed to apply move", status)
			return
		}
		http.Error(w, result.Error.Error(), status)
		return
	}
	if h.publisher != nil {
		h.publisher.Publish(game.ID, result)
	}

	visible := make([]games.BroadcastEvent, 0, len(result.Events))
	for _, ev := range result.Events {
		if ev.Recipient == "" || ev.Recipient == claims.PlayerID {
			visible = append(visible, ev)
		}
	}
	var view map[string]interface{}
	if result.State != nil {
		view = result.State.PublicView(claims.PlayerID)
	}
	writeJSON(w, r, http.StatusOK, MoveResponse{State: view, Events: visible})
}

// ListEvents handles GET /api/games/{code}/events.
//
// @Summary      Event log
// @Description  The game's event log, oldest first. Moderator only until the game has finished.
// @Tags         games
// @Produce      json
// @Param        code  path      string  true  "Game code"
// @Success      200   {array}   store.GameEvent
// @Failure      401   {string}  string  "Unauthorized"
// @Failure      403   {string}  string  "Moderator only while the game runs"
// @Failure      404   {string}  string  "Game not found"
// @Failure      500   {string}  string  "Server error"
// @Security     BearerAuth
// @Router       /api/games/{code}/events [get]
func (h *GameHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	game, claims, ok := h.authorizedGame(w, r)
	if !ok {
		return
	}
	if h.events == nil {
		http.Error(w, "event log not available", http.StatusNotFound)
		return
	}
	if !claims.Moderator && game.Status != games.StatusFinished {
		http.Error(w, "forbidden: the event log opens when the game ends", http.StatusForbidden)
		return
	}
	events, err := h.events.GetGameEvents(r.Context(), game.ID)
	if err != nil {
		log.Printf("[%s] list events error game_id=%s: %v", requestID(r), game.ID, err)
		http.Error(w, "failed to load events", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, http.StatusOK, events)
}

// moveErrorStatus maps an engine error to an HTTP status.
func moveErrorStatus(err error) int {
	switch {
	case errors.Is(err, games.ErrNotModerator), errors.Is(err, games.ErrNotInGame):
		return http.StatusForbidden
	case errors.Is(err, games.ErrGameFinished), errors.Is(err, store.ErrDuplicateAction):
		return http.StatusConflict
	case games.IsClientError(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *GameHandler) lookupGame(w http.ResponseWriter, r *http.Request, code string) (*store.Game, bool) {
	game, err := h.games.GetGameByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "game not found", http.StatusNotFound)
			return nil, false
		}
		log.Printf("[%s] get game error: %v", requestID(r), err)
		http.Error(w, "failed to load game", http.StatusInternalServerError)
		return nil, false
	}
	return game, true
}

// authorizedGame resolves the path's game and checks it against the token claims.
func (h *GameHandler) authorizedGame(w http.ResponseWriter, r *http.Request) (*store.Game, *auth.Claims, bool) {
	claims := ClaimsFromRequest(r)
	if claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, nil, false
	}
	code, ok := normalizeGameCode(chi.URLParam(r, "code"))
	if !ok {
		http.Error(w, "invalid game code format", http.StatusBadRequest)
		return nil, nil, false
	}
	game, ok := h.lookupGame(w, r, code)
	if !ok {
		return nil, nil, false
	}
	if game.ID != claims.GameID {
		http.Error(w, "token is not valid for this game", http.StatusUnauthorized)
		return nil, nil, false
	}
	return game, claims, true
}
