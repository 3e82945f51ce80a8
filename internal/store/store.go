// Package store persists games, players, snapshots, events and night actions.
package store

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateAction = errors.New("action already submitted for this night")
	ErrWrongPassword   = errors.New("invalid password")
	ErrGameStarted     = errors.New("game already started")
)

// Game is a game lobby and its lifecycle status.
type Game struct {
	ID        string                 `json:"id"`
	Code      string                 `json:"code"`
	Status    string                 `json:"status"` // waiting | in_progress | finished
	Config    map[string]interface{} `json:"config"`
	CreatedAt time.Time              `json:"created_at"`
	EndedAt   *time.Time             `json:"ended_at,omitempty"`
}

// GamePlayer is a participant. The moderator has IsModerator set and is not seated.
type GamePlayer struct {
	ID          string    `json:"id"`
	GameID      string    `json:"game_id"`
	DisplayName string    `json:"display_name"`
	Seat        int       `json:"seat"`
	IsModerator bool      `json:"is_moderator"`
	JoinedAt    time.Time `json:"joined_at"`
}

// CreateGameRequest contains the data needed to create a game.
type CreateGameRequest struct {
	DisplayName string                 `json:"display_name"`
	Password    string                 `json:"password,omitempty"`
	Config      map[string]interface{} `json:"config,omitempty"`
}

// CreateGameResponse is returned after creating a game. Token and ExpiresAt
// are set by the HTTP handler.
type CreateGameResponse struct {
	Game      *Game       `json:"game"`
	Moderator *GamePlayer `json:"moderator"`
	Token     string      `json:"token,omitempty"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
}

// JoinGameRequest contains the data needed to join a game by code.
type JoinGameRequest struct {
	Code        string `json:"code"`
	Password    string `json:"password,omitempty"`
	DisplayName string `json:"display_name"`
}

// JoinGameResponse is returned after joining. Token and ExpiresAt are set
// by the HTTP handler.
type JoinGameResponse struct {
	Game      *Game       `json:"game"`
	Player    *GamePlayer `json:"player"`
	Token     string      `json:"token,omitempty"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
}

// GameEvent is one entry of a game's append-only log.
type GameEvent struct {
	ID        string                 `json:"id"`
	GameID    string                 `json:"game_id"`
	PlayerID  *string                `json:"player_id,omitempty"`
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
}

// CreateGameEventRequest contains the data needed to append an event.
type CreateGameEventRequest struct {
	GameID   string                 `json:"game_id"`
	PlayerID *string                `json:"player_id,omitempty"`
	Type     string                 `json:"type"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
}

// NightAction is a stored night action row.
type NightAction struct {
	ID          string    `json:"id"`
	GameID      string    `json:"game_id"`
	NightNumber int       `json:"night_number"`
	ActorID     string    `json:"actor_id"`
	Role        string    `json:"role"`
	ActionKind  string    `json:"action_kind"`
	TargetID    string    `json:"target_id,omitempty"`
	TargetIDs   []string  `json:"target_ids,omitempty"`
	Result      string    `json:"result,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateNightActionRequest contains a submitted night action.
type CreateNightActionRequest struct {
	GameID      string   `json:"game_id"`
	NightNumber int      `json:"night_number"`
	ActorID     string   `json:"actor_id"`
	Role        string   `json:"role"`
	ActionKind  string   `json:"action_kind"`
	TargetID    string   `json:"target_id,omitempty"`
	TargetIDs   []string `json:"target_ids,omitempty"`
}

// LobbyStateJSON is the initial snapshot of a new game.
var LobbyStateJSON = []byte(`{"status":"waiting","machine":{"phase":"setup"}}`)

// GenerateGameCode returns a join code like "VOIDK7Q".
func GenerateGameCode() string {
	const charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no 0, O, I, 1
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	code := make([]byte, 3)
	for i := range code {
		code[i] = charset[r.Intn(len(charset))]
	}
	return "VOID" + string(code)
}

// HashPassword hashes a game password using bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a password with a stored hash. An empty hash
// accepts any password.
func CheckPassword(hash *string, password string) error {
	if hash == nil || *hash == "" {
		return nil
	}
	if bcrypt.CompareHashAndPassword([]byte(*hash), []byte(password)) != nil {
		return ErrWrongPassword
	}
	return nil
}

// NewID returns a random UUID string.
func NewID() string { return uuid.NewString() }

// uuidToString converts pgtype.UUID to string.
func uuidToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	id, err := uuid.FromBytes(u.Bytes[:])
	if err != nil {
		return ""
	}
	return id.String()
}

// stringToUUID converts string to pgtype.UUID.
func stringToUUID(s string) (pgtype.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, err
	}
	var u pgtype.UUID
	copy(u.Bytes[:], id[:])
	u.Valid = true
	return u, nil
}

// optionalUUID converts "" to a NULL uuid.
func optionalUUID(s string) (pgtype.UUID, error) {
	if s == "" {
		return pgtype.UUID{}, nil
	}
	return stringToUUID(s)
}

func timestamptzToTime(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}
	return ts.Time
}
