package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GameEventStore handles database operations for game events.
type GameEventStore struct {
	pool *pgxpool.Pool
}

// NewGameEventStore creates a new GameEventStore.
func NewGameEventStore(pool *pgxpool.Pool) *GameEventStore {
	return &GameEventStore{pool: pool}
}

func scanEvent(row pgx.Row) (*GameEvent, error) {
	var (
		id, gameID, playerID pgtype.UUID
		ev                   GameEvent
		payloadJSON          []byte
		created              pgtype.Timestamptz
	)
	if err := row.Scan(&id, &gameID, &playerID, &ev.Type, &payloadJSON, &created); err != nil {
		return nil, err
	}
	ev.ID = uuidToString(id)
	ev.GameID = uuidToString(gameID)
	if playerID.Valid {
		pid := uuidToString(playerID)
		ev.PlayerID = &pid
	}
	if err := json.Unmarshal(payloadJSON, &ev.Payload); err != nil || ev.Payload == nil {
		ev.Payload = make(map[string]interface{})
	}
	ev.CreatedAt = timestamptzToTime(created)
	return &ev, nil
}

// CreateGameEvent appends an event to the game log.
func (s *GameEventStore) CreateGameEvent(ctx context.Context, req CreateGameEventRequest) (*GameEvent, error) {
	gameUUID, err := stringToUUID(req.GameID)
	if err != nil {
		return nil, fmt.Errorf("invalid game_id: %w", err)
	}
	var playerUUID pgtype.UUID
	if req.PlayerID != nil {
		playerUUID, err = optionalUUID(*req.PlayerID)
		if err != nil {
			return nil, fmt.Errorf("invalid player_id: %w", err)
		}
	}
	payloadJSON := []byte("{}")
	if len(req.Payload) > 0 {
		payloadJSON, err = json.Marshal(req.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
	}
	ev, err := scanEvent(s.pool.QueryRow(ctx,
		`INSERT INTO game_events (game_id, player_id, type, payload_json)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, game_id, player_id, type, payload_json, created_at`,
		gameUUID, playerUUID, req.Type, payloadJSON))
	if err != nil {
		return nil, fmt.Errorf("create game event: %w", err)
	}
	return ev, nil
}

// GetGameEvents returns every event of a game in insertion order.
func (s *GameEventStore) GetGameEvents(ctx context.Context, gameID string) ([]GameEvent, error) {
	gameUUID, err := stringToUUID(gameID)
	if err != nil {
		return nil, fmt.Errorf("invalid game_id: %w", err)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, game_id, player_id, type, payload_json, created_at
		 FROM game_events WHERE game_id = $1 ORDER BY created_at, id`, gameUUID)
	if err != nil {
		return nil, fmt.Errorf("get game events: %w", err)
	}
	defer rows.Close()
	var events []GameEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game event: %w", err)
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}
