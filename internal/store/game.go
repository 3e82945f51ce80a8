package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GameStore handles database operations for games, players and snapshots.
type GameStore struct {
	pool *pgxpool.Pool
}

// NewGameStore creates a new GameStore.
func NewGameStore(pool *pgxpool.Pool) *GameStore {
	return &GameStore{pool: pool}
}

const gameColumns = `id, code, status, config_json, created_at, ended_at`

func scanGame(row pgx.Row) (*Game, *string, error) {
	var (
		id         pgtype.UUID
		g          Game
		configJSON []byte
		created    pgtype.Timestamptz
		ended      pgtype.Timestamptz
		hash       pgtype.Text
	)
	if err := row.Scan(&id, &g.Code, &g.Status, &configJSON, &created, &ended, &hash); err != nil {
		return nil, nil, err
	}
	g.ID = uuidToString(id)
	g.CreatedAt = timestamptzToTime(created)
	if ended.Valid {
		t := ended.Time
		g.EndedAt = &t
	}
	if err := json.Unmarshal(configJSON, &g.Config); err != nil || g.Config == nil {
		g.Config = make(map[string]interface{})
	}
	var pw *string
	if hash.Valid {
		pw = &hash.String
	}
	return &g, pw, nil
}

func scanPlayer(row pgx.Row) (*GamePlayer, error) {
	var (
		id, gameID pgtype.UUID
		p          GamePlayer
		joined     pgtype.Timestamptz
	)
	if err := row.Scan(&id, &gameID, &p.DisplayName, &p.Seat, &p.IsModerator, &joined); err != nil {
		return nil, err
	}
	p.ID = uuidToString(id)
	p.GameID = uuidToString(gameID)
	p.JoinedAt = timestamptzToTime(joined)
	return &p, nil
}

// CreateGame creates a game with its moderator and the initial setup snapshot.
func (s *GameStore) CreateGame(ctx context.Context, req CreateGameRequest) (*CreateGameResponse, error) {
	if req.DisplayName == "" {
		return nil, fmt.Errorf("display_name is required")
	}

	var code string
	for {
		code = GenerateGameCode()
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM games WHERE code = $1)`, code).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check game code exists: %w", err)
		}
		if !exists {
			break
		}
	}

	var passwordHash pgtype.Text
	if req.Password != "" {
		hash, err := HashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		passwordHash = pgtype.Text{String: hash, Valid: true}
	}

	configJSON := []byte("{}")
	if len(req.Config) > 0 {
		var err error
		configJSON, err = json.Marshal(req.Config)
		if err != nil {
			return nil, fmt.Errorf("marshal config: %w", err)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	game, _, err := scanGame(tx.QueryRow(ctx,
		`INSERT INTO games (code, status, password_hash, config_json)
		 VALUES ($1, 'waiting', $2, $3)
		 RETURNING `+gameColumns+`, password_hash`,
		code, passwordHash, configJSON))
	if err != nil {
		return nil, fmt.Errorf("insert game: %w", err)
	}
	gameUUID, _ := stringToUUID(game.ID)

	moderator, err := scanPlayer(tx.QueryRow(ctx,
		`INSERT INTO game_players (game_id, display_name, seat, is_moderator)
		 VALUES ($1, $2, 0, TRUE)
		 RETURNING id, game_id, display_name, seat, is_moderator, joined_at`,
		gameUUID, req.DisplayName))
	if err != nil {
		return nil, fmt.Errorf("insert moderator: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO game_state_snapshots (game_id, version, state_json) VALUES ($1, 1, $2)`,
		gameUUID, LobbyStateJSON); err != nil {
		return nil, fmt.Errorf("create initial snapshot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &CreateGameResponse{Game: game, Moderator: moderator}, nil
}

// JoinGame seats a new player at the next free seat of a waiting game.
func (s *GameStore) JoinGame(ctx context.Context, req JoinGameRequest) (*JoinGameResponse, error) {
	if req.DisplayName == "" {
		return nil, fmt.Errorf("display_name is required")
	}
	game, hash, err := s.getGameByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	if err := CheckPassword(hash, req.Password); err != nil {
		return nil, err
	}
	if game.Status != "waiting" {
		return nil, ErrGameStarted
	}
	gameUUID, _ := stringToUUID(game.ID)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the game row so concurrent joins get distinct seats.
	if _, err := tx.Exec(ctx, `SELECT 1 FROM games WHERE id = $1 FOR UPDATE`, gameUUID); err != nil {
		return nil, fmt.Errorf("lock game: %w", err)
	}
	player, err := scanPlayer(tx.QueryRow(ctx,
		`INSERT INTO game_players (game_id, display_name, seat, is_moderator)
		 VALUES ($1, $2, (SELECT COALESCE(MAX(seat), 0) + 1 FROM game_players WHERE game_id = $1), FALSE)
		 RETURNING id, game_id, display_name, seat, is_moderator, joined_at`,
		gameUUID, req.DisplayName))
	if err != nil {
		return nil, fmt.Errorf("insert game player: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &JoinGameResponse{Game: game, Player: player}, nil
}

func (s *GameStore) getGameByCode(ctx context.Context, code string) (*Game, *string, error) {
	game, hash, err := scanGame(s.pool.QueryRow(ctx,
		`SELECT `+gameColumns+`, password_hash FROM games WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("game %q: %w", code, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("get game by code: %w", err)
	}
	return game, hash, nil
}

// GetGameByCode returns the game with the given join code.
func (s *GameStore) GetGameByCode(ctx context.Context, code string) (*Game, error) {
	game, _, err := s.getGameByCode(ctx, code)
	return game, err
}

// GetGameConfig returns the config_json a game was created with.
func (s *GameStore) GetGameConfig(ctx context.Context, gameID string) (map[string]interface{}, error) {
	gameUUID, err := stringToUUID(gameID)
	if err != nil {
		return nil, fmt.Errorf("invalid game_id: %w", err)
	}
	var raw []byte
	if err := s.pool.QueryRow(ctx, `SELECT config_json FROM games WHERE id = $1`, gameUUID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("game %s: %w", gameID, ErrNotFound)
		}
		return nil, fmt.Errorf("get game config: %w", err)
	}
	cfg := make(map[string]interface{})
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode game config: %w", err)
	}
	return cfg, nil
}

// GetGamePlayer returns one player of a game.
func (s *GameStore) GetGamePlayer(ctx context.Context, gameID, playerID string) (*GamePlayer, error) {
	gameUUID, err := stringToUUID(gameID)
	if err != nil {
		return nil, fmt.Errorf("invalid game_id: %w", err)
	}
	playerUUID, err := stringToUUID(playerID)
	if err != nil {
		return nil, fmt.Errorf("invalid player_id: %w", err)
	}
	p, err := scanPlayer(s.pool.QueryRow(ctx,
		`SELECT id, game_id, display_name, seat, is_moderator, joined_at
		 FROM game_players WHERE game_id = $1 AND id = $2`, gameUUID, playerUUID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("player %s: %w", playerID, ErrNotFound)
		}
		return nil, fmt.Errorf("get game player: %w", err)
	}
	return p, nil
}

// GetGamePlayersInOrder returns every player of the game, moderator first,
// then by seat.
func (s *GameStore) GetGamePlayersInOrder(ctx context.Context, gameID string) ([]GamePlayer, error) {
	gameUUID, err := stringToUUID(gameID)
	if err != nil {
		return nil, fmt.Errorf("invalid game_id: %w", err)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, game_id, display_name, seat, is_moderator, joined_at
		 FROM game_players WHERE game_id = $1 ORDER BY seat, joined_at`, gameUUID)
	if err != nil {
		return nil, fmt.Errorf("get game players: %w", err)
	}
	defer rows.Close()
	var out []GamePlayer
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game player: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// CreateOrUpdateSnapshot writes a new snapshot with the next version number.
func (s *GameStore) CreateOrUpdateSnapshot(ctx context.Context, gameID string, stateJSON map[string]interface{}) (int32, error) {
	gameUUID, err := stringToUUID(gameID)
	if err != nil {
		return 0, fmt.Errorf("invalid game_id: %w", err)
	}
	data := []byte("{}")
	if len(stateJSON) > 0 {
		data, err = json.Marshal(stateJSON)
		if err != nil {
			return 0, fmt.Errorf("marshal state: %w", err)
		}
	}
	var version int32
	err = s.pool.QueryRow(ctx,
		`INSERT INTO game_state_snapshots (game_id, version, state_json)
		 VALUES ($1, (SELECT COALESCE(MAX(version), 0) + 1 FROM game_state_snapshots WHERE game_id = $1), $2)
		 RETURNING version`, gameUUID, data).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("create snapshot: %w", err)
	}
	return version, nil
}

// GetLatestSnapshot returns the latest snapshot as a map, or nil if none exists.
func (s *GameStore) GetLatestSnapshot(ctx context.Context, gameID string) (map[string]interface{}, error) {
	gameUUID, err := stringToUUID(gameID)
	if err != nil {
		return nil, fmt.Errorf("invalid game_id: %w", err)
	}
	var (
		version int32
		data    []byte
	)
	err = s.pool.QueryRow(ctx,
		`SELECT version, state_json FROM game_state_snapshots
		 WHERE game_id = $1 ORDER BY version DESC LIMIT 1`, gameUUID).Scan(&version, &data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	var out map[string]interface{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
	}
	if out == nil {
		out = make(map[string]interface{})
	}
	out["version"] = float64(version)
	return out, nil
}

// UpdateGameStatus updates the game's status and optionally ended_at.
func (s *GameStore) UpdateGameStatus(ctx context.Context, gameID string, status string, endedAt *time.Time) error {
	gameUUID, err := stringToUUID(gameID)
	if err != nil {
		return fmt.Errorf("invalid game_id: %w", err)
	}
	var endAt pgtype.Timestamptz
	if endedAt != nil {
		endAt = pgtype.Timestamptz{Time: *endedAt, Valid: true}
	}
	if _, err := s.pool.Exec(ctx,
		`UPDATE games SET status = $2, ended_at = $3 WHERE id = $1`, gameUUID, status, endAt); err != nil {
		return fmt.Errorf("update game status: %w", err)
	}
	return nil
}
