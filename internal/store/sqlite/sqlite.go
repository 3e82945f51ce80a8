// Package sqlite is the single-binary store: the same operations as the
// Postgres stores, backed by an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/vntrieu/voidthreat/internal/store"
)

// Store wraps a SQLite connection.
type Store struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at path and applies the schema.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer; seat and version numbering rely on it.
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Ping checks the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS games (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'waiting',
		password_hash TEXT,
		config_json TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		ended_at TEXT
	);

	CREATE TABLE IF NOT EXISTS game_players (
		id TEXT PRIMARY KEY,
		game_id TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		display_name TEXT NOT NULL,
		seat INTEGER NOT NULL,
		is_moderator INTEGER NOT NULL DEFAULT 0,
		joined_at TEXT NOT NULL,
		UNIQUE (game_id, seat)
	);

	CREATE TABLE IF NOT EXISTS game_state_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		game_id TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		version INTEGER NOT NULL,
		state_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE (game_id, version)
	);

	CREATE TABLE IF NOT EXISTS game_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		game_id TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		player_id TEXT,
		type TEXT NOT NULL,
		payload_json TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS night_actions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		game_id TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		night_number INTEGER NOT NULL,
		actor_id TEXT NOT NULL,
		role TEXT NOT NULL,
		action_kind TEXT NOT NULL,
		target_id TEXT,
		target_ids_json TEXT NOT NULL DEFAULT '[]',
		result TEXT,
		created_at TEXT NOT NULL,
		UNIQUE (game_id, night_number, actor_id)
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

type gameRow struct {
	ID           string         `db:"id"`
	Code         string         `db:"code"`
	Status       string         `db:"status"`
	PasswordHash sql.NullString `db:"password_hash"`
	ConfigJSON   string         `db:"config_json"`
	CreatedAt    string         `db:"created_at"`
	EndedAt      sql.NullString `db:"ended_at"`
}

func (r gameRow) toGame() *store.Game {
	g := &store.Game{
		ID:        r.ID,
		Code:      r.Code,
		Status:    r.Status,
		CreatedAt: parseTime(r.CreatedAt),
	}
	if r.EndedAt.Valid {
		t := parseTime(r.EndedAt.String)
		g.EndedAt = &t
	}
	if err := json.Unmarshal([]byte(r.ConfigJSON), &g.Config); err != nil || g.Config == nil {
		g.Config = make(map[string]interface{})
	}
	return g
}

type playerRow struct {
	ID          string `db:"id"`
	GameID      string `db:"game_id"`
	DisplayName string `db:"display_name"`
	Seat        int    `db:"seat"`
	IsModerator bool   `db:"is_moderator"`
	JoinedAt    string `db:"joined_at"`
}

func (r playerRow) toPlayer() *store.GamePlayer {
	return &store.GamePlayer{
		ID:          r.ID,
		GameID:      r.GameID,
		DisplayName: r.DisplayName,
		Seat:        r.Seat,
		IsModerator: r.IsModerator,
		JoinedAt:    parseTime(r.JoinedAt),
	}
}

type eventRow struct {
	ID          string         `db:"id"`
	GameID      string         `db:"game_id"`
	PlayerID    sql.NullString `db:"player_id"`
	Type        string         `db:"type"`
	PayloadJSON string         `db:"payload_json"`
	CreatedAt   string         `db:"created_at"`
}

type actionRow struct {
	ID          string         `db:"id"`
	GameID      string         `db:"game_id"`
	NightNumber int            `db:"night_number"`
	ActorID     string         `db:"actor_id"`
	Role        string         `db:"role"`
	ActionKind  string         `db:"action_kind"`
	TargetID    sql.NullString `db:"target_id"`
	TargetsJSON string         `db:"target_ids_json"`
	Result      sql.NullString `db:"result"`
	CreatedAt   string         `db:"created_at"`
}

// isUniqueViolation reports a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var se *moderncsqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateGame creates a game with its moderator and the initial setup snapshot.
func (s *Store) CreateGame(ctx context.Context, req store.CreateGameRequest) (*store.CreateGameResponse, error) {
	if req.DisplayName == "" {
		return nil, fmt.Errorf("display_name is required")
	}
	var hash sql.NullString
	if req.Password != "" {
		h, err := store.HashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		hash = nullString(h)
	}
	configJSON := []byte("{}")
	if len(req.Config) > 0 {
		var err error
		if configJSON, err = json.Marshal(req.Config); err != nil {
			return nil, fmt.Errorf("marshal config: %w", err)
		}
	}

	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var code string
	for {
		code = store.GenerateGameCode()
		var n int
		if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM games WHERE code = ?`, code); err != nil {
			return nil, fmt.Errorf("check game code exists: %w", err)
		}
		if n == 0 {
			break
		}
	}

	g := gameRow{ID: store.NewID(), Code: code, Status: "waiting", PasswordHash: hash, ConfigJSON: string(configJSON), CreatedAt: now()}
	if _, err := tx.NamedExecContext(ctx,
		`INSERT INTO games (id, code, status, password_hash, config_json, created_at)
		 VALUES (:id, :code, :status, :password_hash, :config_json, :created_at)`, g); err != nil {
		return nil, fmt.Errorf("insert game: %w", err)
	}
	p := playerRow{ID: store.NewID(), GameID: g.ID, DisplayName: req.DisplayName, Seat: 0, IsModerator: true, JoinedAt: now()}
	if _, err := tx.NamedExecContext(ctx,
		`INSERT INTO game_players (id, game_id, display_name, seat, is_moderator, joined_at)
		 VALUES (:id, :game_id, :display_name, :seat, :is_moderator, :joined_at)`, p); err != nil {
		return nil, fmt.Errorf("insert moderator: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO game_state_snapshots (game_id, version, state_json, created_at) VALUES (?, 1, ?, ?)`,
		g.ID, string(store.LobbyStateJSON), now()); err != nil {
		return nil, fmt.Errorf("create initial snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &store.CreateGameResponse{Game: g.toGame(), Moderator: p.toPlayer()}, nil
}

// JoinGame seats a new player at the next free seat of a waiting game.
func (s *Store) JoinGame(ctx context.Context, req store.JoinGameRequest) (*store.JoinGameResponse, error) {
	if req.DisplayName == "" {
		return nil, fmt.Errorf("display_name is required")
	}
	row, err := s.gameByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	var hash *string
	if row.PasswordHash.Valid {
		hash = &row.PasswordHash.String
	}
	if err := store.CheckPassword(hash, req.Password); err != nil {
		return nil, err
	}
	if row.Status != "waiting" {
		return nil, store.ErrGameStarted
	}

	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	var seat int
	if err := tx.GetContext(ctx, &seat, `SELECT COALESCE(MAX(seat), 0) + 1 FROM game_players WHERE game_id = ?`, row.ID); err != nil {
		return nil, fmt.Errorf("next seat: %w", err)
	}
	p := playerRow{ID: store.NewID(), GameID: row.ID, DisplayName: req.DisplayName, Seat: seat, JoinedAt: now()}
	if _, err := tx.NamedExecContext(ctx,
		`INSERT INTO game_players (id, game_id, display_name, seat, is_moderator, joined_at)
		 VALUES (:id, :game_id, :display_name, :seat, :is_moderator, :joined_at)`, p); err != nil {
		return nil, fmt.Errorf("insert game player: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &store.JoinGameResponse{Game: row.toGame(), Player: p.toPlayer()}, nil
}

func (s *Store) gameByCode(ctx context.Context, code string) (*gameRow, error) {
	var row gameRow
	err := s.conn.GetContext(ctx, &row, `SELECT id, code, status, password_hash, config_json, created_at, ended_at FROM games WHERE code = ?`, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("game %q: %w", code, store.ErrNotFound)
		}
		return nil, fmt.Errorf("get game by code: %w", err)
	}
	return &row, nil
}

// GetGameByCode returns the game with the given join code.
func (s *Store) GetGameByCode(ctx context.Context, code string) (*store.Game, error) {
	row, err := s.gameByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return row.toGame(), nil
}

// GetGameConfig returns the config_json a game was created with.
func (s *Store) GetGameConfig(ctx context.Context, gameID string) (map[string]interface{}, error) {
	var raw string
	if err := s.conn.GetContext(ctx, &raw, `SELECT config_json FROM games WHERE id = ?`, gameID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("game %s: %w", gameID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("get game config: %w", err)
	}
	cfg := make(map[string]interface{})
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("decode game config: %w", err)
	}
	return cfg, nil
}

// GetGamePlayer returns one player of a game.
func (s *Store) GetGamePlayer(ctx context.Context, gameID, playerID string) (*store.GamePlayer, error) {
	var row playerRow
	err := s.conn.GetContext(ctx, &row,
		`SELECT id, game_id, display_name, seat, is_moderator, joined_at FROM game_players WHERE game_id = ? AND id = ?`,
		gameID, playerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("player %s: %w", playerID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("get game player: %w", err)
	}
	return row.toPlayer(), nil
}

// GetGamePlayersInOrder returns every player, moderator first, then by seat.
func (s *Store) GetGamePlayersInOrder(ctx context.Context, gameID string) ([]store.GamePlayer, error) {
	var rows []playerRow
	if err := s.conn.SelectContext(ctx, &rows,
		`SELECT id, game_id, display_name, seat, is_moderator, joined_at FROM game_players WHERE game_id = ? ORDER BY seat, joined_at`,
		gameID); err != nil {
		return nil, fmt.Errorf("get game players: %w", err)
	}
	out := make([]store.GamePlayer, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.toPlayer())
	}
	return out, nil
}

// CreateOrUpdateSnapshot writes a new snapshot with the next version number.
func (s *Store) CreateOrUpdateSnapshot(ctx context.Context, gameID string, stateJSON map[string]interface{}) (int32, error) {
	data := []byte("{}")
	if len(stateJSON) > 0 {
		var err error
		if data, err = json.Marshal(stateJSON); err != nil {
			return 0, fmt.Errorf("marshal state: %w", err)
		}
	}
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	var version int32
	if err := tx.GetContext(ctx, &version, `SELECT COALESCE(MAX(version), 0) + 1 FROM game_state_snapshots WHERE game_id = ?`, gameID); err != nil {
		return 0, fmt.Errorf("next version: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO game_state_snapshots (game_id, version, state_json, created_at) VALUES (?, ?, ?, ?)`,
		gameID, version, string(data), now()); err != nil {
		return 0, fmt.Errorf("create snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return version, nil
}

// GetLatestSnapshot returns the latest snapshot as a map, or nil if none exists.
func (s *Store) GetLatestSnapshot(ctx context.Context, gameID string) (map[string]interface{}, error) {
	var row struct {
		Version   int32  `db:"version"`
		StateJSON string `db:"state_json"`
	}
	err := s.conn.GetContext(ctx, &row,
		`SELECT version, state_json FROM game_state_snapshots WHERE game_id = ? ORDER BY version DESC LIMIT 1`, gameID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(row.StateJSON), &out); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if out == nil {
		out = make(map[string]interface{})
	}
	out["version"] = float64(row.Version)
	return out, nil
}

// UpdateGameStatus updates the game's status and optionally ended_at.
func (s *Store) UpdateGameStatus(ctx context.Context, gameID string, status string, endedAt *time.Time) error {
	var ended sql.NullString
	if endedAt != nil {
		ended = nullString(endedAt.UTC().Format(time.RFC3339Nano))
	}
	if _, err := s.conn.ExecContext(ctx, `UPDATE games SET status = ?, ended_at = ? WHERE id = ?`, status, ended, gameID); err != nil {
		return fmt.Errorf("update game status: %w", err)
	}
	return nil
}

// CreateGameEvent appends an event to the game log.
func (s *Store) CreateGameEvent(ctx context.Context, req store.CreateGameEventRequest) (*store.GameEvent, error) {
	payload := []byte("{}")
	if len(req.Payload) > 0 {
		var err error
		if payload, err = json.Marshal(req.Payload); err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
	}
	row := eventRow{ID: store.NewID(), GameID: req.GameID, Type: req.Type, PayloadJSON: string(payload), CreatedAt: now()}
	if req.PlayerID != nil {
		row.PlayerID = nullString(*req.PlayerID)
	}
	if _, err := s.conn.NamedExecContext(ctx,
		`INSERT INTO game_events (id, game_id, player_id, type, payload_json, created_at)
		 VALUES (:id, :game_id, :player_id, :type, :payload_json, :created_at)`, row); err != nil {
		return nil, fmt.Errorf("create game event: %w", err)
	}
	return row.toEvent(), nil
}

func (r eventRow) toEvent() *store.GameEvent {
	ev := &store.GameEvent{ID: r.ID, GameID: r.GameID, Type: r.Type, CreatedAt: parseTime(r.CreatedAt)}
	if r.PlayerID.Valid {
		pid := r.PlayerID.String
		ev.PlayerID = &pid
	}
	if err := json.Unmarshal([]byte(r.PayloadJSON), &ev.Payload); err != nil || ev.Payload == nil {
		ev.Payload = make(map[string]interface{})
	}
	return ev
}

// GetGameEvents returns every event of a game in insertion order.
func (s *Store) GetGameEvents(ctx context.Context, gameID string) ([]store.GameEvent, error) {
	var rows []eventRow
	if err := s.conn.SelectContext(ctx, &rows,
		`SELECT id, game_id, player_id, type, payload_json, created_at FROM game_events WHERE game_id = ? ORDER BY seq`, gameID); err != nil {
		return nil, fmt.Errorf("get game events: %w", err)
	}
	out := make([]store.GameEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.toEvent())
	}
	return out, nil
}

// CreateNightAction stores a submitted action. A second submission by the
// same actor for the same night fails with store.ErrDuplicateAction.
func (s *Store) CreateNightAction(ctx context.Context, req store.CreateNightActionRequest) (*store.NightAction, error) {
	targets := req.TargetIDs
	if targets == nil {
		targets = []string{}
	}
	tj, err := json.Marshal(targets)
	if err != nil {
		return nil, fmt.Errorf("marshal target_ids: %w", err)
	}
	row := actionRow{
		ID: store.NewID(), GameID: req.GameID, NightNumber: req.NightNumber, ActorID: req.ActorID,
		Role: req.Role, ActionKind: req.ActionKind, TargetID: nullString(req.TargetID),
		TargetsJSON: string(tj), CreatedAt: now(),
	}
	if _, err := s.conn.NamedExecContext(ctx,
		`INSERT INTO night_actions (id, game_id, night_number, actor_id, role, action_kind, target_id, target_ids_json, created_at)
		 VALUES (:id, :game_id, :night_number, :actor_id, :role, :action_kind, :target_id, :target_ids_json, :created_at)`, row); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateAction
		}
		return nil, fmt.Errorf("create night action: %w", err)
	}
	return row.toAction(), nil
}

func (r actionRow) toAction() *store.NightAction {
	a := &store.NightAction{
		ID: r.ID, GameID: r.GameID, NightNumber: r.NightNumber, ActorID: r.ActorID,
		Role: r.Role, ActionKind: r.ActionKind, CreatedAt: parseTime(r.CreatedAt),
	}
	if r.TargetID.Valid {
		a.TargetID = r.TargetID.String
	}
	if r.Result.Valid {
		a.Result = r.Result.String
	}
	_ = json.Unmarshal([]byte(r.TargetsJSON), &a.TargetIDs)
	return a
}

// GetNightActions returns the actions of one night in submission order.
func (s *Store) GetNightActions(ctx context.Context, gameID string, night int) ([]store.NightAction, error) {
	var rows []actionRow
	if err := s.conn.SelectContext(ctx, &rows,
		`SELECT id, game_id, night_number, actor_id, role, action_kind, target_id, target_ids_json, result, created_at
		 FROM night_actions WHERE game_id = ? AND night_number = ? ORDER BY seq`, gameID, night); err != nil {
		return nil, fmt.Errorf("get night actions: %w", err)
	}
	out := make([]store.NightAction, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.toAction())
	}
	return out, nil
}

// SetNightActionResult stores the resolved result of an action.
func (s *Store) SetNightActionResult(ctx context.Context, actionID string, result string) error {
	res, err := s.conn.ExecContext(ctx, `UPDATE night_actions SET result = ? WHERE id = ?`, result, actionID)
	if err != nil {
		return fmt.Errorf("set night action result: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("night action %s: %w", actionID, store.ErrNotFound)
	}
	return nil
}
