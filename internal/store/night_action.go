package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgUniqueViolation is the SQLSTATE for a unique constraint failure.
const pgUniqueViolation = "23505"

// NightActionStore records night actions, one per (game, night, actor).
type NightActionStore struct {
	pool *pgxpool.Pool
}

// NewNightActionStore creates a new NightActionStore.
func NewNightActionStore(pool *pgxpool.Pool) *NightActionStore {
	return &NightActionStore{pool: pool}
}

const nightActionColumns = `id, game_id, night_number, actor_id, role, action_kind, target_id, target_ids_json, result, created_at`

func scanNightAction(row pgx.Row) (*NightAction, error) {
	var (
		id, gameID, actorID, targetID pgtype.UUID
		a                             NightAction
		targetsJSON                   []byte
		result                        pgtype.Text
		created                       pgtype.Timestamptz
	)
	if err := row.Scan(&id, &gameID, &a.NightNumber, &actorID, &a.Role, &a.ActionKind,
		&targetID, &targetsJSON, &result, &created); err != nil {
		return nil, err
	}
	a.ID = uuidToString(id)
	a.GameID = uuidToString(gameID)
	a.ActorID = uuidToString(actorID)
	a.TargetID = uuidToString(targetID)
	if len(targetsJSON) > 0 {
		_ = json.Unmarshal(targetsJSON, &a.TargetIDs)
	}
	if result.Valid {
		a.Result = result.String
	}
	a.CreatedAt = timestamptzToTime(created)
	return &a, nil
}

// CreateNightAction stores a submitted action. A second submission by the
// same actor for the same night fails with ErrDuplicateAction.
func (s *NightActionStore) CreateNightAction(ctx context.Context, req CreateNightActionRequest) (*NightAction, error) {
	gameUUID, err := stringToUUID(req.GameID)
	if err != nil {
		return nil, fmt.Errorf("invalid game_id: %w", err)
	}
	actorUUID, err := stringToUUID(req.ActorID)
	if err != nil {
		return nil, fmt.Errorf("invalid actor_id: %w", err)
	}
	targetUUID, err := optionalUUID(req.TargetID)
	if err != nil {
		return nil, fmt.Errorf("invalid target_id: %w", err)
	}
	targets := req.TargetIDs
	if targets == nil {
		targets = []string{}
	}
	targetsJSON, err := json.Marshal(targets)
	if err != nil {
		return nil, fmt.Errorf("marshal target_ids: %w", err)
	}
	a, err := scanNightAction(s.pool.QueryRow(ctx,
		`INSERT INTO night_actions (game_id, night_number, actor_id, role, action_kind, target_id, target_ids_json)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+nightActionColumns,
		gameUUID, req.NightNumber, actorUUID, req.Role, req.ActionKind, targetUUID, targetsJSON))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrDuplicateAction
		}
		return nil, fmt.Errorf("create night action: %w", err)
	}
	return a, nil
}

// GetNightActions returns the actions of one night in submission order.
func (s *NightActionStore) GetNightActions(ctx context.Context, gameID string, night int) ([]NightAction, error) {
	gameUUID, err := stringToUUID(gameID)
	if err != nil {
		return nil, fmt.Errorf("invalid game_id: %w", err)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+nightActionColumns+` FROM night_actions
		 WHERE game_id = $1 AND night_number = $2 ORDER BY created_at, id`, gameUUID, night)
	if err != nil {
		return nil, fmt.Errorf("get night actions: %w", err)
	}
	defer rows.Close()
	var out []NightAction
	for rows.Next() {
		a, err := scanNightAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan night action: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// SetNightActionResult stores the resolved result of an action.
func (s *NightActionStore) SetNightActionResult(ctx context.Context, actionID string, result string) error {
	id, err := stringToUUID(actionID)
	if err != nil {
		return fmt.Errorf("invalid action id: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE night_actions SET result = $2 WHERE id = $1`, id, result)
	if err != nil {
		return fmt.Errorf("set night action result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("night action %s: %w", actionID, ErrNotFound)
	}
	return nil
}
