package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vntrieu/voidthreat/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "void.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndJoinGame(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.CreateGame(ctx, store.CreateGameRequest{DisplayName: "Mod", Password: "hunter2"})
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if !strings.HasPrefix(created.Game.Code, "VOID") || len(created.Game.Code) != 7 {
		t.Errorf("code: got %q", created.Game.Code)
	}
	if !created.Moderator.IsModerator || created.Moderator.Seat != 0 {
		t.Errorf("moderator: got %+v", created.Moderator)
	}

	if _, err := s.JoinGame(ctx, store.JoinGameRequest{Code: created.Game.Code, DisplayName: "A", Password: "nope"}); !errors.Is(err, store.ErrWrongPassword) {
		t.Errorf("wrong password: got %v", err)
	}
	for i, name := range []string{"A", "B", "C"} {
		resp, err := s.JoinGame(ctx, store.JoinGameRequest{Code: created.Game.Code, DisplayName: name, Password: "hunter2"})
		if err != nil {
			t.Fatalf("JoinGame %s: %v", name, err)
		}
		if resp.Player.Seat != i+1 {
			t.Errorf("%s seat: got %d want %d", name, resp.Player.Seat, i+1)
		}
	}

	players, err := s.GetGamePlayersInOrder(ctx, created.Game.ID)
	if err != nil {
		t.Fatalf("GetGamePlayersInOrder: %v", err)
	}
	if len(players) != 4 || !players[0].IsModerator || players[3].DisplayName != "C" {
		t.Errorf("players: got %+v", players)
	}

	if _, err := s.GetGameByCode(ctx, "VOID000"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing code: got %v", err)
	}
}

func TestJoinGame_AfterStart(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created, err := s.CreateGame(ctx, store.CreateGameRequest{DisplayName: "Mod"})
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if err := s.UpdateGameStatus(ctx, created.Game.ID, "in_progress", nil); err != nil {
		t.Fatalf("UpdateGameStatus: %v", err)
	}
	_, err = s.JoinGame(ctx, store.JoinGameRequest{Code: created.Game.Code, DisplayName: "Late"})
	if !errors.Is(err, store.ErrGameStarted) {
		t.Errorf("got %v want ErrGameStarted", err)
	}
}

func TestSnapshots_Versioned(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created, err := s.CreateGame(ctx, store.CreateGameRequest{DisplayName: "Mod"})
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	snap, err := s.GetLatestSnapshot(ctx, created.Game.ID)
	if err != nil {
		t.Fatalf("GetLatestSnapshot: %v", err)
	}
	if snap["status"] != "waiting" || snap["version"] != float64(1) {
		t.Errorf("lobby snapshot: got %v", snap)
	}
	v, err := s.CreateOrUpdateSnapshot(ctx, created.Game.ID, map[string]interface{}{"status": "in_progress"})
	if err != nil {
		t.Fatalf("CreateOrUpdateSnapshot: %v", err)
	}
	if v != 2 {
		t.Errorf("version: got %d want 2", v)
	}
	snap, _ = s.GetLatestSnapshot(ctx, created.Game.ID)
	if snap["status"] != "in_progress" {
		t.Errorf("latest: got %v", snap)
	}

	now := time.Now()
	if err := s.UpdateGameStatus(ctx, created.Game.ID, "finished", &now); err != nil {
		t.Fatalf("UpdateGameStatus: %v", err)
	}
	g, err := s.GetGameByCode(ctx, created.Game.Code)
	if err != nil {
		t.Fatalf("GetGameByCode: %v", err)
	}
	if g.Status != "finished" || g.EndedAt == nil {
		t.Errorf("game: got %+v", g)
	}
}

func TestNightActions_OncePerNight(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created, err := s.CreateGame(ctx, store.CreateGameRequest{DisplayName: "Mod"})
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	a, _ := s.JoinGame(ctx, store.JoinGameRequest{Code: created.Game.Code, DisplayName: "A"})
	b, _ := s.JoinGame(ctx, store.JoinGameRequest{Code: created.Game.Code, DisplayName: "B"})

	req := store.CreateNightActionRequest{
		GameID: created.Game.ID, NightNumber: 2, ActorID: a.Player.ID,
		Role: "alien", ActionKind: "collective_kill", TargetIDs: []string{b.Player.ID},
	}
	act, err := s.CreateNightAction(ctx, req)
	if err != nil {
		t.Fatalf("CreateNightAction: %v", err)
	}
	if _, err := s.CreateNightAction(ctx, req); !errors.Is(err, store.ErrDuplicateAction) {
		t.Errorf("duplicate: got %v want ErrDuplicateAction", err)
	}
	req.NightNumber = 3
	if _, err := s.CreateNightAction(ctx, req); err != nil {
		t.Errorf("next night: %v", err)
	}

	if err := s.SetNightActionResult(ctx, act.ID, "ALIEN"); err != nil {
		t.Fatalf("SetNightActionResult: %v", err)
	}
	got, err := s.GetNightActions(ctx, created.Game.ID, 2)
	if err != nil {
		t.Fatalf("GetNightActions: %v", err)
	}
	if len(got) != 1 || got[0].Result != "ALIEN" || len(got[0].TargetIDs) != 1 || got[0].TargetIDs[0] != b.Player.ID {
		t.Errorf("actions: got %+v", got)
	}
	if err := s.SetNightActionResult(ctx, "missing", "x"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing action: got %v", err)
	}
}

func TestGameEvents_Order(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created, err := s.CreateGame(ctx, store.CreateGameRequest{DisplayName: "Mod"})
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	pid := created.Moderator.ID
	for _, typ := range []string{"action", "night_action", "action"} {
		if _, err := s.CreateGameEvent(ctx, store.CreateGameEventRequest{
			GameID: created.Game.ID, PlayerID: &pid, Type: typ, Payload: map[string]interface{}{"t": typ},
		}); err != nil {
			t.Fatalf("CreateGameEvent: %v", err)
		}
	}
	events, err := s.GetGameEvents(ctx, created.Game.ID)
	if err != nil {
		t.Fatalf("GetGameEvents: %v", err)
	}
	if len(events) != 3 || events[1].Type != "night_action" || events[1].Payload["t"] != "night_action" {
		t.Errorf("events: got %+v", events)
	}
	if events[0].PlayerID == nil || *events[0].PlayerID != pid {
		t.Errorf("player id: got %v", events[0].PlayerID)
	}
}

func TestGetGameConfig(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created, err := s.CreateGame(ctx, store.CreateGameRequest{
		DisplayName: "Mod",
		Config:      map[string]interface{}{"first_night_kills": true, "min_players": 7},
	})
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	cfg, err := s.GetGameConfig(ctx, created.Game.ID)
	if err != nil {
		t.Fatalf("GetGameConfig: %v", err)
	}
	if cfg["first_night_kills"] != true || cfg["min_players"] != float64(7) {
		t.Errorf("config: got %v", cfg)
	}

	plain, err := s.CreateGame(ctx, store.CreateGameRequest{DisplayName: "Mod"})
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if cfg, err := s.GetGameConfig(ctx, plain.Game.ID); err != nil || len(cfg) != 0 {
		t.Errorf("empty config: got %v, %v", cfg, err)
	}
	if _, err := s.GetGameConfig(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing game: got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	insert := `INSERT INTO night_actions (id, game_id, night_number, actor_id, role, action_kind, target_ids_json, created_at)
		VALUES (?, ?, 1, ?, ?, 'scan', '[]', ?)`
	created, err := s.CreateGame(ctx, store.CreateGameRequest{DisplayName: "Mod"})
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if _, err := s.conn.ExecContext(ctx, insert, "a1", created.Game.ID, "p1", "bioscanner", now()); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	_, err = s.conn.ExecContext(ctx, insert, "a2", created.Game.ID, "p1", "bioscanner", now())
	if !isUniqueViolation(err) {
		t.Errorf("same night and actor: got %v", err)
	}
	_, err = s.conn.ExecContext(ctx, insert, "a3", created.Game.ID, "p2", nil, now())
	if err == nil || isUniqueViolation(err) {
		t.Errorf("NOT NULL failure is not a unique violation: got %v", err)
	}
	if isUniqueViolation(errors.New("UNIQUE constraint failed")) {
		t.Error("only driver errors carry a constraint code")
	}
}
