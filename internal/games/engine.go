package games

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/vntrieu/voidthreat/internal/roles"
	"github.com/vntrieu/voidthreat/internal/store"
)

// ApplyMoveResult is returned by ApplyMove: new state, events to broadcast, and optional error.
type ApplyMoveResult struct {
	State  *GameState
	Events []BroadcastEvent
	Error  error
}

// BroadcastEvent is an event for clients. A non-empty Recipient limits
// delivery to that player.
type BroadcastEvent struct {
	Event     string                 `json:"event"`
	Payload   map[string]interface{} `json:"payload"`
	Recipient string                 `json:"-"`
}

// GameStore is the roster provider and snapshot store.
type GameStore interface {
	GetLatestSnapshot(ctx context.Context, gameID string) (map[string]interface{}, error)
	CreateOrUpdateSnapshot(ctx context.Context, gameID string, stateJSON map[string]interface{}) (int32, error)
	UpdateGameStatus(ctx context.Context, gameID string, status string, endedAt *time.Time) error
	GetGamePlayersInOrder(ctx context.Context, gameID string) ([]store.GamePlayer, error)
	GetGameConfig(ctx context.Context, gameID string) (map[string]interface{}, error)
}

// GameEventStore appends to the game log.
type GameEventStore interface {
	CreateGameEvent(ctx context.Context, req store.CreateGameEventRequest) (*store.GameEvent, error)
}

// NightActionStore is the action collector. It rejects a second action by
// the same actor in the same night.
type NightActionStore interface {
	CreateNightAction(ctx context.Context, req store.CreateNightActionRequest) (*store.NightAction, error)
	GetNightActions(ctx context.Context, gameID string, night int) ([]store.NightAction, error)
	SetNightActionResult(ctx context.Context, actionID string, result string) error
}

// Engine applies moves and drives phase transitions. Moves for one game are
// serialized; different games proceed independently.
type Engine struct {
	store   GameStore
	events  GameEventStore
	actions NightActionStore
	config  RulesConfig
	newSeed func() (int64, error)

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates an engine with the given stores and config.
func NewEngine(store GameStore, events GameEventStore, actions NightActionStore, config RulesConfig) *Engine {
	return &Engine{
		store:   store,
		events:  events,
		actions: actions,
		config:  config.withDefaults(),
		newSeed: NewSeed,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Config returns the engine's rules.
func (e *Engine) Config() RulesConfig { return e.config }

// rulesFor returns the server rules with the game's own overrides applied.
func (e *Engine) rulesFor(state *GameState) RulesConfig {
	return e.config.WithOverrides(state.Rules)
}

func (e *Engine) lockGame(gameID string) func() {
	e.mu.Lock()
	l, ok := e.locks[gameID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[gameID] = l
	}
	e.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// GetState loads the latest snapshot for the game. If no snapshot, returns nil.
func (e *Engine) GetState(ctx context.Context, gameID string) (*GameState, error) {
	m, err := e.store.GetLatestSnapshot(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	return StateFromMap(m), nil
}

// ApplyMove validates the move, applies it, persists event + snapshot, and
// updates game status when the game starts or ends.
// moveType is "vote" or "action"; for "action", payload["action"] names the action.
func (e *Engine) ApplyMove(ctx context.Context, gameID string, playerID string, moveType string, payload map[string]interface{}) ApplyMoveResult {
	unlock := e.lockGame(gameID)
	defer unlock()

	state, err := e.GetState(ctx, gameID)
	if err != nil {
		return ApplyMoveResult{Error: fmt.Errorf("get state: %w", err)}
	}
	if state == nil || (state.Phase() == PhaseSetup && len(state.Players) == 0) {
		if moveType != "action" || actionName(payload) != ActionStartGame {
			return ApplyMoveResult{Error: fmt.Errorf("%w: use action start_game", ErrNotStarted)}
		}
		return e.bootstrapAndStart(ctx, gameID, playerID, payload)
	}
	if state.Status == StatusFinished {
		return ApplyMoveResult{Error: ErrGameFinished}
	}

	var next *GameState
	var events []BroadcastEvent
	switch moveType {
	case "vote":
		next, events, err = e.applyVote(state, playerID, payload)
	case "action":
		next, events, err = e.applyAction(ctx, state, playerID, payload)
	default:
		return ApplyMoveResult{Error: fmt.Errorf("%w: unknown move type %q", ErrInvalidMove, moveType)}
	}
	if err != nil {
		return ApplyMoveResult{Error: err}
	}
	if err := e.persist(ctx, next, playerID, moveType, payload); err != nil {
		return ApplyMoveResult{Error: err}
	}
	return ApplyMoveResult{State: next, Events: events}
}

func (e *Engine) persist(ctx context.Context, next *GameState, playerID, moveType string, payload map[string]interface{}) error {
	eventPayload := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		eventPayload[k] = v
	}
	eventPayload["move_type"] = moveType
	pid := playerID
	if _, err := e.events.CreateGameEvent(ctx, store.CreateGameEventRequest{
		GameID:   next.GameID,
		PlayerID: &pid,
		Type:     moveType,
		Payload:  eventPayload,
	}); err != nil {
		return fmt.Errorf("persist event: %w", err)
	}

	version, err := e.store.CreateOrUpdateSnapshot(ctx, next.GameID, next.ToMap())
	if err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	next.Version = int(version)

	if next.Status == StatusFinished {
		now := time.Now()
		if err := e.store.UpdateGameStatus(ctx, next.GameID, StatusFinished, &now); err != nil {
			log.Printf("update game status failed game_id=%s err=%v", next.GameID, err)
		}
	}
	return nil
}

// bootstrapAndStart builds the roster from the joined players, assigns and
// shuffles roles, and moves the game into night 1.
func (e *Engine) bootstrapAndStart(ctx context.Context, gameID, playerID string, payload map[string]interface{}) ApplyMoveResult {
	players, err := e.store.GetGamePlayersInOrder(ctx, gameID)
	if err != nil {
		return ApplyMoveResult{Error: fmt.Errorf("get players: %w", err)}
	}
	var seats []Seat
	moderator := ""
	for _, p := range players {
		if p.IsModerator {
			if p.ID == playerID {
				moderator = p.ID
			}
			continue
		}
		seats = append(seats, Seat{ID: p.ID, Name: p.DisplayName})
	}
	if moderator == "" {
		return ApplyMoveResult{Error: ErrNotModerator}
	}
	gameConfig, err := e.store.GetGameConfig(ctx, gameID)
	if err != nil {
		return ApplyMoveResult{Error: fmt.Errorf("get game config: %w", err)}
	}
	overrides := pickRuleOverrides(gameConfig)
	rules := e.config.WithOverrides(overrides)
	n := len(seats)
	if n < rules.MinPlayers || n > rules.MaxPlayers {
		return ApplyMoveResult{Error: fmt.Errorf("%w: %d not in range [%d,%d]", ErrInvalidPlayerCount, n, rules.MinPlayers, rules.MaxPlayers)}
	}

	mode, _ := payload["mode"].(string)
	if mode == "" {
		mode = ModeStandard
	}
	assigner := NewAssigner(rules)
	var a Assignment
	switch mode {
	case ModeStandard:
		a, err = assigner.Standard(n)
		if err != nil {
			return ApplyMoveResult{Error: err}
		}
	case ModeCustom:
		counts, err := roleCounts(payload["roles"])
		if err != nil {
			return ApplyMoveResult{Error: err}
		}
		a = assigner.Custom(counts)
		if a.PlayerCount != n {
			return ApplyMoveResult{Error: fmt.Errorf("%w: %d roles for %d players", ErrInvalidPlayerCount, a.PlayerCount, n)}
		}
		if !a.HasInfiltrator() {
			return ApplyMoveResult{Error: fmt.Errorf("%w: custom roles must include at least one infiltrator", ErrInvalidMove)}
		}
	default:
		return ApplyMoveResult{Error: fmt.Errorf("%w: unknown mode %q", ErrInvalidMove, mode)}
	}

	seed, err := e.newSeed()
	if err != nil {
		return ApplyMoveResult{Error: err}
	}
	shuffled := ShuffleSeeded(a, seed)
	roster, err := BindRoster(seats, shuffled)
	if err != nil {
		return ApplyMoveResult{Error: err}
	}
	machine := NewPhaseMachine()
	machine.BindRoster()
	if err := machine.Advance(); err != nil {
		return ApplyMoveResult{Error: err}
	}

	state := &GameState{
		GameID:      gameID,
		Status:      StatusInProgress,
		Mode:        mode,
		Seed:        seed,
		ModeratorID: moderator,
		Machine:     machine,
		Players:     roster,
		Balance:     a.Score,
		Balanced:    a.Balanced,
		Rules:       overrides,
	}
	if err := e.persist(ctx, state, playerID, "action", payload); err != nil {
		return ApplyMoveResult{Error: err}
	}
	if err := e.store.UpdateGameStatus(ctx, gameID, StatusInProgress, nil); err != nil {
		return ApplyMoveResult{Error: fmt.Errorf("update game status: %w", err)}
	}
	log.Printf("game started game_id=%s players=%d mode=%s total_score=%d", gameID, n, mode, a.Score.Total)

	events := []BroadcastEvent{{Event: "game_started", Payload: map[string]interface{}{
		"phase": state.Phase(), "night_number": machine.NightNumber, "player_count": n, "mode": mode,
	}}}
	for _, p := range roster {
		d := p.Def()
		events = append(events, BroadcastEvent{Event: "role_assigned", Recipient: p.ID, Payload: map[string]interface{}{
			"role": p.Role, "faction": p.Faction, "name": d.Name, "description": d.Description, "seat": p.Seat,
		}})
	}
	events = append(events, BroadcastEvent{Event: "roster", Recipient: moderator, Payload: map[string]interface{}{
		"players": roster, "balance": a.Score, "is_balanced": a.Balanced,
	}})
	return ApplyMoveResult{State: state, Events: events}
}

func (e *Engine) applyAction(ctx context.Context, state *GameState, playerID string, payload map[string]interface{}) (*GameState, []BroadcastEvent, error) {
	action := actionName(payload)
	if action == "" {
		return nil, nil, fmt.Errorf("%w: payload must include action or type", ErrInvalidMove)
	}
	allowed := false
	for _, a := range e.rulesFor(state).AllowedActions(state.Phase()) {
		if a == action {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, nil, fmt.Errorf("%w: action %q not allowed in phase %s", ErrInvalidTransition, action, state.Phase())
	}

	switch action {
	case ActionStartGame:
		return nil, nil, fmt.Errorf("%w: game already started", ErrInvalidMove)
	case ActionNightAction:
		return e.submitNightAction(ctx, state, playerID, payload)
	}

	if !state.IsModerator(playerID) {
		return nil, nil, ErrNotModerator
	}
	switch action {
	case ActionResolveNight:
		return e.resolveNight(ctx, state)
	case ActionDayVote:
		target, _ := payload["target_id"].(string)
		revenge, _ := payload["revenge_target_id"].(string)
		return e.resolveDay(state, target, revenge, target == "")
	case ActionAdvance:
		revenge, _ := payload["revenge_target_id"].(string)
		return e.resolveDay(state, "", revenge, false)
	}
	return nil, nil, fmt.Errorf("action %q not implemented", action)
}

func (e *Engine) submitNightAction(ctx context.Context, state *GameState, playerID string, payload map[string]interface{}) (*GameState, []BroadcastEvent, error) {
	actor, ok := state.Players.Get(playerID)
	if !ok {
		return nil, nil, ErrNotInGame
	}
	if !actor.Alive {
		return nil, nil, fmt.Errorf("%w: eliminated players cannot act", ErrInvalidMove)
	}
	kind, _ := payload["kind"].(string)
	if !actor.Def().Allows(roles.ActionKind(kind)) {
		return nil, nil, fmt.Errorf("%w: %s cannot %q", ErrInvalidMove, actor.Role, kind)
	}
	target, _ := payload["target_id"].(string)
	targets, _ := stringSlice(payload["target_ids"])

	// Checked against the resolver's rules before the once-per-night slot is taken.
	night := state.Machine.NightNumber
	in := NightInput{Night: night, Roster: state.Players, Links: state.Links, Carry: state.Carry, Rules: e.rulesFor(state)}
	candidate := NightAction{Night: night, Role: actor.Role, Kind: roles.ActionKind(kind), ActorID: playerID, TargetID: target, TargetIDs: targets}
	if verr := validateNightAction(in, in.Rules.withDefaults(), candidate, map[string]bool{}); verr != nil {
		return nil, nil, verr
	}

	_, err := e.actions.CreateNightAction(ctx, store.CreateNightActionRequest{
		GameID:      state.GameID,
		NightNumber: night,
		ActorID:     playerID,
		Role:        string(actor.Role),
		ActionKind:  kind,
		TargetID:    target,
		TargetIDs:   targets,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("record night action: %w", err)
	}
	next := state.Clone()
	events := []BroadcastEvent{
		{Event: "action_accepted", Recipient: playerID, Payload: map[string]interface{}{"kind": kind, "night_number": night}},
		{Event: "action_recorded", Recipient: state.ModeratorID, Payload: map[string]interface{}{"player_id": playerID, "kind": kind, "night_number": night}},
	}
	return next, events, nil
}

func (e *Engine) resolveNight(ctx context.Context, state *GameState) (*GameState, []BroadcastEvent, error) {
	night := state.Machine.NightNumber
	stored, err := e.actions.GetNightActions(ctx, state.GameID, night)
	if err != nil {
		return nil, nil, fmt.Errorf("load night actions: %w", err)
	}
	actions := make([]NightAction, 0, len(stored))
	for _, a := range stored {
		actions = append(actions, NightAction{
			ID: a.ID, Night: a.NightNumber, Role: roles.Key(a.Role), Kind: roles.ActionKind(a.ActionKind),
			ActorID: a.ActorID, TargetID: a.TargetID, TargetIDs: a.TargetIDs,
		})
	}

	result := Resolve(NightInput{
		Night:   night,
		Roster:  state.Players,
		Links:   state.Links,
		Carry:   state.Carry,
		Actions: actions,
		Rules:   e.rulesFor(state),
	})
	for _, a := range result.Actions {
		if a.ID == "" || a.Result == "" {
			continue
		}
		if err := e.actions.SetNightActionResult(ctx, a.ID, a.Result); err != nil {
			log.Printf("store action result failed game_id=%s action_id=%s err=%v", state.GameID, a.ID, err)
		}
	}
	log.Printf("night resolved game_id=%s night=%d actions=%d eliminated=%d errors=%d",
		state.GameID, night, len(actions), len(result.Eliminated), len(result.Errors))

	next := state.Clone()
	next.Players = result.Roster
	next.Links = result.Links
	next.Carry = result.Carry
	next.ForcedDay = result.ForcedDay
	next.Silenced = result.Silenced
	next.DayShielded = result.DayShielded
	next.Ballots = nil
	next.LastNight = &result

	events := []BroadcastEvent{{Event: "night_resolved", Payload: map[string]interface{}{
		"night_number": night, "eliminated": nonNil(result.Eliminated), "silenced": nonNil(result.Silenced),
	}}}
	actors := make([]string, 0, len(result.ScanResults))
	for id := range result.ScanResults {
		actors = append(actors, id)
	}
	sort.Strings(actors)
	for _, id := range actors {
		sr := result.ScanResults[id]
		events = append(events, BroadcastEvent{Event: "scan_result", Recipient: id, Payload: toPayload(sr)})
	}
	events = append(events, BroadcastEvent{Event: "night_report", Recipient: state.ModeratorID, Payload: toPayload(result)})

	return e.finishOrAdvance(next, events)
}

// resolveDay eliminates the vote target (or the tallied ballots when
// useBallots is set), plus forced and revenge deaths.
func (e *Engine) resolveDay(state *GameState, target, revenge string, useBallots bool) (*GameState, []BroadcastEvent, error) {
	var tally *Tally
	if useBallots && len(state.Ballots) > 0 {
		t := TallyVotes(state.Players, state.orderedBallots(), state.Silenced, state.Carry)
		tally = &t
		target = t.TargetID
	}
	in := DayInput{
		Day:             state.Machine.DayNumber,
		Roster:          state.Players,
		Links:           state.Links,
		Carry:           state.Carry,
		TargetID:        target,
		ForcedDay:       state.ForcedDay,
		DayShielded:     state.DayShielded,
		RevengeTargetID: revenge,
	}
	if tally != nil {
		in.DoubledBy = tally.DoubledBy
	}
	result, err := ResolveDay(in)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("day resolved game_id=%s day=%d eliminated=%d", state.GameID, in.Day, len(result.Eliminated))

	next := state.Clone()
	next.Players = result.Roster
	next.Links = result.Links
	next.Carry = result.Carry
	next.ForcedDay = nil
	next.Silenced = nil
	next.DayShielded = nil
	next.Ballots = nil
	next.LastDay = &result

	payload := map[string]interface{}{
		"day_number": in.Day, "eliminated": nonNil(result.Eliminated), "voted": result.Voted, "revenge": result.Revenge,
	}
	if tally != nil {
		payload["tally"] = toPayload(*tally)
	}
	events := []BroadcastEvent{{Event: "day_resolved", Payload: payload}}
	return e.finishOrAdvance(next, events)
}

// finishOrAdvance ends the game on a decided verdict, otherwise advances the phase.
func (e *Engine) finishOrAdvance(next *GameState, events []BroadcastEvent) (*GameState, []BroadcastEvent, error) {
	if v := Evaluate(next.Players); v.Decided() {
		next.Machine.End()
		next.Status = StatusFinished
		next.Verdict = v
		reveal := make(map[string]interface{}, len(next.Players))
		for _, p := range next.Players {
			reveal[p.ID] = p.Role
		}
		log.Printf("game ended game_id=%s winner=%s", next.GameID, v.Winner)
		events = append(events, BroadcastEvent{Event: "game_ended", Payload: map[string]interface{}{
			"winner": v.Winner, "role": v.Role, "player_id": v.PlayerID, "roles": reveal,
		}})
		return next, events, nil
	}
	if err := next.Machine.Advance(); err != nil {
		return nil, nil, err
	}
	events = append(events, BroadcastEvent{Event: "phase_changed", Payload: map[string]interface{}{
		"phase": next.Phase(), "night_number": next.Machine.NightNumber, "day_number": next.Machine.DayNumber,
	}})
	return next, events, nil
}

func (e *Engine) applyVote(state *GameState, playerID string, payload map[string]interface{}) (*GameState, []BroadcastEvent, error) {
	if !state.Phase().IsDay() {
		return nil, nil, fmt.Errorf("%w: vote not allowed in phase %s", ErrInvalidMove, state.Phase())
	}
	voter, ok := state.Players.Get(playerID)
	if !ok {
		return nil, nil, ErrNotInGame
	}
	if !voter.Alive {
		return nil, nil, fmt.Errorf("%w: eliminated players cannot vote", ErrInvalidMove)
	}
	for _, id := range state.Silenced {
		if id == playerID {
			return nil, nil, fmt.Errorf("%w: silenced players cannot vote today", ErrInvalidMove)
		}
	}
	target, _ := payload["target_id"].(string)
	if t, ok := state.Players.Get(target); !ok || !t.Alive {
		return nil, nil, fmt.Errorf("%w: payload must include target_id of a living player", ErrInvalidMove)
	}
	if _, exists := state.Ballots[playerID]; exists {
		return nil, nil, fmt.Errorf("%w: already voted", ErrInvalidMove)
	}
	double, _ := payload["double"].(bool)

	next := state.Clone()
	if next.Ballots == nil {
		next.Ballots = make(map[string]Ballot)
	}
	next.Ballots[playerID] = Ballot{VoterID: playerID, TargetID: target, Double: double}
	return next, []BroadcastEvent{{Event: "vote_recorded", Payload: map[string]interface{}{"player_id": playerID}}}, nil
}

// orderedBallots returns ballots in voter seat order.
func (s *GameState) orderedBallots() []Ballot {
	out := make([]Ballot, 0, len(s.Ballots))
	for _, p := range s.Players {
		if b, ok := s.Ballots[p.ID]; ok {
			out = append(out, b)
		}
	}
	return out
}

// StateForPlayer returns the public view of the game for viewerID.
func (e *Engine) StateForPlayer(ctx context.Context, gameID, viewerID string) (map[string]interface{}, error) {
	state, err := e.GetState(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return map[string]interface{}{}, nil
	}
	return state.PublicView(viewerID), nil
}

func actionName(payload map[string]interface{}) string {
	action, _ := payload["action"].(string)
	if action == "" {
		action, _ = payload["type"].(string)
	}
	return action
}

func roleCounts(v interface{}) (map[roles.Key]int, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: payload must include roles: {role: count}", ErrInvalidMove)
	}
	out := make(map[roles.Key]int, len(m))
	for k, raw := range m {
		if !roles.Known(roles.Key(k)) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRole, k)
		}
		n, ok := floatToInt(raw)
		if !ok {
			return nil, fmt.Errorf("%w: role count for %q must be a number", ErrInvalidMove, k)
		}
		out[roles.Key(k)] = n
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func toPayload(v interface{}) map[string]interface{} {
	b, err := json.Marshal(v)
	if err != nil {
		return map[string]interface{}{}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]interface{}{}
	}
	return m
}

// DecodePayload ensures payload is map[string]interface{} (from JSON).
func DecodePayload(raw interface{}) map[string]interface{} {
	if raw == nil {
		return nil
	}
	if m, ok := raw.(map[string]interface{}); ok {
		return m
	}
	if b, ok := raw.([]byte); ok {
		var m map[string]interface{}
		if json.Unmarshal(b, &m) == nil {
			return m
		}
	}
	return nil
}

// IsClientError reports whether err is caused by the move rather than the server.
func IsClientError(err error) bool {
	var ave *ActionValidationError
	switch {
	case errors.Is(err, ErrInvalidPlayerCount), errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrUnknownRole), errors.Is(err, ErrDayImmune),
		errors.Is(err, ErrGameFinished), errors.Is(err, ErrNotModerator),
		errors.Is(err, ErrNotInGame), errors.Is(err, ErrNotStarted),
		errors.Is(err, ErrInvalidMove),
		errors.Is(err, store.ErrDuplicateAction), errors.As(err, &ave):
		return true
	}
	return false
}
