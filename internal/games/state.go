package games

import (
	"encoding/json"

	"github.com/vntrieu/voidthreat/internal/roles"
)

// Game statuses.
const (
	StatusWaiting    = "waiting"
	StatusInProgress = "in_progress"
	StatusFinished   = "finished"
)

// Assignment modes.
const (
	ModeStandard = "standard"
	ModeCustom   = "custom"
)

// GameState is the full engine state, serialized to JSON for snapshots.
type GameState struct {
	GameID      string       `json:"game_id"`
	Status      string       `json:"status"`
	Mode        string       `json:"mode,omitempty"`
	Seed        int64        `json:"seed,string,omitempty"`
	ModeratorID string       `json:"moderator_id,omitempty"`
	Machine     PhaseMachine `json:"machine"`
	Players     Roster       `json:"players"`
	Links       []Link       `json:"links,omitempty"`
	Carry       Carry        `json:"carry"`
	Balance     roles.Score  `json:"balance"`
	Balanced    bool         `json:"is_balanced"`
	// Day flags produced by the last night and consumed by the next day.
	ForcedDay   []string `json:"forced_day,omitempty"`
	Silenced    []string `json:"silenced,omitempty"`
	DayShielded []string `json:"day_shielded,omitempty"`
	// Ballots: voter -> ballot for the current day.
	Ballots   map[string]Ballot `json:"ballots,omitempty"`
	LastNight *NightResult      `json:"last_night,omitempty"`
	LastDay   *DayResult        `json:"last_day,omitempty"`
	Verdict   Verdict           `json:"verdict"`
	// Rules are the game's own overrides of the server rules, taken from
	// its config_json at start.
	Rules   map[string]interface{} `json:"rules,omitempty"`
	Version int                    `json:"version,omitempty"`
}

// Phase returns the current phase.
func (s *GameState) Phase() Phase { return s.Machine.Phase }

// Clone returns a deep copy through the JSON form.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		out := *s
		return &out
	}
	var out GameState
	if err := json.Unmarshal(b, &out); err != nil {
		cp := *s
		return &cp
	}
	return &out
}

// ToMap converts state to a map for the JSON snapshot column.
func (s *GameState) ToMap() map[string]interface{} {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}

// StateFromMap reconstructs GameState from a snapshot map (e.g. from DB).
func StateFromMap(m map[string]interface{}) *GameState {
	if m == nil {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	s := &GameState{}
	if err := json.Unmarshal(b, s); err != nil {
		return nil
	}
	if v, ok := floatToInt(m["version"]); ok {
		s.Version = v
	}
	return s
}

// IsModerator reports whether playerID runs this game.
func (s *GameState) IsModerator(playerID string) bool {
	return s.ModeratorID != "" && s.ModeratorID == playerID
}

// PublicView is the state as seen by viewerID. Roles of living players are
// hidden except the viewer's own; the moderator and finished games see all.
func (s *GameState) PublicView(viewerID string) map[string]interface{} {
	if s == nil {
		return map[string]interface{}{}
	}
	revealAll := s.IsModerator(viewerID) || s.Status == StatusFinished
	players := make([]map[string]interface{}, 0, len(s.Players))
	for _, p := range s.Players {
		pm := map[string]interface{}{
			"id":       p.ID,
			"name":     p.Name,
			"seat":     p.Seat,
			"is_alive": p.Alive,
		}
		if p.Cause != CauseNone {
			pm["cause"] = p.Cause
		}
		if revealAll || p.ID == viewerID || !p.Alive {
			pm["role"] = p.Role
			pm["faction"] = p.Faction
		}
		players = append(players, pm)
	}
	m := map[string]interface{}{
		"game_id":      s.GameID,
		"status":       s.Status,
		"phase":        s.Machine.Phase,
		"night_number": s.Machine.NightNumber,
		"day_number":   s.Machine.DayNumber,
		"moderator_id": s.ModeratorID,
		"players":      players,
		"version":      s.Version,
	}
	if len(s.Silenced) > 0 {
		m["silenced"] = s.Silenced
	}
	if s.LastNight != nil {
		m["last_night_eliminated"] = s.LastNight.Eliminated
	}
	if s.LastDay != nil {
		m["last_day_eliminated"] = s.LastDay.Eliminated
	}
	if s.Verdict.Decided() {
		m["verdict"] = s.Verdict
	}
	if revealAll {
		m["balance"] = s.Balance
		m["is_balanced"] = s.Balanced
		m["links"] = s.Links
		if s.LastNight != nil {
			m["last_night"] = s.LastNight
		}
	}
	return m
}

func floatToInt(a interface{}) (int, bool) {
	switch v := a.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int32:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	default:
		return 0, false
	}
}

func stringSlice(a interface{}) ([]string, bool) {
	switch v := a.(type) {
	case []string:
		return v, true
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	}
	return nil, false
}
