package games

import "github.com/vntrieu/voidthreat/internal/roles"

// PhaseDef defines a phase: name and allowed move actions.
type PhaseDef struct {
	Name           Phase    `json:"name"`
	AllowedActions []string `json:"allowed_actions"`
}

// RulesConfig holds the phase table and numeric rules for one game.
type RulesConfig struct {
	Phases     []PhaseDef `json:"phases"`
	MinPlayers int        `json:"min_players"`
	MaxPlayers int        `json:"max_players"`
	// InfiltratorRatio sizes the infiltrator team in standard assignment.
	InfiltratorRatio float64 `json:"infiltrator_ratio,omitempty"`
	// BalanceTolerance is the largest |total_score| reported as balanced.
	BalanceTolerance int `json:"balance_tolerance,omitempty"`
	// FirstNightKills allows kill actions on night 1 (off in the standard rules).
	FirstNightKills bool `json:"first_night_kills,omitempty"`
}

// Move actions.
const (
	ActionStartGame    = "start_game"
	ActionNightAction  = "night_action"
	ActionResolveNight = "resolve_night"
	ActionDayVote      = "day_vote"
	ActionAdvance      = "advance"
)

// StandardPhases is the phase table of a standard game.
var StandardPhases = []PhaseDef{
	{Name: PhaseSetup, AllowedActions: []string{ActionStartGame}},
	{Name: PhaseNight1, AllowedActions: []string{ActionNightAction, ActionResolveNight}},
	{Name: PhaseDay1, AllowedActions: []string{ActionDayVote, ActionAdvance}},
	{Name: PhaseNight2Plus, AllowedActions: []string{ActionNightAction, ActionResolveNight}},
	{Name: PhaseDay2Plus, AllowedActions: []string{ActionDayVote, ActionAdvance}},
	{Name: PhaseEnded, AllowedActions: []string{}},
}

// StandardConfig returns the standard rules.
func StandardConfig() RulesConfig {
	return RulesConfig{
		Phases:           StandardPhases,
		MinPlayers:       5,
		MaxPlayers:       25,
		InfiltratorRatio: 0.3,
		BalanceTolerance: roles.DefaultTolerance,
	}
}

// AllowedActions returns the move actions permitted in phase.
func (c RulesConfig) AllowedActions(phase Phase) []string {
	for _, p := range c.Phases {
		if p.Name == phase {
			return p.AllowedActions
		}
	}
	return nil
}

func (c RulesConfig) withDefaults() RulesConfig {
	def := StandardConfig()
	if c.Phases == nil {
		c.Phases = def.Phases
	}
	if c.MinPlayers <= 0 {
		c.MinPlayers = def.MinPlayers
	}
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = def.MaxPlayers
	}
	if c.InfiltratorRatio <= 0 {
		c.InfiltratorRatio = def.InfiltratorRatio
	}
	if c.BalanceTolerance <= 0 {
		c.BalanceTolerance = def.BalanceTolerance
	}
	return c
}

// LoadConfigFromMap reads overrides from a game's config_json. Unknown or
// missing fields fall back to StandardConfig.
func LoadConfigFromMap(configJSON map[string]interface{}) RulesConfig {
	return StandardConfig().WithOverrides(configJSON)
}

// WithOverrides returns c with the recognized keys of overrides applied:
// balance_tolerance, first_night_kills, min_players and max_players.
// Player bounds outside the standard range are ignored.
func (c RulesConfig) WithOverrides(overrides map[string]interface{}) RulesConfig {
	if len(overrides) == 0 {
		return c
	}
	def := StandardConfig()
	if v, ok := floatToInt(overrides["balance_tolerance"]); ok && v > 0 {
		c.BalanceTolerance = v
	}
	if v, ok := overrides["first_night_kills"].(bool); ok {
		c.FirstNightKills = v
	}
	if v, ok := floatToInt(overrides["min_players"]); ok && v >= def.MinPlayers && v <= def.MaxPlayers {
		c.MinPlayers = v
	}
	if v, ok := floatToInt(overrides["max_players"]); ok && v >= def.MinPlayers && v <= def.MaxPlayers {
		c.MaxPlayers = v
	}
	if c.MinPlayers > c.MaxPlayers {
		c.MinPlayers, c.MaxPlayers = def.MinPlayers, def.MaxPlayers
	}
	return c
}

// ruleOverrideKeys are the config_json keys kept with a started game.
var ruleOverrideKeys = []string{"balance_tolerance", "first_night_kills", "min_players", "max_players"}

// pickRuleOverrides copies the rule keys out of a game's config_json.
func pickRuleOverrides(configJSON map[string]interface{}) map[string]interface{} {
	var out map[string]interface{}
	for _, k := range ruleOverrideKeys {
		if v, ok := configJSON[k]; ok {
			if out == nil {
				out = make(map[string]interface{})
			}
			out[k] = v
		}
	}
	return out
}
