package games

import (
	"fmt"
	"strings"

	"github.com/vntrieu/voidthreat/internal/roles"
)

// NightAction is one player's submitted action for a night.
type NightAction struct {
	ID        string           `json:"id,omitempty"`
	Night     int              `json:"night_number"`
	Role      roles.Key        `json:"role,omitempty"`
	Kind      roles.ActionKind `json:"kind"`
	ActorID   string           `json:"actor_id"`
	TargetID  string           `json:"target_id,omitempty"`
	TargetIDs []string         `json:"target_ids,omitempty"`
	Result    string           `json:"result,omitempty"`
}

// targets returns the deduplicated target list of the action.
func (a NightAction) targets() []string {
	var out []string
	seen := map[string]bool{}
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	add(a.TargetID)
	for _, id := range a.TargetIDs {
		add(id)
	}
	return out
}

// ScanResult is a private result for one actor.
type ScanResult struct {
	ActorID     string           `json:"actor_id"`
	Kind        roles.ActionKind `json:"kind"`
	TargetID    string           `json:"target_id,omitempty"`
	TargetLabel string           `json:"target_label,omitempty"`
	Result      string           `json:"result"`
	Infiltrator *bool            `json:"infiltrator,omitempty"`
	RoleMatch   *bool            `json:"role_match,omitempty"`
}

// Scan result strings.
const (
	ResultAlien         = "ALIEN"
	ResultCrew          = "CREW"
	ResultAlienDetected = "ALIEN DETECTED"
	ResultNoAliens      = "NO ALIENS"
	ResultBioscanner    = "BIOSCANNER"
	ResultNotBioscanner = "NOT BIOSCANNER"
	ResultNone          = "NONE"
	ResultAwake         = "AWAKE"
	ResultAsleep        = "ASLEEP"
	ResultChecked       = "CHECKED"
	ResultHit           = "HIT"
	ResultMiss          = "MISS"
)

// NightInput is everything one night's resolution depends on.
type NightInput struct {
	Night   int
	Roster  Roster
	Links   []Link
	Carry   Carry
	Actions []NightAction
	Rules   RulesConfig
}

// NightResult is the outcome of one night. Roster, Links and Carry are the
// new values to persist; the input is left untouched.
type NightResult struct {
	Night       int                      `json:"night_number"`
	Roster      Roster                   `json:"-"`
	Links       []Link                   `json:"-"`
	Carry       Carry                    `json:"-"`
	Actions     []NightAction            `json:"-"`
	Eliminated  []string                 `json:"eliminated"`
	Protected   []string                 `json:"protected"`
	ScanResults map[string]ScanResult    `json:"scan_results"`
	Mutations   []Mutation               `json:"mutations,omitempty"`
	ForcedDay   []string                 `json:"forced_day,omitempty"`
	Silenced    []string                 `json:"silenced,omitempty"`
	DayShielded []string                 `json:"day_shielded,omitempty"`
	KillBlocked bool                     `json:"kill_blocked,omitempty"`
	Errors      []*ActionValidationError `json:"errors,omitempty"`
}

// Resolve resolves one night. It is pure: the same input always yields the
// same result. Steps run in a fixed order because later steps read what
// earlier ones produced: validation, protection, information, links,
// silence, nominations, protection filter, death cascade.
func Resolve(in NightInput) NightResult {
	rules := in.Rules.withDefaults()
	stamp := fmt.Sprintf("night-%d", in.Night)
	res := newResolution(in.Roster, in.Links, in.Carry, CauseNight, stamp)

	out := NightResult{Night: in.Night, ScanResults: map[string]ScanResult{}}
	actions := make([]NightAction, len(in.Actions))
	copy(actions, in.Actions)

	// Next night's kill modifiers come only from tonight's deaths.
	res.carry.BlockCollectiveKill = false
	res.carry.ExtraKillSlots = 0
	res.carry.LastProtected = map[string]string{}

	valid := make([]int, 0, len(actions))
	acted := map[string]bool{}
	for i, a := range actions {
		if err := validateNightAction(in, rules, a, acted); err != nil {
			if err.Reason != "" {
				out.Errors = append(out.Errors, err)
			}
			continue
		}
		acted[a.ActorID] = true
		valid = append(valid, i)
	}

	// Protection.
	protected := map[string]bool{}
	for _, i := range valid {
		a := actions[i]
		switch a.Kind {
		case roles.ActionProtect, roles.ActionHeal:
			if !protected[a.TargetID] {
				protected[a.TargetID] = true
				out.Protected = append(out.Protected, a.TargetID)
			}
			if a.Kind == roles.ActionHeal {
				res.carry.spend(a.ActorID, string(roles.ActionHeal))
			} else {
				res.carry.LastProtected[a.ActorID] = a.TargetID
			}
		}
	}

	// Information. Reads the roster as it stood at nightfall.
	for _, i := range valid {
		a := actions[i]
		sr, ok := information(in, a)
		if !ok {
			continue
		}
		actions[i].Result = sr.Result
		out.ScanResults[a.ActorID] = sr
	}

	// Links.
	for _, i := range valid {
		a := actions[i]
		if a.Kind != roles.ActionLink {
			continue
		}
		kind := LinkParasyte
		if actor, _ := in.Roster.Get(a.ActorID); actor.Def().Conditions.Has(roles.Transformation) {
			kind = LinkClone
		}
		res.links = append(res.links, Link{Kind: kind, Source: a.ActorID, Target: a.TargetID, Active: true})
	}

	// Silence and day protection.
	for _, i := range valid {
		a := actions[i]
		switch a.Kind {
		case roles.ActionSilence:
			out.Silenced = appendUnique(out.Silenced, a.TargetID)
		case roles.ActionProtectDay:
			out.DayShielded = appendUnique(out.DayShielded, a.TargetID)
			res.carry.LastProtected[a.ActorID] = a.TargetID
		}
	}

	// Nominations.
	var nominees []string
	byAliens := map[string]bool{}
	slots := 1 + in.Carry.ExtraKillSlots
	collective := 0
	for _, i := range valid {
		a := actions[i]
		switch a.Kind {
		case roles.ActionCollectiveKill:
			if in.Carry.BlockCollectiveKill {
				out.KillBlocked = true
				continue
			}
			for _, t := range a.targets() {
				if byAliens[t] {
					continue
				}
				if collective >= slots {
					out.Errors = append(out.Errors, invalid(a, "target %s exceeds %d kill slot(s)", t, slots))
					continue
				}
				collective++
				byAliens[t] = true
				nominees = appendUnique(nominees, t)
			}
		case roles.ActionKill:
			res.carry.spend(a.ActorID, string(roles.ActionKill))
			nominees = appendUnique(nominees, a.TargetID)
		case roles.ActionHunt:
			target, _ := in.Roster.Get(a.TargetID)
			if target.Faction == roles.Infiltrator {
				actions[i].Result = ResultHit
				nominees = appendUnique(nominees, a.TargetID)
			} else {
				actions[i].Result = ResultMiss
			}
		}
	}

	// Protection filter and attack effects.
	var primary []string
	for _, id := range nominees {
		if protected[id] {
			continue
		}
		pi := res.roster.Index(id)
		p := res.roster[pi]
		def := p.Def()
		switch {
		case def.Conditions.Has(roles.SurviveNightAttack):
			out.ForcedDay = appendUnique(out.ForcedDay, id)
		case def.Conditions.Has(roles.TransformationOnAttack) && byAliens[id]:
			res.mutate(pi, roles.Alien, roles.Infiltrator, ReasonAttackTransform)
		default:
			primary = append(primary, id)
		}
	}

	res.eliminate(primary, byAliens)

	if in.Night == 1 {
		for i, p := range res.roster {
			if p.Alive && p.Role == roles.Observer {
				res.mutate(i, roles.CrewMember, roles.Crew, ReasonObserverRevert)
			}
		}
	}

	out.Roster = res.roster
	out.Links = res.links
	out.Carry = res.carry
	out.Eliminated = res.eliminated
	out.Mutations = res.mutations
	out.Actions = actions
	return out
}

// validateNightAction returns nil for a usable action. An error with an
// empty Reason means the action is ignored without being reported.
func validateNightAction(in NightInput, rules RulesConfig, a NightAction, acted map[string]bool) *ActionValidationError {
	if a.Night != 0 && a.Night != in.Night {
		return invalid(a, "submitted for night %d", a.Night)
	}
	actor, ok := in.Roster.Get(a.ActorID)
	if !ok {
		return invalid(a, "unknown actor")
	}
	if !actor.Alive {
		return &ActionValidationError{ActorID: a.ActorID, Kind: a.Kind}
	}
	if acted[a.ActorID] {
		return invalid(a, "actor already acted this night")
	}
	if a.Role != "" && a.Role != actor.Role {
		return invalid(a, "actor is no longer %s", a.Role)
	}
	def := actor.Def()
	if !def.Allows(a.Kind) {
		return invalid(a, "%s cannot %s", actor.Role, a.Kind)
	}

	targets := a.targets()
	switch a.Kind {
	case roles.ActionObserve, roles.ActionSilentCheck, roles.ActionAwakeningCheck:
	case roles.ActionCollectiveKill:
		if len(targets) == 0 {
			return invalid(a, "missing target")
		}
	default:
		if a.TargetID == "" {
			return invalid(a, "missing target")
		}
	}
	for _, id := range targets {
		t, ok := in.Roster.Get(id)
		if !ok {
			return invalid(a, "unknown target %s", id)
		}
		if !t.Alive {
			return invalid(a, "target %s is not alive", id)
		}
	}

	switch a.Kind {
	case roles.ActionLink, roles.ActionObserve:
		if in.Night != 1 {
			return invalid(a, "%s is only allowed on night 1", a.Kind)
		}
		if a.Kind == roles.ActionLink && a.TargetID == a.ActorID {
			return invalid(a, "cannot link to self")
		}
	case roles.ActionKill, roles.ActionCollectiveKill, roles.ActionHunt:
		if in.Night == 1 && !rules.FirstNightKills {
			return invalid(a, "no kills on night 1")
		}
	}
	switch a.Kind {
	case roles.ActionKill, roles.ActionHeal:
		if in.Carry.HasSpent(a.ActorID, string(a.Kind)) {
			return invalid(a, "%s already used", a.Kind)
		}
	case roles.ActionProtect, roles.ActionProtectDay:
		if last, ok := in.Carry.LastProtected[a.ActorID]; ok && last == a.TargetID {
			return invalid(a, "cannot protect the same player two nights running")
		}
	case roles.ActionCollectiveKill:
		if def.Conditions.Has(roles.DelayedAwakening) && !in.Carry.Awakened {
			return invalid(a, "still asleep")
		}
	}
	return nil
}

// information computes the private result of an information action.
func information(in NightInput, a NightAction) (ScanResult, bool) {
	actor, _ := in.Roster.Get(a.ActorID)
	def := actor.Def()
	sr := ScanResult{ActorID: a.ActorID, Kind: a.Kind, TargetID: a.TargetID}
	if t, ok := in.Roster.Get(a.TargetID); ok {
		sr.TargetLabel = t.Label()
	}
	target, _ := in.Roster.Get(a.TargetID)

	switch a.Kind {
	case roles.ActionScan:
		switch def.ScanMode {
		case roles.ScanAdjacent:
			found := false
			for _, p := range in.Roster.Adjacent(a.TargetID) {
				if p.Faction == roles.Infiltrator {
					found = true
				}
			}
			sr.Infiltrator = &found
			sr.Result = ResultNoAliens
			if found {
				sr.Result = ResultAlienDetected
			}
		default:
			alien := target.Faction == roles.Infiltrator
			if target.Def().Conditions.Has(roles.FalseScan) {
				alien = !alien
			}
			sr.Infiltrator = &alien
			sr.Result = ResultCrew
			if alien {
				sr.Result = ResultAlien
			}
		}
	case roles.ActionDualScan:
		alien := target.Faction == roles.Infiltrator
		match := target.Role == def.ScanRole
		sr.Infiltrator = &alien
		sr.RoleMatch = &match
		first, second := ResultCrew, ResultNotBioscanner
		if alien {
			first = ResultAlien
		}
		if match {
			second = ResultBioscanner
		}
		sr.Result = first + " / " + second
	case roles.ActionObserve:
		sr.Result = ResultNone
		var labels []string
		for _, p := range in.Roster.Living() {
			if p.Role == roles.Bioscanner {
				labels = append(labels, p.Label())
				sr.TargetID = p.ID
			}
		}
		if len(labels) > 0 {
			sr.Result = ResultBioscanner
			sr.TargetLabel = strings.Join(labels, ", ")
		}
	case roles.ActionAwakeningCheck:
		sr.Result = ResultAsleep
		if in.Carry.Awakened {
			sr.Result = ResultAwake
		}
	case roles.ActionSilentCheck:
		sr.Result = ResultChecked
	default:
		return ScanResult{}, false
	}
	return sr, true
}

func appendUnique(list []string, id string) []string {
	for _, x := range list {
		if x == id {
			return list
		}
	}
	return append(list, id)
}
