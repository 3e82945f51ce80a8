package games

import (
	"fmt"
	"math"

	"github.com/vntrieu/voidthreat/internal/roles"
)

// Slot is one seat's worth of an assignment.
type Slot struct {
	Role    roles.Key     `json:"role"`
	Faction roles.Faction `json:"faction"`
	Grade   int           `json:"grade"`
}

// Assignment is a role multiset with its balance. It is recomputed on
// demand and discarded after binding to seats.
type Assignment struct {
	Slots       []Slot      `json:"roles"`
	Score       roles.Score `json:"balance"`
	Balanced    bool        `json:"is_balanced"`
	PlayerCount int         `json:"player_count"`
}

// Keys returns the role of each slot in order.
func (a Assignment) Keys() []roles.Key {
	out := make([]roles.Key, len(a.Slots))
	for i, s := range a.Slots {
		out[i] = s.Role
	}
	return out
}

// curatedInfiltrators is the pick order for standard infiltrator slots.
var curatedInfiltrators = []roles.Key{
	roles.Alien, roles.AlienPup, roles.SleepAlien, roles.RogueAlien,
	roles.AlienScanner, roles.ParasyteAlien, roles.HumanoidAlien, roles.InfectedCrewmember,
}

// Assigner builds role multisets using a RulesConfig's ratio and tolerance.
type Assigner struct {
	ratio     float64
	tolerance int
}

// NewAssigner returns an assigner for cfg; zero fields take standard values.
func NewAssigner(cfg RulesConfig) *Assigner {
	cfg = cfg.withDefaults()
	return &Assigner{ratio: cfg.InfiltratorRatio, tolerance: cfg.BalanceTolerance}
}

// AssignStandard builds an assignment for n players with the standard rules.
func AssignStandard(n int) (Assignment, error) {
	return NewAssigner(StandardConfig()).Standard(n)
}

// AssignCustom expands a moderator count map with the standard tolerance.
func AssignCustom(counts map[roles.Key]int) Assignment {
	return NewAssigner(StandardConfig()).Custom(counts)
}

// Standard places one bioscanner, round(n*ratio) infiltrators from the
// curated list, then fills each remaining seat greedily with whichever
// candidate brings total_score closest to zero. Ties go to the earlier
// catalog entry. The fill is greedy per seat and not globally optimal;
// its output is relied on as-is.
func (a *Assigner) Standard(n int) (Assignment, error) {
	if n < 5 {
		return Assignment{}, fmt.Errorf("%w: %d (minimum 5)", ErrInvalidPlayerCount, n)
	}
	keys := make([]roles.Key, 0, n)
	used := make(map[roles.Key]bool)
	score := roles.Score{}
	push := func(k roles.Key) {
		keys = append(keys, k)
		score = score.With(k)
		if k != roles.CrewMember {
			used[k] = true
		}
	}

	push(roles.Bioscanner)

	target := int(math.Round(float64(n) * a.ratio))
	if target < 1 {
		target = 1
	}
	for i := 0; i < target; i++ {
		pick := roles.Alien
		if i < len(curatedInfiltrators) {
			pick = curatedInfiltrators[i]
		}
		push(pick)
	}

	var candidates []roles.Key
	for _, d := range roles.All() {
		if d.Key == roles.CrewMember || (!used[d.Key] && d.Faction != roles.Infiltrator) {
			candidates = append(candidates, d.Key)
		}
	}

	for len(keys) < n {
		best := roles.CrewMember
		bestAbs := math.MaxInt
		for _, k := range candidates {
			if k != roles.CrewMember && used[k] {
				continue
			}
			next := score.With(k).Total
			if next < 0 {
				next = -next
			}
			if next < bestAbs {
				bestAbs = next
				best = k
			}
		}
		push(best)
	}

	return a.build(keys), nil
}

// Custom expands counts in catalog order, skipping non-positive and unknown
// entries. Balance and infiltrator presence are left to the caller.
func (a *Assigner) Custom(counts map[roles.Key]int) Assignment {
	var keys []roles.Key
	for _, k := range roles.Keys() {
		for i := 0; i < counts[k]; i++ {
			keys = append(keys, k)
		}
	}
	return a.build(keys)
}

func (a *Assigner) build(keys []roles.Key) Assignment {
	slots := make([]Slot, len(keys))
	for i, k := range keys {
		d := roles.MustLookup(k)
		slots[i] = Slot{Role: k, Faction: d.Faction, Grade: d.Grade}
	}
	score := roles.ScoreOf(keys)
	return Assignment{
		Slots:       slots,
		Score:       score,
		Balanced:    score.Balanced(a.tolerance),
		PlayerCount: len(slots),
	}
}

// HasInfiltrator reports whether any slot belongs to the infiltrator faction.
func (a Assignment) HasInfiltrator() bool {
	for _, s := range a.Slots {
		if s.Faction == roles.Infiltrator {
			return true
		}
	}
	return false
}
