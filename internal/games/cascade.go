package games

import "github.com/vntrieu/voidthreat/internal/roles"

// Mutation records a role/faction change applied during resolution. It is
// kept for logs and replay; state is never re-derived from it.
type Mutation struct {
	PlayerID    string        `json:"player_id"`
	Reason      string        `json:"reason"`
	FromRole    roles.Key     `json:"from_role"`
	ToRole      roles.Key     `json:"to_role"`
	FromFaction roles.Faction `json:"from_faction"`
	ToFaction   roles.Faction `json:"to_faction"`
}

// Mutation reasons.
const (
	ReasonAttackTransform = "attack_transform"
	ReasonClone           = "clone"
	ReasonPromotion       = "promotion"
	ReasonObserverRevert  = "observer_revert"
)

// resolution is the working copy shared by night and day resolution.
type resolution struct {
	roster     Roster
	links      []Link
	carry      Carry
	eliminated []string
	mutations  []Mutation
	stamp      string
	cause      Cause
}

func newResolution(r Roster, links []Link, carry Carry, cause Cause, stamp string) *resolution {
	return &resolution{
		roster: r.Clone(),
		links:  cloneLinks(links),
		carry:  carry.Clone(),
		cause:  cause,
		stamp:  stamp,
	}
}

func (res *resolution) mutate(i int, to roles.Key, faction roles.Faction, reason string) {
	p := &res.roster[i]
	res.mutations = append(res.mutations, Mutation{
		PlayerID: p.ID, Reason: reason,
		FromRole: p.Role, ToRole: to,
		FromFaction: p.Faction, ToFaction: faction,
	})
	p.Role = to
	p.Faction = faction
}

// eliminate kills the given players and runs every death cascade. byAliens
// marks which primaries were collective-kill victims. Link cascades are
// bounded by roster size.
func (res *resolution) eliminate(primary []string, byAliens map[string]bool) {
	type queued struct {
		id    string
		depth int
	}
	queue := make([]queued, 0, len(primary))
	for _, id := range primary {
		queue = append(queue, queued{id: id})
	}
	limit := len(res.roster)
	bioscannerDied := false

	for len(queue) > 0 {
		q := queue[0]
		queue = queue[1:]
		i := res.roster.Index(q.id)
		if i < 0 || !res.roster[i].Alive {
			continue
		}
		victim := res.roster[i]
		res.roster[i].Alive = false
		res.roster[i].Cause = res.cause
		res.eliminated = append(res.eliminated, victim.ID)

		def := victim.Def()
		if victim.Faction == roles.Infiltrator {
			res.carry.Awakened = true
		}
		if def.Conditions.Has(roles.DoubleKillOnDeath) {
			res.carry.ExtraKillSlots++
		}
		if def.Conditions.Has(roles.BlockNextKill) && byAliens[victim.ID] {
			res.carry.BlockCollectiveKill = true
		}
		if def.Conditions.Has(roles.InstantKillOnDeath) && res.cause == CauseNight {
			res.carry.PendingRevenge = append(res.carry.PendingRevenge, victim.ID)
		}
		if victim.Role == roles.Bioscanner {
			bioscannerDied = true
		}

		for li := range res.links {
			l := &res.links[li]
			if !l.Active {
				continue
			}
			switch l.Kind {
			case LinkRomanticPair, LinkParasyte:
				partner, ok := l.Partner(victim.ID)
				if !ok {
					continue
				}
				l.Active = false
				l.TriggeredAt = res.stamp
				if q.depth+1 <= limit {
					queue = append(queue, queued{id: partner, depth: q.depth + 1})
				}
			case LinkClone:
				if l.Target != victim.ID {
					continue
				}
				l.Active = false
				l.TriggeredAt = res.stamp
				if ci := res.roster.Index(l.Source); ci >= 0 && res.roster[ci].Alive {
					res.mutate(ci, victim.Role, victim.Faction, ReasonClone)
				}
			}
		}
	}

	if bioscannerDied {
		res.promoteJuniorScanner()
	}
}

// promoteJuniorScanner gives the lowest-seated living junior scanner the
// bioscanner role when no bioscanner is left alive.
func (res *resolution) promoteJuniorScanner() {
	for _, p := range res.roster {
		if p.Alive && p.Role == roles.Bioscanner {
			return
		}
	}
	best := -1
	for i, p := range res.roster {
		if p.Alive && p.Role == roles.JuniorScanner && (best < 0 || p.Seat < res.roster[best].Seat) {
			best = i
		}
	}
	if best >= 0 {
		res.mutate(best, roles.Bioscanner, roles.Crew, ReasonPromotion)
	}
}
