package games

import (
	"fmt"
	"sort"

	"github.com/vntrieu/voidthreat/internal/roles"
)

// abilityDoubleVote is the Spent entry for a used captain's double vote.
const abilityDoubleVote = "double_vote"

// Ballot is one day vote. Double asks for the captain's once-per-game
// double weight.
type Ballot struct {
	VoterID  string `json:"voter_id"`
	TargetID string `json:"target_id"`
	Double   bool   `json:"double,omitempty"`
}

// Tally is the count of a day vote.
type Tally struct {
	Counts    map[string]int `json:"counts"`
	TargetID  string         `json:"target_id,omitempty"`
	Tie       bool           `json:"tie,omitempty"`
	DoubledBy string         `json:"doubled_by,omitempty"`
	Rejected  []string       `json:"rejected,omitempty"`
}

// TallyVotes counts ballots from living, unsilenced voters. The plurality
// target wins; a tie eliminates nobody. Rejected lists voters whose ballot
// was not counted.
func TallyVotes(r Roster, ballots []Ballot, silenced []string, carry Carry) Tally {
	t := Tally{Counts: map[string]int{}}
	muted := map[string]bool{}
	for _, id := range silenced {
		muted[id] = true
	}
	seen := map[string]bool{}
	for _, b := range ballots {
		voter, ok := r.Get(b.VoterID)
		target, tok := r.Get(b.TargetID)
		if !ok || !voter.Alive || muted[b.VoterID] || seen[b.VoterID] || !tok || !target.Alive {
			t.Rejected = append(t.Rejected, b.VoterID)
			continue
		}
		seen[b.VoterID] = true
		weight := 1
		if b.Double && t.DoubledBy == "" && voter.Def().Conditions.Has(roles.DoubleVote) && !carry.HasSpent(voter.ID, abilityDoubleVote) {
			weight = 2
			t.DoubledBy = voter.ID
		}
		t.Counts[b.TargetID] += weight
	}

	ids := make([]string, 0, len(t.Counts))
	for id := range t.Counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	best := 0
	for _, id := range ids {
		switch n := t.Counts[id]; {
		case n > best:
			best = n
			t.TargetID = id
			t.Tie = false
		case n == best:
			t.Tie = true
		}
	}
	if t.Tie {
		t.TargetID = ""
	}
	return t
}

// DayInput is everything one day's elimination depends on.
type DayInput struct {
	Day    int
	Roster Roster
	Links  []Link
	Carry  Carry
	// TargetID is the player voted out; empty for no elimination.
	TargetID string
	// ForcedDay players survived a night attack and die today regardless of the vote.
	ForcedDay   []string
	DayShielded []string
	// RevengeTargetID is a tragic hero's pick, used if a hero died today
	// or is owed a kill from the night.
	RevengeTargetID string
	// DoubledBy is the captain whose double vote was counted, if any.
	DoubledBy string
}

// DayResult is the outcome of a day. Roster, Links and Carry are the new
// values to persist.
type DayResult struct {
	Day        int        `json:"day_number"`
	Roster     Roster     `json:"-"`
	Links      []Link     `json:"-"`
	Carry      Carry      `json:"-"`
	Eliminated []string   `json:"eliminated"`
	Voted      string     `json:"voted,omitempty"`
	Revenge    string     `json:"revenge,omitempty"`
	Mutations  []Mutation `json:"mutations,omitempty"`
}

// ResolveDay applies the day's eliminations: forced deaths first, then the
// vote target, then any tragic hero revenge. A target immune to day
// elimination fails the whole call with ErrDayImmune.
func ResolveDay(in DayInput) (DayResult, error) {
	if in.TargetID != "" {
		t, ok := in.Roster.Get(in.TargetID)
		if !ok {
			return DayResult{}, fmt.Errorf("%w: %s", ErrNotInGame, in.TargetID)
		}
		if !t.Alive {
			return DayResult{}, fmt.Errorf("%w: target %s is not alive", ErrInvalidMove, in.TargetID)
		}
		if t.Def().Conditions.Has(roles.DayEliminationImmunity) {
			return DayResult{}, fmt.Errorf("%w: %s", ErrDayImmune, t.Role)
		}
		for _, id := range in.DayShielded {
			if id == in.TargetID {
				return DayResult{}, fmt.Errorf("%w: protected by the ship doctor", ErrDayImmune)
			}
		}
	}

	res := newResolution(in.Roster, in.Links, in.Carry, CauseDay, fmt.Sprintf("day-%d", in.Day))
	out := DayResult{Day: in.Day}
	if in.DoubledBy != "" {
		res.carry.spend(in.DoubledBy, abilityDoubleVote)
	}

	res.eliminate(in.ForcedDay, nil)
	if in.TargetID != "" {
		before := len(res.eliminated)
		res.eliminate([]string{in.TargetID}, nil)
		if len(res.eliminated) > before {
			out.Voted = in.TargetID
		}
	}

	owed := len(res.carry.PendingRevenge) > 0
	for _, id := range res.eliminated {
		if p, _ := in.Roster.Get(id); p.Def().Conditions.Has(roles.InstantKillOnDeath) {
			owed = true
		}
	}
	if owed && in.RevengeTargetID != "" {
		if t, ok := res.roster.Get(in.RevengeTargetID); ok && t.Alive {
			res.eliminate([]string{in.RevengeTargetID}, nil)
			out.Revenge = in.RevengeTargetID
		}
	}
	res.carry.PendingRevenge = nil

	out.Roster = res.roster
	out.Links = res.links
	out.Carry = res.carry
	out.Eliminated = res.eliminated
	out.Mutations = res.mutations
	return out, nil
}
