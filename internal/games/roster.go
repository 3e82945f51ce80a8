package games

import (
	"fmt"
	"sort"

	"github.com/vntrieu/voidthreat/internal/roles"
)

// Cause records how a player was eliminated.
type Cause string

const (
	CauseNone  Cause = ""
	CauseNight Cause = "night"
	CauseDay   Cause = "day"
)

// Player is one seat in the roster. Faction always matches the catalog
// faction of Role.
type Player struct {
	ID      string        `json:"id"`
	Name    string        `json:"name,omitempty"`
	Seat    int           `json:"seat"`
	Role    roles.Key     `json:"role,omitempty"`
	Faction roles.Faction `json:"faction,omitempty"`
	Alive   bool          `json:"is_alive"`
	Cause   Cause         `json:"cause,omitempty"`
}

// Label is the display name used in private results.
func (p Player) Label() string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("Seat %d", p.Seat)
}

// Def returns the catalog entry of the player's current role.
func (p Player) Def() roles.Definition {
	d, _ := roles.Lookup(p.Role)
	return d
}

// Roster is the ordered seat list. Dead seats stay in place.
type Roster []Player

// Seat is a player waiting to be bound to a role.
type Seat struct {
	ID   string
	Name string
}

// BindRoster gives seats 1..N to players in order and hands out the
// assignment's roles in slot order.
func BindRoster(players []Seat, a Assignment) (Roster, error) {
	if len(players) != len(a.Slots) {
		return nil, fmt.Errorf("%w: %d players for %d roles", ErrInvalidPlayerCount, len(players), len(a.Slots))
	}
	r := make(Roster, len(players))
	for i, p := range players {
		r[i] = Player{
			ID:      p.ID,
			Name:    p.Name,
			Seat:    i + 1,
			Role:    a.Slots[i].Role,
			Faction: a.Slots[i].Faction,
			Alive:   true,
		}
	}
	return r, nil
}

// Clone returns a copy of the roster.
func (r Roster) Clone() Roster {
	if r == nil {
		return nil
	}
	out := make(Roster, len(r))
	copy(out, r)
	return out
}

// Index returns the position of id, or -1.
func (r Roster) Index(id string) int {
	for i := range r {
		if r[i].ID == id {
			return i
		}
	}
	return -1
}

// Get returns the player with id.
func (r Roster) Get(id string) (Player, bool) {
	if i := r.Index(id); i >= 0 {
		return r[i], true
	}
	return Player{}, false
}

// Living returns the living players sorted by seat.
func (r Roster) Living() []Player {
	out := make([]Player, 0, len(r))
	for _, p := range r {
		if p.Alive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seat < out[j].Seat })
	return out
}

// CountAlive returns the number of living players in faction f.
func (r Roster) CountAlive(f roles.Faction) int {
	n := 0
	for _, p := range r {
		if p.Alive && p.Faction == f {
			n++
		}
	}
	return n
}

// Adjacent returns the target and its living left and right neighbours on
// the seat ring, without duplicates. Empty if target is not alive.
func (r Roster) Adjacent(targetID string) []Player {
	living := r.Living()
	at := -1
	for i, p := range living {
		if p.ID == targetID {
			at = i
			break
		}
	}
	if at < 0 {
		return nil
	}
	out := []Player{living[at]}
	left := (at - 1 + len(living)) % len(living)
	if left != at {
		out = append(out, living[left])
	}
	right := (at + 1) % len(living)
	if right != at && right != left {
		out = append(out, living[right])
	}
	return out
}

// LinkKind is the kind of standing relationship between two players.
type LinkKind string

const (
	LinkRomanticPair LinkKind = "romantic_pair"
	LinkClone        LinkKind = "clone"
	LinkParasyte     LinkKind = "parasyte"
)

// Link ties two players. Clone links are directed (Source becomes Target's
// role); the others are symmetric. A fired link is never reactivated.
type Link struct {
	Kind        LinkKind `json:"kind"`
	Source      string   `json:"source"`
	Target      string   `json:"target"`
	Active      bool     `json:"active"`
	TriggeredAt string   `json:"triggered_at,omitempty"`
}

// Partner returns the other end of a symmetric link.
func (l Link) Partner(id string) (string, bool) {
	switch id {
	case l.Source:
		return l.Target, true
	case l.Target:
		return l.Source, true
	}
	return "", false
}

func cloneLinks(ls []Link) []Link {
	if ls == nil {
		return nil
	}
	out := make([]Link, len(ls))
	copy(out, ls)
	return out
}

// Carry is the state one resolution hands to the next. It must be persisted
// between calls.
type Carry struct {
	// BlockCollectiveKill suppresses every collective kill this night.
	BlockCollectiveKill bool `json:"block_collective_kill,omitempty"`
	// ExtraKillSlots widens this night's collective kill.
	ExtraKillSlots int `json:"extra_kill_slots,omitempty"`
	// Awakened is set once any infiltrator has died.
	Awakened bool `json:"awakened,omitempty"`
	// Spent lists once-per-game abilities used, by player.
	Spent map[string][]string `json:"spent,omitempty"`
	// LastProtected is each protector's target from the previous night.
	LastProtected map[string]string `json:"last_protected,omitempty"`
	// PendingRevenge lists tragic heroes killed at night, owed a day kill.
	PendingRevenge []string `json:"pending_revenge,omitempty"`
}

// Clone deep-copies the carry.
func (c Carry) Clone() Carry {
	out := c
	if c.Spent != nil {
		out.Spent = make(map[string][]string, len(c.Spent))
		for k, v := range c.Spent {
			out.Spent[k] = append([]string(nil), v...)
		}
	}
	if c.LastProtected != nil {
		out.LastProtected = make(map[string]string, len(c.LastProtected))
		for k, v := range c.LastProtected {
			out.LastProtected[k] = v
		}
	}
	out.PendingRevenge = append([]string(nil), c.PendingRevenge...)
	return out
}

// HasSpent reports whether playerID already used ability.
func (c Carry) HasSpent(playerID, ability string) bool {
	for _, a := range c.Spent[playerID] {
		if a == ability {
			return true
		}
	}
	return false
}

func (c *Carry) spend(playerID, ability string) {
	if c.Spent == nil {
		c.Spent = make(map[string][]string)
	}
	c.Spent[playerID] = append(c.Spent[playerID], ability)
}
