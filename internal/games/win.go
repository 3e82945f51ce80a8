package games

import "github.com/vntrieu/voidthreat/internal/roles"

// Winner names who won. Empty means the game goes on.
type Winner string

const (
	WinnerNone         Winner = ""
	WinnerCrew         Winner = "crew"
	WinnerInfiltrators Winner = "infiltrators"
	WinnerSolo         Winner = "solo"
)

// Verdict is the result of a win check. Role and PlayerID are set for solo wins.
type Verdict struct {
	Winner   Winner    `json:"winner,omitempty"`
	Role     roles.Key `json:"role,omitempty"`
	PlayerID string    `json:"player_id,omitempty"`
}

// Decided reports whether the game is over.
func (v Verdict) Decided() bool { return v.Winner != WinnerNone }

// Evaluate checks win conditions against the living roster. It has no side
// effects; ending the game is left to the caller.
func Evaluate(r Roster) Verdict {
	crew := r.CountAlive(roles.Crew)
	aliens := r.CountAlive(roles.Infiltrator)

	if aliens == 0 {
		for _, p := range r.Living() {
			d := p.Def()
			if d.Faction == roles.Independent && d.Conditions.Has(roles.AlienHunter) && crew == 1 {
				return Verdict{Winner: WinnerSolo, Role: p.Role, PlayerID: p.ID}
			}
		}
		return Verdict{Winner: WinnerCrew}
	}
	if aliens >= crew {
		return Verdict{Winner: WinnerInfiltrators}
	}
	if aliens == 1 {
		for _, p := range r.Living() {
			if p.Faction == roles.Infiltrator && p.Def().Conditions.Has(roles.SoloWin) {
				return Verdict{Winner: WinnerSolo, Role: p.Role, PlayerID: p.ID}
			}
		}
	}
	return Verdict{}
}
