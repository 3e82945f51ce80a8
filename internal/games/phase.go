package games

import "fmt"

// Phase is a game phase.
type Phase string

// Phases.
const (
	PhaseSetup      Phase = "setup"
	PhaseNight1     Phase = "night1"
	PhaseDay1       Phase = "day1"
	PhaseNight2Plus Phase = "night2plus"
	PhaseDay2Plus   Phase = "day2plus"
	PhaseEnded      Phase = "ended"
)

// IsNight reports whether p is a night phase.
func (p Phase) IsNight() bool { return p == PhaseNight1 || p == PhaseNight2Plus }

// IsDay reports whether p is a day phase.
func (p Phase) IsDay() bool { return p == PhaseDay1 || p == PhaseDay2Plus }

// PhaseMachine is the phase/counter pair advanced by the game driver.
type PhaseMachine struct {
	Phase       Phase `json:"phase"`
	NightNumber int   `json:"night_number"`
	DayNumber   int   `json:"day_number"`
	RosterBound bool  `json:"roster_bound"`
}

// NewPhaseMachine returns a machine in setup.
func NewPhaseMachine() PhaseMachine {
	return PhaseMachine{Phase: PhaseSetup}
}

// BindRoster marks the roster as populated so setup may advance.
func (m *PhaseMachine) BindRoster() { m.RosterBound = true }

// Advance moves to the next phase.
func (m *PhaseMachine) Advance() error {
	switch m.Phase {
	case PhaseSetup:
		if !m.RosterBound {
			return fmt.Errorf("%w: roster not bound", ErrInvalidTransition)
		}
		m.Phase = PhaseNight1
		m.NightNumber = 1
	case PhaseNight1:
		m.Phase = PhaseDay1
		m.DayNumber = 1
	case PhaseDay1:
		m.Phase = PhaseNight2Plus
		m.NightNumber = 2
	case PhaseNight2Plus:
		m.Phase = PhaseDay2Plus
		m.DayNumber = max(2, m.DayNumber+1)
	case PhaseDay2Plus:
		m.Phase = PhaseNight2Plus
		m.NightNumber++
	case PhaseEnded:
		return fmt.Errorf("%w: game has ended", ErrInvalidTransition)
	default:
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidTransition, m.Phase)
	}
	return nil
}

// End forces the terminal phase. It is valid from any phase.
func (m *PhaseMachine) End() { m.Phase = PhaseEnded }

// Ended reports whether the machine is terminal.
func (m PhaseMachine) Ended() bool { return m.Phase == PhaseEnded }
