// Package roles holds the fixed role catalog and balance scoring.
package roles

import (
	"errors"
	"fmt"
)

// ErrUnknownRole is returned when a key is not in the catalog.
var ErrUnknownRole = errors.New("unknown role")

// Key identifies a role in the catalog (e.g. "bioscanner").
type Key string

// Faction is the team a role plays for.
type Faction string

// Factions.
const (
	Crew        Faction = "crew"
	Infiltrator Faction = "infiltrator"
	Independent Faction = "independent"
)

// ActionKind is the kind of night action a role may submit.
type ActionKind string

// Night action kinds.
const (
	ActionScan           ActionKind = "scan"
	ActionProtect        ActionKind = "protect"
	ActionProtectDay     ActionKind = "protect_day"
	ActionLink           ActionKind = "link"
	ActionSilence        ActionKind = "silence"
	ActionKill           ActionKind = "kill"
	ActionHeal           ActionKind = "heal"
	ActionHunt           ActionKind = "hunt"
	ActionSilentCheck    ActionKind = "silent_check"
	ActionObserve        ActionKind = "observe"
	ActionDualScan       ActionKind = "dual_scan"
	ActionCollectiveKill ActionKind = "collective_kill"
	ActionAwakeningCheck ActionKind = "awakening_check"
)

// Condition is a closed set of capability flags carried by a role.
type Condition uint32

// Capability flags.
const (
	InstantKillOnDeath Condition = 1 << iota
	DeathLink
	Transformation
	TransformationOnAttack
	DoubleKillOnDeath
	BlockNextKill
	FalseScan
	SoloWin
	AlienHunter
	SurviveNightAttack
	DayEliminationImmunity
	DoubleVote
	DelayedAwakening
)

var conditionNames = []struct {
	c    Condition
	name string
}{
	{InstantKillOnDeath, "instant_kill_on_death"},
	{DeathLink, "death_link"},
	{Transformation, "transformation"},
	{TransformationOnAttack, "transformation_on_attack"},
	{DoubleKillOnDeath, "double_kill_on_death"},
	{BlockNextKill, "block_next_kill"},
	{FalseScan, "false_scan"},
	{SoloWin, "solo_win"},
	{AlienHunter, "alien_hunter"},
	{SurviveNightAttack, "survive_night_attack"},
	{DayEliminationImmunity, "day_elimination_immunity"},
	{DoubleVote, "double_vote"},
	{DelayedAwakening, "delayed_awakening"},
}

// Has reports whether every flag in c2 is set.
func (c Condition) Has(c2 Condition) bool { return c&c2 == c2 && c2 != 0 }

// Names returns the snake_case tag for each set flag.
func (c Condition) Names() []string {
	var out []string
	for _, cn := range conditionNames {
		if c&cn.c != 0 {
			out = append(out, cn.name)
		}
	}
	return out
}

// ScanMode selects how an information action reads its target.
type ScanMode int

const (
	ScanNone ScanMode = iota
	// ScanFaction answers infiltrator or crew; false_scan targets read inverted.
	ScanFaction
	// ScanAdjacent answers whether the target or its seat neighbours include an infiltrator.
	ScanAdjacent
	// ScanDual answers two questions: infiltrator? and is it Definition.ScanRole?
	ScanDual
)

// Definition is an immutable catalog entry.
type Definition struct {
	Key         Key          `json:"key"`
	Name        string       `json:"name"`
	Faction     Faction      `json:"faction"`
	Grade       int          `json:"grade"`
	Description string       `json:"description"`
	Actions     []ActionKind `json:"actions,omitempty"`
	Conditions  Condition    `json:"-"`
	ScanMode    ScanMode     `json:"-"`
	ScanRole    Key          `json:"-"`
}

// Allows reports whether the role may submit the given action kind.
func (d Definition) Allows(kind ActionKind) bool {
	for _, a := range d.Actions {
		if a == kind {
			return true
		}
	}
	return false
}

// Role keys.
const (
	CrewMember         Key = "crew_member"
	Bioscanner         Key = "bioscanner"
	JuniorScanner      Key = "junior_scanner"
	DNATracker         Key = "dna_tracker"
	Observer           Key = "observer"
	TragicHero         Key = "tragic_hero"
	Scientist          Key = "scientist"
	Watchman           Key = "watchman"
	ShipCaptain        Key = "ship_captain"
	VIPPassenger       Key = "vip_passenger"
	ShipDoctor         Key = "ship_doctor"
	Detective          Key = "detective"
	Silencer           Key = "silencer"
	Soldier            Key = "soldier"
	Clone              Key = "clone"
	FalsePositive      Key = "false_positive"
	QuarantinedCrew    Key = "quarantined_crew"
	Alien              Key = "alien"
	AlienPup           Key = "alien_pup"
	SleepAlien         Key = "sleep_alien"
	RogueAlien         Key = "rogue_alien"
	AlienScanner       Key = "alien_scanner"
	ParasyteAlien      Key = "parasyte_alien"
	HumanoidAlien      Key = "humanoid_alien"
	InfectedCrewmember Key = "infected_crewmember"
	Predator           Key = "predator"
)

// catalog is in display order; assignment tie-breaks depend on it.
var catalog = []Definition{
	{Key: CrewMember, Name: "Crew Member", Faction: Crew, Grade: 1,
		Description: "No special ability. Win condition: Find and eliminate all aliens."},
	{Key: Bioscanner, Name: "Bioscanner", Faction: Crew, Grade: 7,
		Description: "Each night, scan 1 player. Learn: Alien or Crew (yes/no only). Deceived by Humanoid (appears as Crew).",
		Actions:     []ActionKind{ActionScan}, ScanMode: ScanFaction},
	{Key: JuniorScanner, Name: "Junior Scanner", Faction: Crew, Grade: 4,
		Description: "Called every night for mystery (even if Bioscanner alive). Becomes Bioscanner if original dies.",
		Actions:     []ActionKind{ActionSilentCheck}},
	{Key: DNATracker, Name: "DNA Tracker", Faction: Crew, Grade: 3,
		Description: "Each night, scan 1 player. Learn: Alien or Crew (yes/no only). Deceived by Humanoid (appears as Crew).",
		Actions:     []ActionKind{ActionScan}, ScanMode: ScanFaction},
	{Key: Observer, Name: "Observer", Faction: Crew, Grade: 2,
		Description: "Night 1 only: Sees who Bioscanner is (silent). Becomes regular Crew Member after Night 1.",
		Actions:     []ActionKind{ActionObserve}},
	{Key: TragicHero, Name: "Tragic Hero", Faction: Crew, Grade: 3,
		Description: "If eliminated: Day elimination kills instantly (extra death that day). Night elimination kills first thing next day resolution.",
		Conditions:  InstantKillOnDeath},
	{Key: Scientist, Name: "Scientist", Faction: Crew, Grade: 4,
		Description: "Once per game: Use kill. Once per game: Use heal. Each night, choose action.",
		Actions:     []ActionKind{ActionKill, ActionHeal}},
	{Key: Watchman, Name: "Watchman", Faction: Crew, Grade: 3,
		Description: "Each night, protect 1 player from alien kills. Can protect self. Different player each night.",
		Actions:     []ActionKind{ActionProtect}},
	{Key: ShipCaptain, Name: "Ship Captain", Faction: Crew, Grade: 2,
		Description: "Vote counts twice during day elimination. Once per game only.",
		Conditions:  DoubleVote},
	{Key: VIPPassenger, Name: "VIP Passenger", Faction: Crew, Grade: 3,
		Description: "Cannot be killed during day votes. Only protects from day elimination (not night kills).",
		Conditions:  DayEliminationImmunity},
	{Key: ShipDoctor, Name: "Ship Doctor", Faction: Crew, Grade: 3,
		Description: "Night 1+: Protect 1 player from day elimination. Different player from previous night.",
		Actions:     []ActionKind{ActionProtectDay}},
	{Key: Detective, Name: "Detective", Faction: Crew, Grade: 3,
		Description: "Each night, inspect 3 adjacent players (sitting together). Learn: Any alien among them? (yes/no only).",
		Actions:     []ActionKind{ActionScan}, ScanMode: ScanAdjacent},
	{Key: Silencer, Name: "Silencer", Faction: Crew, Grade: 1,
		Description: "Each night, silence 1 player. Silenced player cannot speak or vote next day.",
		Actions:     []ActionKind{ActionSilence}},
	{Key: Soldier, Name: "Soldier", Faction: Crew, Grade: 3,
		Description: "If alien attacks at night, survives. Dies next day (must be eliminated during vote). Cannot dodge elimination.",
		Conditions:  SurviveNightAttack},
	{Key: Clone, Name: "Clone", Faction: Crew, Grade: -2,
		Description: "Night 1: Chooses 1 target. If target dies AT ANY POINT, Clone silently becomes target.",
		Actions:     []ActionKind{ActionLink}, Conditions: Transformation},
	{Key: FalsePositive, Name: "False Positive", Faction: Crew, Grade: -1,
		Description: "Appears as Alien to Bioscanner and DNA Tracker. Actually Crew (wins with crew).",
		Conditions:  FalseScan},
	{Key: QuarantinedCrew, Name: "Quarantined Crew", Faction: Crew, Grade: 3,
		Description: "If killed by aliens at night, aliens cannot kill next night.",
		Conditions:  BlockNextKill},

	{Key: Alien, Name: "Alien (Infiltrator)", Faction: Infiltrator, Grade: -6,
		Description: "Each night, collectively choose 1 crew member to kill. Core alien mechanic.",
		Actions:     []ActionKind{ActionCollectiveKill}},
	{Key: AlienPup, Name: "Alien Pup (Spawn)", Faction: Infiltrator, Grade: -8,
		Description: "When killed, aliens get 2 kills next night instead of 1.",
		Actions:     []ActionKind{ActionCollectiveKill}, Conditions: DoubleKillOnDeath},
	{Key: SleepAlien, Name: "Sleep Alien", Faction: Infiltrator, Grade: -5,
		Description: "Night 1: Does not wake with other aliens. When first Alien dies: Sleep Alien awakens.",
		Actions:     []ActionKind{ActionAwakeningCheck, ActionCollectiveKill}, Conditions: DelayedAwakening},
	{Key: RogueAlien, Name: "Rogue Alien", Faction: Infiltrator, Grade: -5,
		Description: "Collective kills with other aliens normally. Solo win condition: If all other aliens dead, Rogue Alien wins alone.",
		Actions:     []ActionKind{ActionCollectiveKill}, Conditions: SoloWin},
	{Key: AlienScanner, Name: "Alien Scanner", Faction: Infiltrator, Grade: -3,
		Description: "Each night, scan 1 player privately. Two separate questions: Are they an alien? Are they the Bioscanner?",
		Actions:     []ActionKind{ActionDualScan, ActionCollectiveKill}, ScanMode: ScanDual, ScanRole: Bioscanner},
	{Key: ParasyteAlien, Name: "Parasyte Alien", Faction: Infiltrator, Grade: -4,
		Description: "Night 1: Choose 1 companion (crew or alien). If either dies, other dies automatically.",
		Actions:     []ActionKind{ActionLink, ActionCollectiveKill}, Conditions: DeathLink},
	{Key: HumanoidAlien, Name: "Humanoid Alien", Faction: Infiltrator, Grade: -9,
		Description: "Appears as Crew to Bioscanner and DNA Tracker. Actually on Alien team.",
		Actions:     []ActionKind{ActionCollectiveKill}, Conditions: FalseScan},
	{Key: InfectedCrewmember, Name: "Infected Crewmember", Faction: Infiltrator, Grade: -3,
		Description: "Starts as Crew Member. If attacked by aliens at night: Transforms to Alien. Joins collective kill.",
		Conditions:  TransformationOnAttack},

	{Key: Predator, Name: "Predator (Alien Hunter)", Faction: Independent, Grade: 4,
		Description: "Each night, hunt 1 target. If target is Alien: They die. If target is Crew: Nothing happens. Win condition: All aliens dead AND Predator ties with crew count.",
		Actions:     []ActionKind{ActionHunt}, Conditions: AlienHunter | SoloWin},
}

var byKey = func() map[Key]int {
	m := make(map[Key]int, len(catalog))
	for i, d := range catalog {
		m[d.Key] = i
	}
	return m
}()

// Lookup returns the definition for key.
func Lookup(key Key) (Definition, error) {
	i, ok := byKey[key]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownRole, key)
	}
	return catalog[i], nil
}

// MustLookup is Lookup for keys known to be in the catalog.
func MustLookup(key Key) Definition {
	d, err := Lookup(key)
	if err != nil {
		panic(err)
	}
	return d
}

// Known reports whether key is in the catalog.
func Known(key Key) bool {
	_, ok := byKey[key]
	return ok
}

// Index returns the catalog position of key, or -1.
func Index(key Key) int {
	if i, ok := byKey[key]; ok {
		return i
	}
	return -1
}

// Keys returns every role key in catalog order.
func Keys() []Key {
	out := make([]Key, len(catalog))
	for i, d := range catalog {
		out[i] = d.Key
	}
	return out
}

// KeysByFaction returns the keys of one faction in catalog order.
func KeysByFaction(f Faction) []Key {
	var out []Key
	for _, d := range catalog {
		if d.Faction == f {
			out = append(out, d.Key)
		}
	}
	return out
}

// All returns a copy of every definition in catalog order.
func All() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}
