package games

import (
	"errors"
	"testing"

	"github.com/vntrieu/voidthreat/internal/roles"
)

func TestTallyVotes(t *testing.T) {
	r := newRoster(roles.ShipCaptain, roles.Alien, roles.CrewMember, roles.CrewMember, roles.CrewMember)
	r[4].Alive = false
	ballots := []Ballot{
		{VoterID: "p1", TargetID: "p2", Double: true},
		{VoterID: "p2", TargetID: "p3"},
		{VoterID: "p3", TargetID: "p3"},
		{VoterID: "p4", TargetID: "p2"},
		{VoterID: "p5", TargetID: "p3"}, // dead voter
		{VoterID: "p1", TargetID: "p3"}, // second ballot
	}
	tally := TallyVotes(r, ballots, nil, Carry{})
	if tally.Counts["p2"] != 3 || tally.Counts["p3"] != 2 {
		t.Errorf("counts: got %v", tally.Counts)
	}
	if tally.TargetID != "p2" || tally.Tie || tally.DoubledBy != "p1" {
		t.Errorf("tally: got %+v", tally)
	}
	if len(tally.Rejected) != 2 {
		t.Errorf("rejected: got %v", tally.Rejected)
	}

	spent := Carry{}
	spent.spend("p1", abilityDoubleVote)
	tally = TallyVotes(r, ballots, []string{"p4"}, spent)
	if tally.Counts["p2"] != 1 || tally.Counts["p3"] != 2 || tally.TargetID != "p3" {
		t.Errorf("spent double and silenced voter: got %+v", tally)
	}
}

func TestTallyVotes_Tie(t *testing.T) {
	r := newRoster(roles.Alien, roles.CrewMember, roles.CrewMember, roles.CrewMember, roles.CrewMember)
	tally := TallyVotes(r, []Ballot{
		{VoterID: "p1", TargetID: "p2"},
		{VoterID: "p2", TargetID: "p1"},
	}, nil, Carry{})
	if !tally.Tie || tally.TargetID != "" {
		t.Errorf("tie: got %+v", tally)
	}
}

func TestResolveDay_Vote(t *testing.T) {
	r := newRoster(roles.Alien, roles.Bioscanner, roles.JuniorScanner, roles.CrewMember, roles.CrewMember)
	out, err := ResolveDay(DayInput{Day: 1, Roster: r, TargetID: "p2"})
	if err != nil {
		t.Fatalf("ResolveDay: %v", err)
	}
	if out.Voted != "p2" || len(out.Eliminated) != 1 {
		t.Errorf("result: got %+v", out)
	}
	p, _ := out.Roster.Get("p2")
	if p.Alive || p.Cause != CauseDay {
		t.Errorf("voted player: got %+v", p)
	}
	if j, _ := out.Roster.Get("p3"); j.Role != roles.Bioscanner {
		t.Errorf("junior should be promoted: got %s", j.Role)
	}
}

func TestResolveDay_Immunity(t *testing.T) {
	r := newRoster(roles.Alien, roles.VIPPassenger, roles.CrewMember, roles.CrewMember, roles.CrewMember)
	if _, err := ResolveDay(DayInput{Day: 1, Roster: r, TargetID: "p2"}); !errors.Is(err, ErrDayImmune) {
		t.Errorf("vip: got %v want ErrDayImmune", err)
	}
	if _, err := ResolveDay(DayInput{Day: 1, Roster: r, TargetID: "p3", DayShielded: []string{"p3"}}); !errors.Is(err, ErrDayImmune) {
		t.Errorf("shielded: got %v want ErrDayImmune", err)
	}
	if _, err := ResolveDay(DayInput{Day: 1, Roster: r, TargetID: "nobody"}); !errors.Is(err, ErrNotInGame) {
		t.Errorf("unknown: got %v want ErrNotInGame", err)
	}
}

func TestResolveDay_ForcedAndRevenge(t *testing.T) {
	r := newRoster(roles.Alien, roles.Soldier, roles.TragicHero, roles.CrewMember, roles.CrewMember, roles.CrewMember)
	out, err := ResolveDay(DayInput{
		Day: 2, Roster: r, TargetID: "p3", ForcedDay: []string{"p2"}, RevengeTargetID: "p1",
	})
	if err != nil {
		t.Fatalf("ResolveDay: %v", err)
	}
	for _, id := range []string{"p1", "p2", "p3"} {
		if alive(out.Roster, id) {
			t.Errorf("%s should be eliminated", id)
		}
	}
	if out.Revenge != "p1" || out.Voted != "p3" {
		t.Errorf("result: got %+v", out)
	}
}

func TestResolveDay_PendingRevengeFromNight(t *testing.T) {
	r := newRoster(roles.Alien, roles.TragicHero, roles.CrewMember, roles.CrewMember, roles.CrewMember)
	r[1].Alive = false
	out, err := ResolveDay(DayInput{Day: 1, Roster: r, Carry: Carry{PendingRevenge: []string{"p2"}}, RevengeTargetID: "p1"})
	if err != nil {
		t.Fatalf("ResolveDay: %v", err)
	}
	if out.Revenge != "p1" || alive(out.Roster, "p1") {
		t.Errorf("revenge: got %+v", out)
	}
	if len(out.Carry.PendingRevenge) != 0 {
		t.Errorf("pending should clear: got %v", out.Carry.PendingRevenge)
	}

	out, _ = ResolveDay(DayInput{Day: 1, Roster: r, RevengeTargetID: "p1"})
	if out.Revenge != "" {
		t.Error("no revenge without a hero death")
	}
}

func TestResolveDay_SpendsDoubleVote(t *testing.T) {
	r := newRoster(roles.ShipCaptain, roles.Alien, roles.CrewMember, roles.CrewMember, roles.CrewMember)
	out, err := ResolveDay(DayInput{Day: 1, Roster: r, TargetID: "p2", DoubledBy: "p1"})
	if err != nil {
		t.Fatalf("ResolveDay: %v", err)
	}
	if !out.Carry.HasSpent("p1", abilityDoubleVote) {
		t.Error("double vote should be spent")
	}
}
