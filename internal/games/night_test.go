package games

import (
	"fmt"
	"testing"

	"github.com/vntrieu/voidthreat/internal/roles"
)

// newRoster seats one living player per key with ids p1..pN.
func newRoster(keys ...roles.Key) Roster {
	r := make(Roster, len(keys))
	for i, k := range keys {
		r[i] = Player{
			ID:      fmt.Sprintf("p%d", i+1),
			Seat:    i + 1,
			Role:    k,
			Faction: roles.MustLookup(k).Faction,
			Alive:   true,
		}
	}
	return r
}

func act(night int, actor string, kind roles.ActionKind, targets ...string) NightAction {
	a := NightAction{Night: night, ActorID: actor, Kind: kind}
	if len(targets) == 1 {
		a.TargetID = targets[0]
	} else {
		a.TargetIDs = targets
	}
	return a
}

func alive(r Roster, id string) bool {
	p, _ := r.Get(id)
	return p.Alive
}

func contains(list []string, id string) bool {
	for _, x := range list {
		if x == id {
			return true
		}
	}
	return false
}

func TestResolve_BioscannerScan(t *testing.T) {
	r := newRoster(roles.Bioscanner, roles.DNATracker, roles.HumanoidAlien, roles.FalsePositive, roles.Alien, roles.CrewMember)
	cases := []struct {
		actor, target, want string
	}{
		{"p1", "p3", ResultCrew},  // humanoid hides
		{"p2", "p4", ResultAlien}, // false positive shows
	}
	for _, c := range cases {
		out := Resolve(NightInput{Night: 1, Roster: r, Actions: []NightAction{act(1, c.actor, roles.ActionScan, c.target)}})
		got := out.ScanResults[c.actor]
		if got.Result != c.want {
			t.Errorf("%s scans %s: got %q want %q", c.actor, c.target, got.Result, c.want)
		}
	}
	out := Resolve(NightInput{Night: 1, Roster: r, Actions: []NightAction{act(1, "p1", roles.ActionScan, "p5")}})
	if out.ScanResults["p1"].Result != ResultAlien || out.Actions[0].Result != ResultAlien {
		t.Errorf("plain alien: got %+v", out.ScanResults["p1"])
	}
}

func TestResolve_DetectiveAdjacency(t *testing.T) {
	r := newRoster(roles.Detective, roles.CrewMember, roles.CrewMember, roles.Alien, roles.CrewMember)
	out := Resolve(NightInput{Night: 1, Roster: r, Actions: []NightAction{act(1, "p1", roles.ActionScan, "p2")}})
	if out.ScanResults["p1"].Result != ResultNoAliens {
		t.Errorf("p1,p2,p3: got %q", out.ScanResults["p1"].Result)
	}
	out = Resolve(NightInput{Night: 1, Roster: r, Actions: []NightAction{act(1, "p1", roles.ActionScan, "p3")}})
	if out.ScanResults["p1"].Result != ResultAlienDetected {
		t.Errorf("p2,p3,p4: got %q", out.ScanResults["p1"].Result)
	}
	// Seat ring wraps: p5's neighbours are p4 and p1.
	out = Resolve(NightInput{Night: 1, Roster: r, Actions: []NightAction{act(1, "p1", roles.ActionScan, "p5")}})
	if out.ScanResults["p1"].Result != ResultAlienDetected {
		t.Errorf("ring wrap: got %q", out.ScanResults["p1"].Result)
	}
}

func TestResolve_AlienScannerDual(t *testing.T) {
	r := newRoster(roles.AlienScanner, roles.Bioscanner, roles.CrewMember, roles.CrewMember, roles.CrewMember)
	out := Resolve(NightInput{Night: 1, Roster: r, Actions: []NightAction{act(1, "p1", roles.ActionDualScan, "p2")}})
	sr := out.ScanResults["p1"]
	if sr.Result != "CREW / BIOSCANNER" || sr.RoleMatch == nil || !*sr.RoleMatch {
		t.Errorf("got %+v", sr)
	}
}

func TestResolve_NightOneRules(t *testing.T) {
	r := newRoster(roles.Alien, roles.Observer, roles.Bioscanner, roles.CrewMember, roles.CrewMember)
	actions := []NightAction{
		act(1, "p1", roles.ActionCollectiveKill, "p4"),
		act(1, "p2", roles.ActionObserve),
	}
	out := Resolve(NightInput{Night: 1, Roster: r, Actions: actions})
	if len(out.Eliminated) != 0 {
		t.Errorf("no kills on night 1: eliminated %v", out.Eliminated)
	}
	if len(out.Errors) != 1 || out.Errors[0].ActorID != "p1" {
		t.Errorf("errors: got %+v", out.Errors)
	}
	if sr := out.ScanResults["p2"]; sr.Result != ResultBioscanner || sr.TargetID != "p3" {
		t.Errorf("observe: got %+v", sr)
	}
	if p, _ := out.Roster.Get("p2"); p.Role != roles.CrewMember {
		t.Errorf("observer after night 1: got %s", p.Role)
	}

	out = Resolve(NightInput{Night: 1, Roster: r, Actions: actions[:1], Rules: RulesConfig{FirstNightKills: true}})
	if !contains(out.Eliminated, "p4") {
		t.Errorf("first night kills enabled: eliminated %v", out.Eliminated)
	}
}

func TestResolve_ProtectionBlocksKill(t *testing.T) {
	r := newRoster(roles.Alien, roles.Watchman, roles.CrewMember, roles.CrewMember, roles.CrewMember)
	out := Resolve(NightInput{Night: 2, Roster: r, Actions: []NightAction{
		act(2, "p1", roles.ActionCollectiveKill, "p3"),
		act(2, "p2", roles.ActionProtect, "p3"),
	}})
	if len(out.Eliminated) != 0 || !alive(out.Roster, "p3") {
		t.Errorf("protected target died: %v", out.Eliminated)
	}
	if !contains(out.Protected, "p3") || out.Carry.LastProtected["p2"] != "p3" {
		t.Errorf("protected %v last %v", out.Protected, out.Carry.LastProtected)
	}

	// Same target next night is rejected and the kill goes through.
	out = Resolve(NightInput{Night: 3, Roster: out.Roster, Carry: out.Carry, Actions: []NightAction{
		act(3, "p1", roles.ActionCollectiveKill, "p3"),
		act(3, "p2", roles.ActionProtect, "p3"),
	}})
	if !contains(out.Eliminated, "p3") {
		t.Errorf("repeat protection should fail: eliminated %v", out.Eliminated)
	}
	if len(out.Errors) != 1 || out.Errors[0].ActorID != "p2" {
		t.Errorf("errors: got %+v", out.Errors)
	}
}

func TestResolve_InputNotMutated(t *testing.T) {
	r := newRoster(roles.Alien, roles.CrewMember, roles.CrewMember, roles.CrewMember, roles.CrewMember)
	in := NightInput{Night: 2, Roster: r, Actions: []NightAction{act(2, "p1", roles.ActionCollectiveKill, "p2")}}
	a := Resolve(in)
	b := Resolve(in)
	if !alive(r, "p2") {
		t.Error("input roster was mutated")
	}
	if fmt.Sprint(a.Eliminated) != fmt.Sprint(b.Eliminated) {
		t.Errorf("not deterministic: %v vs %v", a.Eliminated, b.Eliminated)
	}
}

func TestResolve_CloneTakesRole(t *testing.T) {
	r := newRoster(roles.Clone, roles.Bioscanner, roles.Alien, roles.CrewMember, roles.CrewMember, roles.CrewMember)
	n1 := Resolve(NightInput{Night: 1, Roster: r, Actions: []NightAction{act(1, "p1", roles.ActionLink, "p2")}})
	if len(n1.Links) != 1 || n1.Links[0].Kind != LinkClone || !n1.Links[0].Active {
		t.Fatalf("links: got %+v", n1.Links)
	}
	n2 := Resolve(NightInput{Night: 2, Roster: n1.Roster, Links: n1.Links, Carry: n1.Carry, Actions: []NightAction{
		act(2, "p3", roles.ActionCollectiveKill, "p2"),
	}})
	clone, _ := n2.Roster.Get("p1")
	if clone.Role != roles.Bioscanner || !clone.Alive {
		t.Errorf("clone: got %+v", clone)
	}
	if n2.Links[0].Active || n2.Links[0].TriggeredAt != "night-2" {
		t.Errorf("link: got %+v", n2.Links[0])
	}
	if len(n2.Mutations) != 1 || n2.Mutations[0].Reason != ReasonClone {
		t.Errorf("mutations: got %+v", n2.Mutations)
	}
}

func TestResolve_ParasyteLinkCascade(t *testing.T) {
	r := newRoster(roles.ParasyteAlien, roles.Scientist, roles.CrewMember, roles.CrewMember, roles.CrewMember)
	n1 := Resolve(NightInput{Night: 1, Roster: r, Actions: []NightAction{act(1, "p1", roles.ActionLink, "p3")}})
	n2 := Resolve(NightInput{Night: 2, Roster: n1.Roster, Links: n1.Links, Carry: n1.Carry, Actions: []NightAction{
		act(2, "p2", roles.ActionKill, "p3"),
	}})
	if alive(n2.Roster, "p1") || alive(n2.Roster, "p3") {
		t.Errorf("both linked players should die: eliminated %v", n2.Eliminated)
	}
	if !n2.Carry.Awakened {
		t.Error("infiltrator death should wake sleepers")
	}
	if !n2.Carry.HasSpent("p2", string(roles.ActionKill)) {
		t.Error("scientist kill should be spent")
	}
}

func TestResolve_LinkDeathIgnoresProtection(t *testing.T) {
	r := newRoster(roles.ParasyteAlien, roles.Scientist, roles.CrewMember, roles.Alien, roles.Watchman, roles.CrewMember, roles.CrewMember)
	n1 := Resolve(NightInput{Night: 1, Roster: r, Actions: []NightAction{act(1, "p1", roles.ActionLink, "p3")}})
	n2 := Resolve(NightInput{Night: 2, Roster: n1.Roster, Links: n1.Links, Carry: n1.Carry, Actions: []NightAction{
		act(2, "p2", roles.ActionKill, "p1"),
		act(2, "p4", roles.ActionCollectiveKill, "p3"),
		act(2, "p5", roles.ActionProtect, "p3"),
	}})
	if !contains(n2.Protected, "p3") {
		t.Errorf("protected: got %v", n2.Protected)
	}
	// Protection stops the nomination, not the partner's death.
	if !contains(n2.Eliminated, "p1") || !contains(n2.Eliminated, "p3") || alive(n2.Roster, "p3") {
		t.Errorf("eliminated: got %v", n2.Eliminated)
	}
}

func TestResolve_InfectedTransforms(t *testing.T) {
	r := newRoster(roles.Alien, roles.InfectedCrewmember, roles.CrewMember, roles.CrewMember, roles.CrewMember)
	out := Resolve(NightInput{Night: 2, Roster: r, Actions: []NightAction{act(2, "p1", roles.ActionCollectiveKill, "p2")}})
	p, _ := out.Roster.Get("p2")
	if !p.Alive || p.Role != roles.Alien || p.Faction != roles.Infiltrator {
		t.Errorf("infected: got %+v", p)
	}
	if len(out.Eliminated) != 0 {
		t.Errorf("eliminated: got %v", out.Eliminated)
	}
}

func TestResolve_QuarantineBlocksNextKill(t *testing.T) {
	r := newRoster(roles.Alien, roles.QuarantinedCrew, roles.CrewMember, roles.CrewMember, roles.CrewMember, roles.CrewMember)
	n2 := Resolve(NightInput{Night: 2, Roster: r, Actions: []NightAction{act(2, "p1", roles.ActionCollectiveKill, "p2")}})
	if !n2.Carry.BlockCollectiveKill {
		t.Fatal("expected block for next night")
	}
	n3 := Resolve(NightInput{Night: 3, Roster: n2.Roster, Carry: n2.Carry, Actions: []NightAction{act(3, "p1", roles.ActionCollectiveKill, "p3")}})
	if len(n3.Eliminated) != 0 || !n3.KillBlocked {
		t.Errorf("blocked night: eliminated %v blocked %v", n3.Eliminated, n3.KillBlocked)
	}
	if n3.Carry.BlockCollectiveKill {
		t.Error("block should last one night")
	}
}

func TestResolve_PupDeathWidensKill(t *testing.T) {
	r := newRoster(roles.Alien, roles.AlienPup, roles.Scientist, roles.CrewMember, roles.CrewMember, roles.CrewMember, roles.CrewMember)
	n2 := Resolve(NightInput{Night: 2, Roster: r, Actions: []NightAction{
		act(2, "p1", roles.ActionCollectiveKill, "p4", "p5"),
		act(2, "p3", roles.ActionKill, "p2"),
	}})
	if !contains(n2.Eliminated, "p4") || contains(n2.Eliminated, "p5") || !contains(n2.Eliminated, "p2") {
		t.Errorf("night 2 eliminated: %v", n2.Eliminated)
	}
	if n2.Carry.ExtraKillSlots != 1 {
		t.Fatalf("extra slots: got %d", n2.Carry.ExtraKillSlots)
	}
	n3 := Resolve(NightInput{Night: 3, Roster: n2.Roster, Carry: n2.Carry, Actions: []NightAction{
		act(3, "p1", roles.ActionCollectiveKill, "p5", "p6"),
	}})
	if !contains(n3.Eliminated, "p5") || !contains(n3.Eliminated, "p6") {
		t.Errorf("night 3 eliminated: %v", n3.Eliminated)
	}
	if n3.Carry.ExtraKillSlots != 0 {
		t.Errorf("extra slots should reset: got %d", n3.Carry.ExtraKillSlots)
	}
}

func TestResolve_CollectiveKillUnion(t *testing.T) {
	r := newRoster(roles.Alien, roles.RogueAlien, roles.CrewMember, roles.CrewMember, roles.CrewMember, roles.CrewMember)
	out := Resolve(NightInput{Night: 2, Roster: r, Actions: []NightAction{
		act(2, "p1", roles.ActionCollectiveKill, "p3"),
		act(2, "p2", roles.ActionCollectiveKill, "p3"),
	}})
	if len(out.Eliminated) != 1 || out.Eliminated[0] != "p3" || len(out.Errors) != 0 {
		t.Errorf("agreeing aliens: eliminated %v errors %+v", out.Eliminated, out.Errors)
	}
}

func TestResolve_SoldierSurvivesNight(t *testing.T) {
	r := newRoster(roles.Alien, roles.Soldier, roles.CrewMember, roles.CrewMember, roles.CrewMember)
	out := Resolve(NightInput{Night: 2, Roster: r, Actions: []NightAction{act(2, "p1", roles.ActionCollectiveKill, "p2")}})
	if !alive(out.Roster, "p2") || !contains(out.ForcedDay, "p2") {
		t.Errorf("soldier: alive=%v forced=%v", alive(out.Roster, "p2"), out.ForcedDay)
	}
}

func TestResolve_JuniorPromotion(t *testing.T) {
	r := newRoster(roles.Alien, roles.Bioscanner, roles.JuniorScanner, roles.JuniorScanner, roles.CrewMember, roles.CrewMember)
	out := Resolve(NightInput{Night: 2, Roster: r, Actions: []NightAction{act(2, "p1", roles.ActionCollectiveKill, "p2")}})
	p3, _ := out.Roster.Get("p3")
	p4, _ := out.Roster.Get("p4")
	if p3.Role != roles.Bioscanner || p4.Role != roles.JuniorScanner {
		t.Errorf("promotion: p3=%s p4=%s", p3.Role, p4.Role)
	}
}

func TestResolve_TragicHeroOwedRevenge(t *testing.T) {
	r := newRoster(roles.Alien, roles.TragicHero, roles.CrewMember, roles.CrewMember, roles.CrewMember)
	out := Resolve(NightInput{Night: 2, Roster: r, Actions: []NightAction{act(2, "p1", roles.ActionCollectiveKill, "p2")}})
	if len(out.Carry.PendingRevenge) != 1 || out.Carry.PendingRevenge[0] != "p2" {
		t.Errorf("pending revenge: got %v", out.Carry.PendingRevenge)
	}
}

func TestResolve_SleepAlienWaits(t *testing.T) {
	r := newRoster(roles.SleepAlien, roles.CrewMember, roles.CrewMember, roles.CrewMember, roles.CrewMember)
	out := Resolve(NightInput{Night: 2, Roster: r, Actions: []NightAction{act(2, "p1", roles.ActionCollectiveKill, "p2")}})
	if len(out.Eliminated) != 0 || len(out.Errors) != 1 {
		t.Errorf("asleep: eliminated %v errors %+v", out.Eliminated, out.Errors)
	}
	out = Resolve(NightInput{Night: 2, Roster: r, Carry: Carry{Awakened: true}, Actions: []NightAction{
		act(2, "p1", roles.ActionAwakeningCheck),
	}})
	if out.ScanResults["p1"].Result != ResultAwake {
		t.Errorf("awakening check: got %q", out.ScanResults["p1"].Result)
	}
}

func TestResolve_Validation(t *testing.T) {
	r := newRoster(roles.Alien, roles.Bioscanner, roles.CrewMember, roles.CrewMember, roles.CrewMember)
	r[4].Alive = false
	cases := []struct {
		name     string
		action   NightAction
		reported bool
	}{
		{"wrong night", act(3, "p2", roles.ActionScan, "p1"), true},
		{"unknown actor", act(2, "ghost", roles.ActionScan, "p1"), true},
		{"dead actor", act(2, "p5", roles.ActionScan, "p1"), false},
		{"not allowed", act(2, "p3", roles.ActionScan, "p1"), true},
		{"missing target", act(2, "p2", roles.ActionScan), true},
		{"dead target", act(2, "p2", roles.ActionScan, "p5"), true},
		{"role mismatch", NightAction{Night: 2, ActorID: "p2", Role: roles.DNATracker, Kind: roles.ActionScan, TargetID: "p1"}, true},
		{"link after night 1", act(2, "p2", roles.ActionLink, "p1"), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out := Resolve(NightInput{Night: 2, Roster: r, Actions: []NightAction{c.action}})
			if len(out.ScanResults) != 0 {
				t.Errorf("action should not run: %+v", out.ScanResults)
			}
			if got := len(out.Errors) == 1; got != c.reported {
				t.Errorf("reported: got %v want %v (%+v)", got, c.reported, out.Errors)
			}
		})
	}
}

func TestResolve_OneActionPerActor(t *testing.T) {
	r := newRoster(roles.Alien, roles.Bioscanner, roles.CrewMember, roles.CrewMember, roles.CrewMember)
	out := Resolve(NightInput{Night: 2, Roster: r, Actions: []NightAction{
		act(2, "p2", roles.ActionScan, "p1"),
		act(2, "p2", roles.ActionScan, "p3"),
	}})
	if out.ScanResults["p2"].TargetID != "p1" {
		t.Errorf("first action should win: got %+v", out.ScanResults["p2"])
	}
	if len(out.Errors) != 1 {
		t.Errorf("errors: got %+v", out.Errors)
	}
}
