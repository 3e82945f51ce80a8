package roles

import (
	"errors"
	"testing"
	"testing/quick"
)

func TestCatalog_Size(t *testing.T) {
	if got := len(Keys()); got != 26 {
		t.Fatalf("catalog size: got %d want 26", got)
	}
	counts := map[Faction]int{}
	for _, d := range All() {
		counts[d.Faction]++
	}
	if counts[Crew] != 17 || counts[Infiltrator] != 8 || counts[Independent] != 1 {
		t.Errorf("faction split: got %v", counts)
	}
}

func TestLookup(t *testing.T) {
	d, err := Lookup(Bioscanner)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if d.Faction != Crew || d.Grade != 7 || !d.Allows(ActionScan) || d.ScanMode != ScanFaction {
		t.Errorf("bioscanner: got %+v", d)
	}
	_, err = Lookup("cupid")
	if !errors.Is(err, ErrUnknownRole) {
		t.Errorf("unknown key: got %v want ErrUnknownRole", err)
	}
}

func TestKeysByFaction_CatalogOrder(t *testing.T) {
	got := KeysByFaction(Infiltrator)
	want := []Key{Alien, AlienPup, SleepAlien, RogueAlien, AlienScanner, ParasyteAlien, HumanoidAlien, InfectedCrewmember}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %s want %s", i, got[i], want[i])
		}
	}
	if ind := KeysByFaction(Independent); len(ind) != 1 || ind[0] != Predator {
		t.Errorf("independent: got %v", ind)
	}
}

func TestConditions(t *testing.T) {
	p := MustLookup(Predator)
	if !p.Conditions.Has(AlienHunter) || !p.Conditions.Has(SoloWin) {
		t.Errorf("predator conditions: %v", p.Conditions.Names())
	}
	if p.Conditions.Has(FalseScan) {
		t.Error("predator should not carry false_scan")
	}
	names := MustLookup(HumanoidAlien).Conditions.Names()
	if len(names) != 1 || names[0] != "false_scan" {
		t.Errorf("humanoid names: %v", names)
	}
}

func TestScore_Empty(t *testing.T) {
	if s := ScoreOf(nil); s != (Score{}) {
		t.Errorf("empty: got %+v", s)
	}
}

func TestScore_Known(t *testing.T) {
	s := ScoreOf([]Key{Bioscanner, Alien, Predator, CrewMember})
	want := Score{Crew: 8, Infiltrator: 6, Independent: 4, Total: 6}
	if s != want {
		t.Errorf("got %+v want %+v", s, want)
	}
	if s.Balanced(DefaultTolerance) {
		t.Error("total 6 should not be balanced")
	}
	if !ScoreOf([]Key{Bioscanner, Alien}).Balanced(DefaultTolerance) {
		t.Error("7-6 should be balanced")
	}
}

func TestScoreCounts_MatchesFlat(t *testing.T) {
	counts := map[Key]int{Alien: 2, CrewMember: 3, Watchman: 1, Soldier: 0, "nope": 4}
	got := ScoreCounts(counts)
	want := ScoreOf([]Key{Alien, Alien, CrewMember, CrewMember, CrewMember, Watchman})
	if got != want {
		t.Errorf("got %+v want %+v", got, want)
	}
}

func TestScore_Additive(t *testing.T) {
	keys := Keys()
	pick := func(idx []uint8) []Key {
		out := make([]Key, 0, len(idx))
		for _, i := range idx {
			out = append(out, keys[int(i)%len(keys)])
		}
		return out
	}
	f := func(a, b []uint8) bool {
		ka, kb := pick(a), pick(b)
		union := append(append([]Key{}, ka...), kb...)
		return ScoreOf(union) == ScoreOf(ka).Add(ScoreOf(kb))
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}
