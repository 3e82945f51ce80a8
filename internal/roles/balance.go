package roles

// DefaultTolerance is the largest |Total| still reported as balanced.
const DefaultTolerance = 2

// Score is the three-part balance score of a role multiset.
type Score struct {
	Crew        int `json:"crew_score"`
	Infiltrator int `json:"infiltrator_score"` // sum of absolute infiltrator grades
	Independent int `json:"independent_score"`
	Total       int `json:"total_score"`
}

// Balanced reports whether |Total| <= tol.
func (s Score) Balanced(tol int) bool {
	t := s.Total
	if t < 0 {
		t = -t
	}
	return t <= tol
}

// Add returns the score of the union of two disjoint multisets.
func (s Score) Add(o Score) Score {
	return Score{
		Crew:        s.Crew + o.Crew,
		Infiltrator: s.Infiltrator + o.Infiltrator,
		Independent: s.Independent + o.Independent,
		Total:       s.Total + o.Total,
	}
}

// With returns the score after adding one role. Unknown keys are ignored.
func (s Score) With(key Key) Score {
	d, err := Lookup(key)
	if err != nil {
		return s
	}
	switch d.Faction {
	case Crew:
		s.Crew += d.Grade
	case Infiltrator:
		s.Infiltrator += abs(d.Grade)
	case Independent:
		s.Independent += d.Grade
	}
	s.Total = s.Crew + s.Independent - s.Infiltrator
	return s
}

// ScoreOf scores a flat multiset of role keys.
func ScoreOf(keys []Key) Score {
	var s Score
	for _, k := range keys {
		s = s.With(k)
	}
	return s
}

// ScoreCounts scores a count map; non-positive counts are skipped.
func ScoreCounts(counts map[Key]int) Score {
	var s Score
	for k, n := range counts {
		for i := 0; i < n; i++ {
			s = s.With(k)
		}
	}
	return s
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
