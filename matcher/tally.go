package matcher

import "sort"

// Tally accumulates the outcome counts of one run. It is owned by the
// run that creates it and is not safe for concurrent use.
type Tally struct {
	Seen       int
	Malformed  int
	Ineligible int
	NoMatch    int
	Ambiguous  int
	// DD counts qualifying titles carrying the due diligence tag
	DD int

	byType    map[MatchType]int
	byCompany map[string]int
}

// CompanyCount is one row of the per-company summary
type CompanyCount struct {
	Company string
	Count   int
}

// NewTally returns an empty tally
func NewTally() *Tally {
	return &Tally{
		byType:    make(map[MatchType]int),
		byCompany: make(map[string]int),
	}
}

// Record counts one matcher result
func (t *Tally) Record(r Result) {
	t.Seen++
	switch r.Status {
	case StatusIneligible:
		t.Ineligible++
	case StatusNoMatch:
		t.NoMatch++
	case StatusAmbiguous:
		t.Ambiguous++
	case StatusMatched:
		t.byType[r.Type]++
		if r.Company != NoCompany {
			t.byCompany[r.Company]++
		}
		if r.IsDD {
			t.DD++
		}
	}
}

// RecordMalformed counts an input line that could not be decoded
func (t *Tally) RecordMalformed() {
	t.Seen++
	t.Malformed++
}

// ByType returns the number of qualifying posts for a match type
func (t *Tally) ByType(mt MatchType) int {
	return t.byType[mt]
}

// Qualified returns the number of posts that matched any rule
func (t *Tally) Qualified() int {
	n := 0
	for _, c := range t.byType {
		n += c
	}
	return n
}

// Companies returns per-company counts, fewest first, ties by name
func (t *Tally) Companies() []CompanyCount {
	out := make([]CompanyCount, 0, len(t.byCompany))
	for c, n := range t.byCompany {
		out = append(out, CompanyCount{Company: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count < out[j].Count
		}
		return out[i].Company < out[j].Company
	})
	return out
}
