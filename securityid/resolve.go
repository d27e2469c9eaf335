package securityid

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrNotFound is returned when no name record covers the as-of date
	ErrNotFound = errors.New("security not found")
	// ErrAmbiguous is returned when equally good records name different securities
	ErrAmbiguous = errors.New("ambiguous security")
)

// NameRecord is one row of a security's name history: the identity a
// ticker carried between Start and End (inclusive)
type NameRecord struct {
	Permno          int64
	Ticker          string
	CUSIP9          string
	IssuerName      string
	Exchange        string
	SecurityType    string
	SecuritySubtype string
	Start           time.Time
	// End is zero for an open-ended record
	End time.Time
}

// Covers reports whether the record's interval contains day
func (r NameRecord) Covers(day time.Time) bool {
	if day.Before(r.Start) {
		return false
	}
	return r.End.IsZero() || !day.After(r.End)
}

// span is the interval length used to prefer the tightest record
func (r NameRecord) span() time.Duration {
	if r.End.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return r.End.Sub(r.Start)
}

// Select picks the record describing the security as of day. Records
// that do not cover day are ignored. Among the rest the tightest interval
// wins, then the latest start. Two best records with different permnos
// are ambiguous; duplicates of one permno collapse.
func Select(records []NameRecord, day time.Time) (NameRecord, error) {
	var covering []NameRecord
	for _, r := range records {
		if r.Covers(day) {
			covering = append(covering, r)
		}
	}
	if len(covering) == 0 {
		return NameRecord{}, fmt.Errorf("%w as of %s", ErrNotFound, day.Format("2006-01-02"))
	}

	sort.SliceStable(covering, func(i, j int) bool {
		a, b := covering[i], covering[j]
		if a.span() != b.span() {
			return a.span() < b.span()
		}
		if !a.Start.Equal(b.Start) {
			return a.Start.After(b.Start)
		}
		return a.Permno < b.Permno
	})

	best := covering[0]
	for _, r := range covering[1:] {
		if r.span() != best.span() || !r.Start.Equal(best.Start) {
			break
		}
		if r.Permno != best.Permno {
			return NameRecord{}, fmt.Errorf("%w: permnos %d and %d as of %s",
				ErrAmbiguous, best.Permno, r.Permno, day.Format("2006-01-02"))
		}
	}
	return best, nil
}

// Candidates returns the number of records covering day, for logging
func Candidates(records []NameRecord, day time.Time) int {
	n := 0
	for _, r := range records {
		if r.Covers(day) {
			n++
		}
	}
	return n
}
