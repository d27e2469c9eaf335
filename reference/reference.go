// Package reference loads the ticker, alias and exclusion lists that
// drive title matching.
package reference

import (
	"fmt"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
)

// CompanyRow is one line of the company list. Alias may hold several
// names separated by ';' (e.g. "Alphabet; Google").
type CompanyRow struct {
	Ticker string `csv:"ticker"`
	Alias  string `csv:"alias"`
}

// ProblemRow is one line of the problem ticker list: tickers that are
// also common words or acronyms (ALL, NOW, YOU ...).
type ProblemRow struct {
	Ticker string `csv:"stock_ticker"`
}

// ETFRow is one line of the ETF ticker list
type ETFRow struct {
	Ticker string `csv:"ticker"`
}

// Paths locates the three reference CSV files
type Paths struct {
	Companies string
	Problem   string
	ETF       string
}

// Set is the read-only reference data shared by every match in a run
type Set struct {
	tickers map[string]struct{}
	problem map[string]struct{}
	etfs    map[string]struct{}
	aliases map[string]string
}

// Load reads the three CSV files and builds the reference set.
// Tickers in excluded are dropped from the confirmed set.
func Load(paths Paths, excluded []string) (*Set, error) {
	var companies []CompanyRow
	if err := readCSV(paths.Companies, &companies); err != nil {
		return nil, fmt.Errorf("Load companies: %w", err)
	}

	var problems []ProblemRow
	if paths.Problem != "" {
		if err := readCSV(paths.Problem, &problems); err != nil {
			return nil, fmt.Errorf("Load problem tickers: %w", err)
		}
	}

	var etfs []ETFRow
	if paths.ETF != "" {
		if err := readCSV(paths.ETF, &etfs); err != nil {
			return nil, fmt.Errorf("Load ETF tickers: %w", err)
		}
	}

	return Build(companies, problems, etfs, excluded), nil
}

// Build assembles a Set from already parsed rows
func Build(companies []CompanyRow, problems []ProblemRow, etfs []ETFRow, excluded []string) *Set {
	s := &Set{
		tickers: make(map[string]struct{}, len(companies)),
		problem: make(map[string]struct{}, len(problems)),
		etfs:    make(map[string]struct{}, len(etfs)),
		aliases: make(map[string]string),
	}

	for _, row := range companies {
		ticker := strings.TrimSpace(row.Ticker)
		if ticker == "" {
			continue
		}
		s.tickers[ticker] = struct{}{}
		for _, alias := range strings.Split(row.Alias, ";") {
			if alias = strings.TrimSpace(alias); alias != "" {
				s.aliases[alias] = ticker
			}
		}
	}
	for _, t := range excluded {
		delete(s.tickers, strings.TrimSpace(t))
	}
	for _, row := range problems {
		if t := strings.TrimSpace(row.Ticker); t != "" {
			s.problem[t] = struct{}{}
		}
	}
	for _, row := range etfs {
		if t := strings.TrimSpace(row.Ticker); t != "" {
			s.etfs[t] = struct{}{}
		}
	}
	return s
}

// HasTicker reports whether t is in the confirmed ticker set
func (s *Set) HasTicker(t string) bool {
	_, ok := s.tickers[t]
	return ok
}

// IsProblem reports whether t is a word-like ticker excluded from bare matches
func (s *Set) IsProblem(t string) bool {
	_, ok := s.problem[t]
	return ok
}

// IsETF reports whether t is an exchange traded fund
func (s *Set) IsETF(t string) bool {
	_, ok := s.etfs[t]
	return ok
}

// Aliases returns a copy of the alias to ticker map
func (s *Set) Aliases() map[string]string {
	out := make(map[string]string, len(s.aliases))
	for k, v := range s.aliases {
		out[k] = v
	}
	return out
}

// Len returns the number of confirmed tickers
func (s *Set) Len() int {
	return len(s.tickers)
}

func readCSV(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.UnmarshalFile(f, out)
}
