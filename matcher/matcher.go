// Package matcher decides whether a post title names exactly one
// security.
//
// Rules are tried in precedence order and the first rule that fires
// decides the outcome:
//
//  1. ticker_with_symbol: "$GME" (or "(GME)") where GME is a known ticker
//  2. symbol_no_match:    "$XYZ" or "$BRK.B" shaped symbol, not an ETF
//  3. ticker_no_symbol:   bare "GME", minus word-like problem tickers
//  4. alias:              a company name or alias ("Coca-Cola")
//  5. dd_no_match:        no company but the title is tagged DD
//
// A rule that finds a second, different mention of its own kind rejects
// the post as ambiguous; ambiguity never falls through to a later rule.
package matcher

import (
	"regexp"
	"sort"
	"strings"

	"fin-nlp/reference"
)

// MatchType is the rule that qualified a post
type MatchType string

const (
	TickerWithSymbol MatchType = "ticker_with_symbol"
	SymbolNoMatch    MatchType = "symbol_no_match"
	TickerNoSymbol   MatchType = "ticker_no_symbol"
	Alias            MatchType = "alias"
	DDNoMatch        MatchType = "dd_no_match"
)

// NoCompany is stored as the company of DD-only posts
const NoCompany = "N/A"

// Status is the outcome of matching one post
type Status int

const (
	StatusNoMatch Status = iota
	StatusMatched
	StatusAmbiguous
	StatusIneligible
)

func (s Status) String() string {
	switch s {
	case StatusMatched:
		return "matched"
	case StatusAmbiguous:
		return "ambiguous"
	case StatusIneligible:
		return "ineligible"
	default:
		return "no_match"
	}
}

// Candidate is the part of a post the matcher looks at
type Candidate struct {
	Title    string
	Selftext string
	Domain   string
}

// Result is the matcher's verdict for one post
type Result struct {
	Status  Status
	Company string
	Type    MatchType
	IsDD    bool
	// Token is the text that fired the rule, e.g. "$GME" or "Coca-Cola"
	Token string
	// Reason explains an ineligible or ambiguous result
	Reason string
}

// Qualifies reports whether the post should be persisted
func (r Result) Qualifies() bool {
	return r.Status == StatusMatched
}

var (
	dollarPattern = regexp.MustCompile(`\$[A-Z]{1,4}\.[A-Z]|\$[A-Z]{1,5}\b`)
	parenPattern  = regexp.MustCompile(`\([A-Z]{1,5}(?:\.[A-Z])?\)`)
)

// Option configures a Matcher
type Option func(*Matcher)

// WithDomain only accepts posts whose domain equals domain (e.g. "self.stocks")
func WithDomain(domain string) Option {
	return func(m *Matcher) {
		m.domain = domain
	}
}

// WithMinWords sets the selftext word count a post must exceed
func WithMinWords(n int) Option {
	return func(m *Matcher) {
		m.minWords = n
	}
}

// WithRedirects rewrites commonly mistyped tickers after a match
func WithRedirects(redirects map[string]string) Option {
	return func(m *Matcher) {
		m.redirects = make(map[string]string, len(redirects))
		for from, to := range redirects {
			m.redirects[from] = to
		}
	}
}

// Matcher holds the compiled reference data. It is safe for concurrent use.
type Matcher struct {
	refs         *reference.Set
	aliasTicker  map[string]string // lower-cased cleaned alias -> ticker
	aliasPattern *regexp.Regexp
	domain       string
	minWords     int
	redirects    map[string]string
}

// New compiles a matcher over the reference set
func New(refs *reference.Set, opts ...Option) *Matcher {
	m := &Matcher{
		refs:      refs,
		minWords:  60,
		redirects: map[string]string{"GOOG": "GOOGL"},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.compileAliases(refs.Aliases())
	return m
}

// compileAliases builds one case-insensitive alternation of every alias.
// Aliases are cleaned the same way titles are, and longer aliases come
// first so "Bank of America" wins over "America".
func (m *Matcher) compileAliases(aliases map[string]string) {
	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)

	m.aliasTicker = make(map[string]string, len(names))
	keys := make([]string, 0, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.Join(strings.Fields(clean(name, ruleAlias)), " "))
		if key == "" {
			continue
		}
		if _, dup := m.aliasTicker[key]; dup {
			continue
		}
		m.aliasTicker[key] = aliases[name]
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return
	}

	sort.SliceStable(keys, func(i, j int) bool {
		return len(keys[i]) > len(keys[j])
	})
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}
	m.aliasPattern = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(` + strings.Join(quoted, "|") + `)(?:$|[^\p{L}\p{N}_])`)
}

// findAliases returns every alias in s that stands between non-word runes.
// The delimiters are Unicode aware so "Nestlé" ends at the é.
func (m *Matcher) findAliases(s string) []string {
	var found []string
	for pos := 0; pos < len(s); {
		loc := m.aliasPattern.FindStringSubmatchIndex(s[pos:])
		if loc == nil {
			break
		}
		found = append(found, s[pos+loc[2]:pos+loc[3]])
		pos += loc[3]
	}
	return found
}

// Match runs eligibility and then the rules in precedence order
func (m *Matcher) Match(c Candidate) Result {
	if reason, ok := m.eligible(c); !ok {
		return Result{Status: StatusIneligible, Reason: reason}
	}

	for _, fn := range []func(string) (Result, bool){
		m.matchDollarTicker,
		m.matchParenTicker,
		m.matchDollarSymbol,
		m.matchBareTicker,
		m.matchAlias,
	} {
		res, fired := fn(c.Title)
		if !fired {
			continue
		}
		if res.Status == StatusMatched {
			res.Company = m.redirect(res.Company)
		}
		return res
	}

	if IsDueDiligence(c.Title) {
		return Result{Status: StatusMatched, Company: NoCompany, Type: DDNoMatch, IsDD: true}
	}
	return Result{Status: StatusNoMatch}
}

func (m *Matcher) eligible(c Candidate) (string, bool) {
	if m.domain != "" && c.Domain != m.domain {
		return "domain", false
	}
	switch c.Selftext {
	case "", "[removed]", "[deleted]":
		return "no selftext", false
	}
	if len(strings.Fields(c.Selftext)) <= m.minWords {
		return "too short", false
	}
	return "", true
}

func (m *Matcher) redirect(company string) string {
	if to, ok := m.redirects[company]; ok {
		return to
	}
	return company
}

// matchDollarTicker fires on "$TICKER" with TICKER in the reference set
func (m *Matcher) matchDollarTicker(title string) (Result, bool) {
	cleaned := clean(title, ruleDollar)
	words := strings.Fields(cleaned)

	confirmed := func(w string) bool {
		return len(w) > 1 && w[0] == '$' && m.refs.HasTicker(w[1:])
	}

	token := ""
	for _, w := range words {
		if confirmed(w) {
			token = w
			break
		}
	}
	if token == "" {
		return Result{}, false
	}

	rest := without(words, token)
	for _, w := range rest {
		if confirmed(w) {
			return ambiguous(token, "second $ticker"), true
		}
	}
	if dollarPattern.MatchString(strings.Join(rest, " ")) {
		return ambiguous(token, "second $symbol"), true
	}

	return Result{
		Status:  StatusMatched,
		Company: token[1:],
		Type:    TickerWithSymbol,
		IsDD:    IsDueDiligence(cleaned),
		Token:   token,
	}, true
}

// matchParenTicker fires on "(TICKER)" with TICKER in the reference set.
// It shares the ticker_with_symbol tier.
func (m *Matcher) matchParenTicker(title string) (Result, bool) {
	cleaned := clean(title, ruleParen)
	words := strings.Fields(cleaned)

	confirmed := func(w string) bool {
		return len(w) > 2 && w[0] == '(' && w[len(w)-1] == ')' && m.refs.HasTicker(w[1:len(w)-1])
	}

	token := ""
	for _, w := range words {
		if confirmed(w) {
			token = w
			break
		}
	}
	if token == "" {
		return Result{}, false
	}

	rest := without(words, token)
	for _, w := range rest {
		if confirmed(w) {
			return ambiguous(token, "second (ticker)"), true
		}
	}
	if parenPattern.MatchString(strings.Join(rest, " ")) || dollarPattern.MatchString(title) {
		return ambiguous(token, "second symbol"), true
	}

	return Result{
		Status:  StatusMatched,
		Company: token[1 : len(token)-1],
		Type:    TickerWithSymbol,
		IsDD:    IsDueDiligence(cleaned),
		Token:   token,
	}, true
}

// matchDollarSymbol fires on any "$XYZ" or "$BRK.B" shaped symbol in the
// raw title. ETF symbols do not fire, so the title falls through.
func (m *Matcher) matchDollarSymbol(title string) (Result, bool) {
	found := dollarPattern.FindAllString(title, -1)
	if len(found) == 0 {
		return Result{}, false
	}
	token := found[0]
	if m.refs.IsETF(token[1:]) {
		return Result{}, false
	}
	for _, other := range found[1:] {
		if other != token {
			return ambiguous(token, "second $symbol"), true
		}
	}

	return Result{
		Status:  StatusMatched,
		Company: token[1:],
		Type:    SymbolNoMatch,
		IsDD:    IsDueDiligence(title),
		Token:   token,
	}, true
}

// matchBareTicker fires on a bare word equal to a known ticker that is not
// on the problem list
func (m *Matcher) matchBareTicker(title string) (Result, bool) {
	cleaned := clean(title, ruleBare)
	words := strings.Fields(cleaned)

	confirmed := func(w string) bool {
		return m.refs.HasTicker(w) && !m.refs.IsProblem(w)
	}

	token := ""
	for _, w := range words {
		if confirmed(w) {
			token = w
			break
		}
	}
	if token == "" {
		return Result{}, false
	}

	for _, w := range without(words, token) {
		if confirmed(w) {
			return ambiguous(token, "second ticker"), true
		}
	}

	return Result{
		Status:  StatusMatched,
		Company: token,
		Type:    TickerNoSymbol,
		IsDD:    IsDueDiligence(cleaned),
		Token:   token,
	}, true
}

// matchAlias fires on a company name or alias. Two aliases of the same
// company ("Google" and "Alphabet") are not ambiguous.
func (m *Matcher) matchAlias(title string) (Result, bool) {
	if m.aliasPattern == nil {
		return Result{}, false
	}
	cleaned := strings.Join(strings.Fields(clean(title, ruleAlias)), " ")
	found := m.findAliases(cleaned)
	if len(found) == 0 {
		return Result{}, false
	}

	token := found[0]
	ticker, ok := m.aliasTicker[strings.ToLower(token)]
	if !ok {
		return Result{}, false
	}
	for _, other := range found[1:] {
		if t := m.aliasTicker[strings.ToLower(other)]; t != ticker {
			return ambiguous(token, "second alias"), true
		}
	}

	return Result{
		Status:  StatusMatched,
		Company: ticker,
		Type:    Alias,
		IsDD:    IsDueDiligence(cleaned),
		Token:   token,
	}, true
}

func ambiguous(token, reason string) Result {
	return Result{Status: StatusAmbiguous, Token: token, Reason: reason}
}
