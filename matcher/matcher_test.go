package matcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fin-nlp/reference"
)

var longBody = strings.Repeat("word ", 61)

func testMatcher(opts ...Option) *Matcher {
	refs := reference.Build(
		[]reference.CompanyRow{
			{Ticker: "GME", Alias: "GameStop"},
			{Ticker: "AMC", Alias: "AMC Entertainment"},
			{Ticker: "AAPL", Alias: "Apple"},
			{Ticker: "KO", Alias: "Coca-Cola; Coke"},
			{Ticker: "GOOGL", Alias: "Alphabet; Google"},
			{Ticker: "BAC", Alias: "Bank of America"},
			{Ticker: "ALL", Alias: "Allstate"},
			{Ticker: "NOW", Alias: "ServiceNow"},
			{Ticker: "TSLA", Alias: "Tesla"},
			{Ticker: "T", Alias: "AT&T"},
			{Ticker: "A", Alias: "Agilent"},
			{Ticker: "DD", Alias: "DuPont"},
			{Ticker: "NSRGY", Alias: "Nestlé"},
		},
		[]reference.ProblemRow{{Ticker: "ALL"}, {Ticker: "NOW"}},
		[]reference.ETFRow{{Ticker: "SPY"}},
		[]string{"A", "DD"},
	)
	return New(refs, opts...)
}

func candidate(title string) Candidate {
	return Candidate{Title: title, Selftext: longBody, Domain: "self.stocks"}
}

func TestMatchRules(t *testing.T) {
	m := testMatcher()

	tests := []struct {
		name    string
		title   string
		status  Status
		company string
		mtype   MatchType
		dd      bool
	}{
		{"dollar ticker", "Buy $GME!!!", StatusMatched, "GME", TickerWithSymbol, false},
		{"dollar ticker beats alias", "Apple earnings: is $AAPL cheap?", StatusMatched, "AAPL", TickerWithSymbol, false},
		{"paren ticker", "Apple (AAPL) earnings preview", StatusMatched, "AAPL", TickerWithSymbol, false},
		{"unknown dollar symbol", "$XYZW is my next play", StatusMatched, "XYZW", SymbolNoMatch, false},
		{"class share symbol", "$BRK.B is cheap", StatusMatched, "BRK.B", SymbolNoMatch, false},
		{"redirect after match", "$GOOG to the moon", StatusMatched, "GOOGL", SymbolNoMatch, false},
		{"bare ticker", "Thoughts on TSLA deliveries", StatusMatched, "TSLA", TickerNoSymbol, false},
		{"bare ticker with punctuation", "TSLA, what now?", StatusMatched, "TSLA", TickerNoSymbol, false},
		{"alias keeps dash", "Is Coca-Cola a buy here", StatusMatched, "KO", Alias, false},
		{"alias case insensitive", "why i like gamestop", StatusMatched, "GME", Alias, false},
		{"multi word alias", "Bank of America dividend", StatusMatched, "BAC", Alias, false},
		{"multi word alias with doubled space", "Bank of  America dividend", StatusMatched, "BAC", Alias, false},
		{"accented alias", "Why Nestlé is cheap", StatusMatched, "NSRGY", Alias, false},
		{"accented alias at end of title", "Thoughts on NESTLÉ", StatusMatched, "NSRGY", Alias, false},
		{"alias inside a longer accented word", "Teslaña rumors", StatusNoMatch, "", "", false},
		{"two aliases same company", "Google vs Alphabet naming", StatusMatched, "GOOGL", Alias, false},
		{"alias with stripped punctuation", "AT&T cutting the dividend", StatusMatched, "T", Alias, false},
		{"dd tag on match", "$GME DD: the squeeze", StatusMatched, "GME", TickerWithSymbol, true},
		{"due diligence phrase", "Due diligence on Tesla", StatusMatched, "TSLA", Alias, true},
		{"dd only", "My DD on the housing market", StatusMatched, NoCompany, DDNoMatch, true},
		{"excluded dd ticker", "DD!", StatusMatched, NoCompany, DDNoMatch, true},
		{"problem ticker", "ALL the things I can do", StatusNoMatch, "", "", false},
		{"nothing", "What a week", StatusNoMatch, "", "", false},
		{"two dollar tickers", "Is $GME or $AMC the better buy", StatusAmbiguous, "", "", false},
		{"dollar ticker and symbol", "$GME or $XYZ", StatusAmbiguous, "", "", false},
		{"two symbols", "$XYZ or $QWER", StatusAmbiguous, "", "", false},
		{"two bare tickers", "TSLA vs AAPL", StatusAmbiguous, "", "", false},
		{"two aliases", "Tesla vs Apple", StatusAmbiguous, "", "", false},
		{"repeated ticker is not ambiguous", "$GME $GME $GME", StatusMatched, "GME", TickerWithSymbol, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.Match(candidate(tt.title))
			require.Equal(t, tt.status, res.Status, "reason: %s", res.Reason)
			assert.Equal(t, tt.company, res.Company)
			assert.Equal(t, tt.mtype, res.Type)
			assert.Equal(t, tt.dd, res.IsDD)
		})
	}
}

func TestETFFallsThrough(t *testing.T) {
	m := testMatcher()

	res := m.Match(candidate("$SPY puts DD"))
	assert.Equal(t, StatusMatched, res.Status)
	assert.Equal(t, DDNoMatch, res.Type)

	res = m.Match(candidate("$SPY calls"))
	assert.Equal(t, StatusNoMatch, res.Status)
}

func TestAmbiguityIsNotNoMatch(t *testing.T) {
	m := testMatcher()
	res := m.Match(candidate("Is $GME or $AMC the better buy"))
	assert.Equal(t, StatusAmbiguous, res.Status)
	assert.NotEqual(t, StatusNoMatch, res.Status)
	assert.Equal(t, "$GME", res.Token)
	assert.False(t, res.Qualifies())
}

func TestEligibility(t *testing.T) {
	m := testMatcher(WithDomain("self.stocks"), WithMinWords(60))

	tests := []struct {
		name string
		c    Candidate
		ok   bool
	}{
		{"eligible", Candidate{Title: "$GME", Selftext: longBody, Domain: "self.stocks"}, true},
		{"other domain", Candidate{Title: "$GME", Selftext: longBody, Domain: "self.investing"}, false},
		{"removed", Candidate{Title: "$GME", Selftext: "[removed]", Domain: "self.stocks"}, false},
		{"deleted", Candidate{Title: "$GME", Selftext: "[deleted]", Domain: "self.stocks"}, false},
		{"empty", Candidate{Title: "$GME", Domain: "self.stocks"}, false},
		{"exactly min words", Candidate{Title: "$GME", Selftext: strings.Repeat("w ", 60), Domain: "self.stocks"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.Match(tt.c)
			if tt.ok {
				assert.Equal(t, StatusMatched, res.Status)
			} else {
				assert.Equal(t, StatusIneligible, res.Status)
			}
		})
	}
}

func TestMatchIsDeterministic(t *testing.T) {
	m := testMatcher()
	titles := []string{"Buy $GME!!!", "Tesla vs Apple", "Is Coca-Cola a buy here", "What a week"}
	for _, title := range titles {
		first := m.Match(candidate(title))
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, m.Match(candidate(title)))
		}
	}
}

func TestCustomRedirects(t *testing.T) {
	m := testMatcher(WithRedirects(map[string]string{"FB": "META"}))
	res := m.Match(candidate("$FB earnings"))
	assert.Equal(t, "META", res.Company)

	res = m.Match(candidate("$GOOG earnings"))
	assert.Equal(t, "GOOG", res.Company)
}

func TestMalformedTitlesDoNotPanic(t *testing.T) {
	m := testMatcher()
	for _, title := range []string{"", "$", "()", "$$$", "(", "\x00\xff", "$.B"} {
		assert.NotPanics(t, func() { m.Match(candidate(title)) }, title)
	}
}
