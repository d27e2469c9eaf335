package matcher

import "strings"

// removedChars is the punctuation stripped from titles before word matching
const removedChars = "~!@#$%^&*()-[]{}><.,=|/:;\\\"'?"

// rule identifies a matching rule; each rule keeps a different subset of
// the punctuation so its own token survives cleaning.
type rule int

const (
	ruleDollar rule = iota
	ruleParen
	ruleBare
	ruleAlias
	ruleDD
)

// kept maps each rule to the characters it preserves
var kept = map[rule]string{
	ruleDollar: "$",
	ruleParen:  "()",
	ruleBare:   "",
	ruleAlias:  "-", // Coca-Cola
	ruleDD:     "",
}

// clean removes the punctuation of removedChars except what the rule keeps
func clean(title string, r rule) string {
	keep := kept[r]
	return strings.Map(func(c rune) rune {
		if strings.ContainsRune(removedChars, c) && !strings.ContainsRune(keep, c) {
			return -1
		}
		return c
	}, title)
}

// without returns words minus every occurrence of token
func without(words []string, token string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w != token {
			out = append(out, w)
		}
	}
	return out
}
