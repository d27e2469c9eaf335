package matcher

import "strings"

// IsDueDiligence reports whether a title carries the due diligence tag:
// the standalone word "dd" or the phrase "due diligence", case-insensitive.
func IsDueDiligence(title string) bool {
	lower := strings.ToLower(clean(title, ruleDD))
	for _, w := range strings.Fields(lower) {
		if w == "dd" {
			return true
		}
	}
	return strings.Contains(lower, "due diligence")
}
