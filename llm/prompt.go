package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// sentimentSystemMessage is the system message for the sentiment rater
const sentimentSystemMessage = "You rate investment posts from a retail trading forum. " +
	"Reply with a JSON object only. market_sentiment is -1 when the author expects the security to fall, " +
	"0 when neutral or unclear, 1 when the author expects it to rise. " +
	"writing_quality rates the research and argument from 1 (no substance) to 10 (thorough analysis)."

// BuildSentimentPrompt formats the user message. Selftext longer than
// maxChars runes is cut at the last whitespace before the limit.
func BuildSentimentPrompt(title, selftext string, maxChars int) string {
	body := strings.TrimSpace(selftext)
	if maxChars > 0 && utf8.RuneCountInString(body) > maxChars {
		body = truncate(body, maxChars) + " [truncated]"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Title: %s\n\n", strings.TrimSpace(title)))
	sb.WriteString("Post:\n")
	sb.WriteString(body)
	return sb.String()
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	cut := string(runes[:maxChars])
	if i := strings.LastIndexAny(cut, " \n\t"); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
