package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrInvalidScore is returned when a reply is not exactly the requested
// JSON object or a value is out of range
var ErrInvalidScore = errors.New("invalid sentiment response")

// Score ranges
const (
	MinSentiment = -1 // bearish
	MaxSentiment = 1  // bullish
	MinQuality   = 1
	MaxQuality   = 10
)

// Sentiment is the scored view of one post
type Sentiment struct {
	MarketSentiment int `json:"market_sentiment"`
	WritingQuality  int `json:"writing_quality"`
}

var sentimentSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"market_sentiment": {"type": "integer", "minimum": -1, "maximum": 1},
		"writing_quality": {"type": "integer", "minimum": 1, "maximum": 10}
	},
	"required": ["market_sentiment", "writing_quality"],
	"additionalProperties": false
}`)

// SentimentFormat requests the sentiment object as the whole reply
var SentimentFormat = &ResponseFormat{
	Type: "json_schema",
	JSONSchema: &JSONSchema{
		Name:   "post_sentiment",
		Strict: true,
		Schema: sentimentSchema,
	},
}

// ParseSentiment decodes a reply strictly: one JSON object, both fields
// present as integers, no other fields, values in range
func ParseSentiment(content string) (Sentiment, error) {
	var raw struct {
		MarketSentiment *int `json:"market_sentiment"`
		WritingQuality  *int `json:"writing_quality"`
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(content)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return Sentiment{}, fmt.Errorf("%w: %v", ErrInvalidScore, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Sentiment{}, fmt.Errorf("%w: trailing data", ErrInvalidScore)
	}
	if raw.MarketSentiment == nil || raw.WritingQuality == nil {
		return Sentiment{}, fmt.Errorf("%w: missing field", ErrInvalidScore)
	}

	s := Sentiment{MarketSentiment: *raw.MarketSentiment, WritingQuality: *raw.WritingQuality}
	if s.MarketSentiment < MinSentiment || s.MarketSentiment > MaxSentiment {
		return Sentiment{}, fmt.Errorf("%w: market_sentiment %d out of range", ErrInvalidScore, s.MarketSentiment)
	}
	if s.WritingQuality < MinQuality || s.WritingQuality > MaxQuality {
		return Sentiment{}, fmt.Errorf("%w: writing_quality %d out of range", ErrInvalidScore, s.WritingQuality)
	}
	return s, nil
}

// ScoreSentiment asks the model to rate a post
func (c *Client) ScoreSentiment(ctx context.Context, title, selftext string, maxChars int) (Sentiment, error) {
	messages := []Message{
		{
			Role:    "system",
			Content: sentimentSystemMessage,
		},
		{
			Role:    "user",
			Content: BuildSentimentPrompt(title, selftext, maxChars),
		},
	}

	content, err := c.ChatCompletion(ctx, messages, SentimentFormat)
	if err != nil {
		return Sentiment{}, err
	}
	return ParseSentiment(content)
}
