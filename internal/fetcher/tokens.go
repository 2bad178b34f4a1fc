package fetcher

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TruncationNotice is appended to any content cut down to the token budget
// so downstream prompts can tell the page was incomplete.
const TruncationNotice = "\n\n[NOTE: Content was truncated to fit the token limit. The page may contain additional relevant information.]"

// TokenCounter counts and truncates text against a token budget using a
// tiktoken encoding.
type TokenCounter struct {
	encoding  *tiktoken.Tiktoken
	maxTokens int
}

// NewTokenCounter builds a counter for the named encoding (e.g. "cl100k_base").
func NewTokenCounter(encodingName string, maxTokens int) (*TokenCounter, error) {
	if encodingName == "" {
		encodingName = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("loading tiktoken encoding %q: %w", encodingName, err)
	}
	return &TokenCounter{encoding: enc, maxTokens: maxTokens}, nil
}

// Count returns the number of tokens in the text.
func (c *TokenCounter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// Truncate cuts the text down to the token budget, appending a notice when
// it does. The second return reports whether truncation happened.
func (c *TokenCounter) Truncate(text string) (string, bool) {
	tokens := c.encoding.Encode(text, nil, nil)
	if len(tokens) <= c.maxTokens {
		return text, false
	}
	return c.encoding.Decode(tokens[:c.maxTokens]) + TruncationNotice, true
}
