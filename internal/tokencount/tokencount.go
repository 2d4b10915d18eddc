// Package tokencount estimates the token cost of fetched payloads for
// logging and metrics. Counts never alter the gateway result contract.
package tokencount

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens in a text payload.
type Counter interface {
	// Count returns the token count for text. Implementations must never
	// fail: when exact counting is unavailable they estimate.
	Count(text string) int
}

// TiktokenCounter counts with a tiktoken encoding, falling back to a
// character-based estimate if the encoding cannot be initialized (tiktoken
// may download encoding data on first use).
type TiktokenCounter struct {
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

// NewTiktokenCounter creates a counter for the given encoding name.
// cl100k_base is a reasonable default for agent-facing budgets.
func NewTiktokenCounter(encoding string) *TiktokenCounter {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &TiktokenCounter{encoding: encoding}
}

// init lazily loads the encoding on first use.
func (c *TiktokenCounter) init() error {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			c.initErr = fmt.Errorf("init tiktoken encoding %s: %w", c.encoding, err)
			return
		}
		c.enc = enc
	})
	return c.initErr
}

// Count returns the token count for text, estimating when the encoding is
// unavailable.
func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if err := c.init(); err != nil {
		return Estimate(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Estimate approximates the token count at four characters per token, with
// a floor of one for non-empty text.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}
