// ABOUTME: Content assist interface and a simulated implementation.
// ABOUTME: Expands a short seed idea into fuller post content.
package assist

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrEmptySeed is returned when there is no idea to expand.
var ErrEmptySeed = errors.New("please enter a short idea for your post first")

// Enhancer expands a seed idea into post content.
type Enhancer interface {
	// Enhance returns content built from seed. Blank seeds return ErrEmptySeed.
	Enhance(ctx context.Context, seed string) (string, error)
}

// DefaultDelay is how long Simulated pretends to think.
const DefaultDelay = 2 * time.Second

const enhancedParagraph = "This is an exciting update that brings new perspectives and engaging insights to share with everyone. Looking forward to connecting and hearing your thoughts on this topic!"

// Simulated is an Enhancer that appends a fixed paragraph after a delay.
type Simulated struct {
	Delay time.Duration
}

// NewSimulated creates a simulated enhancer. A negative delay means DefaultDelay.
func NewSimulated(delay time.Duration) *Simulated {
	if delay < 0 {
		delay = DefaultDelay
	}
	return &Simulated{Delay: delay}
}

// Enhance waits for the configured delay, then returns the expanded seed.
func (s *Simulated) Enhance(ctx context.Context, seed string) (string, error) {
	if strings.TrimSpace(seed) == "" {
		return "", ErrEmptySeed
	}
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return seed + " ✨\n\n" + enhancedParagraph, nil
}
