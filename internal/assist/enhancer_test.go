// ABOUTME: Tests for the simulated content enhancer.
// ABOUTME: Covers output format, blank seed rejection, and cancellation.
package assist

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSimulatedEnhance(t *testing.T) {
	s := NewSimulated(0)
	got, err := s.Enhance(context.Background(), "Beach day")
	if err != nil {
		t.Fatalf("Enhance error: %v", err)
	}
	if !strings.HasPrefix(got, "Beach day ✨\n\n") {
		t.Errorf("unexpected prefix: %q", got)
	}
	if !strings.HasSuffix(got, enhancedParagraph) {
		t.Errorf("missing paragraph: %q", got)
	}
}

func TestSimulatedBlankSeed(t *testing.T) {
	s := NewSimulated(0)
	if _, err := s.Enhance(context.Background(), "  \n"); !errors.Is(err, ErrEmptySeed) {
		t.Errorf("expected ErrEmptySeed, got %v", err)
	}
}

func TestSimulatedHonorsContext(t *testing.T) {
	s := NewSimulated(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Enhance(ctx, "idea")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestNewSimulatedDefaultDelay(t *testing.T) {
	if got := NewSimulated(-1).Delay; got != DefaultDelay {
		t.Errorf("expected default delay, got %v", got)
	}
}
