package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/phrazzld/isocheck/internal/domain"
)

// TextSink writes the line-oriented report: one line per observation and a
// final PASS or FAIL line.
type TextSink struct {
	w  io.Writer
	mu sync.Mutex
	// Quiet drops the observation lines and keeps only the summary.
	Quiet bool
}

// NewTextSink creates a TextSink writing to w.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

// Emit implements Sink.
func (s *TextSink) Emit(_ context.Context, result *domain.VerificationResult) error {
	var b strings.Builder
	if !s.Quiet {
		for _, o := range result.Log {
			b.WriteString(o.String())
			b.WriteByte('\n')
		}
	}
	b.WriteString(SummaryLine(result))
	b.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, b.String()); err != nil {
		return fmt.Errorf("write text report: %w", err)
	}
	return nil
}

// SummaryLine renders the PASS/FAIL line of result.
func SummaryLine(result *domain.VerificationResult) string {
	level := result.Isolation.String()
	if result.EffectiveIsolation != result.Isolation {
		level = fmt.Sprintf("%s (runs as %s)", level, result.EffectiveIsolation)
	}
	return fmt.Sprintf("%s %s at %s: %s, expected %s; %s",
		result.Status(), result.Scenario, level, result.Verdict, result.Expected, result.Explanation)
}
