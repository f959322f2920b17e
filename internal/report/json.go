package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/phrazzld/isocheck/internal/domain"
)

// JSONSink writes each result as one JSON document.
type JSONSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONSink creates a JSONSink writing to w. With indent set the documents
// are pretty-printed; otherwise each one is a single line.
func NewJSONSink(w io.Writer, indent bool) *JSONSink {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return &JSONSink{enc: enc}
}

// Emit implements Sink.
func (s *JSONSink) Emit(_ context.Context, result *domain.VerificationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(result); err != nil {
		return fmt.Errorf("encode result %s: %w", result.RunID, err)
	}
	return nil
}
