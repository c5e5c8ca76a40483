package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ports "spendlens/internal/sheets"
)

var (
	_ ports.SummaryWriter = (*Store)(nil)
	_ ports.SummaryReader = (*Store)(nil)
)

// Store keeps every written summary in memory.
type Store struct {
	mu      sync.Mutex
	written []ports.Summary
}

func New() *Store {
	return &Store{}
}

// WriteSummary records the summary and returns a synthetic reference.
func (s *Store) WriteSummary(_ context.Context, sum ports.Summary) (string, error) {
	if sum.RunID == "" {
		return "", errors.New("summary without run id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := append([]ports.Row(nil), sum.Rows...)
	sum.Rows = rows
	s.written = append(s.written, sum)
	return fmt.Sprintf("mem:%d", len(s.written)), nil
}

// ReadSummary returns the rows of the latest summary.
func (s *Store) ReadSummary(_ context.Context) ([]ports.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.written) == 0 {
		return nil, nil
	}
	return append([]ports.Row(nil), s.written[len(s.written)-1].Rows...), nil
}

// Count reports how many summaries were written.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.written)
}
