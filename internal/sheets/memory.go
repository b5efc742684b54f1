package sheets

import (
	"context"
	"sync"

	"github.com/designscore/designscore/internal/analysis"
)

// MemoryAppender collects rows in memory for development and tests.
type MemoryAppender struct {
	mu   sync.Mutex
	rows []analysis.AnalysisResult
}

// NewMemoryAppender creates an empty MemoryAppender.
func NewMemoryAppender() *MemoryAppender {
	return &MemoryAppender{}
}

// AppendRow records the result.
func (m *MemoryAppender) AppendRow(_ context.Context, result analysis.AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, result)
	return nil
}

// Rows returns a snapshot of everything appended so far.
func (m *MemoryAppender) Rows() []analysis.AnalysisResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]analysis.AnalysisResult(nil), m.rows...)
}
