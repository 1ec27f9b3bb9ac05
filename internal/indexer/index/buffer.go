// Package index holds the in-memory side of a write session: documents
// accepted since the last commit or spill, with a running size estimate.
package index

import (
	"sync"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/ingestion"
)

// MemoryBuffer holds documents in insertion order. It is safe for
// concurrent use.
type MemoryBuffer struct {
	mu   sync.RWMutex
	docs []ingestion.Document
	size int64
}

func NewMemoryBuffer() *MemoryBuffer {
	return &MemoryBuffer{}
}

// Add appends doc and returns the buffered size afterwards.
func (m *MemoryBuffer) Add(doc ingestion.Document) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, doc)
	m.size += int64(doc.Size())
	return m.size
}

// Snapshot returns the buffered documents in insertion order. The slice is a
// copy; later Adds do not affect it.
func (m *MemoryBuffer) Snapshot() []ingestion.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ingestion.Document, len(m.docs))
	copy(out, m.docs)
	return out
}

// Pop removes the most recently added document and returns the buffered
// size afterwards. It is a no-op on an empty buffer.
func (m *MemoryBuffer) Pop() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := len(m.docs); n > 0 {
		m.size -= int64(m.docs[n-1].Size())
		m.docs[n-1] = ingestion.Document{}
		m.docs = m.docs[:n-1]
	}
	return m.size
}

func (m *MemoryBuffer) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryBuffer) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *MemoryBuffer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = nil
	m.size = 0
}
