package journal

import (
	"context"
	"sync"
)

// DefaultMemoryCapacity 内存日志保留的最近记录条数
const DefaultMemoryCapacity = 1024

// MemoryJournal 环形缓冲，只保留最近的记录
type MemoryJournal struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	next     int
	full     bool
}

func NewMemoryJournal(capacity int) *MemoryJournal {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryJournal{
		entries:  make([]Entry, capacity),
		capacity: capacity,
	}
}

func (m *MemoryJournal) Record(entry Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.next] = entry
	m.next++
	if m.next == m.capacity {
		m.next = 0
		m.full = true
	}
}

// Entries 按记录顺序返回当前保留的所有记录
func (m *MemoryJournal) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.full {
		out := make([]Entry, m.next)
		copy(out, m.entries[:m.next])
		return out
	}
	out := make([]Entry, 0, m.capacity)
	out = append(out, m.entries[m.next:]...)
	out = append(out, m.entries[:m.next]...)
	return out
}

func (m *MemoryJournal) Close(_ context.Context) error {
	return nil
}
