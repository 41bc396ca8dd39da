package testutil

import (
	"sync"
	"time"

	"github.com/yungbote/promptlab-backend/internal/data/aggregates"
)

// HooksRecorder captures aggregate hook signals in tests. It is safe for use
// by concurrent writers; read it through the accessor methods.
type HooksRecorder struct {
	mu sync.Mutex

	ops       []OperationEvent
	conflicts map[string]int
	retries   map[string]int
}

type OperationEvent struct {
	Name     string
	Status   string
	Duration time.Duration
}

var _ aggregates.Hooks = (*HooksRecorder)(nil)

func (h *HooksRecorder) ObserveOperation(name, status string, dur time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ops = append(h.ops, OperationEvent{Name: name, Status: status, Duration: dur})
}

func (h *HooksRecorder) IncConflict(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conflicts == nil {
		h.conflicts = map[string]int{}
	}
	h.conflicts[name]++
}

func (h *HooksRecorder) IncRetry(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.retries == nil {
		h.retries = map[string]int{}
	}
	h.retries[name]++
}

// Operations returns a copy of every observed operation in order.
func (h *HooksRecorder) Operations() []OperationEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]OperationEvent(nil), h.ops...)
}

// StatusCounts tallies observed statuses, optionally restricted to one operation name.
func (h *HooksRecorder) StatusCounts(name string) map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := map[string]int{}
	for _, op := range h.ops {
		if name == "" || op.Name == name {
			out[op.Status]++
		}
	}
	return out
}

// Conflicts returns the number of conflicts for name, or for all operations when name is "".
func (h *HooksRecorder) Conflicts(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return count(h.conflicts, name)
}

func (h *HooksRecorder) Retries(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return count(h.retries, name)
}

func count(m map[string]int, name string) int {
	if name != "" {
		return m[name]
	}
	total := 0
	for _, n := range m {
		total += n
	}
	return total
}
