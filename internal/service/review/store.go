package review

import (
	"sync"
)

const defaultRetention = 200

// Store keeps jobs for the lifetime of the process.
type Store interface {
	Put(job *Job)
	Get(id string) (*Job, bool)
	// Update applies fn to the stored job under the store lock.
	Update(id string, fn func(*Job)) bool
	Len() int
}

// MemoryStore holds at most capacity jobs; the oldest submission is evicted
// first, whether or not it finished.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	jobs     map[string]*Job
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultRetention
	}
	return &MemoryStore{
		capacity: capacity,
		jobs:     make(map[string]*Job),
	}
}

func (m *MemoryStore) Put(job *Job) {
	if job == nil {
		return
	}
	cp := job.clone()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.ID]; !exists {
		m.order = append(m.order, job.ID)
	}
	m.jobs[job.ID] = cp
	for len(m.order) > m.capacity {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.jobs, oldest)
	}
}

func (m *MemoryStore) Get(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok || job == nil {
		return nil, false
	}
	return job.clone(), true
}

func (m *MemoryStore) Update(id string, fn func(*Job)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job == nil {
		return false
	}
	fn(job)
	return true
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}
