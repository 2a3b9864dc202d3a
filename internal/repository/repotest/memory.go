// Package repotest provides an in-memory APIKeysRepository for tests.
package repotest

import (
	"context"
	"sort"
	"sync"

	"github.com/dani-ai/dani/internal/model"
	"github.com/dani-ai/dani/internal/repository"
)

// MemoryAPIKeys keeps rows in a map. Each method is atomic on its own; a
// sequence of calls is not, the same as separate statements against MySQL.
type MemoryAPIKeys struct {
	mu   sync.Mutex
	rows map[string]model.APIKey // by id

	// Err, when set, is returned (wrapped in ErrStore) by every call.
	Err error
	// AfterGetUsage runs after GetUsage has read the counter, outside the lock.
	AfterGetUsage func()
}

func NewMemoryAPIKeys() *MemoryAPIKeys {
	return &MemoryAPIKeys{rows: map[string]model.APIKey{}}
}

var _ repository.APIKeysRepository = (*MemoryAPIKeys)(nil)

func (m *MemoryAPIKeys) fail() error {
	if m.Err != nil {
		return &storeError{err: m.Err}
	}
	return nil
}

type storeError struct{ err error }

func (e *storeError) Error() string { return "store error: " + e.err.Error() }
func (e *storeError) Is(target error) bool {
	return target == repository.ErrStore
}
func (e *storeError) Unwrap() error { return e.err }

func (m *MemoryAPIKeys) Create(_ context.Context, k model.APIKey) error {
	if err := m.fail(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Value == k.Value {
			return &dupError{}
		}
	}
	k.Usage = 0
	m.rows[k.ID] = k
	return nil
}

type dupError struct{}

func (*dupError) Error() string { return "store error: duplicate api key value" }
func (*dupError) Is(target error) bool {
	return target == repository.ErrStore || target == repository.ErrDuplicateValue
}

func (m *MemoryAPIKeys) ListByOwner(_ context.Context, ownerID string) ([]model.APIKey, error) {
	if err := m.fail(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.APIKey{}
	for _, r := range m.rows {
		if r.UserID == ownerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryAPIKeys) GetByID(_ context.Context, ownerID, id string) (*model.APIKey, error) {
	if err := m.fail(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.UserID != ownerID {
		return nil, repository.ErrKeyNotFound
	}
	return &r, nil
}

func (m *MemoryAPIKeys) Rename(_ context.Context, ownerID, id, name string) error {
	if err := m.fail(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.UserID != ownerID {
		return repository.ErrKeyNotFound
	}
	r.Name = name
	m.rows[id] = r
	return nil
}

func (m *MemoryAPIKeys) Delete(_ context.Context, ownerID, id string) error {
	if err := m.fail(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.UserID != ownerID {
		return repository.ErrKeyNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *MemoryAPIKeys) GetByValue(_ context.Context, value string) (*model.APIKey, error) {
	if err := m.fail(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byValue(value)
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *MemoryAPIKeys) GetUsage(_ context.Context, value string) (int64, error) {
	if err := m.fail(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	r, ok := m.byValue(value)
	m.mu.Unlock()
	if !ok {
		return 0, repository.ErrKeyNotFound
	}
	if m.AfterGetUsage != nil {
		m.AfterGetUsage()
	}
	return r.Usage, nil
}

func (m *MemoryAPIKeys) SetUsage(_ context.Context, value string, usage int64) error {
	if err := m.fail(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.byValue(value); ok {
		r.Usage = usage
		m.rows[r.ID] = r
	}
	return nil
}

func (m *MemoryAPIKeys) IncrementUsageBelowLimit(_ context.Context, value string) (bool, error) {
	if err := m.fail(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byValue(value)
	if !ok || r.Usage >= r.RequestLimit {
		return false, nil
	}
	r.Usage++
	m.rows[r.ID] = r
	return true, nil
}

func (m *MemoryAPIKeys) RefundUsage(_ context.Context, value string) error {
	if err := m.fail(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.byValue(value); ok && r.Usage > 0 {
		r.Usage--
		m.rows[r.ID] = r
	}
	return nil
}

// Put stores k as-is, usage included.
func (m *MemoryAPIKeys) Put(k model.APIKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[k.ID] = k
}

// Usage returns the stored counter for value, or -1 when absent.
func (m *MemoryAPIKeys) Usage(value string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byValue(value)
	if !ok {
		return -1
	}
	return r.Usage
}

func (m *MemoryAPIKeys) byValue(value string) (model.APIKey, bool) {
	for _, r := range m.rows {
		if r.Value == value {
			return r, true
		}
	}
	return model.APIKey{}, false
}
