package leads

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo keeps leads in process. Used by tests and when no database is configured.
type MemoryRepo struct {
	mu    sync.Mutex
	leads []Lead
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Create(ctx context.Context, l Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads = append(r.leads, l)
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sorted := make([]Lead, len(r.leads))
	copy(sorted, r.leads)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })

	out := []Lead{}
	if offset >= len(sorted) {
		return out, nil
	}
	end := offset + limit
	if end > len(sorted) {
		end = len(sorted)
	}
	return append(out, sorted[offset:end]...), nil
}

func (r *MemoryRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.leads), nil
}
