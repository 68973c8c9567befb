package calls

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory call log for tests and local runs without Postgres.
type MemoryRepo struct {
	mu    sync.Mutex
	calls map[string]Call // keyed by provider + "/" + provider call id
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{calls: make(map[string]Call)}
}

func memKey(provider, providerCallID string) string {
	return provider + "/" + providerCallID
}

func (r *MemoryRepo) Create(ctx context.Context, c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := memKey(c.Provider, c.ProviderCallID)
	if _, ok := r.calls[k]; ok {
		return fmt.Errorf("insert call: duplicate %s", k)
	}
	r.calls[k] = c
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, provider, providerCallID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[memKey(provider, providerCallID)]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) Update(ctx context.Context, c Call, prev CallStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := memKey(c.Provider, c.ProviderCallID)
	cur, ok := r.calls[k]
	if !ok || cur.Status != prev {
		return ErrStatusChanged
	}
	r.calls[k] = c
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, f ListFilter) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if !f.From.IsZero() && c.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !c.CreatedAt.Before(f.To) {
			continue
		}
		if f.CampaignID != "" && c.CampaignID != f.CampaignID {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
