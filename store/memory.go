package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront/model"
)

type memoryRecord struct {
	p   model.Product
	seq uint64
}

// MemoryStore keeps products in process memory. Used for local runs and
// tests; all state is lost on restart.
type MemoryStore struct {
	mu  sync.RWMutex
	m   map[string]memoryRecord
	seq uint64
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]memoryRecord), now: time.Now}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateProduct(_ context.Context, np model.NewProduct) (model.Product, error) {
	if err := np.Validate(); err != nil {
		return model.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	p := model.Product{
		ID:          uuid.NewString(),
		Name:        np.Name,
		Price:       np.Price,
		Description: np.Description,
		ImageURL:    np.ImageURL,
		Available:   true,
		CreatedAt:   s.now().UTC(),
	}
	s.m[p.ID] = memoryRecord{p: p, seq: s.seq}
	return p, nil
}

func (s *MemoryStore) GetProduct(_ context.Context, id string) (model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.m[id]
	if !ok {
		return model.Product{}, model.ErrNotFound
	}
	return rec.p, nil
}

func (s *MemoryStore) ListProducts(_ context.Context) ([]model.Product, error) {
	s.mu.RLock()
	recs := make([]memoryRecord, 0, len(s.m))
	for _, rec := range s.m {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].p.CreatedAt.Equal(recs[j].p.CreatedAt) {
			return recs[i].p.CreatedAt.After(recs[j].p.CreatedAt)
		}
		return recs[i].seq > recs[j].seq
	})
	out := make([]model.Product, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.p)
	}
	return out, nil
}

// MarkSold performs the check and the write under the write lock.
func (s *MemoryStore) MarkSold(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.m[id]
	if !ok || !rec.p.Available {
		return false, nil
	}
	rec.p.Available = false
	s.m[id] = rec
	return true, nil
}
