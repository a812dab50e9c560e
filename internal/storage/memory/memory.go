package memory

import (
	"context"
	"sync"

	"github.com/bna-integrations/checkout-reconciler/internal/identity"
	"github.com/bna-integrations/checkout-reconciler/internal/order"
)

// OrderStore is an in-memory order.Store for tests and DB-less development.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]*order.Order
	seq    []string // insertion order, oldest first
}

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]*order.Order)}
}

func (s *OrderStore) Create(ctx context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cloneOrder(o)
	if _, exists := s.orders[o.ID]; !exists {
		s.seq = append(s.seq, o.ID)
	}
	s.orders[o.ID] = cp
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *OrderStore) FindByMeta(ctx context.Context, key, value string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Most recent first, matching the postgres ORDER BY created_at DESC.
	for i := len(s.seq) - 1; i >= 0; i-- {
		o := s.orders[s.seq[i]]
		if o.Metadata[key] == value && value != "" {
			return cloneOrder(o), nil
		}
	}
	return nil, order.ErrNotFound
}

func (s *OrderStore) RecentWithMeta(ctx context.Context, key string, limit int) ([]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*order.Order
	for i := len(s.seq) - 1; i >= 0 && len(out) < limit; i-- {
		o := s.orders[s.seq[i]]
		if _, ok := o.Metadata[key]; ok {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (s *OrderStore) Recent(ctx context.Context, limit int) ([]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*order.Order
	for i := len(s.seq) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, cloneOrder(s.orders[s.seq[i]]))
	}
	return out, nil
}

func (s *OrderStore) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = status
	return nil
}

func (s *OrderStore) SetMeta(ctx context.Context, id, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	if o.Metadata == nil {
		o.Metadata = map[string]string{}
	}
	o.Metadata[key] = value
	return nil
}

func (s *OrderStore) AppendNote(ctx context.Context, id, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Notes = append(o.Notes, note)
	return nil
}

func cloneOrder(o *order.Order) *order.Order {
	cp := *o
	cp.Metadata = make(map[string]string, len(o.Metadata))
	for k, v := range o.Metadata {
		cp.Metadata[k] = v
	}
	cp.Items = append([]order.Item(nil), o.Items...)
	cp.Notes = append([]string(nil), o.Notes...)
	return &cp
}

// IdentityStore is an in-memory identity.Store.
type IdentityStore struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{m: make(map[string]string)}
}

func (s *IdentityStore) Get(ctx context.Context, email string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.m[identity.HashEmail(email)]
	return id, ok, nil
}

func (s *IdentityStore) Put(ctx context.Context, email, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[identity.HashEmail(email)] = id
	return nil
}

func (s *IdentityStore) Delete(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, identity.HashEmail(email))
	return nil
}
