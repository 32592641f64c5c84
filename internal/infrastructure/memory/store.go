// Package memory implementa los puertos de persistencia en memoria.
// Cada transacción trabaja sobre una copia del estado que solo se publica si fn termina sin error,
// así un rollback no deja escrituras parciales visibles.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/inventario-tags/internal/domain/entity"
	"github.com/jhoicas/inventario-tags/internal/domain/repository"
)

var _ repository.TxRunner = (*Store)(nil)

type state struct {
	skus       map[string]entity.SKU
	instances  map[string]entity.Instance
	aggregates map[string]entity.Aggregate
	tags       map[string]entity.Tag
}

func newState() *state {
	return &state{
		skus:       map[string]entity.SKU{},
		instances:  map[string]entity.Instance{},
		aggregates: map[string]entity.Aggregate{},
		tags:       map[string]entity.Tag{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.skus {
		c.skus[k] = v
	}
	for k, v := range s.instances {
		c.instances[k] = v.Clone()
	}
	for k, v := range s.aggregates {
		c.aggregates[k] = cloneAggregate(v)
	}
	for k, v := range s.tags {
		c.tags[k] = v.Clone()
	}
	return c
}

func cloneAggregate(a entity.Aggregate) entity.Aggregate {
	if a.LastMovement != nil {
		mv := *a.LastMovement
		a.LastMovement = &mv
	}
	return a
}

// Store almacén en memoria. Las escrituras fuera de Run toman el mutex por llamada;
// Run lo toma durante toda la transacción.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// Option configura el Store.
type Option func(*Store)

// WithClock fija el reloj usado para las marcas de tiempo.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore construye un almacén vacío.
func NewStore(opts ...Option) *Store {
	s := &Store{st: newState(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Repositories devuelve los repositorios fuera de transacción.
func (s *Store) Repositories() repository.Repositories {
	return reposFor(&view{now: s.now, acquire: func() (*state, func()) {
		s.mu.Lock()
		return s.st, s.mu.Unlock
	}})
}

// Run ejecuta fn sobre una copia del estado y la publica solo si fn no devuelve error.
func (s *Store) Run(ctx context.Context, fn func(repos repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	repos := reposFor(&view{now: s.now, acquire: func() (*state, func()) {
		return work, func() {}
	}})
	if err := fn(repos); err != nil {
		return err
	}
	s.st = work
	return nil
}

type view struct {
	now     func() time.Time
	acquire func() (*state, func())
}

func reposFor(v *view) repository.Repositories {
	return repository.Repositories{
		SKUs:       &SKURepo{v: v},
		Instances:  &InstanceRepo{v: v},
		Aggregates: &AggregateRepo{v: v},
		Tags:       &TagRepo{v: v},
	}
}
