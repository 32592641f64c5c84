package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/inventario-tags/internal/domain/repository"
)

var _ repository.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// NewRepositories repositorios atados a q (pool para lecturas sueltas o tx).
func NewRepositories(q Querier) repository.Repositories {
	return repository.Repositories{
		SKUs:       NewSKURepository(q),
		Instances:  NewInstanceRepository(q),
		Aggregates: NewAggregateRepository(q),
		Tags:       NewTagRepository(q),
	}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
// Deadlocks y fallos de serialización se devuelven envueltos en repository.ErrRetryable.
func (r *TxRunner) Run(ctx context.Context, fn func(repos repository.Repositories) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewRepositories(tx)); err != nil {
		return wrapRetryable(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapRetryable(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}
