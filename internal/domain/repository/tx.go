package repository

import (
	"context"
	"errors"
)

// Repositories repositorios atados a una misma transacción.
type Repositories struct {
	SKUs       SKURepository
	Instances  InstanceRepository
	Aggregates AggregateRepository
	Tags       TagRepository
}

// TxRunner ejecuta fn dentro de una transacción: Commit si fn devuelve nil, Rollback en otro caso.
type TxRunner interface {
	Run(ctx context.Context, fn func(repos Repositories) error) error
}

// ErrRetryable la transacción se abortó por un conflicto de concurrencia (deadlock o serialización)
// y puede reintentarse completa.
var ErrRetryable = errors.New("transacción abortada por concurrencia")
