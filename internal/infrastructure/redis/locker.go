// Package redis conecta el servicio a Redis: candado distribuido de la conciliación.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/inventario-tags/internal/application/reconcile"
	"github.com/jhoicas/inventario-tags/internal/domain"
)

var _ reconcile.Locker = (*Locker)(nil)

// NewClient crea el cliente y verifica la conexión con PING.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}

// Locker candado distribuido sobre bsm/redislock.
type Locker struct {
	client *redislock.Client
}

// NewLocker envuelve un cliente Redis.
func NewLocker(rdb goredis.UniversalClient) *Locker {
	return &Locker{client: redislock.New(rdb)}
}

// Obtain intenta tomar el candado una sola vez (sin reintentos).
func (l *Locker) Obtain(ctx context.Context, key string, ttl time.Duration) (reconcile.Lock, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, domain.ErrReconcileRunning
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return &redisLock{lock: lock}, nil
}

type redisLock struct {
	lock *redislock.Lock
}

func (r *redisLock) Release(ctx context.Context) error {
	err := r.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}
