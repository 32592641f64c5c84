package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/inventario-tags/internal/domain"
)

// LockKey clave del candado de un solo ejecutor.
const LockKey = "lock:inventory:reconcile"

// Lock candado obtenido; Release lo libera.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker obtiene candados exclusivos con expiración.
// Obtain devuelve domain.ErrReconcileRunning si otro proceso ya tiene el candado.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// LocalLocker candado en proceso (sin Redis). Solo sirve con una única instancia del servicio.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewLocalLocker construye el candado en proceso.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), now: time.Now}
}

func (l *LocalLocker) Obtain(_ context.Context, key string, ttl time.Duration) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if exp, ok := l.held[key]; ok && (ttl <= 0 || now.Before(exp)) {
		return nil, domain.ErrReconcileRunning
	}
	exp := now.Add(ttl)
	l.held[key] = exp
	return &localLock{owner: l, key: key, exp: exp}, nil
}

type localLock struct {
	owner *LocalLocker
	key   string
	exp   time.Time
}

func (k *localLock) Release(context.Context) error {
	k.owner.mu.Lock()
	defer k.owner.mu.Unlock()
	// Si expiró y otro lo tomó, no es nuestro
	if exp, ok := k.owner.held[k.key]; ok && exp.Equal(k.exp) {
		delete(k.owner.held, k.key)
	}
	return nil
}
