// Package ratelimit limita solicitudes por actor con token buckets de x/time/rate.
// Cada Limiter tiene su propio estado y ciclo de vida; no hay mapa global de proceso.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config parámetros del limitador. RPS <= 0 deshabilita el límite.
type Config struct {
	RPS     float64
	Burst   int
	IdleTTL time.Duration // buckets sin uso por más de IdleTTL se eliminan
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter token bucket por clave (actor, IP).
type Limiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New construye el limitador. Con IdleTTL > 0 arranca un barrido periódico que termina con Close.
func New(cfg Config) *Limiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	l := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if cfg.IdleTTL > 0 {
		go l.sweepLoop()
	} else {
		close(l.done)
	}
	return l
}

// Allow consume un token de la clave. Devuelve false si no hay tokens.
func (l *Limiter) Allow(key string) bool {
	if l.cfg.RPS <= 0 {
		return true
	}
	now := l.now()
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()
	return b.lim.AllowN(now, 1)
}

// Sweep elimina los buckets inactivos y devuelve cuántos quitó.
func (l *Limiter) Sweep() int {
	if l.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := l.now().Add(-l.cfg.IdleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
			n++
		}
	}
	return n
}

// Len cantidad de claves con bucket.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Close detiene el barrido y espera a que termine. Es idempotente.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() { close(l.stop) })
	<-l.done
}

func (l *Limiter) sweepLoop() {
	defer close(l.done)
	interval := l.cfg.IdleTTL / 2
	if interval <= 0 {
		interval = l.cfg.IdleTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
