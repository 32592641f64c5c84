package reconcile

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/inventario-tags/internal/domain/entity"
)

// Scheduler ejecuta la conciliación periódicamente hasta que se cancele el contexto.
type Scheduler struct {
	svc      *Service
	interval time.Duration
	opts     Options
	actor    entity.Actor
	log      zerolog.Logger
}

// NewScheduler construye el programador. La primera ejecución es inmediata.
func NewScheduler(svc *Service, interval time.Duration, opts Options, actor entity.Actor, log zerolog.Logger) *Scheduler {
	return &Scheduler{svc: svc, interval: interval, opts: opts, actor: actor, log: log}
}

// Start bloquea hasta que ctx se cancele; devuelve ctx.Err().
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	report, err := s.svc.Run(ctx, s.opts, s.actor)
	switch {
	case IsRunning(err):
		s.log.Warn().Msg("conciliación omitida: otra ejecución tiene el candado")
	case err != nil && ctx.Err() == nil:
		s.log.Error().Err(err).Msg("error en la conciliación programada")
	case report != nil && report.Failures > 0:
		s.log.Warn().Int("failures", report.Failures).Msg("conciliación programada con fallos")
	}
}
