// Package reconcile repara la deriva entre los agregados en caché y la población de instancias.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/inventario-tags/internal/application/inventory"
	"github.com/jhoicas/inventario-tags/internal/application/policy"
	"github.com/jhoicas/inventario-tags/internal/domain"
	"github.com/jhoicas/inventario-tags/internal/domain/entity"
	"github.com/jhoicas/inventario-tags/internal/domain/repository"
)

// RecoveryNote nota de las instancias sintéticas.
const RecoveryNote = "recovery"

const (
	defaultWorkers = 4
	defaultLockTTL = 10 * time.Minute
)

// Config parámetros de la conciliación.
type Config struct {
	Workers int
	LockTTL time.Duration
}

// Options una ejecución. SKUIDs vacío concilia todo el catálogo.
type Options struct {
	DryRun bool
	SKUIDs []string
}

// Entry resultado por SKU.
type Entry struct {
	SKUID       string `json:"sku_id"`
	Expected    int    `json:"expected"`
	Found       int    `json:"found"`
	Synthesized int    `json:"synthesized"`
	Error       string `json:"error,omitempty"`
}

// Report resultado de una ejecución.
type Report struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DryRun     bool      `json:"dry_run"`
	Entries    []Entry   `json:"entries"`
	Failures   int       `json:"failures"`
}

// Synthesized total de instancias creadas (o que se crearían en dry-run).
func (r *Report) Synthesized() int {
	n := 0
	for _, e := range r.Entries {
		n += e.Synthesized
	}
	return n
}

// Service compara, por SKU, el total esperado (agregado almacenado) con las instancias vivas
// encontradas y sintetiza las que falten. Después recalcula el agregado.
type Service struct {
	txRunner   repository.TxRunner
	repos      repository.Repositories
	aggregator *inventory.AggregatorUseCase
	locker     Locker
	policy     policy.Checker
	log        zerolog.Logger
	cfg        Config
	now        func() time.Time

	synthesizedCounter metric.Int64Counter
	runCounter         metric.Int64Counter
}

// NewService construye el servicio.
func NewService(
	txRunner repository.TxRunner,
	repos repository.Repositories,
	aggregator *inventory.AggregatorUseCase,
	locker Locker,
	checker policy.Checker,
	log zerolog.Logger,
	cfg Config,
) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	meter := otel.Meter("github.com/jhoicas/inventario-tags/reconcile")
	synthesized, _ := meter.Int64Counter("inventory_recovery_instances_total",
		metric.WithDescription("Instancias sintéticas creadas por la conciliación"))
	runs, _ := meter.Int64Counter("inventory_reconcile_runs_total",
		metric.WithDescription("Ejecuciones de la conciliación"))

	return &Service{
		txRunner:           txRunner,
		repos:              repos,
		aggregator:         aggregator,
		locker:             locker,
		policy:             checker,
		log:                log,
		cfg:                cfg,
		now:                time.Now,
		synthesizedCounter: synthesized,
		runCounter:         runs,
	}
}

// Run ejecuta una conciliación. Los fallos por SKU quedan en el reporte y no detienen el lote.
func (s *Service) Run(ctx context.Context, opts Options, actor entity.Actor) (*Report, error) {
	if err := s.policy.Check(ctx, policy.OpReconcile, actor); err != nil {
		return nil, err
	}
	lock, err := s.locker.Obtain(ctx, LockKey, s.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn().Err(err).Msg("no se pudo liberar el candado de conciliación")
		}
	}()

	skuIDs, err := s.targets(ctx, opts.SKUIDs)
	if err != nil {
		return nil, err
	}

	report := &Report{StartedAt: s.now(), DryRun: opts.DryRun, Entries: make([]Entry, len(skuIDs))}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, skuID := range skuIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				report.Entries[i] = Entry{SKUID: skuID, Error: err.Error()}
				return nil
			}
			report.Entries[i] = s.reconcileSKU(gctx, skuID, opts.DryRun, actor)
			return nil
		})
	}
	_ = g.Wait()
	report.FinishedAt = s.now()

	for _, e := range report.Entries {
		if e.Error != "" {
			report.Failures++
		}
	}
	s.runCounter.Add(ctx, 1)
	s.log.Info().
		Int("skus", len(report.Entries)).
		Int("synthesized", report.Synthesized()).
		Int("failures", report.Failures).
		Bool("dry_run", opts.DryRun).
		Str("actor", actor.ID).
		Msg("conciliación terminada")
	return report, ctx.Err()
}

func (s *Service) targets(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) > 0 {
		return ids, nil
	}
	skus, err := s.repos.SKUs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list skus: %w", err)
	}
	out := make([]string, 0, len(skus))
	for _, sku := range skus {
		out = append(out, sku.ID)
	}
	return out, nil
}

func (s *Service) reconcileSKU(ctx context.Context, skuID string, dryRun bool, actor entity.Actor) Entry {
	entry := Entry{SKUID: skuID}
	var err error
	if dryRun {
		err = s.inspect(ctx, s.repos, &entry)
	} else {
		err = s.txRunner.Run(ctx, func(repos repository.Repositories) error {
			entry = Entry{SKUID: skuID}
			if err := s.inspect(ctx, repos, &entry); err != nil {
				return err
			}
			return s.repair(ctx, repos, &entry, actor)
		})
	}
	if err != nil {
		entry.Error = err.Error()
		s.log.Error().Err(err).Str("sku_id", skuID).Msg("conciliación fallida para el SKU")
		return entry
	}

	if entry.Synthesized > 0 && !dryRun {
		s.synthesizedCounter.Add(ctx, int64(entry.Synthesized))
	}
	ev := s.log.Info()
	if entry.Synthesized > 0 {
		ev = s.log.Warn()
	}
	ev.Str("sku_id", skuID).
		Int("expected", entry.Expected).
		Int("found", entry.Found).
		Int("synthesized", entry.Synthesized).
		Bool("dry_run", dryRun).
		Msg("SKU conciliado")
	return entry
}

// inspect llena Expected, Found y cuántas instancias faltan.
func (s *Service) inspect(ctx context.Context, repos repository.Repositories, entry *Entry) error {
	if _, err := repos.SKUs.GetByID(ctx, entry.SKUID); err != nil {
		return err
	}
	agg, err := repos.Aggregates.GetForUpdate(ctx, entry.SKUID)
	if err != nil {
		return err
	}
	if agg != nil {
		entry.Expected = agg.TotalQuantity
	}
	for _, err := range repos.Instances.Query(ctx, entry.SKUID, repository.LiveFilter()) {
		if err != nil {
			return fmt.Errorf("scan instances %s: %w", entry.SKUID, err)
		}
		entry.Found++
	}
	if entry.Expected > entry.Found {
		entry.Synthesized = entry.Expected - entry.Found
	}
	return nil
}

func (s *Service) repair(ctx context.Context, repos repository.Repositories, entry *Entry, actor entity.Actor) error {
	now := s.now()
	for range entry.Synthesized {
		inst := &entity.Instance{
			ID:              uuid.New().String(),
			SKUID:           entry.SKUID,
			AcquisitionCost: decimal.Zero,
			AcquiredAt:      now,
			Location:        entity.LocationUnknown,
			Condition:       entity.ConditionNew,
			Notes:           RecoveryNote,
			Synthetic:       true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := repos.Instances.Create(ctx, inst); err != nil {
			return fmt.Errorf("create recovery instance: %w", err)
		}
	}

	var mv *entity.Movement
	if entry.Synthesized > 0 {
		mv = &entity.Movement{Type: entity.MovementTypeRecovery, Quantity: entry.Synthesized, Actor: actor.ID, At: now}
	}
	_, err := s.aggregator.RecomputeTx(ctx, repos, entry.SKUID, mv)
	return err
}

// IsRunning indica si err significa que otra conciliación tiene el candado.
func IsRunning(err error) bool {
	return errors.Is(err, domain.ErrReconcileRunning)
}
