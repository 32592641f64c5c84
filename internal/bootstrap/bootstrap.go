// Package bootstrap arma los casos de uso sobre el backend configurado; lo comparten cmd/api y cmd/reconcile.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jhoicas/inventario-tags/internal/application/inventory"
	"github.com/jhoicas/inventario-tags/internal/application/policy"
	"github.com/jhoicas/inventario-tags/internal/application/reconcile"
	"github.com/jhoicas/inventario-tags/internal/application/tags"
	"github.com/jhoicas/inventario-tags/internal/domain/repository"
	"github.com/jhoicas/inventario-tags/internal/infrastructure/catalog"
	"github.com/jhoicas/inventario-tags/internal/infrastructure/memory"
	"github.com/jhoicas/inventario-tags/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/inventario-tags/internal/infrastructure/redis"
	"github.com/jhoicas/inventario-tags/pkg/config"
	"github.com/jhoicas/inventario-tags/pkg/logger"
)

// App casos de uso listos para usar.
type App struct {
	Repos      repository.Repositories
	TxRunner   repository.TxRunner
	Aggregator *inventory.AggregatorUseCase
	Receipts   *inventory.ReceiptUseCase
	Restock    *inventory.ReplenishmentUseCase
	Tags       *tags.Manager
	Reconcile  *reconcile.Service

	closers []func()
}

// New conecta el almacenamiento y el candado de conciliación y construye los casos de uso.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	app := &App{}

	switch cfg.Storage {
	case config.StorageMemory:
		store := memory.NewStore()
		app.Repos = store.Repositories()
		app.TxRunner = store
		if cfg.Catalog.SeedFile != "" {
			res, err := catalog.SeedFile(ctx, app.Repos.SKUs, cfg.Catalog.SeedFile, cfg.Catalog.Charset)
			if err != nil {
				return nil, err
			}
			log.Info().Int("created", res.Created).Str("file", cfg.Catalog.SeedFile).Msg("catálogo cargado en memoria")
		}
		log.Warn().Msg("almacenamiento en memoria: los datos se pierden al reiniciar")
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
		}
		app.closers = append(app.closers, pool.Close)
		if cfg.DB.Migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				app.Close()
				return nil, err
			}
		}
		app.Repos = postgres.NewRepositories(pool)
		app.TxRunner = postgres.NewTxRunner(pool)
	}

	var locker reconcile.Locker = reconcile.NewLocalLocker()
	if cfg.Redis.Addr != "" {
		rdb, err := infraredis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = rdb.Close() })
		locker = infraredis.NewLocker(rdb)
	} else {
		log.Warn().Msg("REDIS_ADDRESS vacío: candado de conciliación en proceso")
	}

	checker := policy.NewRolePolicy(nil)
	app.Aggregator = inventory.NewAggregatorUseCase(app.TxRunner, app.Repos, log.Component("aggregator"))
	app.Receipts = inventory.NewReceiptUseCase(app.TxRunner, app.Aggregator)
	app.Restock = inventory.NewReplenishmentUseCase(app.Repos)
	app.Tags = tags.NewManager(app.TxRunner, app.Repos, app.Aggregator, checker, log.Component("tags"), tags.Config{
		MaxClaimRetries: cfg.Allocation.MaxClaimRetries,
	})
	app.Reconcile = reconcile.NewService(app.TxRunner, app.Repos, app.Aggregator, locker, checker, log.Component("reconcile"), reconcile.Config{
		Workers: cfg.Reconcile.Workers,
		LockTTL: cfg.Reconcile.LockTTL,
	})
	return app, nil
}

// Close libera conexiones en orden inverso.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
