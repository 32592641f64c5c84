// reconcile ejecuta la conciliación de inventario fuera del servidor HTTP.
//
// Uso:
//
//	go run ./cmd/reconcile run [--sku <id>]... [--dry-run] [--every 1h]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/inventario-tags/internal/application/reconcile"
	"github.com/jhoicas/inventario-tags/internal/bootstrap"
	"github.com/jhoicas/inventario-tags/internal/domain/entity"
	"github.com/jhoicas/inventario-tags/pkg/config"
	"github.com/jhoicas/inventario-tags/pkg/logger"
)

// cliActor identidad con la que la CLI invoca la conciliación.
var cliActor = entity.Actor{ID: "reconcile-cli", Role: entity.RoleSystem}

// errFailures indica que el reporte tiene SKUs fallidos (salida distinta de cero).
var errFailures = errors.New("conciliación con fallos")

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, errFailures) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Conciliación de instancias y agregados de inventario",
	}
	cmd.AddCommand(newRunCommand())
	return cmd
}

type runOptions struct {
	skuIDs []string
	dryRun bool
	every  time.Duration
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sintetiza las instancias faltantes y recalcula los agregados",
		Long: `Compara, por SKU, el total del agregado almacenado con las instancias vivas
y crea instancias de recuperación para cubrir la diferencia.

Con --every la conciliación se repite hasta recibir SIGINT o SIGTERM.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd, opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.skuIDs, "sku", nil, "SKU a conciliar (repetible); vacío = todo el catálogo")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "solo reportar, sin escribir")
	cmd.Flags().DurationVar(&opts.every, "every", 0, "repetir con este intervalo (ej. 1h)")

	return cmd
}

func runReconcile(cmd *cobra.Command, opts *runOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "reconcile"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	runOpts := reconcile.Options{DryRun: opts.dryRun, SKUIDs: opts.skuIDs}

	if opts.every > 0 {
		log.Info().Dur("every", opts.every).Bool("dry_run", opts.dryRun).Msg("conciliación programada")
		err := reconcile.NewScheduler(app.Reconcile, opts.every, runOpts, cliActor, log.Component("scheduler")).Start(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	report, err := app.Reconcile.Run(ctx, runOpts, cliActor)
	if report != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(report); encErr != nil {
			return encErr
		}
	}
	if err != nil {
		return err
	}
	if report.Failures > 0 {
		return errFailures
	}
	return nil
}
