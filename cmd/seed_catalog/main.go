// seed_catalog carga el catálogo de SKUs desde un CSV a PostgreSQL.
//
// Uso: go run ./cmd/seed_catalog [ruta/catalogo.csv] [charset]
// Por defecto usa CATALOG_SEED_FILE y CATALOG_CHARSET (utf-8, iso-8859-1 o windows-1252).
// Columnas: code,name,unit_cost,understocked,overstocked[,details]. Los SKUs existentes se omiten.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jhoicas/inventario-tags/internal/infrastructure/catalog"
	"github.com/jhoicas/inventario-tags/internal/infrastructure/postgres"
	"github.com/jhoicas/inventario-tags/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuración: %v\n", err)
		os.Exit(1)
	}

	path := cfg.Catalog.SeedFile
	charset := cfg.Catalog.Charset
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	if len(os.Args) > 2 {
		charset = os.Args[2]
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "Falta la ruta del CSV (argumento o CATALOG_SEED_FILE)")
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Conexión a PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "Migración: %v\n", err)
		os.Exit(1)
	}

	repos := postgres.NewRepositories(pool)
	res, err := catalog.SeedFile(ctx, repos.SKUs, path, charset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Sembrar catálogo: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Catálogo %s: %d SKUs creados, %d ya existían\n", path, res.Created, res.Skipped)
}
