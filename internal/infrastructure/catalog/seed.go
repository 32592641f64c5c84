package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jhoicas/inventario-tags/internal/domain"
	"github.com/jhoicas/inventario-tags/internal/domain/repository"
)

// SeedResult conteo de una siembra.
type SeedResult struct {
	Created int
	Skipped int // ya existían
}

// SeedFile lee el CSV y crea los SKUs que falten. Es idempotente.
func SeedFile(ctx context.Context, skus repository.SKURepository, path, charset string) (SeedResult, error) {
	var res SeedResult
	f, err := os.Open(path)
	if err != nil {
		return res, fmt.Errorf("abrir catálogo: %w", err)
	}
	defer f.Close()

	list, err := ReadCSV(f, charset, time.Now())
	if err != nil {
		return res, fmt.Errorf("catálogo %s: %w", path, err)
	}
	for _, sku := range list {
		err := skus.Create(ctx, sku)
		switch {
		case errors.Is(err, domain.ErrConflict):
			res.Skipped++
		case err != nil:
			return res, err
		default:
			res.Created++
		}
	}
	return res, nil
}
