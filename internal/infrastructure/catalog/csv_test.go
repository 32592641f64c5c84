package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-tags/internal/infrastructure/catalog"
	"github.com/jhoicas/inventario-tags/internal/infrastructure/memory"
)

var now = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

func TestReadCSV_UTF8(t *testing.T) {
	in := "\ufeffcode,name,unit_cost,understocked,overstocked,details\n" +
		"MUR-01,Muro drywall,12.50,5,100,\"{\"\"alto_cm\"\":240}\"\n" +
		",sin código se ignora,1,0,0,\n" +
		"TAL-02,Taladro percutor,,0,0,\n"

	skus, err := catalog.ReadCSV(strings.NewReader(in), "utf-8", now)
	require.NoError(t, err)
	require.Len(t, skus, 2)

	muro := skus[0]
	assert.Equal(t, "MUR-01", muro.Code)
	assert.Equal(t, "Muro drywall", muro.Name)
	assert.True(t, muro.UnitCost.Equal(decimal.RequireFromString("12.50")))
	assert.Equal(t, 5, muro.UnderstockedThreshold)
	assert.Equal(t, 100, muro.OverstockedThreshold)
	assert.JSONEq(t, `{"alto_cm":240}`, string(muro.Details))
	assert.Equal(t, now, muro.CreatedAt)

	assert.True(t, skus[1].UnitCost.IsZero())
	assert.Nil(t, skus[1].Details)
}

func TestReadCSV_Latin1(t *testing.T) {
	// "Cañería" en ISO-8859-1: ñ = 0xF1
	in := "code,name\nCAN-01,Ca\xf1er\xeda\n"

	skus, err := catalog.ReadCSV(strings.NewReader(in), "ISO-8859-1", now)
	require.NoError(t, err)
	require.Len(t, skus, 1)
	assert.Equal(t, "Cañería", skus[0].Name)
}

func TestReadCSV_Windows1252(t *testing.T) {
	// 0x80 es el signo euro en windows-1252
	in := "code,name\nEUR-01,Precio \x80\n"

	skus, err := catalog.ReadCSV(strings.NewReader(in), "windows-1252", now)
	require.NoError(t, err)
	assert.Equal(t, "Precio €", skus[0].Name)
}

func TestReadCSV_Errores(t *testing.T) {
	cases := map[string]string{
		"sin columna name":  "code\nA\n",
		"costo negativo":    "code,name,unit_cost\nA,a,-1\n",
		"costo no numérico": "code,name,unit_cost\nA,a,caro\n",
		"umbral inválido":   "code,name,understocked\nA,a,muchos\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := catalog.ReadCSV(strings.NewReader(in), "", now)
			assert.Error(t, err)
		})
	}

	_, err := catalog.ReadCSV(strings.NewReader("code,name\n"), "ebcdic", now)
	assert.Error(t, err, "charset no soportado")
}

func TestReadCSV_Vacio(t *testing.T) {
	skus, err := catalog.ReadCSV(strings.NewReader(""), "", now)
	require.NoError(t, err)
	assert.Empty(t, skus)
}

func TestSKUID_Determinista(t *testing.T) {
	assert.Equal(t, catalog.SKUID("MUR-01"), catalog.SKUID(" mur-01 "))
	assert.NotEqual(t, catalog.SKUID("MUR-01"), catalog.SKUID("MUR-02"))
}

func TestSeedFile_Idempotente(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalogo.csv")
	require.NoError(t, os.WriteFile(path, []byte("code,name,unit_cost\nA,Uno,1\nB,Dos,2\n"), 0o600))

	store := memory.NewStore()
	skus := store.Repositories().SKUs
	ctx := context.Background()

	res, err := catalog.SeedFile(ctx, skus, path, "utf-8")
	require.NoError(t, err)
	assert.Equal(t, catalog.SeedResult{Created: 2}, res)

	res, err = catalog.SeedFile(ctx, skus, path, "utf-8")
	require.NoError(t, err)
	assert.Equal(t, catalog.SeedResult{Skipped: 2}, res)

	got, err := skus.GetByID(ctx, catalog.SKUID("A"))
	require.NoError(t, err)
	assert.Equal(t, "Uno", got.Name)

	_, err = catalog.SeedFile(ctx, skus, filepath.Join(t.TempDir(), "no-existe.csv"), "")
	assert.Error(t, err)
}
