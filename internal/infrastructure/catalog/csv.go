// Package catalog importa el catálogo de SKUs desde CSV (exportaciones del ERP).
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jhoicas/inventario-tags/internal/domain/entity"
)

// namespace para IDs deterministas: el mismo código siempre produce el mismo SKU ID.
var namespace = uuid.MustParse("6f1c1f4e-3a57-4c55-9d0a-8f3f2f8c9b21")

// SKUID id determinista de un código de catálogo.
func SKUID(code string) string {
	return uuid.NewSHA1(namespace, []byte(strings.ToUpper(strings.TrimSpace(code)))).String()
}

// decoder envuelve r según el charset del archivo.
func decoder(r io.Reader, charset string) (io.Reader, error) {
	switch strings.ToLower(strings.ReplaceAll(charset, "_", "-")) {
	case "", "utf-8", "utf8":
		return r, nil
	case "iso-8859-1", "iso8859-1", "latin1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	}
	return nil, fmt.Errorf("charset %q no soportado", charset)
}

// ReadCSV lee SKUs con encabezado: code,name,unit_cost,understocked,overstocked[,details].
// details es JSON opaco y se guarda tal cual.
func ReadCSV(r io.Reader, charset string, now time.Time) ([]*entity.SKU, error) {
	in, err := decoder(r, charset)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("leer encabezado: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, required := range []string{"code", "name"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("columna requerida %q ausente", required)
		}
	}
	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []*entity.SKU
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("línea %d: %w", line, err)
		}
		code := get(rec, "code")
		if code == "" {
			continue
		}
		sku := &entity.SKU{
			ID:        SKUID(code),
			Code:      code,
			Name:      get(rec, "name"),
			UnitCost:  decimal.Zero,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if s := get(rec, "unit_cost"); s != "" {
			if sku.UnitCost, err = decimal.NewFromString(s); err != nil || sku.UnitCost.IsNegative() {
				return nil, fmt.Errorf("línea %d: unit_cost inválido %q", line, s)
			}
		}
		if sku.UnderstockedThreshold, err = atoiOrZero(get(rec, "understocked")); err != nil {
			return nil, fmt.Errorf("línea %d: understocked: %w", line, err)
		}
		if sku.OverstockedThreshold, err = atoiOrZero(get(rec, "overstocked")); err != nil {
			return nil, fmt.Errorf("línea %d: overstocked: %w", line, err)
		}
		if d := get(rec, "details"); d != "" {
			sku.Details = []byte(d)
		}
		out = append(out, sku)
	}
	return out, nil
}

func atoiOrZero(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
