// Package telemetry configura el MeterProvider de OpenTelemetry con exportador Prometheus.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics proveedor de métricas y su handler HTTP.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler
}

// Init registra el proveedor global. Con enabled=false no exporta nada y Handler devuelve nil;
// los contadores de los casos de uso quedan como no-op.
func Init(enabled bool) (*Metrics, error) {
	if !enabled {
		return &Metrics{}, nil
	}
	registry := prometheus.NewRegistry()
	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(mp)
	return &Metrics{
		provider: mp,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, nil
}

// Handler handler de /metrics (nil si las métricas están deshabilitadas).
func (m *Metrics) Handler() http.Handler {
	return m.handler
}

// Shutdown vacía y cierra el proveedor.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
