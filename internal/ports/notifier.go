package ports

import (
	"context"

	"github.com/alejandrodnm/thresholdbot/internal/domain"
)

// Notifier presenta la actividad del bot al usuario.
type Notifier interface {
	// NotifyEvent muestra una transición de ciclo de vida.
	NotifyEvent(ctx context.Context, ev domain.LifecycleEvent) error

	// NotifyPositions muestra las posiciones con su estado actual.
	NotifyPositions(ctx context.Context, positions []domain.Position) error

	// NotifyBacktest muestra los resultados de la búsqueda de parámetros,
	// ordenados por la métrica elegida.
	NotifyBacktest(ctx context.Context, results []domain.BacktestResult) error
}
