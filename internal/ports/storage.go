package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/thresholdbot/internal/domain"
)

// TradeStorage persiste posiciones y la cadena de capital.
type TradeStorage interface {
	// SavePosition inserta una posición recién abierta.
	SavePosition(ctx context.Context, p domain.Position) error

	// UpdatePosition persiste el estado actual de una posición existente.
	UpdatePosition(ctx context.Context, p domain.Position) error

	// GetOpenPositions devuelve las posiciones no cerradas, para reanudar
	// tras un reinicio.
	GetOpenPositions(ctx context.Context) ([]domain.Position, error)

	// HasOpenPosition indica si ya existe una posición abierta en el
	// mercado dado. Garantiza como máximo una posición por mercado.
	HasOpenPosition(ctx context.Context, marketID string) (bool, error)

	// AppendPrincipal encadena una entrada al libro de capital: el Before
	// de la entrada debe coincidir con el After de la última.
	AppendPrincipal(ctx context.Context, e domain.PrincipalEntry) error

	// LatestPrincipal devuelve la última entrada del libro, o ok=false si
	// el libro está vacío.
	LatestPrincipal(ctx context.Context) (domain.PrincipalEntry, bool, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}

// SnapshotStorage persiste capturas periódicas de orderbooks para que el
// backtester pueda reproducirlas después.
type SnapshotStorage interface {
	// SaveLadder guarda una captura con su timestamp.
	SaveLadder(ctx context.Context, marketID string, l domain.Ladder) error

	// LoadLadders devuelve las capturas de un token en orden cronológico.
	LoadLadders(ctx context.Context, tokenID string, from, to time.Time) ([]domain.Ladder, error)

	// Markets devuelve los IDs de mercado con capturas guardadas.
	Markets(ctx context.Context) ([]string, error)

	Close() error
}
