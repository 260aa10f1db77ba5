package storage

// snapshots.go: capturas periódicas de orderbooks para el backtester.
//
// Los niveles se guardan como JSON en una sola columna: el backtester
// siempre lee la escalera completa, nunca consulta por nivel, así que
// normalizarlos en filas solo añadiría joins.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/thresholdbot/internal/domain"
	_ "modernc.org/sqlite"
)

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS ladder_snapshots (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    market_id  TEXT NOT NULL,
    token_id   TEXT NOT NULL,
    captured_at DATETIME NOT NULL,
    bids       TEXT NOT NULL,
    asks       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snap_token ON ladder_snapshots(token_id, captured_at);
CREATE INDEX IF NOT EXISTS idx_snap_market ON ladder_snapshots(market_id);
`

// SnapshotStore implementa ports.SnapshotStorage sobre SQLite.
type SnapshotStore struct {
	db *sql.DB
}

// NewSnapshotStore abre (o crea) la base de capturas en la ruta dada.
func NewSnapshotStore(path string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSnapshotStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(snapshotSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSnapshotStore: apply schema: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

// SaveLadder guarda una captura con su timestamp.
func (s *SnapshotStore) SaveLadder(ctx context.Context, marketID string, l domain.Ladder) error {
	bids, err := json.Marshal(l.Bids)
	if err != nil {
		return fmt.Errorf("storage.SaveLadder: marshal bids: %w", err)
	}
	asks, err := json.Marshal(l.Asks)
	if err != nil {
		return fmt.Errorf("storage.SaveLadder: marshal asks: %w", err)
	}

	ts := l.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ladder_snapshots (market_id, token_id, captured_at, bids, asks)
		VALUES (?, ?, ?, ?, ?)`,
		marketID, l.TokenID, ts.UTC(), string(bids), string(asks),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveLadder: insert %s: %w", l.TokenID, err)
	}
	return nil
}

// LoadLadders devuelve las capturas de un token en orden cronológico.
func (s *SnapshotStore) LoadLadders(ctx context.Context, tokenID string, from, to time.Time) ([]domain.Ladder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token_id, captured_at, bids, asks
		FROM ladder_snapshots
		WHERE token_id = ? AND captured_at BETWEEN ? AND ?
		ORDER BY captured_at ASC`,
		tokenID, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadLadders: query %s: %w", tokenID, err)
	}
	defer rows.Close()

	var ladders []domain.Ladder
	for rows.Next() {
		var l domain.Ladder
		var ts, bids, asks string
		if err := rows.Scan(&l.TokenID, &ts, &bids, &asks); err != nil {
			return nil, fmt.Errorf("storage.LoadLadders: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(bids), &l.Bids); err != nil {
			return nil, fmt.Errorf("storage.LoadLadders: bids %s: %w", tokenID, err)
		}
		if err := json.Unmarshal([]byte(asks), &l.Asks); err != nil {
			return nil, fmt.Errorf("storage.LoadLadders: asks %s: %w", tokenID, err)
		}
		l.Timestamp = parseDBTime(ts)
		ladders = append(ladders, l)
	}
	return ladders, rows.Err()
}

// Markets devuelve los IDs de mercado con capturas guardadas.
func (s *SnapshotStore) Markets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT market_id FROM ladder_snapshots ORDER BY market_id`)
	if err != nil {
		return nil, fmt.Errorf("storage.Markets: query: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage.Markets: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}
