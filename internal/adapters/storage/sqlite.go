package storage

// sqlite.go: persistencia de posiciones y del libro de capital.
//
// Estrategia:
//   - `positions`: una fila por posición con ambas patas (compra y venta)
//     embebidas. El índice parcial único sobre market_id garantiza a nivel
//     de base de datos que nunca haya dos posiciones abiertas en el mismo
//     mercado, incluso con varios watchers concurrentes.
//   - `principal_ledger`: append-only. El After de cada entrada es el Before
//     de la siguiente; la última fila es el bankroll vigente.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/thresholdbot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS positions (
    id               TEXT PRIMARY KEY,
    deployment_id    TEXT NOT NULL,
    market_id        TEXT NOT NULL,
    market_slug      TEXT,
    token_id         TEXT NOT NULL,
    side             TEXT NOT NULL,
    threshold        REAL NOT NULL,
    margin           REAL NOT NULL,
    stop_loss        REAL NOT NULL DEFAULT 0,
    margin_sell      REAL NOT NULL DEFAULT 0,
    state            TEXT NOT NULL,
    outcome          TEXT NOT NULL DEFAULT 'UNRESOLVED',
    failure_note     TEXT NOT NULL DEFAULT '',
    principal_before REAL NOT NULL DEFAULT 0,
    dollars_spent    REAL NOT NULL DEFAULT 0,
    buy_fee          REAL NOT NULL DEFAULT 0,
    proceeds         REAL NOT NULL DEFAULT 0,
    sell_fee         REAL NOT NULL DEFAULT 0,
    net_payout       REAL NOT NULL DEFAULT 0,
    roi              REAL NOT NULL DEFAULT 0,

    buy_id           TEXT,
    buy_clob_id      TEXT,
    buy_price        REAL NOT NULL DEFAULT 0,
    buy_size         REAL NOT NULL DEFAULT 0,
    buy_filled       REAL NOT NULL DEFAULT 0,
    buy_avg          REAL NOT NULL DEFAULT 0,
    buy_placed_at    DATETIME,
    buy_filled_at    DATETIME,

    sell_id          TEXT,
    sell_clob_id     TEXT,
    sell_price       REAL NOT NULL DEFAULT 0,
    sell_size        REAL NOT NULL DEFAULT 0,
    sell_filled      REAL NOT NULL DEFAULT 0,
    sell_avg         REAL NOT NULL DEFAULT 0,
    sell_placed_at   DATETIME,
    sell_filled_at   DATETIME,

    opened_at        DATETIME NOT NULL,
    closed_at        DATETIME
);

-- Como máximo una posición abierta por mercado
CREATE UNIQUE INDEX IF NOT EXISTS idx_pos_open_market
    ON positions(market_id) WHERE state != 'CLOSED';
CREATE INDEX IF NOT EXISTS idx_pos_state  ON positions(state);
CREATE INDEX IF NOT EXISTS idx_pos_opened ON positions(opened_at DESC);

CREATE TABLE IF NOT EXISTS principal_ledger (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    ts           DATETIME NOT NULL,
    before_usdc  REAL NOT NULL,
    after_usdc   REAL NOT NULL,
    realized_pnl REAL NOT NULL,
    position_id  TEXT NOT NULL
);
`

// SQLiteStorage implementa ports.TradeStorage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica
// el schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// SavePosition inserta una posición recién abierta. El índice parcial sobre
// market_id rechaza el insert si ya hay una posición abierta en el mercado.
func (s *SQLiteStorage) SavePosition(ctx context.Context, p domain.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions
			(id, deployment_id, market_id, market_slug, token_id, side,
			 threshold, margin, stop_loss, margin_sell,
			 state, outcome, failure_note,
			 principal_before, dollars_spent, buy_fee, proceeds, sell_fee, net_payout, roi,
			 buy_id, buy_clob_id, buy_price, buy_size, buy_filled, buy_avg, buy_placed_at, buy_filled_at,
			 sell_id, sell_clob_id, sell_price, sell_size, sell_filled, sell_avg, sell_placed_at, sell_filled_at,
			 opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
		        ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.DeploymentID, p.MarketID, p.MarketSlug, p.TokenID, string(p.Side),
		p.Threshold, p.Margin, p.StopLoss, p.MarginSell,
		string(p.State), string(p.Outcome), p.FailureNote,
		p.PrincipalBefore, p.DollarsSpent, p.BuyFee, p.Proceeds, p.SellFee, p.NetPayout, p.ROI,
		p.Buy.ID, p.Buy.CLOBOrderID, p.Buy.Price, p.Buy.Size, p.Buy.FilledSize, p.Buy.AvgFillPrice, nullableTime(p.Buy.PlacedAt), p.Buy.FilledAt,
		p.Sell.ID, p.Sell.CLOBOrderID, p.Sell.Price, p.Sell.Size, p.Sell.FilledSize, p.Sell.AvgFillPrice, nullableTime(p.Sell.PlacedAt), p.Sell.FilledAt,
		p.OpenedAt.UTC(), p.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("storage.SavePosition: insert %s: %w", p.ID, err)
	}
	return nil
}

// UpdatePosition persiste el estado actual de una posición existente.
func (s *SQLiteStorage) UpdatePosition(ctx context.Context, p domain.Position) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE positions SET
			state = ?, outcome = ?, failure_note = ?,
			dollars_spent = ?, buy_fee = ?, proceeds = ?, sell_fee = ?, net_payout = ?, roi = ?,
			buy_id = ?, buy_clob_id = ?, buy_price = ?, buy_size = ?, buy_filled = ?, buy_avg = ?, buy_placed_at = ?, buy_filled_at = ?,
			sell_id = ?, sell_clob_id = ?, sell_price = ?, sell_size = ?, sell_filled = ?, sell_avg = ?, sell_placed_at = ?, sell_filled_at = ?,
			closed_at = ?
		WHERE id = ?`,
		string(p.State), string(p.Outcome), p.FailureNote,
		p.DollarsSpent, p.BuyFee, p.Proceeds, p.SellFee, p.NetPayout, p.ROI,
		p.Buy.ID, p.Buy.CLOBOrderID, p.Buy.Price, p.Buy.Size, p.Buy.FilledSize, p.Buy.AvgFillPrice, nullableTime(p.Buy.PlacedAt), p.Buy.FilledAt,
		p.Sell.ID, p.Sell.CLOBOrderID, p.Sell.Price, p.Sell.Size, p.Sell.FilledSize, p.Sell.AvgFillPrice, nullableTime(p.Sell.PlacedAt), p.Sell.FilledAt,
		p.ClosedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("storage.UpdatePosition: update %s: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.UpdatePosition: position %s not found", p.ID)
	}
	return nil
}

// GetOpenPositions devuelve las posiciones no cerradas, más antiguas primero.
func (s *SQLiteStorage) GetOpenPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		selectPositions+` WHERE state != 'CLOSED' ORDER BY opened_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage.GetOpenPositions: query: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.GetOpenPositions: scan: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// HasOpenPosition indica si ya existe una posición abierta en el mercado.
func (s *SQLiteStorage) HasOpenPosition(ctx context.Context, marketID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM positions WHERE market_id = ? AND state != 'CLOSED'`,
		marketID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("storage.HasOpenPosition: query %s: %w", marketID, err)
	}
	return n > 0, nil
}

// AppendPrincipal encadena una entrada al libro de capital. Rechaza entradas
// cuyo Before no coincida con el After de la última fila: una cadena rota
// significa contabilidad corrupta.
func (s *SQLiteStorage) AppendPrincipal(ctx context.Context, e domain.PrincipalEntry) error {
	last, ok, err := s.LatestPrincipal(ctx)
	if err != nil {
		return err
	}
	if ok && !almostEqual(last.After, e.Before) {
		return fmt.Errorf("storage.AppendPrincipal: chain break: last after %.4f, new before %.4f",
			last.After, e.Before)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO principal_ledger (ts, before_usdc, after_usdc, realized_pnl, position_id)
		VALUES (?, ?, ?, ?, ?)`,
		e.Timestamp.UTC(), e.Before, e.After, e.RealizedPnL, e.PositionID,
	)
	if err != nil {
		return fmt.Errorf("storage.AppendPrincipal: insert: %w", err)
	}
	return nil
}

// LatestPrincipal devuelve la última entrada del libro, o ok=false si está vacío.
func (s *SQLiteStorage) LatestPrincipal(ctx context.Context) (domain.PrincipalEntry, bool, error) {
	var e domain.PrincipalEntry
	var ts string
	err := s.db.QueryRowContext(ctx, `
		SELECT ts, before_usdc, after_usdc, realized_pnl, position_id
		FROM principal_ledger ORDER BY id DESC LIMIT 1`,
	).Scan(&ts, &e.Before, &e.After, &e.RealizedPnL, &e.PositionID)
	if err == sql.ErrNoRows {
		return domain.PrincipalEntry{}, false, nil
	}
	if err != nil {
		return domain.PrincipalEntry{}, false, fmt.Errorf("storage.LatestPrincipal: query: %w", err)
	}
	e.Timestamp = parseDBTime(ts)
	return e, true, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

const selectPositions = `
	SELECT id, deployment_id, market_id, market_slug, token_id, side,
	       threshold, margin, stop_loss, margin_sell,
	       state, outcome, failure_note,
	       principal_before, dollars_spent, buy_fee, proceeds, sell_fee, net_payout, roi,
	       buy_id, buy_clob_id, buy_price, buy_size, buy_filled, buy_avg, buy_placed_at, buy_filled_at,
	       sell_id, sell_clob_id, sell_price, sell_size, sell_filled, sell_avg, sell_placed_at, sell_filled_at,
	       opened_at, closed_at
	FROM positions`

func scanPosition(rows *sql.Rows) (domain.Position, error) {
	var p domain.Position
	var side, state, outcome string
	var buyID, buyCLOB, sellID, sellCLOB sql.NullString
	var buyPlaced, buyFilled, sellPlaced, sellFilled, openedAt, closedAt sql.NullString

	if err := rows.Scan(
		&p.ID, &p.DeploymentID, &p.MarketID, &p.MarketSlug, &p.TokenID, &side,
		&p.Threshold, &p.Margin, &p.StopLoss, &p.MarginSell,
		&state, &outcome, &p.FailureNote,
		&p.PrincipalBefore, &p.DollarsSpent, &p.BuyFee, &p.Proceeds, &p.SellFee, &p.NetPayout, &p.ROI,
		&buyID, &buyCLOB, &p.Buy.Price, &p.Buy.Size, &p.Buy.FilledSize, &p.Buy.AvgFillPrice, &buyPlaced, &buyFilled,
		&sellID, &sellCLOB, &p.Sell.Price, &p.Sell.Size, &p.Sell.FilledSize, &p.Sell.AvgFillPrice, &sellPlaced, &sellFilled,
		&openedAt, &closedAt,
	); err != nil {
		return domain.Position{}, err
	}

	p.Side = domain.MarketSide(side)
	p.State = domain.LifecycleState(state)
	p.Outcome = domain.Outcome(outcome)
	p.Buy.ID, p.Buy.CLOBOrderID = buyID.String, buyCLOB.String
	p.Sell.ID, p.Sell.CLOBOrderID = sellID.String, sellCLOB.String
	p.Buy.Fee, p.Sell.Fee = p.BuyFee, p.SellFee

	if buyPlaced.Valid {
		p.Buy.PlacedAt = parseDBTime(buyPlaced.String)
	}
	if buyFilled.Valid {
		t := parseDBTime(buyFilled.String)
		p.Buy.FilledAt = &t
	}
	if sellPlaced.Valid {
		p.Sell.PlacedAt = parseDBTime(sellPlaced.String)
	}
	if sellFilled.Valid {
		t := parseDBTime(sellFilled.String)
		p.Sell.FilledAt = &t
	}
	if openedAt.Valid {
		p.OpenedAt = parseDBTime(openedAt.String)
	}
	if closedAt.Valid {
		t := parseDBTime(closedAt.String)
		p.ClosedAt = &t
	}
	return p, nil
}

// nullableTime convierte el zero value de time.Time en NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

// parseDBTime acepta los dos formatos con los que el driver serializa fechas.
func parseDBTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// almostEqual tolera el ruido de redondeo de float64 en la cadena de capital.
func almostEqual(a, b float64) bool {
	diff := a - b
	return diff < 1e-6 && diff > -1e-6
}
