package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drongunkam-dotcom/arb-bot/internal/types"
)

const tradesSchema = `
CREATE TABLE IF NOT EXISTS trades (
	id             UUID PRIMARY KEY,
	pair           TEXT NOT NULL,
	from_venue     TEXT NOT NULL,
	to_venue       TEXT NOT NULL,
	buy_price      DOUBLE PRECISION NOT NULL,
	sell_price     DOUBLE PRECISION NOT NULL,
	amount         DOUBLE PRECISION NOT NULL,
	profit_percent DOUBLE PRECISION NOT NULL,
	profit_base    NUMERIC NOT NULL,
	profit_quote   NUMERIC NOT NULL,
	status         TEXT NOT NULL,
	reason         TEXT NOT NULL DEFAULT '',
	tx_buy         TEXT NOT NULL DEFAULT '',
	tx_sell        TEXT NOT NULL DEFAULT '',
	sim_ref        TEXT NOT NULL DEFAULT '',
	executed_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS trades_executed_at_idx ON trades (executed_at DESC);
`

// PGStore persists trade records to Postgres. It is the durable side of
// the ledger; the in-memory history stays authoritative for the API.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, tradesSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure trades schema: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) InsertTrade(ctx context.Context, tr types.TradeRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trades (
			id, pair, from_venue, to_venue,
			buy_price, sell_price, amount, profit_percent,
			profit_base, profit_quote,
			status, reason, tx_buy, tx_sell, sim_ref, executed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO NOTHING`,
		tr.ID, tr.Pair.String(), string(tr.FromVenue), string(tr.ToVenue),
		tr.BuyPrice, tr.SellPrice, tr.Amount, tr.ProfitPercent,
		tr.ProfitBase, tr.ProfitQuote,
		string(tr.Status), tr.Reason, tr.TxBuy, tr.TxSell, tr.SimRef, tr.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", tr.ID, err)
	}
	return nil
}

func (s *PGStore) Close() { s.pool.Close() }
