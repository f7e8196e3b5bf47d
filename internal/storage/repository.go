package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	createPricesSQL = `CREATE TABLE IF NOT EXISTS prices (
        ticker     TEXT        NOT NULL,
        day        DATE        NOT NULL,
        close      NUMERIC     NOT NULL,
        source     TEXT        NOT NULL DEFAULT '',
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (ticker, day)
    );`

	upsertPriceSQL = `INSERT INTO prices (
        ticker,
        day,
        close,
        source,
        updated_at
    ) VALUES (
        $1,$2,$3,$4,now()
    )
    ON CONFLICT (ticker, day) DO UPDATE
    SET
        close      = EXCLUDED.close,
        source     = EXCLUDED.source,
        updated_at = EXCLUDED.updated_at;`

	listPricesBetweenSQL = `SELECT
        ticker,
        day,
        close::text,
        source,
        updated_at
    FROM prices
    WHERE ticker = $1
      AND day >= $2
      AND day < $3
    ORDER BY day;`

	listRecentPricesSQL = `SELECT
        ticker,
        day,
        close::text,
        source,
        updated_at
    FROM prices
    WHERE ticker = $1
    ORDER BY day DESC
    LIMIT $2;`

	countPricesSQL = `SELECT COUNT(*) FROM prices WHERE ticker = $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// farFuture bounds open-ended range queries.
var farFuture = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// PriceStore defines operations for price persistence.
type PriceStore interface {
	UpsertPrices(ctx context.Context, records []PriceRecord) (int, error)
	ListPrices(ctx context.Context, ticker string, from, to time.Time) ([]PriceRecord, error)
	ListRecentPrices(ctx context.Context, ticker string, limit int) ([]PriceRecord, error)
	CountPrices(ctx context.Context, ticker string) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store persists ingested prices.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the prices table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createPricesSQL); err != nil {
		return fmt.Errorf("create prices table: %w", err)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the session lock also drops when the connection closes
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// UpsertPrices writes records in one batch and returns how many were sent.
func (s *Store) UpsertPrices(ctx context.Context, records []PriceRecord) (int, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(upsertPriceSQL, rec.Ticker, rec.Day, rec.Close.String(), rec.Source)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range records {
		if _, err := results.Exec(); err != nil {
			return i, fmt.Errorf("upsert price %s %s: %w", records[i].Ticker, records[i].Day.Format("2006-01-02"), err)
		}
	}
	return len(records), nil
}

// ListPrices lists closes for ticker in [from, to) ordered by day. Zero bounds are open.
func (s *Store) ListPrices(ctx context.Context, ticker string, from, to time.Time) ([]PriceRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	if to.IsZero() {
		to = farFuture
	}

	rows, queryErr := pool.Query(ctx, listPricesBetweenSQL, ticker, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list prices: %w", queryErr)
	}
	defer rows.Close()

	return collectPrices(rows, 0)
}

// ListRecentPrices lists the latest closes ordered by descending day.
func (s *Store) ListRecentPrices(ctx context.Context, ticker string, limit int) ([]PriceRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentPricesSQL, ticker, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent prices: %w", queryErr)
	}
	defer rows.Close()

	return collectPrices(rows, limit)
}

// CountPrices counts stored closes for ticker.
func (s *Store) CountPrices(ctx context.Context, ticker string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countPricesSQL, ticker).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count prices: %w", scanErr)
	}
	return count, nil
}

func collectPrices(rows pgx.Rows, capacity int) ([]PriceRecord, error) {
	records := make([]PriceRecord, 0, capacity)
	for rows.Next() {
		rec, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func scanPrice(rows pgx.Rows) (PriceRecord, error) {
	var (
		rec      PriceRecord
		closeStr string
	)
	if err := rows.Scan(&rec.Ticker, &rec.Day, &closeStr, &rec.Source, &rec.UpdatedAt); err != nil {
		return PriceRecord{}, err
	}

	closeVal, err := decimal.NewFromString(closeStr)
	if err != nil {
		return PriceRecord{}, fmt.Errorf("parse close: %w", err)
	}
	rec.Close = closeVal
	rec.Day = rec.Day.UTC()
	return rec, nil
}

var (
	_ PriceStore     = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
