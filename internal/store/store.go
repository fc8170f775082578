// Package store persists purchases in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
	"github.com/xkilldash9x/flight-agent-cli/internal/booking"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	sqlCreatePurchases = `
        CREATE TABLE IF NOT EXISTS purchases (
            id             TEXT PRIMARY KEY,
            flight_number  TEXT NOT NULL,
            price          INTEGER NOT NULL,
            origin         CHAR(3) NOT NULL,
            destination    CHAR(3) NOT NULL,
            flight_date    DATE NOT NULL,
            seat_row       INTEGER NOT NULL,
            seat_letter    CHAR(1) NOT NULL,
            purchased_at   TIMESTAMPTZ NOT NULL
        );
    `
	sqlInsertPurchase = `
        INSERT INTO purchases (id, flight_number, price, origin, destination, flight_date, seat_row, seat_letter, purchased_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
    `
	sqlRecentPurchases = `
        SELECT id, flight_number, price, origin, destination, flight_date, seat_row, seat_letter, purchased_at
        FROM purchases
        ORDER BY purchased_at DESC
        LIMIT $1;
    `
)

// Store records purchases. It decorates another Purchaser, which performs the purchase
// itself, and persists the confirmation it returns.
type Store struct {
	pool DBPool
	next booking.Purchaser
	log  *zap.Logger
}

var _ booking.Purchaser = (*Store)(nil)

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, next booking.Purchaser, logger *zap.Logger) (*Store, error) {
	if next == nil {
		return nil, errors.New("store requires a purchaser to decorate")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		next: next,
		log:  logger.Named("store"),
	}, nil
}

// Connect opens a pgx pool for databaseURL. The caller closes the pool.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the purchases table when it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, sqlCreatePurchases); err != nil {
		return fmt.Errorf("failed to create purchases table: %w", err)
	}
	return nil
}

// Purchase buys through the decorated purchaser and records the confirmation.
func (s *Store) Purchase(ctx context.Context, flight schemas.FlightRecord, seat schemas.SeatPreference) (schemas.Confirmation, error) {
	conf, err := s.next.Purchase(ctx, flight, seat)
	if err != nil {
		return schemas.Confirmation{}, err
	}
	if err := s.persist(ctx, conf); err != nil {
		return schemas.Confirmation{}, err
	}
	s.log.Info("Purchase recorded.", zap.String("confirmation_id", conf.ID))
	return conf, nil
}

func (s *Store) persist(ctx context.Context, conf schemas.Confirmation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	f := conf.Flight
	tag, err := tx.Exec(ctx, sqlInsertPurchase,
		conf.ID, f.FlightNumber, f.Price, f.Origin, f.Destination,
		f.Date.In(time.UTC), conf.Seat.Row, conf.Seat.Seat,
		conf.PurchasedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert purchase: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("unexpected rows affected inserting purchase: %d", tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RecentPurchases returns up to limit purchases, newest first.
func (s *Store) RecentPurchases(ctx context.Context, limit int) ([]schemas.Confirmation, error) {
	rows, err := s.pool.Query(ctx, sqlRecentPurchases, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	var out []schemas.Confirmation
	for rows.Next() {
		var (
			c          schemas.Confirmation
			flightDate time.Time
		)
		err := rows.Scan(
			&c.ID, &c.Flight.FlightNumber, &c.Flight.Price,
			&c.Flight.Origin, &c.Flight.Destination, &flightDate,
			&c.Seat.Row, &c.Seat.Seat, &c.PurchasedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase row: %w", err)
		}
		c.Flight.Date = civil.DateOf(flightDate)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}
