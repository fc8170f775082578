package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
	"github.com/xkilldash9x/flight-agent-cli/internal/mocks"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

var (
	testFlight = schemas.FlightRecord{
		FlightNumber: "BOS-YYZ303", Price: 120, Origin: "BOS", Destination: "YYZ",
		Date: civil.Date{Year: 2025, Month: time.January, Day: 10},
	}
	testSeat         = schemas.SeatPreference{Row: 1, Seat: "A"}
	testPurchasedAt  = time.Date(2025, time.January, 2, 15, 4, 5, 0, time.UTC)
	testConfirmation = schemas.Confirmation{ID: "conf-1", Flight: testFlight, Seat: testSeat, PurchasedAt: testPurchasedAt}
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return mockPool
}

// newTestStore returns a store over a mock pool whose ping has already been consumed.
func newTestStore(t *testing.T) (*Store, pgxmock.PgxPoolIface, *mocks.MockPurchaser, *observer.ObservedLogs) {
	t.Helper()
	mockPool := newMockPool(t)
	mockPool.ExpectPing()

	core, logs := observer.New(zap.DebugLevel)
	next := new(mocks.MockPurchaser)
	s, err := New(context.Background(), mockPool, next, zap.New(core))
	require.NoError(t, err)
	return s, mockPool, next, logs
}

func expectInsert(mockPool pgxmock.PgxPoolIface) *pgxmock.ExpectedExec {
	return mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertPurchase)).
		WithArgs("conf-1", "BOS-YYZ303", 120, "BOS", "YYZ",
			time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC), 1, "A", testPurchasedAt)
}

// -- Test Cases --

func TestNew(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool := newMockPool(t)
		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err := New(context.Background(), mockPool, new(mocks.MockPurchaser), zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should require a purchaser", func(t *testing.T) {
		_, err := New(context.Background(), newMockPool(t), nil, zap.NewNop())
		assert.Error(t, err)
	})
}

func TestEnsureSchema(t *testing.T) {
	s, mockPool, _, _ := newTestStore(t)
	mockPool.ExpectExec(flexibleSQLMatcher(sqlCreatePurchases)).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("should persist the confirmation in one transaction", func(t *testing.T) {
		s, mockPool, next, logs := newTestStore(t)
		next.On("Purchase", mock.Anything, testFlight, testSeat).Return(testConfirmation, nil).Once()
		mockPool.ExpectBegin()
		expectInsert(mockPool).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()

		conf, err := s.Purchase(ctx, testFlight, testSeat)
		require.NoError(t, err)
		assert.Equal(t, testConfirmation, conf)
		assert.NoError(t, mockPool.ExpectationsWereMet())
		next.AssertExpectations(t)
		assert.Equal(t, 1, logs.FilterMessage("Purchase recorded.").Len())
	})

	t.Run("should not touch the database when the purchase fails", func(t *testing.T) {
		s, mockPool, next, _ := newTestStore(t)
		purchaseErr := errors.New("card declined")
		next.On("Purchase", mock.Anything, testFlight, testSeat).Return(schemas.Confirmation{}, purchaseErr).Once()

		_, err := s.Purchase(ctx, testFlight, testSeat)
		assert.ErrorIs(t, err, purchaseErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should roll back when the insert fails", func(t *testing.T) {
		s, mockPool, next, _ := newTestStore(t)
		next.On("Purchase", mock.Anything, testFlight, testSeat).Return(testConfirmation, nil).Once()
		insertErr := errors.New("duplicate key")
		mockPool.ExpectBegin()
		expectInsert(mockPool).WillReturnError(insertErr)
		mockPool.ExpectRollback()

		_, err := s.Purchase(ctx, testFlight, testSeat)
		require.Error(t, err)
		assert.ErrorIs(t, err, insertErr)
		assert.Contains(t, err.Error(), "failed to insert purchase")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should report a failed begin", func(t *testing.T) {
		s, mockPool, next, _ := newTestStore(t)
		next.On("Purchase", mock.Anything, testFlight, testSeat).Return(testConfirmation, nil).Once()
		mockPool.ExpectBegin().WillReturnError(errors.New("connection reset"))

		_, err := s.Purchase(ctx, testFlight, testSeat)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to begin transaction")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should report a failed commit", func(t *testing.T) {
		s, mockPool, next, _ := newTestStore(t)
		next.On("Purchase", mock.Anything, testFlight, testSeat).Return(testConfirmation, nil).Once()
		mockPool.ExpectBegin()
		expectInsert(mockPool).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit().WillReturnError(errors.New("serialization failure"))
		mockPool.ExpectRollback()

		_, err := s.Purchase(ctx, testFlight, testSeat)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to commit transaction")
	})
}

func TestRecentPurchases(t *testing.T) {
	ctx := context.Background()
	columns := []string{"id", "flight_number", "price", "origin", "destination", "flight_date", "seat_row", "seat_letter", "purchased_at"}

	t.Run("should map rows to confirmations", func(t *testing.T) {
		s, mockPool, _, _ := newTestStore(t)
		rows := pgxmock.NewRows(columns).
			AddRow("conf-1", "BOS-YYZ303", 120, "BOS", "YYZ", time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC), 1, "A", testPurchasedAt)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlRecentPurchases)).WithArgs(5).WillReturnRows(rows)

		got, err := s.RecentPurchases(ctx, 5)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, testConfirmation, got[0])
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should propagate query errors", func(t *testing.T) {
		s, mockPool, _, _ := newTestStore(t)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlRecentPurchases)).WithArgs(5).WillReturnError(errors.New("relation does not exist"))

		_, err := s.RecentPurchases(ctx, 5)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to query purchases")
	})
}
