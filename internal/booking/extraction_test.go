package booking_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
	"github.com/xkilldash9x/flight-agent-cli/internal/booking"
	"github.com/xkilldash9x/flight-agent-cli/internal/mocks"
	"github.com/xkilldash9x/flight-agent-cli/internal/usage"
)

type memoryCache struct {
	entries map[string][]schemas.FlightRecord
	getErr  error
	puts    int
}

func (c *memoryCache) Get(_ context.Context, text string) ([]schemas.FlightRecord, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	f, ok := c.entries[text]
	return f, ok, nil
}

func (c *memoryCache) Put(_ context.Context, text string, flights []schemas.FlightRecord) error {
	c.puts++
	c.entries[text] = flights
	return nil
}

func newExtractor(t *testing.T, llm schemas.LLMClient, cache booking.ExtractionCache) *booking.Extractor {
	t.Helper()
	ex, err := booking.NewExtractor(llm, cache, zaptest.NewLogger(t), booking.Options{})
	require.NoError(t, err)
	return ex
}

func TestExtract_PreservesOrderWithoutDedup(t *testing.T) {
	f303 := flight(t, "BOS-YYZ303", 120, "BOS", "YYZ", "2025-01-10")
	f404 := flight(t, "BOS-YYZ404", 250, "BOS", "YYZ", "2025-01-10")
	llm := mocks.NewScriptedLLM().On(booking.ExtractionSystemPrompt, extracted(f404, f303, f404))

	flights, err := newExtractor(t, llm, nil).Extract(context.Background(), bostonListing, nil)
	require.NoError(t, err)
	assert.Equal(t, []schemas.FlightRecord{f404, f303, f404}, flights)

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, schemas.TierFast, reqs[0].Tier)
	assert.Equal(t, bostonListing, reqs[0].Messages[0].Content)
}

func TestExtract_EmptyListIsNotAnError(t *testing.T) {
	llm := mocks.NewScriptedLLM().On(booking.ExtractionSystemPrompt, extracted())

	flights, err := newExtractor(t, llm, nil).Extract(context.Background(), "no flights today", nil)
	require.NoError(t, err)
	assert.Empty(t, flights)
	assert.NotNil(t, flights)
}

func TestExtract_InvalidRecordIsFatal(t *testing.T) {
	llm := mocks.NewScriptedLLM().On(booking.ExtractionSystemPrompt,
		mocks.CallTool("final_result", map[string]any{"flights": []map[string]any{{
			"flight_number": "BOS-YYZ303", "price": 120, "origin": "BOS", "destination": "YYZ", "date": "Jan 10 2025",
		}}}))

	_, err := newExtractor(t, llm, nil).Extract(context.Background(), bostonListing, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, schemas.ErrConstruction)
}

func TestExtract_SharesBudget(t *testing.T) {
	llm := mocks.NewScriptedLLM().On(booking.ExtractionSystemPrompt, extracted())
	budget := usage.NewBudget(usage.Limits{RequestLimit: 1})
	ex := newExtractor(t, llm, nil)

	_, err := ex.Extract(context.Background(), "a", budget)
	require.NoError(t, err)
	_, err = ex.Extract(context.Background(), "b", budget)
	assert.ErrorIs(t, err, usage.ErrLimitExceeded)
	assert.Len(t, llm.Requests(), 1)
}

func TestExtract_Cache(t *testing.T) {
	f303 := flight(t, "BOS-YYZ303", 120, "BOS", "YYZ", "2025-01-10")
	llm := mocks.NewScriptedLLM().On(booking.ExtractionSystemPrompt, extracted(f303))
	cache := &memoryCache{entries: map[string][]schemas.FlightRecord{}}
	ex := newExtractor(t, llm, cache)

	first, err := ex.Extract(context.Background(), bostonListing, nil)
	require.NoError(t, err)
	second, err := ex.Extract(context.Background(), bostonListing, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, llm.Requests(), 1, "second extraction must be served from the cache")
	assert.Equal(t, 1, cache.puts)
}

func TestExtract_CacheFailureFallsBackToModel(t *testing.T) {
	llm := mocks.NewScriptedLLM().On(booking.ExtractionSystemPrompt, extracted())
	cache := &memoryCache{entries: map[string][]schemas.FlightRecord{}, getErr: errors.New("connection refused")}

	_, err := newExtractor(t, llm, cache).Extract(context.Background(), bostonListing, nil)
	require.NoError(t, err)
	assert.Len(t, llm.Requests(), 1)
	assert.Equal(t, 1, cache.puts)
}
