package llmclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
)

// -- Test Setup Helper --

// setupRouter creates a standard LLMRouter instance for testing, along with its mocks and a log observer.
func setupRouter(t *testing.T) (*LLMRouter, *MockLLMClient, *MockLLMClient, *observer.ObservedLogs) {
	t.Helper()
	loggerCore, observedLogs := observer.New(zap.DebugLevel)
	logger := zap.New(loggerCore)

	fastClient := &MockLLMClient{Name: "FastClient"}
	powerfulClient := &MockLLMClient{Name: "PowerfulClient"}

	router, err := NewLLMRouter(logger, fastClient, powerfulClient)
	require.NoError(t, err, "NewLLMRouter should initialize successfully")

	return router, fastClient, powerfulClient, observedLogs
}

func TestNewLLMRouter_Success(t *testing.T) {
	router, fastClient, powerfulClient, _ := setupRouter(t)

	require.NotNil(t, router)
	assert.Equal(t, fastClient, router.clients[schemas.TierFast])
	assert.Equal(t, powerfulClient, router.clients[schemas.TierPowerful])
}

func TestNewLLMRouter_Failure_MissingClients(t *testing.T) {
	logger := setupTestLogger(t)
	validClient := new(MockLLMClient)

	tests := []struct {
		name     string
		fast     schemas.LLMClient
		powerful schemas.LLMClient
	}{
		{"Missing Fast Client", nil, validClient},
		{"Missing Powerful Client", validClient, nil},
		{"Missing Both Clients", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, err := NewLLMRouter(logger, tt.fast, tt.powerful)
			assert.Nil(t, router)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "both fast and powerful tier clients must be provided")
		})
	}
}

// -- Test Cases: Routing Logic (Complete) --

func TestComplete_Routing(t *testing.T) {
	ctx := context.Background()
	reply := &schemas.CompletionResponse{Message: schemas.Message{Role: schemas.RoleAssistant, Content: "ok"}}

	t.Run("fast tier", func(t *testing.T) {
		router, fastClient, powerfulClient, observedLogs := setupRouter(t)
		req := schemas.CompletionRequest{Tier: schemas.TierFast}
		fastClient.On("Complete", ctx, req).Return(reply, nil).Once()

		resp, err := router.Complete(ctx, req)
		require.NoError(t, err)
		assert.Same(t, reply, resp)
		fastClient.AssertExpectations(t)
		powerfulClient.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)

		require.Equal(t, 1, observedLogs.Len(), "Expected one log entry for routing")
		entry := observedLogs.All()[0]
		assert.Equal(t, "Routing LLM request", entry.Message)
		assert.Equal(t, string(schemas.TierFast), entry.ContextMap()["tier"])
	})

	t.Run("powerful tier", func(t *testing.T) {
		router, fastClient, powerfulClient, _ := setupRouter(t)
		req := schemas.CompletionRequest{Tier: schemas.TierPowerful}
		powerfulClient.On("Complete", ctx, req).Return(reply, nil).Once()

		_, err := router.Complete(ctx, req)
		require.NoError(t, err)
		powerfulClient.AssertExpectations(t)
		fastClient.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	})

	t.Run("empty tier defaults to powerful", func(t *testing.T) {
		router, _, powerfulClient, observedLogs := setupRouter(t)
		req := schemas.CompletionRequest{}
		powerfulClient.On("Complete", ctx, req).Return(reply, nil).Once()

		_, err := router.Complete(ctx, req)
		require.NoError(t, err)
		powerfulClient.AssertExpectations(t)
		assert.Equal(t, string(schemas.TierPowerful), observedLogs.All()[0].ContextMap()["tier"])
	})
}

func TestComplete_UnknownTier(t *testing.T) {
	router, fastClient, powerfulClient, _ := setupRouter(t)

	_, err := router.Complete(context.Background(), schemas.CompletionRequest{Tier: "experimental"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no LLM client configured for tier: experimental")
	fastClient.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	powerfulClient.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestComplete_PropagatesClientError(t *testing.T) {
	router, fastClient, _, _ := setupRouter(t)
	ctx := context.Background()
	req := schemas.CompletionRequest{Tier: schemas.TierFast}
	boom := errors.New("quota exceeded")
	fastClient.On("Complete", ctx, req).Return(nil, boom).Once()

	resp, err := router.Complete(ctx, req)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, boom)
}

func TestLLMRouter_Close(t *testing.T) {
	t.Run("distinct clients are both closed", func(t *testing.T) {
		router, fastClient, powerfulClient, _ := setupRouter(t)
		fastErr := errors.New("fast close failed")
		fastClient.On("Close").Return(fastErr).Once()
		powerfulClient.On("Close").Return(nil).Once()

		err := router.Close()
		assert.ErrorIs(t, err, fastErr)
		fastClient.AssertExpectations(t)
		powerfulClient.AssertExpectations(t)
	})

	t.Run("shared client is closed once", func(t *testing.T) {
		shared := &MockLLMClient{Name: "Shared"}
		shared.On("Close").Return(nil).Once()
		router, err := NewLLMRouter(setupTestLogger(t), shared, shared)
		require.NoError(t, err)

		require.NoError(t, router.Close())
		shared.AssertNumberOfCalls(t, "Close", 1)
	})
}
