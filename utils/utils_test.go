package utils

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker("test-breaker")

	assert.Equal(t, "test-breaker", cb.name)
	assert.Equal(t, uint32(100), cb.maxRequests)
	assert.Equal(t, 60*time.Second, cb.interval)
	assert.Equal(t, 60*time.Second, cb.timeout)
	assert.Equal(t, 0.6, cb.failureRatio)
	assert.Equal(t, StateClosed, cb.state)
}

func TestCircuitBreaker_ExecuteSuccess(t *testing.T) {
	cb := NewCircuitBreaker("test")

	result, err := cb.Execute(context.Background(), func() (any, error) {
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, uint32(1), cb.counts.Requests)
	assert.Equal(t, uint32(1), cb.counts.TotalSuccesses)
	assert.Equal(t, uint32(0), cb.counts.TotalFailures)
}

func TestCircuitBreaker_ExecuteFailure(t *testing.T) {
	cb := NewCircuitBreaker("test")
	wantErr := errors.New("upstream down")

	result, err := cb.Execute(context.Background(), func() (any, error) {
		return nil, wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	assert.Nil(t, result)
	assert.Equal(t, uint32(1), cb.counts.TotalFailures)
	assert.Equal(t, StateClosed, cb.state)
}

func TestCircuitBreaker_ReadyToTrip(t *testing.T) {
	tests := []struct {
		name     string
		requests uint32
		failures uint32
		want     bool
	}{
		{"below request floor", 5, 5, false},
		{"high failure ratio", 10, 8, true},
		{"exact threshold", 10, 6, true},
		{"healthy traffic", 100, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewCircuitBreaker("test")
			cb.maxRequests = 10
			cb.counts.Requests = tt.requests
			cb.counts.TotalFailures = tt.failures

			assert.Equal(t, tt.want, cb.readyToTrip())
		})
	}
}

func TestCircuitBreaker_ClosedToOpen(t *testing.T) {
	cb := NewCircuitBreaker("test")
	cb.maxRequests = 5

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(context.Background(), func() (any, error) {
			return nil, nil
		})
		require.NoError(t, err)
	}
	for i := 0; i < 4; i++ {
		cb.Execute(context.Background(), func() (any, error) {
			return nil, errors.New("boom")
		})
	}

	assert.Equal(t, StateOpen, cb.state)

	_, err := cb.Execute(context.Background(), func() (any, error) {
		return nil, nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
}

func TestCircuitBreaker_OpenToHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("test")
	cb.maxRequests = 5
	cb.timeout = 100 * time.Millisecond

	for i := 0; i < 5; i++ {
		cb.Execute(context.Background(), func() (any, error) {
			return nil, errors.New("boom")
		})
	}
	require.Equal(t, StateOpen, cb.state)

	time.Sleep(150 * time.Millisecond)

	result, err := cb.Execute(context.Background(), func() (any, error) {
		return "recovered", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "recovered", result)
	assert.Equal(t, StateClosed, cb.state)
}

func TestCircuitBreaker_PanicRecovery(t *testing.T) {
	cb := NewCircuitBreaker("test")

	assert.Panics(t, func() {
		cb.Execute(context.Background(), func() (any, error) {
			panic("unexpected")
		})
	})

	assert.Equal(t, uint32(1), cb.counts.TotalFailures)
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker("test")

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cb.Execute(context.Background(), func() (any, error) {
				return nil, nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, uint32(100), cb.counts.Requests)
	assert.Equal(t, uint32(100), cb.counts.TotalSuccesses)
}

func TestRedisHealthCheck(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectPing().SetVal("PONG")

	assert.NoError(t, RedisHealthCheck(client))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisHealthCheck_Failure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectPing().SetErr(errors.New("connection refused"))

	err := RedisHealthCheck(client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis health check failed")
}

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(8)
	require.NoError(t, err)
	assert.Len(t, code, 16)
	assert.Equal(t, strings.ToUpper(code), code)

	other, err := GenerateCode(8)
	require.NoError(t, err)
	assert.NotEqual(t, code, other)
}
