package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"tipbridge/internal/custom_err"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Transport = (*mockTransport)(nil)

type mockTransport struct {
	mu     sync.Mutex
	calls  int
	starts []time.Time
	DoFunc func(ctx context.Context, attempt int, req Request) ([]byte, error)
}

func (m *mockTransport) Do(ctx context.Context, req Request) ([]byte, error) {
	m.mu.Lock()
	m.calls++
	attempt := m.calls
	m.starts = append(m.starts, time.Now())
	m.mu.Unlock()
	return m.DoFunc(ctx, attempt, req)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func hang(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestGateway_RetriesOnTimeoutWithGrowingTimeout(t *testing.T) {
	transport := &mockTransport{
		DoFunc: func(ctx context.Context, attempt int, req Request) ([]byte, error) {
			if attempt < 3 {
				return hang(ctx)
			}
			return []byte(`{"error":0,"msg":"ok","data":"hash-3"}`), nil
		},
	}
	gw := New(transport, discardLogger(), nil)

	base := 40 * time.Millisecond
	res, err := gw.Invoke(context.Background(), LedgerBalanceRequest{}, CallOptions{BaseTimeout: base, MaxAttempts: 5})

	require.NoError(t, err)
	assert.True(t, res.OK)
	hash, ok := res.Scalar()
	assert.True(t, ok)
	assert.Equal(t, "hash-3", hash)

	require.Len(t, transport.starts, 3)
	// attempt 1 waits base, attempt 2 waits base + base/2
	waited := transport.starts[2].Sub(transport.starts[0])
	assert.GreaterOrEqual(t, waited, base+base+base/2)
	assert.Less(t, waited, base+base+base/2+150*time.Millisecond)
}

func TestGateway_ExhaustedAttemptsReturnTimeout(t *testing.T) {
	transport := &mockTransport{
		DoFunc: func(ctx context.Context, attempt int, req Request) ([]byte, error) {
			return hang(ctx)
		},
	}
	gw := New(transport, discardLogger(), nil)

	res, err := gw.Invoke(context.Background(), LedgerSendRequest{}, CallOptions{BaseTimeout: 5 * time.Millisecond, MaxAttempts: 3})

	assert.ErrorIs(t, err, custom_err.ErrEngineTimeout)
	assert.False(t, res.OK)
	assert.Equal(t, 3, transport.calls)
}

func TestGateway_TerminalFailures(t *testing.T) {
	testCases := []struct {
		name        string
		reply       []byte
		replyErr    error
		wantErr     error
		wantMessage string
	}{
		{
			name:        "Engine error is not retried",
			reply:       []byte(`{"error":1,"msg":"sendBlock.Height must be larger than 1","data":null}`),
			wantErr:     custom_err.ErrEngineError,
			wantMessage: "sendBlock.Height must be larger than 1",
		},
		{
			name:        "Connection error fails fast",
			replyErr:    custom_err.ErrConnection,
			wantErr:     custom_err.ErrConnection,
			wantMessage: "connection error",
		},
		{
			name:    "Unparseable reply",
			reply:   []byte(`Error: cannot find module`),
			wantErr: custom_err.ErrProtocol,
		},
		{
			name:    "Missing error flag",
			reply:   []byte(`{"data":"x"}`),
			wantErr: custom_err.ErrProtocol,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			transport := &mockTransport{
				DoFunc: func(ctx context.Context, attempt int, req Request) ([]byte, error) {
					return tc.reply, tc.replyErr
				},
			}
			gw := New(transport, discardLogger(), nil)

			res, err := gw.Invoke(context.Background(), LedgerSendRequest{}, CallOptions{BaseTimeout: time.Second, MaxAttempts: 5})

			assert.ErrorIs(t, err, tc.wantErr)
			assert.False(t, res.OK)
			assert.Equal(t, 1, transport.calls, "must not be retried")
			if tc.wantMessage != "" {
				assert.Equal(t, tc.wantMessage, res.Message)
			}
		})
	}
}

func TestGateway_EngineErrorCarriesMessage(t *testing.T) {
	transport := &mockTransport{
		DoFunc: func(ctx context.Context, attempt int, req Request) ([]byte, error) {
			return []byte(`{"error":true,"msg":"no account"}`), nil
		},
	}
	gw := New(transport, discardLogger(), nil)

	_, err := gw.Call(context.Background(), LedgerSendRequest{})

	var engineErr *custom_err.EngineError
	require.True(t, errors.As(err, &engineErr))
	assert.Equal(t, "no account", engineErr.Message)
}

func TestGateway_ParentCancellationStopsRetries(t *testing.T) {
	transport := &mockTransport{
		DoFunc: func(ctx context.Context, attempt int, req Request) ([]byte, error) {
			return hang(ctx)
		},
	}
	gw := New(transport, discardLogger(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := gw.Invoke(ctx, LedgerBalanceRequest{}, CallOptions{BaseTimeout: time.Second, MaxAttempts: 5})

	assert.ErrorIs(t, err, custom_err.ErrEngineTimeout)
	assert.Equal(t, 1, transport.calls)
}

func TestGateway_CallUsesPerOperationOptions(t *testing.T) {
	var deadlines []time.Duration
	transport := &mockTransport{
		DoFunc: func(ctx context.Context, attempt int, req Request) ([]byte, error) {
			d, ok := ctx.Deadline()
			require.True(t, ok)
			deadlines = append(deadlines, time.Until(d))
			return []byte(`{"error":0,"data":{"balance":"1"}}`), nil
		},
	}
	gw := New(transport, discardLogger(), map[Operation]CallOptions{
		LedgerReceivePending: {BaseTimeout: 15 * time.Second, MaxAttempts: 2},
	})

	_, err := gw.Call(context.Background(), LedgerReceiveRequest{})
	require.NoError(t, err)

	require.Len(t, deadlines, 1)
	assert.Greater(t, deadlines[0], 14*time.Second)
}

func TestCallOptions_Timeout(t *testing.T) {
	opts := CallOptions{BaseTimeout: 2 * time.Second}
	assert.Equal(t, 2*time.Second, opts.timeout(1))
	assert.Equal(t, 3*time.Second, opts.timeout(2))
	assert.Equal(t, 4*time.Second, opts.timeout(3))

	opts.Increment = 500 * time.Millisecond
	assert.Equal(t, 3*time.Second, opts.timeout(3))
}
