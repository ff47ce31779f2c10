package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"tipbridge/internal/custom_err"
	"tipbridge/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Transferer = (*mockTransferer)(nil)

type mockTransferer struct {
	mu    sync.Mutex
	calls []models.TransferRequest

	ExecuteFunc func(ctx context.Context, req models.TransferRequest) (TransferResult, error)
}

func (m *mockTransferer) Execute(ctx context.Context, req models.TransferRequest) (TransferResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, req)
	}
	return TransferResult{OK: true, Outcome: OutcomeCompleted}, nil
}

func newTestFanOut(transfers Transferer, maxRecipients int) (*FanOut, *[]time.Duration) {
	f := NewFanOut(transfers, maxRecipients, DefaultTipSpacing, discardLogger())
	var gaps []time.Duration
	f.sleep = func(_ context.Context, d time.Duration) error {
		gaps = append(gaps, d)
		return nil
	}
	return f, &gaps
}

func refs(names ...string) []models.AccountRef {
	out := make([]models.AccountRef, 0, len(names))
	for _, n := range names {
		out = append(out, models.AccountRef{Username: n})
	}
	return out
}

func TestFanOut_IndependentRecipients(t *testing.T) {
	transfers := &mockTransferer{ExecuteFunc: func(_ context.Context, req models.TransferRequest) (TransferResult, error) {
		if req.Receiver.Username == "b" {
			return TransferResult{Outcome: OutcomeRetry, Message: "recipient has no account yet"}, custom_err.Invalid("recipient has no account yet")
		}
		return TransferResult{OK: true, Outcome: OutcomeCompleted}, nil
	}}
	f, gaps := newTestFanOut(transfers, 5)

	res, err := f.Tip(context.Background(), TipRequest{
		Sender:    models.AccountRef{ID: 1},
		Receivers: refs("a", "b", "c"),
		Amount:    "1",
		Network:   models.NetworkLedger,
	})

	require.NoError(t, err)
	require.Len(t, res.Successes, 2)
	assert.Equal(t, "a", res.Successes[0].Receiver.Username)
	assert.Equal(t, "c", res.Successes[1].Receiver.Username)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "b", res.Failures[0].Receiver.Username)
	assert.Equal(t, "recipient has no account yet", res.Failures[0].Error)
	assert.Equal(t, "2/3", res.Summary)
	assert.Equal(t, OutcomeCheckStatus, res.Outcome)

	require.Len(t, transfers.calls, 3)
	for _, c := range transfers.calls {
		assert.Equal(t, models.TipTransaction, c.Type)
	}
	assert.Equal(t, []time.Duration{DefaultTipSpacing, DefaultTipSpacing}, *gaps, "spacing only between recipients")
}

func TestFanOut_RejectsWholeCommand(t *testing.T) {
	tests := []struct {
		name    string
		req     TipRequest
		wantErr error
	}{
		{
			name:    "Over the recipient cap",
			req:     TipRequest{Sender: models.AccountRef{ID: 1}, Receivers: refs("a", "b", "c", "d", "e", "f"), Amount: "1"},
			wantErr: custom_err.ErrTooManyRecipients,
		},
		{
			name:    "No recipients",
			req:     TipRequest{Sender: models.AccountRef{ID: 1}, Amount: "1"},
			wantErr: custom_err.ErrValidation,
		},
		{
			name:    "Bad amount",
			req:     TipRequest{Sender: models.AccountRef{ID: 1}, Receivers: refs("a"), Amount: "lots"},
			wantErr: custom_err.ErrValidation,
		},
		{
			name:    "Zero amount",
			req:     TipRequest{Sender: models.AccountRef{ID: 1}, Receivers: refs("a"), Amount: "0"},
			wantErr: custom_err.ErrValidation,
		},
		{
			name:    "No sender",
			req:     TipRequest{Receivers: refs("a"), Amount: "1"},
			wantErr: custom_err.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transfers := &mockTransferer{}
			f, _ := newTestFanOut(transfers, 5)

			_, err := f.Tip(context.Background(), tt.req)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, transfers.calls, "nothing is submitted for any recipient")
		})
	}
}

func TestFanOut_InterruptedMarksTheRest(t *testing.T) {
	transfers := &mockTransferer{}
	f, _ := newTestFanOut(transfers, 5)
	f.sleep = func(context.Context, time.Duration) error { return context.Canceled }

	res, err := f.Tip(context.Background(), TipRequest{Sender: models.AccountRef{ID: 1}, Receivers: refs("a", "b", "c"), Amount: "1"})

	require.NoError(t, err)
	assert.Len(t, res.Successes, 1)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, "b", res.Failures[0].Receiver.Username)
	assert.Equal(t, "c", res.Failures[1].Receiver.Username)
	assert.Equal(t, "1/3", res.Summary)
	assert.Len(t, transfers.calls, 1)
}

func TestFanOut_WithTransferService(t *testing.T) {
	fx := newTransferFixture(t, 1000000000)
	dave := &models.Wallet{ID: uuid.New(), Network: models.NetworkLedger, Address: "vite_dave", OwnerID: 3}
	fx.wallets.byOwner[3] = dave
	fx.wallets.names["dave"] = 3

	f, _ := newTestFanOut(fx.svc, 5)

	res, err := f.Tip(context.Background(), TipRequest{
		Sender:    models.AccountRef{ID: 1},
		Receivers: refs("bob", "carol", "dave"),
		Amount:    "1",
		Network:   models.NetworkLedger,
	})
	require.NoError(t, err)
	fx.svc.Wait()

	assert.Equal(t, "2/3", res.Summary)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "carol", res.Failures[0].Receiver.Username)

	var tips []models.Transaction
	for _, row := range fx.txs.all() {
		if row.Type == models.TipTransaction {
			tips = append(tips, row)
		}
	}
	require.Len(t, tips, 2)
	assert.Equal(t, fx.bob.ID, *tips[0].ReceiverWalletID)
	assert.Equal(t, dave.ID, *tips[1].ReceiverWalletID)
	for _, tip := range tips {
		assert.Equal(t, models.StatusSuccess, tip.Status)
	}
	assert.True(t, fx.lockFree(t))
}
