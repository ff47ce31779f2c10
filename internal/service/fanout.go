package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tipbridge/internal/custom_err"
	"tipbridge/internal/metrics"
	"tipbridge/internal/models"

	"github.com/shopspring/decimal"
)

const (
	DefaultMaxRecipients = 5
	DefaultTipSpacing    = 2200 * time.Millisecond
)

type TipRequest struct {
	Sender    models.AccountRef   `json:"sender"`
	Receivers []models.AccountRef `json:"receivers"`
	Amount    string              `json:"amount"`
	Network   models.Network      `json:"network"`
}

type RecipientResult struct {
	Receiver models.AccountRef `json:"receiver"`
	Result   TransferResult    `json:"result"`
	Error    string            `json:"error,omitempty"`
}

type TipResult struct {
	Outcome   Outcome           `json:"outcome"`
	Summary   string            `json:"summary"`
	Successes []RecipientResult `json:"successes"`
	Failures  []RecipientResult `json:"failures"`
}

// FanOut turns one tip command into sequential, independent transfers to each recipient.
type FanOut struct {
	transfers     Transferer
	maxRecipients int
	spacing       time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
	log           *slog.Logger
}

func NewFanOut(transfers Transferer, maxRecipients int, spacing time.Duration, log *slog.Logger) *FanOut {
	if maxRecipients <= 0 {
		maxRecipients = DefaultMaxRecipients
	}
	return &FanOut{
		transfers:     transfers,
		maxRecipients: maxRecipients,
		spacing:       spacing,
		sleep:         sleepCtx,
		log:           log.With(slog.String("component", "fanout")),
	}
}

func (f *FanOut) MaxRecipients() int { return f.maxRecipients }

func (f *FanOut) validate(req TipRequest) error {
	const op = "service.FanOut.validate"
	if len(req.Receivers) == 0 {
		return custom_err.Invalid("at least one recipient is required")
	}
	if len(req.Receivers) > f.maxRecipients {
		return fmt.Errorf("%s: %d recipients, at most %d allowed: %w", op, len(req.Receivers), f.maxRecipients, custom_err.ErrTooManyRecipients)
	}
	if req.Sender.IsZero() {
		return custom_err.Invalid("sender is required")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return custom_err.Invalid("invalid amount %q", req.Amount)
	}
	if !amount.IsPositive() {
		return custom_err.Invalid("amount must be greater than zero")
	}
	return nil
}

// Tip rejects the whole command before any transfer when it is malformed or over the recipient cap.
// Past that point a failing recipient is recorded and the rest still run, in the order given.
func (f *FanOut) Tip(ctx context.Context, req TipRequest) (TipResult, error) {
	const op = "service.FanOut.Tip"
	if err := f.validate(req); err != nil {
		return TipResult{}, err
	}

	out := TipResult{Successes: []RecipientResult{}, Failures: []RecipientResult{}}
	for i, receiver := range req.Receivers {
		if i > 0 {
			if err := f.sleep(ctx, f.spacing); err != nil {
				for _, skipped := range req.Receivers[i:] {
					out.Failures = append(out.Failures, RecipientResult{
						Receiver: skipped,
						Result:   TransferResult{Outcome: OutcomeRetry, Message: "not sent"},
						Error:    err.Error(),
					})
				}
				f.log.Warn("tip interrupted", slog.String("op", op), slog.Int("skipped", len(req.Receivers)-i))
				break
			}
		}

		res, err := f.transfers.Execute(ctx, models.TransferRequest{
			Sender:   req.Sender,
			Receiver: &receiver,
			Amount:   req.Amount,
			Type:     models.TipTransaction,
			Network:  req.Network,
		})
		item := RecipientResult{Receiver: receiver, Result: res}
		if err != nil {
			item.Error = err.Error()
			out.Failures = append(out.Failures, item)
			metrics.FanOutRecipientsTotal.WithLabelValues("failed").Inc()
			continue
		}
		out.Successes = append(out.Successes, item)
		metrics.FanOutRecipientsTotal.WithLabelValues("success").Inc()
	}

	out.Summary = fmt.Sprintf("%d/%d", len(out.Successes), len(req.Receivers))
	switch {
	case len(out.Failures) == 0:
		out.Outcome = OutcomeCompleted
	case len(out.Successes) == 0 && !anySubmitted(out.Failures):
		out.Outcome = OutcomeRetry
	default:
		out.Outcome = OutcomeCheckStatus
	}
	return out, nil
}

func anySubmitted(results []RecipientResult) bool {
	for _, r := range results {
		if r.Result.Outcome == OutcomeCheckStatus {
			return true
		}
	}
	return false
}
