package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tipbridge/internal/custom_err"
	"tipbridge/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	timeoutMessage    = "could not confirm, please retry"
	connectionMessage = "connection error"
	protocolMessage   = "unexpected engine response"
)

// Transport performs one physical call. It must return an error wrapping context.DeadlineExceeded when
// ctx expires and one wrapping custom_err.ErrConnection when the engine cannot be reached.
type Transport interface {
	Do(ctx context.Context, req Request) ([]byte, error)
}

type CallOptions struct {
	BaseTimeout time.Duration
	MaxAttempts int
	// Increment is added per retry; zero means half of BaseTimeout.
	Increment time.Duration
}

func (o CallOptions) timeout(attempt int) time.Duration {
	inc := o.Increment
	if inc == 0 {
		inc = o.BaseTimeout / 2
	}
	return o.BaseTimeout + time.Duration(attempt-1)*inc
}

var DefaultOptions = CallOptions{BaseTimeout: 5 * time.Second, MaxAttempts: 5}

// Gateway turns one logical engine call into bounded physical attempts. It keeps no state between calls.
type Gateway struct {
	transport Transport
	log       *slog.Logger
	options   map[Operation]CallOptions
}

func New(transport Transport, log *slog.Logger, options map[Operation]CallOptions) *Gateway {
	if options == nil {
		options = map[Operation]CallOptions{}
	}
	return &Gateway{
		transport: transport,
		log:       log.With(slog.String("component", "gateway")),
		options:   options,
	}
}

// Call invokes req with the options configured for its operation.
func (g *Gateway) Call(ctx context.Context, req Request) (Result, error) {
	opts, ok := g.options[req.Operation()]
	if !ok {
		opts = DefaultOptions
	}
	return g.Invoke(ctx, req, opts)
}

func (g *Gateway) Invoke(ctx context.Context, req Request, opts CallOptions) (Result, error) {
	const op = "gateway.Invoke"
	operation := string(req.Operation())

	timer := prometheus.NewTimer(metrics.EngineCallDuration.WithLabelValues(operation))
	defer timer.ObserveDuration()

	attempts := max(opts.MaxAttempts, 1)
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			metrics.EngineRetriesTotal.WithLabelValues(operation).Inc()
		}

		timeout := opts.timeout(attempt)
		raw, err := g.attempt(ctx, req, timeout)
		if err == nil {
			return g.decode(operation, raw)
		}

		switch {
		case ctx.Err() != nil:
			g.record(operation, "canceled")
			return Result{Message: timeoutMessage}, fmt.Errorf("%s(%s): %w: %w", op, operation, custom_err.ErrEngineTimeout, ctx.Err())
		case errors.Is(err, context.DeadlineExceeded):
			g.log.Warn("engine attempt timed out",
				slog.String("op", op),
				slog.String("operation", operation),
				slog.Int("attempt", attempt),
				slog.Duration("timeout", timeout))
			continue
		case errors.Is(err, custom_err.ErrConnection):
			g.record(operation, "connection_error")
			g.log.Error("engine unreachable", slog.String("op", op), slog.String("operation", operation), slog.String("error", err.Error()))
			return Result{Message: connectionMessage}, fmt.Errorf("%s(%s): %w", op, operation, err)
		default:
			g.record(operation, "protocol_error")
			if !errors.Is(err, custom_err.ErrProtocol) {
				err = fmt.Errorf("%w: %v", custom_err.ErrProtocol, err)
			}
			return Result{Message: protocolMessage}, fmt.Errorf("%s(%s): %w", op, operation, err)
		}
	}

	g.record(operation, "timeout")
	return Result{Message: timeoutMessage}, fmt.Errorf("%s(%s): %w after %d attempts", op, operation, custom_err.ErrEngineTimeout, attempts)
}

func (g *Gateway) attempt(ctx context.Context, req Request, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return g.transport.Do(ctx, req)
}

func (g *Gateway) decode(operation string, raw []byte) (Result, error) {
	const op = "gateway.Invoke"
	res, err := normalize(raw)
	if err != nil {
		g.record(operation, "protocol_error")
		return Result{Message: protocolMessage}, fmt.Errorf("%s(%s): %w", op, operation, err)
	}
	if !res.OK {
		g.record(operation, "engine_error")
		return res, fmt.Errorf("%s(%s): %w", op, operation, &custom_err.EngineError{Message: res.Message})
	}
	g.record(operation, "ok")
	return res, nil
}

func (g *Gateway) record(operation, outcome string) {
	metrics.EngineCallsTotal.WithLabelValues(operation, outcome).Inc()
}
