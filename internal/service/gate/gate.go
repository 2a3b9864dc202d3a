package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/dani-ai/dani/internal/apikey"
	"github.com/dani-ai/dani/internal/logger"
	"github.com/dani-ai/dani/internal/metrics"
	"github.com/dani-ai/dani/internal/model"
	"github.com/dani-ai/dani/internal/repository"
	"go.uber.org/zap"
)

var (
	ErrInvalidKey  = errors.New("invalid api key")
	ErrRateLimited = errors.New("rate limit exceeded")
)

type Decision int

const (
	DecisionInvalid Decision = iota
	DecisionRateLimited
	DecisionOK
)

func (d Decision) String() string {
	switch d {
	case DecisionOK:
		return "ok"
	case DecisionRateLimited:
		return "rate_limited"
	default:
		return "invalid"
	}
}

// Err maps a blocking decision to its sentinel error; DecisionOK maps to nil.
func (d Decision) Err() error {
	switch d {
	case DecisionOK:
		return nil
	case DecisionRateLimited:
		return ErrRateLimited
	default:
		return ErrInvalidKey
	}
}

// Gate decides whether a presented key value may be used and accounts for
// each successful use.
//
// With atomic=false usage is recorded as a read followed by a separate write
// once the work has succeeded, so concurrent requests on one key can all pass
// the check and overwrite each other's increment. With atomic=true the use is
// reserved by a single conditional update before the work runs and handed
// back if the work fails, so no more than request_limit uses are ever served.
type Gate struct {
	keys   repository.APIKeysRepository
	atomic bool
}

func New(keys repository.APIKeysRepository, atomic bool) *Gate {
	return &Gate{keys: keys, atomic: atomic}
}

// Check looks the key up and classifies it without consuming a use. The
// returned key is the zero value for DecisionInvalid.
func (g *Gate) Check(ctx context.Context, value string) (model.APIKey, Decision, error) {
	k, err := g.keys.GetByValue(ctx, value)
	if err != nil {
		metrics.GateDecisionsTotal.WithLabelValues("error").Inc()
		return model.APIKey{}, DecisionInvalid, fmt.Errorf("gate lookup: %w", err)
	}

	d := decide(k)
	metrics.GateDecisionsTotal.WithLabelValues(d.String()).Inc()
	if k == nil {
		return model.APIKey{}, d, nil
	}
	return *k, d, nil
}

func decide(k *model.APIKey) Decision {
	if k == nil {
		return DecisionInvalid
	}
	if k.Exhausted() {
		return DecisionRateLimited
	}
	return DecisionOK
}

// Do runs fn only when value may be used and makes sure a use is counted if
// and only if fn succeeds. Errors from fn are returned unchanged.
func (g *Gate) Do(ctx context.Context, value string, fn func(ctx context.Context, k model.APIKey) error) error {
	if g.atomic {
		return g.doReserved(ctx, value, fn)
	}

	k, d, err := g.Check(ctx, value)
	if err != nil {
		return err
	}
	if err := d.Err(); err != nil {
		return err
	}

	if err := fn(ctx, k); err != nil {
		return err
	}

	return g.record(ctx, value)
}

func (g *Gate) doReserved(ctx context.Context, value string, fn func(ctx context.Context, k model.APIKey) error) error {
	k, err := g.reserve(ctx, value)
	if err != nil {
		return err
	}

	if err := fn(ctx, k); err != nil {
		g.refund(ctx, value)
		return err
	}
	return nil
}

// reserve counts one use up front. The returned key carries the usage after
// the reservation.
func (g *Gate) reserve(ctx context.Context, value string) (model.APIKey, error) {
	reserved, err := g.keys.IncrementUsageBelowLimit(ctx, value)
	if err != nil {
		metrics.GateDecisionsTotal.WithLabelValues("error").Inc()
		return model.APIKey{}, fmt.Errorf("reserve usage: %w", err)
	}

	k, err := g.keys.GetByValue(ctx, value)
	if err != nil {
		if reserved {
			g.refund(ctx, value)
		}
		metrics.GateDecisionsTotal.WithLabelValues("error").Inc()
		return model.APIKey{}, fmt.Errorf("gate lookup: %w", err)
	}

	var d Decision
	switch {
	case k == nil:
		// unknown, or deleted right after the reservation
		d = DecisionInvalid
	case reserved:
		d = DecisionOK
	default:
		d = DecisionRateLimited
	}
	metrics.GateDecisionsTotal.WithLabelValues(d.String()).Inc()

	if err := d.Err(); err != nil {
		return model.APIKey{}, err
	}
	return *k, nil
}

// refund hands back a reserved use. It runs even when ctx is already
// cancelled; a failed refund leaves the use counted.
func (g *Gate) refund(ctx context.Context, value string) {
	if err := g.keys.RefundUsage(context.WithoutCancel(ctx), value); err != nil {
		logger.Log.Error("usage refund failed", zap.String("key", apikey.Mask(value)), zap.Error(err))
	}
}

// record counts one use after the fact by reading the counter and writing it
// back plus one.
func (g *Gate) record(ctx context.Context, value string) error {
	usage, err := g.keys.GetUsage(ctx, value)
	if errors.Is(err, repository.ErrKeyNotFound) {
		logger.Log.Warn("usage not recorded: key deleted", zap.String("key", apikey.Mask(value)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	if err := g.keys.SetUsage(ctx, value, usage+1); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}
