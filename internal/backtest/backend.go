// Package backtest drives the trading engine over stored daily bars with a
// simulated order backend.
package backtest

import (
	"context"
	"fmt"

	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/execution"
)

// Fill models.
const (
	FillImmediate = "immediate"
	FillNextTick  = "next_tick"
)

// SimBackend fills orders against the current tick's prices. The immediate
// model fills on submission; next_tick returns pending and fills on the
// following tick's inquiry, exercising the retry path the way a slow live
// broker would.
type SimBackend struct {
	fillModel string
	prices    map[string]float64
	pending   map[string]*domain.OrderIntent // order number -> intent
	seq       int
}

// NewSimBackend creates a simulated backend. fillModel must be immediate or
// next_tick.
func NewSimBackend(fillModel string) (*SimBackend, error) {
	if fillModel != FillImmediate && fillModel != FillNextTick {
		return nil, fmt.Errorf("unknown fill model %q", fillModel)
	}
	return &SimBackend{
		fillModel: fillModel,
		prices:    make(map[string]float64),
		pending:   make(map[string]*domain.OrderIntent),
	}, nil
}

// SetPrices installs the tick's last prices. Called before each cycle.
func (b *SimBackend) SetPrices(last map[string]float64) {
	b.prices = last
}

// Submit fills or parks the intent depending on the fill model.
func (b *SimBackend) Submit(_ context.Context, intent *domain.OrderIntent) (execution.BrokerResponse, error) {
	b.seq++
	orderNo := fmt.Sprintf("SIM%06d", b.seq)

	if b.fillModel == FillNextTick {
		copy := *intent
		b.pending[orderNo] = &copy
		return execution.BrokerResponse{State: execution.StatePending, OrderNo: orderNo}, nil
	}

	price, ok := b.prices[intent.Code]
	if !ok || price <= 0 {
		return execution.BrokerResponse{State: execution.StateRejected, OrderNo: orderNo, Message: "no price for instrument"}, nil
	}
	return execution.BrokerResponse{
		State:     execution.StateFilled,
		FilledQty: intent.Quantity,
		FillPrice: price,
		OrderNo:   orderNo,
	}, nil
}

// Inquire fills a parked next_tick order at the current tick's price.
func (b *SimBackend) Inquire(_ context.Context, orderNo string) (execution.BrokerResponse, error) {
	intent, ok := b.pending[orderNo]
	if !ok {
		return execution.BrokerResponse{State: execution.StateRejected, OrderNo: orderNo, Message: "unknown order"}, nil
	}

	price, ok := b.prices[intent.Code]
	if !ok || price <= 0 {
		// No price this tick; stay pending for the next one.
		return execution.BrokerResponse{State: execution.StatePending, OrderNo: orderNo}, nil
	}

	delete(b.pending, orderNo)
	return execution.BrokerResponse{
		State:     execution.StateFilled,
		FilledQty: intent.Quantity,
		FillPrice: price,
		OrderNo:   orderNo,
	}, nil
}

var _ execution.Backend = (*SimBackend)(nil)
