// Package stub provides a scripted in-process order backend for tests and
// dry runs.
package stub

import (
	"context"
	"sync"

	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/execution"
)

// Backend replays scripted responses keyed by instrument and side, falling
// back to filling at the intent's reference price. Safe for concurrent use.
type Backend struct {
	mu       sync.Mutex
	scripted map[string]execution.BrokerResponse
	orders   map[string]*domain.OrderIntent
	seq      int

	Submits  []*domain.OrderIntent
	Inquires []string
}

// New creates an empty stub backend.
func New() *Backend {
	return &Backend{
		scripted: make(map[string]execution.BrokerResponse),
		orders:   make(map[string]*domain.OrderIntent),
	}
}

func scriptKey(code string, side domain.OrderSide) string {
	return code + "|" + string(side)
}

// Script fixes the response for an instrument and side. Without a script,
// submissions fill at the intent price.
func (b *Backend) Script(code string, side domain.OrderSide, resp execution.BrokerResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scripted[scriptKey(code, side)] = resp
}

// Submit returns the scripted response, or an immediate fill.
func (b *Backend) Submit(_ context.Context, intent *domain.OrderIntent) (execution.BrokerResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Submits = append(b.Submits, intent)
	b.seq++
	orderNo := orderNo(b.seq)

	if resp, ok := b.scripted[scriptKey(intent.Code, intent.Side)]; ok {
		if resp.OrderNo == "" {
			resp.OrderNo = orderNo
		}
		if resp.State == execution.StatePending {
			copy := *intent
			b.orders[resp.OrderNo] = &copy
		}
		return resp, nil
	}

	return execution.BrokerResponse{
		State:     execution.StateFilled,
		FilledQty: intent.Quantity,
		FillPrice: intent.Price,
		OrderNo:   orderNo,
	}, nil
}

// Inquire fills a previously parked pending order at its intent price.
func (b *Backend) Inquire(_ context.Context, no string) (execution.BrokerResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Inquires = append(b.Inquires, no)
	intent, ok := b.orders[no]
	if !ok {
		return execution.BrokerResponse{State: execution.StatePending, OrderNo: no}, nil
	}
	delete(b.orders, no)
	return execution.BrokerResponse{
		State:     execution.StateFilled,
		FilledQty: intent.Quantity,
		FillPrice: intent.Price,
		OrderNo:   no,
	}, nil
}

func orderNo(seq int) string {
	const digits = "0123456789"
	buf := []byte("STUB00000")
	for i := len(buf) - 1; seq > 0 && i >= 4; i-- {
		buf[i] = digits[seq%10]
		seq /= 10
	}
	return string(buf)
}

var _ execution.Backend = (*Backend)(nil)
