// Package execution turns order intents into brokerage orders through a
// pluggable Backend and classifies the outcomes. Any ambiguity about an
// order's fate resolves to unknown-pending, never to assumed success.
package execution

import (
	"context"
	"log"

	"krx-scalp-lab/internal/domain"
)

// Response states reported by a Backend.
const (
	StateFilled   = "filled"
	StateRejected = "rejected"
	StatePartial  = "partial"
	StatePending  = "pending"
)

// BrokerResponse is the raw outcome a Backend reports for a submission or
// an inquiry.
type BrokerResponse struct {
	State     string  // filled | rejected | partial | pending
	FilledQty int64   // shares filled (filled/partial)
	FillPrice float64 // fill price (filled/partial)
	OrderNo   string  // brokerage order number, when assigned
	Message   string  // rejection or error detail
}

// Backend is the order transport. Implementations: the REST broker client,
// the simulated backtest backend, the scripted test stub.
type Backend interface {
	// Submit places an order. A transport error means the order may or may
	// not have reached the broker.
	Submit(ctx context.Context, intent *domain.OrderIntent) (BrokerResponse, error)

	// Inquire reports the current state of a previously submitted order.
	Inquire(ctx context.Context, orderNo string) (BrokerResponse, error)
}

// pendingOrder tracks an unconfirmed submission across cycles so retries
// inquire instead of double-submitting.
type pendingOrder struct {
	orderNo string
	sinceMs int64 // cycle clock when the order went unconfirmed
}

// Orchestrator submits intents, classifies responses, and is idempotent per
// intent key within a cycle: a duplicate submission returns the cached
// result without a second network call.
type Orchestrator struct {
	backend          Backend
	maxOrderNotional float64 // pre-trade cap; 0 disables
	logger           *log.Logger

	cycleCache map[string]*domain.OrderResult // intent key -> result, this cycle
	pending    map[string]pendingOrder        // code|side -> unconfirmed order
	retries    int                            // inquiries issued, drained by Retries()
	nowMs      int64                          // current cycle clock, set by BeginCycle
}

// New creates an orchestrator over the given backend.
func New(backend Backend, maxOrderNotional float64, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		backend:          backend,
		maxOrderNotional: maxOrderNotional,
		logger:           logger,
		cycleCache:       make(map[string]*domain.OrderResult),
		pending:          make(map[string]pendingOrder),
	}
}

// BeginCycle clears the per-cycle idempotency cache and sets the cycle
// clock that stamps every result this cycle. The clock comes from the
// driving snapshot batch, so backtest and replay results carry historical
// timestamps, not the wall clock. Pending orders survive across cycles.
func (o *Orchestrator) BeginCycle(nowMs int64) {
	o.cycleCache = make(map[string]*domain.OrderResult)
	o.nowMs = nowMs
}

// Retries returns and resets the number of pending-order inquiries issued
// since the last call.
func (o *Orchestrator) Retries() int {
	n := o.retries
	o.retries = 0
	return n
}

// Submit places one intent and returns its classified result. If an earlier
// cycle left an unconfirmed order for the same instrument and side, the
// broker is inquired instead of re-submitting, so a slow fill is never
// doubled.
func (o *Orchestrator) Submit(ctx context.Context, intent *domain.OrderIntent) (*domain.OrderResult, error) {
	if cached, ok := o.cycleCache[intent.Key]; ok {
		return cached, nil
	}

	pendKey := intent.Code + "|" + string(intent.Side)

	var resp BrokerResponse
	var err error
	if pend, ok := o.pending[pendKey]; ok {
		o.retries++
		resp, err = o.backend.Inquire(ctx, pend.orderNo)
		if err == nil && resp.OrderNo == "" {
			resp.OrderNo = pend.orderNo
		}
	} else {
		if o.maxOrderNotional > 0 && intent.Price*float64(intent.Quantity) > o.maxOrderNotional {
			result := &domain.OrderResult{
				Key:         intent.Key,
				Code:        intent.Code,
				Side:        intent.Side,
				Outcome:     domain.OutcomeRejected,
				Message:     "order notional above configured cap",
				TimestampMs: o.nowMs,
			}
			o.cycleCache[intent.Key] = result
			return result, nil
		}
		resp, err = o.backend.Submit(ctx, intent)
	}

	result := o.classify(intent, resp, err)

	if result.Confirmed() {
		delete(o.pending, pendKey)
	} else if result.BrokerOrder != "" {
		if _, ok := o.pending[pendKey]; !ok {
			o.pending[pendKey] = pendingOrder{orderNo: result.BrokerOrder, sinceMs: o.nowMs}
		}
	}

	o.cycleCache[intent.Key] = result
	return result, nil
}

// classify maps a raw backend response (or transport error) onto an
// OrderResult. A transport error classifies as unknown-pending: the order
// may have reached the broker.
func (o *Orchestrator) classify(intent *domain.OrderIntent, resp BrokerResponse, err error) *domain.OrderResult {
	result := &domain.OrderResult{
		Key:         intent.Key,
		Code:        intent.Code,
		Side:        intent.Side,
		BrokerOrder: resp.OrderNo,
		Message:     resp.Message,
		TimestampMs: o.nowMs,
	}

	if err != nil {
		result.Outcome = domain.OutcomeUnknown
		result.Message = err.Error()
		if o.logger != nil {
			o.logger.Printf("submit %s %s: transport error, treating as pending: %v",
				intent.Side, intent.Code, err)
		}
		return result
	}

	switch resp.State {
	case StateFilled:
		result.Outcome = domain.OutcomeFilled
		result.FilledQty = resp.FilledQty
		result.FillPrice = resp.FillPrice
	case StateRejected:
		result.Outcome = domain.OutcomeRejected
	case StatePartial:
		result.Outcome = domain.OutcomePartial
		result.FilledQty = resp.FilledQty
		result.FillPrice = resp.FillPrice
	default:
		result.Outcome = domain.OutcomeUnknown
	}

	return result
}
