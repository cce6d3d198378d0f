package broker

import (
	"context"

	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/execution"
)

// Backend adapts the broker client to the order orchestrator. Submissions
// acknowledge as pending; fills are confirmed by inquiry on the following
// cycle, so the engine never assumes an unconfirmed fill.
type Backend struct {
	client *Client
}

// NewBackend wraps the client as an execution backend.
func NewBackend(client *Client) *Backend {
	return &Backend{client: client}
}

// Submit places the intent as a market order.
func (b *Backend) Submit(ctx context.Context, intent *domain.OrderIntent) (execution.BrokerResponse, error) {
	ack, accepted, err := b.client.SubmitOrder(ctx, intent.Side, intent.Code, intent.Quantity)
	if err != nil {
		return execution.BrokerResponse{}, err
	}
	if !accepted {
		return execution.BrokerResponse{State: execution.StateRejected, Message: ack.Message}, nil
	}
	return execution.BrokerResponse{State: execution.StatePending, OrderNo: ack.OrderNo, Message: ack.Message}, nil
}

// Inquire reports the execution state of a previously placed order.
func (b *Backend) Inquire(ctx context.Context, orderNo string) (execution.BrokerResponse, error) {
	exec, found, err := b.client.InquireOrder(ctx, orderNo)
	if err != nil {
		return execution.BrokerResponse{}, err
	}
	if !found {
		return execution.BrokerResponse{State: execution.StatePending, OrderNo: orderNo}, nil
	}

	switch {
	case exec.FilledQty > 0 && exec.FilledQty >= exec.OrderedQty:
		return execution.BrokerResponse{
			State:     execution.StateFilled,
			FilledQty: exec.FilledQty,
			FillPrice: exec.AvgPrice,
			OrderNo:   orderNo,
		}, nil
	case exec.CancelledQt > 0 && exec.FilledQty == 0:
		return execution.BrokerResponse{State: execution.StateRejected, OrderNo: orderNo, Message: "order cancelled"}, nil
	case exec.FilledQty > 0:
		return execution.BrokerResponse{
			State:     execution.StatePartial,
			FilledQty: exec.FilledQty,
			FillPrice: exec.AvgPrice,
			OrderNo:   orderNo,
		}, nil
	default:
		return execution.BrokerResponse{State: execution.StatePending, OrderNo: orderNo}, nil
	}
}

var _ execution.Backend = (*Backend)(nil)
