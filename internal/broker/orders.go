package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"krx-scalp-lab/internal/domain"
)

// Transaction IDs for cash orders. The client converts them to the V-prefix
// paper variants automatically.
const (
	trOrderBuy     = "TTTC0012U"
	trOrderSell    = "TTTC0011U"
	trOrderInquire = "TTTC0081R"
)

const ordDvsnMarket = "01"

// OrderAck is the brokerage acknowledgement of an order submission.
type OrderAck struct {
	OrderNo string
	Message string
}

// SubmitOrder places a market order and returns the brokerage order number.
// A non-zero rt_cd is a rejection, not an error.
func (c *Client) SubmitOrder(ctx context.Context, side domain.OrderSide, code string, quantity int64) (OrderAck, bool, error) {
	trID := trOrderBuy
	if side == domain.SideSell {
		trID = trOrderSell
	}

	body := map[string]string{
		"CANO":            c.cano,
		"ACNT_PRDT_CD":    c.acntPrdtCd,
		"PDNO":            code,
		"ORD_DVSN":        ordDvsnMarket,
		"ORD_QTY":         fmt.Sprintf("%d", quantity),
		"ORD_UNPR":        "0",
		"EXCG_ID_DVSN_CD": "KRX",
	}

	resp, err := c.post(ctx, "/uapi/domestic-stock/v1/trading/order-cash", trID, body)
	if err != nil {
		return OrderAck{}, false, err
	}
	if !resp.success() {
		return OrderAck{Message: fmt.Sprintf("[%s] %s", resp.MsgCd, resp.Msg1)}, false, nil
	}

	var o struct {
		OrderNo string `json:"ODNO"`
	}
	if err := json.Unmarshal(resp.Output, &o); err != nil {
		return OrderAck{}, false, fmt.Errorf("failed to decode order response: %w", err)
	}
	return OrderAck{OrderNo: o.OrderNo, Message: resp.Msg1}, true, nil
}

// Execution is the fill state of one submitted order.
type Execution struct {
	OrderNo     string
	OrderedQty  int64
	FilledQty   int64
	AvgPrice    float64
	CancelledQt int64
}

// InquireOrder looks up today's execution state for one order number.
// Returns found=false when the broker has no record of it yet.
func (c *Client) InquireOrder(ctx context.Context, orderNo string) (Execution, bool, error) {
	today := time.Now().Format("20060102")
	params := url.Values{}
	params.Set("CANO", c.cano)
	params.Set("ACNT_PRDT_CD", c.acntPrdtCd)
	params.Set("INQR_STRT_DT", today)
	params.Set("INQR_END_DT", today)
	params.Set("SLL_BUY_DVSN_CD", "00")
	params.Set("PDNO", "")
	params.Set("CCLD_DVSN", "00")
	params.Set("INQR_DVSN", "00")
	params.Set("INQR_DVSN_1", "")
	params.Set("INQR_DVSN_3", "00")
	params.Set("ORD_GNO_BRNO", "")
	params.Set("ODNO", orderNo)
	params.Set("CTX_AREA_FK100", "")
	params.Set("CTX_AREA_NK100", "")
	params.Set("EXCG_ID_DVSN_CD", "KRX")

	resp, err := c.get(ctx, "/uapi/domestic-stock/v1/trading/inquire-daily-ccld", trOrderInquire, params)
	if err != nil {
		return Execution{}, false, err
	}
	if !resp.success() {
		return Execution{}, false, resp.err("order inquiry " + orderNo)
	}

	var rows []struct {
		OrderNo      string `json:"odno"`
		OrderedQty   string `json:"ord_qty"`
		FilledQty    string `json:"tot_ccld_qty"`
		AvgPrice     string `json:"avg_prvs"`
		CancelledQty string `json:"cncl_cfrm_qty"`
	}
	if err := json.Unmarshal(resp.Output1, &rows); err != nil {
		return Execution{}, false, fmt.Errorf("failed to decode order inquiry: %w", err)
	}

	for _, r := range rows {
		if r.OrderNo != orderNo {
			continue
		}
		return Execution{
			OrderNo:     r.OrderNo,
			OrderedQty:  parseI(r.OrderedQty),
			FilledQty:   parseI(r.FilledQty),
			AvgPrice:    parseF(r.AvgPrice),
			CancelledQt: parseI(r.CancelledQty),
		}, true, nil
	}
	return Execution{}, false, nil
}
