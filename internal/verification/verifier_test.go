package verification

import (
	"strings"
	"testing"

	"krx-scalp-lab/internal/domain"
)

func sampleLog() *domain.DecisionLog {
	return &domain.DecisionLog{
		Intents: []*domain.OrderIntent{
			{Key: "k1", TradeDate: "20260102", CycleSeq: 1, Code: "005930",
				Side: domain.SideBuy, Quantity: 200, Price: 10000},
			{Key: "k2", TradeDate: "20260102", CycleSeq: 3, Code: "005930",
				Side: domain.SideSell, Quantity: 200, Reason: domain.ExitReasonTakeProfit, Price: 10200},
		},
		FinalDay: domain.DayAccount{
			TradeDate:        "20260102",
			StartingEquity:   10000000,
			RealizedGrossPnL: 40000,
			RealizedNetPnL:   35314,
			FeesPaid:         4686,
			TradesClosed:     1,
			PositionsOpened:  1,
			CycleCount:       4,
		},
	}
}

func TestCompare_EqualLogs(t *testing.T) {
	if diffs := Compare(sampleLog(), sampleLog(), 10); len(diffs) != 0 {
		t.Errorf("Equal logs reported %d divergences: %v", len(diffs), diffs)
	}
}

func TestCompare_ToleratesSubTolerancePnL(t *testing.T) {
	a, b := sampleLog(), sampleLog()
	b.FinalDay.RealizedNetPnL += 1e-10

	if diffs := Compare(a, b, 10); len(diffs) != 0 {
		t.Errorf("Sub-tolerance drift reported %d divergences: %v", len(diffs), diffs)
	}
}

func TestCompare_NamesTheDivergentField(t *testing.T) {
	a, b := sampleLog(), sampleLog()
	b.Intents[1].Quantity = 199
	b.FinalDay.RealizedNetPnL += 0.5

	diffs := Compare(a, b, 10)
	if len(diffs) != 2 {
		t.Fatalf("len(diffs) = %d, want 2: %v", len(diffs), diffs)
	}
	if diffs[0].Where != "intent[1]" || diffs[0].Field != "quantity" {
		t.Errorf("diffs[0] = %+v, want intent[1].quantity", diffs[0])
	}
	if diffs[1].Where != "final_day" || diffs[1].Field != "realized_net_pnl" {
		t.Errorf("diffs[1] = %+v, want final_day.realized_net_pnl", diffs[1])
	}
	if !strings.Contains(diffs[0].String(), "quantity") {
		t.Errorf("String() = %q", diffs[0].String())
	}
}

func TestCompare_LengthMismatch(t *testing.T) {
	a, b := sampleLog(), sampleLog()
	b.Intents = b.Intents[:1]

	diffs := Compare(a, b, 10)
	if len(diffs) == 0 {
		t.Fatal("Expected a divergence for differing intent counts")
	}
	if diffs[0].Where != "intents" || diffs[0].Field != "len" {
		t.Errorf("diffs[0] = %+v, want intents.len", diffs[0])
	}
}

func TestCompare_CapsReportedDivergences(t *testing.T) {
	a, b := sampleLog(), sampleLog()
	b.Intents[0].Quantity = 1
	b.Intents[0].Price = 1
	b.Intents[1].Quantity = 1
	b.FinalDay.TradesClosed = 9

	diffs := Compare(a, b, 2)
	if len(diffs) != 2 {
		t.Errorf("len(diffs) = %d, want the first 2", len(diffs))
	}
}

func TestCompare_UnlimitedWhenMaxZero(t *testing.T) {
	a, b := sampleLog(), sampleLog()
	b.Intents[0].Quantity = 1
	b.Intents[1].Quantity = 1
	b.FinalDay.TradesClosed = 9

	diffs := Compare(a, b, 0)
	if len(diffs) != 3 {
		t.Errorf("len(diffs) = %d, want 3 with no cap", len(diffs))
	}
}
