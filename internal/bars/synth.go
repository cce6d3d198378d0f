// Package bars expands daily OHLC bars into short intraday tick sequences
// for backtesting.
package bars

import (
	"fmt"
	"time"

	"krx-scalp-lab/internal/domain"
)

// tickClock holds the synthetic intraday observation times, KST.
var tickClock = [...]struct{ hour, minute int }{
	{9, 0},
	{10, 30},
	{13, 0},
	{15, 20},
}

// TicksPerDay is the number of synthetic ticks one daily bar expands to.
const TicksPerDay = len(tickClock)

// Tick is one synthetic intraday observation derived from a daily bar.
type Tick struct {
	TimestampMs int64
	Snapshot    domain.MarketSnapshot
}

// Synthesize expands a daily bar into 4 ticks walking the bar's price path:
// open, low, high, close on up days (close >= open), open, high, low, close
// on down days. Cumulative volume grows evenly across ticks; the change rate
// per tick is derived from the bar's previous close when known.
func Synthesize(bar *domain.DailyBar, loc *time.Location) ([]Tick, error) {
	if bar.Open <= 0 || bar.Close <= 0 {
		return nil, fmt.Errorf("bar %s %s has no usable prices", bar.Code, bar.TradeDate)
	}

	day, err := time.ParseInLocation("20060102", bar.TradeDate, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trade date %q: %w", bar.TradeDate, err)
	}

	path := []float64{bar.Open, bar.Low, bar.High, bar.Close}
	if bar.Close < bar.Open {
		path = []float64{bar.Open, bar.High, bar.Low, bar.Close}
	}

	ticks := make([]Tick, 0, TicksPerDay)
	high, low := bar.Open, bar.Open
	for i, price := range path {
		if price > high {
			high = price
		}
		if price < low {
			low = price
		}

		var changeRate float64
		if bar.PrevClose > 0 {
			changeRate = (price - bar.PrevClose) / bar.PrevClose * 100
		}

		at := time.Date(day.Year(), day.Month(), day.Day(),
			tickClock[i].hour, tickClock[i].minute, 0, 0, loc)

		ticks = append(ticks, Tick{
			TimestampMs: at.UnixMilli(),
			Snapshot: domain.MarketSnapshot{
				Code:        bar.Code,
				Open:        bar.Open,
				Last:        price,
				High:        high,
				Low:         low,
				Volume:      bar.Volume * int64(i+1) / int64(TicksPerDay),
				ChangeRate:  changeRate,
				TimestampMs: at.UnixMilli(),
			},
		})
	}
	return ticks, nil
}
