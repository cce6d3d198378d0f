package replay

import (
	"context"
	"fmt"
	"log"

	"krx-scalp-lab/internal/alert"
	"krx-scalp-lab/internal/backtest"
	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/engine"
	"krx-scalp-lab/internal/execution"
	"krx-scalp-lab/internal/storage"
)

// Runner replays one recorded trading day through the engine and collects
// its decision log.
type Runner struct {
	params         engine.Params
	universe       map[string]*domain.Instrument
	logStore       storage.SnapshotLogStore
	startingEquity float64
	logger         *log.Logger
}

// NewRunner creates a replay runner.
func NewRunner(
	params engine.Params,
	universe map[string]*domain.Instrument,
	logStore storage.SnapshotLogStore,
	startingEquity float64,
	logger *log.Logger,
) *Runner {
	return &Runner{
		params:         params,
		universe:       universe,
		logStore:       logStore,
		startingEquity: startingEquity,
		logger:         logger,
	}
}

// Run replays the recorded snapshots for one trading date and returns the
// resulting decision log. Fills are simulated at the recorded prices, so the
// log depends only on the stored data.
func (r *Runner) Run(ctx context.Context, tradeDate string) (*domain.DecisionLog, error) {
	rows, err := r.logStore.GetByDate(ctx, tradeDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot log: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no recorded snapshots for %s", tradeDate)
	}

	backend, err := backtest.NewSimBackend(backtest.FillImmediate)
	if err != nil {
		return nil, err
	}
	orch := execution.New(backend, 0, nil)
	emitter := alert.NewEmitter(0, r.logger)
	driver, err := engine.NewDriver(r.params, r.universe, orch, emitter, nil, r.logger)
	if err != nil {
		return nil, err
	}

	day := domain.DayAccount{TradeDate: tradeDate, StartingEquity: r.startingEquity}
	decisions := &domain.DecisionLog{}

	for _, batch := range Batches(rows) {
		backend.SetPrices(replayPrices(batch))

		var result engine.CycleResult
		day, result, err = driver.Cycle(ctx, day, batch)
		if err != nil {
			return nil, fmt.Errorf("replay cycle failed: %w", err)
		}
		decisions.Intents = append(decisions.Intents, result.Intents...)
	}

	decisions.FinalDay = day
	return decisions, nil
}

func replayPrices(batch *domain.SnapshotBatch) map[string]float64 {
	last := make(map[string]float64, len(batch.Snapshots))
	for _, s := range batch.Snapshots {
		if s.Valid() {
			last[s.Code] = s.Last
		}
	}
	return last
}
