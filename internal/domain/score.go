package domain

// Score is the momentum ranking signal for one instrument in one cycle.
// Recomputed every cycle; never persisted.
type Score struct {
	Code  string  // instrument code
	Value float64 // composite momentum score in [0,1]

	// Contributing factors, each normalized to [0,1].
	OpenGain   float64 // gain-from-open ratio, normalized
	ChangeRate float64 // change vs previous close, normalized
	Proximity  float64 // closeness of last price to day high
	VolumeRank float64 // volume-rank percentile within the cycle universe
}
