// Package config loads engine configuration from the environment (.env via
// godotenv) and validates thresholds before any cycle runs. Malformed
// configuration is fatal at startup, never discovered mid-session.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Trading modes.
const (
	ModePaper = "paper"
	ModeReal  = "real"
)

// Fill models for the simulated backtest backend.
const (
	FillImmediate = "immediate"
	FillNextTick  = "next_tick"
)

// Brokerage endpoints per mode.
const (
	paperBaseURL = "https://openapivts.koreainvestment.com:29443"
	paperWSURL   = "ws://ops.koreainvestment.com:31000"
	realBaseURL  = "https://openapi.koreainvestment.com:9443"
	realWSURL    = "ws://ops.koreainvestment.com:21000"
)

// Config is the full engine configuration.
type Config struct {
	// Mode and brokerage access
	Mode      string // paper | real
	AppKey    string
	AppSecret string
	AccountNo string
	BaseURL   string
	WSURL     string

	// Storage
	PostgresDSN   string
	ClickhouseDSN string

	// Universe
	Watchlist []string // static 6-digit KRX codes
	HedgeCode string   // designated inverse-hedge instrument
	PoolTopN  int      // volume-leader pool size; 0 disables
	PoolRefreshSec int

	// Signal engine
	EntryThreshold  float64
	ChangeNorm      float64
	WeightChange    float64
	WeightOpenGain  float64
	WeightProximity float64
	WeightVolume    float64
	MinPrice        float64
	MinVolume       int64
	MinChangeRate   float64
	MaxChangeRate   float64

	// Regime filter
	BreadthBearThreshold float64

	// Position risk
	TakeProfitPct      float64
	StopPct            float64
	TrailPct           float64
	HedgeTakeProfitPct float64
	HedgeStopPct       float64
	HedgeTrailPct      float64
	HedgeMaxHold       time.Duration
	MaxPositions       int
	MaxHedgePositions  int
	CooldownSec        int

	// Budgets
	StartingEquity      float64
	PerInstrumentBudget float64
	TotalBudget         float64
	MaxOrderNotional    float64

	// Day risk governor (percent of starting equity)
	DailyTargetPct            float64
	DailyMaxLossPct           float64
	DailySoftCutPct           float64
	SoftCutIncludesUnrealized bool

	// Fees
	CommissionRate  float64 // per side
	SellTaxSlippage float64 // sells only

	// Execution
	StuckOrderCycles int
	FillModel        string

	// Session (KST wall clock, HH:MM)
	SessionOpen  string
	SessionClose string
	CutoffTime   string
	TickInterval time.Duration

	// Alerts
	AlertDedupSec int
	WebhookURL    string

	// HTTP
	MetricsAddr string
	ServerAddr  string
}

// Load reads configuration from the environment, loading .env first when
// present. A missing .env file is not an error.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envPath, err)
		}
	} else {
		_ = godotenv.Load()
	}

	env := &envParser{}
	mode := strings.ToLower(env.Str("TRADING_MODE", ModePaper))

	cfg := &Config{
		Mode: mode,

		PostgresDSN:   env.Str("POSTGRES_DSN", ""),
		ClickhouseDSN: env.Str("CLICKHOUSE_DSN", ""),

		Watchlist:      splitCodes(env.Str("WATCHLIST", "")),
		HedgeCode:      env.Str("HEDGE_CODE", "114800"),
		PoolTopN:       env.Int("POOL_TOP_N", 30),
		PoolRefreshSec: env.Int("POOL_REFRESH_SEC", 300),

		EntryThreshold:  env.Float("ENTRY_THRESHOLD", 0.8),
		ChangeNorm:      env.Float("CHANGE_NORM", 0.05),
		WeightChange:    env.Float("WEIGHT_CHANGE", 0.4),
		WeightOpenGain:  env.Float("WEIGHT_OPEN_GAIN", 0.2),
		WeightProximity: env.Float("WEIGHT_PROXIMITY", 0.2),
		WeightVolume:    env.Float("WEIGHT_VOLUME", 0.2),
		MinPrice:        env.Float("MIN_PRICE", 1000),
		MinVolume:       int64(env.Int("MIN_VOLUME", 100000)),
		MinChangeRate:   env.Float("MIN_CHANGE_RATE", 0.5),
		MaxChangeRate:   env.Float("MAX_CHANGE_RATE", 10.0),

		BreadthBearThreshold: env.Float("BREADTH_BEAR_THRESHOLD", -0.5),

		TakeProfitPct:      env.Float("TAKE_PROFIT_PCT", 1.5),
		StopPct:            env.Float("STOP_PCT", 1.0),
		TrailPct:           env.Float("TRAIL_PCT", 0.7),
		HedgeTakeProfitPct: env.Float("HEDGE_TAKE_PROFIT_PCT", 1.0),
		HedgeStopPct:       env.Float("HEDGE_STOP_PCT", 0.5),
		HedgeTrailPct:      env.Float("HEDGE_TRAIL_PCT", 0.3),
		HedgeMaxHold:       time.Duration(env.Int("HEDGE_MAX_HOLD_MIN", 120)) * time.Minute,
		MaxPositions:       env.Int("MAX_POSITIONS", 5),
		MaxHedgePositions:  env.Int("MAX_HEDGE_POSITIONS", 1),
		CooldownSec:        env.Int("COOLDOWN_SEC", 600),

		StartingEquity:      env.Float("STARTING_EQUITY", 10000000),
		PerInstrumentBudget: env.Float("PER_INSTRUMENT_BUDGET", 2000000),
		TotalBudget:         env.Float("TOTAL_BUDGET", 10000000),
		MaxOrderNotional:    env.Float("MAX_ORDER_NOTIONAL", 5000000),

		DailyTargetPct:            env.Float("DAILY_TARGET_PCT", 1.0),
		DailyMaxLossPct:           env.Float("DAILY_MAX_LOSS_PCT", -3.0),
		DailySoftCutPct:           env.Float("DAILY_SOFT_CUT_PCT", -2.0),
		SoftCutIncludesUnrealized: env.Bool("SOFT_CUT_INCLUDES_UNREALIZED", false),

		CommissionRate:  env.Float("COMMISSION_RATE", 0.00015),
		SellTaxSlippage: env.Float("SELL_TAX_SLIPPAGE", 0.002),

		StuckOrderCycles: env.Int("STUCK_ORDER_CYCLES", 3),
		FillModel:        env.Str("FILL_MODEL", FillImmediate),

		SessionOpen:  env.Str("SESSION_OPEN", "09:00"),
		SessionClose: env.Str("SESSION_CLOSE", "15:30"),
		CutoffTime:   env.Str("CUTOFF_TIME", "15:15"),
		TickInterval: time.Duration(env.Int("TICK_INTERVAL_SEC", 10)) * time.Second,

		AlertDedupSec: env.Int("ALERT_DEDUP_SEC", 300),
		WebhookURL:    env.Str("ALERT_WEBHOOK_URL", ""),

		MetricsAddr: env.Str("METRICS_ADDR", ":9090"),
		ServerAddr:  env.Str("SERVER_ADDR", ":8080"),
	}

	switch mode {
	case ModePaper:
		cfg.AppKey = env.Str("PAPER_API_KEY", "")
		cfg.AppSecret = env.Str("PAPER_API_SECRET", "")
		cfg.AccountNo = env.Str("PAPER_ACCOUNT_NUMBER", "")
		cfg.BaseURL = env.Str("BROKER_BASE_URL", paperBaseURL)
		cfg.WSURL = env.Str("BROKER_WS_URL", paperWSURL)
	case ModeReal:
		cfg.AppKey = env.Str("REAL_API_KEY", "")
		cfg.AppSecret = env.Str("REAL_API_SECRET", "")
		cfg.AccountNo = env.Str("REAL_ACCOUNT_NUMBER", "")
		cfg.BaseURL = env.Str("BROKER_BASE_URL", realBaseURL)
		cfg.WSURL = env.Str("BROKER_WS_URL", realWSURL)
	}

	if err := env.Err(); err != nil {
		return nil, fmt.Errorf("malformed environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects malformed or unsafe thresholds.
func (c *Config) Validate() error {
	if c.Mode != ModePaper && c.Mode != ModeReal {
		return fmt.Errorf("invalid trading mode %q (want paper or real)", c.Mode)
	}
	if c.FillModel != FillImmediate && c.FillModel != FillNextTick {
		return fmt.Errorf("invalid fill model %q (want immediate or next_tick)", c.FillModel)
	}

	weightSum := c.WeightChange + c.WeightOpenGain + c.WeightProximity + c.WeightVolume
	if weightSum < 0.999 || weightSum > 1.001 {
		return fmt.Errorf("score weights must sum to 1, got %g", weightSum)
	}
	if c.EntryThreshold < 0 || c.EntryThreshold > 1 {
		return fmt.Errorf("entry threshold %g outside [0,1]", c.EntryThreshold)
	}
	if c.ChangeNorm <= 0 {
		return fmt.Errorf("change norm must be positive, got %g", c.ChangeNorm)
	}
	if c.MinChangeRate >= c.MaxChangeRate {
		return fmt.Errorf("min change rate %g must be below max change rate %g",
			c.MinChangeRate, c.MaxChangeRate)
	}

	if c.TakeProfitPct <= 0 || c.StopPct <= 0 || c.TrailPct <= 0 {
		return fmt.Errorf("take-profit/stop/trail percents must be positive")
	}
	if c.HedgeTakeProfitPct <= 0 || c.HedgeStopPct <= 0 || c.HedgeTrailPct <= 0 {
		return fmt.Errorf("hedge take-profit/stop/trail percents must be positive")
	}
	if c.MaxPositions <= 0 {
		return fmt.Errorf("max positions must be positive, got %d", c.MaxPositions)
	}
	if c.CooldownSec < 0 {
		return fmt.Errorf("cooldown seconds must be non-negative, got %d", c.CooldownSec)
	}

	if c.StartingEquity <= 0 || c.PerInstrumentBudget <= 0 || c.TotalBudget <= 0 {
		return fmt.Errorf("equity and budgets must be positive")
	}

	if c.DailyTargetPct <= 0 {
		return fmt.Errorf("daily target percent must be positive, got %g", c.DailyTargetPct)
	}
	if c.DailyMaxLossPct >= 0 {
		return fmt.Errorf("daily max-loss percent must be negative, got %g", c.DailyMaxLossPct)
	}
	if c.DailySoftCutPct >= 0 {
		return fmt.Errorf("daily soft-cut percent must be negative, got %g", c.DailySoftCutPct)
	}
	if c.DailySoftCutPct <= c.DailyMaxLossPct {
		return fmt.Errorf("soft cut %g must sit above max loss %g",
			c.DailySoftCutPct, c.DailyMaxLossPct)
	}

	if c.CommissionRate < 0 || c.SellTaxSlippage < 0 {
		return fmt.Errorf("fee rates must be non-negative")
	}
	if c.StuckOrderCycles < 0 {
		return fmt.Errorf("stuck order cycles must be non-negative, got %d", c.StuckOrderCycles)
	}

	for _, hm := range []string{c.SessionOpen, c.SessionClose, c.CutoffTime} {
		if _, _, err := ParseClock(hm); err != nil {
			return err
		}
	}
	openMin := clockMinutes(c.SessionOpen)
	closeMin := clockMinutes(c.SessionClose)
	cutoffMin := clockMinutes(c.CutoffTime)
	if openMin >= closeMin {
		return fmt.Errorf("session open %s must precede close %s", c.SessionOpen, c.SessionClose)
	}
	if cutoffMin <= openMin || cutoffMin > closeMin {
		return fmt.Errorf("cutoff %s must fall inside the session %s-%s",
			c.CutoffTime, c.SessionOpen, c.SessionClose)
	}

	for _, code := range c.Watchlist {
		if len(code) != 6 {
			return fmt.Errorf("watchlist code %q is not a 6-digit KRX code", code)
		}
	}
	if c.HedgeCode != "" && len(c.HedgeCode) != 6 {
		return fmt.Errorf("hedge code %q is not a 6-digit KRX code", c.HedgeCode)
	}

	return nil
}

// ParseClock parses an HH:MM wall-clock string.
func ParseClock(hm string) (hour, minute int, err error) {
	parts := strings.SplitN(hm, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock time %q (want HH:MM)", hm)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid clock time %q (want HH:MM)", hm)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid clock time %q (want HH:MM)", hm)
	}
	return hour, minute, nil
}

func clockMinutes(hm string) int {
	h, m, _ := ParseClock(hm)
	return h*60 + m
}

func splitCodes(s string) []string {
	if s == "" {
		return nil
	}
	var codes []string
	for _, part := range strings.Split(s, ",") {
		code := strings.TrimSpace(part)
		if code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

// envParser reads typed environment values and collects every malformed one
// so Load fails on all of them at once. A threshold that does not parse must
// never silently fall back to its default.
type envParser struct {
	errs []error
}

func (e *envParser) Str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (e *envParser) Int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s=%q is not an integer", key, v))
		return def
	}
	return n
}

func (e *envParser) Float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s=%q is not a number", key, v))
		return def
	}
	return f
}

func (e *envParser) Bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s=%q is not a boolean", key, v))
		return def
	}
	return b
}

func (e *envParser) Err() error {
	return errors.Join(e.errs...)
}
