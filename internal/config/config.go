// Package config loads the engine's configuration surface from
// environment variables, with a .env file loaded first if present,
// into one immutable value read once at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the engine's complete, immutable runtime configuration.
// It is loaded once in main() and passed down by value/pointer; no
// component mutates it.
type Config struct {
	LogLevel string
	DataDir  string
	Port     int

	Exchange  ExchangeConfig
	Advisory  AdvisoryConfig
	Universe  UniverseConfig
	Cadence   CadenceConfig
	Risk      RiskConfig
	Allocation AllocationConfig
}

type ExchangeConfig struct {
	Name              string // "binance", "bybit", "simulated"
	APIKey            string
	APISecret         string
	BaseURL           string
	RateLimitPerSec   int
	MaxRetries        int
	RequestTimeoutSec int
}

type AdvisoryConfig struct {
	Provider      string
	PrimaryModel  string
	FallbackModel string
	APIKey        string
	Location      string
	TimeoutSec    int
}

type UniverseConfig struct {
	TradingPairs  []string
	BaseCurrency  string
}

type CadenceConfig struct {
	DecisionIntervalMinutes int
}

type RiskConfig struct {
	RiskLevel             string // LOW | MEDIUM | HIGH
	SimulationMode        bool
	ThresholdBuy          float64
	ThresholdSell         float64
	CooldownWindow        time.Duration
	SameSideStackDelta    float64
	BearMarketHardRiskMul float64
	BearMarketHardMaxPct  float64
	BearMarketHardMaxTrades int
	SlippageBps           float64
	FeeBps                float64
}

type AllocationConfig struct {
	TargetQuoteAllocationPct float64
	MinQuoteReserveAbsolute  float64
	MinTradeAmount           float64
	MaxPositionSizePct       float64
	CapitalReserveRatio      float64
	MinTradeAllocation       float64
	MaxSingleTradeRatio      float64
	AllocationPowerFactor    float64
	MinActionableConfidence  float64
	MomentumThreshold        float64
}

// Load reads .env (if present) then the environment, applying the
// documented defaults below.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DataDir:  getEnv("DATA_DIR", "./data"),
		Port:     getEnvInt("PORT", 8090),

		Exchange: ExchangeConfig{
			Name:              getEnv("EXCHANGE", "simulated"),
			APIKey:            getEnv("API_KEY", ""),
			APISecret:         getEnv("API_SECRET", ""),
			BaseURL:           getEnv("BASE_URL", ""),
			RateLimitPerSec:   getEnvInt("RATE_LIMIT_PER_SEC", 10),
			MaxRetries:        getEnvInt("MAX_RETRIES", 3),
			RequestTimeoutSec: getEnvInt("REQUEST_TIMEOUT_SEC", 30),
		},
		Advisory: AdvisoryConfig{
			Provider:      getEnv("ADVISORY_PROVIDER", "localfunc"),
			PrimaryModel:  getEnv("PRIMARY_MODEL", ""),
			FallbackModel: getEnv("FALLBACK_MODEL", ""),
			APIKey:        getEnv("ADVISORY_API_KEY_OR_CREDENTIALS_PATH", ""),
			Location:      getEnv("ADVISORY_LOCATION", ""),
			TimeoutSec:    getEnvInt("ADVISORY_TIMEOUT_SEC", 20),
		},
		Universe: UniverseConfig{
			TradingPairs: getEnvList("TRADING_PAIRS", []string{"BTC-EUR", "ETH-EUR"}),
			BaseCurrency: getEnv("BASE_CURRENCY", "EUR"),
		},
		Cadence: CadenceConfig{
			DecisionIntervalMinutes: getEnvInt("DECISION_INTERVAL_MINUTES", 60),
		},
		Risk: RiskConfig{
			RiskLevel:               getEnv("RISK_LEVEL", "MEDIUM"),
			SimulationMode:          getEnvBool("SIMULATION_MODE", true),
			ThresholdBuy:            getEnvFloat("THRESHOLD_BUY", 55),
			ThresholdSell:           getEnvFloat("THRESHOLD_SELL", 55),
			CooldownWindow:          time.Duration(getEnvInt("COOLDOWN_WINDOW_MINUTES", 30)) * time.Minute,
			SameSideStackDelta:      getEnvFloat("SAME_SIDE_STACK_DELTA", 15),
			BearMarketHardRiskMul:   getEnvFloat("BEAR_MARKET_HARD_RISK_MULTIPLIER", 0.25),
			BearMarketHardMaxPct:    getEnvFloat("BEAR_MARKET_HARD_MAX_PCT", 0.02),
			BearMarketHardMaxTrades: getEnvInt("BEAR_MARKET_HARD_MAX_TRADES", 3),
			SlippageBps:             getEnvFloat("SIMULATION_SLIPPAGE_BPS", 5),
			FeeBps:                  getEnvFloat("SIMULATION_FEE_BPS", 10),
		},
		Allocation: AllocationConfig{
			TargetQuoteAllocationPct: getEnvFloat("TARGET_QUOTE_ALLOCATION_PCT", 0.3),
			MinQuoteReserveAbsolute:  getEnvFloat("MIN_QUOTE_RESERVE_ABSOLUTE", 100),
			MinTradeAmount:           getEnvFloat("MIN_TRADE_AMOUNT", 10),
			MaxPositionSizePct:       getEnvFloat("MAX_POSITION_SIZE_PCT", 0.3),
			CapitalReserveRatio:      getEnvFloat("CAPITAL_RESERVE_RATIO", 0.2),
			MinTradeAllocation:       getEnvFloat("MIN_TRADE_ALLOCATION", 50),
			MaxSingleTradeRatio:      getEnvFloat("MAX_SINGLE_TRADE_RATIO", 0.6),
			AllocationPowerFactor:    getEnvFloat("ALLOCATION_POWER_FACTOR", 1.2),
			MinActionableConfidence:  getEnvFloat("MIN_ACTIONABLE_CONFIDENCE", 50),
			MomentumThreshold:        getEnvFloat("MOMENTUM_THRESHOLD_PCT", 3),
		},
	}

	if len(cfg.Universe.TradingPairs) == 0 {
		return nil, fmt.Errorf("config: trading_pairs must not be empty")
	}
	if cfg.Cadence.DecisionIntervalMinutes <= 0 {
		return nil, fmt.Errorf("config: decision_interval_minutes must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
