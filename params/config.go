package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Venue configures one simulated quote source.
type Venue struct {
	Name      string
	BasePrice decimal.Decimal
	Fee       decimal.Decimal // fraction, e.g. 0.0025
	Jitter    float64         // max relative price deviation
	Latency   time.Duration
}

type Scheduler struct {
	Workers    int           // concurrency ceiling C
	MaxRetries int           // whole-run retries R on infra faults
	RetryBase  time.Duration // doubles per retry
}

type Gate struct {
	MaxAttempts int
	Delay       time.Duration // fixed inter-attempt spacing
}

type Pipeline struct {
	RouteTimeout time.Duration
	BuildDelay   time.Duration
}

type Settle struct {
	MinLatency time.Duration
	MaxLatency time.Duration
}

type API struct {
	Addr string
}

type Store struct {
	// Path to the pebble database; empty selects the in-memory store.
	Path string
}

type Config struct {
	Venues    []Venue
	Scheduler Scheduler
	Gate      Gate
	Pipeline  Pipeline
	Settle    Settle
	API       API
	Store     Store
}

func Default() Config {
	return Config{
		Venues: []Venue{
			// First venue wins effective-price ties.
			{Name: "raydium", BasePrice: decimal.NewFromInt(100), Fee: decimal.NewFromFloat(0.0025), Jitter: 0.05, Latency: 150 * time.Millisecond},
			{Name: "orca", BasePrice: decimal.NewFromInt(100), Fee: decimal.NewFromFloat(0.0030), Jitter: 0.05, Latency: 200 * time.Millisecond},
		},
		Scheduler: Scheduler{
			Workers:    10,
			MaxRetries: 3,
			RetryBase:  500 * time.Millisecond,
		},
		Gate: Gate{
			MaxAttempts: 10,
			Delay:       2 * time.Second,
		},
		Pipeline: Pipeline{
			RouteTimeout: 5 * time.Second,
			BuildDelay:   500 * time.Millisecond,
		},
		Settle: Settle{
			MinLatency: 2 * time.Second,
			MaxLatency: 3 * time.Second,
		},
		API:   API{Addr: ":8080"},
		Store: Store{Path: ""},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Scheduler.Workers = envInt("SCHEDULER_WORKERS", cfg.Scheduler.Workers)
	cfg.Scheduler.MaxRetries = envInt("SCHEDULER_MAX_RETRIES", cfg.Scheduler.MaxRetries)
	cfg.Scheduler.RetryBase = envDurationMs("SCHEDULER_RETRY_BASE_MS", cfg.Scheduler.RetryBase)

	cfg.Gate.MaxAttempts = envInt("GATE_MAX_ATTEMPTS", cfg.Gate.MaxAttempts)
	cfg.Gate.Delay = envDurationMs("GATE_DELAY_MS", cfg.Gate.Delay)

	cfg.Pipeline.RouteTimeout = envDurationMs("ROUTE_TIMEOUT_MS", cfg.Pipeline.RouteTimeout)
	cfg.Pipeline.BuildDelay = envDurationMs("BUILD_DELAY_MS", cfg.Pipeline.BuildDelay)

	cfg.Settle.MinLatency = envDurationMs("SETTLE_MIN_LATENCY_MS", cfg.Settle.MinLatency)
	cfg.Settle.MaxLatency = envDurationMs("SETTLE_MAX_LATENCY_MS", cfg.Settle.MaxLatency)

	if addr := os.Getenv("API_ADDR"); addr != "" {
		cfg.API.Addr = addr
	}
	if path := os.Getenv("STORE_PATH"); path != "" {
		cfg.Store.Path = path
	}

	return cfg
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDurationMs(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}
