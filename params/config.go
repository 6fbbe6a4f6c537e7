package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Simulator struct {
	// TickInterval is how often the market movement simulator runs.
	TickInterval time.Duration
	// MaxMovePerTickBps bounds each symbol's random move per tick.
	MaxMovePerTickBps int64
	// Seed makes price action reproducible when non-zero.
	Seed int64
}

type API struct {
	Addr           string
	AllowedOrigins []string
	// OrderRatePerSec / OrderBurst rate-limit order submission per client IP.
	OrderRatePerSec float64
	OrderBurst      int
}

type Config struct {
	Simulator Simulator
	API       API
	LogLevel  string
	LogFile   string // empty = console only
	TapeDepth int
}

func Default() Config {
	return Config{
		Simulator: Simulator{
			TickInterval:      2 * time.Second,
			MaxMovePerTickBps: 75, // ±0.75% per tick
		},
		API: API{
			Addr:            ":8080",
			AllowedOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
			OrderRatePerSec: 10,
			OrderBurst:      20,
		},
		LogLevel:  "info",
		TapeDepth: 50,
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if v := os.Getenv("SIM_TICK_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Simulator.TickInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("SIM_MAX_MOVE_BPS"); v != "" {
		if bps, err := strconv.ParseInt(v, 10, 64); err == nil && bps > 0 {
			cfg.Simulator.MaxMovePerTickBps = bps
		}
	}
	if v := os.Getenv("SIM_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Simulator.Seed = seed
		}
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.API.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("TAPE_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TapeDepth = n
		}
	}

	return cfg
}
