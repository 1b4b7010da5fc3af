package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Market struct {
	// Pair is the traded instrument, e.g. "BTCEUR".
	Pair string
	// BasePrecision is the number of fixed-point decimal digits used
	// to convert base amounts into quote amounts.
	BasePrecision int
}

type Engine struct {
	// ExpirySweep is the interval between periodic expired-order
	// sweeps.
	ExpirySweep time.Duration
	// SnapshotInterval is the interval between periodic book
	// snapshots. Zero disables the timer; a snapshot is still taken
	// on shutdown.
	SnapshotInterval time.Duration
	// QueueSize bounds the inbound request channel of the matching
	// worker.
	QueueSize int
}

type Node struct {
	ListenAddr string
	DataDir    string
	LogFile    string
}

type Config struct {
	Market Market
	Engine Engine
	Node   Node
}

func Default() Config {
	return Config{
		Market: Market{
			Pair:          "BTCEUR",
			BasePrecision: 8,
		},
		Engine: Engine{
			ExpirySweep:      time.Second,
			SnapshotInterval: time.Minute,
			QueueSize:        1024,
		},
		Node: Node{
			ListenAddr: ":8080",
			DataDir:    "data",
			LogFile:    "data/gekko.log",
		},
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

	if v := os.Getenv("GEKKO_PAIR"); v != "" {
		cfg.Market.Pair = v
	}
	if v := os.Getenv("GEKKO_BASE_PRECISION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Market.BasePrecision = n
		}
	}
	if v := os.Getenv("GEKKO_EXPIRY_SWEEP_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Engine.ExpirySweep = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("GEKKO_SNAPSHOT_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Engine.SnapshotInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("GEKKO_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Engine.QueueSize = n
		}
	}
	if v := os.Getenv("GEKKO_LISTEN_ADDR"); v != "" {
		cfg.Node.ListenAddr = v
	}
	if v := os.Getenv("GEKKO_DATA_DIR"); v != "" {
		cfg.Node.DataDir = v
	}
	if v := os.Getenv("GEKKO_LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}

	return cfg
}
