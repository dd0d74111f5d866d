package params

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Node holds the daemon's operational settings.
type Node struct {
	DataDir     string // ledger store + default log/journal location
	APIAddr     string // REST/WebSocket listen address
	LogFile     string // zap tee target
	JournalPath string // JSONL settlement journal
}

// Gossip holds the optional settlement-event fanout settings.
type Gossip struct {
	Enabled    bool
	ListenAddr string   // libp2p multiaddr
	Bootstrap  []string // peers to dial at startup
}

// Attestation holds the BLS settlement-attestation settings. The seed is
// hashed to derive a deterministic key, so restarts keep the same identity.
type Attestation struct {
	Enabled bool
	Seed    string
}

type Config struct {
	Node        Node
	Gossip      Gossip
	Attestation Attestation
}

func Default() Config {
	return Config{
		Node: Node{
			DataDir:     "data",
			APIAddr:     ":8080",
			LogFile:     "data/escrowd.log",
			JournalPath: "data/settlements.jsonl",
		},
		Gossip: Gossip{
			Enabled:    false,
			ListenAddr: "/ip4/0.0.0.0/tcp/9000",
		},
		Attestation: Attestation{
			Enabled: true,
			Seed:    "escrowd-devnet-attester",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if it exists) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Node.DataDir = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Node.APIAddr = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}
	if v := os.Getenv("JOURNAL_PATH"); v != "" {
		cfg.Node.JournalPath = v
	}

	if v := os.Getenv("GOSSIP_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Gossip.Enabled = b
		}
	}
	if v := os.Getenv("GOSSIP_LISTEN"); v != "" {
		cfg.Gossip.ListenAddr = v
	}
	if v := os.Getenv("GOSSIP_BOOTSTRAP"); v != "" {
		// Comma-separated multiaddrs
		cfg.Gossip.Bootstrap = strings.Split(v, ",")
	}

	if v := os.Getenv("ATTESTATION_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Attestation.Enabled = b
		}
	}
	if v := os.Getenv("ATTESTATION_SEED"); v != "" {
		cfg.Attestation.Seed = v
	}

	return cfg
}
