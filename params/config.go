package params

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type API struct {
	// Addr is the listen address for the REST/WebSocket server.
	Addr string
	// AllowedOrigins is the CORS allow-list. "*" during development.
	AllowedOrigins []string
}

type Storage struct {
	// DBPath is the Pebble database directory. Empty disables persistence.
	DBPath string
	// JournalPath is the append-only operation log. Empty disables it.
	JournalPath string
}

type Market struct {
	// Settlement is the quote asset every market trades against.
	Settlement string
	// Assets are the tradable tickers registered at startup.
	Assets []string
}

type Config struct {
	API     API
	Storage Storage
	Market  Market
	LogFile string
}

func Default() Config {
	return Config{
		API: API{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		Storage: Storage{
			DBPath:      "data/tokendex",
			JournalPath: "data/journal.log",
		},
		Market: Market{
			Settlement: "DAI",
			Assets:     []string{"BAT", "REP", "ZRX"},
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

	if addr := os.Getenv("API_ADDR"); addr != "" {
		cfg.API.Addr = addr
	}
	if origins := os.Getenv("API_ALLOWED_ORIGINS"); origins != "" {
		cfg.API.AllowedOrigins = splitList(origins)
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		cfg.Storage.DBPath = path
	}
	if path := os.Getenv("JOURNAL_PATH"); path != "" {
		cfg.Storage.JournalPath = path
	}
	if path := os.Getenv("LOG_FILE"); path != "" {
		cfg.LogFile = path
	}
	if ticker := os.Getenv("SETTLEMENT_TICKER"); ticker != "" {
		cfg.Market.Settlement = ticker
	}
	if tickers := os.Getenv("ASSET_TICKERS"); tickers != "" {
		cfg.Market.Assets = splitList(tickers)
	}

	return cfg
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
