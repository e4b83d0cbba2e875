package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	Storage           Storage
	Telegram          Telegram
	Redis             Redis
	API               API
	Cache             Cache
	Jobs              Jobs
	GoogleDrive       GoogleDrive
	SessionExpiration time.Duration `env:"SESSION_EXPIRATION" envDefault:"30m"`
	TradesPerPage     int           `env:"TRADES_PER_PAGE" envDefault:"15"`
}

type Storage struct {
	// Backend selects the ledger store implementation: sqlite, postgres or csv.
	Backend  string `env:"STORAGE_BACKEND" envDefault:"sqlite"`
	SQLite   SQLite
	Postgres Postgres
	CSV      CSV
}

type SQLite struct {
	Path         string `env:"SQLITE_PATH" envDefault:"trade_tracker.db"`
	MigrationDir string `env:"SQLITE_MIGRATION_DIR" envDefault:"migrations/sqlite"`
}

type Postgres struct {
	Host            string `env:"PG_HOST" envDefault:"localhost"`
	Port            int    `env:"PG_PORT" envDefault:"5432"`
	DbName          string `env:"PG_DB_NAME" envDefault:"trade_tracker"`
	Password        string `env:"PG_PASSWORD" envDefault:""`
	User            string `env:"PG_USER" envDefault:"postgres"`
	MaxOpenConns    int    `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	ConnMaxLifetime int    `env:"PG_CONN_MAX_LIFETIME" envDefault:"300"`
	MaxIdleConns    int    `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxIdleTime int    `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"60"`
	MigrationDir    string `env:"PG_MIGRATION_DIR" envDefault:"migrations/postgres"`
}

type CSV struct {
	PortfolioFile string `env:"CSV_PORTFOLIO_FILE" envDefault:"chatgpt_portfolio_update.csv"`
	TradeLogFile  string `env:"CSV_TRADE_LOG_FILE" envDefault:"chatgpt_trade_log.csv"`
	WatchlistFile string `env:"CSV_WATCHLIST_FILE" envDefault:"watchlist.json"`
}

type Telegram struct {
	Token            string        `env:"TELEGRAM_TOKEN"`
	UpdTimeout       time.Duration `env:"TELEGRAM_UPD_TIMEOUT" envDefault:"10s"`
	FileLimitInBytes int           `env:"TELEGRAM_FILE_LIMIT_IN_BYTES" envDefault:"52428800"`
	// AllowedChatID restricts the bot to its owner's chat, 0 disables the check.
	AllowedChatID int64 `env:"TELEGRAM_ALLOWED_CHAT_ID" envDefault:"0"`
}

type Redis struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type API struct {
	Debug       bool          `env:"API_DEBUG" envDefault:"false"`
	Timeout     time.Duration `env:"API_TIMEOUT" envDefault:"10s"`
	YahooApi    YahooApi
	FootballApi FootballApi
}

type YahooApi struct {
	Url string `env:"YAHOO_API_URL" envDefault:"https://query1.finance.yahoo.com"`
}

type FootballApi struct {
	Url         string `env:"FOOTBALL_API_URL" envDefault:"https://api-football-v1.p.rapidapi.com/v3"`
	Host        string `env:"FOOTBALL_API_HOST" envDefault:"api-football-v1.p.rapidapi.com"`
	Key         string `env:"FOOTBALL_API_KEY" envDefault:""`
	Season      int    `env:"FOOTBALL_API_SEASON" envDefault:"2025"`
	BookmakerID int    `env:"FOOTBALL_API_BOOKMAKER_ID" envDefault:"8"`
}

type Cache struct {
	QuotesExpiration time.Duration `env:"CACHE_QUOTES_EXPIRATION" envDefault:"15m"`
}

type Jobs struct {
	FillQuoteCacheInterval time.Duration `env:"FILL_QUOTE_CACHE_JOB_INTERVAL" envDefault:"15m"`
	// with seconds: 22:30 on weekdays, after the US close
	SnapshotCrontab        string        `env:"SNAPSHOT_JOB_CRONTAB" envDefault:"0 30 22 * * 1-5"`
	DriveCleanupInterval   time.Duration `env:"DRIVE_CLEANUP_JOB_INTERVAL" envDefault:"24h"`
}

type GoogleDrive struct {
	Enabled         bool          `env:"GOOGLE_DRIVE_ENABLED" envDefault:"false"`
	CredentialsFile string        `env:"GOOGLE_DRIVE_CREDENTIALS_FILE" envDefault:"credentials.json"`
	FileTTL         time.Duration `env:"GOOGLE_DRIVE_FILE_TTL" envDefault:"168h"`
}

func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	return cfg
}
