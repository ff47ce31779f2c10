package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HTTP    HTTPConfig    `envconfig:"HTTP"`
	Log     LogConfig     `envconfig:"LOG"`
	DB      DBConfig      `envconfig:"DB"`
	Redis   RedisConfig   `envconfig:"REDIS"`
	Ledger  LedgerConfig  `envconfig:"LEDGER"`
	Coin    CoinConfig    `envconfig:"COIN"`
	Tipbot  TipbotConfig  `envconfig:"TIPBOT"`
	Price   PriceConfig   `envconfig:"PRICE"`
	Secrets SecretsConfig `envconfig:"SECRETS"`
}

type HTTPConfig struct {
	Port         string        `envconfig:"PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"5m"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	CORSOrigins  []string      `envconfig:"CORS_ORIGINS" default:"*"`
}

type LogConfig struct {
	ErrorFile string `envconfig:"ERROR_FILE" default:"errors.log"`
	Level     string `envconfig:"LEVEL" default:"debug"`
}

type DBConfig struct {
	Host           string `envconfig:"HOST" default:"localhost"`
	Port           string `envconfig:"PORT" default:"5432"`
	User           string `envconfig:"USER" default:"user"`
	Password       string `envconfig:"PASSWORD" default:"password"`
	Name           string `envconfig:"NAME" default:"tipbridge"`
	SSLMode        string `envconfig:"SSLMODE" default:"disable"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"migrations"`

	MaxConns       int32         `envconfig:"MAX_CONNS" default:"50"`
	MinConns       int32         `envconfig:"MIN_CONNS" default:"5"`
	ConnectTimeout time.Duration `envconfig:"CONNECT_TIMEOUT" default:"10s"`
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

func (c DBConfig) MigrationURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

type RedisConfig struct {
	Addr     string `envconfig:"ADDR" default:"localhost:6379"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
	Prefix   string `envconfig:"PREFIX" default:"tipbridge:"`
}

// EngineConfig is shared by both engines; Transport is "http" or "exec".
type EngineConfig struct {
	Transport   string        `envconfig:"TRANSPORT" default:"http"`
	Binary      string        `envconfig:"BINARY"`
	Args        []string      `envconfig:"ARGS"`
	Dir         string        `envconfig:"DIR"`
	BaseTimeout time.Duration `envconfig:"BASE_TIMEOUT" default:"5s"`
	MaxAttempts int           `envconfig:"MAX_ATTEMPTS" default:"5"`
}

type LedgerConfig struct {
	EngineConfig
	Enabled        bool          `envconfig:"ENABLED" default:"true"`
	URL            string        `envconfig:"URL" default:"http://127.0.0.1:3000"`
	Symbol         string        `envconfig:"SYMBOL" default:"EPIC"`
	Decimals       int32         `envconfig:"DECIMALS" default:"8"`
	TokenID        string        `envconfig:"TOKEN_ID" default:"tti_f370fadb275bc2a1a839c753"`
	ExplorerURL    string        `envconfig:"EXPLORER_URL" default:"https://vitescan.io/tx/"`
	BalanceTimeout time.Duration `envconfig:"BALANCE_TIMEOUT" default:"2s"`
	ReceiveTimeout time.Duration `envconfig:"RECEIVE_TIMEOUT" default:"15s"`
	SendTimeout    time.Duration `envconfig:"SEND_TIMEOUT" default:"10s"`
	Fees           FeeConfig     `envconfig:"FEE"`
}

type CoinConfig struct {
	EngineConfig
	Enabled     bool          `envconfig:"ENABLED" default:"false"`
	URL         string        `envconfig:"URL" default:"http://127.0.0.1:3415"`
	Symbol      string        `envconfig:"SYMBOL" default:"EPIC"`
	Decimals    int32         `envconfig:"DECIMALS" default:"8"`
	SendTimeout time.Duration `envconfig:"SEND_TIMEOUT" default:"30s"`
	Fees        CoinFeeConfig `envconfig:"FEE"`
}

// FeeConfig amounts are human decimal strings in the network's asset.
type FeeConfig struct {
	WithdrawFlat string `envconfig:"WITHDRAW_FLAT" default:"0.001"`
	TipRate      string `envconfig:"TIP_RATE" default:"0.01"`
	Address      string `envconfig:"ADDRESS" default:"vite_7693d3816ef70526faaf1b48922357835d2df8f5a8f95ede06"`
}

// CoinFeeConfig has no collector by default, which turns protocol fees off for the coin network.
type CoinFeeConfig struct {
	WithdrawFlat string `envconfig:"WITHDRAW_FLAT" default:"0.001"`
	TipRate      string `envconfig:"TIP_RATE" default:"0.01"`
	Address      string `envconfig:"ADDRESS"`
}

type TipbotConfig struct {
	MaxRecipients  int           `envconfig:"MAX_RECIPIENTS" default:"5"`
	TipSpacing     time.Duration `envconfig:"TIP_SPACING" default:"2200ms"`
	LockBackend    string        `envconfig:"LOCK_BACKEND" default:"memory"`
	LockTTL        time.Duration `envconfig:"LOCK_TTL" default:"5s"`
	LockSweep      time.Duration `envconfig:"LOCK_SWEEP" default:"30s"`
	FeeSettleDelay time.Duration `envconfig:"FEE_SETTLE_DELAY" default:"500ms"`
	FeeRetryDelay  time.Duration `envconfig:"FEE_RETRY_DELAY" default:"1s"`
	FlushInterval  time.Duration `envconfig:"FLUSH_INTERVAL" default:"1s"`
}

type PriceConfig struct {
	Enabled  bool          `envconfig:"ENABLED" default:"true"`
	BaseURL  string        `envconfig:"BASE_URL" default:"https://api.coingecko.com/api/v3"`
	CoinID   string        `envconfig:"COIN_ID" default:"epic-cash"`
	Currency string        `envconfig:"CURRENCY" default:"usd"`
	Interval time.Duration `envconfig:"INTERVAL" default:"60s"`
}

type SecretsConfig struct {
	// Key is the hex-encoded 32-byte key wallet secrets are sealed with.
	Key string `envconfig:"KEY" required:"true"`
}

// NewConfig reads .env when present, then the process environment.
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.Tipbot.LockBackend != "memory" && cfg.Tipbot.LockBackend != "redis" {
		return nil, fmt.Errorf("config: TIPBOT_LOCK_BACKEND must be memory or redis, got %q", cfg.Tipbot.LockBackend)
	}
	return &cfg, nil
}
