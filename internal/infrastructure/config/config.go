package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Sui         SuiConfig      `mapstructure:"sui"`
	Rates       RatesConfig    `mapstructure:"rates"`
	Ledger      LedgerConfig   `mapstructure:"ledger"`
	Workers     WorkersConfig  `mapstructure:"workers"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string `mapstructure:"migrations_path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SuiConfig configures the chain gateway.
type SuiConfig struct {
	RPCURL           string `mapstructure:"rpc_url"`
	WalletServiceURL string `mapstructure:"wallet_service_url"`
	GasBudget        string `mapstructure:"gas_budget"`
	Timeout          int    `mapstructure:"timeout"`
	MaxRetries       int    `mapstructure:"max_retries"`
}

// RatesConfig configures the SUI/USD quote source.
type RatesConfig struct {
	QuoteURL string `mapstructure:"quote_url"`
	CacheTTL int    `mapstructure:"cache_ttl"`
}

// LedgerConfig carries the tunable business floors and windows.
type LedgerConfig struct {
	MinStakeAmount      string `mapstructure:"min_stake_amount"`
	MinWithdrawalAmount string `mapstructure:"min_withdrawal_amount"`
	DepositFeePercent   string `mapstructure:"deposit_fee_percent"`
	PoolPayoutLeadTime  int    `mapstructure:"pool_payout_lead_time"`
}

type WorkersConfig struct {
	ReconcileInterval int    `mapstructure:"reconcile_interval"`
	DailyCronSpec     string `mapstructure:"daily_cron_spec"`
}

// PoolPayoutLead returns the payout lead time as a duration.
func (l LedgerConfig) PoolPayoutLead() time.Duration {
	return time.Duration(l.PoolPayoutLeadTime) * time.Minute
}

// ReconcileEvery returns the reconciliation cadence as a duration.
func (w WorkersConfig) ReconcileEvery() time.Duration {
	return time.Duration(w.ReconcileInterval) * time.Minute
}

// Load reads configuration from config files and the environment
func Load() (*Config, error) {
	// .env is optional; real deployments use the process environment
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	overrideFromEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 15)
	viper.SetDefault("server.write_timeout", 15)

	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)
	viper.SetDefault("database.migrations_path", "migrations")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("sui.rpc_url", "https://fullnode.mainnet.sui.io:443")
	viper.SetDefault("sui.wallet_service_url", "https://suiwallet.sui-bison.live")
	viper.SetDefault("sui.gas_budget", "0.00001")
	viper.SetDefault("sui.timeout", 30)
	viper.SetDefault("sui.max_retries", 3)

	viper.SetDefault("rates.quote_url", "https://query1.finance.yahoo.com/v8/finance/chart/SUI20947-USD")
	viper.SetDefault("rates.cache_ttl", 1800)

	viper.SetDefault("ledger.min_stake_amount", "1")
	viper.SetDefault("ledger.min_withdrawal_amount", "1")
	viper.SetDefault("ledger.deposit_fee_percent", "0.10")
	viper.SetDefault("ledger.pool_payout_lead_time", 30)

	viper.SetDefault("workers.reconcile_interval", 15)
	viper.SetDefault("workers.daily_cron_spec", "0 0 * * *")
}

func overrideFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("server.port", p)
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		viper.Set("redis.addr", redisAddr)
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		viper.Set("redis.password", redisPassword)
	}
	if rpc := os.Getenv("SUI_RPC_URL"); rpc != "" {
		viper.Set("sui.rpc_url", rpc)
	}
	if walletSvc := os.Getenv("SUI_WALLET_SERVICE_URL"); walletSvc != "" {
		viper.Set("sui.wallet_service_url", walletSvc)
	}
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		viper.Set("environment", env)
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		viper.Set("log_level", lvl)
	}
}
