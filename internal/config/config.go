package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Points   PointsConfig   `mapstructure:"points"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // mysql or sqlite
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	Path            string `mapstructure:"path"` // sqlite only
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type ChainConfig struct {
	RPCURL      string             `mapstructure:"rpc_url"`
	RPCTimeout  int                `mapstructure:"rpc_timeout"`
	Collections []CollectionConfig `mapstructure:"collections"`
}

// CollectionConfig describes one tracked NFT collection: its contract
// address and the base points awarded per held token.
type CollectionConfig struct {
	Name    string  `mapstructure:"name"`
	Address string  `mapstructure:"address"`
	Weight  float64 `mapstructure:"weight"`
}

type PointsConfig struct {
	CooldownHours     float64      `mapstructure:"cooldown_hours"`
	Tiers             []TierConfig `mapstructure:"tiers"`
	WeeklyResetCron   string       `mapstructure:"weekly_reset_cron"`
	HoldingsCacheTTL  int          `mapstructure:"holdings_cache_ttl"`
	HoldingsCacheSize int          `mapstructure:"holdings_cache_size"`
}

// TierConfig is one step of the multiplier table: the multiplier applies to
// any total holdings count >= MinHeld up to the next tier's threshold.
type TierConfig struct {
	MinHeld    int     `mapstructure:"min_held"`
	Multiplier float64 `mapstructure:"multiplier"`
}

func (p *PointsConfig) CooldownWindow() time.Duration {
	return time.Duration(p.CooldownHours * float64(time.Hour))
}

type ProxyConfig struct {
	AllowedMethods []string `mapstructure:"allowed_methods"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("HYPERIAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// setDefaults carries the production rule set so the service runs against
// mainnet with nothing but database credentials supplied.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.dbname", "hyperian")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)

	v.SetDefault("chain.rpc_url", "https://rpc.hyperliquid.xyz/evm")
	v.SetDefault("chain.rpc_timeout", 15)
	v.SetDefault("chain.collections", []map[string]interface{}{
		{
			"name":    "hyperians",
			"address": "0x4414C32982b4CF348d4FDC7b86be2Ef9b1ae1160",
			"weight":  5,
		},
		{
			"name":    "genesis",
			"address": "0xB0F82655F249FC6561A94eB370d41bD24A861A9d",
			"weight":  3,
		},
	})

	v.SetDefault("points.cooldown_hours", 5)
	v.SetDefault("points.tiers", []map[string]interface{}{
		{"min_held": 0, "multiplier": 1.0},
		{"min_held": 5, "multiplier": 1.5},
		{"min_held": 10, "multiplier": 2.0},
		{"min_held": 25, "multiplier": 3.0},
	})
	v.SetDefault("points.weekly_reset_cron", "0 0 0 * * 1")
	v.SetDefault("points.holdings_cache_ttl", 30)
	v.SetDefault("points.holdings_cache_size", 2048)

	v.SetDefault("proxy.allowed_methods", []string{
		"eth_call",
		"eth_getBalance",
		"eth_getLogs",
		"eth_blockNumber",
		"eth_chainId",
		"eth_getTransactionReceipt",
	})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
}
