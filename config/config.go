package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	PRPC    PRPCConfig    `json:"prpc" yaml:"prpc"`
	Polling PollingConfig `json:"polling" yaml:"polling"`
	Credits CreditsConfig `json:"credits" yaml:"credits"`
	Cache   CacheConfig   `json:"cache" yaml:"cache"`
	Redis   RedisConfig   `json:"redis" yaml:"redis"`
	GeoIP   GeoIPConfig   `json:"geoip" yaml:"geoip"`
	MongoDB MongoDBConfig `json:"mongodb" yaml:"mongodb"`
	Alerts  AlertsConfig  `json:"alerts" yaml:"alerts"`
	Email   EmailConfig   `json:"email" yaml:"email"`
	Push    PushConfig    `json:"push" yaml:"push"`
	Discord DiscordConfig `json:"discord" yaml:"discord"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

type ServerConfig struct {
	Port           int      `json:"port" yaml:"port"`
	Host           string   `json:"host" yaml:"host"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

type PRPCConfig struct {
	SeedNodes   []string `json:"seed_nodes" yaml:"seed_nodes"`
	DefaultPort int      `json:"default_port" yaml:"default_port"`
	Timeout     int      `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries  int      `json:"max_retries" yaml:"max_retries"`
}

type PollingConfig struct {
	CycleInterval int  `json:"cycle_interval_seconds" yaml:"cycle_interval_seconds"`
	Enabled       bool `json:"enabled" yaml:"enabled"`
}

type CreditsConfig struct {
	Endpoint      string `json:"endpoint" yaml:"endpoint"`
	FetchInterval int    `json:"fetch_interval_seconds" yaml:"fetch_interval_seconds"`
}

type CacheConfig struct {
	TTL int `json:"ttl_seconds" yaml:"ttl_seconds"`
}

type RedisConfig struct {
	Address  string `json:"address" yaml:"address"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	UseTLS   bool   `json:"use_tls" yaml:"use_tls"`
}

type GeoIPConfig struct {
	DBPath string `json:"db_path" yaml:"db_path"`
}

type MongoDBConfig struct {
	URI      string `json:"uri" yaml:"uri"`
	Database string `json:"database" yaml:"database"`
	Enabled  bool   `json:"enabled" yaml:"enabled"`
}

type AlertsConfig struct {
	BaseURL     string `json:"base_url" yaml:"base_url"`
	CronSecret  string `json:"cron_secret" yaml:"cron_secret"`
	Concurrency int    `json:"concurrency" yaml:"concurrency"`
}

type EmailConfig struct {
	APIURL string `json:"api_url" yaml:"api_url"`
	APIKey string `json:"api_key" yaml:"api_key"`
	From   string `json:"from" yaml:"from"`
}

type PushConfig struct {
	VAPIDPublicKey  string `json:"vapid_public_key" yaml:"vapid_public_key"`
	VAPIDPrivateKey string `json:"vapid_private_key" yaml:"vapid_private_key"`
	Subscriber      string `json:"subscriber" yaml:"subscriber"`
	TTL             int    `json:"ttl_seconds" yaml:"ttl_seconds"`
}

type DiscordConfig struct {
	Token     string `json:"token" yaml:"token"`
	ChannelID string `json:"channel_id" yaml:"channel_id"`
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			Host:           "0.0.0.0",
			AllowedOrigins: []string{"*"},
		},
		PRPC: PRPCConfig{
			SeedNodes:   []string{},
			DefaultPort: 6000,
			Timeout:     5,
			MaxRetries:  3,
		},
		Polling: PollingConfig{
			CycleInterval: 60,
			Enabled:       true,
		},
		Credits: CreditsConfig{
			Endpoint:      "https://podcredits.xandeum.network/api/pods-credits",
			FetchInterval: 30,
		},
		Cache: CacheConfig{
			TTL: 120,
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
			Enabled: true,
		},
		MongoDB: MongoDBConfig{
			URI:      "mongodb://localhost:27017",
			Database: "xandpulse",
			Enabled:  true,
		},
		Alerts: AlertsConfig{
			BaseURL:     "http://localhost:3000",
			Concurrency: 8,
		},
		Email: EmailConfig{
			APIURL: "https://api.resend.com/emails",
			From:   "XandPulse <alerts@xandpulse.app>",
		},
		Push: PushConfig{
			Subscriber: "alerts@xandpulse.app",
			TTL:        3600,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig builds the configuration from defaults, the config file,
// the environment and command-line flags, in that order of precedence.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config/config.json"
	}
	if _, err := os.Stat(configPath); err == nil {
		if err := loadFile(configPath, cfg); err != nil {
			log.Warnf("Failed to decode config file %s: %v", configPath, err)
		}
	}

	loadEnv(cfg)

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	var serverPort int
	var serverHost string
	fs.IntVar(&serverPort, "port", 0, "Server port")
	fs.StringVar(&serverHost, "host", "", "Server host")
	_ = fs.Parse(args)

	if isFlagPassed(fs, "port") {
		cfg.Server.Port = serverPort
	}
	if isFlagPassed(fs, "host") {
		cfg.Server.Host = serverHost
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Polling.CycleInterval <= 0 {
		return fmt.Errorf("polling.cycle_interval_seconds must be positive")
	}
	if c.Credits.FetchInterval <= 0 {
		return fmt.Errorf("credits.fetch_interval_seconds must be positive")
	}
	if c.Alerts.Concurrency <= 0 {
		c.Alerts.Concurrency = 1
	}
	return nil
}

func isFlagPassed(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func envInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			*dst = p
		}
	}
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		*dst = val == "true" || val == "1"
	}
}

func envList(key string, dst *[]string) {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		*dst = parts
	}
}

func loadEnv(cfg *Config) {
	envInt("SERVER_PORT", &cfg.Server.Port)
	envString("SERVER_HOST", &cfg.Server.Host)
	envList("ALLOWED_ORIGINS", &cfg.Server.AllowedOrigins)

	envList("SEED_NODES", &cfg.PRPC.SeedNodes)
	envInt("PRPC_PORT", &cfg.PRPC.DefaultPort)
	envInt("PRPC_TIMEOUT", &cfg.PRPC.Timeout)
	envInt("PRPC_MAX_RETRIES", &cfg.PRPC.MaxRetries)

	envInt("CYCLE_INTERVAL", &cfg.Polling.CycleInterval)
	envBool("POLLING_ENABLED", &cfg.Polling.Enabled)

	envString("CREDITS_ENDPOINT", &cfg.Credits.Endpoint)
	envInt("CREDITS_FETCH_INTERVAL", &cfg.Credits.FetchInterval)

	envInt("CACHE_TTL", &cfg.Cache.TTL)

	envString("REDIS_ADDRESS", &cfg.Redis.Address)
	envString("REDIS_PASSWORD", &cfg.Redis.Password)
	envInt("REDIS_DB", &cfg.Redis.DB)
	envBool("REDIS_ENABLED", &cfg.Redis.Enabled)
	envBool("REDIS_USE_TLS", &cfg.Redis.UseTLS)

	envString("GEOIP_DB_PATH", &cfg.GeoIP.DBPath)

	envString("MONGODB_URI", &cfg.MongoDB.URI)
	envString("MONGODB_DATABASE", &cfg.MongoDB.Database)
	envBool("MONGODB_ENABLED", &cfg.MongoDB.Enabled)

	envString("APP_BASE_URL", &cfg.Alerts.BaseURL)
	envString("CRON_SECRET", &cfg.Alerts.CronSecret)
	envInt("ALERT_CONCURRENCY", &cfg.Alerts.Concurrency)

	envString("EMAIL_API_URL", &cfg.Email.APIURL)
	envString("EMAIL_API_KEY", &cfg.Email.APIKey)
	envString("EMAIL_FROM", &cfg.Email.From)

	envString("VAPID_PUBLIC_KEY", &cfg.Push.VAPIDPublicKey)
	envString("VAPID_PRIVATE_KEY", &cfg.Push.VAPIDPrivateKey)
	envString("VAPID_SUBSCRIBER", &cfg.Push.Subscriber)

	envString("DISCORD_BOT_TOKEN", &cfg.Discord.Token)
	envString("DISCORD_CHANNEL_ID", &cfg.Discord.ChannelID)

	envString("LOG_LEVEL", &cfg.Logging.Level)
	envString("LOG_FORMAT", &cfg.Logging.Format)
}

// Helper methods for duration conversion
func (c *Config) PRPCTimeoutDuration() time.Duration {
	return time.Duration(c.PRPC.Timeout) * time.Second
}

func (c *Config) CycleIntervalDuration() time.Duration {
	return time.Duration(c.Polling.CycleInterval) * time.Second
}

func (c *Config) CreditsFetchIntervalDuration() time.Duration {
	return time.Duration(c.Credits.FetchInterval) * time.Second
}

func (c *Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.Cache.TTL) * time.Second
}
