package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"vibration-monitor/common/config"

	"gopkg.in/yaml.v3"
)

// 存储后端
const (
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// DefaultTopics 默认订阅的振动主题
var DefaultTopics = []string{
	"Pompa1/Vibration/#",
	"Pompa2/Vibration/#",
	"Pompa3/Vibration/#",
	"Pompa4/Vibration/#",
	"Pompa5/Vibration/#",
}

// DefaultAllowlist 设备列表默认只展示的设备名（主题第一段）
var DefaultAllowlist = []string{"Pompa1", "Pompa2", "Pompa3", "Pompa4", "Pompa5"}

// Config 振动监测服务配置
type Config struct {
	Database config.DatabaseConfig `yaml:"database"`
	Redis    config.RedisConfig    `yaml:"redis"`
	MQTT     config.MQTTConfig     `yaml:"mqtt"`

	Monitor struct {
		HistorySize     int           `yaml:"history_size"`
		OnlineWindow    time.Duration `yaml:"online_window"`
		DeviceAllowlist []string      `yaml:"device_allowlist"` // 为空表示全部展示
		CountdownSpec   string        `yaml:"countdown_default"`
	} `yaml:"monitor"`

	Storage struct {
		Backend   string `yaml:"backend"` // file | redis | postgres
		Dir       string `yaml:"dir"`
		KeyPrefix string `yaml:"key_prefix"` // redis 后端键前缀
	} `yaml:"storage"`

	Events struct {
		Stream         string        `yaml:"stream"` // 为空时不写 Redis Stream
		StreamMaxLen   int64         `yaml:"stream_max_len"`
		WebhookURL     string        `yaml:"webhook_url"`
		WebhookTimeout time.Duration `yaml:"webhook_timeout"`
	} `yaml:"events"`

	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load 加载配置：默认值 → CONFIG_FILE（YAML，可选）→ 环境变量
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.Database.LoadFromEnv("DB")
	cfg.Redis.LoadFromEnv("REDIS")
	cfg.MQTT.LoadFromEnv("MQTT")

	if v := os.Getenv("DEVICE_ALLOWLIST"); v != "" {
		// "*" 表示不过滤
		if strings.TrimSpace(v) == "*" {
			cfg.Monitor.DeviceAllowlist = nil
		} else {
			cfg.Monitor.DeviceAllowlist = config.SplitList(v)
		}
	}
	cfg.Monitor.CountdownSpec = getEnv("COUNTDOWN_DEFAULT", cfg.Monitor.CountdownSpec)
	if n, err := strconv.Atoi(os.Getenv("HISTORY_SIZE")); err == nil {
		cfg.Monitor.HistorySize = n
	}
	if d, err := time.ParseDuration(os.Getenv("ONLINE_WINDOW")); err == nil {
		cfg.Monitor.OnlineWindow = d
	}

	cfg.Storage.Backend = strings.ToLower(getEnv("STORAGE_BACKEND", cfg.Storage.Backend))
	cfg.Storage.Dir = getEnv("STORAGE_DIR", cfg.Storage.Dir)
	cfg.Storage.KeyPrefix = getEnv("STORAGE_KEY_PREFIX", cfg.Storage.KeyPrefix)

	cfg.Events.Stream = getEnv("EVENTS_STREAM", cfg.Events.Stream)
	if n, err := strconv.ParseInt(os.Getenv("EVENTS_STREAM_MAXLEN"), 10, 64); err == nil {
		cfg.Events.StreamMaxLen = n
	}
	cfg.Events.WebhookURL = getEnv("WEBHOOK_URL", cfg.Events.WebhookURL)
	if d, err := time.ParseDuration(os.Getenv("WEBHOOK_TIMEOUT")); err == nil {
		cfg.Events.WebhookTimeout = d
	}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageFile, StorageRedis, StoragePostgres:
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.Storage.Backend)
	}
	if len(c.MQTT.Topics) == 0 {
		return fmt.Errorf("at least one MQTT topic is required")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("invalid MQTT QoS %d", c.MQTT.QoS)
	}
	if c.Monitor.OnlineWindow <= 0 {
		return fmt.Errorf("online window must be positive")
	}
	return nil
}

func defaults() *Config {
	cfg := &Config{}

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "vibration"
	cfg.Database.SSLMode = "disable"

	cfg.Redis.Addr = "localhost:6379"

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "vibration-monitor"
	cfg.MQTT.QoS = 0
	cfg.MQTT.Topics = append([]string(nil), DefaultTopics...)

	cfg.Monitor.HistorySize = 20
	cfg.Monitor.OnlineWindow = 10 * time.Second
	cfg.Monitor.DeviceAllowlist = append([]string(nil), DefaultAllowlist...)
	cfg.Monitor.CountdownSpec = "7d"

	cfg.Storage.Backend = StorageFile
	cfg.Storage.Dir = "data"
	cfg.Storage.KeyPrefix = "vibration:"

	cfg.Events.StreamMaxLen = 10000
	cfg.Events.WebhookTimeout = 5 * time.Second

	cfg.HTTP.Addr = ":5000"

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"

	return cfg
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
