package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// QueueConfig 事件队列配置（Redis Streams）
type QueueConfig struct {
	CriticalStream     string        // 关键级事件流
	StandardStream     string        // 高/中级事件流
	TelemetryStream    string        // 遥测流
	ConsumerGroup      string
	ConsumerName       string
	CriticalBatchSize  int64         // 关键级批量较小，保证关注度
	StandardBatchSize  int64         // 高/中级批量较大
	TelemetryBatchSize int64         // 遥测量大，批量最大
	BlockTimeout       time.Duration // 长轮询阻塞时长
	VisibilityTimeout  time.Duration // 未确认消息重投可见超时
	ReceiveRetryDelay  time.Duration // 接收层失败后的固定等待
}

// CacheConfig 缓存 TTL 配置
type CacheConfig struct {
	DeviceMapTTL      time.Duration // 设备映射缓存（变化极少）
	VehicleDetailsTTL time.Duration
	LiveStateReadTTL  time.Duration // 查询回填时的实时状态 TTL
	LiveStateWriteTTL time.Duration // 遥测写入时的实时状态 TTL
}

// NotifyConfig 通知配置
type NotifyConfig struct {
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string
	MQTTQoS      byte

	MailAPIBaseURL string
	MailAPIToken   string
	MailSender     string

	CriticalCooldown time.Duration // 关键级邮件冷却窗口
	HighCooldown     time.Duration // 高级邮件冷却窗口
}

// StorageConfig 证据文件存储配置
type StorageConfig struct {
	Root          string // 存储根目录
	PublicBaseURL string // 对外访问链接前缀
}

// Config 服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Queue    QueueConfig
	Cache    CacheConfig
	Notify   NotifyConfig
	Storage  StorageConfig

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（.env 文件可选，环境变量优先）
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "aegisdrive")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Queue.CriticalStream = getEnv("QUEUE_CRITICAL_STREAM", "safety-events:critical")
	cfg.Queue.StandardStream = getEnv("QUEUE_STANDARD_STREAM", "safety-events:standard")
	cfg.Queue.TelemetryStream = getEnv("QUEUE_TELEMETRY_STREAM", "vehicle-telemetry")
	cfg.Queue.ConsumerGroup = getEnv("QUEUE_CONSUMER_GROUP", "aegis-safety")
	cfg.Queue.ConsumerName = getEnv("QUEUE_CONSUMER_NAME", defaultConsumerName())
	cfg.Queue.CriticalBatchSize = int64(getEnvInt("QUEUE_CRITICAL_BATCH", 5))
	cfg.Queue.StandardBatchSize = int64(getEnvInt("QUEUE_STANDARD_BATCH", 10))
	cfg.Queue.TelemetryBatchSize = int64(getEnvInt("QUEUE_TELEMETRY_BATCH", 50))
	cfg.Queue.BlockTimeout = getEnvDuration("QUEUE_BLOCK_TIMEOUT", 20*time.Second)
	cfg.Queue.VisibilityTimeout = getEnvDuration("QUEUE_VISIBILITY_TIMEOUT", 60*time.Second)
	cfg.Queue.ReceiveRetryDelay = getEnvDuration("QUEUE_RECEIVE_RETRY_DELAY", 5*time.Second)

	cfg.Cache.DeviceMapTTL = getEnvDuration("CACHE_DEVICE_MAP_TTL", time.Hour)
	cfg.Cache.VehicleDetailsTTL = getEnvDuration("CACHE_VEHICLE_DETAILS_TTL", 10*time.Minute)
	cfg.Cache.LiveStateReadTTL = getEnvDuration("CACHE_LIVE_STATE_READ_TTL", 2*time.Minute)
	cfg.Cache.LiveStateWriteTTL = getEnvDuration("CACHE_LIVE_STATE_WRITE_TTL", 5*time.Minute)

	cfg.Notify.MQTTBroker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.Notify.MQTTClientID = getEnv("MQTT_CLIENT_ID", "aegis-safety")
	cfg.Notify.MQTTUsername = getEnv("MQTT_USERNAME", "")
	cfg.Notify.MQTTPassword = getEnv("MQTT_PASSWORD", "")
	cfg.Notify.MQTTQoS = byte(getEnvInt("MQTT_QOS", 1))

	cfg.Notify.MailAPIBaseURL = getEnv("MAIL_API_BASE_URL", "http://localhost:8025")
	cfg.Notify.MailAPIToken = getEnv("MAIL_API_TOKEN", "")
	cfg.Notify.MailSender = getEnv("MAIL_SENDER", "alerts@aegisdrive.io")

	cfg.Notify.CriticalCooldown = getEnvDuration("NOTIFY_CRITICAL_COOLDOWN", 30*time.Second)
	cfg.Notify.HighCooldown = getEnvDuration("NOTIFY_HIGH_COOLDOWN", time.Minute)

	cfg.Storage.Root = getEnv("STORAGE_ROOT", "/var/lib/aegis-safety/media")
	cfg.Storage.PublicBaseURL = getEnv("STORAGE_PUBLIC_BASE_URL", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func defaultConsumerName() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return "aegis-safety-1"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
