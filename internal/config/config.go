package config

import (
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/viper"

	pkgconfig "github.com/weiawesome/wes-io-live/live-service/pkg/config"
	pkglog "github.com/weiawesome/wes-io-live/live-service/pkg/log"
	"github.com/weiawesome/wes-io-live/live-service/pkg/pubsub"
	"github.com/weiawesome/wes-io-live/live-service/pkg/storage"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Loop      LoopConfig
	Auth      AuthConfig
	Profile   ProfileConfig
	PubSub    pubsub.Config
	Recorder  RecorderConfig
	Kafka     KafkaConfig
	Store     StoreConfig
	Archive   ArchiveConfig
	ICE       ICEConfig
	GRPC      GRPCConfig
	Log       pkglog.Config
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	// AllowedOrigins empty means any origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoopConfig sizes the event loop and the side-effect queue.
type LoopConfig struct {
	InboxSize     int           `mapstructure:"inbox_size"`
	EffectsSize   int           `mapstructure:"effects_size"`
	EffectTimeout time.Duration `mapstructure:"effect_timeout"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string
	// Required rejects watch messages whose token does not verify.
	Required  bool
	AdminRole string `mapstructure:"admin_role"`
}

type ProfileConfig struct {
	HTTPAddress string        `mapstructure:"http_address"`
	Timeout     time.Duration `mapstructure:"timeout"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

type RecorderConfig struct {
	Enabled bool
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    string
	Topic      string
	Partitions int
}

type StoreConfig struct {
	Type      string // "memory" or "redis"
	KeyPrefix string `mapstructure:"key_prefix"`
	TTL       time.Duration
	Redis     pubsub.RedisConfig
}

type ArchiveConfig struct {
	Enabled   bool
	Prefix    string
	URLExpiry time.Duration `mapstructure:"url_expiry"`
	Storage   storage.Config
}

type ICEServerConfig struct {
	URLs       []string `mapstructure:"urls"`
	Username   string
	Credential string
}

type ICEConfig struct {
	Servers []ICEServerConfig
}

// WebRTCServers converts the configured servers to the browser-facing type.
func (c ICEConfig) WebRTCServers() []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(c.Servers))
	for _, s := range c.Servers {
		if len(s.URLs) == 0 {
			continue
		}
		servers = append(servers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return servers
}

type GRPCConfig struct {
	Enabled bool
	Host    string
	Port    int
}

// Addr returns host:port.
func (g GRPCConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// LoadFrom reads <path>/<name>.yaml, when present, and the environment.
// The returned viper instance can be passed to pkg/config.Watch.
func LoadFrom(path, name string) (*Config, *viper.Viper, error) {
	v, err := pkgconfig.Load(path, name)
	if err != nil {
		return nil, nil, err
	}

	setDefaults(v)
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Server.ReadTimeout = parseDuration(v, "server.read_timeout", 15*time.Second)
	cfg.Server.WriteTimeout = parseDuration(v, "server.write_timeout", 15*time.Second)
	cfg.Server.IdleTimeout = parseDuration(v, "server.idle_timeout", 60*time.Second)
	cfg.Server.ShutdownTimeout = parseDuration(v, "server.shutdown_timeout", 30*time.Second)
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Loop.EffectTimeout = parseDuration(v, "loop.effect_timeout", 5*time.Second)
	cfg.Profile.Timeout = parseDuration(v, "profile.timeout", 3*time.Second)
	cfg.Profile.CacheTTL = parseDuration(v, "profile.cache_ttl", 5*time.Minute)
	cfg.Store.TTL = parseDuration(v, "store.ttl", 12*time.Hour)
	cfg.Archive.URLExpiry = parseDuration(v, "archive.url_expiry", time.Hour)

	if cfg.WebSocket.PingInterval >= cfg.WebSocket.PongWait {
		return nil, nil, fmt.Errorf("websocket.ping_interval (%s) must be shorter than websocket.pong_wait (%s)",
			cfg.WebSocket.PingInterval, cfg.WebSocket.PongWait)
	}

	return &cfg, v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 65536)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("loop.inbox_size", 1024)
	v.SetDefault("loop.effects_size", 1024)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.required", false)
	v.SetDefault("auth.admin_role", "admin")
	v.SetDefault("profile.http_address", "")
	v.SetDefault("pubsub.driver", "memory")
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("pubsub.redis.pool_size", 10)
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.group_id", "live-service")
	v.SetDefault("pubsub.kafka.partitions", 4)
	v.SetDefault("recorder.enabled", false)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "live-session-events")
	v.SetDefault("kafka.partitions", 4)
	v.SetDefault("store.type", "memory")
	v.SetDefault("store.key_prefix", "live")
	v.SetDefault("store.redis.address", "localhost:6379")
	v.SetDefault("store.redis.pool_size", 10)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.prefix", "reports")
	v.SetDefault("archive.storage.type", "local")
	v.SetDefault("archive.storage.local.base_path", "./data/archive")
	v.SetDefault("archive.storage.s3.region", "us-east-1")
	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 9090)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "live-service")
}

func bindEnv(v *viper.Viper) {
	v.BindEnv("server.port", "PORT")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("auth.issuer", "JWT_ISSUER")
	v.BindEnv("profile.http_address", "PROFILE_HTTP_ADDRESS")
	v.BindEnv("pubsub.redis.address", "REDIS_ADDRESS")
	v.BindEnv("pubsub.redis.password", "REDIS_PASSWORD")
	v.BindEnv("pubsub.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("store.redis.address", "REDIS_ADDRESS")
	v.BindEnv("store.redis.password", "REDIS_PASSWORD")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_LIVE_TOPIC")
	v.BindEnv("archive.storage.s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("archive.storage.s3.bucket", "S3_BUCKET")
	v.BindEnv("archive.storage.s3.access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("archive.storage.s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("grpc.port", "GRPC_PORT")
	v.BindEnv("log.level", "LOG_LEVEL")
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return defaultVal
	}
	return d
}
