package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	ApplySchema     bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	BucketReports string
	UseSSL        bool
	Region        string
	PresignTTL    time.Duration
}

// SecurityConfig holds token lifetimes for both credential contexts.
type SecurityConfig struct {
	JWTAccessSecret string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	PersonalTTL     time.Duration
	RBACCacheTTL    time.Duration
}

type RateLimit struct {
	Max    int
	Window time.Duration
}

type RateLimitConfig struct {
	Enabled      bool
	Store        string
	Login        RateLimit
	Attendance   RateLimit
	EmployeesAPI RateLimit
	UsersAPI     RateLimit
	General      RateLimit
}

type WorkerConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
}

type LocaleConfig struct {
	Default   string
	Supported []string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	RateLimits       RateLimitConfig
	Worker           WorkerConfig
	Locale           LocaleConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("QRATTENDANCE")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Security.JWTAccessSecret == "" {
		return nil, fmt.Errorf("security.jwtaccesssecret is required")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.applyschema", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.bucketreports", "qrattendance-reports")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.presignttl", "15m")

	v.SetDefault("security.accessttl", "360h")    // 15 days
	v.SetDefault("security.refreshttl", "720h")   // 30 days
	v.SetDefault("security.personalttl", "4380h") // 6 months
	v.SetDefault("security.rbaccachettl", "24h")

	v.SetDefault("ratelimits.enabled", true)
	v.SetDefault("ratelimits.store", "redis")
	v.SetDefault("ratelimits.login.max", 5)
	v.SetDefault("ratelimits.login.window", "1m")
	v.SetDefault("ratelimits.attendance.max", 10)
	v.SetDefault("ratelimits.attendance.window", "1m")
	v.SetDefault("ratelimits.employeesapi.max", 30)
	v.SetDefault("ratelimits.employeesapi.window", "1m")
	v.SetDefault("ratelimits.usersapi.max", 120)
	v.SetDefault("ratelimits.usersapi.window", "1m")
	v.SetDefault("ratelimits.general.max", 60)
	v.SetDefault("ratelimits.general.window", "1m")

	v.SetDefault("worker.stream", "attendance:jobs")
	v.SetDefault("worker.group", "attendance-workers")
	v.SetDefault("worker.consumer", "worker-1")
	v.SetDefault("worker.claiminterval", "30s")

	v.SetDefault("locale.default", "en")
	v.SetDefault("locale.supported", []string{"en", "es"})
}
