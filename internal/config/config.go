package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-trade/internal/export/packing"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Packing  PackingConfig  `mapstructure:"packing"`
	Session  SessionConfig  `mapstructure:"session"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN postgres 连接串
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PackingConfig 装箱计算参数
// Profile 为商品目录未提供包装数据时使用的默认纸箱
type PackingConfig struct {
	Profile   packing.PackagingProfile `mapstructure:"profile"`
	Tolerance float64                  `mapstructure:"tolerance"`
}

// SessionConfig 编辑会话存储，store 为 redis 或 memory
type SessionConfig struct {
	Store string        `mapstructure:"store"`
	TTL   time.Duration `mapstructure:"ttl"`
}

// Load 读取服务配置
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if cfg.JWT.Secret == "" {
		return nil, errors.New("jwt.secret is required")
	}
	return cfg, nil
}

// LoadForCLI 读取命令行工具配置，不要求 jwt.secret
func LoadForCLI() (*Config, error) {
	return load()
}

func load() (*Config, error) {
	v := viper.New()

	// 设置配置文件
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// 配置文件不存在，使用默认值和环境变量
	}

	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查无法启动服务的配置
func (c *Config) Validate() error {
	if err := c.Packing.Profile.Validate(); err != nil {
		return fmt.Errorf("packing.profile: %w", err)
	}
	if c.Packing.Tolerance < 0 {
		return fmt.Errorf("packing.tolerance must not be negative, got %v", c.Packing.Tolerance)
	}
	switch c.Session.Store {
	case "redis", "memory":
	default:
		return fmt.Errorf("session.store must be redis or memory, got %q", c.Session.Store)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive, got %v", c.Session.TTL)
	}
	if c.MinIO.Endpoint != "" && c.MinIO.Bucket == "" {
		return errors.New("minio.bucket is required when minio.endpoint is set")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("minio.bucket", "trade-documents")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	p := packing.DefaultPackagingProfile
	v.SetDefault("packing.profile.box_weight_kg", p.BoxWeightKg)
	v.SetDefault("packing.profile.box_volume_m3", p.BoxVolumeM3)
	v.SetDefault("packing.profile.pieces_per_pack", p.PiecesPerPack)
	v.SetDefault("packing.profile.packs_per_box", p.PacksPerBox)
	v.SetDefault("packing.tolerance", packing.DefaultTolerance)

	v.SetDefault("session.store", "redis")
	v.SetDefault("session.ttl", 8*time.Hour)
}

func bindEnvVariables(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.mode", "SERVER_MODE")

	// Database
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// MinIO
	v.BindEnv("minio.endpoint", "MINIO_ENDPOINT")
	v.BindEnv("minio.access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("minio.secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("minio.bucket", "MINIO_BUCKET")
	v.BindEnv("minio.use_ssl", "MINIO_USE_SSL")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")
	v.BindEnv("jwt.issuer", "JWT_ISSUER")

	// Packing
	v.BindEnv("packing.profile.box_weight_kg", "PACKING_BOX_WEIGHT_KG")
	v.BindEnv("packing.profile.box_volume_m3", "PACKING_BOX_VOLUME_M3")
	v.BindEnv("session.store", "SESSION_STORE")
	v.BindEnv("session.ttl", "SESSION_TTL")
}
