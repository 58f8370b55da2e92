package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Midtrans MidtransConfig `yaml:"midtrans"`
	Booking  BookingConfig  `yaml:"booking"`
	Worker   WorkerConfig   `yaml:"worker"`
	Auth     AuthConfig     `yaml:"auth"`
}

type HTTPConfig struct {
	Address    string `yaml:"address"`
	SwaggerDir string `yaml:"swagger_dir"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	PaymentTopic       string   `yaml:"payment_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type MidtransConfig struct {
	APIBase        string `yaml:"api_base"`
	SnapBase       string `yaml:"snap_base"`
	ServerKey      string `yaml:"server_key"`
	TimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

type BookingConfig struct {
	SnapshotTTLSeconds   int `yaml:"snapshot_ttl_seconds"`
	CatalogTTLSeconds    int `yaml:"catalog_ttl_seconds"`
	PollIntervalSeconds  int `yaml:"poll_interval_seconds"`
	PollMaxChecks        int `yaml:"poll_max_checks"`
	StalePendingAfterMin int `yaml:"stale_pending_after_minutes"`
}

type WorkerConfig struct {
	ReconcileSweepMinutes int `yaml:"reconcile_sweep_minutes"`
}

type AuthConfig struct {
	JWTSecret         string `yaml:"jwt_secret"`
	TokenTTLMinutes   int    `yaml:"token_ttl_minutes"`
	AdminEmail        string `yaml:"admin_email"`
	AdminPasswordHash string `yaml:"admin_password_hash"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}
