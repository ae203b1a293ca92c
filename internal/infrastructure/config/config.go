package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// minJWTSecretLen is the shortest jwt_secret Validate accepts. The EC
// write path reprograms charging and fan hardware, so a forgeable token
// hands that to the whole network.
const minJWTSecretLen = 32

// Config is everything wyvernd reads at startup: YAML file values over
// built-in defaults, WYVERN_* environment overrides on top.
type Config struct {
	System   SystemConfig   `yaml:"system"`
	Logging  LoggingConfig  `yaml:"logging"`
	EC       ECConfig       `yaml:"ec"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
}

// SystemConfig identifies this installation. Name tags telemetry and
// audit rows, so give each machine its own when several share a broker.
type SystemConfig struct {
	Name    string `yaml:"name"`
	DataDir string `yaml:"data_dir"`
}

// LoggingConfig selects level, format, and destination for the daemon log.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ECConfig locates the embedded controller interface and the shared
// profile configuration file.
type ECConfig struct {
	IOPath   string `yaml:"io_path"`
	ConfPath string `yaml:"conf_path"`
}

// MonitorConfig controls the telemetry sampler.
type MonitorConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds"`
	HistorySize     int  `yaml:"history_size"`
	Persist         bool `yaml:"persist"`
	RetentionDays   int  `yaml:"retention_days"`
}

// Interval returns the sampling interval as a Duration.
func (m MonitorConfig) Interval() time.Duration {
	return time.Duration(m.IntervalSeconds) * time.Second
}

// DatabaseConfig points at the SQLite history store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig configures the broker session. Delays are seconds; QoS
// applies to everything the daemon publishes.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	TopicPrefix string              `yaml:"topic_prefix"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig is the broker endpoint.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig holds broker credentials; empty username means
// anonymous.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig paces reconnection attempts, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig configures the long-horizon telemetry store.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig configures the local HTTP and WebSocket server.
type APIConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	CORS      CORSConfig       `yaml:"cors"`
	Auth      AuthConfig       `yaml:"auth"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
}

// APITimeoutConfig holds the HTTP server timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// ReadTimeout returns the read timeout as a Duration.
func (t APITimeoutConfig) ReadTimeout() time.Duration {
	return time.Duration(t.Read) * time.Second
}

// WriteTimeout returns the write timeout as a Duration.
func (t APITimeoutConfig) WriteTimeout() time.Duration {
	return time.Duration(t.Write) * time.Second
}

// IdleTimeout returns the idle timeout as a Duration.
func (t APITimeoutConfig) IdleTimeout() time.Duration {
	return time.Duration(t.Idle) * time.Second
}

// CORSConfig lists what cross-origin requests the API accepts.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// AuthConfig controls API authentication. With auth disabled the API
// trusts everyone on the socket; only sensible bound to localhost.
type AuthConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Password        string `yaml:"password"`
	JWTSecret       string `yaml:"jwt_secret"`
	TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
}

// WebSocketConfig tunes the realtime stream endpoint.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// Load reads the YAML file at path onto the defaults, applies WYVERN_*
// environment overrides, and validates the result. Precedence is
// environment over file over defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	overrideFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaults is a runnable local setup: EC at the ec_sys path, optional
// integrations off, API bound to localhost.
func defaults() *Config {
	return &Config{
		System: SystemConfig{
			Name:    "wyvern",
			DataDir: "./data",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		EC: ECConfig{
			IOPath:   "/sys/kernel/debug/ec/ec0/io",
			ConfPath: "/etc/isw.conf",
		},
		Monitor: MonitorConfig{
			Enabled:         true,
			IntervalSeconds: 2,
			HistorySize:     60,
			Persist:         true,
			RetentionDays:   7,
		},
		Database: DatabaseConfig{
			Path:        "./data/wyvern.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "wyvernd",
			},
			TopicPrefix: "wyvern",
			QoS:         1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8820,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			Auth: AuthConfig{
				TokenTTLMinutes: 15,
			},
			WebSocket: WebSocketConfig{
				Path:           "/ws",
				MaxMessageSize: 8192,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
	}
}

// overrideFromEnv applies WYVERN_* environment overrides. Only secrets
// and the paths that differ between installs are exposed this way;
// everything else belongs in the file.
func overrideFromEnv(cfg *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"WYVERN_EC_IO_PATH", &cfg.EC.IOPath},
		{"WYVERN_EC_CONF_PATH", &cfg.EC.ConfPath},
		{"WYVERN_DATABASE_PATH", &cfg.Database.Path},
		{"WYVERN_MQTT_HOST", &cfg.MQTT.Broker.Host},
		{"WYVERN_MQTT_USERNAME", &cfg.MQTT.Auth.Username},
		{"WYVERN_MQTT_PASSWORD", &cfg.MQTT.Auth.Password},
		{"WYVERN_API_HOST", &cfg.API.Host},
		{"WYVERN_INFLUXDB_TOKEN", &cfg.InfluxDB.Token},
		{"WYVERN_AUTH_PASSWORD", &cfg.API.Auth.Password},
		{"WYVERN_JWT_SECRET", &cfg.API.Auth.JWTSecret},
	}

	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// Validate collects every problem rather than stopping at the first, so
// one daemon restart surfaces the whole list.
func (c *Config) Validate() error {
	var problems []string
	need := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	need(c.System.Name != "", "system.name is required")
	need(c.EC.IOPath != "", "ec.io_path is required")
	need(c.EC.ConfPath != "", "ec.conf_path is required")
	need(c.Database.Path != "", "database.path is required")
	need(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1, or 2")

	if c.Monitor.Enabled {
		need(c.Monitor.IntervalSeconds >= 1, "monitor.interval_seconds must be at least 1")
		need(c.Monitor.HistorySize >= 1, "monitor.history_size must be at least 1")
	}

	if c.InfluxDB.Enabled {
		need(c.InfluxDB.URL != "", "influxdb.url is required when influxdb is enabled")
		need(c.InfluxDB.Token != "", "influxdb.token is required when influxdb is enabled (set WYVERN_INFLUXDB_TOKEN)")
		need(c.InfluxDB.Org != "" && c.InfluxDB.Bucket != "", "influxdb.org and influxdb.bucket are required when influxdb is enabled")
	}

	if c.API.Enabled {
		need(c.API.Port >= 1 && c.API.Port <= 65535, "api.port must be between 1 and 65535")
		if c.API.Auth.Enabled {
			need(c.API.Auth.Password != "", "api.auth.password is required when auth is enabled (set WYVERN_AUTH_PASSWORD)")
			need(c.API.Auth.JWTSecret != "", "api.auth.jwt_secret is required when auth is enabled (set WYVERN_JWT_SECRET)")
			if c.API.Auth.JWTSecret != "" {
				need(len(c.API.Auth.JWTSecret) >= minJWTSecretLen,
					fmt.Sprintf("api.auth.jwt_secret must be at least %d characters", minJWTSecretLen))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(problems, "; "))
	}
	return nil
}
