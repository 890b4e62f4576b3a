// Package config loads the batteryd configuration from YAML, environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "BATTERYD"

type Config struct {
	Sensor  SensorConfig  `mapstructure:"sensor" yaml:"sensor"`
	Monitor MonitorConfig `mapstructure:"monitor" yaml:"monitor"`
	MQTT    MQTTConfig    `mapstructure:"mqtt" yaml:"mqtt"`
	Redis   RedisConfig   `mapstructure:"redis" yaml:"redis"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
}

type SensorConfig struct {
	Bus     string `mapstructure:"bus" yaml:"bus"`         // periph bus name, "" for the first bus
	Address uint16 `mapstructure:"address" yaml:"address"` // 7-bit I2C address
	Sim     bool   `mapstructure:"sim" yaml:"sim"`
}

type MonitorConfig struct {
	ID           string        `mapstructure:"id" yaml:"id"`
	PollInterval time.Duration `mapstructure:"pollInterval" yaml:"pollInterval"`
}

type MQTTConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	Broker      string        `mapstructure:"broker" yaml:"broker"`
	ClientID    string        `mapstructure:"clientId" yaml:"clientId"`
	Username    string        `mapstructure:"username" yaml:"username"`
	Password    string        `mapstructure:"password" yaml:"password"`
	TopicPrefix string        `mapstructure:"topicPrefix" yaml:"topicPrefix"`
	QoS         byte          `mapstructure:"qos" yaml:"qos"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Address  string `mapstructure:"address" yaml:"address"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Host    string `mapstructure:"host" yaml:"host"`
	Port    int    `mapstructure:"port" yaml:"port"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"` // "text" | "json"
	FilePath   string `mapstructure:"filePath" yaml:"filePath"`
	MaxSizeMB  int    `mapstructure:"maxSizeMB" yaml:"maxSizeMB"`
	MaxBackups int    `mapstructure:"maxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAgeDays" yaml:"maxAgeDays"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sensor.bus", "")
	v.SetDefault("sensor.address", 0x55)
	v.SetDefault("sensor.sim", false)

	v.SetDefault("monitor.id", "0")
	v.SetDefault("monitor.pollInterval", 5*time.Second)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://127.0.0.1:1883")
	v.SetDefault("mqtt.clientId", "batteryd")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topicPrefix", "batteryd")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.timeout", 5*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.host", "127.0.0.1")
	v.SetDefault("http.port", 8089)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")
	v.SetDefault("logger.filePath", "")
	v.SetDefault("logger.maxSizeMB", 10)
	v.SetDefault("logger.maxBackups", 3)
	v.SetDefault("logger.maxAgeDays", 7)
}

// Flags registers the command-line flags understood by Load.
func Flags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "path to YAML config file")
	fs.Bool("sim", false, "use the simulated fuel gauge")
	fs.Bool("print-config", false, "print the effective configuration and exit")
	fs.String("log-level", "", "override logger.level")
}

// Load resolves the configuration. Precedence is flags, then environment
// (BATTERYD_SECTION_KEY), then the file at path, then defaults. An empty path
// skips the file.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if fs != nil {
		if f := fs.Lookup("sim"); f != nil {
			if err := v.BindPFlag("sensor.sim", f); err != nil {
				return nil, err
			}
		}
		if f := fs.Lookup("log-level"); f != nil && f.Changed {
			if err := v.BindPFlag("logger.level", f); err != nil {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var (
	ErrAddress      = errors.New("config: sensor.address must be a 7-bit I2C address")
	ErrPollInterval = errors.New("config: monitor.pollInterval must be positive")
	ErrMonitorID    = errors.New("config: monitor.id must be a single topic level")
	ErrHTTPPort     = errors.New("config: http.port out of range")
	ErrQoS          = errors.New("config: mqtt.qos must be 0, 1 or 2")
	ErrLogFormat    = errors.New("config: logger.format must be text or json")
)

func (c *Config) Validate() error {
	if c.Sensor.Address == 0 || c.Sensor.Address > 0x7F {
		return ErrAddress
	}
	if c.Monitor.PollInterval <= 0 {
		return ErrPollInterval
	}
	if c.Monitor.ID == "" || strings.ContainsAny(c.Monitor.ID, "/+#") {
		return ErrMonitorID
	}
	if c.HTTP.Enabled && (c.HTTP.Port <= 0 || c.HTTP.Port > 65535) {
		return ErrHTTPPort
	}
	if c.MQTT.QoS > 2 {
		return ErrQoS
	}
	switch c.Logger.Format {
	case "text", "json":
	default:
		return ErrLogFormat
	}
	return nil
}

// HTTPAddress is host:port for the API listener.
func (c *Config) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// YAML renders the effective configuration with secrets masked.
func (c *Config) YAML() ([]byte, error) {
	out := *c
	if out.MQTT.Password != "" {
		out.MQTT.Password = "***"
	}
	if out.Redis.Password != "" {
		out.Redis.Password = "***"
	}
	return yaml.Marshal(&out)
}
