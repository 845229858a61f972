package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Logger   LoggerConfig   `yaml:"logger"`
	Images   ImagesConfig   `yaml:"images"`
	Cursor   CursorConfig   `yaml:"cursor"`
}

type HTTPConfig struct {
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `mapstructure:"ssl_mode" yaml:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns" yaml:"max_conns"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
}

type ImagesConfig struct {
	Dir string `yaml:"dir"`
}

// CursorConfig bounds the lifetime of server-side cursors. A declared
// cursor pins a pooled connection until it is closed, so idle cursors
// are swept on a timer.
type CursorConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AddConfigPath(".") // if its current directory

	viper.AutomaticEnv()

	viper.SetDefault("images.dir", "images")
	viper.SetDefault("cursor.ttl", "10m")
	viper.SetDefault("cursor.sweep_interval", "1m")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_conns", 10)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if timeoutStr := viper.GetString("http.timeout"); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, err
		}
		config.HTTP.Timeout = timeout
	}

	return &config, nil
}

func MustLoadConfig() *Config {
	config, err := LoadConfig()
	if err != nil {
		log.Fatalf("Could not load configuration: %v", err)
	}
	return config
}
