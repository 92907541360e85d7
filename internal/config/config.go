package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode            string        `mapstructure:"mode"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	SFUBaseURL      string        `mapstructure:"sfu_base_url"`
	MeshBaseURL     string        `mapstructure:"mesh_base_url"`
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout"`
	ProbeCacheTTL   time.Duration `mapstructure:"probe_cache_ttl"`
	SwitchThreshold int           `mapstructure:"switch_threshold"`
	ReapInterval    time.Duration `mapstructure:"reap_interval"`
	RoomTTL         time.Duration `mapstructure:"room_ttl"`
	ReadLimit       int64         `mapstructure:"read_limit"`
	SendBuffer      int           `mapstructure:"send_buffer"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("sfu_base_url", "http://localhost:7880")
	v.SetDefault("mesh_base_url", "http://localhost:7890")
	v.SetDefault("probe_timeout", "5s")
	v.SetDefault("probe_cache_ttl", "2s")
	v.SetDefault("switch_threshold", 10)
	v.SetDefault("reap_interval", "5m")
	v.SetDefault("room_ttl", "30m")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("send_buffer", 32)

	v.SetEnvPrefix("SWITCHBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | SFU: %s | Mesh: %s\n", cfg.Mode, cfg.Port, cfg.SFUBaseURL, cfg.MeshBaseURL)
	return &cfg, nil
}
