package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type Config struct {
	ServerURL  string        `mapstructure:"server_url"`
	WSURL      string        `mapstructure:"ws_url"`
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`

	ICEServers []ICEServer `mapstructure:"ice_servers"`

	// Screen-share capture presets, persisted across sessions.
	ScreenQuality string `mapstructure:"screen_quality"`
	ScreenFps     string `mapstructure:"screen_fps"`

	v *viper.Viper
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

	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("ws_url", "ws://localhost:8080/ws")
	v.SetDefault("username", "guest")
	v.SetDefault("password", "")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("screen_quality", "1080")
	v.SetDefault("screen_fps", "30")
	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.v = v
	return &cfg, nil
}

// SaveScreenPrefs writes the current screen-share presets back to the
// config file so they survive restarts. A missing config file is not
// an error; the prefs then live only for this session.
func (c *Config) SaveScreenPrefs(quality, fps string) error {
	c.ScreenQuality = quality
	c.ScreenFps = fps
	if c.v == nil {
		return nil
	}
	c.v.Set("screen_quality", quality)
	c.v.Set("screen_fps", fps)
	if err := c.v.WriteConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return nil
}
