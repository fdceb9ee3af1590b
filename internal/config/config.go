package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode     string `mapstructure:"mode"`
	LogLevel string `mapstructure:"log_level"`

	SignalURL      string `mapstructure:"signal_url"`
	DisplayName    string `mapstructure:"display_name"`
	PhotoURL       string `mapstructure:"photo_url"`
	Identity       string `mapstructure:"identity"`
	IdentitySecret string `mapstructure:"identity_secret"`

	ICEServers []string `mapstructure:"ice_servers"`
	TURNUser   string   `mapstructure:"turn_user"`
	TURNPass   string   `mapstructure:"turn_pass"`

	MaxParticipants   int           `mapstructure:"max_participants"`
	InitiatorStagger  time.Duration `mapstructure:"initiator_stagger"`
	SignalBufferLimit int           `mapstructure:"signal_buffer_limit"`
	SignalBufferTTL   time.Duration `mapstructure:"signal_buffer_ttl"`

	StatusAddr string        `mapstructure:"status_addr"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`

	SpeakingThreshold float64       `mapstructure:"speaking_threshold"`
	SpeakingInterval  time.Duration `mapstructure:"speaking_interval"`
}

// flagKeys maps CLI flags to config keys.
var flagKeys = map[string]string{
	"signal-url":   "signal_url",
	"name":         "display_name",
	"photo":        "photo_url",
	"identity":     "identity",
	"status-addr":  "status_addr",
	"log-level":    "log_level",
	"ice":          "ice_servers",
	"turn-user":    "turn_user",
	"turn-pass":    "turn_pass",
	"max-peers":    "max_participants",
	"stagger":      "initiator_stagger",
	"buffer-limit": "signal_buffer_limit",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("signal_url", "ws://localhost:9000/ws")
	v.SetDefault("display_name", "Invitado")
	v.SetDefault("photo_url", "")
	v.SetDefault("identity", "")
	v.SetDefault("identity_secret", "")
	v.SetDefault("ice_servers", []string{
		"stun:stun.l.google.com:19302",
		"stun:stun1.l.google.com:19302",
		"stun:global.stun.twilio.com:3478",
	})
	v.SetDefault("turn_user", "")
	v.SetDefault("turn_pass", "")
	v.SetDefault("max_participants", 10)
	v.SetDefault("initiator_stagger", "300ms")
	v.SetDefault("signal_buffer_limit", 32)
	v.SetDefault("signal_buffer_ttl", "30s")
	v.SetDefault("status_addr", "127.0.0.1:8081")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("speaking_threshold", 2.5)
	v.SetDefault("speaking_interval", "120ms")
}

// Load reads config/config.<CONFIG_ENV>.yaml, MESHCALL_* env and the given flags, in rising priority.
func Load(flags *pflag.FlagSet) (*Config, error) {
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

	v.SetEnvPrefix("MESHCALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Debug().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Str("signal_url", cfg.SignalURL).Str("status_addr", cfg.StatusAddr).Msg("config ready")
	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.SignalURL == "" {
		return errors.New("signal_url is required")
	}
	if c.MaxParticipants < 2 {
		return fmt.Errorf("max_participants must be at least 2, got %d", c.MaxParticipants)
	}
	if c.Identity == "" {
		c.Identity = "guest-" + uuid.NewString()
	}
	c.DisplayName = strings.TrimSpace(c.DisplayName)
	return nil
}
