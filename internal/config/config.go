package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/diogoX451/callrelay/pkg/types"
)

type Config struct {
	NATS  NATSConfig
	Relay RelayConfig
	App   AppConfig
}

type NATSConfig struct {
	URL            string
	Name           string
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type RelayConfig struct {
	NodeID        string `mapstructure:"node_id"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
	Subjects      []string
	ClientBuffer  int `mapstructure:"client_buffer"`
}

type AppConfig struct {
	Port      string
	PublicDir string `mapstructure:"public_dir"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`
}

// APISubject é o subject de request/reply do nó configurado
func (c *Config) APISubject() string {
	return types.APISubject(c.Relay.SubjectPrefix, c.Relay.NodeID)
}

// Load lê defaults, arquivo opcional (path) e env CALLRELAY_*. NATS_URL,
// NODE_ID e PORT continuam aceitos.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("nats.url", "nats://localhost:5800")
	v.SetDefault("nats.name", "callrelay")
	v.SetDefault("nats.max_reconnects", 0)
	v.SetDefault("nats.reconnect_wait", "3s")
	v.SetDefault("nats.connect_timeout", "2s")
	v.SetDefault("nats.request_timeout", "5s")

	v.SetDefault("relay.node_id", "agent_node_1")
	v.SetDefault("relay.subject_prefix", types.DefaultAPIPrefix)
	v.SetDefault("relay.subjects", types.DefaultEventSubjects())
	v.SetDefault("relay.client_buffer", 64)

	v.SetDefault("app.port", "3000")
	v.SetDefault("app.public_dir", "public")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "text")
	v.SetDefault("app.log_file", "")

	v.SetEnvPrefix("CALLRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("nats.url", "CALLRELAY_NATS_URL", "NATS_URL")
	_ = v.BindEnv("relay.node_id", "CALLRELAY_RELAY_NODE_ID", "NODE_ID")
	_ = v.BindEnv("app.port", "CALLRELAY_APP_PORT", "PORT")
	_ = v.BindEnv("nats.max_reconnects")
	_ = v.BindEnv("nats.reconnect_wait")
	_ = v.BindEnv("nats.request_timeout")
	_ = v.BindEnv("relay.subjects")
	_ = v.BindEnv("app.public_dir")
	_ = v.BindEnv("app.log_level")
	_ = v.BindEnv("app.log_format")
	_ = v.BindEnv("app.log_file")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	if c.Relay.NodeID == "" {
		return fmt.Errorf("relay.node_id is required")
	}
	if len(c.Relay.Subjects) == 0 {
		return fmt.Errorf("relay.subjects must not be empty")
	}
	if c.NATS.ReconnectWait <= 0 {
		return fmt.Errorf("nats.reconnect_wait must be positive")
	}
	if c.NATS.RequestTimeout <= 0 {
		return fmt.Errorf("nats.request_timeout must be positive")
	}
	return nil
}
