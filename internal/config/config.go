package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dkeye/callrelay/internal/telemetry"
	"github.com/fsnotify/fsnotify"
	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "SIGNAL"

type SignalConfig struct {
	InitiateRate  float64 `mapstructure:"initiate_rate"`
	InitiateBurst int     `mapstructure:"initiate_burst"`

	// Backpressure is "drop" or "kick".
	Backpressure string `mapstructure:"backpressure"`
}

type ICEServerConfig struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	// AllowedOrigins lists browser origins that may open the signaling
	// socket; "*" admits all. Empty means same host only, or anything in
	// debug mode.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	Signal     SignalConfig      `mapstructure:"signal"`
	ICEServers []ICEServerConfig `mapstructure:"ice_servers"`
	Telemetry  telemetry.Config  `mapstructure:"telemetry"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("secret", "change-me")
	v.SetDefault("log_level", "info")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("signal.initiate_rate", 2)
	v.SetDefault("signal.initiate_burst", 5)
	v.SetDefault("signal.backpressure", "drop")
	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
		{"urls": []string{"stun:stun1.l.google.com:19302"}},
	})
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.insecure", true)
}

// Load reads config/config.<CONFIG_ENV>.yaml (or --config), then SIGNAL_*
// env vars, then flags. A missing file is not an error; a broken one is.
func Load(args []string) (*Config, *viper.Viper, error) {
	fs := pflag.NewFlagSet("callrelay", pflag.ContinueOnError)
	fs.Int("port", 8080, "listen port")
	fs.String("mode", "release", "gin mode: debug, release or test")
	file := fs.String("config", "", "config file path")
	if err := fs.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("parse flags: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	fileName := *file
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, name := range []string{"port", "mode"} {
		if f := fs.Lookup(name); f.Changed {
			if err := v.BindPFlag(name, f); err != nil {
				return nil, nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", v.ConfigFileUsed()).Msg("loaded config")
	}

	cfg, err := Decode(v)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return cfg, v, nil
}

// Decode unmarshals and validates the current state of v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.PingPeriod <= 0 || c.PongWait <= c.PingPeriod {
		return fmt.Errorf("pong_wait (%s) must exceed ping_period (%s)", c.PongWait, c.PingPeriod)
	}
	if c.SendBuffer < 1 {
		return errors.New("send_buffer must be at least 1")
	}
	if c.ReadLimit < 1 {
		return errors.New("read_limit must be positive")
	}
	switch c.Signal.Backpressure {
	case "", "drop", "kick":
	default:
		return fmt.Errorf("signal.backpressure %q: want drop or kick", c.Signal.Backpressure)
	}
	for _, o := range c.AllowedOrigins {
		if o != "*" && !validOrigin(o) {
			return fmt.Errorf("allowed_origins: %q is not scheme://host[:port]", o)
		}
	}
	for i, s := range c.ICEServers {
		if err := validateICEServer(s); err != nil {
			return fmt.Errorf("ice_servers[%d]: %w", i, err)
		}
	}
	return nil
}

func validOrigin(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && (u.Path == "" || u.Path == "/")
}

func validateICEServer(s ICEServerConfig) error {
	if len(s.URLs) == 0 {
		return errors.New("missing urls")
	}
	for _, raw := range s.URLs {
		u, err := stun.ParseURI(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("url %q: %w", raw, err)
		}
		if u.Scheme == stun.SchemeTypeTURN || u.Scheme == stun.SchemeTypeTURNS {
			if s.Username == "" || s.Credential == "" {
				return fmt.Errorf("url %q: turn urls require username and credential", raw)
			}
		}
	}
	return nil
}

// WebRTCICEServers converts the configured servers to the shape browsers
// pass to RTCPeerConnection.
func (c *Config) WebRTCICEServers() []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(c.ICEServers))
	for _, s := range c.ICEServers {
		srv := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
		}
		out = append(out, srv)
	}
	return out
}

// Watch calls fn with the re-decoded config every time the file changes.
// Invalid edits are logged and skipped.
func Watch(v *viper.Viper, fn func(*Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := Decode(v)
		if err != nil {
			log.Error().Err(err).Str("module", "config").Str("file", e.Name).Msg("ignoring invalid config change")
			return
		}
		log.Info().Str("module", "config").Str("file", e.Name).Str("op", e.Op.String()).Msg("config reloaded")
		fn(cfg)
	})
	v.WatchConfig()
}
