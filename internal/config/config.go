package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultConnectTimeout    = 5 * time.Second
	DefaultRetryInterval     = 3 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultPongTimeout       = 10 * time.Second
	DefaultMaxMissedPongs    = 3
	DefaultMaxReconnects     = 10
	DefaultBaudRate          = 9600

	DefaultRotationThreshold = 5.0
	DefaultRotationDebounce  = 500 * time.Millisecond

	DefaultMinDistance        = 1.0
	DefaultMovingAverageCount = 3
	DefaultProjectionDistance = 100.0

	DefaultHTTPPort          = 8080
	DefaultBroadcastInterval = 2 * time.Second
)

// Default fallback constants used when a derived value cannot be computed.
// The magnitudes differ on purpose: motor yield and build rate fall back to
// nominal motor specs, dogleg to a typical planned curve rate.
const (
	DefaultFallbackMotorYield = 2.5
	DefaultFallbackDogleg     = 3.2
	DefaultFallbackBuildRate  = 2.5
	DefaultFallbackTurnRate   = 1.8
)

// Config is the top-level daemon configuration.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Connection ConnectionConfig `yaml:"connection"`
	Channels   ChannelsConfig   `yaml:"channels"`
	Drilling   DrillingConfig   `yaml:"drilling"`
	Limits     map[string]Range `yaml:"override_limits"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Server     ServerConfig     `yaml:"server"`
}

// ConnectionConfig holds all transport settings for the telemetry link.
// The link treats it as an immutable value: updates replace the whole struct
// and take effect on the next connect.
type ConnectionConfig struct {
	// Protocol is one of: tcp | udp | serial | websocket.
	Protocol string `yaml:"protocol"`

	// IPAddress and Port locate the rig telemetry server for tcp/udp/websocket.
	IPAddress string `yaml:"ip_address"`
	Port      int    `yaml:"port"`

	// SerialPort and BaudRate configure the serial transport.
	SerialPort string `yaml:"serial_port"`
	BaudRate   int    `yaml:"baud_rate"`

	// WITSLevel is the wire protocol level: 0, 1 or 2.
	// Only level 0 (tab-separated channel=value pairs) is parsed today.
	WITSLevel int `yaml:"wits_level"`

	// ProxyMode bridges a websocket endpoint to a downstream TCP target.
	// The target host/port are sent to the proxy in the hello frame.
	ProxyMode bool   `yaml:"proxy_mode"`
	TCPHost   string `yaml:"tcp_host"`
	TCPPort   int    `yaml:"tcp_port"`

	AutoConnect   bool `yaml:"auto_connect"`
	AutoReconnect bool `yaml:"auto_reconnect"`

	// Timeout bounds transport dialing (connect and testConnection).
	Timeout Duration `yaml:"timeout"`

	// RetryInterval is the delay between reconnect attempts.
	RetryInterval Duration `yaml:"retry_interval"`

	// MaxReconnects caps consecutive reconnect attempts; once exhausted the
	// link settles at Disconnected and waits for a manual connect.
	MaxReconnects int `yaml:"max_reconnects"`

	// HeartbeatInterval is the ping cadence on the websocket transport.
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`

	// MaxMissedPongs is how many unanswered pings force the transport closed.
	MaxMissedPongs int `yaml:"max_missed_pongs"`
}

// ChannelsConfig maps WITS channel ids to their meaning.
type ChannelsConfig struct {
	// Definitions is the accepted channel schema. Samples carrying a channel
	// id not listed here are logged and the pair dropped at ingestion.
	// An empty list accepts every channel.
	Definitions []ChannelDef `yaml:"definitions"`

	// Role assignments: which channel feeds which engine input.
	RotarySpeed     int `yaml:"rotary_speed"`
	BitDepth        int `yaml:"bit_depth"`
	TVD             int `yaml:"tvd"`
	VerticalSection int `yaml:"vertical_section"`
}

// ChannelDef describes one accepted WITS channel.
type ChannelDef struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`

	// Kind is "numeric" or "text". Numeric channels reject text values.
	Kind string `yaml:"kind"`
}

// DrillingConfig holds BHA geometry, rates configuration and the target line.
type DrillingConfig struct {
	// BendAngle is the motor bend setting in degrees.
	BendAngle float64 `yaml:"bend_angle"`

	// BitToBend is the bit-to-bend distance in feet.
	BitToBend float64 `yaml:"bit_to_bend"`

	// ProjectionDistance is how far ahead of the bit projections look, in feet.
	ProjectionDistance float64 `yaml:"projection_distance"`

	// MinDistance is the smallest survey separation usable for rate
	// computation, in feet.
	MinDistance float64 `yaml:"min_distance"`

	// MovingAverageCount is how many recent surveys feed build/turn rates.
	MovingAverageCount int `yaml:"moving_average_count"`

	RotationThreshold float64       `yaml:"rotation_threshold"`
	RotationDebounce  Duration      `yaml:"rotation_debounce"`

	Fallbacks FallbacksConfig `yaml:"fallbacks"`
	Target    TargetConfig    `yaml:"target"`
}

// FallbacksConfig names the defaults returned when a derived value cannot be
// computed from the available inputs.
type FallbacksConfig struct {
	MotorYield float64 `yaml:"motor_yield"`
	Dogleg     float64 `yaml:"dogleg"`
	BuildRate  float64 `yaml:"build_rate"`
	TurnRate   float64 `yaml:"turn_rate"`
}

// TargetConfig is the planned target line the bit steers toward.
type TargetConfig struct {
	TVD         float64 `yaml:"tvd"`
	VS          float64 `yaml:"vs"`
	Inclination float64 `yaml:"inclination"`
	Azimuth     float64 `yaml:"azimuth"`
}

// Range is an inclusive [Min, Max] clamp for a manual override field.
// A nil bound is unconstrained on that side.
type Range struct {
	Min *float64 `yaml:"min"`
	Max *float64 `yaml:"max"`
}

// AlertsConfig holds all alerting rules and webhook targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines a threshold-based alert condition over steering values.
type AlertRule struct {
	// Name is the human-readable alert identifier.
	Name string `yaml:"name"`

	// Condition is an expression like "dogleg_needed > 4" or
	// "connection_state == disconnected".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	Cooldown Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// ServerConfig holds the HTTP/WebSocket surface settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, metrics and WebSocket hub listen on.
	HTTPPort int `yaml:"http_port"`

	// BroadcastInterval controls how often the hub pushes snapshots to clients.
	BroadcastInterval Duration `yaml:"broadcast_interval"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config pre-populated with default values.
func Defaults() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Protocol:          "tcp",
			BaudRate:          DefaultBaudRate,
			Timeout:           Duration(DefaultConnectTimeout),
			RetryInterval:     Duration(DefaultRetryInterval),
			MaxReconnects:     DefaultMaxReconnects,
			HeartbeatInterval: Duration(DefaultHeartbeatInterval),
			MaxMissedPongs:    DefaultMaxMissedPongs,
			AutoReconnect:     true,
		},
		Drilling: DrillingConfig{
			ProjectionDistance: DefaultProjectionDistance,
			MinDistance:        DefaultMinDistance,
			MovingAverageCount: DefaultMovingAverageCount,
			RotationThreshold:  DefaultRotationThreshold,
			RotationDebounce:   Duration(DefaultRotationDebounce),
			Fallbacks: FallbacksConfig{
				MotorYield: DefaultFallbackMotorYield,
				Dogleg:     DefaultFallbackDogleg,
				BuildRate:  DefaultFallbackBuildRate,
				TurnRate:   DefaultFallbackTurnRate,
			},
		},
		Server: ServerConfig{
			HTTPPort:          DefaultHTTPPort,
			BroadcastInterval: Duration(DefaultBroadcastInterval),
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	c := cfg.Connection
	switch c.Protocol {
	case "tcp", "udp", "websocket":
		if c.IPAddress == "" {
			return fmt.Errorf("connection.ip_address is required for %s", c.Protocol)
		}
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("connection.port %d out of range", c.Port)
		}
	case "serial":
		if c.SerialPort == "" {
			return fmt.Errorf("connection.serial_port is required for serial")
		}
		if c.BaudRate <= 0 {
			return fmt.Errorf("connection.baud_rate must be positive")
		}
	default:
		return fmt.Errorf("connection.protocol: unknown protocol %q", c.Protocol)
	}
	switch c.WITSLevel {
	case 0, 1, 2:
	default:
		return fmt.Errorf("connection.wits_level must be 0, 1 or 2")
	}
	if c.ProxyMode && c.Protocol != "websocket" {
		return fmt.Errorf("connection.proxy_mode requires the websocket protocol")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("connection.timeout must be positive")
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("connection.retry_interval must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("connection.heartbeat_interval must be positive")
	}
	if c.MaxMissedPongs <= 0 {
		return fmt.Errorf("connection.max_missed_pongs must be positive")
	}

	d := cfg.Drilling
	if d.MinDistance <= 0 {
		return fmt.Errorf("drilling.min_distance must be positive")
	}
	if d.MovingAverageCount < 2 {
		return fmt.Errorf("drilling.moving_average_count must be at least 2")
	}
	if d.RotationDebounce <= 0 {
		return fmt.Errorf("drilling.rotation_debounce must be positive")
	}

	seen := make(map[int]bool, len(cfg.Channels.Definitions))
	for i, def := range cfg.Channels.Definitions {
		if def.ID < 0 {
			return fmt.Errorf("channels.definitions[%d]: id must be non-negative", i)
		}
		if seen[def.ID] {
			return fmt.Errorf("channels.definitions[%d]: duplicate channel id %d", i, def.ID)
		}
		seen[def.ID] = true
		switch def.Kind {
		case "numeric", "text", "":
		default:
			return fmt.Errorf("channels.definitions[%d]: unknown kind %q", i, def.Kind)
		}
	}

	for name, r := range cfg.Limits {
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			return fmt.Errorf("override_limits.%s: min exceeds max", name)
		}
	}
	return nil
}
