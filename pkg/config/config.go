// Package config parses the four frozen configuration documents described
// by spec.md section 6 (venues, instruments, alert definitions/thresholds,
// feature flags) into one immutable Config value. The core consumes Config
// once at startup; it never watches the file for changes.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	validator "github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root document. Every nested block maps to one of the four
// configuration documents from spec.md section 6, plus the ambient
// infrastructure blocks (server, storage, notify) the core also treats as
// frozen at startup.
type Config struct {
	Environment string `yaml:"environment" validate:"required"`
	LogLevel    string `yaml:"log_level" default:"info"`

	Server struct {
		Port                 int           `yaml:"port" default:"8080"`
		ReadTimeout          time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout         time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout      time.Duration `yaml:"shutdown_timeout" default:"30s"`
		SlowRequestThreshold time.Duration `yaml:"slow_request_threshold" default:"1s"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	Redis struct {
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"6379"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		PoolSize     int           `yaml:"pool_size" default:"10"`
		MinIdleConns int           `yaml:"min_idle_conns" default:"5"`
		PoolTimeout  time.Duration `yaml:"pool_timeout" default:"30s"`
		KeyPrefix    string        `yaml:"key_prefix" default:"marketsentry"`
	} `yaml:"redis"`

	ClickHouse struct {
		Host             string        `yaml:"host" validate:"required"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"marketsentry"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert" default:"true"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`

	ColdStore struct {
		BatchSize     int           `yaml:"batch_size" default:"30"`
		FlushInterval time.Duration `yaml:"flush_interval" default:"1s"`
		RetryMax      int           `yaml:"retry_max" default:"5"`
		RetryBackoff  time.Duration `yaml:"retry_backoff" default:"500ms"`
		MaxQueueDepth int           `yaml:"max_queue_depth" default:"10000"`
	} `yaml:"cold_store"`

	HotStore struct {
		BufferSize int `yaml:"buffer_size" default:"4096"`
	} `yaml:"hot_store"`

	// Kafka is the optional inter-process snapshot/alert bus used when the
	// four logical services (ingestion, metrics, detector, storage/health)
	// run as separate processes per spec.md §6's "Process interface". An
	// empty Brokers list disables the bridge and keeps everything
	// in-process.
	Kafka struct {
		Brokers       []string      `yaml:"brokers"`
		SnapshotTopic string        `yaml:"snapshot_topic" default:"marketsentry.snapshots"`
		AlertTopic    string        `yaml:"alert_topic" default:"marketsentry.alerts"`
		RequiredAcks  int           `yaml:"required_acks" default:"-1"`
		Compression   string        `yaml:"compression" default:"gzip"`
		BatchSize     int           `yaml:"batch_size" default:"100"`
		BatchBytes    int           `yaml:"batch_bytes" default:"1048576"`
		BatchTimeout  time.Duration `yaml:"batch_timeout" default:"1s"`
		WriteTimeout  time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout   time.Duration `yaml:"read_timeout" default:"10s"`
		MaxAttempts   int           `yaml:"max_attempts" default:"3"`
		Async         bool          `yaml:"async"`
	} `yaml:"kafka"`

	Notify struct {
		SlackWebhookURL string        `yaml:"slack_webhook_url"`
		HTTPTimeout     time.Duration `yaml:"http_timeout" default:"5s"`
	} `yaml:"notify"`

	Features FeaturesConfig `yaml:"features"`

	Venues          []VenueConfig         `yaml:"venues" validate:"required,min=1,dive"`
	AlertDefs       []AlertDefConfig      `yaml:"alert_definitions" validate:"required,min=1,dive"`
	Thresholds      []ThresholdConfig     `yaml:"thresholds" validate:"dive"`
	BasisPairs      []BasisPairConfig     `yaml:"basis_pairs" validate:"dive"`
	CrossVenuePairs []CrossVenuePairConfig `yaml:"cross_venue_pairs" validate:"dive"`
}

// BasisPairConfig names one perp/spot pair the metrics engine tracks basis
// for: the perpetual side on PerpVenue and the spot side on SpotVenue, both
// quoting Instrument.
type BasisPairConfig struct {
	Instrument string `yaml:"instrument" validate:"required"`
	PerpVenue  string `yaml:"perp_venue" validate:"required"`
	SpotVenue  string `yaml:"spot_venue" validate:"required"`
}

// CrossVenuePairConfig names one same-instrument pair across two venues the
// metrics engine tracks divergence for.
type CrossVenuePairConfig struct {
	Instrument string `yaml:"instrument" validate:"required"`
	VenueA     string `yaml:"venue_a" validate:"required"`
	VenueB     string `yaml:"venue_b" validate:"required"`
}

// FeaturesConfig holds the feature-flag document: z-score window sizing
// and the gap thresholds that drive reset/time-based-gap decisions.
type FeaturesConfig struct {
	ZScoreWindowSize        int           `yaml:"zscore_window_size" default:"300"`
	ZScoreMinSamples        int           `yaml:"zscore_min_samples" default:"30"`
	ZScoreMinStd            string        `yaml:"zscore_min_std" default:"0.0001"`
	ZScoreWarmupLogInterval time.Duration `yaml:"zscore_warmup_log_interval" default:"30s"`
	GapResetThreshold       time.Duration `yaml:"gap_reset_threshold" default:"5s"`
	DepthLevelsBps          []int         `yaml:"depth_levels_bps"`
	BasisStaleness          time.Duration `yaml:"basis_staleness" default:"5s"`
	EscalationScanInterval  time.Duration `yaml:"escalation_scan_interval" default:"1s"`
	AlertStoreBuffer        int           `yaml:"alert_store_buffer" default:"256"`
	AlertDispatchBuffer     int           `yaml:"alert_dispatch_buffer" default:"256"`
}

// InstrumentConfig is one instrument a venue watches: its normalized id plus
// the venue-specific symbol used on the wire.
type InstrumentConfig struct {
	Instrument    string `yaml:"instrument" validate:"required"`
	VenueSymbol   string `yaml:"venue_symbol" validate:"required"`
	DepthCaptured int    `yaml:"depth_captured" default:"25"`
}

// VenueConfig is one entry of the venues document.
type VenueConfig struct {
	Name        string             `yaml:"name" validate:"required"`
	Protocol    string             `yaml:"protocol" validate:"required,oneof=binance okx"`
	WSURL       string             `yaml:"ws_url" validate:"required"`
	RESTBaseURL string             `yaml:"rest_base_url"`
	Instruments []InstrumentConfig `yaml:"instruments" validate:"required,min=1,dive"`

	PingInterval time.Duration `yaml:"ping_interval" default:"20s"`
	PongTimeout  time.Duration `yaml:"pong_timeout" default:"10s"`

	InitialBackoff    time.Duration `yaml:"initial_backoff" default:"500ms"`
	MaxBackoff        time.Duration `yaml:"max_backoff" default:"30s"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" default:"2.0"`
	MaxAttempts       int           `yaml:"max_attempts" default:"8"`

	GapTimeout    time.Duration `yaml:"gap_timeout" default:"5s"`
	RESTPollRate  float64       `yaml:"rest_poll_rate" default:"1.0"`
	RESTPollBurst float64       `yaml:"rest_poll_burst" default:"1.0"`
}

// AlertDefConfig is one entry of the alert-definitions document.
type AlertDefConfig struct {
	AlertType          string   `yaml:"alert_type" validate:"required"`
	MetricName         string   `yaml:"metric_name" validate:"required"`
	DefaultPriority    string   `yaml:"default_priority" validate:"required,oneof=P1 P2 P3"`
	DefaultSeverity    string   `yaml:"default_severity" default:"warning"`
	Comparison         string   `yaml:"comparison" validate:"required,oneof=gt lt abs_gt abs_lt"`
	RequiresZScore     bool     `yaml:"requires_zscore"`
	PersistenceSeconds int      `yaml:"persistence_seconds"`
	ThrottleSeconds    int      `yaml:"throttle_seconds" default:"60"`
	EscalationSeconds  int      `yaml:"escalation_seconds"`
	EscalatesTo        string   `yaml:"escalates_to"`
	Channels           []string `yaml:"channels"`
	Enabled            bool     `yaml:"enabled" default:"true"`
}

// ThresholdConfig is one entry of the per-instrument thresholds document.
// Instrument "*" is the wildcard fallback.
type ThresholdConfig struct {
	AlertType        string  `yaml:"alert_type" validate:"required"`
	Instrument       string  `yaml:"instrument" validate:"required"`
	PrimaryThreshold string  `yaml:"primary_threshold" validate:"required"`
	ZScoreThreshold  *string `yaml:"zscore_threshold"`
	PriorityOverride *string `yaml:"priority_override" validate:"omitempty,oneof=P1 P2 P3"`
	Enabled          bool    `yaml:"enabled" default:"true"`
}

// Load reads, defaults, and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides secrets/endpoints with
// environment variables, following the teacher's LoadWithEnv convention.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		c.Notify.SlackWebhookURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	return c, nil
}

// Validate checks the struct tags, then the cross-field constraints the
// validator tags cannot express on their own: alert definitions must
// reference escalation targets that exist, and thresholds must reference
// defined alert types.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}

	alertTypes := make(map[string]bool, len(c.AlertDefs))
	for _, d := range c.AlertDefs {
		if alertTypes[d.AlertType] {
			return fmt.Errorf("duplicate alert_type %q", d.AlertType)
		}
		alertTypes[d.AlertType] = true
	}
	for _, d := range c.AlertDefs {
		if d.EscalationSeconds > 0 {
			if d.EscalatesTo == "" {
				return fmt.Errorf("alert_type %q has escalation_seconds but no escalates_to", d.AlertType)
			}
			if !alertTypes[d.EscalatesTo] {
				return fmt.Errorf("alert_type %q escalates_to unknown alert_type %q", d.AlertType, d.EscalatesTo)
			}
		}
	}
	for _, t := range c.Thresholds {
		if !alertTypes[t.AlertType] {
			return fmt.Errorf("threshold references unknown alert_type %q", t.AlertType)
		}
	}

	seenVenue := make(map[string]bool, len(c.Venues))
	for _, venue := range c.Venues {
		if seenVenue[venue.Name] {
			return fmt.Errorf("duplicate venue name %q", venue.Name)
		}
		seenVenue[venue.Name] = true
	}

	for _, p := range c.BasisPairs {
		if !seenVenue[p.PerpVenue] {
			return fmt.Errorf("basis_pair for %q references unknown perp_venue %q", p.Instrument, p.PerpVenue)
		}
		if !seenVenue[p.SpotVenue] {
			return fmt.Errorf("basis_pair for %q references unknown spot_venue %q", p.Instrument, p.SpotVenue)
		}
	}
	for _, p := range c.CrossVenuePairs {
		if !seenVenue[p.VenueA] {
			return fmt.Errorf("cross_venue_pair for %q references unknown venue_a %q", p.Instrument, p.VenueA)
		}
		if !seenVenue[p.VenueB] {
			return fmt.Errorf("cross_venue_pair for %q references unknown venue_b %q", p.Instrument, p.VenueB)
		}
	}

	return nil
}
