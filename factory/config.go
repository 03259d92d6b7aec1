package factory

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/opd-ai/headunit/interceptor"
	"github.com/opd-ai/headunit/interfaces"
	"github.com/opd-ai/headunit/real"
)

// Validation constants for configuration bounds checking.
const (
	// MinSendTimeout and MaxSendTimeout bound the send timeout in milliseconds; 0 disables it.
	MinSendTimeout = 0
	MaxSendTimeout = 600000
	// MinWorkerCount and MaxWorkerCount bound the I/O pool size.
	MinWorkerCount = 1
	MaxWorkerCount = 64
	// MinQueueDepth and MaxQueueDepth bound every buffered queue.
	MinQueueDepth = 1
	MaxQueueDepth = 65536
	// MinRetryAttempts and MaxRetryAttempts bound stream transport write attempts.
	MinRetryAttempts = 1
	MaxRetryAttempts = 100
	// MinTouchSize and MaxTouchSize bound the touch surface in pixels.
	MinTouchSize = 1
	MaxTouchSize = 8192
)

// ErrInvalidConfig is returned by Validate and LoadConfigFile
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full head-unit configuration
type Config struct {
	UseSimulation         bool   `yaml:"use_simulation"`
	SendTimeout           int    `yaml:"send_timeout_ms"`
	WorkerCount           int    `yaml:"worker_count"`
	StrandQueueDepth      int    `yaml:"strand_queue_depth"`
	OutboxDepth           int    `yaml:"outbox_depth"`
	SideChannelQueueDepth int    `yaml:"side_channel_queue_depth"`
	RetryAttempts         int    `yaml:"retry_attempts"`
	EnableEncryption      bool   `yaml:"enable_encryption"`
	LogLevel              string `yaml:"log_level"`
	TouchWidth            uint32 `yaml:"touch_width"`
	TouchHeight           uint32 `yaml:"touch_height"`
	MicrophoneCodec       string `yaml:"microphone_codec"`
	MetricsNamespace      string `yaml:"metrics_namespace"`
}

// DefaultConfig returns the built-in configuration.
//
// Default Value Rationale:
//   - SendTimeout: 5000ms - a stalled USB endpoint is detected well before the phone gives up
//   - WorkerCount: 4 - transport completions and handler work rarely need more
//   - OutboxDepth: 64 - enough for a full setup burst across all channels
//   - RetryAttempts: 3 - rides over transient endpoint stalls
func DefaultConfig() *Config {
	return &Config{
		UseSimulation:         false,
		SendTimeout:           5000,
		WorkerCount:           4,
		StrandQueueDepth:      256,
		OutboxDepth:           interceptor.DefaultOutboxDepth,
		SideChannelQueueDepth: 256,
		RetryAttempts:         3,
		EnableEncryption:      true,
		LogLevel:              "info",
		TouchWidth:            interceptor.DefaultTouchWidth,
		TouchHeight:           interceptor.DefaultTouchHeight,
		MicrophoneCodec:       interceptor.CodecPCM,
		MetricsNamespace:      "headunit",
	}
}

// LoadConfigFile reads a YAML file over the defaults. Keys missing from the
// file keep their default value.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrInvalidConfig, path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "LoadConfigFile",
		"path":     path,
	}).Info("Loaded configuration file")
	return config, nil
}

// Validate checks every field against its bounds
func (c *Config) Validate() error {
	checks := []struct {
		name     string
		value    int
		min, max int
	}{
		{"send_timeout_ms", c.SendTimeout, MinSendTimeout, MaxSendTimeout},
		{"worker_count", c.WorkerCount, MinWorkerCount, MaxWorkerCount},
		{"strand_queue_depth", c.StrandQueueDepth, MinQueueDepth, MaxQueueDepth},
		{"outbox_depth", c.OutboxDepth, MinQueueDepth, MaxQueueDepth},
		{"side_channel_queue_depth", c.SideChannelQueueDepth, MinQueueDepth, MaxQueueDepth},
		{"retry_attempts", c.RetryAttempts, MinRetryAttempts, MaxRetryAttempts},
		{"touch_width", int(c.TouchWidth), MinTouchSize, MaxTouchSize},
		{"touch_height", int(c.TouchHeight), MinTouchSize, MaxTouchSize},
	}
	for _, check := range checks {
		if check.value < check.min || check.value > check.max {
			return fmt.Errorf("%w: %s=%d outside [%d, %d]", ErrInvalidConfig, check.name, check.value, check.min, check.max)
		}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalidConfig, err)
	}
	if c.MicrophoneCodec != interceptor.CodecPCM && c.MicrophoneCodec != interceptor.CodecOpus {
		return fmt.Errorf("%w: microphone_codec %q", ErrInvalidConfig, c.MicrophoneCodec)
	}
	return nil
}

// Clone returns a copy of c
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// MessengerConfig returns the send pipeline part of the configuration
func (c *Config) MessengerConfig() *interfaces.MessengerConfig {
	return &interfaces.MessengerConfig{
		SendTimeout:      c.SendTimeout,
		WorkerCount:      c.WorkerCount,
		QueueDepth:       c.StrandQueueDepth,
		EnableEncryption: c.EnableEncryption,
	}
}

// StreamConfig returns the real transport part of the configuration
func (c *Config) StreamConfig() real.StreamConfig {
	return real.StreamConfig{
		RetryAttempts: c.RetryAttempts,
		QueueDepth:    c.StrandQueueDepth,
	}
}

// RegistryOptions returns the handler part of the configuration
func (c *Config) RegistryOptions() interceptor.Options {
	return interceptor.Options{
		TouchWidth:      c.TouchWidth,
		TouchHeight:     c.TouchHeight,
		MicrophoneCodec: c.MicrophoneCodec,
	}
}

// ApplyLogLevel sets the global logrus level; an unparsable level leaves it unchanged
func (c *Config) ApplyLogLevel() {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "ApplyLogLevel",
			"value":    c.LogLevel,
			"error":    err.Error(),
		}).Warn("Invalid log level, keeping current level")
		return
	}
	logrus.SetLevel(level)
}

// ApplyEnvironmentOverrides updates configuration from HEADUNIT_* environment
// variables. Unparsable or out-of-bounds values are logged and ignored.
func ApplyEnvironmentOverrides(config *Config) {
	parseBoolSetting("HEADUNIT_USE_SIMULATION", &config.UseSimulation)
	parseBoolSetting("HEADUNIT_ENABLE_ENCRYPTION", &config.EnableEncryption)
	parseIntSetting("HEADUNIT_SEND_TIMEOUT", MinSendTimeout, MaxSendTimeout, &config.SendTimeout)
	parseIntSetting("HEADUNIT_WORKER_COUNT", MinWorkerCount, MaxWorkerCount, &config.WorkerCount)
	parseIntSetting("HEADUNIT_QUEUE_DEPTH", MinQueueDepth, MaxQueueDepth, &config.StrandQueueDepth)
	parseIntSetting("HEADUNIT_OUTBOX_DEPTH", MinQueueDepth, MaxQueueDepth, &config.OutboxDepth)
	parseIntSetting("HEADUNIT_SIDE_CHANNEL_DEPTH", MinQueueDepth, MaxQueueDepth, &config.SideChannelQueueDepth)
	parseIntSetting("HEADUNIT_RETRY_ATTEMPTS", MinRetryAttempts, MaxRetryAttempts, &config.RetryAttempts)
	parseUintSetting("HEADUNIT_TOUCH_WIDTH", &config.TouchWidth)
	parseUintSetting("HEADUNIT_TOUCH_HEIGHT", &config.TouchHeight)
	parseChoiceSetting("HEADUNIT_LOG_LEVEL", logLevels(), &config.LogLevel)
	parseChoiceSetting("HEADUNIT_MIC_CODEC", []string{interceptor.CodecPCM, interceptor.CodecOpus}, &config.MicrophoneCodec)
	if ns := os.Getenv("HEADUNIT_METRICS_NAMESPACE"); ns != "" {
		config.MetricsNamespace = ns
	}
}

func logLevels() []string {
	levels := make([]string, 0, len(logrus.AllLevels))
	for _, l := range logrus.AllLevels {
		levels = append(levels, l.String())
	}
	return levels
}

// parseBoolSetting safely parses a boolean variable and only updates target on success.
func parseBoolSetting(envVar string, target *bool) {
	raw := os.Getenv(envVar)
	if raw == "" {
		return
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseBoolSetting",
			"env_var":     envVar,
			"value":       raw,
			"error":       err.Error(),
			"using_value": *target,
		}).Warn("Failed to parse environment variable, using default")
		return
	}
	*target = value
}

// parseIntSetting validates the value is within [lo, hi] and only updates target on success.
func parseIntSetting(envVar string, lo, hi int, target *int) {
	raw := os.Getenv(envVar)
	if raw == "" {
		return
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseIntSetting",
			"env_var":     envVar,
			"value":       raw,
			"error":       err.Error(),
			"using_value": *target,
		}).Warn("Failed to parse environment variable, using default")
		return
	}
	if value < lo || value > hi {
		logrus.WithFields(logrus.Fields{
			"function":    "parseIntSetting",
			"env_var":     envVar,
			"value":       value,
			"min":         lo,
			"max":         hi,
			"using_value": *target,
		}).Warn("Environment variable out of bounds, using default")
		return
	}
	*target = value
}

func parseUintSetting(envVar string, target *uint32) {
	value := int(*target)
	parseIntSetting(envVar, MinTouchSize, MaxTouchSize, &value)
	*target = uint32(value)
}

func parseChoiceSetting(envVar string, choices []string, target *string) {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(envVar)))
	if raw == "" {
		return
	}
	for _, choice := range choices {
		if raw == choice {
			*target = raw
			return
		}
	}
	logrus.WithFields(logrus.Fields{
		"function":    "parseChoiceSetting",
		"env_var":     envVar,
		"value":       raw,
		"choices":     strings.Join(choices, ","),
		"using_value": *target,
	}).Warn("Unsupported environment variable value, using default")
}
