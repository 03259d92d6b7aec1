package factory

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/headunit/interfaces"
	"github.com/opd-ai/headunit/real"
	"github.com/opd-ai/headunit/testing"
)

// ErrNilConfig is returned by UpdateConfig for a nil configuration
var ErrNilConfig = errors.New("config cannot be nil")

// TransportFactory creates transports based on configuration.
// It is safe for concurrent use; all methods are protected by an internal mutex.
type TransportFactory struct {
	mu            sync.RWMutex
	defaultConfig *Config
}

// TestConfigOption is a functional option for customizing test simulation configuration.
type TestConfigOption func(*Config)

// NewTransportFactory creates a factory from the defaults and HEADUNIT_* overrides
func NewTransportFactory() *TransportFactory {
	config := DefaultConfig()
	ApplyEnvironmentOverrides(config)
	return NewTransportFactoryWithConfig(config)
}

// NewTransportFactoryWithConfig creates a factory around an existing configuration
func NewTransportFactoryWithConfig(config *Config) *TransportFactory {
	if config == nil {
		config = DefaultConfig()
	}
	logConfigurationInfo(config)
	return &TransportFactory{defaultConfig: config.Clone()}
}

// logConfigurationInfo logs the final configuration settings for debugging purposes.
func logConfigurationInfo(config *Config) {
	logrus.WithFields(logrus.Fields{
		"function":          "NewTransportFactory",
		"use_simulation":    config.UseSimulation,
		"send_timeout":      config.SendTimeout,
		"worker_count":      config.WorkerCount,
		"retry_attempts":    config.RetryAttempts,
		"enable_encryption": config.EnableEncryption,
		"microphone_codec":  config.MicrophoneCodec,
	}).Info("Created transport factory with configuration")
}

// CreateTransport creates a transport writing to w, or a simulation when configured
func (f *TransportFactory) CreateTransport(w io.Writer) (interfaces.ITransportCloser, error) {
	f.mu.RLock()
	config := f.defaultConfig.Clone()
	f.mu.RUnlock()
	return f.CreateTransportWithConfig(w, config)
}

// CreateTransportWithConfig creates a transport with a custom configuration
func (f *TransportFactory) CreateTransportWithConfig(w io.Writer, config *Config) (interfaces.ITransportCloser, error) {
	if config == nil {
		config = f.GetCurrentConfig()
	}

	if config.UseSimulation {
		logrus.WithFields(logrus.Fields{
			"function": "CreateTransportWithConfig",
			"type":     "simulation",
		}).Info("Creating simulated transport")
		return testing.NewSimulatedTransport(), nil
	}

	if w == nil {
		return nil, fmt.Errorf("writer is required for real transport implementation")
	}

	logrus.WithFields(logrus.Fields{
		"function": "CreateTransportWithConfig",
		"type":     "real",
		"retries":  config.RetryAttempts,
	}).Info("Creating stream transport")

	return real.NewStreamTransport(w, config.StreamConfig()), nil
}

// WithSendTimeout sets the send timeout for the test configuration.
func WithSendTimeout(ms int) TestConfigOption {
	return func(c *Config) {
		c.SendTimeout = ms
	}
}

// WithEncryption enables or disables encryption for the test configuration.
func WithEncryption(enabled bool) TestConfigOption {
	return func(c *Config) {
		c.EnableEncryption = enabled
	}
}

// WithMicrophoneCodec sets the microphone codec for the test configuration.
func WithMicrophoneCodec(codec string) TestConfigOption {
	return func(c *Config) {
		c.MicrophoneCodec = codec
	}
}

// TestConfig returns a simulation configuration with a short timeout and a
// single worker, modified by opts.
func TestConfig(opts ...TestConfigOption) *Config {
	config := DefaultConfig()
	config.UseSimulation = true
	config.SendTimeout = 1000
	config.WorkerCount = 1
	config.RetryAttempts = 1
	for _, opt := range opts {
		opt(config)
	}
	return config
}

// CreateSimulationForTesting creates a simulated transport for tests
func (f *TransportFactory) CreateSimulationForTesting(opts ...TestConfigOption) *testing.SimulatedTransport {
	config := TestConfig(opts...)

	logrus.WithFields(logrus.Fields{
		"function":     "CreateSimulationForTesting",
		"send_timeout": config.SendTimeout,
	}).Info("Creating simulated transport for testing")

	return testing.NewSimulatedTransport()
}

// SwitchToSimulation switches the configuration to use simulation
func (f *TransportFactory) SwitchToSimulation() {
	f.setSimulation(true)
}

// SwitchToReal switches the configuration to use the stream transport
func (f *TransportFactory) SwitchToReal() {
	f.setSimulation(false)
}

func (f *TransportFactory) setSimulation(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "setSimulation",
		"previous": f.defaultConfig.UseSimulation,
		"current":  enabled,
	}).Info("Switching factory transport mode")

	f.defaultConfig.UseSimulation = enabled
}

// GetCurrentConfig returns a copy of the current default configuration
func (f *TransportFactory) GetCurrentConfig() *Config {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.defaultConfig.Clone()
}

// IsUsingSimulation returns true if the factory is configured for simulation
func (f *TransportFactory) IsUsingSimulation() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.defaultConfig.UseSimulation
}

// UpdateConfig validates and replaces the factory's default configuration
func (f *TransportFactory) UpdateConfig(config *Config) error {
	if config == nil {
		return ErrNilConfig
	}
	if err := config.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":       "UpdateConfig",
		"old_simulation": f.defaultConfig.UseSimulation,
		"new_simulation": config.UseSimulation,
		"old_timeout":    f.defaultConfig.SendTimeout,
		"new_timeout":    config.SendTimeout,
	}).Info("Updating factory configuration")

	f.defaultConfig = config.Clone()
	return nil
}
