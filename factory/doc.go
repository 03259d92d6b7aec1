// Package factory builds head-unit configuration and transports.
//
// Configuration is layered: DefaultConfig, then an optional YAML file read by
// LoadConfigFile, then HEADUNIT_* environment variables applied by
// ApplyEnvironmentOverrides. Environment values that fail to parse or fall
// outside their bounds are logged at warning level and ignored.
//
// # Environment
//
//   - HEADUNIT_USE_SIMULATION: "true" selects the simulated transport
//   - HEADUNIT_SEND_TIMEOUT: milliseconds per send session, 0 disables
//   - HEADUNIT_WORKER_COUNT: I/O pool goroutines
//   - HEADUNIT_QUEUE_DEPTH, HEADUNIT_OUTBOX_DEPTH, HEADUNIT_SIDE_CHANNEL_DEPTH: queue sizes
//   - HEADUNIT_RETRY_ATTEMPTS: stream transport write attempts
//   - HEADUNIT_ENABLE_ENCRYPTION: allow ENCRYPTED messages
//   - HEADUNIT_LOG_LEVEL: logrus level name
//   - HEADUNIT_TOUCH_WIDTH, HEADUNIT_TOUCH_HEIGHT: touch surface in pixels
//   - HEADUNIT_MIC_CODEC: "pcm" or "opus"
//   - HEADUNIT_METRICS_NAMESPACE: prometheus namespace
//
// # Usage
//
//	config, err := factory.LoadConfigFile("/etc/headunit.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	factory.ApplyEnvironmentOverrides(config)
//
//	f := factory.NewTransportFactoryWithConfig(config)
//	transport, err := f.CreateTransport(usbEndpoint)
//
// Tests use TestConfig and CreateSimulationForTesting, which select the
// simulated transport with a short timeout.
package factory
