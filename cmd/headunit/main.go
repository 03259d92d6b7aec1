package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/opd-ai/headunit"
	"github.com/opd-ai/headunit/cryptor"
	"github.com/opd-ai/headunit/factory"
	"github.com/opd-ai/headunit/interfaces"
)

// CLIConfig holds the command-line settings
type CLIConfig struct {
	configFile  string
	device      string
	connect     string
	dialTimeout time.Duration
	key         string
	noise       bool
	metricsAddr string
	fxVerbose   bool
	help        bool
}

// parseCLIFlags parses command-line flags and returns the configuration.
func parseCLIFlags(fs *flag.FlagSet, args []string) (*CLIConfig, error) {
	config := &CLIConfig{}

	// Link
	fs.StringVar(&config.device, "device", "", "USB accessory endpoint to open read/write")
	fs.StringVar(&config.connect, "connect", "", "host:port of a phone accepting wireless projection")
	fs.DurationVar(&config.dialTimeout, "dial-timeout", 10*time.Second, "TCP connect timeout")

	// Session security
	fs.StringVar(&config.key, "key", "", "hex ChaCha20-Poly1305 session key (64 hex digits)")
	fs.BoolVar(&config.noise, "noise", false, "negotiate the session key with a Noise XX handshake")

	// Configuration and observability
	fs.StringVar(&config.configFile, "config", "", "YAML configuration file")
	fs.StringVar(&config.metricsAddr, "metrics-addr", "", "address to serve prometheus metrics on, empty disables")
	fs.BoolVar(&config.fxVerbose, "fx-verbose", false, "log dependency injection events")

	fs.BoolVar(&config.help, "help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return config, nil
}

// printUsage prints the usage information.
func printUsage(fs *flag.FlagSet) {
	fmt.Println("Android Auto head unit")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s -device /dev/usb_accessory -noise\n", os.Args[0])
	fmt.Printf("  %s -connect 192.168.49.1:5277 -key <hex>\n", os.Args[0])
	fmt.Println()
	fmt.Println("Options:")
	fs.PrintDefaults()
}

// validateCLIConfig validates the CLI configuration.
func validateCLIConfig(config *CLIConfig) error {
	if config.device != "" && config.connect != "" {
		return fmt.Errorf("-device and -connect are mutually exclusive")
	}
	if config.key != "" && config.noise {
		return fmt.Errorf("-key and -noise are mutually exclusive")
	}
	if config.key != "" {
		key, err := hex.DecodeString(config.key)
		if err != nil {
			return fmt.Errorf("invalid -key: %w", err)
		}
		if len(key) != cryptor.KeySize {
			return fmt.Errorf("invalid -key: need %d bytes, got %d", cryptor.KeySize, len(key))
		}
	}
	if config.connect != "" && config.dialTimeout <= 0 {
		return fmt.Errorf("dial timeout must be positive")
	}
	return nil
}

// loadConfig layers the file and HEADUNIT_* overrides over the defaults
func loadConfig(cli *CLIConfig) (*factory.Config, error) {
	config := factory.DefaultConfig()
	if cli.configFile != "" {
		var err error
		config, err = factory.LoadConfigFile(cli.configFile)
		if err != nil {
			return nil, err
		}
	}
	factory.ApplyEnvironmentOverrides(config)
	if cli.device == "" && cli.connect == "" {
		config.UseSimulation = true
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.ApplyLogLevel()
	return config, nil
}

// openLink opens the byte stream to the phone; nil in simulation
func openLink(cli *CLIConfig, config *factory.Config) (io.ReadWriteCloser, error) {
	switch {
	case config.UseSimulation:
		return nil, nil
	case cli.connect != "":
		conn, err := net.DialTimeout("tcp", cli.connect, cli.dialTimeout)
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", cli.connect, err)
		}
		return conn, nil
	default:
		f, err := os.OpenFile(cli.device, os.O_RDWR, 0)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cli.device, err)
		}
		return f, nil
	}
}

// writerOnly hides Close so the session, not the transport, owns the link
type writerOnly struct{ io.Writer }

func newTransport(config *factory.Config, link io.ReadWriteCloser) (interfaces.ITransportCloser, error) {
	var w io.Writer
	if link != nil {
		w = writerOnly{link}
	}
	return factory.NewTransportFactoryWithConfig(config).CreateTransport(w)
}

func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func newHeadUnit(lc fx.Lifecycle, config *factory.Config, transport interfaces.ITransportCloser, reg *prometheus.Registry) (*headunit.HeadUnit, error) {
	hu, err := headunit.New(context.Background(), headunit.Options{
		Config:     config,
		Transport:  transport,
		Registerer: reg,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return hu.Close()
		},
	})
	return hu, nil
}

// registerMetricsServer serves the registry over HTTP when an address is configured
func registerMetricsServer(lc fx.Lifecycle, cli *CLIConfig, reg *prometheus.Registry) {
	if cli.metricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	server := &http.Server{Addr: cli.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			ln, err := net.Listen("tcp", cli.metricsAddr)
			if err != nil {
				return fmt.Errorf("metrics listen: %w", err)
			}
			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logrus.WithFields(logrus.Fields{
						"function": "registerMetricsServer",
						"error":    err.Error(),
					}).Error("Metrics server stopped")
				}
			}()
			logrus.WithFields(logrus.Fields{
				"function": "registerMetricsServer",
				"addr":     cli.metricsAddr,
			}).Info("Serving metrics")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}

// sessionCipher returns the configured static cipher, or nil
func sessionCipher(cli *CLIConfig) (interfaces.ICipher, error) {
	if cli.key == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(cli.key)
	if err != nil {
		return nil, err
	}
	return cryptor.NewAEADCipher(key, cryptor.LabelHeadUnit, cryptor.LabelPhone)
}

// runSession secures the link and serves it until the phone disconnects
func runSession(lc fx.Lifecycle, shutdowner fx.Shutdowner, cli *CLIConfig, hu *headunit.HeadUnit, link io.ReadWriteCloser) {
	if link == nil {
		logrus.WithFields(logrus.Fields{
			"function": "runSession",
		}).Warn("No link configured, running in simulation")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				defer close(done)
				err := serve(ctx, cli, hu, link)
				if err != nil {
					logrus.WithFields(logrus.Fields{
						"function": "runSession",
						"error":    err.Error(),
					}).Error("Session ended with error")
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			closeErr := link.Close()
			select {
			case <-done:
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
			return closeErr
		},
	})
}

func serve(ctx context.Context, cli *CLIConfig, hu *headunit.HeadUnit, link io.Reader) error {
	switch {
	case cli.noise:
		hs, err := cryptor.NewHandshake(cryptor.Initiator, cryptor.DHKey{})
		if err != nil {
			return err
		}
		if err := hu.Authenticate(ctx, link, hs); err != nil {
			return err
		}
	default:
		cipher, err := sessionCipher(cli)
		if err != nil {
			return err
		}
		if cipher != nil {
			hu.SetCipher(cipher)
		}
	}
	return hu.Serve(ctx, link)
}

// appOptions assembles the dependency graph
func appOptions(cli *CLIConfig) []fx.Option {
	return []fx.Option{
		fx.Supply(cli),
		fx.Provide(
			loadConfig,
			openLink,
			newTransport,
			newMetricsRegistry,
			newHeadUnit,
		),
		fx.Invoke(registerMetricsServer, runSession),
		fx.WithLogger(func() fxevent.Logger {
			if cli.fxVerbose {
				logger, err := zap.NewDevelopment()
				if err == nil {
					return &fxevent.ZapLogger{Logger: logger}
				}
			}
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	}
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	cli, err := parseCLIFlags(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if cli.help {
		printUsage(fs)
		os.Exit(0)
	}
	if err := validateCLIConfig(cli); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Use -help for usage information.\n")
		os.Exit(1)
	}

	fx.New(appOptions(cli)...).Run()
}
