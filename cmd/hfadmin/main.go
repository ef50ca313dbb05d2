package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/client_factory"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/config_loader"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/health"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/logger"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/otel"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/version"
)

// Command-line flags
var (
	configPath   string
	endpoint     string
	logLevel     string
	logFormat    string
	logOutput    string
	metricsPort  string
	outputFormat string
)

// Timeout constants
const (
	// OTelShutdownTimeout is the timeout for gracefully shutting down the OpenTelemetry TracerProvider
	OTelShutdownTimeout = 5 * time.Second
	// MetricsServerShutdownTimeout is the timeout for gracefully shutting down the metrics server
	MetricsServerShutdownTimeout = 5 * time.Second
)

// componentName identifies the CLI in logs, traces and metrics
const componentName = "hfadmin"

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hfadmin",
		Short: "HyperFleet admin client - resilient storage and instance administration",
		Long: `hfadmin runs storage administration calls (stat, copy, patch, delete)
through the retrying executor. Every call is retried with backoff while the
configured retry policy allows, and uploads and downloads are streamed.`,
		// Disable default completion command
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	// Add flags to root command (so they work on all subcommands)
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "",
		fmt.Sprintf("Path to admin client configuration file (can also use %s env var)", config_loader.EnvConfigPath))
	flags.StringVar(&endpoint, "endpoint", "",
		fmt.Sprintf("Service endpoint, overrides spec.endpoint. Env: %s", config_loader.EnvEndpoint))
	flags.StringVar(&logLevel, "log-level", "",
		"Log level (debug, info, warn, error). Env: LOG_LEVEL")
	flags.StringVar(&logFormat, "log-format", "",
		"Log format (text, json). Env: LOG_FORMAT")
	flags.StringVar(&logOutput, "log-output", "stderr",
		"Log output (stdout, stderr). Env: LOG_OUTPUT")
	flags.StringVar(&metricsPort, "metrics-port", "",
		"Expose Prometheus metrics on this port while the command runs")
	flags.StringVarP(&outputFormat, "output", "o", outputYAML,
		"Output format for metadata (yaml, json)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "HyperFleet Admin\n%s", version.Info())
			_, _ = fmt.Fprintf(out, "  User-Agent: %s\n", version.UserAgent())
		},
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newStatCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newCopyCommand())
	rootCmd.AddCommand(newPatchCommand())
	rootCmd.AddCommand(newRemoveCommand())

	return rootCmd
}

// buildLoggerConfig creates a logger configuration from environment variables
// and command-line flags. Flags take precedence over environment variables.
func buildLoggerConfig(component string) logger.Config {
	cfg := logger.ConfigFromEnv()

	// Override with command-line flags if provided
	if logLevel != "" {
		cfg.Level = logLevel
	}
	if logFormat != "" {
		cfg.Format = logFormat
	}
	if logOutput != "" {
		cfg.Output = logOutput
	}

	cfg.Component = component
	cfg.Version = version.Version

	return cfg
}

// loadConfig loads the configuration file, or the defaults when neither
// --config nor HFADMIN_CONFIG_PATH is set.
func loadConfig() (*config_loader.AdminClientConfig, error) {
	if configPath == "" && config_loader.ConfigPathFromEnv() == "" {
		config := config_loader.Default()
		if endpoint != "" {
			config.Spec.Endpoint = endpoint
		}
		return config, nil
	}
	return config_loader.Load(configPath, config_loader.WithEndpoint(endpoint))
}

// app holds what every command needs once bootstrapped
type app struct {
	log     logger.Logger
	config  *config_loader.AdminClientConfig
	clients *client_factory.Clients
	in      io.Reader
	out     io.Writer
	format  string

	cleanup []func()
}

// Close runs cleanup functions in reverse order
func (a *app) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

// newApp bootstraps logging, configuration, tracing, metrics and clients
func newApp(ctx context.Context, in io.Reader, out io.Writer) (*app, error) {
	log, err := logger.NewLogger(buildLoggerConfig(componentName))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if err := validateOutputFormat(outputFormat); err != nil {
		return nil, err
	}

	config, err := loadConfig()
	if err != nil {
		errCtx := logger.WithErrorField(ctx, err)
		log.Errorf(errCtx, "Failed to load admin client configuration")
		return nil, fmt.Errorf("failed to load admin client configuration: %w", err)
	}
	log.Debugf(ctx, "Admin client configuration loaded: name=%s endpoint=%s", config.Metadata.Name, config.GetEndpoint())

	a := &app{log: log, config: config, in: in, out: out, format: outputFormat}

	// Get trace sample ratio from environment (default: 10%)
	sampleRatio := otel.GetTraceSampleRatio(log, ctx)
	tp, err := otel.InitTracer(componentName, version.Version, sampleRatio)
	if err != nil {
		errCtx := logger.WithErrorField(ctx, err)
		log.Errorf(errCtx, "Failed to initialize OpenTelemetry")
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.cleanup = append(a.cleanup, func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), OTelShutdownTimeout)
		defer shutdownCancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			errCtx := logger.WithErrorField(shutdownCtx, err)
			log.Warnf(errCtx, "Failed to shutdown TracerProvider")
		}
	})

	var registry *prometheus.Registry
	if metricsPort != "" {
		registry = prometheus.NewRegistry()
		metricsServer := health.NewMetricsServer(log, metricsPort, health.MetricsConfig{
			Component: componentName,
			Version:   version.Version,
			Commit:    version.Commit,
			Registry:  registry,
		})
		if err := metricsServer.Start(ctx); err != nil {
			a.Close()
			errCtx := logger.WithErrorField(ctx, err)
			log.Errorf(errCtx, "Failed to start metrics server")
			return nil, fmt.Errorf("failed to start metrics server: %w", err)
		}
		a.cleanup = append(a.cleanup, func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), MetricsServerShutdownTimeout)
			defer shutdownCancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				errCtx := logger.WithErrorField(shutdownCtx, err)
				log.Warnf(errCtx, "Failed to shutdown metrics server")
			}
		})
	}

	var registerer prometheus.Registerer
	if registry != nil {
		registerer = registry
	}
	a.clients, err = client_factory.CreateClients(config, log, registerer)
	if err != nil {
		a.Close()
		errCtx := logger.WithErrorField(ctx, err)
		log.Errorf(errCtx, "Failed to create admin clients")
		return nil, fmt.Errorf("failed to create admin clients: %w", err)
	}
	return a, nil
}

// commandFunc is the body of a command once the app is bootstrapped
type commandFunc func(ctx context.Context, a *app, args []string) error

// runWithApp adapts a commandFunc to cobra: it cancels on SIGINT/SIGTERM and
// tears the app down afterwards.
func runWithApp(fn commandFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := fn(ctx, a, args); err != nil {
			errCtx := logger.WithErrorField(ctx, err)
			a.log.Errorf(errCtx, "%s failed", cmd.Name())
			return err
		}
		return nil
	}
}
