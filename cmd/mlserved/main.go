package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"mlserved/internal/common/fsutil"
	"mlserved/internal/config"
	"mlserved/internal/httpapi"
	"mlserved/internal/monitor"
	"mlserved/internal/promote"
	"mlserved/internal/registry"
	"mlserved/internal/serving"
	"mlserved/pkg/types"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mlserved",
		Short:         "Classifier lifecycle and serving daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(buildServeCmd(), buildMonitorCmd(), buildPromoteCmd())
	return root
}

// envOr returns the environment value for key, or def when unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

// newRegistryClient picks the backend named in cfg.
func newRegistryClient(cfg config.Config, log zerolog.Logger) (registry.Client, error) {
	switch cfg.RegistryBackend {
	case "", "mlflow":
		if cfg.MLflowURI == "" {
			return nil, fmt.Errorf("mlflow backend requires --mlflow-uri")
		}
		timeout := time.Duration(cfg.RegistryTimeout) * time.Second
		return registry.NewMLflowClient(cfg.MLflowURI, timeout, log), nil
	case "memory":
		return registry.NewInMemory(), nil
	default:
		return nil, fmt.Errorf("unknown registry backend %q", cfg.RegistryBackend)
	}
}

// mergeConfig loads the optional config file and lets flags that were
// explicitly set win over it.
func mergeConfig(cmd *cobra.Command, cfg *config.Config, path string) error {
	if path == "" {
		return nil
	}
	fileCfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	merged := fileCfg
	if cmd.Flags().Changed("addr") {
		merged.Addr = cfg.Addr
	}
	if cmd.Flags().Changed("model") {
		merged.ModelName = cfg.ModelName
	}
	if cmd.Flags().Changed("registry") {
		merged.RegistryBackend = cfg.RegistryBackend
	}
	if cmd.Flags().Changed("mlflow-uri") {
		merged.MLflowURI = cfg.MLflowURI
	}
	if cmd.Flags().Changed("signal-file") {
		merged.SignalPath = cfg.SignalPath
	}
	if cmd.Flags().Changed("poll-interval") {
		merged.PollInterval = cfg.PollInterval
	}
	if cmd.Flags().Changed("job-cmd") {
		merged.JobCommand = cfg.JobCommand
	}
	if cmd.Flags().Changed("job-timeout") {
		merged.JobTimeout = cfg.JobTimeout
	}
	if cmd.Flags().Changed("log-level") {
		merged.LogLevel = cfg.LogLevel
	}
	if cmd.Flags().Changed("cors-enabled") {
		merged.CORSEnabled = cfg.CORSEnabled
	}
	if cmd.Flags().Changed("cors-origins") {
		merged.CORSOrigins = cfg.CORSOrigins
	}
	*cfg = merged
	return nil
}

func buildServeCmd() *cobra.Command {
	var cfg config.Config
	var cfgPath, jobCmd, corsOrigins string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the prediction API (and the retrain monitor when a signal file is set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jobCmd != "" {
				cfg.JobCommand = strings.Fields(jobCmd)
			}
			if corsOrigins != "" {
				cfg.CORSOrigins = strings.Split(corsOrigins, ",")
			}
			if err := mergeConfig(cmd, &cfg, cfgPath); err != nil {
				return err
			}
			if cfg.SignalPath != "" {
				p, err := fsutil.ExpandHome(cfg.SignalPath)
				if err != nil {
					return err
				}
				cfg.SignalPath = p
			}
			return runServe(cfg)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.Addr, "addr", envOr("MLSERVED_ADDR", ":8000"), "HTTP listen address")
	f.StringVar(&cfg.ModelName, "model", envOr("MLSERVED_MODEL", "iris-classifier"), "Registered model name to serve")
	f.StringVar(&cfg.RegistryBackend, "registry", envOr("MLSERVED_REGISTRY", "mlflow"), "Registry backend: mlflow|memory")
	f.StringVar(&cfg.MLflowURI, "mlflow-uri", envOr("MLFLOW_TRACKING_URI", "http://mlflow:5000"), "MLflow tracking server URI")
	f.IntVar(&cfg.RegistryTimeout, "registry-timeout", 10, "Registry call timeout in seconds")
	f.StringVar(&cfg.SignalPath, "signal-file", envOr("MLSERVED_SIGNAL_FILE", ""), "Retrain signal file path (empty disables the embedded monitor)")
	f.IntVar(&cfg.PollInterval, "poll-interval", 5, "Signal poll interval in seconds")
	f.StringVar(&jobCmd, "job-cmd", envOr("MLSERVED_JOB_CMD", ""), "Retrain job command (job name is appended)")
	f.IntVar(&cfg.JobTimeout, "job-timeout", 600, "Retrain job timeout in seconds")
	f.BoolVar(&cfg.CORSEnabled, "cors-enabled", false, "Enable CORS middleware")
	f.StringVar(&corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins")
	f.StringVar(&cfg.LogLevel, "log-level", envOr("MLSERVED_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	f.StringVar(&cfgPath, "config", "", "Optional config file (yaml/json/toml)")
	return cmd
}

func runServe(cfg config.Config) error {
	log := newLogger(cfg.LogLevel)

	reg, err := newRegistryClient(cfg, log)
	if err != nil {
		return err
	}
	svc := serving.New(cfg.ModelName, reg, log,
		serving.WithFetchTimeout(time.Duration(cfg.RegistryTimeout)*time.Second))

	runner := monitor.NewExecRunner(cfg.JobCommand, time.Duration(cfg.JobTimeout)*time.Second, log)
	coord := monitor.NewCoordinator(cfg.ModelName, runner, svc, log)

	httpapi.SetLogger(log)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, nil, nil)
	if cfg.MaxBodyBytes > 0 {
		httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	httpapi.SetBaseContext(baseCtx)

	mux := httpapi.NewMux(svc, coord)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	// Warm the snapshot; a missing model is fine, the first request or
	// health probe retries.
	if ok := svc.Reload(baseCtx); !ok {
		log.Warn().Str("model", cfg.ModelName).Msg("no model loaded at startup")
	}

	if cfg.SignalPath != "" {
		mon := monitor.New(cfg.SignalPath, time.Duration(cfg.PollInterval)*time.Second, coord, log)
		go mon.Run(baseCtx)
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("model", cfg.ModelName).Msg("mlserved listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

func buildMonitorCmd() *cobra.Command {
	var cfg config.Config
	var jobCmd, serveURL string

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the retrain trigger monitor standalone",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cfg.LogLevel)
			if cfg.SignalPath == "" {
				return fmt.Errorf("--signal-file is required")
			}
			sig, err := fsutil.ExpandHome(cfg.SignalPath)
			if err != nil {
				return err
			}
			cfg.SignalPath = sig
			if jobCmd != "" {
				cfg.JobCommand = strings.Fields(jobCmd)
			}
			runner := monitor.NewExecRunner(cfg.JobCommand, time.Duration(cfg.JobTimeout)*time.Second, log)
			reloader := monitor.NewHTTPReloader(serveURL, 30*time.Second, log)
			coord := monitor.NewCoordinator(cfg.ModelName, runner, reloader, log)
			mon := monitor.New(cfg.SignalPath, time.Duration(cfg.PollInterval)*time.Second, coord, log)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			mon.Run(ctx)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.ModelName, "model", envOr("MLSERVED_MODEL", "iris-classifier"), "Job name passed to the runner")
	f.StringVar(&cfg.SignalPath, "signal-file", envOr("MLSERVED_SIGNAL_FILE", "data-file/retrain_requested"), "Retrain signal file path")
	f.IntVar(&cfg.PollInterval, "poll-interval", 5, "Signal poll interval in seconds")
	f.StringVar(&jobCmd, "job-cmd", envOr("MLSERVED_JOB_CMD", ""), "Retrain job command (job name is appended)")
	f.IntVar(&cfg.JobTimeout, "job-timeout", 600, "Retrain job timeout in seconds")
	f.StringVar(&serveURL, "serve-url", envOr("MLSERVED_SERVE_URL", "http://localhost:8000"), "Base URL of the serving daemon to reload")
	f.StringVar(&cfg.LogLevel, "log-level", envOr("MLSERVED_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	return cmd
}

func buildPromoteCmd() *cobra.Command {
	var cfg config.Config
	var artifact, description string
	var metric float64

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Register a trained artifact and decide promotion against production",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cfg.LogLevel)
			if artifact == "" {
				return fmt.Errorf("--artifact is required")
			}
			reg, err := newRegistryClient(cfg, log)
			if err != nil {
				return err
			}
			eng := promote.New(reg, log)
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.RegistryTimeout)*time.Second)
			defer cancel()
			d, err := eng.RegisterAndDecide(ctx, cfg.ModelName, artifact, metric, description)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(types.PromotionResponse{
				ModelName: d.Name,
				Version:   d.Version,
				Promoted:  d.Promoted,
				Metric:    d.Metric,
				Baseline:  d.Baseline,
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.ModelName, "model", envOr("MLSERVED_MODEL", "iris-classifier"), "Registered model name")
	f.StringVar(&artifact, "artifact", "", "Path or URI of the trained artifact")
	f.Float64Var(&metric, "metric", 0, "Quality metric of the candidate (e.g. accuracy)")
	f.StringVar(&description, "description", "", "Free-text description for the version")
	f.StringVar(&cfg.RegistryBackend, "registry", envOr("MLSERVED_REGISTRY", "mlflow"), "Registry backend: mlflow|memory")
	f.StringVar(&cfg.MLflowURI, "mlflow-uri", envOr("MLFLOW_TRACKING_URI", "http://mlflow:5000"), "MLflow tracking server URI")
	f.IntVar(&cfg.RegistryTimeout, "registry-timeout", 30, "Registry call timeout in seconds")
	f.StringVar(&cfg.LogLevel, "log-level", envOr("MLSERVED_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	return cmd
}
