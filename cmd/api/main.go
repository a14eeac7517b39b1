// Package main is the entry point for the signup API.
//
// It loads configuration (resolving SSM pointers outside local mode), wires
// the payment provider, metrics, tracing and the signup event publisher,
// builds the HTTP chassis and serves it.
//
// When AWS_LAMBDA_RUNTIME_API is present the router is driven by API Gateway
// HTTP API events through lambdaproxy. Otherwise it listens on PORT and shuts
// down gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"subscribe/internal/api/handlers"
	"subscribe/internal/config"
	"subscribe/internal/core"
	"subscribe/internal/external"
	"subscribe/internal/lambdaproxy"
	"subscribe/internal/queue"
	"subscribe/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(ctx, secretProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("subscribe API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	app, err := buildApp(ctx, cfg, logger, awsClientFactory(cfg))
	if err != nil {
		return fmt.Errorf("building application: %w", err)
	}

	if isLambdaEnvironment() {
		logger.Info("running in Lambda mode")
		adapter := lambdaproxy.New(app.server.Handler(), lambdaproxy.WithAfterInvoke(app.afterInvoke(logger)))
		// lambda.Start never returns; the runtime's SIGTERM before a
		// sandbox is reclaimed is the only chance to run the shutdown hooks.
		lambda.StartWithOptions(adapter.Handle, lambda.WithEnableSIGTERM(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
			defer cancel()
			if err := app.close(ctx); err != nil {
				logger.Error("resource shutdown error", "error", err)
			}
		}))
		return nil
	}

	return runHTTPServer(app, cfg, logger)
}

// secretProvider returns the SSM provider, or nil in local mode where SSM
// resolution is bypassed.
func secretProvider() config.SecretProvider {
	if os.Getenv("APP_ENV") == "local" {
		return nil
	}
	var opts []config.SSMOption
	if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
		opts = append(opts, config.WithSSMEndpoint(endpoint))
	}
	return config.NewSSMProvider(os.Getenv("AWS_REGION"), opts...)
}

// awsClients builds the AWS service clients on demand so that processes
// which need neither CloudWatch nor SQS never load AWS credentials.
type awsClients interface {
	CloudWatch(ctx context.Context) (telemetry.CloudWatchClient, error)
	SQS(ctx context.Context) (queue.SQSSender, error)
}

type sdkClients struct {
	region   string
	endpoint string
	cfg      *aws.Config
}

func awsClientFactory(cfg *config.Config) *sdkClients {
	return &sdkClients{region: cfg.AWS.Region, endpoint: cfg.AWS.EndpointURL}
}

func (c *sdkClients) load(ctx context.Context) (aws.Config, error) {
	if c.cfg != nil {
		return *c.cfg, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS SDK config: %w", err)
	}
	c.cfg = &awsCfg
	return awsCfg, nil
}

func (c *sdkClients) CloudWatch(ctx context.Context) (telemetry.CloudWatchClient, error) {
	awsCfg, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	return cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if c.endpoint != "" {
			o.BaseEndpoint = aws.String(c.endpoint)
		}
	}), nil
}

func (c *sdkClients) SQS(ctx context.Context) (queue.SQSSender, error) {
	awsCfg, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if c.endpoint != "" {
			o.BaseEndpoint = aws.String(c.endpoint)
		}
	}), nil
}

// app is the fully wired process. flush hooks run after every Lambda
// invocation, shutdown hooks once on exit.
type app struct {
	server   *core.Server
	flush    []func(context.Context) error
	shutdown []func(context.Context) error
}

// buildApp wires every component from cfg. clients is consulted only when the
// configuration asks for CloudWatch metrics or SQS publishing.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, clients awsClients) (*app, error) {
	a := &app{}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	a.server = srv

	collector, err := newCollector(ctx, cfg, logger, clients)
	if err != nil {
		return nil, err
	}
	srv.Metrics = collector
	if pc, ok := collector.(*telemetry.PrometheusCollector); ok {
		srv.MetricsHandler = pc.Handler()
	}

	if cfg.Observability.EnableTracing {
		tracer, err := telemetry.InitTracer(cfg.Service, cfg.Build.Version, nil, logger)
		if err != nil {
			return nil, fmt.Errorf("initializing tracer: %w", err)
		}
		a.flush = append(a.flush, tracer.Flush)
		a.shutdown = append(a.shutdown, tracer.Shutdown)
	}

	publisher, err := newPublisher(ctx, cfg, logger, clients)
	if err != nil {
		return nil, err
	}

	registry := external.NewClientRegistry(cfg, logger)

	subscribe := handlers.NewSubscribeHandler(registry.Payments, cfg, srv.Validator, logger,
		handlers.WithPublisher(publisher),
		handlers.WithOutcomeRecorder(collector),
	)
	subscribe.Mount(srv)

	if cfg.Diagnostics() {
		diagnostics := handlers.NewDiagnosticsHandler(cfg)
		srv.RouteRegistrars = append(srv.RouteRegistrars, diagnostics.RegisterRoutes)
	}

	srv.HealthProbes = append(srv.HealthProbes,
		handlers.NewConfigProbe(cfg),
		handlers.NewProviderProbe(registry.Payments),
	)

	srv.MountRoutes()
	return a, nil
}

func newCollector(ctx context.Context, cfg *config.Config, logger *slog.Logger, clients awsClients) (telemetry.Collector, error) {
	switch cfg.Observability.MetricsBackend {
	case config.MetricsCloudWatch:
		client, err := clients.CloudWatch(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating CloudWatch client: %w", err)
		}
		logger.Info("metrics backend: cloudwatch", "namespace", cfg.Observability.MetricNamespace)
		return telemetry.NewCloudWatchCollector(client, cfg.Observability.MetricNamespace, logger), nil
	case config.MetricsPrometheus:
		logger.Info("metrics backend: prometheus")
		return telemetry.NewPrometheusCollector(), nil
	default:
		return telemetry.NoopCollector{}, nil
	}
}

func newPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger, clients awsClients) (queue.Publisher, error) {
	if cfg.AWS.SignupEventsQueue == "" {
		return queue.NoopPublisher{}, nil
	}
	client, err := clients.SQS(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating SQS client: %w", err)
	}
	return queue.NewSignupPublisher(client, cfg.AWS, logger), nil
}

// afterInvoke returns the per-invocation hook for the Lambda adapter.
// Flush failures are logged; the response has already been built.
func (a *app) afterInvoke(logger *slog.Logger) func(context.Context) {
	return func(ctx context.Context) {
		for _, flush := range a.flush {
			if err := flush(ctx); err != nil {
				logger.Warn("flush after invocation failed", "error", err)
			}
		}
	}
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		errs = append(errs, a.shutdown[i](ctx))
	}
	errs = append(errs, a.server.Shutdown(ctx))
	return errors.Join(errs...)
}

// isLambdaEnvironment returns true if the process is running inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(a *app, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	// WriteTimeout sits above the chassis request deadline so a slow
	// provider call still gets its response written.
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := a.close(ctx); err != nil {
		logger.Error("resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
