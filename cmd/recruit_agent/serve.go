package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jonathan/recruit-engine/internal/candidates"
	"github.com/jonathan/recruit-engine/internal/config"
	"github.com/jonathan/recruit-engine/internal/content"
	"github.com/jonathan/recruit-engine/internal/db"
	"github.com/jonathan/recruit-engine/internal/intake"
	"github.com/jonathan/recruit-engine/internal/integration"
	"github.com/jonathan/recruit-engine/internal/interviews"
	"github.com/jonathan/recruit-engine/internal/linkedin"
	"github.com/jonathan/recruit-engine/internal/llm"
	"github.com/jonathan/recruit-engine/internal/logging"
	"github.com/jonathan/recruit-engine/internal/resolver"
	"github.com/jonathan/recruit-engine/internal/server"
	"github.com/jonathan/recruit-engine/internal/server/ratelimit"
	"github.com/jonathan/recruit-engine/internal/webhook"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the intake, candidate, interview, LinkedIn and content endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger, err := logging.New(config.NewLogConfig())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	serverCfg, err := config.NewServerConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		serverCfg.Port = servePort
	}
	dbCfg, err := config.NewDatabaseConfig()
	if err != nil {
		return err
	}
	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return err
	}
	contentCfg, err := config.NewContentConfig()
	if err != nil {
		return err
	}
	linkedinCfg := config.NewLinkedInConfig()
	if err := linkedinCfg.Validate(); err != nil {
		// Not fatal: the integration endpoints report not_configured.
		logger.Warn("LinkedIn integration disabled", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, dbCfg.URL)
	if err != nil {
		return err
	}
	defer database.Close()

	dispatcher, err := newDispatcher(config.NewWebhookConfig(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := dispatcher.Close(); err != nil {
			logger.Warn("Webhook dispatcher close failed", zap.Error(err))
		}
	}()

	generator, closeGenerator, err := newGenerator(ctx, contentCfg, logger)
	if err != nil {
		return err
	}
	defer closeGenerator()

	linkedinClient := linkedin.New(linkedinCfg, linkedin.DefaultOptions())
	manager := integration.NewManager(database, linkedinClient, linkedinCfg, jwtCfg.StateTTL, logger)
	if linkedinCfg.TokenKey != "" {
		tokenCipher, err := integration.NewTokenCipher(linkedinCfg.TokenKey)
		if err != nil {
			return fmt.Errorf("invalid LINKEDIN_TOKEN_KEY: %w", err)
		}
		manager.WithCipher(tokenCipher)
	} else {
		logger.Warn("LINKEDIN_TOKEN_KEY not set; access tokens are stored unencrypted")
	}
	res := resolver.New(database, logger)

	svc := server.Services{
		Integrations: manager,
		Candidates:   candidates.New(database, res, logger),
		Intake:       intake.New(intake.PGStore{DB: database}, dispatcher, logger),
		Interviews:   interviews.New(database, logger),
		Content: content.NewPipeline(database, content.Options{
			Generator:        generator,
			Credentials:      manager,
			Publisher:        linkedinClient,
			MaxRegenerations: contentCfg.MaxRegenerations,
			Logger:           logger,
		}),
		Resolver:    res,
		Submissions: database,
		Ping:        database.Ping,
	}

	srv := server.New(serverCfg, svc, server.NewJWTService(jwtCfg), ratelimit.NewLimiter(ratelimit.LoadConfig()), logger)
	return srv.Start(ctx)
}

// newDispatcher builds the intake webhook fan-out from the configured sinks.
func newDispatcher(cfg *config.WebhookConfig, logger *zap.Logger) (*webhook.Dispatcher, error) {
	var sinks []webhook.Sink
	if cfg.URL != "" {
		sinks = append(sinks, webhook.NewHTTPSink(cfg.URL, nil))
	}
	if cfg.AMQPURL != "" {
		sink, err := webhook.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return nil, fmt.Errorf("failed to connect webhook broker: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if len(sinks) == 0 {
		logger.Info("No intake webhook configured")
	}
	return webhook.NewDispatcher(cfg.Timeout, logger, sinks...), nil
}

// newGenerator returns nil without an API key, which disables generation.
func newGenerator(ctx context.Context, cfg *config.ContentConfig, logger *zap.Logger) (content.Generator, func(), error) {
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set; content generation disabled")
		return nil, func() {}, nil
	}
	client, err := llm.NewGeminiClient(ctx, llm.DefaultConfig(), cfg.GeminiAPIKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return content.NewLLMGenerator(client), func() { _ = client.Close() }, nil
}
