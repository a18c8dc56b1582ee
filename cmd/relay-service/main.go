package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang-signal-relay/internal/relay/config"
	"golang-signal-relay/internal/relay/decision"
	"golang-signal-relay/internal/relay/delivery/listener"
	"golang-signal-relay/internal/relay/dispatcher"
	"golang-signal-relay/internal/relay/extractor"
	"golang-signal-relay/internal/relay/fetcher"
	"golang-signal-relay/internal/relay/gateway"
	"golang-signal-relay/internal/relay/service"
	"golang-signal-relay/pkg/logger"
	"golang-signal-relay/pkg/telegram"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the signal relay service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Signal Relay Service", zap.String("name", cfg.App.Name))

	// Initialize Telegram client
	tgClient, err := telegram.NewClient(cfg.Telegram.BotToken)
	if err != nil {
		appLogger.Fatal("Failed to initialize Telegram client", zap.Error(err))
	}

	// Initialize Gemini client
	genAiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		appLogger.Fatal("Failed to initialize Gemini AI client", zap.Error(err))
	}

	// Build the pipeline
	ext := extractor.New(appLogger)
	sourceFetcher := fetcher.New(cfg, appLogger)
	aiGateway := gateway.NewGeminiGateway(cfg, appLogger, genAiClient)
	engine := decision.New(cfg, appLogger)
	disp := dispatcher.New(cfg, appLogger, tgClient)
	pipeline := service.New(cfg, appLogger, ext, sourceFetcher, aiGateway, engine, disp)

	// Start the listener
	tgListener := listener.New(cfg, appLogger, tgClient, pipeline, disp)
	tgListener.Start(ctx)

	appLogger.Info("Signal relay service started. Waiting for channel posts...")

	// Wait for interrupt signal to gracefully shut down the service
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down signal relay service...")
	cancel()
	tgListener.Stop()
	appLogger.Info("Signal relay service stopped.")
}

func main() {
	rootCmd := &cobra.Command{Use: "relay-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-relay.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing relay-service CLI: %s\n", err)
		os.Exit(1)
	}
}
