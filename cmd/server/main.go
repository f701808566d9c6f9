package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"toymart.io/intelligence/internal/api"
	"toymart.io/intelligence/internal/auth"
	"toymart.io/intelligence/internal/config"
	"toymart.io/intelligence/internal/core"
	"toymart.io/intelligence/internal/events"
	"toymart.io/intelligence/internal/language"
	"toymart.io/intelligence/internal/notify"
	"toymart.io/intelligence/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Command line flag for seeding the document store
	seedFlag := flag.String("seed", "", "Seed the store from the given JSON fixture and exit")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	if *seedFlag != "" {
		log.Printf("Seeding store from %s...", *seedFlag)
		count, err := dbStore.SeedFromFile(ctx, *seedFlag, auth.HashPassword)
		if err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		log.Printf("Seeding complete. Wrote %d documents. Exiting.", count)
		os.Exit(0)
	}

	// Initialize LLM service
	llmService, err := core.NewLLMService(ctx, config.AppConfig.GeminiAPIKey)
	if err != nil {
		log.Fatalf("Failed to initialize LLM service: %v", err)
	}
	defer llmService.Close()

	// Initialize classifier for moderation
	classifier, err := language.NewClient(ctx, config.AppConfig.LanguageAPIKey)
	if err != nil {
		log.Fatalf("Failed to initialize language client: %v", err)
	}
	defer classifier.Close()

	// Review event bus: Redis Streams when configured, in-process otherwise.
	var bus events.Bus
	if config.AppConfig.RedisURL != "" {
		redisBus, err := events.NewRedisBus(ctx, config.AppConfig.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect review event bus: %v", err)
		}
		defer redisBus.Close()
		bus = redisBus
		log.Println("Review events on Redis Streams")
	} else {
		bus = events.NewMemoryBus()
		log.Println("Review events on in-process bus")
	}

	// Moderation alert sink
	var notifier core.Notifier
	if config.AppConfig.SMTPAddr != "" && config.AppConfig.AlertTo != "" {
		notifier = notify.NewSMTPMailer(
			config.AppConfig.SMTPAddr,
			config.AppConfig.SMTPUsername,
			config.AppConfig.SMTPPassword,
			config.AppConfig.AlertFrom,
			config.AppConfig.AlertTo,
		)
	} else {
		notifier = notify.LogNotifier{}
		log.Println("SMTP not configured, moderation alerts will be logged only")
	}

	// Moderation pipeline consuming review-created events
	moderationService := core.NewModerationService(classifier, dbStore, dbStore, notifier)
	go func() {
		if err := bus.Run(ctx, moderationService.HandleReviewCreated); err != nil {
			log.Printf("Review event consumer stopped: %v", err)
		}
	}()

	// Assistant gatekeeper
	assistantService := core.NewAssistantService(llmService, dbStore)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(dbStore, assistantService, bus)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Stop the event consumer, then drain active connections.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
