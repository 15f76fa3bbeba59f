package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voomreport/internal/bot"
	"voomreport/pkg/analysis"
	"voomreport/pkg/carousel"
	"voomreport/pkg/config"
	"voomreport/pkg/dispatch"
	"voomreport/pkg/journal"
	"voomreport/pkg/logger"
	"voomreport/pkg/notion"
	"voomreport/pkg/pipeline"
	"voomreport/pkg/storage"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	port       = flag.Int("port", 0, "HTTP listen port (overrides config)")
	headful    = flag.Bool("headful", false, "Run the browser with a visible window")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *headful {
		cfg.Extraction.Headless = false
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.GetLogger()
	log.WithField("version", "1.0").Info("VOOM report service starting")

	store, err := storage.NewManager(cfg.Extraction.DownloadDir)
	if err != nil {
		log.WithError(err).Fatal("Failed to prepare image directory")
	}

	transport, err := dispatch.NewLineTransport(cfg.Line.ChannelToken)
	if err != nil {
		log.WithError(err).Fatal("Failed to create messaging client")
	}
	dispatcher := dispatch.NewDispatcher(transport, &cfg.Dispatch, log)

	newDriver := func() (carousel.Driver, error) {
		return carousel.NewRodDriver(&cfg.Extraction, log)
	}
	analyzer := analysis.NewGemini(cfg.Gemini.APIKey, cfg.Gemini.Model, log)
	publisher := pipeline.NewNotionPublisher(notion.NewClient(&cfg.Notion, log))
	runner := pipeline.New(cfg, newDriver, store, analyzer, publisher, log)

	history, err := journal.New(journal.DefaultPath())
	if err != nil {
		log.WithError(err).Warn("Run history unavailable, continuing without it")
		history = nil
	}

	b := bot.New(runner, dispatcher, cfg.Line.ChannelSecret, history, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	b.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/callback", b.Callback())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("Webhook server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
	b.Wait()
	log.Info("Shutdown complete")
}
