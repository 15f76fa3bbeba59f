// voomgrab downloads the carousel images of a single VOOM post to disk.
// It needs no messaging or publishing credentials, which makes it handy
// for checking that a post extracts cleanly before wiring it into the bot.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"voomreport/pkg/carousel"
	"voomreport/pkg/config"
	"voomreport/pkg/logger"
	"voomreport/pkg/pipeline"
	"voomreport/pkg/storage"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	outputDir  = flag.String("output", "", "Download directory (overrides config)")
	maxImages  = flag.Int("max-images", 0, "Stop after this many images (0 = no limit)")
	headful    = flag.Bool("headful", false, "Run the browser with a visible window")
)

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: voomgrab [flags] <post-url>")
		flag.PrintDefaults()
		os.Exit(1)
	}
	postURL := strings.TrimSpace(args[0])

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *outputDir != "" {
		cfg.Extraction.DownloadDir = *outputDir
	}
	if *maxImages > 0 {
		cfg.Extraction.MaxImages = *maxImages
	}
	if *headful {
		cfg.Extraction.Headless = false
	}

	if err := cfg.ValidateExtraction(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.GetLogger()

	if !pipeline.AllowedHost(postURL) {
		log.WithField("url", postURL).Error("Not a VOOM post URL")
		os.Exit(1)
	}

	store, err := storage.NewManager(cfg.Extraction.DownloadDir)
	if err != nil {
		log.WithError(err).Fatal("Failed to prepare download directory")
	}

	driver, err := carousel.NewRodDriver(&cfg.Extraction, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to start browser")
	}
	defer driver.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	extractor := carousel.New(driver, store, &cfg.Extraction, log)
	assets, err := extractor.Run(ctx, postURL)
	if err != nil {
		log.WithError(err).Fatal("Extraction failed")
	}

	for _, asset := range assets {
		fmt.Printf("%2d  %s\n", asset.Sequence, asset.LocalPath)
	}
	fmt.Printf("Downloaded %d images to %s\n", len(assets), store.Dir())
}
