// Package pipeline runs one post through the full digest flow: carousel
// extraction, vision analysis, document conversion and publishing. It owns
// the stage ordering and the distinction between fatal stage failures and
// a failed publish, which still yields a deliverable report.
package pipeline

import (
	"context"
	"time"

	"voomreport/pkg/analysis"
	"voomreport/pkg/carousel"
	"voomreport/pkg/config"
	"voomreport/pkg/document"
	errs "voomreport/pkg/errors"
	"voomreport/pkg/logger"
	"voomreport/pkg/notion"
	"voomreport/pkg/storage"
)

// DriverFactory opens a fresh browser session. Sessions are single-use:
// the pipeline closes the driver when the run ends.
type DriverFactory func() (carousel.Driver, error)

// Publisher creates one document page from converted blocks
type Publisher interface {
	Publish(ctx context.Context, title, sourceURL, parent, content string) (*notion.PageRef, error)
}

type notionPublisher struct {
	client *notion.Client
}

// NewNotionPublisher adapts a document API client to the publish stage,
// converting the report text to blocks on the way in.
func NewNotionPublisher(client *notion.Client) Publisher {
	return notionPublisher{client: client}
}

func (n notionPublisher) Publish(ctx context.Context, title, sourceURL, parent, content string) (*notion.PageRef, error) {
	return n.client.CreatePage(ctx, title, sourceURL, parent, document.Convert(content))
}

// Result is the outcome of one pipeline run. Report carries the analysis
// text even when publishing failed, so delivery can still happen.
type Result struct {
	Mode       Mode
	PostURL    string
	ImageCount int
	Report     string
	Page       *notion.PageRef
	PublishErr error
}

// Pipeline wires the stages together
type Pipeline struct {
	cfg       *config.Config
	newDriver DriverFactory
	store     *storage.Manager
	analyzer  analysis.Analyzer
	publisher Publisher
	now       func() time.Time
	logger    logger.Logger
}

// New creates a pipeline over explicit stage implementations
func New(cfg *config.Config, newDriver DriverFactory, store *storage.Manager,
	analyzer analysis.Analyzer, publisher Publisher, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Pipeline{
		cfg:       cfg,
		newDriver: newDriver,
		store:     store,
		analyzer:  analyzer,
		publisher: publisher,
		now:       time.Now,
		logger:    log.WithField("component", "pipeline"),
	}
}

// Run digests one post. Extraction and analysis failures are fatal; a
// publish failure is recorded on the result and the report survives.
func (p *Pipeline) Run(ctx context.Context, mode Mode, postURL string) (*Result, error) {
	if !AllowedHost(postURL) {
		return nil, errs.New(errs.ErrorTypeNavigation, "unsupported post host: %s", postURL)
	}

	p.logger.InfoWithFields("pipeline run started", map[string]interface{}{
		"mode": string(mode),
		"url":  postURL,
	})

	assets, err := p.extract(ctx, postURL)
	if err != nil {
		return nil, err
	}

	report, err := p.analyze(ctx, mode, assets)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Mode:       mode,
		PostURL:    postURL,
		ImageCount: len(assets),
		Report:     report,
	}

	title := mode.Title() + " " + p.now().Format("2006-01-02 15:04")
	page, err := p.publisher.Publish(ctx, title, postURL, p.parentFor(mode), report)
	if err != nil {
		p.logger.WithError(err).Error("publish failed, report still deliverable")
		result.PublishErr = err
		return result, nil
	}
	result.Page = page

	p.logger.InfoWithFields("pipeline run complete", map[string]interface{}{
		"images":  len(assets),
		"page_id": page.ID,
	})

	return result, nil
}

func (p *Pipeline) extract(ctx context.Context, postURL string) ([]carousel.Asset, error) {
	driver, err := p.newDriver()
	if err != nil {
		return nil, errs.New(errs.ErrorTypeExtraction, "failed to start browser: %v", err)
	}
	defer func() {
		if err := driver.Close(); err != nil {
			p.logger.WithError(err).Warn("browser close failed")
		}
	}()

	extractor := carousel.New(driver, p.store, &p.cfg.Extraction, p.logger)
	return extractor.Run(ctx, postURL)
}

func (p *Pipeline) analyze(ctx context.Context, mode Mode, assets []carousel.Asset) (string, error) {
	paths := make([]string, len(assets))
	images := make([]analysis.Image, len(assets))
	for i, asset := range assets {
		paths[i] = asset.LocalPath
		images[i] = analysis.Image{Path: asset.LocalPath, MIME: asset.MIME}
	}

	prompt := analysis.BuildPrompt(mode.Prompt(), paths)
	return p.analyzer.Analyze(ctx, prompt, images)
}

func (p *Pipeline) parentFor(mode Mode) string {
	if mode == ModeMorning {
		return p.cfg.Notion.ParentMorning
	}
	return p.cfg.Notion.ParentAfterHrs
}
