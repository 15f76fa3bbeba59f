// Package carousel discovers and downloads every distinct image from a
// post's media carousel, in first-seen order, through a live browser
// session. The slide count is usually unknown up front; termination is
// driven by observed progress, not by the carousel's own bookkeeping.
package carousel

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"voomreport/pkg/config"
	errs "voomreport/pkg/errors"
	"voomreport/pkg/logger"
	"voomreport/pkg/manifest"
	"voomreport/pkg/retry"
	"voomreport/pkg/storage"
)

// Asset is one downloaded carousel image
type Asset struct {
	// Sequence is 1-based, strictly increasing, in first-seen order
	Sequence  int
	SourceURL string
	LocalPath string
	MIME      string
	Bytes     int64
}

// Extractor drives one extraction session against one post URL.
// Sessions share the download directory, so callers must not run two
// sessions concurrently.
type Extractor struct {
	driver    Driver
	store     *storage.Manager
	fetcher   *http.Client
	settle    time.Duration
	maxImages int
	logger    logger.Logger
}

// New creates an extractor over the given driver and storage
func New(driver Driver, store *storage.Manager, cfg *config.ExtractionConfig, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Extractor{
		driver:    driver,
		store:     store,
		fetcher:   &http.Client{Timeout: cfg.DownloadTimeout},
		settle:    cfg.SettleDelay,
		maxImages: cfg.MaxImages,
		logger:    log.WithField("component", "carousel"),
	}
}

// Run extracts every distinct carousel image from the post. The download
// directory is cleared first. It returns the assets in first-seen order.
func (e *Extractor) Run(ctx context.Context, postURL string) ([]Asset, error) {
	if err := e.store.Clear(); err != nil {
		return nil, errs.New(errs.ErrorTypeExtraction, "failed to clear image directory: %v", err)
	}

	if err := e.driver.Open(ctx, postURL); err != nil {
		return nil, errs.New(errs.ErrorTypeNavigation, "failed to open post: %v", err)
	}

	tracker := NewTracker()
	tracker.MarkViewerOpening()

	if err := e.driver.OpenViewer(ctx); err != nil {
		return nil, errs.New(errs.ErrorTypeExtraction, "failed to open media viewer: %v", err)
	}

	hint := e.driver.SlideHint(ctx)
	if len(hint) > 0 {
		e.logger.InfoWithFields("carousel exposes slide indices", map[string]interface{}{
			"hinted_slides": len(hint),
		})
	}

	var assets []Asset
	for {
		obs, err := e.driver.Observe(ctx)
		if err != nil {
			e.logger.WithError(err).Warn("observation failed, treating as no progress")
			obs = Observation{Failed: true}
		}

		action := tracker.Step(obs)
		if action == ActionStop {
			break
		}

		if action == ActionDownload {
			asset, err := e.download(ctx, obs.URL, len(assets)+1)
			if err != nil {
				return nil, err
			}
			assets = append(assets, asset)

			e.logger.InfoWithFields("slide downloaded", map[string]interface{}{
				"sequence": asset.Sequence,
				"url":      asset.SourceURL,
				"slide":    obs.Identity,
			})

			if e.maxImages > 0 && len(assets) >= e.maxImages {
				e.logger.WarnWithFields("image limit reached", map[string]interface{}{
					"limit": e.maxImages,
				})
				break
			}
		}

		if err := e.driver.Advance(ctx); err != nil {
			// a failed advance shows up as an unchanged observation
			e.logger.WithError(err).Warn("advance failed")
		}

		if err := retry.Wait(ctx, e.settle); err != nil {
			return nil, errs.New(errs.ErrorTypeExtraction, "session cancelled: %v", err)
		}
	}

	if len(assets) == 0 {
		return nil, errs.New(errs.ErrorTypeExtraction, "no carousel images found")
	}

	if len(hint) > 0 && tracker.SeenIdentityCount() >= len(hint) {
		e.logger.Debug("all hinted slide indices observed")
	}

	e.writeManifest(postURL, assets)

	e.logger.InfoWithFields("extraction complete", map[string]interface{}{
		"images": len(assets),
	})

	return assets, nil
}

// writeManifest drops a session record next to the images. The manifest is
// informational; failing to write it never fails the session.
func (e *Extractor) writeManifest(postURL string, assets []Asset) {
	m := &manifest.Manifest{
		PostURL:   postURL,
		FetchedAt: time.Now(),
		Images:    make([]manifest.Image, len(assets)),
	}
	for i, asset := range assets {
		m.Images[i] = manifest.Image{
			Sequence:  asset.Sequence,
			SourceURL: asset.SourceURL,
			File:      filepath.Base(asset.LocalPath),
			MIME:      asset.MIME,
			Bytes:     asset.Bytes,
		}
	}

	if err := manifest.Write(e.store.Dir(), m); err != nil {
		e.logger.WithError(err).Warn("manifest write failed")
	}
}

// download fetches one image. An HTTP failure here aborts the session: an
// incomplete asset set cannot be safely analyzed.
func (e *Extractor) download(ctx context.Context, imageURL string, sequence int) (Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return Asset{}, errs.New(errs.ErrorTypeDownload, "invalid image URL %q: %v", imageURL, err)
	}

	resp, err := e.fetcher.Do(req)
	if err != nil {
		return Asset{}, errs.New(errs.ErrorTypeDownload, "image fetch failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Asset{}, errs.NewWithCode(errs.ErrorTypeDownload, resp.StatusCode,
			"image fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Asset{}, errs.New(errs.ErrorTypeDownload, "failed to read image data: %v", err)
	}

	ext := extensionOf(imageURL)
	localPath, err := e.store.SaveImage(sequence, ext, data)
	if err != nil {
		return Asset{}, errs.New(errs.ErrorTypeDownload, "failed to save image: %v", err)
	}

	return Asset{
		Sequence:  sequence,
		SourceURL: imageURL,
		LocalPath: localPath,
		MIME:      imageMIME(resp.Header.Get("Content-Type"), ext),
		Bytes:     int64(len(data)),
	}, nil
}

// extensionOf derives a file extension from the URL path, defaulting to .jpg
func extensionOf(imageURL string) string {
	u, err := url.Parse(imageURL)
	if err != nil {
		return ".jpg"
	}
	if ext := path.Ext(u.Path); ext != "" {
		return ext
	}
	return ".jpg"
}

func imageMIME(contentType, ext string) string {
	if strings.HasPrefix(contentType, "image/") {
		if i := strings.IndexByte(contentType, ';'); i >= 0 {
			contentType = contentType[:i]
		}
		return strings.TrimSpace(contentType)
	}
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
