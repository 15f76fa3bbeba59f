package carousel

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"voomreport/pkg/config"
	"voomreport/pkg/logger"
)

// Selectors for the VOOM post page and its media viewer. The viewer-open
// targets are tried in priority order; they pin the main media image and
// avoid avatars and thumbnails.
const (
	selViewer      = ".vw_media_viewer"
	selActiveSlide = ".vw_media_viewer .swiper-slide-active"
	selActiveImage = ".vw_media_viewer .swiper-slide-active .vw_media_viewer_item img"
	selViewerImgs  = ".vw_media_viewer img.media_image, .vw_media_viewer img[src*='line-scdn']"
	selSlideIndex  = ".vw_media_viewer .swiper-slide[data-swiper-slide-index]"
	selAnyImage    = "article img, main img, img"
)

var viewerOpenTargets = []string{
	".vw_viewer_content_wrap .media_layout .swiper-slide-active .media_item.type_viewer img.media_image",
	".vw_viewer_content_wrap .media_layout .swiper-slide-active .media_item.type_viewer",
	".vw_viewer_content_wrap .media_layout img.media_image",
	".vw_viewer_content_wrap .media_layout",
	".media_top_inner img.media_image",
}

// RodDriver implements Driver on a headless Chromium session via go-rod
type RodDriver struct {
	browser       *rod.Browser
	launcher      *launcher.Launcher
	page          *rod.Page
	imageTimeout  time.Duration
	viewerTimeout time.Duration
	logger        logger.Logger
}

// NewRodDriver launches a browser and returns a driver bound to it
func NewRodDriver(cfg *config.ExtractionConfig, log logger.Logger) (*RodDriver, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	l := launcher.New().Headless(cfg.Headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &RodDriver{
		browser:       browser,
		launcher:      l,
		imageTimeout:  cfg.ImageTimeout,
		viewerTimeout: cfg.ViewerTimeout,
		logger:        log.WithField("component", "rod"),
	}, nil
}

// Open navigates to the post and waits for image content to appear
func (d *RodDriver) Open(ctx context.Context, url string) error {
	page, err := d.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	d.page = page.Context(ctx)

	if _, err := d.page.Timeout(d.imageTimeout).Element("img"); err != nil {
		return fmt.Errorf("no images appeared within %s: %w", d.imageTimeout, err)
	}

	return nil
}

// OpenViewer clicks the primary media element to open the full-screen
// viewer. The click is retried once with a scripted click when the normal
// one is intercepted by overlays.
func (d *RodDriver) OpenViewer(ctx context.Context) error {
	target := d.findViewerTarget()
	if target == nil {
		return fmt.Errorf("no clickable media element found")
	}

	if err := d.clickElement(target); err != nil {
		return fmt.Errorf("failed to open viewer: %w", err)
	}

	if _, err := d.page.Timeout(d.viewerTimeout).Element(selViewer); err != nil {
		// some posts render the carousel inline without a modal viewer
		d.logger.Warn("media viewer did not appear, continuing inline")
	}

	return nil
}

// findViewerTarget returns the element to click, preferring the priority
// selectors and falling back to the largest image on the page.
func (d *RodDriver) findViewerTarget() *rod.Element {
	for _, sel := range viewerOpenTargets {
		if found, el, err := d.page.Has(sel); err == nil && found {
			return el
		}
	}

	candidates, err := d.page.Elements(selAnyImage)
	if err != nil {
		return nil
	}
	return largestElement(candidates)
}

// largestElement picks the candidate with the greatest bounding-box area,
// filtering out avatars and thumbnails by size.
func largestElement(candidates rod.Elements) *rod.Element {
	var best *rod.Element
	var bestArea float64

	for _, el := range candidates {
		shape, err := el.Shape()
		if err != nil {
			continue
		}
		box := shape.Box()
		if box == nil {
			continue
		}
		if area := box.Width * box.Height; area > bestArea {
			bestArea = area
			best = el
		}
	}

	return best
}

// clickElement clicks normally first, then falls back to a scripted click
func (d *RodDriver) clickElement(el *rod.Element) error {
	if err := el.ScrollIntoView(); err != nil {
		d.logger.WithError(err).Debug("scroll into view failed")
	}

	if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
		return nil
	}

	if _, err := el.Eval(`() => this.click()`); err != nil {
		return fmt.Errorf("scripted click failed: %w", err)
	}
	return nil
}

// SlideHint reads the deduplicated swiper slide indices when exposed
func (d *RodDriver) SlideHint(ctx context.Context) []string {
	slides, err := d.page.Elements(selSlideIndex)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var indices []string
	for _, slide := range slides {
		idx, err := slide.Attribute("data-swiper-slide-index")
		if err != nil || idx == nil || *idx == "" {
			continue
		}
		if !seen[*idx] {
			seen[*idx] = true
			indices = append(indices, *idx)
		}
	}

	return indices
}

// Observe reads the viewer's active slide. It prefers the active swiper
// slide, falling back to the largest viewer image when the carousel does
// not mark one active.
func (d *RodDriver) Observe(ctx context.Context) (Observation, error) {
	if found, slide, err := d.page.Has(selActiveSlide); err == nil && found {
		obs := Observation{}
		if idx, err := slide.Attribute("data-swiper-slide-index"); err == nil && idx != nil {
			obs.Identity = *idx
		}
		if found, img, err := d.page.Has(selActiveImage); err == nil && found {
			obs.URL = imageSource(img)
		}
		if obs.Identity != "" || obs.URL != "" {
			return obs, nil
		}
	}

	imgs, err := d.page.Elements(selViewerImgs)
	if err != nil {
		return Observation{}, fmt.Errorf("failed to query viewer images: %w", err)
	}
	img := largestElement(imgs)
	if img == nil {
		return Observation{}, fmt.Errorf("no viewer image visible")
	}

	return Observation{URL: imageSource(img)}, nil
}

func imageSource(img *rod.Element) string {
	if src, err := img.Attribute("src"); err == nil && src != nil && *src != "" {
		return *src
	}
	if src, err := img.Attribute("data-src"); err == nil && src != nil {
		return *src
	}
	return ""
}

// Advance re-focuses the viewer and presses the next-slide key
func (d *RodDriver) Advance(ctx context.Context) error {
	if found, viewer, err := d.page.Has(selViewer); err == nil && found {
		if err := d.clickElement(viewer); err != nil {
			d.logger.WithError(err).Debug("viewer refocus click failed")
		}
	}

	return d.page.Keyboard.Press(input.ArrowRight)
}

// Close shuts the browser down and cleans up the launcher
func (d *RodDriver) Close() error {
	err := d.browser.Close()
	d.launcher.Cleanup()
	return err
}
