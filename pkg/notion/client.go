// Package notion publishes converted documents to the Notion API.
//
// Page creation carries at most the API's per-call child limit; remaining
// blocks are appended afterwards in fixed-size batches, strictly in order,
// because every append targets the page id returned by the first call.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"voomreport/pkg/config"
	"voomreport/pkg/document"
	errs "voomreport/pkg/errors"
	"voomreport/pkg/logger"
	"voomreport/pkg/ratelimit"
	"voomreport/pkg/retry"
)

const defaultBaseURL = "https://api.notion.com"

var pageIDRe = regexp.MustCompile(`([0-9a-fA-F]{32})`)

// ExtractPageID locates a 32-character hexadecimal token in a raw id or URL
// and reformats it to Notion's canonical dashed form.
func ExtractPageID(value string) (string, error) {
	m := pageIDRe.FindStringSubmatch(value)
	if m == nil {
		return "", errs.New(errs.ErrorTypeConfiguration, "no page id found in %q", value)
	}
	raw := strings.ToLower(m[1])
	return fmt.Sprintf("%s-%s-%s-%s-%s",
		raw[0:8], raw[8:12], raw[12:16], raw[16:20], raw[20:32]), nil
}

// PageRef identifies a created page
type PageRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Client is a Notion API client with transient-status retry
type Client struct {
	httpClient      *http.Client
	baseURL         string
	token           string
	apiVersion      string
	maxRetries      int
	backoff         retry.BackoffStrategy
	createChildren  int
	appendBatchSize int
	limiter         ratelimit.Limiter
	logger          logger.Logger
}

// NewClient creates a Notion client from configuration
func NewClient(cfg *config.NotionConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient:      &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:         defaultBaseURL,
		token:           cfg.Token,
		apiVersion:      cfg.APIVersion,
		maxRetries:      cfg.MaxRetries,
		backoff:         &retry.ExponentialBackoff{BaseDelay: cfg.RetryBaseDelay, Multiplier: 2.0},
		createChildren:  cfg.CreateChildren,
		appendBatchSize: cfg.AppendBatchSize,
		// the API averages requests at 3 per second
		limiter: ratelimit.NewSlidingWindow(3, time.Second),
		logger:  log,
	}
}

// SetBaseURL overrides the API endpoint, used by tests
func (c *Client) SetBaseURL(url string) {
	c.baseURL = strings.TrimRight(url, "/")
}

// CreatePage creates a page under the given parent with a link-back header
// followed by the converted blocks, appending overflow blocks in batches.
// Only the created page's id and canonical URL are retained.
func (c *Client) CreatePage(ctx context.Context, title, sourceURL, parent string, blocks []document.Block) (*PageRef, error) {
	if c.token == "" {
		return nil, errs.New(errs.ErrorTypeConfiguration, "Notion token is not set")
	}
	if parent == "" {
		return nil, errs.New(errs.ErrorTypeConfiguration, "Notion parent page is not set")
	}
	parentID, err := ExtractPageID(parent)
	if err != nil {
		return nil, err
	}

	children := linkBackBlocks(sourceURL)
	for _, b := range blocks {
		children = append(children, blockPayload(b))
	}

	initial := children
	if len(initial) > c.createChildren {
		initial = initial[:c.createChildren]
	}

	payload := map[string]interface{}{
		"parent": map[string]interface{}{"page_id": parentID},
		"properties": map[string]interface{}{
			"title": map[string]interface{}{
				"title": []map[string]interface{}{
					{"type": "text", "text": map[string]interface{}{"content": title}},
				},
			},
		},
		"children": initial,
	}

	body, err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/v1/pages", payload)
	if err != nil {
		return nil, err
	}

	var page PageRef
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, errs.New(errs.ErrorTypePublish, "failed to parse create response: %v", err)
	}

	c.logger.InfoWithFields("page created", map[string]interface{}{
		"page_id":      page.ID,
		"title":        title,
		"total_blocks": len(children),
	})

	remaining := children[len(initial):]
	for len(remaining) > 0 {
		batch := remaining
		if len(batch) > c.appendBatchSize {
			batch = batch[:c.appendBatchSize]
		}
		remaining = remaining[len(batch):]

		url := fmt.Sprintf("%s/v1/blocks/%s/children", c.baseURL, page.ID)
		if _, err := c.doRequest(ctx, http.MethodPatch, url, map[string]interface{}{"children": batch}); err != nil {
			return nil, err
		}

		c.logger.DebugWithFields("block batch appended", map[string]interface{}{
			"page_id":   page.ID,
			"batch":     len(batch),
			"remaining": len(remaining),
		})
	}

	return &page, nil
}

// doRequest performs one API call, retrying transient statuses up to the
// configured attempt count. Transient failures carry the server's parsed
// Retry-After hint, which the retry executor prefers over the backoff.
func (c *Client) doRequest(ctx context.Context, method, url string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errs.New(errs.ErrorTypePublish, "failed to encode payload: %v", err)
	}

	return retry.DoWithResult(func() ([]byte, error) {
		return c.attempt(ctx, method, url, data)
	}, &retry.Config{
		MaxAttempts: c.maxRetries + 1,
		Backoff:     c.backoff,
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      c.logger,
	})
}

// attempt performs a single rate-limited API call
func (c *Client) attempt(ctx context.Context, method, url string, data []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errs.New(errs.ErrorTypePublish, "request cancelled: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return nil, errs.New(errs.ErrorTypePublish, "failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeNetwork, "request failed: %v", err)
	}

	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, errs.New(errs.ErrorTypeNetwork, "failed to read response: %v", readErr)
	}

	if resp.StatusCode < 400 {
		return body, nil
	}

	apiErr := errs.NewWithCode(errs.ErrorTypePublish, resp.StatusCode, "%s", bodyPreview(body))
	if hint, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
		apiErr = apiErr.WithRetryAfter(hint)
	}
	return nil, apiErr
}

// parseRetryAfter reads the header's seconds form, fractions included
func parseRetryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

func bodyPreview(body []byte) string {
	s := string(body)
	if len(s) > 500 {
		s = s[:500] + "..."
	}
	return s
}

// linkBackBlocks builds the fixed header: a paragraph linking back to the
// source post, followed by a spacer paragraph.
func linkBackBlocks(sourceURL string) []map[string]interface{} {
	return []map[string]interface{}{
		{
			"object": "block",
			"type":   "paragraph",
			"paragraph": map[string]interface{}{
				"rich_text": []map[string]interface{}{
					{"type": "text", "text": map[string]interface{}{"content": "VOOM 連結: "}},
					{"type": "text", "text": map[string]interface{}{
						"content": sourceURL,
						"link":    map[string]interface{}{"url": sourceURL},
					}},
				},
			},
		},
		{
			"object":    "block",
			"type":      "paragraph",
			"paragraph": map[string]interface{}{"rich_text": []map[string]interface{}{}},
		},
	}
}

// blockPayload maps a converted block onto the API's wire shape
func blockPayload(b document.Block) map[string]interface{} {
	rich := make([]map[string]interface{}, 0, len(b.Spans))
	for _, span := range b.Spans {
		text := map[string]interface{}{"content": span.Text}
		if span.Link != "" {
			text["link"] = map[string]interface{}{"url": span.Link}
		}
		entry := map[string]interface{}{"type": "text", "text": text}
		if span.Bold {
			entry["annotations"] = map[string]interface{}{"bold": true}
		}
		rich = append(rich, entry)
	}

	return map[string]interface{}{
		"object":       "block",
		"type":         string(b.Type),
		string(b.Type): map[string]interface{}{"rich_text": rich},
	}
}
