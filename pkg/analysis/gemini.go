package analysis

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	errs "voomreport/pkg/errors"
	"voomreport/pkg/logger"
)

// GeminiEngine implements Analyzer against the Gemini API
type GeminiEngine struct {
	apiKey string
	model  string
	logger logger.Logger
}

// NewGemini creates a Gemini-backed analyzer
func NewGemini(apiKey, model string, log logger.Logger) *GeminiEngine {
	if log == nil {
		log = logger.GetLogger()
	}
	return &GeminiEngine{
		apiKey: strings.TrimSpace(apiKey),
		model:  strings.TrimSpace(model),
		logger: log,
	}
}

// Analyze sends the prompt and images to the model and returns its text
func (e *GeminiEngine) Analyze(ctx context.Context, prompt string, images []Image) (string, error) {
	if e.apiKey == "" {
		return "", errs.New(errs.ErrorTypeConfiguration, "Gemini API key is empty")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(e.apiKey))
	if err != nil {
		return "", errs.New(errs.ErrorTypeAnalysis, "failed to create client: %v", err)
	}
	defer client.Close()

	model := client.GenerativeModel(e.model)

	parts := []genai.Part{genai.Text(prompt)}
	for _, img := range images {
		data, err := os.ReadFile(img.Path)
		if err != nil {
			return "", errs.New(errs.ErrorTypeAnalysis, "failed to read image %s: %v", img.Path, err)
		}
		parts = append(parts, &genai.Blob{MIMEType: img.MIME, Data: data})
	}

	e.logger.InfoWithFields("sending images for analysis", map[string]interface{}{
		"model":  e.model,
		"images": len(images),
	})

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", errs.New(errs.ErrorTypeAnalysis, "generation failed: %v", err)
	}

	text := collectText(resp)
	if text == "" {
		return "", errs.New(errs.ErrorTypeAnalysis, "model returned no text")
	}

	return text, nil
}

// collectText gathers the text parts across all candidates
func collectText(resp *genai.GenerateContentResponse) string {
	var texts []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok && string(t) != "" {
				texts = append(texts, string(t))
			}
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}

// DetectMIME guesses an image MIME type from the file extension
func DetectMIME(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" && strings.HasPrefix(t, "image/") {
		return t
	}
	return "image/jpeg"
}
