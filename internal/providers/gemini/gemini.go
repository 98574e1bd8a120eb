package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"accentcoach/internal/ports"
)

const (
	DefaultModel   = "gemini-2.5-flash-preview-09-2025"
	genericMessage = "API Error"
)

var ErrEmptyOutput = errors.New("model returned no text")

// APIError carries the message the API reported for a failed request.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string { return e.Message }

// Config controls the Gemini client.
type Config struct {
	APIKey     string
	APIBaseURL string
	APIVersion string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Provider implements ports.GradingModel on the Gemini generateContent API.
type Provider struct {
	cfg Config

	mu     sync.Mutex
	client *genai.Client
}

func NewProvider(cfg Config) *Provider {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v1beta"
	}
	return &Provider{cfg: cfg}
}

func (p *Provider) Generate(ctx context.Context, req ports.ModelRequest) (string, error) {
	client, err := p.genaiClient(ctx)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(req.Prompt),
			genai.NewPartFromBytes(req.Audio, req.MIMEType),
		}, genai.RoleUser),
	}

	resp, err := client.Models.GenerateContent(ctx, p.cfg.Model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   evaluationSchema(),
	})
	if err != nil {
		return "", translateError(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyOutput
	}
	return text, nil
}

func (p *Provider) genaiClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, errors.New("GEMINI_API_KEY is not configured")
	}

	httpOptions := genai.HTTPOptions{
		BaseURL:    p.cfg.APIBaseURL,
		APIVersion: p.cfg.APIVersion,
	}
	if p.cfg.Timeout > 0 {
		timeout := p.cfg.Timeout
		httpOptions.Timeout = &timeout
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      p.cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  p.cfg.HTTPClient,
		HTTPOptions: httpOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	p.client = client
	return client, nil
}

func evaluationSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"score":           {Type: genai.TypeInteger},
			"result":          {Type: genai.TypeString},
			"accent_feedback": {Type: genai.TypeString},
			"advice":          {Type: genai.TypeString},
		},
		Required: []string{"score", "result", "accent_feedback", "advice"},
	}
}

func translateError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		message := strings.TrimSpace(apiErr.Message)
		if message == "" {
			message = genericMessage
		}
		return &APIError{StatusCode: apiErr.Code, Message: message}
	}
	return err
}
