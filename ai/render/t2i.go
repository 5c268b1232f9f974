package render

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hrygo/chatdigest/ai/internal/strutil"
)

// DefaultEndpoint is the public text-to-image service.
const DefaultEndpoint = "https://t2i.soulter.top/text2img"

// HTTPConfig configures the text-to-image HTTP client.
type HTTPConfig struct {
	Endpoint  string
	Timeout   time.Duration
	Options   ImageOptions
	UserAgent string
}

// ImageOptions controls the screenshot taken by the service.
type ImageOptions struct {
	FullPage bool   `json:"full_page"`
	Type     string `json:"type"`
	Quality  int    `json:"quality,omitempty"`
}

// DefaultImageOptions returns a full-page JPEG at moderate quality.
func DefaultImageOptions() ImageOptions {
	return ImageOptions{FullPage: true, Type: "jpeg", Quality: 40}
}

type generateRequest struct {
	Tmpl     string         `json:"tmpl"`
	TmplData map[string]any `json:"tmpldata"`
	JSON     bool           `json:"json"`
	Options  ImageOptions   `json:"options"`
}

type generateResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		ID string `json:"id"`
	} `json:"data"`
}

// HTTPRenderer renders templates through a remote text-to-image service.
type HTTPRenderer struct {
	http     *resty.Client
	endpoint string
	options  ImageOptions
}

// NewHTTPRenderer creates an HTTPRenderer. Empty fields fall back to defaults.
func NewHTTPRenderer(cfg HTTPConfig) *HTTPRenderer {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	opts := cfg.Options
	if opts.Type == "" {
		opts = DefaultImageOptions()
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &HTTPRenderer{
		http:     client,
		endpoint: endpoint,
		options:  opts,
	}
}

// Render posts the template and returns the URL of the generated image.
func (r *HTTPRenderer) Render(ctx context.Context, tmpl string, data map[string]any) (string, error) {
	var out generateResponse
	resp, err := r.http.R().
		SetContext(ctx).
		SetBody(generateRequest{Tmpl: tmpl, TmplData: data, JSON: true, Options: r.options}).
		SetResult(&out).
		Post(r.endpoint + "/generate")
	if err != nil {
		return "", fmt.Errorf("t2i: generate: %w", err)
	}
	if resp.IsError() {
		slog.Error("t2i: non-2xx response", "status", resp.StatusCode(), "body", strutil.Snippet(resp.String(), 200))
		return "", fmt.Errorf("t2i: generate: status %d", resp.StatusCode())
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("t2i: generate: no image id (code %d: %s)", out.Code, out.Message)
	}

	return r.endpoint + "/" + out.Data.ID, nil
}

var _ Renderer = (*HTTPRenderer)(nil)
