// Package imagegen calls the hosted image models used by the designer:
// text-to-image on Hugging Face and sketch-to-image on Gemini. Generated
// images are written to a local directory and served back by URL.
package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotConfigured = errors.New("imagegen: provider not configured")
	ErrInvalidInput  = errors.New("imagegen: invalid input")
	ErrNoImage       = errors.New("imagegen: provider returned no image")
	ErrTooLarge      = errors.New("imagegen: provider response too large")
)

const (
	negativePrompt = "blurry, deformed, ugly, text, watermark, signature"
	sketchSuffix   = ". Enhance the sketch, keep the style of the sketch but make it look more polished. Consider the sketch as a primary guide."

	defaultMaxResponseBytes = 20 << 20
)

// Config describes both providers and where generated files go.
type Config struct {
	HFToken    string
	HFModelURL string
	GeminiKey  string
	GeminiURL  string

	// OutputDir is where images are written; URLPrefix is the public path
	// OutputDir is served under.
	OutputDir string
	URLPrefix string

	Timeout    time.Duration
	MaxRetries uint64

	// MaxResponseBytes bounds a provider response; larger ones fail with
	// ErrTooLarge.
	MaxResponseBytes int64
}

// Image is a generated image saved to disk.
type Image struct {
	URL      string `json:"imageUrl"`
	ID       string `json:"imageId"`
	Filename string `json:"filename"`
}

// Client generates images. It is safe for concurrent use.
type Client struct {
	cfg        Config
	http       *http.Client
	log        *zap.Logger
	newBackOff func() backoff.BackOff
}

// New returns a client. Providers with empty credentials return
// ErrNotConfigured when called.
func New(cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.URLPrefix == "" {
		cfg.URLPrefix = "/generated"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = defaultMaxResponseBytes
	}

	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
	c.newBackOff = func() backoff.BackOff {
		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = time.Second
		policy.MaxInterval = 10 * time.Second
		policy.MaxElapsedTime = 2 * time.Minute
		return policy
	}
	return c
}

// TextToImage renders a prompt with the Hugging Face model.
func (c *Client) TextToImage(ctx context.Context, prompt string) (Image, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Image{}, fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}
	if c.cfg.HFToken == "" || c.cfg.HFModelURL == "" {
		return Image{}, fmt.Errorf("%w: text-to-image", ErrNotConfigured)
	}

	body, err := json.Marshal(hfRequest{
		Inputs:     prompt,
		Parameters: hfParameters{NegativePrompt: negativePrompt},
		Options:    hfOptions{WaitForModel: true},
	})
	if err != nil {
		return Image{}, fmt.Errorf("marshal text-to-image request: %w", err)
	}

	var (
		data     []byte
		mimeType string
	)
	err = c.retry(ctx, "text-to-image", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.HFModelURL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.HFToken)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "image/png")

		respBody, contentType, err := c.do(req)
		if err != nil {
			return err
		}
		if !strings.HasPrefix(contentType, "image/") {
			return backoff.Permanent(fmt.Errorf("%w: content type %q", ErrNoImage, contentType))
		}
		data, mimeType = respBody, contentType
		return nil
	})
	if err != nil {
		return Image{}, err
	}

	return c.save("hf_text", mimeType, data)
}

// DrawToImage turns a sketch, given as a base64 data URL, into a polished
// image guided by the prompt.
func (c *Client) DrawToImage(ctx context.Context, sketchDataURL, prompt string) (Image, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" || sketchDataURL == "" {
		return Image{}, fmt.Errorf("%w: sketch and prompt are required", ErrInvalidInput)
	}
	sketchMime, sketch, err := parseDataURL(sketchDataURL)
	if err != nil {
		return Image{}, err
	}
	if c.cfg.GeminiKey == "" || c.cfg.GeminiURL == "" {
		return Image{}, fmt.Errorf("%w: draw-to-image", ErrNotConfigured)
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{MimeType: sketchMime, Data: sketch}},
				{Text: prompt + sketchSuffix},
			},
		}},
	})
	if err != nil {
		return Image{}, fmt.Errorf("marshal draw-to-image request: %w", err)
	}

	var resp geminiResponse
	err = c.retry(ctx, "draw-to-image", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GeminiURL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("x-goog-api-key", c.cfg.GeminiKey)
		req.Header.Set("Content-Type", "application/json")

		respBody, _, err := c.do(req)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return backoff.Permanent(fmt.Errorf("decode draw-to-image response: %w", err))
		}
		return nil
	})
	if err != nil {
		return Image{}, err
	}

	part, err := resp.image()
	if err != nil {
		return Image{}, err
	}
	data, err := base64.StdEncoding.DecodeString(part.Data)
	if err != nil {
		return Image{}, fmt.Errorf("%w: bad base64 image data", ErrNoImage)
	}
	return c.save("gemini_draw", part.MimeType, data)
}

func (c *Client) retry(ctx context.Context, op string, fn func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.cfg.MaxRetries), ctx)
	return backoff.RetryNotify(fn, policy, func(err error, next time.Duration) {
		c.log.Warn("image generation failed, retrying",
			zap.String("operation", op),
			zap.Error(err),
			zap.Duration("next_attempt_in", next))
	})
}

// do runs a request and classifies failures: transport errors and 5xx/429
// are retried, other non-2xx statuses are permanent.
func (c *Client) do(req *http.Request) ([]byte, string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	limit := c.cfg.MaxResponseBytes
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("read response: %w", err)
	}
	tooLarge := int64(len(body)) > limit
	if tooLarge {
		body = body[:limit]
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := fmt.Errorf("provider returned %d: %s", resp.StatusCode, snippet(body))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, "", statusErr
		}
		return nil, "", backoff.Permanent(statusErr)
	}
	if tooLarge {
		return nil, "", backoff.Permanent(fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit))
	}

	return body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) save(prefix, mimeType string, data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, ErrNoImage
	}
	if err := os.MkdirAll(c.cfg.OutputDir, 0o755); err != nil {
		return Image{}, fmt.Errorf("create output dir: %w", err)
	}

	id := prefix + "_" + uuid.NewString()
	filename := id + extension(mimeType)
	if err := os.WriteFile(filepath.Join(c.cfg.OutputDir, filename), data, 0o644); err != nil {
		return Image{}, fmt.Errorf("write image: %w", err)
	}

	c.log.Info("image generated", zap.String("image_id", id), zap.Int("bytes", len(data)))
	return Image{
		URL:      strings.TrimRight(c.cfg.URLPrefix, "/") + "/" + filename,
		ID:       id,
		Filename: filename,
	}, nil
}

// parseDataURL splits "data:image/png;base64,...." into its mime type and
// base64 payload.
func parseDataURL(s string) (string, string, error) {
	header, payload, ok := strings.Cut(s, ",")
	if !ok || payload == "" || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return "", "", fmt.Errorf("%w: sketch must be a base64 data URL", ErrInvalidInput)
	}
	mimeType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	if mimeType == "" {
		mimeType = "image/png"
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return "", "", fmt.Errorf("%w: sketch mime type %q", ErrInvalidInput, mimeType)
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return "", "", fmt.Errorf("%w: sketch is not valid base64", ErrInvalidInput)
	}
	return mimeType, payload, nil
}

func extension(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	switch strings.TrimSpace(mimeType) {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
