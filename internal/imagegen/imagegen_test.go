package imagegen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake-image")

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	if cfg.OutputDir == "" {
		cfg.OutputDir = t.TempDir()
	}
	c := New(cfg, zaptest.NewLogger(t))
	c.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	return c
}

func TestTextToImage(t *testing.T) {
	var got hfRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer hf-token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	}))
	defer srv.Close()

	c := newTestClient(t, Config{HFToken: "hf-token", HFModelURL: srv.URL})

	img, err := c.TextToImage(context.Background(), "  a red fox  ")
	require.NoError(t, err)

	assert.Equal(t, "a red fox", got.Inputs)
	assert.Equal(t, negativePrompt, got.Parameters.NegativePrompt)
	assert.True(t, got.Options.WaitForModel)

	assert.True(t, strings.HasPrefix(img.ID, "hf_text_"))
	assert.Equal(t, img.ID+".png", img.Filename)
	assert.Equal(t, "/generated/"+img.Filename, img.URL)

	data, err := os.ReadFile(filepath.Join(c.cfg.OutputDir, img.Filename))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
}

func TestTextToImageRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, `{"error":"model loading"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(pngBytes)
	}))
	defer srv.Close()

	c := newTestClient(t, Config{HFToken: "t", HFModelURL: srv.URL})

	img, err := c.TextToImage(context.Background(), "fox")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, strings.HasSuffix(img.Filename, ".jpg"))
}

func TestTextToImageDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, Config{HFToken: "t", HFModelURL: srv.URL})

	_, err := c.TextToImage(context.Background(), "fox")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestOversizedResponseIsRejected(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := newTestClient(t, Config{HFToken: "t", HFModelURL: srv.URL, OutputDir: dir, MaxResponseBytes: int64(len(pngBytes) - 1)})

	_, err := c.TextToImage(context.Background(), "fox")
	require.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, int32(1), calls.Load(), "not retried")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing is saved")

	c = newTestClient(t, Config{HFToken: "t", HFModelURL: srv.URL, MaxResponseBytes: int64(len(pngBytes))})
	_, err = c.TextToImage(context.Background(), "fox")
	require.NoError(t, err, "a response exactly at the limit is accepted")
}

func TestTextToImageRejectsNonImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":"nope"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, Config{HFToken: "t", HFModelURL: srv.URL})

	_, err := c.TextToImage(context.Background(), "fox")
	require.ErrorIs(t, err, ErrNoImage)
}

func TestTextToImageInputAndConfig(t *testing.T) {
	c := newTestClient(t, Config{})

	_, err := c.TextToImage(context.Background(), "   ")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = c.TextToImage(context.Background(), "fox")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestDrawToImage(t *testing.T) {
	sketch := base64.StdEncoding.EncodeToString([]byte("sketch"))
	generated := base64.StdEncoding.EncodeToString(pngBytes)

	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gem-key", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[
			{"text":"here you go"},
			{"inlineData":{"mimeType":"image/png","data":"` + generated + `"}}
		]}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, Config{GeminiKey: "gem-key", GeminiURL: srv.URL})

	img, err := c.DrawToImage(context.Background(), "data:image/png;base64,"+sketch, "a cat")
	require.NoError(t, err)

	require.Len(t, got.Contents, 1)
	parts := got.Contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, sketch, parts[0].InlineData.Data)
	assert.Equal(t, "image/png", parts[0].InlineData.MimeType)
	assert.Equal(t, "a cat"+sketchSuffix, parts[1].Text)

	assert.True(t, strings.HasPrefix(img.ID, "gemini_draw_"))
	data, err := os.ReadFile(filepath.Join(c.cfg.OutputDir, img.Filename))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
}

func TestDrawToImageBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, Config{GeminiKey: "k", GeminiURL: srv.URL})
	sketch := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("s"))

	_, err := c.DrawToImage(context.Background(), sketch, "cat")
	require.ErrorIs(t, err, ErrNoImage)
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestDrawToImageNoImagePart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"only text"}]}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, Config{GeminiKey: "k", GeminiURL: srv.URL})
	sketch := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("s"))

	_, err := c.DrawToImage(context.Background(), sketch, "cat")
	require.ErrorIs(t, err, ErrNoImage)
}

func TestParseDataURL(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("x"))

	mime, data, err := parseDataURL("data:image/jpeg;base64," + payload)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
	assert.Equal(t, payload, data)

	for _, bad := range []string{
		payload,
		"data:image/png;base64,",
		"data:image/png," + payload,
		"data:text/plain;base64," + payload,
		"data:image/png;base64,***",
	} {
		_, _, err := parseDataURL(bad)
		assert.ErrorIs(t, err, ErrInvalidInput, bad)
	}
}
