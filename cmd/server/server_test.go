package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Simplici0/forma/internal/cart"
	"github.com/Simplici0/forma/internal/catalog"
	"github.com/Simplici0/forma/internal/checkout"
	"github.com/Simplici0/forma/internal/db"
	"github.com/Simplici0/forma/internal/imagegen"
	"github.com/Simplici0/forma/internal/migrations"
	"github.com/Simplici0/forma/internal/receipt"
	"github.com/Simplici0/forma/internal/seed"
)

const (
	testAdminEmail    = "admin@forma.test"
	testAdminPassword = "s3cret"
)

type fakeImages struct {
	err     error
	prompts []string
	sketch  string
}

func (f *fakeImages) TextToImage(_ context.Context, prompt string) (imagegen.Image, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return imagegen.Image{}, f.err
	}
	return imagegen.Image{URL: "/generated/hf_text_1.png", ID: "hf_text_1", Filename: "hf_text_1.png"}, nil
}

func (f *fakeImages) DrawToImage(_ context.Context, sketch, prompt string) (imagegen.Image, error) {
	f.prompts = append(f.prompts, prompt)
	f.sketch = sketch
	if f.err != nil {
		return imagegen.Image{}, f.err
	}
	return imagegen.Image{URL: "/generated/gemini_draw_1.png", ID: "gemini_draw_1", Filename: "gemini_draw_1.png"}, nil
}

type testServer struct {
	srv    *server
	router http.Handler
	images *fakeImages
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	database, err := db.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, migrations.Up(ctx, database.DB))
	_, err = seed.Run(ctx, database.DB, seed.Config{AdminEmail: testAdminEmail, AdminPassword: testAdminPassword})
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	carts := cart.NewStore(cart.NewMemoryBackend(), 0)
	images := &fakeImages{}
	receipts, err := receipt.NewRenderer("")
	require.NoError(t, err)
	srv := &server{
		auth:         newAuthService(database, "test-secret", false),
		catalog:      catalog.NewStore(database),
		carts:        carts,
		checkout:     checkout.NewService(database, carts, nil, 49, log),
		images:       images,
		receipts:     receipts,
		log:          log,
		generatedDir: t.TempDir(),
	}
	return &testServer{srv: srv, router: srv.routes(), images: images}
}

// do sends a request through the router, replaying cookies from a previous
// response when given.
func (ts *testServer) do(t *testing.T, method, target string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) postForm(t *testing.T, target string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) adminCookies() []*http.Cookie {
	return []*http.Cookie{{Name: sessionCookieName, Value: ts.srv.auth.createSessionValue(testAdminEmail)}}
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func cookieNamed(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
