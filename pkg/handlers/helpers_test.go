package handlers_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"watchlist/pkg/config"
	"watchlist/pkg/models"
	"watchlist/pkg/server"
	"watchlist/pkg/store"
)

const (
	testUsername   = "test"
	testPassword   = "123456"
	testMovieTitle = "测试电影名称"
)

type testApp struct {
	store   *store.Store
	server  *httptest.Server
	metrics http.Handler
	client  *http.Client
	logs    *syncBuffer
}

// syncBuffer collects log output written from server goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type response struct {
	status int
	body   string
	path   string
}

// newTestApp seeds a fresh sqlite file with one user and one movie and
// serves the full router.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()

	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")

	st, err := store.Open(cfg.Database)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.Init(ctx, true); err != nil {
		t.Fatalf("init store: %v", err)
	}

	user := &models.User{Name: "Test", Username: testUsername}
	if err := user.SetPassword(testPassword); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveUser(ctx, user); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateMovie(ctx, &models.Movie{Title: testMovieTitle, Year: "2020"}); err != nil {
		t.Fatal(err)
	}

	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	srv := server.New(cfg, st, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, _ := cookiejar.New(nil)
	return &testApp{
		store:   st,
		server:  ts,
		metrics: srv.MetricsHandler(),
		client:  &http.Client{Jar: jar},
		logs:    logs,
	}
}

func (a *testApp) do(t *testing.T, req *http.Request) response {
	t.Helper()

	resp, err := a.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return response{status: resp.StatusCode, body: string(body), path: resp.Request.URL.Path}
}

// get follows redirects like a browser would
func (a *testApp) get(t *testing.T, path string) response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, a.server.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	return a.do(t, req)
}

// post submits a form and follows the redirect
func (a *testApp) post(t *testing.T, path string, form url.Values) response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, a.server.URL+path, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(t, req)
}

func (a *testApp) login(t *testing.T) {
	t.Helper()
	resp := a.post(t, "/login", url.Values{"username": {testUsername}, "password": {testPassword}})
	if !strings.Contains(resp.body, "登录成功") {
		t.Fatalf("login failed, landed on %s", resp.path)
	}
}

func (a *testApp) movies(t *testing.T) []models.Movie {
	t.Helper()
	movies, err := a.store.Movies(context.Background())
	if err != nil {
		t.Fatalf("list movies: %v", err)
	}
	return movies
}

func hasFlash(body string) bool {
	return strings.Contains(body, `class="alert"`)
}
