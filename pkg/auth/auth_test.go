package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"watchlist/pkg/config"
	"watchlist/pkg/models"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	auth     *Auth
	sessions *MemorySessionStore
	server   *httptest.Server
	client   *http.Client

	// /hold signals entered and then blocks until release is closed.
	entered chan struct{}
	release chan struct{}
}

func newTestEnv(t *testing.T, users map[uint]*models.User) *testEnv {
	t.Helper()

	cfg := config.DefaultConfig().Auth
	sessions := NewMemorySessionStore()
	loader := func(_ context.Context, id uint) (*models.User, error) {
		if u, ok := users[id]; ok {
			return u, nil
		}
		return nil, errors.New("no such user")
	}
	a := New(&cfg, sessions, loader)

	r := gin.New()
	r.Use(a.Middleware())
	r.GET("/flash", func(c *gin.Context) {
		a.Flash(c, c.Query("msg"))
		c.String(http.StatusOK, "queued")
	})
	r.GET("/read", func(c *gin.Context) {
		c.String(http.StatusOK, strings.Join(Flashes(c), ","))
	})
	r.GET("/login/:id", func(c *gin.Context) {
		a.Login(c, users[1])
		c.String(http.StatusOK, "in")
	})
	r.GET("/logout", func(c *gin.Context) {
		a.Logout(c)
		a.Flash(c, "bye")
		c.String(http.StatusOK, "out")
	})
	r.GET("/me", func(c *gin.Context) {
		if u := CurrentUser(c); u != nil {
			c.String(http.StatusOK, u.Username)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})
	r.GET("/private", a.RequireLogin("/login-page", "need login"), func(c *gin.Context) {
		c.String(http.StatusOK, "secret")
	})
	entered, release := make(chan struct{}, 1), make(chan struct{})
	r.GET("/hold", func(c *gin.Context) {
		entered <- struct{}{}
		<-release
		a.Flash(c, "late")
		c.String(http.StatusOK, "held")
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &testEnv{
		auth:     a,
		sessions: sessions,
		server:   srv,
		client:   client,
		entered:  entered,
		release:  release,
	}
}

func (e *testEnv) get(t *testing.T, path string) (int, string, *http.Response) {
	t.Helper()
	resp, err := e.client.Get(e.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body), resp
}

func TestFlashIsShownOnce(t *testing.T) {
	env := newTestEnv(t, nil)

	env.get(t, "/flash?msg=hello")
	if _, body, _ := env.get(t, "/read"); body != "hello" {
		t.Fatalf("expected flash 'hello', got %q", body)
	}
	if _, body, _ := env.get(t, "/read"); body != "" {
		t.Errorf("expected flash to be cleared, got %q", body)
	}
	if env.sessions.Len() != 0 {
		t.Errorf("expected empty session to be discarded, %d left", env.sessions.Len())
	}
}

func TestAnonymousRequestDoesNotCreateSession(t *testing.T) {
	env := newTestEnv(t, nil)

	_, body, resp := env.get(t, "/me")
	if body != "anonymous" {
		t.Errorf("expected anonymous, got %q", body)
	}
	if len(resp.Cookies()) != 0 {
		t.Errorf("expected no cookie, got %v", resp.Cookies())
	}
	if env.sessions.Len() != 0 {
		t.Errorf("expected no stored sessions, got %d", env.sessions.Len())
	}
}

func TestLoginLogout(t *testing.T) {
	users := map[uint]*models.User{1: {ID: 1, Username: "test"}}
	env := newTestEnv(t, users)

	if code, _, resp := env.get(t, "/private"); code != http.StatusFound || resp.Header.Get("Location") != "/login-page" {
		t.Fatalf("expected redirect to /login-page, got %d %q", code, resp.Header.Get("Location"))
	}
	if _, body, _ := env.get(t, "/read"); body != "need login" {
		t.Errorf("expected guard flash, got %q", body)
	}

	env.get(t, "/login/1")
	if _, body, _ := env.get(t, "/me"); body != "test" {
		t.Fatalf("expected logged in user, got %q", body)
	}
	if code, body, _ := env.get(t, "/private"); code != http.StatusOK || body != "secret" {
		t.Fatalf("expected guarded route to be served, got %d %q", code, body)
	}

	env.get(t, "/logout")
	if _, body, _ := env.get(t, "/me"); body != "anonymous" {
		t.Errorf("expected anonymous after logout, got %q", body)
	}
	if _, body, _ := env.get(t, "/read"); body != "bye" {
		t.Errorf("expected logout flash to survive, got %q", body)
	}
}

func TestSessionForDeletedUserIsAnonymous(t *testing.T) {
	users := map[uint]*models.User{1: {ID: 1, Username: "test"}}
	env := newTestEnv(t, users)

	env.get(t, "/login/1")
	delete(users, 1)

	if _, body, _ := env.get(t, "/me"); body != "anonymous" {
		t.Errorf("expected unresolved user to be anonymous, got %q", body)
	}
}

func TestLoginRotatesSessionID(t *testing.T) {
	users := map[uint]*models.User{1: {ID: 1, Username: "test"}}
	env := newTestEnv(t, users)

	_, _, before := env.get(t, "/flash?msg=x")
	_, _, after := env.get(t, "/login/1")

	if len(before.Cookies()) == 0 || len(after.Cookies()) == 0 {
		t.Fatal("expected cookies on both responses")
	}
	oldClaims, err := env.auth.ValidateToken(before.Cookies()[0].Value)
	if err != nil {
		t.Fatal(err)
	}
	newClaims, err := env.auth.ValidateToken(after.Cookies()[0].Value)
	if err != nil {
		t.Fatal(err)
	}
	if oldClaims.ID == newClaims.ID {
		t.Error("expected login to issue a new session id")
	}
	if _, ok := env.sessions.Get(oldClaims.ID); ok {
		t.Error("expected the pre-login session to be removed")
	}
}

func TestValidateToken(t *testing.T) {
	cfg := config.DefaultConfig().Auth
	a := New(&cfg, NewMemorySessionStore(), nil)

	token, err := a.GenerateToken(&Session{ID: "abc", ExpiresAt: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := a.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.ID != "abc" {
		t.Errorf("expected session id abc, got %q", claims.ID)
	}

	other := config.DefaultConfig().Auth
	other.SecretKey = "other"
	if _, err := New(&other, nil, nil).ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected token signed with another key to fail, got %v", err)
	}

	expired, _ := a.GenerateToken(&Session{ID: "abc", ExpiresAt: time.Now().Add(-time.Minute)})
	if _, err := a.ValidateToken(expired); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected expired token to fail, got %v", err)
	}
}

func TestValidateCredentials(t *testing.T) {
	cfg := config.DefaultConfig().Auth
	a := New(&cfg, nil, nil)

	user := &models.User{Username: "test"}
	if err := user.SetPassword("123456"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		user     *models.User
		username string
		password string
		wantErr  bool
	}{
		{name: "correct", user: user, username: "test", password: "123456"},
		{name: "wrong password", user: user, username: "test", password: "000000", wantErr: true},
		{name: "wrong username", user: user, username: "other", password: "123456", wantErr: true},
		{name: "no user", user: nil, username: "test", password: "123456", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.ValidateCredentials(tt.user, tt.username, tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCredentials() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMemorySessionStoreExpiry(t *testing.T) {
	store := NewMemorySessionStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	if err := store.Save(&Session{ID: "s1", UserID: 1, ExpiresAt: now.Add(time.Minute)}); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Get("s1"); !ok {
		t.Fatal("expected live session")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := store.Get("s1"); ok {
		t.Error("expected expired session to be gone")
	}
	if store.Len() != 0 {
		t.Errorf("expected expired session to be deleted, %d left", store.Len())
	}
}

func TestCookielessGuardRedirectsDoNotAccumulate(t *testing.T) {
	env := newTestEnv(t, nil)
	now := time.Now()
	env.sessions.now = func() time.Time { return now }

	anonymous := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	hit := func() {
		resp, err := anonymous.Get(env.server.URL + "/private")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
	}

	for i := 0; i < 500; i++ {
		hit()
	}
	if n := env.sessions.Len(); n != 500 {
		t.Fatalf("expected 500 live flash sessions, got %d", n)
	}

	now = now.Add(48 * time.Hour)
	for i := 0; i < sweepInterval; i++ {
		hit()
	}
	if n := env.sessions.Len(); n > sweepInterval {
		t.Errorf("expected expired sessions to be swept, %d left", n)
	}
}

func TestMemorySessionStoreRejectsStaleSave(t *testing.T) {
	store := NewMemorySessionStore()

	fresh := &Session{ID: "s1", UserID: 1}
	if err := store.Save(fresh); err != nil {
		t.Fatalf("first save: %v", err)
	}

	loaded, _ := store.Get("s1")
	other, _ := store.Get("s1")
	loaded.Flashes = []string{"a"}
	if err := store.Save(loaded); err != nil {
		t.Fatalf("save of loaded session: %v", err)
	}
	if err := store.Save(loaded); err != nil {
		t.Fatalf("second save by the same holder: %v", err)
	}
	if err := store.Save(other); !errors.Is(err, ErrStaleSession) {
		t.Errorf("expected concurrent copy to be stale, got %v", err)
	}

	store.Delete("s1")
	if err := store.Save(loaded); !errors.Is(err, ErrStaleSession) {
		t.Errorf("expected deleted session not to be recreated, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("expected no sessions, got %d", store.Len())
	}
}

func TestLogoutIsNotUndoneByInFlightRequest(t *testing.T) {
	users := map[uint]*models.User{1: {ID: 1, Username: "test"}}
	env := newTestEnv(t, users)

	_, _, resp := env.get(t, "/login/1")
	claims, err := env.auth.ValidateToken(resp.Cookies()[0].Value)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if resp, err := env.client.Get(env.server.URL + "/hold"); err == nil {
			resp.Body.Close()
		}
	}()

	<-env.entered
	env.get(t, "/logout")
	close(env.release)
	<-done

	if _, ok := env.sessions.Get(claims.ID); ok {
		t.Error("expected the logged-out session to stay deleted")
	}
	if _, body, _ := env.get(t, "/me"); body != "anonymous" {
		t.Errorf("expected anonymous after logout, got %q", body)
	}
}

