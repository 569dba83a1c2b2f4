package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"watchlist/pkg/config"
	"watchlist/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

const (
	sessionKey = "session"
	userKey    = "user"
)

// UserLoader resolves a session's user id to a user. Any error leaves the
// request anonymous.
type UserLoader func(ctx context.Context, id uint) (*models.User, error)

// Claims represents the session cookie claims. The JWT ID is the session id.
type Claims struct {
	jwt.RegisteredClaims
}

// Auth handles sessions, login state and flash messages
type Auth struct {
	config   *config.AuthConfig
	sessions SessionStore
	loadUser UserLoader
	now      func() time.Time
}

// New creates a new Auth instance
func New(cfg *config.AuthConfig, sessions SessionStore, loadUser UserLoader) *Auth {
	return &Auth{
		config:   cfg,
		sessions: sessions,
		loadUser: loadUser,
		now:      time.Now,
	}
}

// ValidateCredentials checks username and password against the stored user.
// A nil user is treated as a failed login.
func (a *Auth) ValidateCredentials(user *models.User, username, password string) error {
	if user == nil || user.Username != username || !user.ValidatePassword(password) {
		return ErrInvalidCredentials
	}
	return nil
}

// GenerateToken signs a cookie token for the session
func (a *Auth) GenerateToken(s *Session) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(a.now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.config.SecretKey))
}

// ValidateToken validates a cookie token and returns the claims
func (a *Auth) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(a.config.SecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))

	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.ID != "" {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// Middleware restores the session named by the cookie and resolves its user.
// Sessions are only issued once something needs to be remembered.
func (a *Auth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := a.restore(c)
		c.Set(sessionKey, sess)

		if sess.UserID != 0 {
			user, err := a.loadUser(c.Request.Context(), sess.UserID)
			if err == nil && user != nil {
				c.Set(userKey, user)
			} else {
				sess.UserID = 0
			}
		}

		c.Next()

		switch {
		case sess.ID == "":
		case sess.empty():
			a.sessions.Delete(sess.ID)
		default:
			// A stale session lost a race with logout or another save.
			if err := a.sessions.Save(sess); err != nil {
				_ = c.Error(err)
			}
		}
	}
}

func (a *Auth) restore(c *gin.Context) *Session {
	tokenString, err := c.Cookie(a.config.CookieName)
	if err == nil && tokenString != "" {
		if claims, err := a.ValidateToken(tokenString); err == nil {
			if sess, ok := a.sessions.Get(claims.ID); ok {
				return sess
			}
		}
	}
	return &Session{}
}

// issue gives the session a fresh id and writes the cookie. It must run
// before the response header is written.
func (a *Auth) issue(c *gin.Context, sess *Session) {
	if sess.ID != "" {
		a.sessions.Delete(sess.ID)
	}
	sess.ID = uuid.New().String()
	sess.version = 0
	sess.ExpiresAt = a.now().Add(a.config.SessionTTL)

	token, err := a.GenerateToken(sess)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(a.config.CookieName, token, int(a.config.SessionTTL.Seconds()), "/", "", a.config.CookieSecure, true)
}

// session returns the request's session, or a detached one when the
// middleware did not run.
func session(c *gin.Context) *Session {
	if v, ok := c.Get(sessionKey); ok {
		if sess, ok := v.(*Session); ok {
			return sess
		}
	}
	sess := &Session{}
	c.Set(sessionKey, sess)
	return sess
}

// Login binds user to the session under a new session id
func (a *Auth) Login(c *gin.Context, user *models.User) {
	sess := session(c)
	a.issue(c, sess)
	sess.UserID = user.ID
	c.Set(userKey, user)
}

// Logout forgets the user and rotates the session id. Pending flashes survive.
func (a *Auth) Logout(c *gin.Context) {
	sess := session(c)
	sess.UserID = 0
	c.Set(userKey, (*models.User)(nil))
	if sess.ID != "" || len(sess.Flashes) > 0 {
		a.issue(c, sess)
	}
}

// Flash queues a message for the next rendered page
func (a *Auth) Flash(c *gin.Context, message string) {
	sess := session(c)
	if sess.ID == "" {
		a.issue(c, sess)
	}
	sess.Flashes = append(sess.Flashes, message)
}

// Flashes returns and clears the queued messages
func Flashes(c *gin.Context) []string {
	sess := session(c)
	msgs := sess.Flashes
	sess.Flashes = nil
	return msgs
}

// CurrentUser returns the authenticated user, or nil for anonymous requests
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// IsAuthenticated reports whether the request carries a logged-in session
func IsAuthenticated(c *gin.Context) bool {
	return CurrentUser(c) != nil
}

// RequireLogin redirects anonymous requests to loginPath with a flash
// message and stops the handler chain.
func (a *Auth) RequireLogin(loginPath, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsAuthenticated(c) {
			c.Next()
			return
		}
		if message != "" {
			a.Flash(c, message)
		}
		c.Redirect(http.StatusFound, loginPath)
		c.Abort()
	}
}
