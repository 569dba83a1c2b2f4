package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"watchlist/pkg/auth"
	"watchlist/pkg/config"
	"watchlist/pkg/metrics"
	"watchlist/pkg/models"
	"watchlist/pkg/store"
	"watchlist/templates"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var errMissingField = errors.New("missing form field")

// Handlers contains all HTTP handlers
type Handlers struct {
	config  *config.Config
	store   *store.Store
	auth    *auth.Auth
	metrics *metrics.Metrics
	log     *slog.Logger
}

// New creates a new Handlers instance
func New(cfg *config.Config, store *store.Store, auth *auth.Auth, metrics *metrics.Metrics, log *slog.Logger) *Handlers {
	return &Handlers{
		config:  cfg,
		store:   store,
		auth:    auth,
		metrics: metrics,
		log:     log,
	}
}

// ============== Movie Handlers ==============

// Index lists all movies
func (h *Handlers) Index(c *gin.Context) {
	movies, err := h.store.Movies(c.Request.Context())
	if err != nil {
		h.serverError(c, err)
		return
	}
	h.render(c, http.StatusOK, templates.IndexPage(h.page(c), movies))
}

// CreateMovie adds a movie. Anonymous posts are sent home without a message.
func (h *Handlers) CreateMovie(c *gin.Context) {
	if !auth.IsAuthenticated(c) {
		c.Redirect(http.StatusFound, "/")
		return
	}

	var req models.MovieRequest
	if !h.bind(c, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.auth.Flash(c, MsgInvalidInput)
		c.Redirect(http.StatusFound, "/")
		return
	}

	ctx := c.Request.Context()
	err := h.store.Tx(ctx, func(tx *store.Store) error {
		var movie models.Movie
		req.Apply(&movie)
		return tx.CreateMovie(ctx, &movie)
	})
	if err != nil {
		h.serverError(c, err)
		return
	}

	h.metrics.MovieChanged("create")
	h.auth.Flash(c, MsgMovieCreated)
	c.Redirect(http.StatusFound, "/")
}

// EditMovie renders the edit form
func (h *Handlers) EditMovie(c *gin.Context) {
	id, ok := movieID(c)
	if !ok {
		h.NotFound(c)
		return
	}

	movie, err := h.store.Movie(c.Request.Context(), id)
	if err != nil {
		h.storeError(c, err)
		return
	}
	h.render(c, http.StatusOK, templates.EditPage(h.page(c), movie))
}

// UpdateMovie saves the edit form
func (h *Handlers) UpdateMovie(c *gin.Context) {
	id, ok := movieID(c)
	if !ok {
		h.NotFound(c)
		return
	}

	var req models.MovieRequest
	if !h.bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	err := h.store.Tx(ctx, func(tx *store.Store) error {
		movie, err := tx.Movie(ctx, id)
		if err != nil {
			return err
		}
		if !req.Complete() {
			return errMissingField
		}
		if err := req.Validate(); err != nil {
			return err
		}
		req.Apply(movie)
		return tx.UpdateMovie(ctx, movie)
	})

	switch {
	case errors.Is(err, errMissingField):
		h.BadRequest(c)
	case errors.Is(err, models.ErrInvalidMovie):
		h.auth.Flash(c, MsgInvalidInput)
		c.Redirect(http.StatusFound, "/movie/edit/"+strconv.FormatUint(uint64(id), 10))
	case err != nil:
		h.storeError(c, err)
	default:
		h.metrics.MovieChanged("update")
		h.auth.Flash(c, MsgMovieUpdated)
		c.Redirect(http.StatusFound, "/")
	}
}

// DeleteMovie removes a movie
func (h *Handlers) DeleteMovie(c *gin.Context) {
	id, ok := movieID(c)
	if !ok {
		h.NotFound(c)
		return
	}

	ctx := c.Request.Context()
	err := h.store.Tx(ctx, func(tx *store.Store) error {
		return tx.DeleteMovie(ctx, id)
	})
	if err != nil {
		h.storeError(c, err)
		return
	}

	h.metrics.MovieChanged("delete")
	h.auth.Flash(c, MsgMovieDeleted)
	c.Redirect(http.StatusFound, "/")
}

// ============== Settings Handlers ==============

// Settings renders the display-name form
func (h *Handlers) Settings(c *gin.Context) {
	h.render(c, http.StatusOK, templates.SettingsPage(h.page(c)))
}

// UpdateSettings changes the logged-in user's display name
func (h *Handlers) UpdateSettings(c *gin.Context) {
	var req models.SettingsRequest
	if !h.bind(c, &req) {
		return
	}
	if req.Name == nil {
		h.BadRequest(c)
		return
	}

	if err := req.Validate(); err != nil {
		h.auth.Flash(c, MsgInvalidInput)
		c.Redirect(http.StatusFound, "/settings")
		return
	}

	current := auth.CurrentUser(c)
	ctx := c.Request.Context()
	err := h.store.Tx(ctx, func(tx *store.Store) error {
		user, err := tx.User(ctx, current.ID)
		if err != nil {
			return err
		}
		user.Name = *req.Name
		return tx.SaveUser(ctx, user)
	})
	if err != nil {
		h.serverError(c, err)
		return
	}

	current.Name = *req.Name
	h.auth.Flash(c, MsgSettingsSaved)
	c.Redirect(http.StatusFound, "/")
}

// ============== Auth Handlers ==============

// LoginPage renders the login form
func (h *Handlers) LoginPage(c *gin.Context) {
	h.render(c, http.StatusOK, templates.LoginPage(h.page(c)))
}

// Login checks the submitted credentials against the first user
func (h *Handlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if !h.bind(c, &req) {
		return
	}
	if !req.Complete() {
		h.BadRequest(c)
		return
	}

	if req.Empty() {
		h.auth.Flash(c, MsgInvalidInput)
		c.Redirect(http.StatusFound, "/login")
		return
	}

	user, err := h.store.FirstUser(c.Request.Context())
	if err != nil && !errors.Is(err, store.ErrUserNotFound) {
		h.serverError(c, err)
		return
	}

	if err := h.auth.ValidateCredentials(user, *req.Username, *req.Password); err != nil {
		h.metrics.LoginAttempt(false)
		h.log.Info("login rejected", "client_ip", c.ClientIP())
		h.auth.Flash(c, MsgBadCredentials)
		c.Redirect(http.StatusFound, "/login")
		return
	}

	h.auth.Login(c, user)
	h.metrics.LoginAttempt(true)
	h.auth.Flash(c, MsgLoginSucceeded)
	c.Redirect(http.StatusFound, "/")
}

// Logout handles user logout
func (h *Handlers) Logout(c *gin.Context) {
	h.auth.Logout(c)
	h.auth.Flash(c, MsgLoggedOut)
	c.Redirect(http.StatusFound, "/")
}

// ============== Error Handlers ==============

// NotFound renders the 404 view
func (h *Handlers) NotFound(c *gin.Context) {
	h.render(c, http.StatusNotFound, templates.ErrorPage(h.page(c), http.StatusNotFound))
}

// BadRequest renders the 400 view
func (h *Handlers) BadRequest(c *gin.Context) {
	h.render(c, http.StatusBadRequest, templates.ErrorPage(h.page(c), http.StatusBadRequest))
}

// Recover renders the 500 view for a panic caught by gin's recovery middleware
func (h *Handlers) Recover(c *gin.Context, recovered any) {
	h.log.Error("panic serving request", "path", c.Request.URL.Path, "panic", recovered)
	h.internalError(c)
}

func (h *Handlers) storeError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrMovieNotFound) {
		h.NotFound(c)
		return
	}
	h.serverError(c, err)
}

func (h *Handlers) serverError(c *gin.Context, err error) {
	_ = c.Error(err)
	h.log.Error("request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	h.internalError(c)
}

// internalError renders the 500 view without touching the database.
func (h *Handlers) internalError(c *gin.Context) {
	p := templates.Page{Current: auth.CurrentUser(c)}
	h.render(c, http.StatusInternalServerError, templates.ErrorPage(p, http.StatusInternalServerError))
	c.Abort()
}

// ============== Helpers ==============

// page collects the values shared by every view. The owner lookup is
// independent of who is logged in.
func (h *Handlers) page(c *gin.Context) templates.Page {
	return templates.Page{
		Owner:   h.owner(c.Request.Context()),
		Current: auth.CurrentUser(c),
		Flashes: auth.Flashes(c),
	}
}

func (h *Handlers) owner(ctx context.Context) *models.User {
	user, err := h.store.FirstUser(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			h.log.Warn("load first user", "error", err)
		}
		return nil
	}
	return user
}

// bind maps the urlencoded body onto req. A body that cannot be parsed gets
// the 400 view.
func (h *Handlers) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindWith(req, binding.FormPost); err != nil {
		h.log.Debug("bind form", "path", c.Request.URL.Path, "error", err)
		h.BadRequest(c)
		return false
	}
	return true
}

// movieID parses the :id path parameter. Anything but a positive integer
// is treated like an unknown route.
func movieID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// render renders a templ component
func (h *Handlers) render(c *gin.Context, status int, template templ.Component) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := template.Render(c.Request.Context(), c.Writer); err != nil {
		h.log.Error("template rendering failed", "path", c.Request.URL.Path, "error", err)
		c.String(http.StatusInternalServerError, "Template rendering error")
	}
}
