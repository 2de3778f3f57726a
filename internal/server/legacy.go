package server

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/middleware"
	"github.com/MrEthical07/goGate/session"
)

const requestIDHeader = "X-Request-Id"

// Messages shown on the legacy login page.
const (
	msgCredentialsRequired = "Username and password required"
	msgInvalidCredentials  = "Invalid username or password"
	msgRateLimited         = "Too many login attempts. Try again later."
	msgLoginFailed         = "Login failed"
	msgLoginUnavailable    = "Admin login is unavailable. Please contact the administrator."
	msgForbidden           = "Forbidden: Admin access required"
)

var legacyTemplates = template.Must(template.New("legacy").Parse(`
{{define "login"}}<!doctype html>
<html><head><title>Admin login</title></head><body>
<h1>Admin login</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/admin/login">
<input type="hidden" name="next" value="{{.Next}}">
<label>Username <input name="username" autocomplete="username"></label>
<label>Password <input type="password" name="password" autocomplete="current-password"></label>
<button type="submit">Log in</button>
</form>
</body></html>{{end}}
{{define "page"}}<!doctype html>
<html><head><title>{{.Title}}</title></head><body>
<h1>{{.Title}}</h1>
<p>Signed in as {{.User}} ({{.Role}})</p>
<a href="/admin/logout">Log out</a>
</body></html>{{end}}
{{define "forbidden"}}<!doctype html>
<html><head><title>Forbidden</title></head><body><p>{{.}}</p><a href="/admin/dashboard">Back</a></body></html>{{end}}
`))

// LegacyDeps wires the legacy admin router. Auth may be nil when no user
// database is configured; login then answers 503.
type LegacyDeps struct {
	Config   goGate.Config
	Sessions session.Store
	Auth     *goGate.Authenticator
	Metrics  *goGate.Metrics
	Logger   *slog.Logger
	// TrustedProxies feeds gin's client IP resolution, which keys the login
	// rate limit. Nil trusts no proxy headers.
	TrustedProxies []string
	Release        bool
	// TraceService enables otelgin server spans under that name.
	TraceService string
}

type legacyHandler struct {
	deps   LegacyDeps
	gate   *goGate.SessionGate
	cookie middleware.CookieOptions
	logger *slog.Logger
}

// BuildLegacyRouter returns the gin engine serving /admin.
func BuildLegacyRouter(d LegacyDeps) (*gin.Engine, error) {
	if d.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	if err := router.SetTrustedProxies(d.TrustedProxies); err != nil {
		return nil, err
	}
	router.SetHTMLTemplate(legacyTemplates)
	router.Use(gin.Recovery())
	if d.TraceService != "" {
		router.Use(otelgin.Middleware(d.TraceService))
	}
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(logger))

	h := &legacyHandler{
		deps: d,
		gate: goGate.NewSessionGate(goGate.LegacyRouteTable(), d.Sessions,
			goGate.WithLogger(logger),
			goGate.WithMetrics(d.Metrics),
			goGate.WithCookieName(d.Config.Session.CookieName),
			goGate.WithStoreRetry(d.Config.Session.StoreAttempts, d.Config.Session.StoreAttemptTimeout, d.Config.Session.StoreBackoff),
			goGate.WithAuthorizer(goGate.Authorizer{
				LoginPath:     goGate.LegacyLoginPath,
				ForbiddenPath: goGate.LegacyForbiddenPath,
			}),
		),
		cookie: middleware.CookieOptions{
			Name:   d.Config.Session.CookieName,
			MaxAge: d.Config.Session.TTL,
			Secure: d.Config.CookieSecure(),
		},
		logger: logger,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	router.GET(goGate.LegacyLoginPath, h.loginPage)
	router.POST(goGate.LegacyLoginPath, h.login)
	router.GET(goGate.LegacyLogoutPath, h.logout)
	router.GET(goGate.LegacyForbiddenPath, func(c *gin.Context) {
		c.HTML(http.StatusForbidden, "forbidden", msgForbidden)
	})

	admin := router.Group("/admin")
	admin.Use(sessionGuard(h.gate, middleware.Options{Logger: logger, Metrics: d.Metrics}))
	admin.GET("", func(c *gin.Context) {
		c.Redirect(http.StatusFound, goGate.LegacyHomePath)
	})
	admin.GET("/dashboard", h.page("Dashboard"))
	admin.GET("/projects", h.page("Projects"))
	admin.GET("/team", h.page("Team"))
	admin.GET("/settings", h.page("Settings"))

	return router, nil
}

type loginView struct {
	Error string
	Next  string
}

func (h *legacyHandler) loginPage(c *gin.Context) {
	if h.deps.Auth == nil {
		c.HTML(http.StatusOK, "login", loginView{Error: msgLoginUnavailable})
		return
	}
	if sid := middleware.SessionID(c.Request, h.cookie); sid != "" {
		if _, err := h.gate.Identify(c.Request.Context(), sid); err == nil {
			c.Redirect(http.StatusFound, goGate.LegacyHomePath)
			return
		}
	}
	c.HTML(http.StatusOK, "login", loginView{Next: c.Query(goGate.NextParam)})
}

func (h *legacyHandler) login(c *gin.Context) {
	if h.deps.Auth == nil {
		c.HTML(http.StatusServiceUnavailable, "login", loginView{Error: msgLoginUnavailable})
		return
	}

	next := c.PostForm(goGate.NextParam)
	st, err := h.deps.Auth.Login(c.Request.Context(), goGate.LoginRequest{
		Username: c.PostForm("username"),
		Password: c.PostForm("password"),
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		status, msg := loginFailure(err)
		c.HTML(status, "login", loginView{Error: msg, Next: next})
		return
	}

	middleware.SetSessionCookie(c.Writer, st.ID, h.cookie)
	dest := middleware.SafeNext(next)
	if dest == "/" {
		dest = goGate.LegacyHomePath
	}
	c.Redirect(http.StatusFound, dest)
}

func loginFailure(err error) (int, string) {
	switch {
	case errors.Is(err, goGate.ErrCredentialsRequired):
		return http.StatusBadRequest, msgCredentialsRequired
	case errors.Is(err, goGate.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgInvalidCredentials
	case errors.Is(err, goGate.ErrLoginRateLimited):
		return http.StatusTooManyRequests, msgRateLimited
	default:
		return http.StatusInternalServerError, msgLoginFailed
	}
}

func (h *legacyHandler) logout(c *gin.Context) {
	if sid := middleware.SessionID(c.Request, h.cookie); sid != "" {
		var err error
		if h.deps.Auth != nil {
			err = h.deps.Auth.Logout(c.Request.Context(), sid)
		} else {
			err = h.deps.Sessions.Delete(c.Request.Context(), sid)
		}
		if err != nil {
			h.logger.ErrorContext(c.Request.Context(), "logout failed", slog.Any("error", err))
		}
	}
	middleware.ClearSessionCookie(c.Writer, h.cookie)
	c.Redirect(http.StatusFound, goGate.LegacyLoginPath)
}

func (h *legacyHandler) page(title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := goGate.IdentityFromContext(c.Request.Context())
		view := struct{ Title, User, Role string }{Title: title}
		if id != nil {
			view.User = id.Name
			if view.User == "" {
				view.User = id.Subject
			}
			view.Role = id.Role.String()
		}
		c.HTML(http.StatusOK, "page", view)
	}
}

// sessionGuard runs middleware.Guard inside the gin chain. Handlers after it
// see the identity headers and context set by the gate.
func sessionGuard(gate goGate.Gate, opts middleware.Options) gin.HandlerFunc {
	guard := middleware.Guard(gate, opts)
	return func(c *gin.Context) {
		passed := false
		guard(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func loggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		attrs := []any{
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", c.GetString(requestIDHeader)),
		}
		if c.Writer.Status() >= 500 {
			logger.ErrorContext(c.Request.Context(), "request failed", attrs...)
			return
		}
		logger.InfoContext(c.Request.Context(), "request completed", attrs...)
	}
}
