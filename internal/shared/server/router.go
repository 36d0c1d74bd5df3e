package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-editor/internal/account"
	"resume-editor/internal/auth"
	"resume-editor/internal/editor"
	"resume-editor/internal/resumes"
	"resume-editor/internal/services/health"
	"resume-editor/internal/shared/config"
	"resume-editor/internal/shared/metrics"
	"resume-editor/internal/shared/server/middleware"
	"resume-editor/internal/shared/server/respond"
	"resume-editor/internal/users"
)

const (
	rateGroupDefault = "DEFAULT"
	rateGroupEdits   = "EDITS"
	rateGroupWrites  = "WRITES"
)

// RouterDeps are the handlers mounted by NewRouter. Nil handlers are skipped.
type RouterDeps struct {
	Config         config.Config
	Health         *health.Service
	ResumeHandler  *resumes.Handler
	EditorHandler  *editor.Handler
	UserHandler    *users.Handler
	AccountHandler *account.Handler
	LinkedInAuth   *auth.LinkedInService
	RateLimiter    *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}
	public := r.Group("/api/v1")
	public.GET("/health", func(c *gin.Context) {
		report := healthSvc.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	public.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.Use(
		middleware.Auth(deps.Config.Env),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: rateGroupDefault,
			GroupFor:     rateGroupFor,
			Limiter:      deps.RateLimiter,
			Rules: map[string]middleware.RateLimitRule{
				rateGroupEdits:  {Rate: 20, Burst: 60},
				rateGroupWrites: {Rate: 2, Burst: 10},
			},
		}),
	)
	if deps.LinkedInAuth != nil {
		deps.LinkedInAuth.RegisterRoutes(api)
	}
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(api)
	}
	if deps.AccountHandler != nil {
		deps.AccountHandler.RegisterRoutes(api)
	}
	if deps.ResumeHandler != nil {
		deps.ResumeHandler.RegisterRoutes(api)
	}
	if deps.EditorHandler != nil {
		deps.EditorHandler.RegisterRoutes(api)
	}

	return r
}

// rateGroupFor puts session patches in their own bucket. Other mutations
// share the writes bucket and reads are unlimited.
func rateGroupFor(c *gin.Context) string {
	switch c.Request.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return rateGroupDefault
	}
	if strings.HasSuffix(c.FullPath(), "/sessions/:id/patches") {
		return rateGroupEdits
	}
	return rateGroupWrites
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
