package http

import (
	"log/slog"
	"time"

	"github.com/geocoder89/enrollhub/internal/accounts"
	"github.com/geocoder89/enrollhub/internal/auth"
	"github.com/geocoder89/enrollhub/internal/domain/user"
	"github.com/geocoder89/enrollhub/internal/enrollment"
	"github.com/geocoder89/enrollhub/internal/http/handlers"
	"github.com/geocoder89/enrollhub/internal/http/middlewares"
	"github.com/geocoder89/enrollhub/internal/observability"
	"github.com/geocoder89/enrollhub/internal/revocation"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps is everything the router needs. Denylist, Prom, Gatherer and Checks
// are optional.
type Deps struct {
	Env string

	Accounts   *accounts.Service
	Tokens     *auth.Manager
	Courses    handlers.CourseStore
	Enrollment *enrollment.Coordinator
	Denylist   revocation.Denylist

	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	Checks   []handlers.ReadinessCheck

	// ShuttingDown flips readiness to 503 while the server drains.
	ShuttingDown func() bool

	AllowedOrigins []string
	MaxBodyBytes   int64
	AuthRateLimit  int
	Tracing        bool
}

func NewRouter(log *slog.Logger, deps Deps) *gin.Engine {
	if deps.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	if deps.Tracing {
		r.Use(otelgin.Middleware("enrollhub-api"))
	}
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(deps.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(deps.MaxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// health
	h := handlers.NewHealthHandler(deps.ShuttingDown, deps.Checks...)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// a nil *Prom must not become a non-nil interface
	var authRec middlewares.AuthFailureRecorder
	if deps.Prom != nil {
		authRec = deps.Prom
	}

	authMW := middlewares.NewAuthMiddleware(deps.Tokens, deps.Accounts, deps.Denylist, authRec, log)
	limiter := middlewares.NewRateLimiter(deps.AuthRateLimit, time.Minute)

	authHandler := handlers.NewAuthHandler(deps.Accounts, deps.Tokens, deps.Denylist, log)
	coursesHandler := handlers.NewCoursesHandler(deps.Courses, deps.Enrollment, log)
	studentsHandler := handlers.NewStudentsHandler(deps.Accounts, deps.Enrollment, log)

	// auth
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", limiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.Register)
		authGroup.POST("/login", limiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.Login)

		authGroup.GET("/me", authMW.RequireAuth(), authHandler.Me)
		authGroup.PUT("/change-password", authMW.RequireAuth(), limiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP), authHandler.ChangePassword)
		authGroup.POST("/logout", authMW.RequireAuth(), authHandler.Logout)
	}

	// courses
	courses := r.Group("/courses", authMW.RequireAuth())
	{
		courses.GET("", coursesHandler.ListCourses)

		courses.POST("", authMW.RequireRole(user.RoleAdmin), coursesHandler.CreateCourse)
		courses.PUT("/:id", authMW.RequireRole(user.RoleAdmin), coursesHandler.UpdateCourse)
		courses.DELETE("/:id", authMW.RequireRole(user.RoleAdmin), coursesHandler.DeleteCourse)

		courses.POST("/:id/enroll", authMW.RequireRole(user.RoleStudent), coursesHandler.Enroll)
		courses.POST("/:id/unenroll", authMW.RequireRole(user.RoleStudent), coursesHandler.Unenroll)
	}

	// users
	users := r.Group("/users", authMW.RequireAuth())
	{
		users.PUT("/profile", studentsHandler.UpdateProfile)

		admin := users.Group("/students", authMW.RequireRole(user.RoleAdmin))
		admin.GET("", studentsHandler.ListStudents)
		admin.PUT("/:id", studentsHandler.UpdateStudent)
		admin.DELETE("/:id", studentsHandler.DeleteStudent)
	}

	return r
}
