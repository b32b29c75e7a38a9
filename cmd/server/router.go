package main

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/taskwise/internal/auth"
	"github.com/yukikurage/taskwise/internal/config"
	"github.com/yukikurage/taskwise/internal/constants"
	"github.com/yukikurage/taskwise/internal/handlers"
	"github.com/yukikurage/taskwise/internal/logging"
	"github.com/yukikurage/taskwise/internal/middleware"
	"github.com/yukikurage/taskwise/internal/repository"
	"gorm.io/gorm"
)

type routerDeps struct {
	cfg    *config.Config
	log    logrus.FieldLogger
	db     *gorm.DB
	tokens *auth.JWTManager
	users  repository.UserRepository

	auth        *handlers.AuthHandler
	tasks       *handlers.TaskHandler
	calendar    *handlers.CalendarHandler
	systemEmail *handlers.SystemEmailHandler
	realtime    *handlers.RealtimeHandler
}

func newSessionStore(cfg *config.Config) (sessions.Store, error) {
	var store sessions.Store
	switch cfg.SessionStore {
	case "redis":
		redisAddr := cfg.RedisHost + ":" + cfg.RedisPort
		rs, err := redisStore.NewStore(
			10,        // Redis pool size
			"tcp",     // network type
			redisAddr, // Redis address from config
			"",        // password (empty = no password)
			[]byte(cfg.SessionSecret),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis session store: %w", err)
		}
		store = rs
	case "cookie", "":
		store = cookie.NewStore([]byte(cfg.SessionSecret))
	default:
		return nil, fmt.Errorf("unknown SESSION_STORE %q", cfg.SessionStore)
	}

	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	return store, nil
}

func newRouter(d routerDeps) (*gin.Engine, error) {
	store, err := newSessionStore(d.cfg)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestLogger(d.log))
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	requireAuth := middleware.RequireAuth(d.tokens)

	r.GET("/health", handlers.Health(d.db))

	api := r.Group("/api")
	{
		// Auth routes (public)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", d.auth.Login)
			authGroup.POST("/logout", d.auth.Logout)
			authGroup.GET("/me", requireAuth, d.auth.GetCurrentUser)
		}
		api.POST("/register", d.auth.Register)
		api.POST("/verify-email", d.auth.VerifyEmail)

		api.GET("/users", requireAuth, d.auth.ListUsers)

		// Task routes (protected)
		tasks := api.Group("/tasks")
		tasks.Use(requireAuth)
		{
			tasks.GET("", d.tasks.ListTasks)
			tasks.POST("", d.tasks.CreateTask)
			tasks.GET("/:id", middleware.RequireTaskID(), d.tasks.GetTask)
			tasks.PUT("/:id", middleware.RequireTaskID(), d.tasks.UpdateTask)
			tasks.DELETE("/:id", middleware.RequireTaskID(), d.tasks.DeleteTask)
		}

		// Calendar routes (protected)
		cal := api.Group("/calendar")
		cal.Use(requireAuth)
		{
			cal.GET("/status", d.calendar.Status)
			cal.GET("/auth", d.calendar.AuthURL)
			cal.GET("/callback", d.calendar.Callback)
			cal.DELETE("/disconnect", d.calendar.Disconnect)
			cal.GET("/account", d.calendar.Account)
		}

		// System email routes
		system := api.Group("/system/email")
		system.Use(requireAuth)
		{
			system.GET("/status", d.systemEmail.Status)
			system.GET("/auth", middleware.RequireAdmin(d.cfg, d.users), d.systemEmail.AuthURL)
			system.GET("/callback", middleware.RequireAdmin(d.cfg, d.users), d.systemEmail.Callback)
		}

		api.GET("/realtime", requireAuth, d.realtime.Connect)
	}

	return r, nil
}
