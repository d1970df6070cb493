package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"centerequity/portal/internal/config"
	"centerequity/portal/internal/flash"
	"centerequity/portal/internal/middleware"
	"centerequity/portal/internal/models"
	"centerequity/portal/internal/repository"
	"centerequity/portal/internal/service"
	"centerequity/portal/internal/storage"
)

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	auth     *service.Auth
	recovery *service.Recovery
	visits   *service.Visits
	reports  *service.Reports
	flash    *flash.Store
	db       *pgxpool.Pool
	cache    *redis.Client
	users    *repository.UserRepository
	sessions *repository.SessionRepository
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, store *storage.ObjectStore, mailer service.Mailer, cfg *config.AppConfig) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	visitRepo := repository.NewVisitRepository(db)

	visits := service.NewVisits(visitRepo, log)
	auth := service.NewAuth(userRepo, sessionRepo, visits, cfg, log)
	recovery := service.NewRecovery(userRepo, mailer, cfg, log)
	reports := service.NewReports(userRepo, visitRepo, store, log)

	return HandlerSet{
		log:      log,
		cfg:      cfg,
		auth:     auth,
		recovery: recovery,
		visits:   visits,
		reports:  reports,
		flash:    flash.NewStore(cache),
		db:       db,
		cache:    cache,
		users:    userRepo,
		sessions: sessionRepo,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.RegisterUser)
		auth.POST("/login", h.Login)

		account := v1.Group("/account")
		account.POST("/forgot", h.ForgotPassword)
		account.POST("/reset", h.ResetPassword)
		account.GET("/update", h.ResolveToken)
		account.POST("/update", h.UpdateAccount)

		authed := v1.Group("")
		authed.Use(middleware.Auth(h.log, h.cfg.Security.SessionSecret, h.users, h.sessions))
		authed.POST("/auth/logout", h.Logout)
		authed.GET("/me", h.Me)
		authed.PATCH("/me", h.UpdateMe)

		admin := v1.Group("/admin")
		admin.Use(
			middleware.Auth(h.log, h.cfg.Security.SessionSecret, h.users, h.sessions),
			middleware.RequireRank(models.RankAdmin),
		)
		admin.GET("/reports", h.AdminReports)
		admin.GET("/subscribers/export", h.AdminSubscriberExport)
		admin.POST("/subscribers/publish", h.AdminPublishSubscribers)
		admin.POST("/purge", h.AdminPurge)
	}
}
