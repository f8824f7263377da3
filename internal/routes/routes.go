package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/cache"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/config"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/events"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/handlers"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/metrics"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/middleware"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/payments"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/services"
	sessionws "github.com/gideonjohnson/PrepCoach-sub004/internal/websocket"
)

// Dependencies are the process-wide resources the HTTP surface is built on.
type Dependencies struct {
	DB        *pgxpool.Pool
	Cache     cache.Cache
	Publisher events.Publisher
	Hub       *sessionws.Hub
	Gateway   payments.Gateway
	Verifier  payments.Verifier
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

func RegisterRoutes(app *fiber.App, cfg *config.Config, deps Dependencies) error {
	store := services.NewPostgresStore(deps.DB)
	logger := deps.Logger

	sessionService := services.NewSessionService(store, deps.Gateway, deps.Publisher, deps.Metrics, logger)
	packageService := services.NewPackageService(store, deps.Publisher, deps.Metrics, logger)
	webhookService := services.NewWebhookService(store, deps.Verifier, deps.Gateway, deps.Publisher, deps.Metrics, logger)
	recruiterService := services.NewRecruiterService(store, deps.Publisher, cfg.InterviewRequestCreditCost, logger)
	payoutService := services.NewPayoutService(store, deps.Gateway, deps.Publisher, deps.Metrics, cfg.PayoutCurrency, logger)
	interviewerService := services.NewInterviewerService(store, logger)
	jobService := services.NewJobService(
		services.NewHTTPJobSearchClient(cfg.JobSearchAPIURL, cfg.JobSearchAPIKey),
		deps.Cache,
		cfg.JobCacheTTL,
		deps.Metrics,
		logger,
	)

	sessionHandler := handlers.NewSessionHandler(sessionService, logger)
	packageHandler := handlers.NewPackageHandler(packageService, logger)
	webhookHandler := handlers.NewWebhookHandler(webhookService, logger)
	recruiterHandler := handlers.NewRecruiterHandler(recruiterService, logger)
	payoutHandler := handlers.NewPayoutHandler(payoutService, logger)
	interviewerHandler := handlers.NewInterviewerHandler(interviewerService, sessionService, logger)
	jobHandler := handlers.NewJobHandler(jobService, logger)
	notificationHandler := handlers.NewNotificationHandler(deps.Hub, cfg.JWTSecret)

	if err := registerDocsRoutes(app, cfg); err != nil {
		return err
	}

	api := app.Group("/api")
	api.Post("/webhooks/stripe", webhookHandler.HandleStripe)

	api.Use("/v1/ws", notificationHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(notificationHandler.HandleWebSocket))

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	sessions := authProtected.Group("/sessions")
	sessions.Post("/book", middleware.RequireRole(models.RoleCandidate), sessionHandler.BookSession)
	sessions.Get("", sessionHandler.ListSessions)
	sessions.Get("/:id", sessionHandler.GetSession)
	sessions.Post("/:id/start", sessionHandler.StartSession)
	sessions.Post("/:id/complete", sessionHandler.CompleteSession)
	sessions.Post("/:id/cancel", sessionHandler.CancelSession)
	sessions.Post("/:id/no-show", sessionHandler.ReportNoShow)

	packages := authProtected.Group("/packages")
	packages.Get("", packageHandler.ListPackages)
	packages.Post("", middleware.RequireRole(models.RoleCandidate), packageHandler.CreatePackage)
	packages.Post("/:id/use", packageHandler.UsePackage)

	interviewers := authProtected.Group("/interviewers")
	interviewers.Get("", interviewerHandler.ListInterviewers)
	interviewers.Put("/me", middleware.RequireRole(models.RoleInterviewer), interviewerHandler.UpsertMyProfile)
	interviewers.Get("/:id", interviewerHandler.GetInterviewer)
	interviewers.Get("/:id/availability", interviewerHandler.GetAvailability)

	admin := authProtected.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	admin.Put("/interviewers/:id/verification", interviewerHandler.UpdateVerification)

	payouts := authProtected.Group("/payouts", middleware.RequireRole(models.RoleInterviewer))
	payouts.Post("", payoutHandler.RequestPayout)
	payouts.Get("", payoutHandler.ListPayouts)

	recruiter := authProtected.Group("/recruiter", middleware.RequireRole(models.RoleRecruiter))
	recruiter.Get("/credits", recruiterHandler.GetCredits)
	recruiter.Post("/interview-requests", recruiterHandler.CreateInterviewRequest)

	requests := authProtected.Group("/interview-requests")
	requests.Get("", recruiterHandler.ListInterviewRequests)
	requests.Post("/:id/respond", middleware.RequireRole(models.RoleCandidate), recruiterHandler.RespondInterviewRequest)

	authProtected.Get("/jobs", jobHandler.Search)

	return nil
}
