package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/taskpulse/api/handler"
)

type Handlers struct {
	Profile  *apiHandler.ProfileHandler
	Task     *apiHandler.TaskHandler
	Report   *apiHandler.ReportHandler
	Message  *apiHandler.MessageHandler
	Telegram *apiHandler.TelegramHandler
	Health   *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Telegram authenticates the webhook through the path secret.
	r.POST("/api/v1/integrations/telegram/webhook/{secret}", handlers.Telegram.Webhook)

	// Protected routes
	api := r.Group("/api/v1")
	api.GET("/profile", authMiddleware(handlers.Profile.GetProfile))
	api.POST("/integrations/telegram/link", authMiddleware(handlers.Telegram.Link))

	api.GET("/tasks", authMiddleware(handlers.Task.GetTasks))
	api.POST("/tasks", authMiddleware(handlers.Task.CreateTask))
	api.GET("/tasks/reports/monthly", authMiddleware(handlers.Report.Monthly))
	api.GET("/tasks/conversation-messages", authMiddleware(handlers.Message.List))
	api.POST("/tasks/conversation-messages", authMiddleware(handlers.Message.Create))
	api.GET("/tasks/{id}", authMiddleware(handlers.Task.GetTask))
	api.PATCH("/tasks/{id}", authMiddleware(handlers.Task.UpdateTask))
	api.DELETE("/tasks/{id}", authMiddleware(handlers.Task.DeleteTask))
	api.GET("/tasks/{id}/events", authMiddleware(handlers.Task.GetEvents))

	return r
}
