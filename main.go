package main

import (
	"log/slog"
	"os"

	"hustle-crm/config"
	"hustle-crm/internal/approval"
	"hustle-crm/internal/handlers"
	"hustle-crm/internal/partners"
	"hustle-crm/internal/routes"
	"hustle-crm/models"

	"github.com/gin-gonic/gin"
)

func main() {
	config.ConnectDB()
	config.ConnectRedis()

	// Gemini опционален: без ключа работает всё, кроме распознавания чеков.
	if err := config.InitGoogleServices(); err != nil {
		slog.Warn("Gemini недоступен, распознавание чеков отключено", "error", err)
	}

	err := config.DB.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Partner{},
		&models.Plot{},
		&models.PlotEmi{},
		&models.Expense{},
		&models.TransactionApproval{},
		&models.Vote{},
	)
	if err != nil {
		slog.Error("Ошибка миграции БД", "error", err)
		os.Exit(1)
	}
	if err := approval.EnsureIndexes(config.DB); err != nil {
		slog.Error("Не удалось создать индекс single-flight", "error", err)
		os.Exit(1)
	}

	policy, err := approval.NewPolicy(os.Getenv("APPROVAL_POLICY"))
	if err != nil {
		slog.Error("Некорректная политика согласования", "error", err)
		os.Exit(1)
	}

	workflow := approval.NewWorkflow(config.DB, partners.DBDirectory{}, policy)
	workflow.SetNotifier(handlers.GlobalHub.NotifyApproval)
	handlers.SetWorkflow(workflow)

	go handlers.GlobalHub.Run()

	r := gin.Default()
	routes.SetupRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	slog.Info("Сервер запущен", "port", port)
	if err := r.Run(":" + port); err != nil {
		slog.Error("Сервер остановлен с ошибкой", "error", err)
		os.Exit(1)
	}
}
