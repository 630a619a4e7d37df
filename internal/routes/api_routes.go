package routes

import (
	"hustle-crm/internal/handlers"

	"github.com/gin-gonic/gin"
)

// RegisterAPIRoutes регистрирует все маршруты API, требующие аутентификации.
func RegisterAPIRoutes(api *gin.RouterGroup) {
	apiGroup := api.Group("/api")
	{
		// --- ПРОЕКТЫ: участки, расходы, согласования ---
		projects := apiGroup.Group("/projects")
		{
			projects.GET("/:id/plots", handlers.ListPlotsHandler)
			projects.POST("/:id/plots", handlers.CreatePlotHandler)

			projects.GET("/:id/expenses", handlers.ListExpensesHandler)
			projects.POST("/:id/expenses", handlers.RecordExpenseHandler)

			projects.GET("/:id/transaction-approvals/created-by-me", handlers.ListCreatedByMeHandler)
			projects.GET("/:id/transaction-approvals/to-approve", handlers.ListToApproveHandler)
			projects.GET("/:id/transaction-approvals/export", handlers.ExportApprovalsHandler)
		}

		// --- УЧАСТКИ ---
		plots := apiGroup.Group("/plots")
		{
			plots.GET("/:id", handlers.GetPlotHandler)
			plots.POST("/:id/sell", handlers.SellPlotHandler)
			plots.POST("/:id/add-amount", handlers.AddAmountHandler)
			plots.GET("/:id/transaction-history", handlers.PlotTransactionHistoryHandler)
			plots.GET("/:id/emis", handlers.ListPlotEmisHandler)
		}

		// --- ПЛАТЕЖИ РАССРОЧКИ ---
		emis := apiGroup.Group("/emis")
		{
			emis.POST("/:id/request-paid", handlers.RequestEmiPaidHandler)
		}

		// --- СОГЛАСОВАНИЯ ---
		approvals := apiGroup.Group("/transaction-approvals")
		{
			approvals.GET("/:id", handlers.GetApprovalHandler)
			approvals.POST("/:id/vote", handlers.VoteHandler)
		}

		// --- РАСПОЗНАВАНИЕ ЧЕКОВ ---
		apiGroup.POST("/expenses/recognize", handlers.RecognizeReceiptHandler)

		// --- WEBSOCKET УВЕДОМЛЕНИЯ ---
		apiGroup.GET("/ws", func(c *gin.Context) {
			handlers.ApprovalWSEndpoint(c)
		})
	}
}
