package handlers

import (
	"net/http"
	"time"

	"hustle-crm/config"
	"hustle-crm/models"

	"github.com/gin-gonic/gin"
)

// ListPlotEmisHandler возвращает график рассрочки участка по порядку дат.
func ListPlotEmisHandler(c *gin.Context) {
	var plot models.Plot
	if err := config.DB.First(&plot, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Участок не найден"})
		return
	}

	var installments []models.PlotEmi
	if err := config.DB.Where("plot_id = ?", plot.ID).
		Order("due_date ASC").
		Find(&installments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch EMI schedule"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": installments})
}

// RequestEmiPaidHandler запрашивает отметку платежа рассрочки как оплаченного.
// Платёж никогда не закрывается напрямую: создаётся согласование, и is_paid
// выставится только после его одобрения.
func RequestEmiPaidHandler(c *gin.Context) {
	var installment models.PlotEmi
	if err := config.DB.First(&installment, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Платёж не найден"})
		return
	}
	if installment.IsPaid {
		c.JSON(http.StatusConflict, gin.H{"kind": "conflict", "error": "Платёж уже оплачен"})
		return
	}

	var plot models.Plot
	if err := config.DB.First(&plot, installment.PlotID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Участок платежа не найден"})
		return
	}

	fields := models.FieldValues{
		"is_paid":   true,
		"paid_date": time.Now().Format("2006-01-02"),
	}
	created, err := Approvals.Propose(currentUserID(c), plot.ProjectID,
		models.TargetModelPlotEmi, installment.ID, fields, installment.Amount)
	if respondWorkflowError(c, err) {
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Оплата платежа отправлена на согласование партнёрам",
		"approval": created,
	})
}
