package handlers

import (
	"net/http"
	"strconv"

	"hustle-crm/config"
	"hustle-crm/internal/partners"
	"hustle-crm/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type CreatePlotRequest struct {
	Number int             `json:"number" binding:"required"`
	Area   decimal.Decimal `json:"area"`
	Price  decimal.Decimal `json:"price" binding:"required"`
}

// CreatePlotHandler добавляет участок в проект. Создание участка — не
// финансовая мутация, согласования не требует.
func CreatePlotHandler(c *gin.Context) {
	projectID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID проекта"})
		return
	}

	var req CreatePlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверные данные: " + err.Error()})
		return
	}

	ok, err := partners.IsPartner(config.DB, uint(projectID), currentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"kind": "not_authorized", "error": "Вы не являетесь партнёром этого проекта"})
		return
	}

	plot := models.Plot{
		ProjectID:  uint(projectID),
		Number:     req.Number,
		Area:       req.Area,
		Price:      req.Price,
		PlotStatus: models.PlotStatusAvailable,
	}
	if err := config.DB.Create(&plot).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось сохранить участок"})
		return
	}

	c.JSON(http.StatusCreated, plot)
}

// ListPlotsHandler возвращает участки проекта (с пагинацией и фильтром по статусу).
func ListPlotsHandler(c *gin.Context) {
	projectID := c.Param("id")

	var plots []models.Plot
	var totalRows int64

	query := config.DB.Model(&models.Plot{}).Where("project_id = ?", projectID)
	if status := c.Query("status"); status != "" {
		query = query.Where("plot_status = ?", status)
	}

	if err := query.Count(&totalRows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count plots"})
		return
	}
	if err := query.Scopes(Paginate(c)).Order("number ASC").Find(&plots).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch plots"})
		return
	}

	c.JSON(http.StatusOK, CreatePaginatedResponse(c, plots, totalRows))
}

// GetPlotHandler возвращает один участок.
func GetPlotHandler(c *gin.Context) {
	var plot models.Plot
	if err := config.DB.Preload("SoldBy").First(&plot, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Участок не найден"})
		return
	}
	c.JSON(http.StatusOK, plot)
}

type SellPlotRequest struct {
	AmountCollected    decimal.Decimal `json:"amount_collected" binding:"required"`
	SoldOnDate         string          `json:"sold_on_date" binding:"required"`
	CustomerName       string          `json:"customer_name" binding:"required"`
	CustomerPhone      string          `json:"customer_phone"`
	CustomerEmail      string          `json:"customer_email"`
	IsEmi              bool            `json:"is_emi"`
	EmiAmount          decimal.Decimal `json:"emi_amount"`
	EmiStartDate       string          `json:"emi_start_date"`
	EmiFrequencyMonths int             `json:"emi_frequency_months"`
}

// SellPlotHandler предлагает продажу участка. Сам участок здесь не меняется:
// создаётся согласование, и только его одобрение применит патч через леджер.
func SellPlotHandler(c *gin.Context) {
	var plot models.Plot
	if err := config.DB.First(&plot, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Участок не найден"})
		return
	}

	var req SellPlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверные данные: " + err.Error()})
		return
	}

	if plot.PlotStatus == models.PlotStatusSold {
		c.JSON(http.StatusConflict, gin.H{"kind": "conflict", "error": "Участок уже продан"})
		return
	}
	if req.AmountCollected.GreaterThan(plot.Balance()) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"kind": "over_collection", "error": "Собранная сумма превысила бы цену участка"})
		return
	}
	if req.IsEmi && req.EmiAmount.Sign() <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Для рассрочки нужна положительная сумма платежа"})
		return
	}

	// Суммы в патче храним строками, чтобы не терять точность в JSON.
	fields := models.FieldValues{
		"plot_status":      models.PlotStatusSold,
		"amount_collected": req.AmountCollected.String(),
		"sold_on_date":     req.SoldOnDate,
		"customer_name":    req.CustomerName,
		"customer_phone":   req.CustomerPhone,
		"customer_email":   req.CustomerEmail,
	}
	if req.IsEmi {
		fields["is_emi"] = true
		fields["emi_amount"] = req.EmiAmount.String()
		fields["emi_frequency_months"] = req.EmiFrequencyMonths
		fields["emi_start_date"] = req.EmiStartDate
	}

	created, err := Approvals.Propose(currentUserID(c), plot.ProjectID,
		models.TargetModelPlot, plot.ID, fields, req.AmountCollected)
	if respondWorkflowError(c, err) {
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Продажа отправлена на согласование партнёрам",
		"approval": created,
	})
}

type AddAmountRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// AddAmountHandler предлагает пополнение собранной суммы по участку.
func AddAmountHandler(c *gin.Context) {
	var plot models.Plot
	if err := config.DB.First(&plot, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Участок не найден"})
		return
	}

	var req AddAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверные данные: " + err.Error()})
		return
	}
	if req.Amount.Sign() <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Сумма должна быть положительной"})
		return
	}
	if req.Amount.GreaterThan(plot.Balance()) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"kind": "over_collection", "error": "Собранная сумма превысила бы цену участка"})
		return
	}

	fields := models.FieldValues{"amount": req.Amount.String()}
	created, err := Approvals.Propose(currentUserID(c), plot.ProjectID,
		models.TargetModelPlot, plot.ID, fields, req.Amount)
	if respondWorkflowError(c, err) {
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Пополнение отправлено на согласование партнёрам",
		"approval": created,
	})
}

// PlotTransactionHistoryHandler возвращает все согласования по участку —
// и ожидающие, и закрытые (история не удаляется).
func PlotTransactionHistoryHandler(c *gin.Context) {
	var plot models.Plot
	if err := config.DB.First(&plot, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Участок не найден"})
		return
	}

	var approvals []models.TransactionApproval
	err := config.DB.
		Where("target_model = ? AND target_id = ?", models.TargetModelPlot, plot.ID).
		Preload("Votes.User").Preload("InitiatedBy").
		Order("created_at DESC").
		Find(&approvals).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transaction history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": approvals})
}
