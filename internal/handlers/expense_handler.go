package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hustle-crm/config"
	"hustle-crm/models"

	"github.com/gin-gonic/gin"
	"github.com/google/generative-ai-go/genai"
	"github.com/shopspring/decimal"
)

// ListExpensesHandler возвращает расходы проекта с пагинацией.
func ListExpensesHandler(c *gin.Context) {
	projectID := c.Param("id")

	var expenses []models.Expense
	var totalRows int64

	query := config.DB.Model(&models.Expense{}).Where("project_id = ?", projectID)
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	if err := query.Count(&totalRows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count expenses"})
		return
	}
	if err := query.Scopes(Paginate(c)).
		Preload("RecordedBy").
		Order("spent_on DESC").
		Find(&expenses).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch expenses"})
		return
	}

	c.JSON(http.StatusOK, CreatePaginatedResponse(c, expenses, totalRows))
}

type RecordExpenseRequest struct {
	Title    string          `json:"title" binding:"required"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
	SpentOn  string          `json:"spent_on"`
}

// RecordExpenseHandler предлагает новый расход. Запись в таблице expenses
// появится только после одобрения согласования (TargetID = 0: цели ещё нет,
// single-flight к созданию не применяется).
func RecordExpenseHandler(c *gin.Context) {
	projectID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID проекта"})
		return
	}

	var req RecordExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверные данные: " + err.Error()})
		return
	}
	if req.Amount.Sign() <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Сумма расхода должна быть положительной"})
		return
	}

	fields := models.FieldValues{
		"title":    req.Title,
		"category": req.Category,
		"amount":   req.Amount.String(),
		"spent_on": req.SpentOn,
	}
	created, err := Approvals.Propose(currentUserID(c), uint(projectID),
		models.TargetModelExpense, 0, fields, req.Amount)
	if respondWorkflowError(c, err) {
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Расход отправлен на согласование партнёрам",
		"approval": created,
	})
}

// RecognizeReceiptHandler извлекает поля расхода из фото или PDF чека через
// Gemini. Результат — заготовка формы, сам расход всё равно идёт через
// согласование.
func RecognizeReceiptHandler(c *gin.Context) {
	if config.GeminiClient == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Распознавание чеков не настроено"})
		return
	}

	file, header, err := c.Request.FormFile("receiptFile")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Receipt file is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file data"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	prompt := []genai.Part{
		genai.Text("Ты — эксперт по обработке чеков и счетов. Проанализируй предоставленный файл и извлеки: назначение расхода, категорию (materials, labour, legal, misc), итоговую сумму и дату. Ответ только в формате JSON, без лишних слов:\n" +
			"{\"title\": \"\", \"category\": \"\", \"amount\": \"0.00\", \"spent_on\": \"гггг-мм-дд\"}"),
		&genai.Blob{MIMEType: header.Header.Get("Content-Type"), Data: data},
	}

	resp, err := config.GeminiClient.GenerateContent(ctx, prompt...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Gemini recognition error: " + err.Error()})
		return
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Gemini returned no result"})
		return
	}

	jsonResponse, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to convert Gemini response to text"})
		return
	}

	cleanJSON := strings.Trim(string(jsonResponse), "```json \n")
	c.Data(http.StatusOK, "application/json", []byte(cleanJSON))
}
