package handlers

import (
	"fmt"
	"net/http"
	"time"

	"hustle-crm/config"
	"hustle-crm/models"

	"github.com/divan/num2words"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ListCreatedByMeHandler — согласования проекта, созданные текущим пользователем.
func ListCreatedByMeHandler(c *gin.Context) {
	projectID := c.Param("id")

	var approvals []models.TransactionApproval
	err := config.DB.
		Where("project_id = ? AND initiated_by_id = ?", projectID, currentUserID(c)).
		Preload("Votes.User").Preload("InitiatedBy").
		Order("created_at DESC").
		Find(&approvals).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch approvals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": approvals})
}

// ListToApproveHandler — ожидающие согласования, по которым текущий пользователь
// ещё не проголосовал.
func ListToApproveHandler(c *gin.Context) {
	projectID := c.Param("id")
	userID := currentUserID(c)

	var approvals []models.TransactionApproval
	err := config.DB.
		Joins("JOIN votes v ON v.approval_id = transaction_approvals.id AND v.deleted_at IS NULL").
		Where("transaction_approvals.project_id = ? AND transaction_approvals.status = ?",
			projectID, models.ApprovalStatusPending).
		Where("v.user_id = ? AND v.approval_status = ?", userID, models.ApprovalStatusPending).
		Preload("Votes.User").Preload("InitiatedBy").
		Order("transaction_approvals.created_at DESC").
		Find(&approvals).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch approvals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": approvals})
}

// GetApprovalHandler — детали одного согласования: статус, патч, голоса.
func GetApprovalHandler(c *gin.Context) {
	var appr models.TransactionApproval
	err := config.DB.
		Where("public_id = ?", c.Param("id")).
		Preload("Votes.User").Preload("InitiatedBy").
		First(&appr).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Согласование не найдено"})
		return
	}

	c.JSON(http.StatusOK, appr)
}

// VoteHandler принимает голос партнёра. Решение передаётся query-параметром
// approval_status (approved | rejected), как в исходном API продукта.
func VoteHandler(c *gin.Context) {
	decision := c.Query("approval_status")

	appr, err := Approvals.CastVote(currentUserID(c), c.Param("id"), decision)
	if respondWorkflowError(c, err) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Голос учтён",
		"approval": appr,
	})
}

// ExportApprovalsHandler выгружает историю согласований проекта в Excel.
func ExportApprovalsHandler(c *gin.Context) {
	var approvals []models.TransactionApproval
	err := config.DB.
		Where("project_id = ?", c.Param("id")).
		Preload("InitiatedBy").
		Order("created_at DESC").
		Find(&approvals).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch data for export"})
		return
	}

	f := excelize.NewFile()
	sheetName := "Согласования"
	index, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"ID", "Цель", "Сумма", "Сумма прописью", "Статус", "Инициатор", "Создано", "Закрыто"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	for i, a := range approvals {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), a.PublicID)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), fmt.Sprintf("%s #%d", a.TargetModel, a.TargetID))
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), a.Amount.String())
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), num2words.Convert(int(a.Amount.IntPart())))
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), a.Status)
		if a.InitiatedBy != nil {
			f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), a.InitiatedBy.FullName)
		}
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), a.CreatedAt.Format("02.01.2006 15:04"))
		if a.ResolvedAt != nil {
			f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), a.ResolvedAt.Format("02.01.2006 15:04"))
		}
	}

	fileName := fmt.Sprintf("transaction_approvals_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+fileName)
	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write Excel file"})
	}
}
