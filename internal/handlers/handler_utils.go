package handlers

import (
	"errors"
	"net/http"

	"hustle-crm/internal/approval"
	"hustle-crm/internal/emi"
	"hustle-crm/internal/ledger"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Approvals — общий экземпляр workflow согласований. Устанавливается из main.
var Approvals *approval.Workflow

func SetWorkflow(w *approval.Workflow) {
	Approvals = w
}

// currentUserID достаёт ID пользователя, положенный в контекст middleware.
func currentUserID(c *gin.Context) uint {
	id, _ := c.Get("userID")
	uid, _ := id.(uint)
	return uid
}

// respondWorkflowError переводит ошибки бизнес-правил в машинно-читаемые
// ответы (kind + сообщение). Возвращает true, если ошибка обработана.
func respondWorkflowError(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, approval.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"kind": "not_authorized", "error": "Вы не являетесь партнёром этого проекта"})
	case errors.Is(err, approval.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"kind": "conflict", "error": "По этой цели уже есть согласование в ожидании голосов"})
	case errors.Is(err, approval.ErrAlreadyVoted):
		c.JSON(http.StatusConflict, gin.H{"kind": "already_voted", "error": "Голос уже был подан"})
	case errors.Is(err, approval.ErrApprovalClosed):
		c.JSON(http.StatusConflict, gin.H{"kind": "approval_closed", "error": "Согласование уже закрыто"})
	case errors.Is(err, approval.ErrInvalidDecision):
		c.JSON(http.StatusBadRequest, gin.H{"kind": "invalid_decision", "error": "Решение должно быть approved или rejected"})
	case errors.Is(err, ledger.ErrOverCollection):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"kind": "over_collection", "error": "Собранная сумма превысила бы цену участка"})
	case errors.Is(err, emi.ErrScheduleMismatch):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"kind": "schedule_mismatch", "error": "График рассрочки не сходится с остатком"})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"kind": "not_found", "error": "Запись не найдена"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
	return true
}
