package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Статусы согласования. Переходы только pending -> approved | rejected,
// обратных переходов нет.
const (
	ApprovalStatusPending  = "pending"
	ApprovalStatusApproved = "approved"
	ApprovalStatusRejected = "rejected"
)

// Целевые модели, которые может менять одобренная транзакция.
const (
	TargetModelPlot    = "Plot"
	TargetModelExpense = "Expense"
	TargetModelPlotEmi = "PlotEmi"
)

// FieldValues — предлагаемый патч полей (имя поля -> новое значение),
// хранится в JSONB. После создания согласования не меняется.
type FieldValues map[string]interface{}

// Value преобразует патч в JSON для сохранения в БД.
func (f FieldValues) Value() (driver.Value, error) {
	return json.Marshal(f)
}

// Scan считывает JSON из БД обратно в карту.
func (f *FieldValues) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	case nil:
		*f = nil
		return nil
	}
	return errors.New("unsupported type for FieldValues")
}

// TransactionApproval — предложенная, ещё не применённая финансовая мутация,
// ожидающая согласия партнёров. По одной цели одновременно может висеть не
// более одного согласования в статусе pending (частичный уникальный индекс
// idx_transaction_approvals_pending_target).
type TransactionApproval struct {
	gorm.Model
	PublicID  string `json:"id" gorm:"size:36;uniqueIndex;not null"`
	ProjectID uint   `json:"projectId" gorm:"index;not null"`

	TargetModel string      `json:"target_model" gorm:"not null;index:idx_approvals_target"`
	TargetID    uint        `json:"target_id" gorm:"index:idx_approvals_target"`
	FieldValues FieldValues `json:"field_values" gorm:"type:jsonb"`

	Amount decimal.Decimal `json:"amount" gorm:"type:numeric(14,2)"`

	InitiatedByID uint  `json:"initiated_by_user_id" gorm:"not null"`
	InitiatedBy   *User `json:"initiated_by,omitempty" gorm:"foreignKey:InitiatedByID"`

	Status     string     `json:"status" gorm:"default:'pending';index"`
	ResolvedAt *time.Time `json:"resolved_at"`

	Votes []Vote `json:"votes,omitempty" gorm:"foreignKey:ApprovalID"`
}

// Vote — голос партнёра по согласованию. Создаётся вместе с согласованием в
// статусе pending, ровно один на пару (approval, user); поданный голос
// окончателен.
type Vote struct {
	gorm.Model
	ApprovalID uint  `json:"approval_id" gorm:"not null;uniqueIndex:idx_votes_approval_user"`
	UserID     uint  `json:"user_id" gorm:"not null;uniqueIndex:idx_votes_approval_user"`
	User       *User `json:"user,omitempty" gorm:"foreignKey:UserID"`

	ApprovalStatus string     `json:"approval_status" gorm:"default:'pending'"`
	VotedAt        *time.Time `json:"voted_at"`
}
