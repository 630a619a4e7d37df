package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Expense — расход по проекту. Создаётся только как следствие одобренной
// транзакции (approval_id — ссылка на неё).
type Expense struct {
	gorm.Model
	ProjectID uint     `json:"projectId" gorm:"index;not null"`
	Project   *Project `json:"project,omitempty" gorm:"foreignKey:ProjectID"`

	Title    string          `json:"title" gorm:"not null"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
	SpentOn  *time.Time      `json:"spent_on"`

	RecordedByID uint  `json:"recorded_by_user_id"`
	RecordedBy   *User `json:"recorded_by,omitempty" gorm:"foreignKey:RecordedByID"`
	ApprovalID   uint  `json:"approval_id" gorm:"index"`
}
