package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Статусы участка.
const (
	PlotStatusAvailable      = "available"
	PlotStatusSold           = "sold"
	PlotStatusWorkInProgress = "work_in_progress"
)

// Plot — участок. Финансовые поля (amount_collected, plot_status, данные
// покупателя) меняются только через одобренную транзакцию, прямой записи
// в обработчиках нет.
type Plot struct {
	gorm.Model
	ProjectID uint     `json:"projectId" gorm:"index;not null"`
	Project   *Project `json:"project,omitempty" gorm:"foreignKey:ProjectID"`

	Number int             `json:"number" gorm:"not null"`
	Area   decimal.Decimal `json:"area" gorm:"type:numeric(14,2)"`
	Price  decimal.Decimal `json:"price" gorm:"type:numeric(14,2);not null"`

	PlotStatus      string          `json:"plot_status" gorm:"default:'available'"`
	AmountCollected decimal.Decimal `json:"amount_collected" gorm:"type:numeric(14,2)"`

	// Условия рассрочки (EMI). Заполняются при продаже в рассрочку.
	IsEmi              bool            `json:"is_emi"`
	EmiAmount          decimal.Decimal `json:"emi_amount" gorm:"type:numeric(14,2)"`
	EmiFrequencyMonths int             `json:"emi_frequency_months"`
	EmiStartDate       *time.Time      `json:"emi_start_date"`

	CustomerName  string     `json:"customer_name"`
	CustomerPhone string     `json:"customer_phone"`
	CustomerEmail string     `json:"customer_email"`
	SoldOnDate    *time.Time `json:"sold_on_date"`
	SoldByID      *uint      `json:"sold_by_user_id"`
	SoldBy        *User      `json:"sold_by,omitempty" gorm:"foreignKey:SoldByID"`
}

// Balance — остаток к сбору. Никогда не бывает отрицательным.
func (p *Plot) Balance() decimal.Decimal {
	return p.Price.Sub(p.AmountCollected)
}

// PlotEmi — один платёж графика рассрочки. is_paid выставляется только как
// следствие одобренной транзакции (transaction_id хранит её ID).
type PlotEmi struct {
	gorm.Model
	PlotID uint  `json:"plotId" gorm:"index;not null"`
	Plot   *Plot `json:"plot,omitempty" gorm:"foreignKey:PlotID"`

	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
	DueDate       time.Time       `json:"due_date" gorm:"not null"`
	IsPaid        bool            `json:"is_paid"`
	PaidDate      *time.Time      `json:"paid_date"`
	TransactionID *uint           `json:"transaction_id"`
}

func (PlotEmi) TableName() string { return "plot_emis" }
