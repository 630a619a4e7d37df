package ledger

import (
	"errors"
	"fmt"
	"time"

	"hustle-crm/internal/emi"
	"hustle-crm/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrOverCollection — мутация подняла бы amount_collected выше цены участка.
var ErrOverCollection = errors.New("amount collected would exceed plot price")

// Apply — единственная точка записи в финансовое состояние (Plot, PlotEmi,
// Expense). Вызывается только из разрешения согласования, внутри той же
// транзакции БД, что и переход pending -> approved: откат транзакции
// откатывает и мутацию, и сам переход.
func Apply(tx *gorm.DB, approval *models.TransactionApproval) error {
	switch approval.TargetModel {
	case models.TargetModelPlot:
		return applyPlot(tx, approval)
	case models.TargetModelPlotEmi:
		return applyEmiPaid(tx, approval)
	case models.TargetModelExpense:
		return applyExpense(tx, approval)
	}
	return fmt.Errorf("unknown target model %q", approval.TargetModel)
}

func applyPlot(tx *gorm.DB, approval *models.TransactionApproval) error {
	var plot models.Plot
	if err := tx.First(&plot, approval.TargetID).Error; err != nil {
		return err
	}

	fields := approval.FieldValues
	if status, _ := fields["plot_status"].(string); status == models.PlotStatusSold {
		return applyPlotSell(tx, approval, &plot)
	}

	// Обычное пополнение собранной суммы.
	amount, err := decimalField(fields, "amount")
	if err != nil {
		return err
	}
	newCollected := plot.AmountCollected.Add(amount)
	if newCollected.GreaterThan(plot.Price) {
		return ErrOverCollection
	}
	plot.AmountCollected = newCollected
	return tx.Save(&plot).Error
}

func applyPlotSell(tx *gorm.DB, approval *models.TransactionApproval, plot *models.Plot) error {
	fields := approval.FieldValues

	collected, err := decimalField(fields, "amount_collected")
	if err != nil {
		return err
	}
	newCollected := plot.AmountCollected.Add(collected)
	if newCollected.GreaterThan(plot.Price) {
		return ErrOverCollection
	}

	plot.AmountCollected = newCollected
	plot.PlotStatus = models.PlotStatusSold
	plot.CustomerName, _ = fields["customer_name"].(string)
	plot.CustomerPhone, _ = fields["customer_phone"].(string)
	plot.CustomerEmail, _ = fields["customer_email"].(string)
	plot.SoldByID = &approval.InitiatedByID

	soldOnField, err := dateField(fields, "sold_on_date")
	if err != nil {
		return err
	}
	soldOn := approval.CreatedAt
	if soldOnField != nil {
		soldOn = *soldOnField
	}
	plot.SoldOnDate = &soldOn

	if isEmi, _ := fields["is_emi"].(bool); isEmi {
		emiAmount, err := decimalField(fields, "emi_amount")
		if err != nil {
			return err
		}
		freq := intField(fields, "emi_frequency_months", 1)
		startField, err := dateField(fields, "emi_start_date")
		if err != nil {
			return err
		}
		start := soldOn
		if startField != nil {
			start = *startField
		}

		plot.IsEmi = true
		plot.EmiAmount = emiAmount
		plot.EmiFrequencyMonths = freq
		plot.EmiStartDate = &start

		schedule, err := emi.GenerateSchedule(plot.ID, plot.Price, plot.AmountCollected, emiAmount, start, freq)
		if err != nil {
			return err
		}
		// Старый график сносим и строим заново по новым условиям продажи.
		if err := tx.Unscoped().Where("plot_id = ?", plot.ID).Delete(&models.PlotEmi{}).Error; err != nil {
			return err
		}
		if len(schedule) > 0 {
			if err := tx.Create(&schedule).Error; err != nil {
				return err
			}
		}
		if err := emi.CheckSchedule(plot.Price, plot.AmountCollected, schedule); err != nil {
			return err
		}
	}

	return tx.Save(plot).Error
}

func applyEmiPaid(tx *gorm.DB, approval *models.TransactionApproval) error {
	var installment models.PlotEmi
	if err := tx.First(&installment, approval.TargetID).Error; err != nil {
		return err
	}
	if installment.IsPaid {
		// Платёж уже закрыт другой одобренной транзакцией.
		return nil
	}

	var plot models.Plot
	if err := tx.First(&plot, installment.PlotID).Error; err != nil {
		return err
	}

	// Оплаченный платёж рассрочки — это одобренный сбор: он увеличивает
	// amount_collected участка с той же защитой от переполнения.
	newCollected := plot.AmountCollected.Add(installment.Amount)
	if newCollected.GreaterThan(plot.Price) {
		return ErrOverCollection
	}

	paidField, err := dateField(approval.FieldValues, "paid_date")
	if err != nil {
		return err
	}
	paidDate := time.Now()
	if paidField != nil {
		paidDate = *paidField
	}

	installment.IsPaid = true
	installment.PaidDate = &paidDate
	installment.TransactionID = &approval.ID
	if err := tx.Save(&installment).Error; err != nil {
		return err
	}

	plot.AmountCollected = newCollected
	return tx.Save(&plot).Error
}

func applyExpense(tx *gorm.DB, approval *models.TransactionApproval) error {
	fields := approval.FieldValues

	amount, err := decimalField(fields, "amount")
	if err != nil {
		return err
	}
	expense := models.Expense{
		ProjectID:    approval.ProjectID,
		Amount:       amount,
		RecordedByID: approval.InitiatedByID,
		ApprovalID:   approval.ID,
	}
	expense.Title, _ = fields["title"].(string)
	expense.Category, _ = fields["category"].(string)
	spentOn, err := dateField(fields, "spent_on")
	if err != nil {
		return err
	}
	expense.SpentOn = spentOn

	return tx.Create(&expense).Error
}

// --- Чтение значений из патча field_values ---
// Суммы кладутся в патч строками, чтобы не терять точность в JSON.

func decimalField(fields models.FieldValues, key string) (decimal.Decimal, error) {
	switch v := fields[key].(type) {
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	case nil:
		return decimal.Decimal{}, fmt.Errorf("field %q is missing from the approved patch", key)
	}
	return decimal.Decimal{}, fmt.Errorf("field %q has unsupported type %T", key, fields[key])
}

func dateField(fields models.FieldValues, key string) (*time.Time, error) {
	s, ok := fields[key].(string)
	if !ok || s == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("field %q has unparseable date %q", key, s)
	}
	return &t, nil
}

func intField(fields models.FieldValues, key string, def int) int {
	// До записи в БД патч хранит int, после чтения из JSON — float64.
	switch v := fields[key].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	}
	return def
}
