package emi

import (
	"errors"
	"fmt"
	"time"

	"hustle-crm/models"

	"github.com/shopspring/decimal"
)

// ErrScheduleMismatch — график рассрочки не покрывает остаток к сбору.
var ErrScheduleMismatch = errors.New("emi schedule does not reconcile with remaining balance")

// GenerateSchedule строит график рассрочки по условиям продажи участка.
// remaining = price - collected; количество платежей = ceil(remaining / emiAmount);
// последний платёж урезается до фактического остатка, так что сумма графика
// в точности равна remaining. Если остатка нет — график пустой.
func GenerateSchedule(plotID uint, price, collected, emiAmount decimal.Decimal, start time.Time, freqMonths int) ([]models.PlotEmi, error) {
	remaining := price.Sub(collected)
	if remaining.Sign() <= 0 {
		return nil, nil
	}
	if emiAmount.Sign() <= 0 {
		return nil, fmt.Errorf("emi amount must be positive, got %s", emiAmount)
	}
	if freqMonths <= 0 {
		freqMonths = 1
	}

	count := remaining.Div(emiAmount).Ceil().IntPart()
	schedule := make([]models.PlotEmi, 0, count)
	for k := int64(0); k < count; k++ {
		amount := emiAmount
		if k == count-1 {
			amount = remaining.Sub(emiAmount.Mul(decimal.NewFromInt(count - 1)))
		}
		schedule = append(schedule, models.PlotEmi{
			PlotID:  plotID,
			Amount:  amount,
			DueDate: start.AddDate(0, int(k)*freqMonths, 0),
			IsPaid:  false,
		})
	}
	return schedule, nil
}

// CheckSchedule сверяет график с остатком на момент продажи: сумма платежей
// обязана покрывать price - collectedAtSale.
func CheckSchedule(price, collectedAtSale decimal.Decimal, schedule []models.PlotEmi) error {
	remaining := price.Sub(collectedAtSale)
	if remaining.Sign() <= 0 {
		if len(schedule) != 0 {
			return ErrScheduleMismatch
		}
		return nil
	}

	total := decimal.Zero
	for _, e := range schedule {
		total = total.Add(e.Amount)
	}
	if total.LessThan(remaining) {
		return ErrScheduleMismatch
	}
	return nil
}
