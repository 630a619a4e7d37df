package approval

import (
	"fmt"

	"hustle-crm/models"

	"github.com/Knetic/govaluate"
)

// DefaultApprovalExpression — единогласие: согласование одобряется, когда
// «за» проголосовали все партнёры. Правило кворума настраивается формулой
// (переменные: approved, rejected, pending, eligible), например
// "approved * 2 > eligible" для простого большинства.
const DefaultApprovalExpression = "approved == eligible"

// Policy решает, достаточно ли голосов «за» для одобрения. Вето зашито
// намертво: любой голос «против» немедленно отклоняет согласование,
// формула на это не влияет.
type Policy struct {
	expr *govaluate.EvaluableExpression
}

func NewPolicy(expression string) (Policy, error) {
	if expression == "" {
		expression = DefaultApprovalExpression
	}
	expr, err := govaluate.NewEvaluableExpression(expression)
	if err != nil {
		return Policy{}, fmt.Errorf("invalid approval policy %q: %w", expression, err)
	}
	return Policy{expr: expr}, nil
}

// DefaultPolicy — политика единогласия. Паникует только при ошибке в
// константе выражения, то есть никогда.
func DefaultPolicy() Policy {
	p, err := NewPolicy(DefaultApprovalExpression)
	if err != nil {
		panic(err)
	}
	return p
}

// Tally — агрегат голосов по одному согласованию.
type Tally struct {
	Approved int
	Rejected int
	Pending  int
	Eligible int
}

// TallyVotes считает агрегат по списку голосов. Eligible — все голоса,
// созданные при открытии согласования (по одному на партнёра).
func TallyVotes(votes []models.Vote) Tally {
	t := Tally{Eligible: len(votes)}
	for _, v := range votes {
		switch v.ApprovalStatus {
		case models.ApprovalStatusApproved:
			t.Approved++
		case models.ApprovalStatusRejected:
			t.Rejected++
		default:
			t.Pending++
		}
	}
	return t
}

// Outcome — чистая функция разрешения: (агрегат голосов) -> статус.
// Возвращает pending, пока исход не определён.
func (p Policy) Outcome(t Tally) (string, error) {
	if t.Rejected > 0 {
		return models.ApprovalStatusRejected, nil
	}

	params := map[string]interface{}{
		"approved": float64(t.Approved),
		"rejected": float64(t.Rejected),
		"pending":  float64(t.Pending),
		"eligible": float64(t.Eligible),
	}
	result, err := p.expr.Evaluate(params)
	if err != nil {
		return "", fmt.Errorf("approval policy evaluation failed: %w", err)
	}
	ok, isBool := result.(bool)
	if !isBool {
		return "", fmt.Errorf("approval policy result is not boolean: %v", result)
	}

	if ok {
		return models.ApprovalStatusApproved, nil
	}
	return models.ApprovalStatusPending, nil
}
