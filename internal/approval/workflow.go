package approval

import (
	"errors"
	"strings"
	"time"

	"hustle-crm/internal/ledger"
	"hustle-crm/internal/partners"
	"hustle-crm/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Workflow — машина состояний согласования финансовых мутаций. Любое
// изменение Plot/PlotEmi/Expense проходит через Propose -> голоса партнёров
// -> разрешение; запись в леджер (ledger.Apply) выполняется ровно один раз,
// в той же транзакции БД, что и переход pending -> approved.
type Workflow struct {
	db     *gorm.DB
	dir    partners.Directory
	policy Policy
	notify func(approval *models.TransactionApproval)
}

func NewWorkflow(db *gorm.DB, dir partners.Directory, policy Policy) *Workflow {
	return &Workflow{db: db, dir: dir, policy: policy}
}

// SetNotifier задаёт хук, вызываемый после фиксации транзакции при создании
// и разрешении согласования (push-уведомления партнёрам).
func (w *Workflow) SetNotifier(fn func(approval *models.TransactionApproval)) {
	w.notify = fn
}

// Propose создаёт согласование со статусом pending и по одному голосу на
// каждого партнёра проекта. Голос инициатора сразу "approved" — предложение
// подразумевает согласие. Если инициатор единственный партнёр, согласование
// разрешается немедленно, в той же транзакции.
func (w *Workflow) Propose(initiatorID, projectID uint, targetModel string, targetID uint, fields models.FieldValues, amount decimal.Decimal) (*models.TransactionApproval, error) {
	var created models.TransactionApproval

	err := w.db.Transaction(func(tx *gorm.DB) error {
		partnerIDs, err := w.dir.ListPartners(tx, projectID)
		if err != nil {
			return err
		}
		if !containsID(partnerIDs, initiatorID) {
			return ErrNotAuthorized
		}

		// Single-flight: по одной цели — не больше одного pending-согласования.
		// Дружелюбная проверка здесь, гонку закрывает частичный уникальный
		// индекс idx_transaction_approvals_pending_target.
		if targetID != 0 {
			var n int64
			if err := tx.Model(&models.TransactionApproval{}).
				Where("target_model = ? AND target_id = ? AND status = ?",
					targetModel, targetID, models.ApprovalStatusPending).
				Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return ErrConflict
			}
		}

		created = models.TransactionApproval{
			PublicID:      uuid.NewString(),
			ProjectID:     projectID,
			TargetModel:   targetModel,
			TargetID:      targetID,
			FieldValues:   fields,
			Amount:        amount,
			InitiatedByID: initiatorID,
			Status:        models.ApprovalStatusPending,
		}
		if err := tx.Create(&created).Error; err != nil {
			if targetID != 0 && isSingleFlightViolation(err) {
				return ErrConflict
			}
			return err
		}

		now := time.Now()
		votes := make([]models.Vote, 0, len(partnerIDs))
		for _, id := range partnerIDs {
			v := models.Vote{
				ApprovalID:     created.ID,
				UserID:         id,
				ApprovalStatus: models.ApprovalStatusPending,
			}
			if id == initiatorID {
				v.ApprovalStatus = models.ApprovalStatusApproved
				v.VotedAt = &now
			}
			votes = append(votes, v)
		}
		if err := tx.Create(&votes).Error; err != nil {
			return err
		}
		created.Votes = votes

		return w.resolveLocked(tx, &created)
	})
	if err != nil {
		return nil, err
	}

	if w.notify != nil {
		w.notify(&created)
	}
	return &created, nil
}

// CastVote фиксирует голос партнёра и запускает разрешение согласования.
// Поданный голос окончателен; голосовать по закрытому согласованию нельзя.
func (w *Workflow) CastVote(userID uint, approvalPublicID, decision string) (*models.TransactionApproval, error) {
	if decision != models.ApprovalStatusApproved && decision != models.ApprovalStatusRejected {
		return nil, ErrInvalidDecision
	}

	var appr models.TransactionApproval
	err := w.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("public_id = ?", approvalPublicID).First(&appr).Error; err != nil {
			return err
		}

		// Сериализация конкурирующих голосов: обновление строки согласования
		// берёт на неё блокировку до конца транзакции, поэтому подсчёт голосов
		// и смена статуса видят согласованный снимок.
		if err := tx.Model(&models.TransactionApproval{}).
			Where("id = ?", appr.ID).
			UpdateColumn("updated_at", time.Now()).Error; err != nil {
			return err
		}
		if err := tx.First(&appr, appr.ID).Error; err != nil {
			return err
		}
		if appr.Status != models.ApprovalStatusPending {
			return ErrApprovalClosed
		}

		now := time.Now()
		res := tx.Model(&models.Vote{}).
			Where("approval_id = ? AND user_id = ? AND approval_status = ?",
				appr.ID, userID, models.ApprovalStatusPending).
			Updates(map[string]interface{}{
				"approval_status": decision,
				"voted_at":        now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Либо голос уже подан, либо пользователя вообще нет в круге
			// голосующих этого согласования.
			var v models.Vote
			err := tx.Where("approval_id = ? AND user_id = ?", appr.ID, userID).
				First(&v).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotAuthorized
			}
			if err != nil {
				return err
			}
			return ErrAlreadyVoted
		}

		return w.resolveLocked(tx, &appr)
	})
	if err != nil {
		return nil, err
	}

	if w.notify != nil {
		w.notify(&appr)
	}
	return &appr, nil
}

// resolveLocked пересчитывает исход по текущим голосам и, если он
// терминальный, атомарно переводит статус (CAS по условию status = pending).
// Если перевод удался и исход "approved" — применяет мутацию к леджеру.
// Проигравший гонку CAS ничего не делает: Apply выполняется не более одного
// раза на согласование.
func (w *Workflow) resolveLocked(tx *gorm.DB, appr *models.TransactionApproval) error {
	var votes []models.Vote
	if err := tx.Where("approval_id = ?", appr.ID).Find(&votes).Error; err != nil {
		return err
	}
	appr.Votes = votes

	outcome, err := w.policy.Outcome(TallyVotes(votes))
	if err != nil {
		return err
	}
	if outcome == models.ApprovalStatusPending {
		return nil
	}

	now := time.Now()
	res := tx.Model(&models.TransactionApproval{}).
		Where("id = ? AND status = ?", appr.ID, models.ApprovalStatusPending).
		Updates(map[string]interface{}{
			"status":      outcome,
			"resolved_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}

	appr.Status = outcome
	appr.ResolvedAt = &now

	if outcome == models.ApprovalStatusApproved {
		return ledger.Apply(tx, appr)
	}
	// Отклонённое согласование остаётся в истории, предложенный патч
	// отбрасывается без каких-либо записей в леджер.
	return nil
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// isSingleFlightViolation распознаёт нарушение частичного уникального
// индекса, закрывающего гонку двух одновременных Propose по одной цели.
func isSingleFlightViolation(err error) bool {
	return strings.Contains(err.Error(), "idx_transaction_approvals_pending_target") ||
		strings.Contains(err.Error(), "duplicate key value")
}
