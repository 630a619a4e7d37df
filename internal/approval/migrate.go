package approval

import "gorm.io/gorm"

// EnsureIndexes создаёт частичный уникальный индекс single-flight: по одной
// цели не может существовать двух согласований в статусе pending. AutoMigrate
// частичные индексы не умеет, поэтому сырой SQL (работает и в Postgres, и в
// SQLite). target_id = 0 — создание новой записи (Expense), индексом не
// ограничивается.
func EnsureIndexes(db *gorm.DB) error {
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_transaction_approvals_pending_target
		ON transaction_approvals (target_model, target_id)
		WHERE status = 'pending' AND target_id <> 0`).Error
}
