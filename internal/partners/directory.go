package partners

import (
	"hustle-crm/models"

	"gorm.io/gorm"
)

// Directory отдаёт круг партнёров проекта — пользователей, имеющих право
// голосовать по согласованиям. Членством управляет внешняя подсистема,
// ядро его только читает.
type Directory interface {
	ListPartners(tx *gorm.DB, projectID uint) ([]uint, error)
}

// DBDirectory — реализация поверх таблицы partners.
type DBDirectory struct{}

func (DBDirectory) ListPartners(tx *gorm.DB, projectID uint) ([]uint, error) {
	var ids []uint
	err := tx.Model(&models.Partner{}).
		Where("project_id = ?", projectID).
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

// IsPartner — вспомогательная проверка членства для обработчиков.
func IsPartner(tx *gorm.DB, projectID, userID uint) (bool, error) {
	var n int64
	err := tx.Model(&models.Partner{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&n).Error
	return n > 0, err
}
