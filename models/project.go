package models

import "gorm.io/gorm"

// Project — проект (жилой массив, layout). Участки и расходы привязаны к проекту.
type Project struct {
	gorm.Model
	Name     string `json:"name" gorm:"not null"`
	Location string `json:"location"`

	Partners []Partner `json:"partners,omitempty" gorm:"foreignKey:ProjectID"`
}

// Partner — членство пользователя в проекте. Запись принадлежит внешней
// подсистеме управления участниками; ядро её только читает, чтобы вычислить
// круг голосующих по согласованию.
type Partner struct {
	gorm.Model
	ProjectID uint   `json:"projectId" gorm:"not null;uniqueIndex:idx_partners_project_user"`
	UserID    uint   `json:"userId" gorm:"not null;uniqueIndex:idx_partners_project_user"`
	User      *User  `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Role      string `json:"role" gorm:"default:'partner'"`
}

func (Partner) TableName() string { return "partners" }
