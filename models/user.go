package models

import "gorm.io/gorm"

// User — учётная запись. Управление пользователями живёт во внешней
// подсистеме, ядру нужны только идентификация и отображаемые поля.
type User struct {
	gorm.Model
	Login        string `json:"login" gorm:"uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"not null"`
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
}
