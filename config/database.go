package config

import (
	"log/slog"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func ConnectDB() {
	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		slog.Error("Переменная окружения DB_URL не задана, без неё запуск невозможен.")
		os.Exit(1)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		slog.Error("Не удалось подключиться к Postgres", "error", err)
		os.Exit(1)
	}

	DB = db
	slog.Info("Соединение с Postgres установлено")
}
