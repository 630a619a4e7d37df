package config

import (
	"log/slog"
	"os"
)

// JwtKey — секрет для подписи токенов. Берётся из окружения,
// дефолтное значение допустимо только для локальной разработки.
var JwtKey = loadJwtKey()

func loadJwtKey() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		slog.Warn("Переменная окружения JWT_SECRET не установлена, используется небезопасный ключ по умолчанию.")
		secret = "hustle-dev-secret"
	}
	return []byte(secret)
}
