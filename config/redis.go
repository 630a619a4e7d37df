package config

import (
	"context"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
)

var RDB *redis.Client
var Ctx = context.Background()

func ConnectRedis() {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		slog.Warn("REDIS_ADDR не задан, кэш пользователей отключён")
		return
	}

	RDB = redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	if _, err := RDB.Ping(Ctx).Result(); err != nil {
		slog.Error("Redis недоступен, работаем без кэша", "error", err)
		// Middleware проверяет RDB на nil и ходит сразу в БД.
		RDB = nil
		return
	}

	slog.Info("Соединение с Redis установлено")
}
