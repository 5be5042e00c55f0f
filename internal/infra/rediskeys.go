package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "kpidash"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanDashboardRefresh: сигнал «обновиться сейчас» для всех запущенных дашбордов.
	// Публикует analytics API после записи пачки событий.
	RedisChanDashboardRefresh = RedisNamespace + ":dashboard:refresh"
)
