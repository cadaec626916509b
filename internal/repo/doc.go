// Package repo — слой доступа к PostgreSQL (pgx/v5).
//
// KnowledgeRepo хранит базу знаний, которую используют
// сервисы database и rag. Состояние workflows в БД не хранится.
package repo
