// Package services содержит конкретные сервисы, работающие за контрактом
// service.Hooks, и фабрику для их создания по типу.
//
// # Типы
//
//   - llm      — генерация текста через Anthropic (llm.go, anthropic.go)
//   - database — база знаний в PostgreSQL (database.go)
//   - rag      — ответы на вопросы с опорой на базу знаний (rag.go)
//   - http     — запросы к сторонним API (http.go)
//   - utility  — delay, transform, echo для склейки шагов (utility.go)
//
// # Factory
//
//	f := services.NewFactory(services.Deps{
//	    Logger:    logger,
//	    Knowledge: repo.NewKnowledgeRepo(pool),
//	    Anthropic: services.AnthropicConfig{APIKey: key},
//	})
//	svc, err := f.Create(ctx, "rag", map[string]any{"max_concurrent_requests": 5})
//
// Общие ключи конфигурации: name, max_concurrent_requests,
// request_timeout (секунды). Для llm и rag дополнительно model,
// max_tokens, temperature, batch_concurrency; для rag — fallback_keywords.
//
// # RAG
//
// Обработка вопроса:
//  1. Модель решает, нужен ли поиск, и предлагает поисковые запросы (JSON).
//     Если ответ не разбирается — решение по ключевым словам.
//  2. По каждому запросу берутся 3 записи, дубликаты убираются, остаётся не больше 5.
//  3. Модель генерирует ответ с найденными записями в качестве контекста.
//
// Ошибки сервисов (ErrInvalidInput и т.д.) service.Service превращает
// в ответ с кодом INTERNAL_ERROR; таймаут — TIMEOUT.
package services
