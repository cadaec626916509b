// Package registry — реестр запущенных сервисов.
//
// Registry:
//   - хранит сервисы и кэш их ServiceInfo
//   - ищет сервисы по ID, имени и тегу
//   - периодически проверяет здоровье RUNNING сервисов
//   - синхронно доставляет события подписчикам в порядке подписки
//
// Registry создаётся один раз и передаётся зависимым компонентам
// по ссылке.
package registry
