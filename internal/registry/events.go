package registry

import (
	"context"
	"slices"

	"github.com/sourcegraph/conc/panics"

	"github.com/shaiso/Maestro/internal/domain"
)

// EventHandler — подписчик на события реестра.
// Ошибка или panic подписчика логируется и не прерывает доставку.
type EventHandler func(ctx context.Context, event domain.Event) error

type subscription struct {
	id      int
	handler EventHandler
}

// Subscribe добавляет подписчика и возвращает его ID для Unsubscribe.
func (r *Registry) Subscribe(h EventHandler) int {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()

	r.nextSubID++
	r.handlers = append(r.handlers, subscription{id: r.nextSubID, handler: h})
	return r.nextSubID
}

// Unsubscribe удаляет подписчика. Возвращает false, если ID неизвестен.
func (r *Registry) Unsubscribe(id int) bool {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()

	n := len(r.handlers)
	r.handlers = slices.DeleteFunc(r.handlers, func(s subscription) bool {
		return s.id == id
	})
	return len(r.handlers) != n
}

// emit синхронно доставляет событие подписчикам в порядке подписки.
func (r *Registry) emit(ctx context.Context, event domain.Event) {
	r.handlersMu.Lock()
	handlers := slices.Clone(r.handlers)
	r.handlersMu.Unlock()

	r.metrics.RecordRegistryEvent(string(event.Type))

	for _, sub := range handlers {
		var (
			err error
			pc  panics.Catcher
		)
		pc.Try(func() {
			err = sub.handler(ctx, event)
		})
		if rec := pc.Recovered(); rec != nil {
			err = rec.AsError()
		}
		if err != nil {
			r.logger.Error("event handler error",
				"event_type", event.Type,
				"service_id", event.ServiceID,
				"subscription", sub.id,
				"error", err,
			)
		}
	}
}
