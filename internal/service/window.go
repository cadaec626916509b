package service

// responseWindow — скользящее окно последних времён ответа.
type responseWindow struct {
	samples []float64
	next    int
	full    bool
	sum     float64
}

func newResponseWindow(size int) *responseWindow {
	return &responseWindow{samples: make([]float64, size)}
}

// add добавляет значение и возвращает новое среднее.
func (w *responseWindow) add(v float64) float64 {
	if w.full {
		w.sum -= w.samples[w.next]
	}
	w.samples[w.next] = v
	w.sum += v

	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}

	return w.sum / float64(w.len())
}

func (w *responseWindow) len() int {
	if w.full {
		return len(w.samples)
	}
	return w.next
}
