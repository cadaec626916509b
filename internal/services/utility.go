package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shaiso/Maestro/internal/engine"
	"github.com/shaiso/Maestro/internal/service"
)

const (
	// TypeUtility — тип вспомогательного сервиса.
	TypeUtility = "utility"

	OpDelay     = "delay"
	OpTransform = "transform"
	OpEcho      = "echo"
)

// Ключи данных.
const (
	dataDurationSec = "duration_sec"
	dataDurationMs  = "duration_ms"
	dataMappings    = "mappings"
)

var utilityDescriptor = descriptor{
	Name:        "utility-service",
	Description: "Delays, data transformation and echo for workflow glue",
	Tags:        []string{"utility"},
}

// UtilityService — вспомогательные операции для workflows.
//
// Операции:
//   - delay {duration_sec | duration_ms} — пауза, прерываемая отменой
//   - transform {mappings} — рендер шаблонов над данными запроса ({{ .Data.x }})
//   - echo — возвращает входные данные
type UtilityService struct {
	service.HooksFunc
}

// NewUtilityHooks создаёт hooks вспомогательного сервиса.
func NewUtilityHooks() *UtilityService {
	return &UtilityService{}
}

// Handle выполняет операцию.
func (s *UtilityService) Handle(ctx context.Context, op string, data map[string]any) (any, error) {
	switch op {
	case OpDelay:
		return s.delay(ctx, data)
	case OpTransform:
		return s.transform(ctx, data)
	case OpEcho:
		return data, nil
	default:
		return nil, service.UnknownOperation(op)
	}
}

func (s *UtilityService) delay(ctx context.Context, data map[string]any) (any, error) {
	duration, err := parseDuration(data)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return map[string]any{"duration_ms": duration.Milliseconds()}, nil
	}
}

func parseDuration(data map[string]any) (time.Duration, error) {
	if sec := getFloat(data, dataDurationSec, 0); sec > 0 {
		return time.Duration(sec * float64(time.Second)), nil
	}
	if ms := getInt(data, dataDurationMs, 0); ms > 0 {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return 0, fmt.Errorf("%w: duration_sec or duration_ms required", ErrInvalidInput)
}

// transform рендерит mappings; шаблоны видят данные запроса как .Data.
func (s *UtilityService) transform(ctx context.Context, data map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mappings := getStringMap(data, dataMappings)
	if len(mappings) == 0 {
		return map[string]any{}, nil
	}

	tmplCtx := engine.NewContext("")
	tmplCtx.Data = data

	outputs := make(map[string]any, len(mappings))
	for key, tmpl := range mappings {
		rendered, err := engine.Render(tmpl, tmplCtx)
		if err != nil {
			return nil, fmt.Errorf("transform %s: %w", key, err)
		}
		outputs[key] = parseValue(rendered)
	}
	return outputs, nil
}

// parseValue пытается распарсить строку как JSON.
// Если не получается — возвращает строку как есть.
func parseValue(value string) any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(value), &obj); err == nil {
		return obj
	}

	var arr []any
	if err := json.Unmarshal([]byte(value), &arr); err == nil {
		return arr
	}

	var num json.Number
	if err := json.Unmarshal([]byte(value), &num); err == nil {
		if i, err := num.Int64(); err == nil {
			return i
		}
		if f, err := num.Float64(); err == nil {
			return f
		}
	}

	switch value {
	case "true":
		return true
	case "false":
		return false
	}
	return value
}
