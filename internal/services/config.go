package services

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shaiso/Maestro/internal/service"
	"github.com/shaiso/Maestro/internal/telemetry"
)

// Ключи конфигурации, общие для всех сервисов.
const (
	configName = "name"
)

// descriptor — описание сервиса по умолчанию.
type descriptor struct {
	Name         string
	Description  string
	Tags         []string
	Dependencies []string
}

// newService собирает service.Service из hooks, описания и конфигурации.
//
// cfg["name"] переопределяет имя; max_concurrent_requests и
// request_timeout читает service.New.
func newService(h service.Hooks, d descriptor, cfg map[string]any, logger *slog.Logger, metrics *telemetry.Metrics) *service.Service {
	name := getString(cfg, configName)
	if name == "" {
		name = d.Name
	}
	return service.New(h, service.Config{
		Name:          name,
		Description:   d.Description,
		Version:       "1.0.0",
		Tags:          d.Tags,
		Dependencies:  d.Dependencies,
		Configuration: cfg,
		Logger:        logger,
		Metrics:       metrics,
	})
}

// getString извлекает строковое значение.
func getString(data map[string]any, key string) string {
	if s, ok := data[key].(string); ok {
		return s
	}
	return ""
}

// getInt извлекает целое значение (JSON числа приходят как float64).
func getInt(data map[string]any, key string, def int) int {
	switch n := data[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	}
	return def
}

// getFloat извлекает число с плавающей точкой.
func getFloat(data map[string]any, key string, def float64) float64 {
	if f, ok := lookupFloat(data, key); ok {
		return f
	}
	return def
}

// lookupFloat извлекает число и сообщает, было ли оно задано.
func lookupFloat(data map[string]any, key string) (float64, bool) {
	switch n := data[key].(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// getBool извлекает булево значение.
func getBool(data map[string]any, key string, def bool) bool {
	if b, ok := data[key].(bool); ok {
		return b
	}
	return def
}

// getStringMap извлекает map[string]string.
func getStringMap(data map[string]any, key string) map[string]string {
	switch m := data[key].(type) {
	case map[string]string:
		return m
	case map[string]any:
		result := make(map[string]string, len(m))
		for k, v := range m {
			if s, ok := v.(string); ok {
				result[k] = s
			}
		}
		return result
	}
	return nil
}

// getStrings извлекает список строк.
func getStrings(data map[string]any, key string) []string {
	switch v := data[key].(type) {
	case []string:
		return v
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}

// requireString возвращает непустую строку или ErrInvalidInput.
func requireString(data map[string]any, key string) (string, error) {
	s := getString(data, key)
	if s == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidInput, key)
	}
	return s, nil
}
