package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shaiso/Maestro/internal/service"
)

const (
	// TypeHTTP — тип HTTP сервиса.
	TypeHTTP = "http"

	// OpRequest — операция HTTP запроса.
	OpRequest = "request"

	maxResponseBody = 10 * 1024 * 1024 // 10 MB
)

// Ключи данных запроса HTTP сервиса.
const (
	dataMethod          = "method"
	dataURL             = "url"
	dataHeaders         = "headers"
	dataBody            = "body"
	dataFollowRedirects = "follow_redirects"
	dataValidateSSL     = "validate_ssl"
)

var httpDescriptor = descriptor{
	Name:        "http-service",
	Description: "Generic HTTP integration with third-party APIs",
	Tags:        []string{"http", "integration"},
}

// HTTPService выполняет HTTP запросы к внешним API.
//
// Данные запроса:
//
//	{
//	    "method": "POST",
//	    "url": "https://api.example.com/data",
//	    "headers": {"Authorization": "Bearer {{ .Steps.auth.Data.token }}"},
//	    "body": {"query": "..."},
//	    "follow_redirects": true,
//	    "validate_ssl": true
//	}
//
// Результат:
//
//	{
//	    "status_code": 200,
//	    "headers": {"Content-Type": "application/json"},
//	    "body": {...}  // JSON или строка
//	}
type HTTPService struct {
	service.HooksFunc

	// transport — базовый транспорт (подменяется в тестах).
	transport http.RoundTripper
}

// NewHTTPHooks создаёт hooks HTTP сервиса.
func NewHTTPHooks(transport http.RoundTripper) *HTTPService {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &HTTPService{transport: transport}
}

// Handle выполняет операцию request.
func (s *HTTPService) Handle(ctx context.Context, op string, data map[string]any) (any, error) {
	if op != OpRequest {
		return nil, service.UnknownOperation(op)
	}

	cfg, err := parseHTTPRequest(data)
	if err != nil {
		return nil, err
	}

	req, err := buildHTTPRequest(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client(cfg).Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	return parseHTTPResponse(resp)
}

// httpRequest — распарсенные данные запроса.
type httpRequest struct {
	Method          string
	URL             string
	Headers         map[string]string
	Body            any
	FollowRedirects bool
	ValidateSSL     bool
}

func parseHTTPRequest(data map[string]any) (*httpRequest, error) {
	cfg := &httpRequest{
		Method:          strings.ToUpper(getString(data, dataMethod)),
		URL:             getString(data, dataURL),
		Headers:         getStringMap(data, dataHeaders),
		Body:            data[dataBody],
		FollowRedirects: getBool(data, dataFollowRedirects, true),
		ValidateSSL:     getBool(data, dataValidateSSL, true),
	}

	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}
	return cfg, nil
}

// client создаёт HTTP клиент с настройками запроса.
// Таймаут задаёт context сервиса, поэтому Client.Timeout не используется.
func (s *HTTPService) client(cfg *httpRequest) *http.Client {
	transport := s.transport
	if !cfg.ValidateSSL {
		if base, ok := transport.(*http.Transport); ok {
			t := base.Clone()
			t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
			transport = t
		}
	}

	var checkRedirect func(*http.Request, []*http.Request) error
	if !cfg.FollowRedirects {
		checkRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &http.Client{
		Transport:     transport,
		CheckRedirect: checkRedirect,
	}
}

func buildHTTPRequest(ctx context.Context, cfg *httpRequest) (*http.Request, error) {
	var bodyReader io.Reader

	if cfg.Body != nil {
		bodyBytes, err := serializeBody(cfg.Body)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)

		if _, ok := cfg.Headers["Content-Type"]; !ok {
			cfg.Headers["Content-Type"] = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, bodyReader)
	if err != nil {
		return nil, err
	}
	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}
	return req, nil
}

func serializeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

func parseHTTPResponse(resp *http.Response) (map[string]any, error) {
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var body any
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(bodyBytes, &body); err != nil {
			body = string(bodyBytes)
		}
	} else {
		body = string(bodyBytes)
	}

	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        body,
	}, nil
}
