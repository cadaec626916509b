package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// SubmitResponse — ответ на запуск workflow.
type SubmitResponse struct {
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
	StepsCount int    `json:"steps_count"`
}

// StepResponse — ответ сервиса на шаг.
type StepResponse struct {
	Success      bool    `json:"success"`
	Data         any     `json:"data,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
	ErrorCode    string  `json:"error_code,omitempty"`
	ExecutionMs  float64 `json:"execution_ms"`
}

// StepResult — результат шага workflow.
type StepResult struct {
	StepID   string        `json:"step_id"`
	Response *StepResponse `json:"response"`
	Attempts int           `json:"attempts"`
}

// WorkflowResponse — состояние workflow.
type WorkflowResponse struct {
	ID             string                 `json:"workflow_id"`
	Status         string                 `json:"status"`
	CreatedAt      string                 `json:"created_at"`
	StartedAt      string                 `json:"started_at,omitempty"`
	CompletedAt    string                 `json:"completed_at,omitempty"`
	StepsTotal     int                    `json:"steps_total"`
	StepsCompleted int                    `json:"steps_completed"`
	Errors         []string               `json:"errors"`
	Results        map[string]*StepResult `json:"results,omitempty"`
}

// Batch — группа шагов плана.
type Batch struct {
	Parallel   []string `json:"parallel"`
	Sequential []string `json:"sequential"`
}

// PlanResponse — план выполнения.
type PlanResponse struct {
	Batches []Batch `json:"batches"`
}

// CancelResponse — результат отмены.
type CancelResponse struct {
	WorkflowID string `json:"workflow_id"`
	Cancelled  bool   `json:"cancelled"`
}

// ServiceResponse — сервис из реестра.
type ServiceResponse struct {
	ID           string   `json:"service_id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Version      string   `json:"version"`
	Status       string   `json:"status"`
	Tags         []string `json:"tags"`
	Dependencies []string `json:"dependencies"`
	Metrics      struct {
		TotalRequests     int64   `json:"total_requests"`
		SuccessRate       float64 `json:"success_rate"`
		AverageResponseMs float64 `json:"average_response_ms"`
	} `json:"metrics"`
}

// RegistrationResponse — результат регистрации сервиса.
type RegistrationResponse struct {
	ServiceID      string   `json:"service_id"`
	ServiceName    string   `json:"service_name"`
	Registered     bool     `json:"registered"`
	DependenciesOK bool     `json:"dependencies_ok"`
	Missing        []string `json:"missing_dependencies,omitempty"`
}

// RestartResponse — результат перезапуска.
type RestartResponse struct {
	ServiceID string `json:"service_id"`
	Status    string `json:"status"`
}

// StatsResponse — статистика orchestrator.
type StatsResponse struct {
	TotalWorkflows      int               `json:"total_workflows"`
	SuccessfulWorkflows int               `json:"successful_workflows"`
	FailedWorkflows     int               `json:"failed_workflows"`
	SuccessRate         float64           `json:"success_rate"`
	ActiveWorkflows     int               `json:"active_workflows"`
	RegisteredServices  int               `json:"registered_services"`
	RunningServices     int               `json:"running_services"`
	ServiceHealth       map[string]string `json:"service_health"`
	ProcessMemoryMB     float64           `json:"process_memory_mb"`
}

// --- Request types ---

// WorkflowRequest — тело запуска и планирования workflow.
type WorkflowRequest struct {
	Steps json.RawMessage `json:"steps"`
}

// RegisterServiceRequest — регистрация сервиса.
type RegisterServiceRequest struct {
	ServiceType string         `json:"service_type"`
	Config      map[string]any `json:"config,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Maestro API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Workflows ---

// SubmitWorkflow запускает workflow из JSON-массива шагов.
func (c *Client) SubmitWorkflow(steps json.RawMessage) (*SubmitResponse, error) {
	var resp SubmitResponse
	err := c.post("/api/v1/workflows", WorkflowRequest{Steps: steps}, &resp)
	return &resp, err
}

// PlanWorkflow возвращает порядок выполнения без запуска.
func (c *Client) PlanWorkflow(steps json.RawMessage) (*PlanResponse, error) {
	var resp PlanResponse
	err := c.post("/api/v1/workflows/plan", WorkflowRequest{Steps: steps}, &resp)
	return &resp, err
}

// ListWorkflows возвращает все workflows.
func (c *Client) ListWorkflows() ([]WorkflowResponse, error) {
	var workflows []WorkflowResponse
	err := c.list("/api/v1/workflows", &workflows)
	return workflows, err
}

// GetWorkflow возвращает состояние workflow.
func (c *Client) GetWorkflow(id string) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.get("/api/v1/workflows/"+id, &wf)
	return &wf, err
}

// CancelWorkflow отменяет workflow.
func (c *Client) CancelWorkflow(id string) (*CancelResponse, error) {
	var resp CancelResponse
	err := c.post("/api/v1/workflows/"+id+"/cancel", nil, &resp)
	return &resp, err
}

// --- Services ---

// ListServices возвращает зарегистрированные сервисы.
func (c *Client) ListServices() ([]ServiceResponse, error) {
	var services []ServiceResponse
	err := c.list("/api/v1/services", &services)
	return services, err
}

// RegisterService создаёт и регистрирует сервис.
func (c *Client) RegisterService(req RegisterServiceRequest) (*RegistrationResponse, error) {
	var reg RegistrationResponse
	err := c.post("/api/v1/services", req, &reg)
	return &reg, err
}

// RestartService перезапускает сервис.
func (c *Client) RestartService(id string) (*RestartResponse, error) {
	var resp RestartResponse
	err := c.post("/api/v1/services/"+id+"/restart", nil, &resp)
	return &resp, err
}

// RemoveService удаляет сервис.
func (c *Client) RemoveService(id string) error {
	return c.delete("/api/v1/services/" + id)
}

// Stats возвращает статистику.
func (c *Client) Stats() (*StatsResponse, error) {
	var stats StatsResponse
	err := c.get("/api/v1/stats", &stats)
	return &stats, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, result any) error {
	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
