package engine

import (
	"errors"
	"strings"
	"testing"
)

func newStepContext() *Context {
	ctx := NewContext("wf-1")
	ctx.AddStepResult("search", map[string]any{
		"text":  "Go is a statically typed language",
		"count": 3,
		"tags":  []any{"go", "lang"},
	}, true)
	ctx.AddStepResult("check", nil, false)
	return ctx
}

func TestNewContext(t *testing.T) {
	ctx := NewContext("wf-1")
	if ctx.Steps == nil {
		t.Error("Steps should not be nil")
	}
	if ctx.WorkflowID != "wf-1" {
		t.Errorf("expected wf-1, got %s", ctx.WorkflowID)
	}
}

func TestRender_StepData(t *testing.T) {
	ctx := newStepContext()

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "string field",
			template: "Q: {{ .Steps.search.Data.text }}",
			expected: "Q: Go is a statically typed language",
		},
		{
			name:     "number field",
			template: "{{ .Steps.search.Data.count }} results",
			expected: "3 results",
		},
		{
			name:     "workflow id",
			template: "{{ .WorkflowID }}",
			expected: "wf-1",
		},
		{
			name:     "success flag",
			template: "{{ if .Steps.check.Success }}ok{{ else }}failed{{ end }}",
			expected: "failed",
		},
		{
			name:     "no template",
			template: "Plain text",
			expected: "Plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Render(tt.template, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestRender_TemplateFunctions(t *testing.T) {
	ctx := newStepContext()

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"json", `{{ .Steps.search.Data.tags | json }}`, `["go","lang"]`},
		{"upper", `{{ upper "go" }}`, "GO"},
		{"default", `{{ default "none" "" }}`, "none"},
		{"truncate", `{{ truncate 5 .Steps.search.Data.text }}`, "Go is"},
		{"contains", `{{ if contains .Steps.search.Data.text "typed" }}yes{{ end }}`, "yes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Render(tt.template, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestRender_InvalidTemplate(t *testing.T) {
	_, err := Render("{{ .Steps.search", NewContext(""))
	if !errors.Is(err, ErrTemplateParse) {
		t.Errorf("expected ErrTemplateParse, got %v", err)
	}
}

func TestRenderData(t *testing.T) {
	ctx := newStepContext()

	data := map[string]any{
		"question": "Explain: {{ .Steps.search.Data.text }}",
		"limit":    5,
		"nested": map[string]any{
			"items": []any{"{{ .WorkflowID }}", 1},
		},
	}

	rendered, err := RenderData(data, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(rendered["question"].(string), "Explain: Go is") {
		t.Errorf("unexpected question: %v", rendered["question"])
	}
	if rendered["limit"] != 5 {
		t.Errorf("non-string values must be kept, got %v", rendered["limit"])
	}
	items := rendered["nested"].(map[string]any)["items"].([]any)
	if items[0] != "wf-1" || items[1] != 1 {
		t.Errorf("unexpected nested items: %v", items)
	}

	// Исходные данные не изменяются
	if data["question"] != "Explain: {{ .Steps.search.Data.text }}" {
		t.Error("source data must not be mutated")
	}
}

func TestRenderData_Nil(t *testing.T) {
	rendered, err := RenderData(nil, NewContext(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rendered == nil || len(rendered) != 0 {
		t.Errorf("expected empty map, got %v", rendered)
	}
}

func TestHasTemplate(t *testing.T) {
	if HasTemplate(map[string]any{"a": 1, "b": "plain"}) {
		t.Error("expected no template")
	}
	if !HasTemplate(map[string]any{"a": []any{"x", "{{ .WorkflowID }}"}}) {
		t.Error("expected nested template to be detected")
	}
}
