package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewWorkflowCmd создаёт группу команд для управления workflows.
func NewWorkflowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Manage workflows",
	}

	cmd.AddCommand(
		newWorkflowSubmitCmd(clientFn, outputFn),
		newWorkflowPlanCmd(clientFn, outputFn),
		newWorkflowListCmd(clientFn, outputFn),
		newWorkflowStatusCmd(clientFn, outputFn),
		newWorkflowCancelCmd(clientFn, outputFn),
	)

	return cmd
}

func newWorkflowSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var wait bool
	var pollInterval time.Duration

	cmd := &cobra.Command{
		Use:   "submit FILE|-",
		Short: "Submit a workflow from a JSON steps file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			steps, err := readSteps(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			resp, err := client.SubmitWorkflow(steps)
			if err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Workflow submitted: %s", resp.WorkflowID))

			if !wait {
				out.Print(
					[]string{"WORKFLOW_ID", "STATUS", "STEPS"},
					[][]string{{resp.WorkflowID, resp.Status, strconv.Itoa(resp.StepsCount)}},
					resp,
				)
				return nil
			}

			wf, err := waitWorkflow(cmd, client, resp.WorkflowID, pollInterval)
			if err != nil {
				return err
			}
			printWorkflow(out, wf)
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the workflow to finish")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", time.Second, "Status poll interval with --wait")

	return cmd
}

func newWorkflowPlanCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "plan FILE|-",
		Short: "Show execution batches without running the workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			steps, err := readSteps(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			plan, err := client.PlanWorkflow(steps)
			if err != nil {
				return err
			}

			headers := []string{"BATCH", "PARALLEL", "SEQUENTIAL"}
			rows := make([][]string, len(plan.Batches))
			for i, b := range plan.Batches {
				rows[i] = []string{strconv.Itoa(i + 1), joinOrDash(b.Parallel), joinOrDash(b.Sequential)}
			}

			out.Print(headers, rows, plan)
			return nil
		},
	}
}

func newWorkflowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			workflows, err := client.ListWorkflows()
			if err != nil {
				return err
			}

			headers := []string{"WORKFLOW_ID", "STATUS", "PROGRESS", "CREATED"}
			rows := make([][]string, len(workflows))
			for i, wf := range workflows {
				rows[i] = []string{wf.ID, wf.Status, progress(&wf), wf.CreatedAt}
			}

			out.Print(headers, rows, workflows)
			return nil
		},
	}
}

func newWorkflowStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status WORKFLOW_ID",
		Short: "Show workflow status and step results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := clientFn().GetWorkflow(args[0])
			if err != nil {
				return err
			}
			printWorkflow(outputFn(), wf)
			return nil
		},
	}
}

func newWorkflowCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel WORKFLOW_ID",
		Short: "Cancel a running workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			resp, err := clientFn().CancelWorkflow(args[0])
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(resp)
				return nil
			}
			if resp.Cancelled {
				out.Success(fmt.Sprintf("Workflow cancelled: %s", resp.WorkflowID))
			} else {
				out.Success(fmt.Sprintf("Workflow %s already finished", resp.WorkflowID))
			}
			return nil
		},
	}
}

// readSteps читает шаги из файла или stdin ("-").
// Принимает JSON-массив шагов или объект {"steps": [...]}.
func readSteps(path string, stdin io.Reader) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read steps: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("steps file is empty")
	}

	if data[0] == '{' {
		var wrapped struct {
			Steps json.RawMessage `json:"steps"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("parse steps: %w", err)
		}
		if len(wrapped.Steps) == 0 {
			return nil, errors.New(`steps object has no "steps" field`)
		}
		data = wrapped.Steps
	}

	if !json.Valid(data) {
		return nil, errors.New("parse steps: invalid JSON")
	}
	return json.RawMessage(data), nil
}

// waitWorkflow опрашивает статус, пока workflow не завершится.
func waitWorkflow(cmd *cobra.Command, client *Client, id string, interval time.Duration) (*WorkflowResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		wf, err := client.GetWorkflow(id)
		if err != nil {
			return nil, err
		}
		if isFinished(wf.Status) {
			return wf, nil
		}

		select {
		case <-cmd.Context().Done():
			return nil, cmd.Context().Err()
		case <-ticker.C:
		}
	}
}

func isFinished(status string) bool {
	switch status {
	case "COMPLETED", "FAILED", "CANCELLED":
		return true
	}
	return false
}

func printWorkflow(out *Output, wf *WorkflowResponse) {
	if out.jsonMode {
		out.JSON(wf)
		return
	}

	out.Details([][2]string{
		{"Workflow", wf.ID},
		{"Status", wf.Status},
		{"Progress", progress(wf)},
		{"Created", wf.CreatedAt},
		{"Started", orDash(wf.StartedAt)},
		{"Completed", orDash(wf.CompletedAt)},
	})

	if len(wf.Results) > 0 {
		out.Newline()
		rows := make([][]string, 0, len(wf.Results))
		for _, id := range sortedKeys(wf.Results) {
			r := wf.Results[id]
			status, errMsg, ms := "OK", "", 0.0
			if r.Response != nil {
				ms = r.Response.ExecutionMs
				if !r.Response.Success {
					status, errMsg = "FAILED", r.Response.ErrorMessage
				}
			}
			rows = append(rows, []string{id, status, strconv.Itoa(r.Attempts), fmt.Sprintf("%.1f", ms), orDash(errMsg)})
		}
		out.Table([]string{"STEP", "RESULT", "ATTEMPTS", "MS", "ERROR"}, rows)
	}

	for _, e := range wf.Errors {
		out.Error(e)
	}
}

func progress(wf *WorkflowResponse) string {
	return fmt.Sprintf("%d/%d", wf.StepsCompleted, wf.StepsTotal)
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
