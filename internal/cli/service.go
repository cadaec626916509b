package cli

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewServiceCmd создаёт группу команд для управления сервисами.
func NewServiceCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage services",
	}

	cmd.AddCommand(
		newServiceListCmd(clientFn, outputFn),
		newServiceRegisterCmd(clientFn, outputFn),
		newServiceRestartCmd(clientFn, outputFn),
		newServiceRemoveCmd(clientFn, outputFn),
	)

	return cmd
}

// NewStatsCmd создаёт команду статистики.
func NewStatsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show orchestrator statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			stats, err := clientFn().Stats()
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(stats)
				return nil
			}

			out.Details([][2]string{
				{"Workflows", strconv.Itoa(stats.TotalWorkflows)},
				{"Succeeded", strconv.Itoa(stats.SuccessfulWorkflows)},
				{"Failed", strconv.Itoa(stats.FailedWorkflows)},
				{"Active", strconv.Itoa(stats.ActiveWorkflows)},
				{"Success rate", fmt.Sprintf("%.2f%%", stats.SuccessRate)},
				{"Services", fmt.Sprintf("%d registered, %d running", stats.RegisteredServices, stats.RunningServices)},
				{"Memory", fmt.Sprintf("%.1f MB", stats.ProcessMemoryMB)},
			})

			if len(stats.ServiceHealth) > 0 {
				out.Newline()
				rows := make([][]string, 0, len(stats.ServiceHealth))
				for _, name := range sortedKeys(stats.ServiceHealth) {
					rows = append(rows, []string{name, stats.ServiceHealth[name]})
				}
				out.Table([]string{"SERVICE", "STATUS"}, rows)
			}
			return nil
		},
	}
}

func newServiceListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered services",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			services, err := clientFn().ListServices()
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "VERSION", "STATUS", "REQUESTS", "SUCCESS_RATE", "DEPENDS_ON"}
			rows := make([][]string, len(services))
			for i, s := range services {
				rows[i] = []string{
					s.ID,
					s.Name,
					s.Version,
					s.Status,
					strconv.FormatInt(s.Metrics.TotalRequests, 10),
					fmt.Sprintf("%.2f", s.Metrics.SuccessRate),
					joinOrDash(s.Dependencies),
				}
			}

			out.Print(headers, rows, services)
			return nil
		},
	}
}

func newServiceRegisterCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var settings []string

	cmd := &cobra.Command{
		Use:   "register TYPE",
		Short: "Create and register a service (llm, database, rag, http, utility)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			config, err := parseConfig(settings)
			if err != nil {
				return err
			}

			reg, err := clientFn().RegisterService(RegisterServiceRequest{
				ServiceType: args[0],
				Config:      config,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Service registered: %s", reg.ServiceName))
			if !reg.DependenciesOK {
				out.Error("missing dependencies: " + strings.Join(reg.Missing, ", "))
			}
			out.Print(
				[]string{"ID", "NAME", "DEPENDENCIES_OK"},
				[][]string{{reg.ServiceID, reg.ServiceName, strconv.FormatBool(reg.DependenciesOK)}},
				reg,
			)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&settings, "config", nil, "Service config as KEY=VALUE (repeatable, VALUE may be JSON)")

	return cmd
}

func newServiceRestartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "restart SERVICE_ID",
		Short: "Restart a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			resp, err := clientFn().RestartService(args[0])
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(resp)
				return nil
			}
			out.Success(fmt.Sprintf("Service %s restarted: %s", resp.ServiceID, resp.Status))
			return nil
		},
	}
}

func newServiceRemoveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "remove SERVICE_ID",
		Short: "Stop and unregister a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().RemoveService(args[0]); err != nil {
				return err
			}
			outputFn().Success(fmt.Sprintf("Service removed: %s", args[0]))
			return nil
		},
	}
}

// parseConfig разбирает KEY=VALUE; VALUE декодируется как JSON, иначе строка.
func parseConfig(settings []string) (map[string]any, error) {
	if len(settings) == 0 {
		return nil, nil
	}

	config := make(map[string]any, len(settings))
	for _, kv := range settings {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid config format %q, expected KEY=VALUE", kv)
		}

		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		config[key] = v
	}
	return config, nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
