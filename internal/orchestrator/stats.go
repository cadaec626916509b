package orchestrator

import (
	"context"
	"os"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shirou/gopsutil/v4/process"
)

// Stats — агрегированная статистика оркестратора.
type Stats struct {
	TotalWorkflows      int     `json:"total_workflows"`
	SuccessfulWorkflows int     `json:"successful_workflows"`
	FailedWorkflows     int     `json:"failed_workflows"`
	SuccessRate         float64 `json:"success_rate"`
	ActiveWorkflows     int     `json:"active_workflows"`

	RegisteredServices int `json:"registered_services"`
	RunningServices    int `json:"running_services"`

	// ServiceHealth — статус каждого RUNNING сервиса по имени.
	ServiceHealth map[string]domain.ServiceStatus `json:"service_health"`

	// ProcessMemoryMB — RSS процесса; 0, если недоступен.
	ProcessMemoryMB float64 `json:"process_memory_mb"`
}

// Stats возвращает статистику workflows и сервисов.
func (o *Orchestrator) Stats(ctx context.Context) Stats {
	o.mu.RLock()
	stats := Stats{
		TotalWorkflows:      len(o.workflows),
		SuccessfulWorkflows: o.succeeded,
		FailedWorkflows:     o.failed,
		ActiveWorkflows:     len(o.active),
	}
	o.mu.RUnlock()

	stats.SuccessRate = float64(stats.SuccessfulWorkflows) / float64(max(stats.TotalWorkflows, 1)) * 100

	running := o.registry.Running()
	stats.RegisteredServices = len(o.registry.All())
	stats.RunningServices = len(running)
	stats.ServiceHealth = make(map[string]domain.ServiceStatus, len(running))
	for _, svc := range running {
		stats.ServiceHealth[svc.Name()] = svc.Status()
	}

	stats.ProcessMemoryMB = o.processMemoryMB(ctx)
	return stats
}

func (o *Orchestrator) processMemoryMB(ctx context.Context) float64 {
	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		o.logger.Debug("process info unavailable", "error", err)
		return 0
	}

	mem, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		o.logger.Debug("memory info unavailable", "error", err)
		return 0
	}
	return float64(mem.RSS) / 1024 / 1024
}
