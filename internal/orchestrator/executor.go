package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/engine"
	"github.com/shaiso/Maestro/internal/service"
	"github.com/shaiso/Maestro/internal/telemetry"
)

// execute выполняет шаги workflow до конца или до первой ошибки.
//
// На каждой итерации:
//  1. Находит ready set (шаги с выполненными зависимостями)
//  2. Пустой ready set при оставшихся шагах — deadlock
//  3. Выполняет parallel шаги одновременно и ждёт их все
//  4. Выполняет остальные шаги по одному в порядке обнаружения
//  5. Переносит успешные шаги итерации в completed
//
// Результат шага записывается в workflow сразу после его успеха,
// поэтому отмена или ошибка посреди итерации сохраняет уже готовые шаги.
func (o *Orchestrator) execute(ctx context.Context, wf *domain.Workflow, state *runState) error {
	logger := telemetry.WithWorkflowID(o.logger, wf.ID)

	for state.remaining() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		ready := state.ready()
		if len(ready) == 0 {
			logger.Error("no ready steps", "pending", state.remaining())
			return fmt.Errorf("%w: circular dependencies", ErrWorkflowDeadlock)
		}

		parallel, sequential := engine.Partition(ready)
		logger.Debug("executing batch", "parallel", len(parallel), "sequential", len(sequential))

		results := make([]*domain.StepResult, 0, len(ready))

		if len(parallel) > 0 {
			batch, err := o.runParallel(ctx, wf, state, parallel)
			if err != nil {
				return err
			}
			results = append(results, batch...)
		}

		for _, step := range sequential {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := o.executeStep(ctx, wf.ID, state, step)
			if err != nil {
				return err
			}
			o.recordStep(wf, res)
			results = append(results, res)
		}

		state.markCompleted(results)
	}

	return nil
}

// recordStep сохраняет результат успешного шага, пока workflow не завершён.
func (o *Orchestrator) recordStep(wf *domain.Workflow, res *domain.StepResult) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if wf.IsFinished() {
		return
	}
	wf.RecordResult(res)
}

// runParallel запускает шаги одновременно и ждёт их все.
//
// Отмена workflow не отменяет уже запущенные шаги: они продолжают
// работу, но их результаты после отмены не записываются. Если включён
// cancelSiblings, первая ошибка отменяет остальные шаги batch.
// Возвращается первая по времени ошибка.
func (o *Orchestrator) runParallel(ctx context.Context, wf *domain.Workflow, state *runState, steps []domain.Step) ([]*domain.StepResult, error) {
	batchCtx, cancelBatch := context.WithCancel(context.WithoutCancel(ctx))

	var (
		mu       sync.Mutex
		firstErr error
		results  = make([]*domain.StepResult, len(steps))
		wg       conc.WaitGroup
	)

	for i, step := range steps {
		wg.Go(func() {
			res, err := o.executeStep(batchCtx, wf.ID, state, step)
			if err == nil {
				o.recordStep(wf, res)
			}

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if firstErr == nil {
					firstErr = err
					if o.cancelSiblings {
						cancelBatch()
					}
				}
				return
			}
			results[i] = res
		})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancelBatch()

		if rec := wg.WaitAndRecover(); rec != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = rec.AsError()
			}
			mu.Unlock()
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// executeStep выполняет один шаг с повторами.
//
// Сервис ищется по имени; отсутствующий или не RUNNING сервис —
// ошибка без повторов. Неуспешный ответ повторяется до RetryCount раз
// с задержкой retryBaseDelay × номер попытки, кроме UNKNOWN_OPERATION.
func (o *Orchestrator) executeStep(ctx context.Context, workflowID string, state *runState, step domain.Step) (*domain.StepResult, error) {
	logger := telemetry.WithStepID(telemetry.WithWorkflowID(o.logger, workflowID), step.ID)

	svc, ok := o.registry.FindByName(step.ServiceName)
	if !ok {
		logger.Error("service not found", "service", step.ServiceName)
		return nil, fmt.Errorf("step %s failed: %w: %s", step.ID, ErrServiceNotFound, step.ServiceName)
	}
	if !svc.IsRunning() {
		logger.Error("service not running", "service", step.ServiceName, "status", svc.Status())
		return nil, fmt.Errorf("step %s failed: %w: %s (%s)", step.ID, ErrServiceNotRunning, step.ServiceName, svc.Status())
	}

	data := step.Data
	if engine.HasTemplate(data) {
		rendered, err := engine.RenderData(data, state.tmpl)
		if err != nil {
			return nil, fmt.Errorf("step %s failed: %w", step.ID, err)
		}
		data = rendered
	}

	startedAt := time.Now()
	logger.Debug("step started", "service", step.ServiceName, "operation", step.Operation)

	var (
		resp     *domain.Response
		attempts int
	)
	for {
		attempts++

		req := domain.NewRequest(step.Operation, data, step.Timeout())
		req.CorrelationID = workflowID

		resp = svc.ProcessRequest(ctx, req)
		resp.Metadata["attempt"] = attempts

		if resp.Success || !resp.ErrorCode.IsRetryable() || attempts > step.RetryCount || ctx.Err() != nil {
			break
		}

		delay := o.retryBaseDelay * time.Duration(attempts)
		logger.Warn("step failed, retrying",
			"attempt", attempts,
			"delay", delay,
			"error_code", resp.ErrorCode,
			"error", resp.ErrorMessage,
		)
		o.metrics.RecordStepRetry(step.ServiceName)

		if err := sleep(ctx, delay); err != nil {
			break
		}
	}

	finishedAt := time.Now()
	o.metrics.RecordStep(step.ServiceName, resp.Success, finishedAt.Sub(startedAt))

	if resp.Success {
		logger.Info("step completed", "attempts", attempts, "duration", finishedAt.Sub(startedAt))
		return &domain.StepResult{
			StepID:     step.ID,
			Response:   resp,
			StartedAt:  startedAt,
			FinishedAt: finishedAt,
			Attempts:   attempts,
		}, nil
	}

	switch {
	case resp.ErrorCode == domain.ErrorCodeUnknownOperation:
		return nil, fmt.Errorf("step %s failed: %w: %s", step.ID, service.ErrUnknownOperation, step.Operation)
	case ctx.Err() != nil:
		return nil, fmt.Errorf("step %s failed: %w", step.ID, ctx.Err())
	default:
		logger.Error("step failed", "attempts", attempts, "error", resp.ErrorMessage)
		return nil, fmt.Errorf("step %s failed: %w after %d attempts: %s",
			step.ID, ErrStepRetriesExhausted, attempts, resp.ErrorMessage)
	}
}

// sleep ждёт d или отмены ctx.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
