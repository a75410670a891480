package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/teller/pkg/domain"
)

// LogHooks logs every lifecycle event at debug level, failures at warn.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnWorkflowStart: func(ctx context.Context, e *domain.WorkflowEvent) {
			logger.DebugContext(ctx, "workflow start", "workflow", e.Workflow, "run_id", e.RunID)
		},
		OnWorkflowEnd: func(ctx context.Context, e *domain.WorkflowEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "workflow failed", "workflow", e.Workflow, "run_id", e.RunID, "steps", e.Steps, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "workflow end", "workflow", e.Workflow, "run_id", e.RunID, "steps", e.Steps)
		},
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node enter", "workflow", e.Workflow, "node", e.Node, "run_id", e.RunID)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "node failed", "workflow", e.Workflow, "node", e.Node, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "node leave", "workflow", e.Workflow, "node", e.Node, "duration", e.Duration)
		},
	}
}

// Chain merges several hook sets; each callback fires in argument order.
func Chain(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		out.OnWorkflowStart = chainWorkflow(out.OnWorkflowStart, h.OnWorkflowStart)
		out.OnWorkflowEnd = chainWorkflow(out.OnWorkflowEnd, h.OnWorkflowEnd)
		out.OnNodeEnter = chainNode(out.OnNodeEnter, h.OnNodeEnter)
		out.OnNodeLeave = chainNode(out.OnNodeLeave, h.OnNodeLeave)
	}
	return out
}

func chainNode(a, b func(context.Context, *domain.NodeEvent)) func(context.Context, *domain.NodeEvent) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *domain.NodeEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainWorkflow(a, b func(context.Context, *domain.WorkflowEvent)) func(context.Context, *domain.WorkflowEvent) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *domain.WorkflowEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
