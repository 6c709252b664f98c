package lifecycle

import (
	"context"
	"io"
	"log/slog"

	"github.com/automata-tech/labdash/internal/lab"
)

// Commander is the write side of the resource gateway.
type Commander interface {
	CreateWorkflow(ctx context.Context, spec lab.WorkflowSpec) (lab.Workflow, error)
	StartWorkflow(ctx context.Context, id string) error
	CompleteWorkflow(ctx context.Context, id string) error
}

// Refresher runs one immediate poll.
type Refresher interface {
	RefreshAll(ctx context.Context) lab.Snapshot
}

// Controller sends operator commands. Every successful command is followed
// by exactly one immediate refresh, independent of the regular poll cadence.
// Commands are not queued, debounced or retried.
type Controller struct {
	gw        Commander
	refresher Refresher
	log       *slog.Logger
}

func NewController(gw Commander, refresher Refresher, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{gw: gw, refresher: refresher, log: log}
}

// Start asks the workflow service to start id and returns the refreshed
// snapshot. A rejected start comes back as *lab.RemoteError.
func (c *Controller) Start(ctx context.Context, id string) (lab.Snapshot, error) {
	if err := c.gw.StartWorkflow(ctx, id); err != nil {
		c.log.Warn("start workflow failed", "workflow_id", id, "error", err)
		return lab.Snapshot{}, err
	}
	c.log.Info("workflow started", "workflow_id", id)
	return c.refresher.RefreshAll(ctx), nil
}

// Complete asks the workflow service to complete id and returns the
// refreshed snapshot.
func (c *Controller) Complete(ctx context.Context, id string) (lab.Snapshot, error) {
	if err := c.gw.CompleteWorkflow(ctx, id); err != nil {
		c.log.Warn("complete workflow failed", "workflow_id", id, "error", err)
		return lab.Snapshot{}, err
	}
	c.log.Info("workflow completed", "workflow_id", id)
	return c.refresher.RefreshAll(ctx), nil
}

// Create validates form against devices, sends it, and returns the created
// workflow with the refreshed snapshot. Validation failures return before
// the gateway is called.
func (c *Controller) Create(ctx context.Context, form CreateForm, devices []lab.Device) (lab.Workflow, lab.Snapshot, error) {
	spec, err := BuildCreateRequest(form, devices)
	if err != nil {
		return lab.Workflow{}, lab.Snapshot{}, err
	}
	wf, err := c.gw.CreateWorkflow(ctx, spec)
	if err != nil {
		c.log.Warn("create workflow failed", "name", spec.Name, "device_id", spec.DeviceID, "error", err)
		return lab.Workflow{}, lab.Snapshot{}, err
	}
	c.log.Info("workflow created", "workflow_id", wf.ID, "device_id", wf.DeviceID, "steps", len(spec.Steps))
	return wf, c.refresher.RefreshAll(ctx), nil
}
