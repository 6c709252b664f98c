package labsim

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/automata-tech/labdash/internal/lab"
)

// DeviceService serves GET /devices and GET /devices/:id.
func (l *Lab) DeviceService() *echo.Echo {
	e := newService("device-service")
	e.GET("/devices", func(c echo.Context) error {
		l.mu.Lock()
		out := make([]lab.Device, len(l.devices))
		copy(out, l.devices)
		l.mu.Unlock()
		return c.JSON(http.StatusOK, out)
	})
	e.GET("/devices/:id", func(c echo.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		d := l.device(c.Param("id"))
		if d == nil {
			return fail(c, http.StatusNotFound, msgDeviceNotFound)
		}
		return c.JSON(http.StatusOK, *d)
	})
	return e
}

// SampleService serves the sample listing, lookup and registration routes.
func (l *Lab) SampleService() *echo.Echo {
	e := newService("sample-service")
	e.GET("/samples", func(c echo.Context) error {
		l.mu.Lock()
		out := make([]lab.Sample, len(l.samples))
		copy(out, l.samples)
		l.mu.Unlock()
		return c.JSON(http.StatusOK, out)
	})
	e.GET("/samples/:barcode", func(c echo.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		s := l.sample(c.Param("barcode"))
		if s == nil {
			return fail(c, http.StatusNotFound, msgSampleNotFound)
		}
		return c.JSON(http.StatusOK, *s)
	})
	e.POST("/samples", func(c echo.Context) error {
		var req lab.Sample
		if err := c.Bind(&req); err != nil {
			return fail(c, http.StatusBadRequest, "invalid request body")
		}
		req.Barcode = strings.TrimSpace(req.Barcode)
		if req.Barcode == "" {
			return fail(c, http.StatusBadRequest, "barcode is required")
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.sample(req.Barcode) != nil {
			return fail(c, http.StatusConflict, "Sample already exists")
		}
		l.samples = append(l.samples, req)
		return c.JSON(http.StatusCreated, req)
	})
	return e
}

// WorkflowService serves workflow listing, creation and the start/complete
// transitions. Starting books the device; completing releases it.
func (l *Lab) WorkflowService() *echo.Echo {
	e := newService("workflow-service")
	e.GET("/workflows", func(c echo.Context) error {
		return c.JSON(http.StatusOK, l.Workflows())
	})
	e.GET("/workflows/:id", func(c echo.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		w := l.workflow(c.Param("id"))
		if w == nil {
			return fail(c, http.StatusNotFound, msgWorkflowNotFound)
		}
		return c.JSON(http.StatusOK, *w)
	})
	e.POST("/workflows", l.createWorkflow)
	e.POST("/workflows/:id/start", l.startWorkflow)
	e.POST("/workflows/:id/complete", l.completeWorkflow)
	return e
}

func (l *Lab) createWorkflow(c echo.Context) error {
	var req lab.WorkflowSpec
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" || req.DeviceID == "" {
		return fail(c, http.StatusBadRequest, "name and device_id are required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.device(req.DeviceID) == nil {
		return fail(c, http.StatusBadRequest, "unknown device: "+req.DeviceID)
	}
	for _, b := range req.SampleBarcodes {
		if l.sample(b) == nil {
			return fail(c, http.StatusBadRequest, "unknown sample barcode: "+b)
		}
	}

	w := lab.Workflow{
		ID:             l.newID(),
		Name:           req.Name,
		DeviceID:       req.DeviceID,
		SampleBarcodes: append([]string{}, req.SampleBarcodes...),
		Steps:          append([]string{}, req.Steps...),
		Status:         lab.WorkflowCreated,
		CreatedAt:      l.now().UTC(),
	}
	l.workflows = append(l.workflows, w)
	return c.JSON(http.StatusCreated, w)
}

func (l *Lab) startWorkflow(c echo.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.workflow(c.Param("id"))
	if w == nil {
		return fail(c, http.StatusNotFound, msgWorkflowNotFound)
	}
	if w.Status != lab.WorkflowCreated {
		return fail(c, http.StatusBadRequest, "Workflow already started or completed")
	}
	d := l.device(w.DeviceID)
	if d == nil {
		return fail(c, http.StatusNotFound, msgDeviceNotFound)
	}
	if d.Status != lab.DeviceAvailable {
		return fail(c, http.StatusConflict, "Device is not available")
	}

	id := w.ID
	d.Status = lab.DeviceBusy
	d.WorkflowID = &id

	started := l.stamp(w.CreatedAt)
	w.Status = lab.WorkflowRunning
	w.StartedAt = &started
	return c.JSON(http.StatusOK, *w)
}

func (l *Lab) completeWorkflow(c echo.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.workflow(c.Param("id"))
	if w == nil {
		return fail(c, http.StatusNotFound, msgWorkflowNotFound)
	}
	if w.Status != lab.WorkflowRunning {
		return fail(c, http.StatusBadRequest, "Workflow is not running")
	}
	if d := l.device(w.DeviceID); d != nil {
		if d.WorkflowID != nil && *d.WorkflowID != w.ID {
			return fail(c, http.StatusForbidden, "Device is booked by another workflow")
		}
		d.Status = lab.DeviceAvailable
		d.WorkflowID = nil
	}

	completed := l.stamp(*w.StartedAt)
	w.Status = lab.WorkflowCompleted
	w.CompletedAt = &completed
	return c.JSON(http.StatusOK, *w)
}
