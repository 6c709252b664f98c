package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/automata-tech/labdash/internal/lab"
)

func TestGating(t *testing.T) {
	cases := []struct {
		status   lab.WorkflowStatus
		start    bool
		complete bool
		next     Action
	}{
		{lab.WorkflowCreated, true, false, ActionStart},
		{lab.WorkflowRunning, false, true, ActionComplete},
		{lab.WorkflowCompleted, false, false, ActionNone},
		{"paused", false, false, ActionNone},
		{"", false, false, ActionNone},
	}
	for _, tc := range cases {
		w := lab.Workflow{Status: tc.status}
		require.Equal(t, tc.start, CanStart(w), "CanStart(%q)", tc.status)
		require.Equal(t, tc.complete, CanComplete(w), "CanComplete(%q)", tc.status)
		require.Equal(t, tc.next, NextAction(w), "NextAction(%q)", tc.status)
	}
}

var available = []lab.Device{
	{ID: "liquid-handler-1", Status: lab.DeviceAvailable},
	{ID: "incubator-1", Status: lab.DeviceBusy},
}

func TestBuildCreateRequestParsesSteps(t *testing.T) {
	spec, err := BuildCreateRequest(CreateForm{
		Name:      "PCR Setup Protocol",
		DeviceID:  "liquid-handler-1",
		StepsText: "Aspirate 10uL\n\nDispense to A1\n",
	}, available)
	require.NoError(t, err)
	require.Equal(t, []string{"Aspirate 10uL", "Dispense to A1"}, spec.Steps)
	require.Equal(t, []string{}, spec.SampleBarcodes)
}

func TestBuildCreateRequestDedupesSamples(t *testing.T) {
	spec, err := BuildCreateRequest(CreateForm{
		Name:           "  Plate prep ",
		DeviceID:       "liquid-handler-1",
		SampleBarcodes: []string{"SAMPLE002", "SAMPLE001", "SAMPLE002", ""},
	}, available)
	require.NoError(t, err)
	require.Equal(t, "Plate prep", spec.Name)
	require.Equal(t, []string{"SAMPLE002", "SAMPLE001"}, spec.SampleBarcodes)
	require.Equal(t, []string{}, spec.Steps)
}

func TestParseSteps(t *testing.T) {
	require.Equal(t, []string{}, ParseSteps(""))
	require.Equal(t, []string{}, ParseSteps(" \n\t\n"))
	require.Equal(t, []string{"Incubate 5 minutes", "  Read plate"}, ParseSteps("Incubate 5 minutes\r\n   \r\n  Read plate"))
}

func TestBuildCreateRequestValidation(t *testing.T) {
	cases := []struct {
		name  string
		form  CreateForm
		field string
	}{
		{"empty name", CreateForm{DeviceID: "liquid-handler-1"}, "name"},
		{"blank name", CreateForm{Name: "   ", DeviceID: "liquid-handler-1"}, "name"},
		{"no device", CreateForm{Name: "PCR"}, "device"},
		{"busy device", CreateForm{Name: "PCR", DeviceID: "incubator-1"}, "device"},
		{"unknown device", CreateForm{Name: "PCR", DeviceID: "centrifuge-9"}, "device"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildCreateRequest(tc.form, available)
			var verr *lab.ValidationError
			require.True(t, errors.As(err, &verr))
			require.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestCreateValidationNeverReachesGateway(t *testing.T) {
	gw := &fakeCommander{}
	ref := &countingRefresher{}
	c := NewController(gw, ref, nil)

	_, _, err := c.Create(context.Background(), CreateForm{Name: "", DeviceID: "liquid-handler-1"}, available)
	var verr *lab.ValidationError
	require.True(t, errors.As(err, &verr))

	_, _, err = c.Create(context.Background(), CreateForm{Name: "PCR"}, available)
	require.True(t, errors.As(err, &verr))

	require.Zero(t, gw.creates)
	require.Zero(t, ref.calls)
}

func TestCommandsRefreshOnceOnSuccess(t *testing.T) {
	gw := &fakeCommander{}
	ref := &countingRefresher{}
	c := NewController(gw, ref, nil)
	ctx := context.Background()

	_, err := c.Start(ctx, "wf-1")
	require.NoError(t, err)
	require.Equal(t, 1, ref.calls)

	_, err = c.Complete(ctx, "wf-1")
	require.NoError(t, err)
	require.Equal(t, 2, ref.calls)

	wf, _, err := c.Create(ctx, CreateForm{Name: "PCR", DeviceID: "liquid-handler-1"}, available)
	require.NoError(t, err)
	require.Equal(t, "PCR", wf.Name)
	require.Equal(t, 3, ref.calls)
	require.Equal(t, []string{"wf-1"}, gw.started)
	require.Equal(t, []string{"wf-1"}, gw.completed)
}

func TestRemoteErrorIsSurfacedWithoutRefresh(t *testing.T) {
	gw := &fakeCommander{err: &lab.RemoteError{Status: 400, Message: "Workflow already started or completed"}}
	ref := &countingRefresher{}
	c := NewController(gw, ref, nil)

	_, err := c.Start(context.Background(), "wf-1")
	var remote *lab.RemoteError
	require.True(t, errors.As(err, &remote))
	require.Equal(t, "Workflow already started or completed", remote.Message)

	_, err = c.Complete(context.Background(), "wf-1")
	require.Error(t, err)
	_, _, err = c.Create(context.Background(), CreateForm{Name: "PCR", DeviceID: "liquid-handler-1"}, available)
	require.Error(t, err)

	require.Zero(t, ref.calls)
}

type fakeCommander struct {
	err       error
	creates   int
	started   []string
	completed []string
}

func (f *fakeCommander) CreateWorkflow(ctx context.Context, spec lab.WorkflowSpec) (lab.Workflow, error) {
	f.creates++
	if f.err != nil {
		return lab.Workflow{}, f.err
	}
	return lab.Workflow{ID: "wf-new", Name: spec.Name, DeviceID: spec.DeviceID, Status: lab.WorkflowCreated}, nil
}

func (f *fakeCommander) StartWorkflow(ctx context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.started = append(f.started, id)
	return nil
}

func (f *fakeCommander) CompleteWorkflow(ctx context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.completed = append(f.completed, id)
	return nil
}

type countingRefresher struct{ calls int }

func (r *countingRefresher) RefreshAll(ctx context.Context) lab.Snapshot {
	r.calls++
	return lab.Snapshot{Seq: uint64(r.calls)}
}
