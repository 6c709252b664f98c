package poller

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/automata-tech/labdash/internal/lab"
	"github.com/automata-tech/labdash/internal/overlay"
)

var at = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func okResults() Results {
	return Results{
		Devices:   Result[[]lab.Device]{Value: []lab.Device{{ID: "liquid-handler-1", Status: lab.DeviceAvailable}}},
		Samples:   Result[[]lab.Sample]{Value: []lab.Sample{{Barcode: "SAMPLE001", Name: "Blood Sample A"}}},
		Workflows: Result[[]lab.Workflow]{Value: []lab.Workflow{{ID: "wf-1", Status: lab.WorkflowCreated}}},
	}
}

func TestMergeSamplesFailureKeepsPreviousSamples(t *testing.T) {
	prev := Merge(lab.Snapshot{}, okResults(), nil, at)
	require.NoError(t, prev.Err)

	res := Results{
		Devices:   Result[[]lab.Device]{Value: []lab.Device{{ID: "incubator-1", Status: lab.DeviceBusy}}},
		Samples:   Result[[]lab.Sample]{Err: &lab.RemoteError{Status: 503, Message: "Service Unavailable"}},
		Workflows: Result[[]lab.Workflow]{Value: []lab.Workflow{{ID: "wf-2", Status: lab.WorkflowRunning}}},
	}
	next := Merge(prev, res, nil, at.Add(time.Second))

	require.Equal(t, prev.Samples, next.Samples)
	require.Equal(t, "incubator-1", next.Devices[0].ID)
	require.Equal(t, "wf-2", next.Workflows[0].ID)
	require.Error(t, next.Err)
	require.Equal(t, "Failed to fetch samples", next.ErrorText())
	require.Contains(t, next.Err.Error(), "failed to fetch samples: Service Unavailable")

	var remote *lab.RemoteError
	require.True(t, errors.As(next.Err, &remote))
}

func TestMergeFirstPollFailureDefaultsToEmpty(t *testing.T) {
	res := okResults()
	res.Samples = Result[[]lab.Sample]{Err: errors.New("connection refused")}
	next := Merge(lab.Snapshot{}, res, nil, at)

	require.NotNil(t, next.Samples)
	require.Empty(t, next.Samples)
	require.Len(t, next.Devices, 1)
	require.False(t, next.Loading)
}

func TestMergeAllFailuresAreReported(t *testing.T) {
	prev := Merge(lab.Snapshot{}, okResults(), nil, at)
	boom := errors.New("boom")
	next := Merge(prev, Results{
		Devices:   Result[[]lab.Device]{Err: boom},
		Samples:   Result[[]lab.Sample]{Err: boom},
		Workflows: Result[[]lab.Workflow]{Err: boom},
	}, nil, at)

	require.Equal(t, prev.Devices, next.Devices)
	require.Equal(t, prev.LiveDevices, next.LiveDevices)
	require.Equal(t, prev.Workflows, next.Workflows)
	for _, want := range []string{"devices", "samples", "workflows"} {
		require.Contains(t, next.ErrorText(), "Failed to fetch "+want)
	}
}

func TestMergeKeepsLastFailureAfterRecovery(t *testing.T) {
	prev := Merge(lab.Snapshot{}, okResults(), nil, at)
	require.NoError(t, prev.Err)

	res := okResults()
	res.Samples = Result[[]lab.Sample]{Err: errors.New("down")}
	failed := Merge(prev, res, nil, at.Add(time.Second))
	require.Error(t, failed.Err)

	recovered := Merge(failed, okResults(), nil, at.Add(2*time.Second))
	require.Error(t, recovered.Err)
	require.Equal(t, "Failed to fetch samples", recovered.ErrorText())
	require.Equal(t, at.Add(2*time.Second), recovered.RefreshedAt)

	res = okResults()
	res.Workflows = Result[[]lab.Workflow]{Err: errors.New("down")}
	replaced := Merge(recovered, res, nil, at.Add(3*time.Second))
	require.Equal(t, "Failed to fetch workflows", replaced.ErrorText(), "a new failure replaces the old one")
}

func TestResultsFailed(t *testing.T) {
	require.False(t, okResults().Failed())
	res := okResults()
	res.Devices.Err = errors.New("down")
	require.True(t, res.Failed())
}

func TestMergeAppliesOverlayToFreshDevicesOnly(t *testing.T) {
	ov := overlay.New()
	first := Merge(lab.Snapshot{}, okResults(), ov, at)
	require.Equal(t, lab.DeviceAvailable, first.Devices[0].Status)

	res := okResults()
	res.Devices.Value = []lab.Device{{ID: "liquid-handler-1", Status: lab.DeviceBusy}}
	second := Merge(first, res, ov, at)

	require.Equal(t, lab.DeviceAvailable, second.Devices[0].Status, "displayed status stays frozen")
	require.Equal(t, lab.DeviceBusy, second.LiveDevices[0].Status, "live status follows the service")
}
