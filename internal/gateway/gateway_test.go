package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/automata-tech/labdash/internal/lab"
)

func newTestGateway(t *testing.T, h http.Handler) *HTTPGateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Endpoints{Devices: srv.URL, Samples: srv.URL, Workflows: srv.URL}, srv.Client())
}

func TestListDevicesDecodesOptionalFields(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/devices", r.URL.Path)
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = io.WriteString(w, `[
			{"id":"liquid-handler-1","name":"Liquid Handler Alpha","type":"liquid_handler","status":"busy","workflow_id":"wf-1","capabilities":["pipette"]},
			{"id":"incubator-1","name":"Incubator Beta","type":"incubator","status":"available"}
		]`)
	}))

	devices, err := gw.ListDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)
	require.Equal(t, lab.DeviceBusy, devices[0].Status)
	require.NotNil(t, devices[0].WorkflowID)
	require.Equal(t, "wf-1", *devices[0].WorkflowID)
	require.Nil(t, devices[1].WorkflowID)
	require.Empty(t, devices[1].Capabilities)
}

func TestListSamplesEmptyBodyIsEmptySlice(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `null`)
	}))
	samples, err := gw.ListSamples(context.Background())
	require.NoError(t, err)
	require.NotNil(t, samples)
	require.Empty(t, samples)
}

func TestCreateWorkflowSendsSpec(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/workflows", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var spec lab.WorkflowSpec
		require.NoError(t, json.NewDecoder(r.Body).Decode(&spec))
		require.Equal(t, "PCR", spec.Name)
		require.Equal(t, []string{}, spec.SampleBarcodes)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"wf-9","name":"PCR","device_id":"incubator-1","status":"created","created_at":"2025-01-15T10:00:00Z"}`)
	}))

	wf, err := gw.CreateWorkflow(context.Background(), lab.WorkflowSpec{Name: "PCR", DeviceID: "incubator-1"})
	require.NoError(t, err)
	require.Equal(t, "wf-9", wf.ID)
	require.Equal(t, lab.WorkflowCreated, wf.Status)
}

func TestStartWorkflowSurfacesServiceMessage(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/workflows/wf-1/start", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"Workflow already started or completed"}`)
	}))

	err := gw.StartWorkflow(context.Background(), "wf-1")
	var remote *lab.RemoteError
	require.True(t, errors.As(err, &remote))
	require.Equal(t, http.StatusBadRequest, remote.Status)
	require.Equal(t, "Workflow already started or completed", remote.Message)
	require.False(t, remote.Network())
}

func TestCompleteWorkflowFallsBackToStatusText(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/workflows/wf-2/complete", r.URL.Path)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `<html>bad gateway</html>`)
	}))

	err := gw.CompleteWorkflow(context.Background(), "wf-2")
	var remote *lab.RemoteError
	require.True(t, errors.As(err, &remote))
	require.Equal(t, http.StatusBadGateway, remote.Status)
	require.Equal(t, "Bad Gateway", remote.Message)
}

func TestNetworkFailureIsRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	gw := New(Endpoints{Devices: base, Samples: base, Workflows: base}, nil)
	_, err := gw.ListWorkflows(context.Background())
	var remote *lab.RemoteError
	require.True(t, errors.As(err, &remote))
	require.True(t, remote.Network())
	require.NotEmpty(t, remote.Message)
}

func TestGarbledSuccessBodyIsRemoteError(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"not":"a list"`)
	}))
	_, err := gw.ListWorkflows(context.Background())
	var remote *lab.RemoteError
	require.True(t, errors.As(err, &remote))
	require.Equal(t, http.StatusOK, remote.Status)
}
