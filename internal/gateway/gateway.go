// Package gateway is the typed HTTP client for the device, sample and
// workflow services. It maps requests and responses and normalizes every
// failure to *lab.RemoteError; it never retries or caches.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/automata-tech/labdash/internal/lab"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxResponseBytes = 4 << 20

// Gateway is the full set of remote calls the dashboard makes.
type Gateway interface {
	ListDevices(ctx context.Context) ([]lab.Device, error)
	ListSamples(ctx context.Context) ([]lab.Sample, error)
	ListWorkflows(ctx context.Context) ([]lab.Workflow, error)
	CreateWorkflow(ctx context.Context, spec lab.WorkflowSpec) (lab.Workflow, error)
	StartWorkflow(ctx context.Context, id string) error
	CompleteWorkflow(ctx context.Context, id string) error
}

// Endpoints holds the base URL of each service.
type Endpoints struct {
	Devices   string
	Samples   string
	Workflows string
}

// HTTPGateway implements Gateway over JSON/HTTP.
type HTTPGateway struct {
	endpoints Endpoints
	client    *http.Client
}

var _ Gateway = (*HTTPGateway)(nil)

// New creates an HTTPGateway. A nil client means http.DefaultClient.
func New(endpoints Endpoints, client *http.Client) *HTTPGateway {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPGateway{endpoints: endpoints, client: client}
}

func (g *HTTPGateway) ListDevices(ctx context.Context) ([]lab.Device, error) {
	var out []lab.Device
	if err := g.do(ctx, http.MethodGet, g.endpoints.Devices, nil, &out, "devices"); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

func (g *HTTPGateway) ListSamples(ctx context.Context) ([]lab.Sample, error) {
	var out []lab.Sample
	if err := g.do(ctx, http.MethodGet, g.endpoints.Samples, nil, &out, "samples"); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

func (g *HTTPGateway) ListWorkflows(ctx context.Context) ([]lab.Workflow, error) {
	var out []lab.Workflow
	if err := g.do(ctx, http.MethodGet, g.endpoints.Workflows, nil, &out, "workflows"); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

func (g *HTTPGateway) CreateWorkflow(ctx context.Context, spec lab.WorkflowSpec) (lab.Workflow, error) {
	if spec.SampleBarcodes == nil {
		spec.SampleBarcodes = []string{}
	}
	if spec.Steps == nil {
		spec.Steps = []string{}
	}
	var out lab.Workflow
	if err := g.do(ctx, http.MethodPost, g.endpoints.Workflows, spec, &out, "workflows"); err != nil {
		return lab.Workflow{}, err
	}
	return out, nil
}

func (g *HTTPGateway) StartWorkflow(ctx context.Context, id string) error {
	return g.do(ctx, http.MethodPost, g.endpoints.Workflows, struct{}{}, nil, "workflows", id, "start")
}

func (g *HTTPGateway) CompleteWorkflow(ctx context.Context, id string) error {
	return g.do(ctx, http.MethodPost, g.endpoints.Workflows, struct{}{}, nil, "workflows", id, "complete")
}

// errorBody is the error shape every service returns.
type errorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func (g *HTTPGateway) do(ctx context.Context, method, base string, in, out any, path ...string) error {
	target, err := url.JoinPath(base, path...)
	if err != nil {
		return &lab.RemoteError{Message: fmt.Sprintf("invalid service url %q: %v", base, err)}
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &lab.RemoteError{Message: fmt.Sprintf("encode request: %v", err)}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &lab.RemoteError{Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return &lab.RemoteError{Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &lab.RemoteError{Status: resp.StatusCode, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &lab.RemoteError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &lab.RemoteError{Status: resp.StatusCode, Message: fmt.Sprintf("decode %s response: %v", strings.Join(path, "/"), err)}
	}
	return nil
}

func errorMessage(status int, data []byte) string {
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err == nil && strings.TrimSpace(eb.Error) != "" {
		return eb.Error
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("unexpected status %d", status)
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
