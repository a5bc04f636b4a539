package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single probe call. Retrying is the gate's
// job, so a probe that hangs must give up quickly.
const DefaultTimeout = 5 * time.Second

// ServiceEndpoint names a health endpoint and the status code that
// signals readiness. Endpoints are configured once at startup and not
// mutated afterwards.
type ServiceEndpoint struct {
	Name           string `json:"name" yaml:"name"`
	URL            string `json:"url" yaml:"url"`
	ExpectedStatus int    `json:"expected_status" yaml:"expected_status"`
}

// Result records the outcome of a single probe attempt. A nil
// StatusCode means no response was received at all.
type Result struct {
	StatusCode *int
	Error      string
	Timestamp  time.Time
}

// Ready reports whether the attempt found the endpoint serving its
// expected status.
func (r Result) Ready() bool {
	return r.Error == "" && r.StatusCode != nil
}

// Prober issues a single readiness check against an endpoint. It must
// not retry internally, and it must not fail with an error: refusals,
// timeouts and status mismatches are all classified into the Result.
type Prober interface {
	Probe(ctx context.Context, endpoint ServiceEndpoint) Result
}

// HTTP probes an endpoint with one GET per call.
type HTTP struct {
	Client  *http.Client
	Timeout time.Duration
}

func NewHTTP() *HTTP {
	return &HTTP{Client: http.DefaultClient, Timeout: DefaultTimeout}
}

func (p *HTTP) Probe(ctx context.Context, endpoint ServiceEndpoint) Result {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := Result{Timestamp: time.Now().UTC()}
	req, err := http.NewRequest("GET", endpoint.URL, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	resp, err := p.Client.Do(req.WithContext(ctx))
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()

	code := resp.StatusCode
	result.StatusCode = &code
	expected := endpoint.ExpectedStatus
	if expected == 0 {
		expected = http.StatusOK
	}
	if code != expected {
		result.Error = fmt.Sprintf("%s: expected status %d, got %d", endpoint.Name, expected, code)
	}
	return result
}
