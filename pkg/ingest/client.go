package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// HTTPClient is the Client implementation used against a real
// ingestion server.
type HTTPClient struct {
	client   *http.Client
	endpoint string
}

var _ Client = &HTTPClient{}

func NewHTTPClient(c *http.Client, endpoint string) *HTTPClient {
	return &HTTPClient{
		client:   c,
		endpoint: strings.TrimRight(endpoint, "/"),
	}
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequest("GET", c.endpoint+"/", nil)
	if err != nil {
		return errors.Wrap(err, "constructing ping request")
	}
	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "executing ping request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("ingestion server not ready: %s", resp.Status)
	}
	return nil
}

func (c *HTTPClient) SubmitTask(ctx context.Context, taskReq TaskRequest) (TaskHandle, error) {
	var handle TaskHandle

	body, err := json.Marshal(taskReq)
	if err != nil {
		return handle, errors.Wrap(err, "encoding task request")
	}
	req, err := http.NewRequest("POST", c.endpoint+"/task", bytes.NewReader(body))
	if err != nil {
		return handle, errors.Wrap(err, "constructing task request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.executeRequest(req.WithContext(ctx))
	if err != nil {
		return handle, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&handle); err != nil {
		return handle, errors.Wrap(err, "decoding task handle")
	}
	if handle.TaskID == "" {
		return handle, errors.New("ingestion server accepted task but returned no task_id")
	}
	return handle, nil
}

func (c *HTTPClient) TaskStatus(ctx context.Context, handle TaskHandle) (TaskStatus, error) {
	var status TaskStatus

	req, err := http.NewRequest("GET", c.statusURL(handle), nil)
	if err != nil {
		return status, errors.Wrap(err, "constructing status request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.executeRequest(req.WithContext(ctx))
	if err != nil {
		return status, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, errors.Wrap(err, "decoding task status")
	}
	return status, nil
}

// statusURL prefers the status_check URL the server handed back on
// submission, falling back to the conventional path.
func (c *HTTPClient) statusURL(handle TaskHandle) string {
	if handle.StatusCheck != "" {
		if u, err := url.Parse(handle.StatusCheck); err == nil && u.IsAbs() {
			return handle.StatusCheck
		}
	}
	return c.endpoint + path.Join("/task", handle.TaskID)
}

func (c *HTTPClient) executeRequest(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "executing HTTP request")
	}
	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		return resp, nil
	case resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError:
		// The server read the request and said no; there is no point
		// sending it again.
		body, _ := ioutil.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &RejectionError{StatusCode: resp.StatusCode, Reason: strings.TrimSpace(string(body))}
	default:
		resp.Body.Close()
		return nil, errors.New("ingestion server error: " + resp.Status)
	}
}
