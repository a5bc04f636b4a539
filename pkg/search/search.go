package search

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// Client is the (deliberately narrow) view of the search backend the
// conductor needs: cluster-level health, and whether a named index
// exists. The alias itself is repointed via the ingestion API, never
// directly by us.
type Client interface {
	Healthy(ctx context.Context) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

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

// Healthy asks the cluster health endpoint; any 200 counts as
// healthy.
func (c *HTTPClient) Healthy(ctx context.Context) error {
	req, err := http.NewRequest("GET", c.endpoint+"/_cluster/health", nil)
	if err != nil {
		return errors.Wrap(err, "constructing health request")
	}
	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "executing health request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("search backend unhealthy: %s", resp.Status)
	}
	return nil
}

// IndexExists checks for the presence of a concrete index by name.
func (c *HTTPClient) IndexExists(ctx context.Context, name string) (bool, error) {
	req, err := http.NewRequest("GET", c.endpoint+"/_cat/indices/"+name, nil)
	if err != nil {
		return false, errors.Wrap(err, "constructing index request")
	}
	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		return false, errors.Wrap(err, "executing index request")
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, errors.Errorf("checking index %s: %s", name, resp.Status)
	}
}
