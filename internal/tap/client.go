// Public domain.

// Package tap retrieves Gaia catalog tables for sky regions.
//
// Client queries the Gaia archive TAP service.  Synthetic generates fields
// locally.  Both implement Service and are safe for concurrent queries.
package tap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/jpssrocha/gaiaget/internal/table"
)

// DefaultURL is the Gaia archive TAP server.
const DefaultURL = "https://gea.esac.esa.int/tap-server"

// MainTable is the Gaia DR3 source table.
const MainTable = "gaiadr3.gaia_source"

// Service returns the catalog sources in a region.
type Service interface {
	Query(ctx context.Context, r Region) (*table.Table, error)
}

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Op     string
	Status string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %s", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: unexpected status %s: %s", e.Op, e.Status, e.Body)
}

// Client queries a TAP server.  Session cookies from Login are kept in the
// client's cookie jar and sent with every query.
type Client struct {
	URL      string // server root, DefaultURL by default
	Table    string // MainTable by default
	RowLimit int    // no limit if <= 0
	HTTP     *http.Client

	// Async runs queries as asynchronous jobs, which have no server row cap
	// on results.  Otherwise queries use the synchronous endpoint.
	Async bool
	Poll  time.Duration // job phase polling interval, DefaultPoll if <= 0
}

// NewClient returns a Client for server url with a cookie jar and the given
// request timeout.
func NewClient(serverURL string, timeout time.Duration) *Client {
	jar, _ := cookiejar.New(nil) // error is always nil
	if serverURL == "" {
		serverURL = DefaultURL
	}
	return &Client{
		URL:   strings.TrimRight(serverURL, "/"),
		Table: MainTable,
		HTTP:  &http.Client{Timeout: timeout, Jar: jar},
	}
}

// Query runs an ADQL query for r and parses the CSV result.  The query is
// synchronous unless c.Async is set.
//
// Transport errors are returned as they come from the HTTP client.
func (c *Client) Query(ctx context.Context, r Region) (*table.Table, error) {
	q, err := r.ADQL(c.Table, c.RowLimit)
	if err != nil {
		return nil, err
	}
	if c.Async {
		return c.queryAsync(ctx, q)
	}
	resp, err := c.post(ctx, "/tap/sync", queryForm(q))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus("query", resp); err != nil {
		return nil, err
	}
	t, err := table.ReadCSV(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode query result: %w", err)
	}
	return t, nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.HTTP.Do(req)
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &StatusError{
		Op:     op,
		Status: resp.Status,
		Code:   resp.StatusCode,
		Body:   strings.TrimSpace(string(b)),
	}
}
