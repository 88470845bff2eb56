// Public domain.

package tap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jpssrocha/gaiaget/internal/table"
)

// DefaultPoll is the phase polling interval of asynchronous queries when
// Client.Poll is not set.
const DefaultPoll = 2 * time.Second

// JobError is returned when an asynchronous job ends in a phase other than
// COMPLETED.
type JobError struct {
	Job     string // job URL
	Phase   string // ERROR or ABORTED
	Message string // server error summary, if any
}

func (e *JobError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("job %s %s", e.Job, e.Phase)
	}
	return fmt.Sprintf("job %s %s: %s", e.Job, e.Phase, e.Message)
}

// queryAsync runs ADQL q as an asynchronous job: the job is created in the
// RUN phase, its phase polled until it ends, and its result read.  The job
// is deleted afterwards.
func (c *Client) queryAsync(ctx context.Context, q string) (*table.Table, error) {
	job, err := c.submit(ctx, q)
	if err != nil {
		return nil, err
	}
	defer c.deleteJob(job)
	if err := c.wait(ctx, job); err != nil {
		return nil, err
	}
	resp, err := c.get(ctx, job+"/results/result")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus("job result", resp); err != nil {
		return nil, err
	}
	t, err := table.ReadCSV(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode query result: %w", err)
	}
	return t, nil
}

// submit creates a job and returns its URL, taken from the redirect the
// server answers with.
func (c *Client) submit(ctx context.Context, q string) (string, error) {
	form := queryForm(q)
	form.Set("PHASE", "RUN")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+"/tap/async",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.noRedirect().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther && resp.StatusCode != http.StatusFound {
		if err := checkStatus("submit job", resp); err != nil {
			return "", err
		}
		return "", fmt.Errorf("submit job: unexpected status %s", resp.Status)
	}
	loc, err := resp.Location()
	if err != nil {
		return "", fmt.Errorf("submit job: %w", err)
	}
	return strings.TrimRight(loc.String(), "/"), nil
}

// wait polls the job phase until the job ends.
func (c *Client) wait(ctx context.Context, job string) error {
	poll := c.Poll
	if poll <= 0 {
		poll = DefaultPoll
	}
	tick := time.NewTicker(poll)
	defer tick.Stop()
	for {
		phase, err := c.phase(ctx, job)
		if err != nil {
			return err
		}
		switch phase {
		case "COMPLETED":
			return nil
		case "ERROR", "ABORTED":
			return &JobError{Job: job, Phase: phase, Message: c.jobMessage(ctx, job)}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

func (c *Client) phase(ctx context.Context, job string) (string, error) {
	resp, err := c.get(ctx, job+"/phase")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkStatus("job phase", resp); err != nil {
		return "", err
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", err
	}
	return strings.ToUpper(strings.TrimSpace(string(b))), nil
}

// jobMessage returns the error summary of a failed job, or "" if the server
// has none.
func (c *Client) jobMessage(ctx context.Context, job string) string {
	resp, err := c.get(ctx, job+"/error")
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ""
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return strings.TrimSpace(string(b))
}

// deleteJob removes job from the server.  Jobs left behind expire on their
// own so failures are ignored.
func (c *Client) deleteJob(job string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, job, nil)
	if err != nil {
		return
	}
	resp, err := c.noRedirect().Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.HTTP.Do(req)
}

// noRedirect returns a copy of c.HTTP that hands redirects back to the
// caller.  Cookies and transport are shared.
func (c *Client) noRedirect() *http.Client {
	hc := *c.HTTP
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &hc
}

func queryForm(q string) url.Values {
	return url.Values{
		"REQUEST": {"doQuery"},
		"LANG":    {"ADQL"},
		"FORMAT":  {"csv"},
		"QUERY":   {q},
	}
}
