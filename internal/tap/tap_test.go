// Public domain.

package tap_test

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soniakeys/coord"
	"github.com/soniakeys/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpssrocha/gaiaget/internal/table"
	"github.com/jpssrocha/gaiaget/internal/tap"
)

var quiet = log.New(io.Discard, "", 0)

func region(ra, dec, size float64, g tap.Geometry) tap.Region {
	return tap.Region{
		Center:   coord.Equa{RA: unit.RAFromDeg(ra), Dec: unit.AngleFromDeg(dec)},
		Size:     unit.AngleFromDeg(size),
		Geometry: g,
	}
}

func TestParseGeometry(t *testing.T) {
	g, err := tap.ParseGeometry("Cone")
	require.NoError(t, err)
	assert.Equal(t, tap.Cone, g)
	g, err = tap.ParseGeometry(" square")
	require.NoError(t, err)
	assert.Equal(t, tap.Square, g)
	_, err = tap.ParseGeometry("circle")
	assert.Error(t, err)
	assert.Equal(t, "square", tap.Square.String())
}

func TestADQL(t *testing.T) {
	q, err := region(45, .5, .2, tap.Cone).ADQL(tap.MainTable, 0)
	require.NoError(t, err)
	assert.Equal(t, "SELECT *, DISTANCE(POINT('ICRS', ra, dec), POINT('ICRS', 45, 0.5)) AS dist "+
		"FROM gaiadr3.gaia_source WHERE 1 = CONTAINS(POINT('ICRS', ra, dec), "+
		"CIRCLE('ICRS', 45, 0.5, 0.1)) ORDER BY dist ASC", q)

	q, err = region(45, -.5, .2, tap.Square).ADQL(tap.MainTable, 100)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(q, "SELECT TOP 100 *, "), q)
	assert.Contains(t, q, "BOX('ICRS', 45, -0.5, 0.2, 0.2)")

	_, err = region(45, .5, 0, tap.Cone).ADQL(tap.MainTable, 0)
	assert.Error(t, err)
	_, err = region(45, .5, 1, tap.Geometry(9)).ADQL(tap.MainTable, 0)
	assert.Error(t, err)
}

// archive fakes the login, logout, sync and async endpoints of a TAP
// server.
type archive struct {
	mu       sync.Mutex
	calls    []string
	queries  []url.Values
	syncCode int
	outCode  int
	// phases answered by successive polls of the async job; the last
	// repeats.  COMPLETED if empty.
	phases  []string
	polls   int
	deleted bool
}

const archiveResult = "source_id,ra,dec,bp_rp\n1,45.01,0.5,0.7\n2,44.99,0.51,\n"

func (a *archive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	a.mu.Lock()
	a.calls = append(a.calls, r.URL.Path)
	a.mu.Unlock()
	switch r.URL.Path {
	case "/login":
		if r.PostForm.Get("password") != "secret" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "s1", Path: "/"})
	case "/logout":
		if a.outCode != 0 {
			w.WriteHeader(a.outCode)
		}
	case "/tap/sync":
		a.mu.Lock()
		a.queries = append(a.queries, r.PostForm)
		a.mu.Unlock()
		if a.syncCode != 0 {
			http.Error(w, "query failed", a.syncCode)
			return
		}
		if c, err := r.Cookie("JSESSIONID"); err == nil {
			w.Header().Set("X-Session", c.Value)
		}
		io.WriteString(w, archiveResult)
	case "/tap/async":
		a.mu.Lock()
		a.queries = append(a.queries, r.PostForm)
		a.mu.Unlock()
		w.Header().Set("Location", "/tap/async/j1")
		w.WriteHeader(http.StatusSeeOther)
	case "/tap/async/j1":
		if r.Method == http.MethodDelete {
			a.mu.Lock()
			a.deleted = true
			a.mu.Unlock()
		}
	case "/tap/async/j1/phase":
		a.mu.Lock()
		phase := "COMPLETED"
		if n := len(a.phases); n > 0 {
			phase = a.phases[min(a.polls, n-1)]
		}
		a.polls++
		a.mu.Unlock()
		io.WriteString(w, phase)
	case "/tap/async/j1/error":
		io.WriteString(w, "Cannot parse query")
	case "/tap/async/j1/results/result":
		io.WriteString(w, archiveResult)
	default:
		http.NotFound(w, r)
	}
}

func newArchive(t *testing.T) (*archive, *tap.Client) {
	a := &archive{}
	srv := httptest.NewServer(a)
	t.Cleanup(srv.Close)
	return a, tap.NewClient(srv.URL+"/", 5*time.Second)
}

func TestClientQuery(t *testing.T) {
	a, c := newArchive(t)
	c.RowLimit = 10
	tb, err := c.Query(context.Background(), region(45, .5, .1, tap.Cone))
	require.NoError(t, err)
	assert.Equal(t, 2, tb.Len())
	bp, err := tb.Floats("bp_rp")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(bp[1]))

	require.Len(t, a.queries, 1)
	q := a.queries[0]
	assert.Equal(t, "doQuery", q.Get("REQUEST"))
	assert.Equal(t, "ADQL", q.Get("LANG"))
	assert.Equal(t, "csv", q.Get("FORMAT"))
	assert.Contains(t, q.Get("QUERY"), "TOP 10")
	assert.Contains(t, q.Get("QUERY"), "CIRCLE('ICRS', 45, 0.5, 0.05)")
}

func TestClientQueryStatus(t *testing.T) {
	a, c := newArchive(t)
	a.syncCode = http.StatusInternalServerError
	_, err := c.Query(context.Background(), region(45, .5, .1, tap.Square))
	var se *tap.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "query failed", se.Body)
}

func TestClientQueryAsync(t *testing.T) {
	a, c := newArchive(t)
	c.Async = true
	c.Poll = time.Millisecond
	a.phases = []string{"QUEUED", "EXECUTING", "EXECUTING", "COMPLETED"}
	tb, err := c.Query(context.Background(), region(45, .5, .1, tap.Cone))
	require.NoError(t, err)
	assert.Equal(t, 2, tb.Len())

	require.Len(t, a.queries, 1)
	q := a.queries[0]
	assert.Equal(t, "RUN", q.Get("PHASE"))
	assert.Equal(t, "csv", q.Get("FORMAT"))
	// no limit
	assert.NotContains(t, q.Get("QUERY"), "TOP")
	assert.Equal(t, 4, a.polls)
	assert.Equal(t, []string{"/tap/async", "/tap/async/j1/phase", "/tap/async/j1/phase",
		"/tap/async/j1/phase", "/tap/async/j1/phase", "/tap/async/j1/results/result",
		"/tap/async/j1"}, a.calls)
	assert.True(t, a.deleted)
}

func TestClientQueryAsyncFailed(t *testing.T) {
	a, c := newArchive(t)
	c.Async = true
	c.Poll = time.Millisecond
	a.phases = []string{"EXECUTING", "ERROR"}
	_, err := c.Query(context.Background(), region(45, .5, .1, tap.Cone))
	var je *tap.JobError
	require.ErrorAs(t, err, &je)
	assert.Equal(t, "ERROR", je.Phase)
	assert.Equal(t, "Cannot parse query", je.Message)
	assert.True(t, a.deleted)
}

func TestClientQueryAsyncCancelled(t *testing.T) {
	a, c := newArchive(t)
	c.Async = true
	c.Poll = time.Millisecond
	a.phases = []string{"EXECUTING"}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Query(ctx, region(45, .5, .1, tap.Cone))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := tap.NewClient(srv.URL, time.Second)
	srv.Close()
	_, err := c.Query(context.Background(), region(45, .5, .1, tap.Cone))
	var ue *url.Error
	assert.ErrorAs(t, err, &ue)
}

func TestWithLogin(t *testing.T) {
	a, c := newArchive(t)
	cr := tap.Credentials{User: "u", Password: "secret"}
	err := c.WithLogin(context.Background(), cr, func(ctx context.Context) error {
		_, err := c.Query(ctx, region(45, .5, .1, tap.Cone))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/login", "/tap/sync", "/logout"}, a.calls)
}

func TestWithLoginFailingQuery(t *testing.T) {
	a, c := newArchive(t)
	a.syncCode = http.StatusBadRequest
	cr := tap.Credentials{User: "u", Password: "secret"}
	err := c.WithLogin(context.Background(), cr, func(ctx context.Context) error {
		_, err := c.Query(ctx, region(45, .5, .1, tap.Cone))
		return err
	})
	var se *tap.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "query", se.Op)
	assert.Equal(t, []string{"/login", "/tap/sync", "/logout"}, a.calls)
}

func TestWithLoginPanicStillLogsOut(t *testing.T) {
	a, c := newArchive(t)
	cr := tap.Credentials{User: "u", Password: "secret"}
	assert.Panics(t, func() {
		c.WithLogin(context.Background(), cr, func(context.Context) error { panic("boom") })
	})
	assert.Equal(t, []string{"/login", "/logout"}, a.calls)
}

func TestWithLoginLogoutError(t *testing.T) {
	a, c := newArchive(t)
	a.outCode = http.StatusServiceUnavailable
	fnErr := errors.New("fn failed")
	err := c.WithLogin(context.Background(), tap.Credentials{User: "u", Password: "secret"},
		func(context.Context) error { return fnErr })
	assert.ErrorIs(t, err, fnErr)
	var se *tap.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "logout", se.Op)
}

func TestWithLoginBadCredentials(t *testing.T) {
	a, c := newArchive(t)
	called := false
	err := c.WithLogin(context.Background(), tap.Credentials{User: "u", Password: "wrong"},
		func(context.Context) error { called = true; return nil })
	var se *tap.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.False(t, called)
	assert.Equal(t, []string{"/login"}, a.calls)
}

func TestReadCredentials(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "gaia_credentials.txt")
	require.NoError(t, os.WriteFile(fn, []byte("jdoe\n s3cret \n"), 0o600))
	cr, err := tap.ReadCredentials(fn)
	require.NoError(t, err)
	assert.Equal(t, tap.Credentials{User: "jdoe", Password: "s3cret"}, cr)

	require.NoError(t, os.WriteFile(fn, []byte("jdoe\n"), 0o600))
	_, err = tap.ReadCredentials(fn)
	assert.Error(t, err)

	_, err = tap.ReadCredentials(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestSyntheticCone(t *testing.T) {
	s := tap.Synthetic{N: 200, Seed: 7}
	r := region(10, 60, 1, tap.Cone)
	tb, err := s.Query(context.Background(), r)
	require.NoError(t, err)
	require.Equal(t, 200, tb.Len())
	ra, _ := tb.Floats("ra")
	dec, _ := tb.Floats("dec")
	for i := range ra {
		// haversine separation from the center
		d1, d2 := dec[i]*math.Pi/180, 60*math.Pi/180
		dra := (ra[i] - 10) * math.Pi / 180
		h := math.Pow(math.Sin((d1-d2)/2), 2) + math.Cos(d1)*math.Cos(d2)*math.Pow(math.Sin(dra/2), 2)
		sep := 2 * math.Asin(math.Sqrt(h)) * 180 / math.Pi
		assert.LessOrEqual(t, sep, .5+1e-9, "row %d", i)
	}

	again, err := s.Query(context.Background(), r)
	require.NoError(t, err)
	ra2, _ := again.Floats("ra")
	assert.Equal(t, ra, ra2)
}

func TestSyntheticSquare(t *testing.T) {
	tb, err := tap.Synthetic{N: 100, Seed: 1}.Query(context.Background(), region(359.9, 0, .4, tap.Square))
	require.NoError(t, err)
	ra, _ := tb.Floats("ra")
	dec, _ := tb.Floats("dec")
	for i := range ra {
		assert.True(t, ra[i] >= 359.7-1e-9 || ra[i] <= .1+1e-9, "ra %g", ra[i])
		assert.InDelta(t, 0, dec[i], .2+1e-9)
	}
	for _, name := range []string{"astrometric_params_solved", "bp_rp",
		"phot_bp_rp_excess_factor", "rv_template_teff", "grvs_mag", "radial_velocity",
		"phot_g_mean_mag", "nu_eff_used_in_astrometry", "pseudocolour", "ecl_lat"} {
		assert.True(t, tb.Has(name), name)
	}
}

func TestSyntheticCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tap.Synthetic{N: 10}.Query(ctx, region(0, 0, 1, tap.Cone))
	assert.ErrorIs(t, err, context.Canceled)
}

// countingService records the peak number of concurrent queries.
type countingService struct {
	inFlight, peak atomic.Int32
	fail           tap.Region
}

func (c *countingService) Query(ctx context.Context, r tap.Region) (*table.Table, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	if r == c.fail {
		return nil, errors.New("service down")
	}
	return tap.Synthetic{N: int(math.Round(r.Size.Deg() * 10))}.Query(ctx, r)
}

func TestFetchAll(t *testing.T) {
	svc := &countingService{}
	regions := []tap.Region{
		region(10, 10, 1, tap.Cone),
		region(20, 10, 2, tap.Square),
		region(30, 10, 3, tap.Cone),
	}
	tbs, err := tap.FetchAll(context.Background(), svc, regions, quiet)
	require.NoError(t, err)
	require.Len(t, tbs, 3)
	for i, tb := range tbs {
		assert.Equal(t, (i+1)*10, tb.Len())
	}
	assert.Greater(t, svc.peak.Load(), int32(1))
}

func TestFetchAllError(t *testing.T) {
	bad := region(20, 10, 2, tap.Square)
	svc := &countingService{fail: bad}
	_, err := tap.FetchAll(context.Background(), svc,
		[]tap.Region{region(10, 10, 1, tap.Cone), bad}, quiet)
	assert.EqualError(t, err, "service down")
}

func TestFetchPassesErrorsThrough(t *testing.T) {
	svc := &countingService{fail: region(1, 1, 1, tap.Cone)}
	_, err := tap.Fetch(context.Background(), svc, svc.fail, quiet)
	assert.EqualError(t, err, "service down")
}

func TestParseAngle(t *testing.T) {
	for _, s := range []string{"1.5", "1.5d", "1.5°", "90m", " 90′", "5400s", "5400″"} {
		a, err := tap.ParseAngle(s)
		require.NoError(t, err, s)
		assert.InDelta(t, 1.5, a.Deg(), 1e-12, s)
	}
	for _, s := range []string{"", "d", "1.5x", "abc"} {
		_, err := tap.ParseAngle(s)
		assert.Error(t, err, s)
	}
}
