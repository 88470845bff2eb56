// Public domain.

package zpt_test

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/soniakeys/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpssrocha/gaiaget/internal/zpt"
)

// Test coefficient files, stored under names distinct from the published
// tables.
var testFiles = map[string]string{
	zpt.Z5File: filepath.Join("testdata", "z5_test.txt"),
	zpt.Z6File: filepath.Join("testdata", "z6_test.txt"),
}

func readTestTables(t *testing.T) *zpt.Tables {
	t.Helper()
	f5, err := os.Open(testFiles[zpt.Z5File])
	require.NoError(t, err)
	defer f5.Close()
	f6, err := os.Open(testFiles[zpt.Z6File])
	require.NoError(t, err)
	defer f6.Close()
	tb, err := zpt.ReadTables(f5, f6)
	require.NoError(t, err)
	return tb
}

// testDir returns a directory holding the test coefficients under the
// published file names.
func testDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for pub, fn := range testFiles {
		b, err := os.ReadFile(fn)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, pub), b, 0o644))
	}
	return dir
}

// testServer serves the test coefficients under the published file names.
func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for pub, fn := range testFiles {
		fn := fn
		mux.HandleFunc("/"+pub, func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, fn)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestReadCoefficients(t *testing.T) {
	tb := readTestTables(t)
	assert.Equal(t, []int{0, 1, 0}, tb.Five.J)
	assert.Equal(t, []int{0, 0, 1}, tb.Five.K)
	assert.Equal(t, []float64{6, 21}, tb.Five.G)
	assert.Equal(t, []float64{-20, 10, 5}, tb.Five.Q[0])
	assert.Equal(t, []float64{6, 11, 21}, tb.Six.G)
}

func TestReadCoefficientsErrors(t *testing.T) {
	for name, in := range map[string]string{
		"one knot":       "j,0\nk,0\n6,1\n",
		"field count":    "j,0,1\nk,0,0\n6,1\n21,1,2\n",
		"decreasing":     "j,0\nk,0\n21,1\n6,1\n",
		"bad index":      "j,7\nk,0\n6,1\n21,1\n",
		"index mismatch": "j,0,1\nk,0\n6,1,1\n21,1,1\n",
		"bad number":     "j,0\nk,0\n6,x\n21,1\n",
	} {
		_, err := zpt.ReadCoefficients(strings.NewReader(in))
		assert.Error(t, err, name)
	}
}

func TestZpt(t *testing.T) {
	tb := readTestTables(t)
	for _, c := range []struct {
		name string
		s    zpt.Source
		want float64
	}{
		// q = (-30, 10, 5) at G 13.5; colour basis 1 = .1
		{"5p equator", zpt.Source{GMag: 13.5, NuEff: 1.58, Solved: zpt.Solved5p}, -.029},
		{"5p beta 30", zpt.Source{GMag: 13.5, NuEff: 1.58,
			EclLat: unit.AngleFromDeg(30), Solved: zpt.Solved5p}, -.0265},
		// colour basis 1 clamps at .24
		{"5p red", zpt.Source{GMag: 13.5, NuEff: 1.8, Solved: zpt.Solved5p}, -.0276},
		{"6p first interval", zpt.Source{GMag: 8.5, Pseudocolour: 1.5, Solved: zpt.Solved6p}, -.015},
		{"6p on knot", zpt.Source{GMag: 11, Pseudocolour: 1.5, Solved: zpt.Solved6p}, -.020},
		{"6p last interval", zpt.Source{GMag: 16, Pseudocolour: 1.5, Solved: zpt.Solved6p}, -.020},
	} {
		z, err := tb.Zpt(c.s)
		require.NoError(t, err, c.name)
		assert.InDelta(t, c.want, z, 1e-12, c.name)
	}
}

func TestZptOutOfDomain(t *testing.T) {
	tb := readTestTables(t)
	for name, s := range map[string]zpt.Source{
		"bright":       {GMag: 5, NuEff: 1.5, Solved: zpt.Solved5p},
		"faint":        {GMag: 21.5, NuEff: 1.5, Solved: zpt.Solved5p},
		"no G":         {GMag: math.NaN(), NuEff: 1.5, Solved: zpt.Solved5p},
		"nu_eff":       {GMag: 15, NuEff: 2.1, Solved: zpt.Solved5p},
		"pseudocolour": {GMag: 15, Pseudocolour: 1.1, Solved: zpt.Solved6p},
		"G 6":          {GMag: 6, NuEff: 1.5, Solved: zpt.Solved5p},
		"G 21":         {GMag: 21, NuEff: 1.5, Solved: zpt.Solved5p},
		"nu_eff 1.1":   {GMag: 15, NuEff: 1.1, Solved: zpt.Solved5p},
		"nu_eff 1.9":   {GMag: 15, NuEff: 1.9, Solved: zpt.Solved5p},
		"pc 1.24":      {GMag: 15, Pseudocolour: 1.24, Solved: zpt.Solved6p},
		"pc 1.72":      {GMag: 15, Pseudocolour: 1.72, Solved: zpt.Solved6p},
		"solution":     {GMag: 15, NuEff: 1.5, Solved: 7},
		"latitude":     {GMag: 15, NuEff: 1.5, EclLat: unit.Angle(math.NaN()), Solved: zpt.Solved5p},
	} {
		z, err := tb.Zpt(s)
		assert.ErrorIs(t, err, zpt.ErrOutOfDomain, name)
		assert.True(t, math.IsNaN(z), name)
	}
}

func TestLoadOnce(t *testing.T) {
	zpt.Unload()
	defer zpt.Unload()

	_, err := zpt.Default()
	assert.ErrorIs(t, err, zpt.ErrUnavailable)
	assert.False(t, zpt.Loaded())

	// failed load leaves state unloaded
	err = zpt.Load(strings.NewReader("junk"), strings.NewReader("junk"))
	assert.Error(t, err)
	assert.False(t, zpt.Loaded())

	dir := testDir(t)
	require.NoError(t, zpt.LoadFiles(dir))
	assert.True(t, zpt.Loaded())
	assert.ErrorIs(t, zpt.LoadFiles(dir), zpt.ErrLoaded)

	// read many
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := zpt.Default()
			if assert.NoError(t, err) {
				z, err := p.Zpt(zpt.Source{GMag: 13.5, NuEff: 1.58, Solved: zpt.Solved5p})
				assert.NoError(t, err)
				assert.InDelta(t, -.029, z, 1e-12)
			}
		}()
	}
	wg.Wait()
}

func TestLoadFilesMissing(t *testing.T) {
	zpt.Unload()
	assert.Error(t, zpt.LoadFiles(t.TempDir()))
	assert.False(t, zpt.Loaded())
}

func TestFetchTables(t *testing.T) {
	srv := testServer(t)
	defer func(u string) { zpt.TablesURL = u }(zpt.TablesURL)
	zpt.TablesURL = srv.URL + "/"

	dir := t.TempDir()
	require.NoError(t, zpt.FetchTables(context.Background(), srv.Client(), dir))
	for _, fn := range []string{zpt.Z5File, zpt.Z6File} {
		want, err := os.ReadFile(testFiles[fn])
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(dir, fn))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	zpt.TablesURL = srv.URL + "/missing/"
	assert.Error(t, zpt.FetchTables(context.Background(), srv.Client(), dir))
}
