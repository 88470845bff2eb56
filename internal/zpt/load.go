// Public domain.

package zpt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// File names of the published coefficient tables.
const (
	Z5File = "z5_200720.txt"
	Z6File = "z6_200720.txt"
)

// TablesURL is the location of the published coefficient tables.  File
// names Z5File and Z6File are appended.
var TablesURL = "https://gitlab.com/icc-ub/public/gaiadr3_zeropoint/-/raw/master/zero_point/coefficients/"

// ErrLoaded is returned by Load when tables are already loaded.
var ErrLoaded = errors.New("zero-point coefficients already loaded")

// Process-wide tables.  Written once by Load, read by Default.
var (
	loadMu sync.Mutex
	loaded atomic.Pointer[Tables]
)

// ReadTables reads the 5p and 6p coefficient tables.
func ReadTables(r5, r6 io.Reader) (*Tables, error) {
	five, err := ReadCoefficients(r5)
	if err != nil {
		return nil, fmt.Errorf("5p table: %w", err)
	}
	six, err := ReadCoefficients(r6)
	if err != nil {
		return nil, fmt.Errorf("6p table: %w", err)
	}
	return &Tables{Five: five, Six: six}, nil
}

// Load reads the coefficient tables into process-wide state.
//
// Load succeeds at most once per process.  Later calls return ErrLoaded and
// leave the loaded tables unchanged.
func Load(r5, r6 io.Reader) error {
	loadMu.Lock()
	defer loadMu.Unlock()
	if loaded.Load() != nil {
		return ErrLoaded
	}
	t, err := ReadTables(r5, r6)
	if err != nil {
		return err
	}
	loaded.Store(t)
	return nil
}

// LoadFiles loads Z5File and Z6File from directory dir.
func LoadFiles(dir string) error {
	f5, err := os.Open(filepath.Join(dir, Z5File))
	if err != nil {
		return err
	}
	defer f5.Close()
	f6, err := os.Open(filepath.Join(dir, Z6File))
	if err != nil {
		return err
	}
	defer f6.Close()
	return Load(f5, f6)
}

// Loaded reports whether process-wide tables are loaded.
func Loaded() bool {
	return loaded.Load() != nil
}

// Default returns the process-wide tables, or ErrUnavailable if Load has not
// succeeded.
func Default() (Provider, error) {
	t := loaded.Load()
	if t == nil {
		return nil, ErrUnavailable
	}
	return t, nil
}

// FetchTables downloads fresh copies of Z5File and Z6File from TablesURL
// into directory dir.
func FetchTables(ctx context.Context, client *http.Client, dir string) error {
	for _, fn := range []string{Z5File, Z6File} {
		if err := fetch(ctx, client, TablesURL+fn, filepath.Join(dir, fn)); err != nil {
			return err
		}
	}
	return nil
}

func fetch(ctx context.Context, client *http.Client, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	r, err := client.Do(req)
	if err != nil {
		return err
	}
	defer r.Body.Close()
	if r.StatusCode < 200 || r.StatusCode >= 300 {
		return fmt.Errorf("fetch %s: unexpected status %s", url, r.Status)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err = io.Copy(f, r.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
