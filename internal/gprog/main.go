// Public domain.

// Package gprog implements command gaiaget.
package gprog

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/soniakeys/exit"
	"github.com/soniakeys/unit"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/jpssrocha/gaiaget/internal/correct"
	"github.com/jpssrocha/gaiaget/internal/serve"
	"github.com/jpssrocha/gaiaget/internal/store"
	"github.com/jpssrocha/gaiaget/internal/table"
	"github.com/jpssrocha/gaiaget/internal/tap"
	"github.com/jpssrocha/gaiaget/internal/zpt"
)

const versionString = "gaiaget version 1.0 Go source."
const copyrightString = "Public domain."

func Main() {
	defer exit.Handler()

	cfg, err := LoadConfig(".env")
	if err != nil {
		exit.Log(err)
	}
	cl := parseCommandLine(cfg)
	if cl.v {
		fmt.Println(versionString)
		fmt.Println(copyrightString)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := tap.NewClient(cl.cfg.TapURL, cl.cfg.RequestTimeout)
	client.RowLimit = cl.cfg.RowLimit
	// the sync endpoint caps results; unlimited queries run as jobs
	client.Async = cl.cfg.RowLimit <= 0

	var svc tap.Service = client
	var cr *tap.Credentials
	if cl.synthetic > 0 {
		// offline: coefficient tables must already be in -z
		svc = tap.Synthetic{N: cl.synthetic}
		err = loadTables(ctx, cl.cfg.ZptDir, nil)
	} else if err = loadTables(ctx, cl.cfg.ZptDir, client.HTTP); err == nil {
		cr, err = cl.credentials()
	}
	if err != nil {
		exit.Log(err)
	}

	run := func(ctx context.Context) error {
		if cl.serve != "" {
			gin.SetMode(gin.ReleaseMode)
			log.Printf("Serving on %s", cl.serve)
			return serve.New(cl.serve, svc, nil, log.Default()).Run(ctx)
		}
		t, runID, err := fetchAndCorrect(ctx, svc, cl.regions, nil, log.Default())
		if err != nil {
			return err
		}
		if err := cl.write(t); err != nil {
			return err
		}
		if cl.cfg.DatabaseURL == "" {
			return nil
		}
		return save(ctx, cl.cfg.DatabaseURL, runID, t)
	}
	if cr != nil {
		err = client.WithLogin(ctx, *cr, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		exit.Log(err)
	}
}

// fetchAndCorrect fetches regions and runs the correction pipeline over the
// combined table.
func fetchAndCorrect(ctx context.Context, svc tap.Service, regions []tap.Region, p zpt.Provider, l *log.Logger) (*table.Table, uuid.UUID, error) {
	tables, err := tap.FetchAll(ctx, svc, regions, l)
	if err != nil {
		return nil, uuid.Nil, err
	}
	t, err := table.Concat(tables...)
	if err != nil {
		return nil, uuid.Nil, err
	}
	pl := correct.New(p, nil, l)
	t, err = pl.Process(t)
	return t, pl.RunID, err
}

// loadTables loads the zero-point coefficient tables from dir.  If that
// fails it downloads fresh copies with client and tries again.  A nil client
// means no download.
func loadTables(ctx context.Context, dir string, client *http.Client) error {
	if zpt.Loaded() {
		return nil
	}
	readErr := zpt.LoadFiles(dir)
	if readErr == nil {
		return nil
	}
	if client == nil {
		return fmt.Errorf("zero-point tables not found in %s: %w", dir, readErr)
	}
	// that didn't work.  try getting a fresh copy.
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Join(readErr, err)
	}
	if err := zpt.FetchTables(ctx, client, dir); err != nil {
		// show error from read attempt, and error from download attempt
		return errors.Join(readErr, err)
	}
	return zpt.LoadFiles(dir)
}

// credentials from -u with a password prompt, or from the credentials file.
// Nil without either.
func (cl *commandLine) credentials() (*tap.Credentials, error) {
	switch {
	case cl.user != "":
		os.Stderr.WriteString("Password: ")
		pw, err := terminal.ReadPassword(int(os.Stdin.Fd()))
		os.Stderr.WriteString("\n")
		if err != nil {
			return nil, err
		}
		return &tap.Credentials{User: cl.user, Password: string(pw)}, nil
	case cl.credFile != "":
		cr, err := tap.ReadCredentials(cl.credFile)
		if err != nil {
			return nil, err
		}
		return &cr, nil
	}
	return nil, nil
}

func (cl *commandLine) write(t *table.Table) error {
	if cl.out == "-" {
		return t.WriteCSV(os.Stdout)
	}
	f, err := os.Create(cl.out)
	if err != nil {
		return err
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func save(ctx context.Context, dbURL string, runID uuid.UUID, t *table.Table) error {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	n, err := store.Save(ctx, pool, runID, t)
	if err != nil {
		return err
	}
	log.Printf("run %s | Saved %d rows to %s", runID, n, store.Table)
	return nil
}

type commandLine struct {
	cfg       Config
	credFile  string // -c
	user      string // -u
	out       string // -o
	synthetic int    // -synthetic
	serve     string // -serve
	regions   []tap.Region
	v, h      bool
}

var errUsage = errors.New("usage")

func parseCommandLine(cfg Config) *commandLine {
	cl, err := parseArgs(cfg, os.Args[1:], os.Stderr)
	switch {
	case errors.Is(err, flag.ErrHelp):
		printHelp()
		os.Exit(0)
	case errors.Is(err, errUsage):
		usage(os.Stderr)
		os.Exit(1)
	case err != nil:
		log.Println(err)
		usage(os.Stderr)
		os.Exit(1)
	case cl.h:
		printHelp()
		os.Exit(0)
	}
	return cl
}

// parseArgs parses options and region arguments.  Options not given keep
// their values from cfg.
func parseArgs(cfg Config, args []string, stderr io.Writer) (*commandLine, error) {
	cl := &commandLine{cfg: cfg}
	fs := flag.NewFlagSet("gaiaget", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {}
	g := fs.String("g", "cone", "")
	fs.StringVar(&cl.credFile, "c", cfg.Credentials, "")
	fs.StringVar(&cl.user, "u", "", "")
	fs.StringVar(&cl.cfg.ZptDir, "z", cfg.ZptDir, "")
	fs.IntVar(&cl.cfg.RowLimit, "n", cfg.RowLimit, "")
	fs.StringVar(&cl.out, "o", "-", "")
	fs.StringVar(&cl.cfg.DatabaseURL, "db", cfg.DatabaseURL, "")
	fs.IntVar(&cl.synthetic, "synthetic", 0, "")
	fs.StringVar(&cl.serve, "serve", "", "")
	fs.BoolVar(&cl.v, "v", false, "")
	fs.BoolVar(&cl.h, "h", false, "")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cl.v || cl.h {
		return cl, nil
	}
	if cl.synthetic < 0 {
		return nil, fmt.Errorf("invalid -synthetic %d", cl.synthetic)
	}
	geometry, err := tap.ParseGeometry(*g)
	if err != nil {
		return nil, err
	}
	rest := fs.Args()
	switch {
	case cl.serve != "" && len(rest) > 0:
		return nil, errors.New("-serve takes no region arguments")
	case cl.serve != "":
		return cl, nil
	case len(rest) == 0 || len(rest)%3 != 0:
		return nil, errUsage
	}
	for ; len(rest) > 0; rest = rest[3:] {
		r, err := parseRegion(rest[0], rest[1], rest[2], geometry)
		if err != nil {
			return nil, err
		}
		cl.regions = append(cl.regions, r)
	}
	return cl, nil
}

func parseRegion(ra, dec, size string, g tap.Geometry) (tap.Region, error) {
	r := tap.Region{Geometry: g}
	a, err := tap.ParseAngle(ra)
	if err != nil {
		return r, err
	}
	r.Center.RA = unit.RAFromDeg(a.Deg())
	if r.Center.Dec, err = tap.ParseAngle(dec); err != nil {
		return r, err
	}
	if d := r.Center.Dec.Deg(); d < -90 || d > 90 {
		return r, fmt.Errorf("declination %s out of range", dec)
	}
	if r.Size, err = tap.ParseAngle(size); err != nil {
		return r, err
	}
	if r.Size <= 0 {
		return r, fmt.Errorf("invalid field size %s", size)
	}
	return r, nil
}

func usage(w io.Writer) {
	io.WriteString(w, `
Usage: gaiaget [options] <ra> <dec> <size> ...   fetch and correct fields
       gaiaget [options] -serve <addr>          serve fields over HTTP
       gaiaget -h                               display help and quick reference
       gaiaget -v                               display version and copyright

Options:
       -g cone|square
       -c <credentials-file>
       -u <user>
       -z <coefficient-dir>
       -n <row-limit>
       -o <output-file>
       -db <database-url>
       -synthetic <sources-per-field>
`)
}

func printHelp() {
	fmt.Println(`
Gaiaget queries the Gaia DR3 archive for sources in sky fields and applies
the standard corrections: the parallax zero-point of Lindegren et al. (2021),
the corrected BP/RP flux excess factor of Riello et al. (2021), and the
radial velocity corrections of Katz et al. (2022) and Blomme et al. (2022).
Output is CSV, one row per source.

Each field is given by three arguments, center RA, center Dec, and size.
Angles are in degrees unless suffixed with d, m, or s.  Size is the diameter
of a cone or the side of a square.

Without -n each field is queried as an asynchronous archive job, which has
no row cap.  With -n fields use the faster synchronous endpoint.

Zero-point coefficient tables are read from the -z directory, and downloaded
there if missing.  With -synthetic nothing is downloaded and the tables must
already be present.

Environment (also read from .env):
   GAIA_TAP_URL
   GAIA_CREDENTIALS
   GAIAGET_ZPT_DIR
   GAIAGET_ROW_LIMIT
   GAIAGET_REQUEST_TIMEOUT
   DATABASE_URL

For full documentation:
   go doc github.com/jpssrocha/gaiaget`)
}
