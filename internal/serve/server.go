// Public domain.

// Package serve exposes region fetching and correction over HTTP.
//
//	GET /healthz
//	GET /v1/sources?ra=<angle>&dec=<angle>&size=<angle>[&geometry=cone|square][&format=csv|json]
//
// Angles take the forms accepted by tap.ParseAngle.  The response holds the
// corrected table; its pipeline run id is in the X-Run-Id header.
package serve

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/soniakeys/coord"
	"github.com/soniakeys/unit"

	"github.com/jpssrocha/gaiaget/internal/correct"
	"github.com/jpssrocha/gaiaget/internal/table"
	"github.com/jpssrocha/gaiaget/internal/tap"
	"github.com/jpssrocha/gaiaget/internal/zpt"
)

// Server bundles the router and the catalog service it queries.
type Server struct {
	addr     string
	svc      tap.Service
	provider zpt.Provider
	log      *log.Logger
	engine   *gin.Engine
}

// New constructs a server listening on addr.  Provider p may be nil to use
// the process-wide zero-point tables.
func New(addr string, svc tap.Service, p zpt.Provider, l *log.Logger) *Server {
	if l == nil {
		l = log.Default()
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.LoggerWithWriter(l.Writer()))

	s := &Server{addr: addr, svc: svc, provider: p, log: l, engine: engine}
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "zpt_loaded": p != nil || zpt.Loaded()})
	})
	engine.GET("/v1/sources", s.handleSources)
	return s
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleSources(c *gin.Context) {
	r, err := parseRegion(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "json" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid format"})
		return
	}

	raw, err := tap.Fetch(c.Request.Context(), s.svc, r, s.log)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	p := correct.New(s.provider, nil, s.log)
	c.Header("X-Run-Id", p.RunID.String())
	t, err := p.Process(raw)
	if err != nil {
		resp := gin.H{"error": err.Error()}
		var se *correct.StageError
		if errors.As(err, &se) {
			resp["stage"] = se.Stage
		}
		c.JSON(http.StatusInternalServerError, resp)
		return
	}

	if format == "json" {
		rows, err := records(t)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"run_id": p.RunID.String(),
			"count":  len(rows),
			"data":   rows,
		})
		return
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	if err := t.WriteCSV(c.Writer); err != nil {
		s.log.Printf("write csv: %v", err)
	}
}

func parseRegion(c *gin.Context) (tap.Region, error) {
	var r tap.Region
	var angles [3]unit.Angle
	for i, name := range []string{"ra", "dec", "size"} {
		v := c.Query(name)
		if v == "" {
			return r, errors.New(name + " is required")
		}
		a, err := tap.ParseAngle(v)
		if err != nil {
			return r, err
		}
		angles[i] = a
	}
	g, err := tap.ParseGeometry(c.DefaultQuery("geometry", "cone"))
	if err != nil {
		return r, err
	}
	r = tap.Region{
		Center:   coord.Equa{RA: unit.RAFromDeg(angles[0].Deg()), Dec: angles[1]},
		Size:     angles[2],
		Geometry: g,
	}
	if r.Size <= 0 {
		return r, errors.New("size must be positive")
	}
	return r, nil
}

// records converts t to one map per row.  Undefined values are nil.
func records(t *table.Table) ([]map[string]any, error) {
	names := t.Names()
	rows := make([]map[string]any, t.Len())
	for r := range rows {
		m := make(map[string]any, len(names))
		for _, name := range names {
			v, err := t.Value(name, r)
			if err != nil {
				return nil, err
			}
			m[name] = v
		}
		rows[r] = m
	}
	return rows, nil
}
