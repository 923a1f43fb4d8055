package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/config"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/agent/core"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/dataset"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/knowledge"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/internal/transform"
)

// TrajectoryGenerator runs one trajectory.
type TrajectoryGenerator interface {
	GenerateTrajectory(ctx context.Context, req core.TrajectoryRequest) (core.Trajectory, error)
}

// QueryExpander expands a seed query into variants.
type QueryExpander interface {
	Expand(ctx context.Context, seed string, seedID int, f transform.Filter) ([]transform.Variant, error)
}

// StatsSource reports persisted example counts.
type StatsSource interface {
	CountExamples(ctx context.Context) (int64, error)
	DecisionCounts(ctx context.Context) (map[string]int, error)
	OutcomeCounts(ctx context.Context) (map[string]int, error)
}

// IndexStats reports knowledge index contents.
type IndexStats interface {
	Stats() (knowledge.Stats, error)
}

// Deps are the handlers' collaborators. Nil members disable their routes.
type Deps struct {
	Generator TrajectoryGenerator
	Expander  QueryExpander
	Stats     StatsSource
	Index     IndexStats
	Sink      dataset.Sink
	Metrics   http.Handler
	Fields    config.OutputFields
	Logger    *log.Logger
}

type handlers struct {
	deps   Deps
	logger *log.Logger
}

// New builds the echo instance with all routes registered.
func New(cfg config.ServerConfig, deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	baseLogger := deps.Logger
	if baseLogger == nil {
		baseLogger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Metrics))
	}

	h := &handlers{deps: deps, logger: baseLogger}
	api := e.Group("/api")
	if secret := strings.TrimSpace(cfg.JWTSecret); secret != "" {
		api.Use(AuthMiddleware([]byte(secret)))
	}
	if deps.Generator != nil {
		api.POST("/trajectories", h.generate)
	}
	if deps.Expander != nil {
		api.POST("/transform", h.transform)
	}
	api.GET("/stats", h.stats)
	return e
}

type trajectoryRequest struct {
	Query    string                 `json:"query"`
	QueryID  string                 `json:"query_id"`
	Metadata map[string]interface{} `json:"metadata"`
}

type trajectoryResponse struct {
	QueryID  string        `json:"query_id"`
	Outcome  core.Outcome  `json:"outcome"`
	Examples []core.Record `json:"examples"`
	Error    string        `json:"error,omitempty"`
}

func (h *handlers) generate(c echo.Context) error {
	var req trajectoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	ctx := c.Request().Context()
	traj, err := h.deps.Generator.GenerateTrajectory(ctx, core.TrajectoryRequest{
		Query:    req.Query,
		QueryID:  req.QueryID,
		Metadata: req.Metadata,
	})
	resp := trajectoryResponse{
		QueryID:  traj.QueryID,
		Outcome:  traj.Outcome,
		Examples: traj.Records(h.deps.Fields),
	}
	if h.deps.Sink != nil && len(traj.Examples) > 0 {
		if serr := h.deps.Sink.Write(ctx, traj); serr != nil {
			h.logger.Printf("persist trajectory %s: %v", traj.QueryID, serr)
		}
	}
	if err != nil {
		if len(traj.Examples) == 0 {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		resp.Error = err.Error()
		return c.JSON(http.StatusBadGateway, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

type transformRequest struct {
	Query      string `json:"query"`
	Persona    string `json:"persona"`
	Complexity string `json:"complexity"`
}

func (h *handlers) transform(c echo.Context) error {
	var req transformRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	f := transform.Filter{Persona: req.Persona, Complexity: req.Complexity}
	if err := f.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	variants, err := h.deps.Expander.Expand(c.Request().Context(), req.Query, 1, f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"variants": variants, "count": len(variants)})
}

func (h *handlers) stats(c echo.Context) error {
	ctx := c.Request().Context()
	out := map[string]interface{}{}
	if h.deps.Index != nil {
		st, err := h.deps.Index.Stats()
		if err != nil {
			return err
		}
		out["index"] = st
	}
	if h.deps.Stats != nil {
		total, err := h.deps.Stats.CountExamples(ctx)
		if err != nil {
			return err
		}
		decisions, err := h.deps.Stats.DecisionCounts(ctx)
		if err != nil {
			return err
		}
		outcomes, err := h.deps.Stats.OutcomeCounts(ctx)
		if err != nil {
			return err
		}
		out["examples"] = total
		out["decisions"] = decisions
		out["outcomes"] = outcomes
	}
	return c.JSON(http.StatusOK, out)
}

// Run serves e on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, e *echo.Echo) error {
	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
