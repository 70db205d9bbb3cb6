// Package server exposes the reflow engine over HTTP: a JSON API for
// triggering a run, a Prometheus scrape endpoint, and an html/template
// status dashboard in the spirit of the teacher's single-page shop-floor
// view, grounded on anasdox-workline/internal/server/server.go's chi
// wiring and DrPhilDSI-Shop-Scheduler-5000/main.go's template FuncMap.
package server

import (
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dsi-mfg/reflow/internal/config"
	"github.com/dsi-mfg/reflow/internal/loader"
	"github.com/dsi-mfg/reflow/internal/metrics"
	"github.com/dsi-mfg/reflow/internal/model"
	"github.com/dsi-mfg/reflow/internal/reflow"
)

// httpError is the envelope every handler-level failure is reported
// through.
type httpError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
}

func (e *httpError) Error() string { return e.Message }

func writeError(w http.ResponseWriter, err *httpError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	_ = json.NewEncoder(w).Encode(err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// reflowRequest is the JSON body accepted by POST /api/v1/reflow: the
// same workCenter/workOrder document arrays the loader reads from disk.
type reflowRequest struct {
	WorkCenters json.RawMessage `json:"workCenters"`
	WorkOrders  json.RawMessage `json:"workOrders"`
}

// Server hosts the HTTP surface around a single reflow engine instance.
// It keeps the most recent result in memory so the status page (GET /)
// and GET /api/v1/reflow have something to return without forcing a
// fresh run.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Recorder
	router  chi.Router
	tpl     *template.Template

	mu          sync.RWMutex
	lastResult  *model.ReflowResult
	lastCenters []model.WorkCenter
	lastRanAt   time.Time
}

// New builds a Server with routes registered. centers/orders is the
// bundle used to serve the status page and CLI-triggered runs; the
// bundle can be replaced later via SetBundle (e.g. after watch.Watcher
// detects an input file change).
func New(cfg *config.Config, logger *slog.Logger, rec *metrics.Recorder) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, logger: logger, metrics: rec}
	s.tpl = template.Must(template.New("status").Funcs(statusFuncs).Parse(statusPageTemplate))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleStatusPage)
	r.Get("/api/v1/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.HandlerFor(rec.Registry(), promhttp.HandlerOpts{}))

	r.Group(func(protected chi.Router) {
		protected.Use(s.requireAuth)
		protected.Post("/api/v1/reflow", s.handleReflow)
		protected.Get("/api/v1/reflow", s.handleLatestReflow)
	})

	s.router = r
	return s
}

// ServeHTTP satisfies http.Handler so Server can be passed straight to
// http.ListenAndServe.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReflow decodes a workCenters/workOrders bundle from the request
// body, runs the engine, records metrics, remembers the result for the
// status page, and returns the ReflowResult as JSON. By default the
// bundle is expected in the §6 document envelope shape (the same JSON
// loader.LoadBundle reads from disk); ?format=model accepts the
// internal model.WorkCenter/model.WorkOrder shape directly, for callers
// that already hold parsed model values.
func (s *Server) handleReflow(w http.ResponseWriter, r *http.Request) {
	var req reflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &httpError{Status: http.StatusBadRequest, Message: "invalid request body: " + err.Error()})
		return
	}

	workCenters, workOrders, err := decodeRequestBundle(r, req)
	if err != nil {
		writeError(w, &httpError{Status: http.StatusBadRequest, Message: err.Error()})
		return
	}

	start := time.Now()
	result, err := reflow.Reflow(r.Context(), workCenters, workOrders)
	elapsed := time.Since(start)
	if err != nil {
		writeError(w, &httpError{Status: http.StatusUnprocessableEntity, Message: err.Error()})
		return
	}

	if s.metrics != nil {
		s.metrics.Observe(result, elapsed)
	}
	s.recordRun(workCenters, result)

	writeJSON(w, http.StatusOK, result)
}

func decodeRequestBundle(r *http.Request, req reflowRequest) ([]model.WorkCenter, []model.WorkOrder, error) {
	if r.URL.Query().Get("format") == "model" {
		var centers []model.WorkCenter
		var orders []model.WorkOrder
		if err := json.Unmarshal(req.WorkCenters, &centers); err != nil {
			return nil, nil, err
		}
		if err := json.Unmarshal(req.WorkOrders, &orders); err != nil {
			return nil, nil, err
		}
		return centers, orders, nil
	}

	bundle, err := loader.DecodeBundle(req.WorkCenters, req.WorkOrders)
	if err != nil {
		return nil, nil, err
	}
	return bundle.WorkCenters, bundle.WorkOrders, nil
}

// handleLatestReflow returns the most recently recorded ReflowResult
// without triggering a new run, the GET counterpart POST /api/v1/reflow
// also updates.
func (s *Server) handleLatestReflow(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	result := s.lastResult
	s.mu.RUnlock()

	if result == nil {
		writeError(w, &httpError{Status: http.StatusNotFound, Message: "no reflow has run yet"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) recordRun(centers []model.WorkCenter, result model.ReflowResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResult = &result
	s.lastCenters = centers
	s.lastRanAt = time.Now()
}

// RunAndRecord runs the engine against the given bundle outside of an
// HTTP request, used by cmd/reflow's serve subcommand and
// internal/watch's debounced reflow callback so the status page always
// reflects the newest input files.
func (s *Server) RunAndRecord(ctx context.Context, workCenters []model.WorkCenter, workOrders []model.WorkOrder) error {
	start := time.Now()
	result, err := reflow.Reflow(ctx, workCenters, workOrders)
	elapsed := time.Since(start)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.Observe(result, elapsed)
	}
	s.recordRun(workCenters, result)
	return nil
}

type statusViewModel struct {
	RanAt       string
	HasResult   bool
	Success     bool
	Explanation string
	Changes     []model.Change
	Errors      []string
	WorkCenters []statusWorkCenter
}

type statusWorkCenter struct {
	ID     string
	Name   string
	Orders []model.WorkOrder
}

func (s *Server) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vm := statusViewModel{HasResult: s.lastResult != nil}
	if s.lastResult != nil {
		vm.RanAt = s.lastRanAt.UTC().Format(time.RFC3339)
		vm.Success = s.lastResult.Success
		vm.Explanation = s.lastResult.Explanation
		vm.Changes = s.lastResult.Changes
		vm.Errors = s.lastResult.Errors

		for _, wc := range s.lastCenters {
			orders := append([]model.WorkOrder(nil), s.lastResult.UpdatedWorkOrders[wc.ID]...)
			sort.Slice(orders, func(i, j int) bool {
				return orders[i].Start.Before(orders[j].Start.Time)
			})
			vm.WorkCenters = append(vm.WorkCenters, statusWorkCenter{ID: wc.ID, Name: wc.Name, Orders: orders})
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, vm); err != nil {
		s.logger.Error("status template render failed", slog.String("error", err.Error()))
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

var statusFuncs = template.FuncMap{
	"minsToHM":   minsToHM,
	"delayClass": delayClass,
	"upper":      strings.ToUpper,
}

func minsToHM(mins int) string {
	if mins <= 0 {
		return "0m"
	}
	h, m := mins/60, mins%60
	switch {
	case h == 0:
		return strconv.Itoa(m) + "m"
	case m == 0:
		return strconv.Itoa(h) + "h"
	default:
		return strconv.Itoa(h) + "h " + strconv.Itoa(m) + "m"
	}
}

func delayClass(mins int) string {
	switch {
	case mins <= 0:
		return "delay-none"
	case mins < 60:
		return "delay-minor"
	default:
		return "delay-major"
	}
}

const statusPageTemplate = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Reflow Status</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; background: #111; color: #ddd; }
h1 { font-weight: 600; }
table { border-collapse: collapse; width: 100%; margin-bottom: 2rem; }
th, td { border: 1px solid #333; padding: 0.4rem 0.6rem; text-align: left; font-size: 0.9rem; }
th { background: #1c1c1c; }
.delay-none { color: #7fdc7f; }
.delay-minor { color: #e0c15c; }
.delay-major { color: #e06c6c; }
.badge-ok { color: #7fdc7f; }
.badge-fail { color: #e06c6c; }
</style>
</head>
<body>
<h1>Reflow Status</h1>
{{if not .HasResult}}
<p>No reflow has run yet.</p>
{{else}}
<p>Last run: {{.RanAt}} &mdash;
  {{if .Success}}<span class="badge-ok">success</span>{{else}}<span class="badge-fail">failed</span>{{end}}
</p>
<p>{{.Explanation}}</p>
{{if .Errors}}
<ul>{{range .Errors}}<li class="badge-fail">{{.}}</li>{{end}}</ul>
{{end}}

<h2>Changes</h2>
<table>
<tr><th>Work Order</th><th>Old Start</th><th>New Start</th><th>Delay</th><th>Reason</th></tr>
{{range .Changes}}
<tr>
  <td>{{.WorkOrderNumber}}</td>
  <td>{{.OldStart}}</td>
  <td>{{.NewStart}}</td>
  <td class="{{delayClass .DelayMinutes}}">{{minsToHM .DelayMinutes}}</td>
  <td>{{.Reason}}</td>
</tr>
{{end}}
</table>

<h2>Schedule by Work Center</h2>
{{range .WorkCenters}}
<h3>{{.Name}} ({{.ID}})</h3>
<table>
<tr><th>Order</th><th>Start</th><th>End</th><th>Maintenance</th></tr>
{{range .Orders}}
<tr>
  <td>{{.Number}}</td>
  <td>{{.Start}}</td>
  <td>{{.End}}</td>
  <td>{{if .IsMaintenance}}yes{{else}}&mdash;{{end}}</td>
</tr>
{{end}}
</table>
{{end}}
{{end}}
</body>
</html>`
