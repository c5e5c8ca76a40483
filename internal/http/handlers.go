package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"spendlens/internal/analysis"
	"spendlens/internal/core"
	"spendlens/internal/costcontrol"
	logger "spendlens/internal/log"
)

const (
	maxVendorLimit = 1000
	maxCostDays    = 365
)

type resultHandler func(http.ResponseWriter, *http.Request, *analysis.Result)

// withResult answers 503 until an analysis has been loaded.
func (s *Server) withResult(h resultHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := s.Result()
		if res == nil {
			writeError(w, r, http.StatusServiceUnavailable, "no analysis loaded")
			return
		}
		h(w, r, res)
	}
}

type summaryResponse struct {
	RunID            string            `json:"run_id"`
	GeneratedAt      time.Time         `json:"generated_at"`
	LoadedAt         time.Time         `json:"loaded_at"`
	InvoiceCount     int               `json:"invoice_count"`
	FilteredOut      int               `json:"filtered_out"`
	TotalSpend       core.Money        `json:"total_spend"`
	VendorCount      int               `json:"vendor_count"`
	CategoryCount    int               `json:"category_count"`
	CompanyCount     int               `json:"company_count"`
	Assessment       string            `json:"assessment"`
	Standing         string            `json:"standing"`
	PotentialSavings core.Money        `json:"potential_savings"`
	QualityScore     float64           `json:"data_quality_score"`
	LLM              analysis.LLMStats `json:"llm"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, res *analysis.Result) {
	_, loadedAt, _ := s.state()
	writeJSON(w, r, http.StatusOK, summaryResponse{
		RunID:            res.RunID,
		GeneratedAt:      res.GeneratedAt,
		LoadedAt:         loadedAt,
		InvoiceCount:     res.InvoiceCount,
		FilteredOut:      res.FilteredOut,
		TotalSpend:       res.TotalSpend,
		VendorCount:      len(res.Vendors),
		CategoryCount:    len(res.Categories),
		CompanyCount:     len(res.Companies),
		Assessment:       res.Assessment,
		Standing:         res.Comprehensive.Standing,
		PotentialSavings: res.Executive.TotalPotentialSavings,
		QualityScore:     res.Quality.Score,
		LLM:              res.LLM,
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request, res *analysis.Result) {
	writeJSON(w, r, http.StatusOK, nonNil(res.Categories))
}

func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request, res *analysis.Result) {
	writeJSON(w, r, http.StatusOK, nonNil(res.Companies))
}

type vendorsResponse struct {
	Total    int                       `json:"total"`
	Vendors  []core.NamedAmount        `json:"vendors"`
	Exposure []analysis.VendorExposure `json:"exposure"`
	MSP      analysis.MSPBreakdown     `json:"msp"`
}

// handleVendors returns vendor totals sorted by spend. limit caps both lists.
func (s *Server) handleVendors(w http.ResponseWriter, r *http.Request, res *analysis.Result) {
	limit, err := parsePositiveInt(r, "limit", maxVendorLimit, maxVendorLimit)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, vendorsResponse{
		Total:    len(res.Vendors),
		Vendors:  nonNil(head(res.Vendors, limit)),
		Exposure: nonNil(head(res.Executive.Vendors, limit)),
		MSP:      res.MSP,
	})
}

type benchmarksResponse struct {
	Lines         []analysis.BenchmarkLine `json:"lines"`
	Comprehensive analysis.Comprehensive   `json:"comprehensive"`
	Assessment    string                   `json:"assessment"`
}

func (s *Server) handleBenchmarks(w http.ResponseWriter, r *http.Request, res *analysis.Result) {
	writeJSON(w, r, http.StatusOK, benchmarksResponse{
		Lines:         nonNil(res.Benchmarks),
		Comprehensive: res.Comprehensive,
		Assessment:    res.Assessment,
	})
}

type recommendationsResponse struct {
	Recommendations  []analysis.Recommendation `json:"recommendations"`
	PotentialSavings core.Money                `json:"potential_savings"`
	Growth           analysis.EmployeeGrowth   `json:"employee_growth"`
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request, res *analysis.Result) {
	writeJSON(w, r, http.StatusOK, recommendationsResponse{
		Recommendations:  nonNil(res.Recommendations),
		PotentialSavings: res.Executive.TotalPotentialSavings,
		Growth:           res.Growth,
	})
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request, res *analysis.Result) {
	t := res.Temporal
	t.Monthly = nonNil(t.Monthly)
	t.Quarterly = nonNil(t.Quarterly)
	t.Vendors = nonNil(t.Vendors)
	writeJSON(w, r, http.StatusOK, t)
}

type costsResponse struct {
	costcontrol.Summary
	Recommendations []string `json:"recommendations"`
}

func (s *Server) costSummary(w http.ResponseWriter, r *http.Request) (costcontrol.Summary, bool) {
	if s.costs == nil {
		writeError(w, r, http.StatusServiceUnavailable, "cost tracking not configured")
		return costcontrol.Summary{}, false
	}
	days, err := parsePositiveInt(r, "days", costcontrol.DefaultTrendDays, maxCostDays)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return costcontrol.Summary{}, false
	}
	sum, err := s.costs.Summary(r.Context(), days)
	if err != nil {
		logger.FromContext(r.Context()).ErrorContext(r.Context(), "Cost summary failed", logger.FieldError, err)
		writeError(w, r, http.StatusInternalServerError, "cost summary unavailable")
		return costcontrol.Summary{}, false
	}
	return sum, true
}

func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	sum, ok := s.costSummary(w, r)
	if !ok {
		return
	}
	recs, err := s.costs.Recommendations(r.Context(), sum)
	if err != nil {
		logger.FromContext(r.Context()).WarnContext(r.Context(), "Cost recommendations failed", logger.FieldError, err)
	}
	writeJSON(w, r, http.StatusOK, costsResponse{Summary: sum, Recommendations: nonNil(recs)})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	sum, ok := s.costSummary(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, costcontrol.Monitor(sum))
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	err := s.Reload(r.Context())
	switch {
	case errors.Is(err, ErrNoLoader):
		writeError(w, r, http.StatusNotImplemented, err.Error())
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, "reload failed")
	default:
		s.handleSummary(w, r, s.Result())
	}
}

type indexData struct {
	Result   *analysis.Result
	LoadedAt time.Time
	Vendors  []analysis.VendorExposure
	Error    string
}

// indexVendorRows is how many vendor rows the index page shows.
const indexVendorRows = 15

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		http.Error(w, "templates unavailable", http.StatusInternalServerError)
		return
	}
	res, loadedAt, loadErr := s.state()
	data := indexData{Result: res, LoadedAt: loadedAt}
	if res != nil {
		data.Vendors = head(res.Executive.Vendors, indexVendorRows)
	}
	if loadErr != nil {
		data.Error = "The last reload failed; showing the previous analysis."
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		logger.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to render index", logger.FieldError, err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Truncate(time.Second).String(),
	})
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleReady is ready once an analysis is loaded and storage answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	ready := true

	res, _, loadErr := s.state()
	switch {
	case res == nil && loadErr != nil:
		checks["analysis"] = "error: " + loadErr.Error()
		ready = false
	case res == nil:
		checks["analysis"] = "not loaded"
		ready = false
	case loadErr != nil:
		checks["analysis"] = "stale: " + loadErr.Error()
	default:
		checks["analysis"] = "ok"
	}

	if s.storage != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.storage.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "Readiness storage check failed",
				logger.FieldComponent, logger.ComponentStorage,
				logger.FieldError, err)
			checks["storage"] = "error"
			ready = false
		} else {
			checks["storage"] = "ok"
		}
	}

	if s.templates == nil {
		checks["templates"] = "error"
		ready = false
	} else {
		checks["templates"] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, readyResponse{Status: status, Checks: checks})
}

func head[T any](s []T, n int) []T {
	if n >= 0 && len(s) > n {
		return s[:n]
	}
	return s
}

// nonNil keeps empty lists rendering as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
