// Package handlers provides HTTP handlers for max-Sharpe optimization.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/sharpe/internal/domain"
	"github.com/aristath/sharpe/internal/modules/charts"
	"github.com/aristath/sharpe/internal/modules/optimization"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const contentTypeMsgpack = "application/msgpack"

// Handler handles optimization HTTP requests
type Handler struct {
	service *optimization.Service
	charts  *charts.Service
	log     zerolog.Logger
}

// NewHandler creates a new optimization handler
func NewHandler(service *optimization.Service, chartService *charts.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		charts:  chartService,
		log:     log.With().Str("handler", "optimization").Logger(),
	}
}

// OptimizeRequest is the body of POST /api/optimization/sharpe
type OptimizeRequest struct {
	Tickers      []string                             `json:"tickers"`
	Start        string                               `json:"start"`
	End          string                               `json:"end"`
	RiskFreeRate *float64                             `json:"risk_free_rate,omitempty"`
	Bounds       map[string]optimization.WeightBounds `json:"bounds,omitempty"`
	CheckTickers bool                                 `json:"check_tickers"`
}

// ReturnsRequest is the body of POST /api/optimization/sharpe/returns
type ReturnsRequest struct {
	Series       []optimization.ReturnSeries          `json:"series"`
	RiskFreeRate *float64                             `json:"risk_free_rate,omitempty"`
	Bounds       map[string]optimization.WeightBounds `json:"bounds,omitempty"`
}

// OptimizeResponse is the serialized form of an optimization result
type OptimizeResponse struct {
	RunID        string                        `json:"run_id"`
	Tickers      []string                      `json:"tickers"`
	Start        string                        `json:"start,omitempty"`
	End          string                        `json:"end,omitempty"`
	Periods      int                           `json:"periods"`
	Weights      map[string]float64            `json:"weights"`
	Allocations  []optimization.Allocation     `json:"allocations"`
	MeanReturns  []float64                     `json:"mean_returns"`
	Risks        []float64                     `json:"risks"`
	Covariance   [][]float64                   `json:"covariance"`
	Correlation  [][]float64                   `json:"correlation"`
	RiskFreeRate float64                       `json:"risk_free_rate"`
	Metrics      optimization.PortfolioMetrics `json:"metrics"`
	Solver       SolverInfo                    `json:"solver"`
	Growth       []charts.ChartDataPoint       `json:"growth"`
}

// SolverInfo describes how the optimum was found
type SolverInfo struct {
	Method          string `json:"method"`
	Status          string `json:"status"`
	Iterations      int    `json:"iterations"`
	FuncEvaluations int    `json:"func_evaluations"`
}

// HandleOptimize handles POST /api/optimization/sharpe
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	result, ok := h.optimizeFromRequest(w, r)
	if !ok {
		return
	}
	h.writeResponse(w, r, http.StatusOK, h.buildResponse(result))
}

// HandleOptimizeChart handles POST /api/optimization/sharpe/chart
func (h *Handler) HandleOptimizeChart(w http.ResponseWriter, r *http.Request) {
	result, ok := h.optimizeFromRequest(w, r)
	if !ok {
		return
	}

	var (
		png []byte
		err error
	)
	if r.URL.Query().Get("kind") == "growth" {
		png, err = h.charts.GrowthChart(result)
	} else {
		png, err = h.charts.AllocationPie(result)
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to render chart")
		http.Error(w, "Failed to render chart", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.log.Error().Err(err).Msg("Failed to write chart")
	}
}

// HandleOptimizeReturns handles POST /api/optimization/sharpe/returns
func (h *Handler) HandleOptimizeReturns(w http.ResponseWriter, r *http.Request) {
	var req ReturnsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, domain.InputError("request", "invalid request body: %v", err))
		return
	}

	// Either every series carries periods and they are aligned by date, or
	// none does and the columns are taken as already aligned
	dated := 0
	for _, s := range req.Series {
		if len(s.Periods) > 0 {
			dated++
		}
	}

	optReq := optimization.ReturnsRequest{
		RiskFreeRate: req.RiskFreeRate,
		Bounds:       normalizeBounds(req.Bounds),
	}
	switch dated {
	case len(req.Series):
		optReq.Series = req.Series
	case 0:
		optReq.Tickers = make([]string, len(req.Series))
		optReq.Returns = make([][]float64, len(req.Series))
		for i, s := range req.Series {
			optReq.Tickers[i] = s.Ticker
			optReq.Returns[i] = s.Returns
		}
	default:
		h.writeError(w, r, domain.InputError("request",
			"%d of %d series carry periods; send periods for all series or for none", dated, len(req.Series)))
		return
	}

	result, err := h.service.OptimizeReturns(r.Context(), optReq)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeResponse(w, r, http.StatusOK, h.buildResponse(result))
}

// HandleGetRiskFreeRate handles GET /api/optimization/risk-free-rate
func (h *Handler) HandleGetRiskFreeRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.service.RiskFreeRate(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeResponse(w, r, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"monthly": rate,
			"annual":  rate * 12,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) optimizeFromRequest(w http.ResponseWriter, r *http.Request) (*optimization.Result, bool) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, domain.InputError("request", "invalid request body: %v", err))
		return nil, false
	}

	period, err := domain.ParseHoldingPeriod(req.Start, req.End)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}

	result, err := h.service.Optimize(r.Context(), optimization.Request{
		Tickers:      req.Tickers,
		Period:       period,
		RiskFreeRate: req.RiskFreeRate,
		Bounds:       normalizeBounds(req.Bounds),
		CheckTickers: req.CheckTickers,
	})
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return result, true
}

func (h *Handler) buildResponse(result *optimization.Result) OptimizeResponse {
	resp := OptimizeResponse{
		RunID:        result.RunID,
		Tickers:      result.Tickers,
		Periods:      result.Statistics.Periods,
		Weights:      result.Weights(),
		Allocations:  result.Allocations(),
		MeanReturns:  result.Statistics.Means,
		Risks:        result.Statistics.Risks,
		Covariance:   result.Statistics.CovarianceRows(),
		Correlation:  optimization.SymRows(result.Correlation),
		RiskFreeRate: result.RiskFreeRate,
		Metrics:      result.Optimization.Metrics,
		Solver: SolverInfo{
			Method:          result.Optimization.Method,
			Status:          result.Optimization.Status,
			Iterations:      result.Optimization.Iterations,
			FuncEvaluations: result.Optimization.FuncEvaluations,
		},
		Growth: h.charts.GrowthSeries(result),
	}
	if result.Period != nil {
		resp.Start = result.Period.Start.Format(domain.DateLayout)
		resp.End = result.Period.End.Format(domain.DateLayout)
	}
	return resp
}

// normalizeBounds upper-cases the tickers of per-ticker bound overrides.
func normalizeBounds(bounds map[string]optimization.WeightBounds) map[string]optimization.WeightBounds {
	if len(bounds) == 0 {
		return nil
	}
	out := make(map[string]optimization.WeightBounds, len(bounds))
	for ticker, b := range bounds {
		out[domain.NormalizeTicker(ticker)] = b
	}
	return out
}

// statusFor maps an error kind to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrData),
		errors.Is(err, domain.ErrNumeric),
		errors.Is(err, domain.ErrOptimization):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	kind := "internal error"
	if k := domain.KindOf(err); k != nil {
		kind = k.Error()
	}

	event := h.log.Warn()
	if status >= http.StatusInternalServerError {
		event = h.log.Error()
	}
	event.Err(err).Int("status", status).Str("path", r.URL.Path).Msg("Optimization request failed")

	h.writeResponse(w, r, status, map[string]interface{}{
		"error": err.Error(),
		"kind":  kind,
	})
}

// writeResponse encodes data as msgpack when the client asks for it, JSON otherwise.
func (h *Handler) writeResponse(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if strings.Contains(r.Header.Get("Accept"), contentTypeMsgpack) {
		w.Header().Set("Content-Type", contentTypeMsgpack)
		w.WriteHeader(status)

		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(data); err != nil {
			h.log.Error().Err(err).Msg("Failed to encode msgpack response")
		}
		return
	}

	h.writeJSON(w, status, data)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
