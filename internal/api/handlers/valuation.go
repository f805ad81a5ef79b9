package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/portfoliovalue/backend/internal/api/request"
	"github.com/portfoliovalue/backend/internal/api/response"
	"github.com/portfoliovalue/backend/internal/apperrors"
	"github.com/portfoliovalue/backend/internal/model"
	"github.com/portfoliovalue/backend/internal/service"
)

// ValuationHandler handles HTTP requests for valuation endpoints: the
// on-demand value calculation, the materialized daily series, and manual
// recalculation triggers.
type ValuationHandler struct {
	valuationService *service.ValuationService
	recalculator     *service.RecalculatorService
	valuationRepo    ValuationReader
}

// ValuationReader is the read side of the materialized daily series.
type ValuationReader interface {
	GetRange(portfolioID string, startDate, endDate time.Time, fn func(model.DailyValuation) error) error
}

// NewValuationHandler creates a new ValuationHandler with the provided dependencies.
func NewValuationHandler(
	valuationService *service.ValuationService,
	recalculator *service.RecalculatorService,
	valuationRepo ValuationReader,
) *ValuationHandler {
	return &ValuationHandler{
		valuationService: valuationService,
		recalculator:     recalculator,
		valuationRepo:    valuationRepo,
	}
}

// HoldingResponse is one ticker's contribution to a calculated value,
// including the cost-basis breakdown and its weight within the holdings.
type HoldingResponse struct {
	Ticker                string `json:"ticker"`
	Shares                string `json:"shares"`
	Price                 string `json:"price"`
	PriceDate             string `json:"priceDate,omitempty"`
	Value                 string `json:"value"`
	CostBasis             string `json:"costBasis"`
	UnrealizedGainLoss    string `json:"unrealizedGainLoss"`
	UnrealizedGainLossPct string `json:"unrealizedGainLossPct"`
	Weight                string `json:"weight"`
	Stale                 bool   `json:"stale,omitempty"`
	PriceFound            bool   `json:"priceFound"`
}

// ValueResponse is the calculated value of a portfolio. Monetary amounts
// are rounded to two decimal places at this boundary only; the underlying
// calculation is exact.
type ValueResponse struct {
	PortfolioID   string            `json:"portfolioId"`
	Date          string            `json:"date"`
	Holdings      []HoldingResponse `json:"holdings"`
	HoldingsValue string            `json:"holdingsValue"`
	CashBalance   string            `json:"cashBalance,omitempty"`
	Dividends     string            `json:"dividends,omitempty"`
	Total         string            `json:"total"`
	Partial       bool              `json:"partial,omitempty"`
}

// CalculateValue handles GET requests to compute a portfolio's value.
//
// Endpoint: GET /api/portfolio/{uuid}/value
// Query: date=YYYY-MM-DD, includeCash=true, includeDividends=true, priceMode=auto|live|historical
// Response: 200 OK with ValueResponse
// Error: 400 Bad Request if a parameter is malformed or the date precedes the first transaction
// Error: 404 Not Found if portfolio not found
// Error: 500 Internal Server Error if calculation fails
func (h *ValuationHandler) CalculateValue(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "uuid")
	query := r.URL.Query()

	date, err := parseDateParam(query.Get("date"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid date", err.Error())
		return
	}

	opts := service.ValueOptions{
		Date:             date,
		IncludeCash:      query.Get("includeCash") == "true",
		IncludeDividends: query.Get("includeDividends") == "true",
		PriceMode:        query.Get("priceMode"),
	}

	result, err := h.valuationService.CalculateValue(r.Context(), portfolioID, opts)
	if err != nil {
		var confErr *apperrors.ConfigurationError
		switch {
		case errors.Is(err, apperrors.ErrPortfolioNotFound):
			response.RespondError(w, http.StatusNotFound, apperrors.ErrPortfolioNotFound.Error(), err.Error())
		case errors.Is(err, apperrors.ErrInvalidDateRange), errors.As(err, &confErr):
			response.RespondError(w, http.StatusBadRequest, "invalid request", err.Error())
		default:
			response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToCalculateValue.Error(), err.Error())
		}
		return
	}

	response.RespondJSON(w, http.StatusOK, newValueResponse(result, opts))
}

func newValueResponse(result *service.ValueResult, opts service.ValueOptions) ValueResponse {
	resp := ValueResponse{
		PortfolioID:   result.PortfolioID,
		Date:          formatDate(result.Date),
		HoldingsValue: result.HoldingsValue.Round(2).String(),
		Total:         result.Total.Round(2).String(),
		Partial:       result.Partial,
	}
	if opts.IncludeCash {
		resp.CashBalance = result.CashBalance.Round(2).String()
	}
	if opts.IncludeDividends {
		resp.Dividends = result.Dividends.Round(2).String()
	}
	resp.Holdings = make([]HoldingResponse, 0, len(result.Holdings))
	for _, hv := range result.Holdings {
		resp.Holdings = append(resp.Holdings, HoldingResponse{
			Ticker:                hv.Ticker,
			Shares:                hv.Shares.String(),
			Price:                 hv.Price.String(),
			PriceDate:             formatDate(hv.PriceDate),
			Value:                 hv.Value.Round(2).String(),
			CostBasis:             hv.CostBasis.Round(2).String(),
			UnrealizedGainLoss:    hv.UnrealizedGainLoss.Round(2).String(),
			UnrealizedGainLossPct: hv.UnrealizedGainLossPct.Round(2).String(),
			Weight:                hv.Weight.Round(2).String(),
			Stale:                 hv.Stale,
			PriceFound:            hv.PriceFound,
		})
	}
	return resp
}

// DailyValuationResponse is one row of the materialized series.
type DailyValuationResponse struct {
	Date           string `json:"date"`
	HoldingsValue  string `json:"holdingsValue"`
	CashBalance    string `json:"cashBalance"`
	TotalDividends string `json:"totalDividends"`
	TotalValue     string `json:"totalValue"`
	Stale          bool   `json:"stale,omitempty"`
}

// ValuationHistory handles GET requests to read the materialized daily
// valuation series for a date range.
//
// Endpoint: GET /api/portfolio/{uuid}/valuation?start=YYYY-MM-DD&end=YYYY-MM-DD
// Response: 200 OK with array of DailyValuationResponse
// Error: 400 Bad Request if a date is malformed or start is after end
// Error: 500 Internal Server Error if retrieval fails
func (h *ValuationHandler) ValuationHistory(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "uuid")
	query := r.URL.Query()

	start, err := parseDateParam(query.Get("start"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid start date", err.Error())
		return
	}
	end, err := parseDateParam(query.Get("end"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid end date", err.Error())
		return
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}
	if start.IsZero() {
		start = end.AddDate(-1, 0, 0)
	}
	if end.Before(start) {
		response.RespondError(w, http.StatusBadRequest, apperrors.ErrInvalidDateRange.Error(), "start must not be after end")
		return
	}

	rows := []DailyValuationResponse{}
	err = h.valuationRepo.GetRange(portfolioID, start, end, func(v model.DailyValuation) error {
		rows = append(rows, DailyValuationResponse{
			Date:           formatDate(v.Date),
			HoldingsValue:  v.HoldingsValue.Round(2).String(),
			CashBalance:    v.CashBalance.Round(2).String(),
			TotalDividends: v.TotalDividends.Round(2).String(),
			TotalValue:     v.TotalValue.Round(2).String(),
			Stale:          v.Stale,
		})
		return nil
	})
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveValuations.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, rows)
}

// Recalculate handles POST requests to recompute the daily valuation series.
// An empty body or empty "from" rebuilds from the first transaction.
//
// Endpoint: POST /api/portfolio/{uuid}/recalculate
// Request Body: RecalculateRequest (from, through; both optional)
// Response: 200 OK with RecalculationResult
// Error: 400 Bad Request if a date is malformed
// Error: 404 Not Found if portfolio not found
// Error: 500 Internal Server Error if recalculation fails
func (h *ValuationHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "uuid")

	var req request.RecalculateRequest
	if r.ContentLength > 0 {
		parsed, err := parseJSON[request.RecalculateRequest](r)
		if err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
		req = parsed
	}

	from, err := parseDateParam(req.From)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid from date", err.Error())
		return
	}
	through, err := parseDateParam(req.Through)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid through date", err.Error())
		return
	}

	var result *service.RecalculationResult
	if from.IsZero() {
		result, err = h.recalculator.FullRecalculate(r.Context(), portfolioID)
	} else {
		result, err = h.recalculator.RecalculateFrom(r.Context(), portfolioID, from, through)
	}
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrPortfolioNotFound):
			response.RespondError(w, http.StatusNotFound, apperrors.ErrPortfolioNotFound.Error(), err.Error())
		case errors.Is(err, apperrors.ErrInvalidDateRange):
			response.RespondError(w, http.StatusBadRequest, apperrors.ErrInvalidDateRange.Error(), err.Error())
		default:
			response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRecalculate.Error(), err.Error())
		}
		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// ValuationState handles GET requests for the freshness of the valuation
// series: clean, or dirty with the pending window start.
//
// Endpoint: GET /api/portfolio/{uuid}/valuation-state
// Response: 200 OK with ValuationState
// Error: 404 Not Found if portfolio not found
// Error: 500 Internal Server Error if retrieval fails
func (h *ValuationHandler) ValuationState(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "uuid")

	state, err := h.recalculator.State(portfolioID)
	if err != nil {
		if errors.Is(err, apperrors.ErrPortfolioNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrPortfolioNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveValuations.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, state)
}
