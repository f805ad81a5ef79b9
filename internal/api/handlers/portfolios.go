package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/portfoliovalue/backend/internal/api/request"
	"github.com/portfoliovalue/backend/internal/api/response"
	"github.com/portfoliovalue/backend/internal/apperrors"
	"github.com/portfoliovalue/backend/internal/ledger"
	"github.com/portfoliovalue/backend/internal/model"
	"github.com/portfoliovalue/backend/internal/service"
	"github.com/portfoliovalue/backend/internal/validation"
)

// PortfolioHandler handles HTTP requests for portfolio endpoints.
// It serves as the HTTP layer adapter, parsing requests and delegating
// business logic to the portfolio and valuation services.
type PortfolioHandler struct {
	portfolioService *service.PortfolioService
	valuationService *service.ValuationService
}

// NewPortfolioHandler creates a new PortfolioHandler with the provided service dependencies.
func NewPortfolioHandler(portfolioService *service.PortfolioService, valuationService *service.ValuationService) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService: portfolioService,
		valuationService: valuationService,
	}
}

// Portfolios handles GET requests to retrieve all portfolios.
//
// Endpoint: GET /api/portfolio?includeArchived=true
// Response: 200 OK with array of Portfolio
// Error: 500 Internal Server Error if retrieval fails
func (h *PortfolioHandler) Portfolios(w http.ResponseWriter, r *http.Request) {
	filter := model.PortfolioFilter{
		IncludeArchived: r.URL.Query().Get("includeArchived") == "true",
	}

	portfolios, err := h.portfolioService.GetAll(filter)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrievePortfolios.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, portfolios)
}

// GetPortfolio handles GET requests to retrieve a single portfolio by ID.
//
// Endpoint: GET /api/portfolio/{uuid}
// Response: 200 OK with Portfolio
// Error: 404 Not Found if portfolio not found
// Error: 500 Internal Server Error if retrieval fails
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "uuid")

	portfolio, err := h.portfolioService.GetByID(portfolioID)
	if err != nil {
		if errors.Is(err, apperrors.ErrPortfolioNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrPortfolioNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrievePortfolio.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, portfolio)
}

// CreatePortfolio handles POST requests to create a new portfolio.
//
// Endpoint: POST /api/portfolio
// Request Body: CreatePortfolioRequest (name, description)
// Response: 201 Created with Portfolio
// Error: 400 Bad Request if validation fails or request body is invalid
// Error: 500 Internal Server Error if creation fails
func (h *PortfolioHandler) CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CreatePortfolioRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateCreatePortfolio(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	portfolio, err := h.portfolioService.Create(req.Name, req.Description)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, "failed to create portfolio", err.Error())
		return
	}

	response.RespondJSON(w, http.StatusCreated, portfolio)
}

// UpdatePortfolio handles PUT requests to update an existing portfolio.
//
// Endpoint: PUT /api/portfolio/{uuid}
// Request Body: UpdatePortfolioRequest (name, description, isArchived; all optional)
// Response: 200 OK with Portfolio
// Error: 400 Bad Request if validation fails or request body is invalid
// Error: 404 Not Found if portfolio not found
// Error: 500 Internal Server Error if update fails
func (h *PortfolioHandler) UpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "uuid")

	req, err := parseJSON[request.UpdatePortfolioRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateUpdatePortfolio(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	portfolio, err := h.portfolioService.Update(portfolioID, req.Name, req.Description, req.IsArchived)
	if err != nil {
		if errors.Is(err, apperrors.ErrPortfolioNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrPortfolioNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, "failed to update portfolio", err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, portfolio)
}

// PositionResponse represents one held ticker's cost-basis summary.
// Monetary amounts are rounded to two decimal places for presentation.
type PositionResponse struct {
	Ticker                string `json:"ticker"`
	Shares                string `json:"shares"`
	AverageCost           string `json:"averageCost"`
	CostBasis             string `json:"costBasis"`
	MarketValue           string `json:"marketValue"`
	UnrealizedGainLoss    string `json:"unrealizedGainLoss"`
	UnrealizedGainLossPct string `json:"unrealizedGainLossPct"`
	RealizedGainLoss      string `json:"realizedGainLoss"`
}

// Positions handles GET requests to retrieve the portfolio's per-ticker
// cost-basis summaries.
//
// Endpoint: GET /api/portfolio/{uuid}/positions?date=YYYY-MM-DD
// Response: 200 OK with array of PositionResponse
// Error: 400 Bad Request if the date is malformed
// Error: 404 Not Found if portfolio not found
// Error: 500 Internal Server Error if retrieval fails
func (h *PortfolioHandler) Positions(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "uuid")

	asOf, err := parseDateParam(r.URL.Query().Get("date"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid date", err.Error())
		return
	}

	summaries, err := h.valuationService.PositionSummaries(r.Context(), portfolioID, asOf)
	if err != nil {
		if errors.Is(err, apperrors.ErrPortfolioNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrPortfolioNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrievePortfolio.Error(), err.Error())
		return
	}

	positions := make([]PositionResponse, 0, len(summaries))
	for _, s := range summaries {
		positions = append(positions, newPositionResponse(s))
	}
	response.RespondJSON(w, http.StatusOK, positions)
}

func newPositionResponse(s ledger.Summary) PositionResponse {
	return PositionResponse{
		Ticker:                s.Ticker,
		Shares:                s.Shares.String(),
		AverageCost:           s.AverageCost.Round(2).String(),
		CostBasis:             s.CostBasis.Round(2).String(),
		MarketValue:           s.MarketValue.Round(2).String(),
		UnrealizedGainLoss:    s.UnrealizedGainLoss.Round(2).String(),
		UnrealizedGainLossPct: s.UnrealizedGainLossPct.Round(2).String(),
		RealizedGainLoss:      s.RealizedGainLoss.Round(2).String(),
	}
}
