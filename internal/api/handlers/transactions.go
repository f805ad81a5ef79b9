package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/portfoliovalue/backend/internal/api/request"
	"github.com/portfoliovalue/backend/internal/api/response"
	"github.com/portfoliovalue/backend/internal/apperrors"
	"github.com/portfoliovalue/backend/internal/model"
	"github.com/portfoliovalue/backend/internal/service"
	"github.com/portfoliovalue/backend/internal/validation"
)

// TransactionHandler handles HTTP requests for transaction endpoints.
// It serves as the HTTP layer adapter, parsing requests and delegating
// business logic to the transactionService.
type TransactionHandler struct {
	transactionService *service.TransactionService
}

// NewTransactionHandler creates a new TransactionHandler with the provided service dependency.
func NewTransactionHandler(transactionService *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
	}
}

// MutationResponse pairs the written transaction with the recalculation it
// triggered, so the client can see how far back the series was rebuilt.
type MutationResponse struct {
	Transaction   *model.Transaction           `json:"transaction,omitempty"`
	Recalculation *service.RecalculationResult `json:"recalculation"`
}

// TransactionsPerPortfolio handles GET requests to retrieve all transactions for a portfolio.
// Transactions are returned in (date, insertion sequence) order.
//
// Endpoint: GET /api/portfolio/{uuid}/transaction
// Response: 200 OK with array of Transaction
// Error: 400 Bad Request if portfolio ID is invalid (validated by middleware)
// Error: 404 Not Found if portfolio not found
// Error: 500 Internal Server Error if retrieval fails
func (h *TransactionHandler) TransactionsPerPortfolio(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "uuid")

	transactions, err := h.transactionService.GetByPortfolio(portfolioID)
	if err != nil {
		if errors.Is(err, apperrors.ErrPortfolioNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrPortfolioNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveTransactions.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, transactions)
}

// GetTransaction handles GET requests to retrieve a single transaction by ID.
//
// Endpoint: GET /api/transaction/{uuid}
// Response: 200 OK with Transaction
// Error: 400 Bad Request if transaction ID is invalid (validated by middleware)
// Error: 404 Not Found if transaction not found
// Error: 500 Internal Server Error if retrieval fails
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "uuid")

	transaction, err := h.transactionService.GetByID(transactionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrTransactionNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrTransactionNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveTransaction.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, transaction)
}

// CreateTransaction handles POST requests to create a new transaction.
// The transaction is validated against the full ledger before anything is
// written; an oversell is rejected with 409 and the ledger unchanged.
//
// Endpoint: POST /api/transaction
// Request Body: CreateTransactionRequest (portfolioId, date, type, ticker, shares, price, amount)
// Response: 201 Created with MutationResponse
// Error: 400 Bad Request if validation fails or request body is invalid
// Error: 404 Not Found if portfolio not found
// Error: 409 Conflict if a sale would exceed available shares
// Error: 500 Internal Server Error if creation fails
func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CreateTransactionRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateCreateTransaction(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	date, err := parseDateParam(req.Date)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid date", err.Error())
		return
	}

	transaction := &model.Transaction{
		PortfolioID: req.PortfolioID,
		Ticker:      req.Ticker,
		Date:        date,
		Type:        req.Type,
		Shares:      req.Shares,
		Price:       req.Price,
		Amount:      req.Amount,
	}

	result, err := h.transactionService.Create(r.Context(), transaction)
	if err != nil {
		respondMutationError(w, err, "failed to create transaction")
		return
	}

	response.RespondJSON(w, http.StatusCreated, MutationResponse{
		Transaction:   transaction,
		Recalculation: result,
	})
}

// UpdateTransaction handles PUT requests to update an existing transaction.
// Omitted fields keep their current values. The rebuilt valuation window
// starts at the earlier of the old and new transaction dates.
//
// Endpoint: PUT /api/transaction/{uuid}
// Request Body: UpdateTransactionRequest (all fields optional)
// Response: 200 OK with MutationResponse
// Error: 400 Bad Request if validation fails or request body is invalid
// Error: 404 Not Found if transaction not found
// Error: 409 Conflict if the edit would make any sale exceed available shares
// Error: 500 Internal Server Error if update fails
func (h *TransactionHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "uuid")

	req, err := parseJSON[request.UpdateTransactionRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateUpdateTransaction(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	existing, err := h.transactionService.GetByID(transactionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrTransactionNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrTransactionNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveTransaction.Error(), err.Error())
		return
	}

	updated := existing
	if req.Ticker != nil {
		updated.Ticker = *req.Ticker
	}
	if req.Date != nil {
		date, err := parseDateParam(*req.Date)
		if err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid date", err.Error())
			return
		}
		updated.Date = date
	}
	if req.Type != nil {
		updated.Type = *req.Type
	}
	if req.Shares.Valid {
		updated.Shares = req.Shares
	}
	if req.Price.Valid {
		updated.Price = req.Price
	}
	if req.Amount.Valid {
		updated.Amount = req.Amount
	}

	result, err := h.transactionService.Update(r.Context(), &updated)
	if err != nil {
		respondMutationError(w, err, "failed to update transaction")
		return
	}

	response.RespondJSON(w, http.StatusOK, MutationResponse{
		Transaction:   &updated,
		Recalculation: result,
	})
}

// DeleteTransaction handles DELETE requests to remove a transaction.
// Deleting a buy that later sales depend on is rejected, since the
// remaining ledger would oversell on replay.
//
// Endpoint: DELETE /api/transaction/{uuid}
// Response: 200 OK with MutationResponse (recalculation only)
// Error: 400 Bad Request if transaction ID is invalid (validated by middleware)
// Error: 404 Not Found if transaction not found
// Error: 409 Conflict if removal would make any sale exceed available shares
// Error: 500 Internal Server Error if deletion fails
func (h *TransactionHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "uuid")

	result, err := h.transactionService.Delete(r.Context(), transactionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrTransactionNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrTransactionNotFound.Error(), err.Error())
			return
		}
		respondMutationError(w, err, "failed to delete transaction")
		return
	}

	response.RespondJSON(w, http.StatusOK, MutationResponse{Recalculation: result})
}

// RealizedGains handles GET requests to retrieve the realized gain/loss
// history for a portfolio in sale-date order.
//
// Endpoint: GET /api/portfolio/{uuid}/realized-gains
// Response: 200 OK with array of RealizedGainLoss
// Error: 400 Bad Request if portfolio ID is invalid (validated by middleware)
// Error: 404 Not Found if portfolio not found
// Error: 500 Internal Server Error if retrieval fails
func (h *TransactionHandler) RealizedGains(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "uuid")

	gains, err := h.transactionService.GetRealizedGains(portfolioID)
	if err != nil {
		if errors.Is(err, apperrors.ErrPortfolioNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrPortfolioNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveTransactions.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, gains)
}

// respondMutationError maps ledger mutation failures to HTTP statuses.
func respondMutationError(w http.ResponseWriter, err error, fallback string) {
	var insufficient *apperrors.InsufficientSharesError
	var invalid *apperrors.ValidationError
	var invalidFields *validation.Error
	switch {
	case errors.Is(err, apperrors.ErrPortfolioNotFound):
		response.RespondError(w, http.StatusNotFound, apperrors.ErrPortfolioNotFound.Error(), err.Error())
	case errors.As(err, &insufficient):
		response.RespondError(w, http.StatusConflict, "insufficient shares", err.Error())
	case errors.As(err, &invalid), errors.As(err, &invalidFields):
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
	default:
		response.RespondError(w, http.StatusInternalServerError, fallback, err.Error())
	}
}
