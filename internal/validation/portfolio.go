package validation

import (
	"strings"

	"github.com/portfoliovalue/backend/internal/api/request"
)

const (
	maxPortfolioNameLen        = 100
	maxPortfolioDescriptionLen = 500
)

// ValidateCreatePortfolio validates a portfolio creation request: name is
// required and both text fields are length-bounded.
func ValidateCreatePortfolio(req request.CreatePortfolioRequest) error {
	errors := make(map[string]string)

	if strings.TrimSpace(req.Name) == "" {
		errors["name"] = "name is required"
	} else if len(req.Name) > maxPortfolioNameLen {
		errors["name"] = "name must be 100 characters or less"
	}
	if len(req.Description) > maxPortfolioDescriptionLen {
		errors["description"] = "description must be 500 characters or less"
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}

// ValidateUpdatePortfolio validates a portfolio update request. Only fields
// the caller provided are checked; an omitted field keeps its stored value.
func ValidateUpdatePortfolio(req request.UpdatePortfolioRequest) error {
	errors := make(map[string]string)

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			errors["name"] = "name cannot be empty"
		} else if len(*req.Name) > maxPortfolioNameLen {
			errors["name"] = "name must be 100 characters or less"
		}
	}
	if req.Description != nil && len(*req.Description) > maxPortfolioDescriptionLen {
		errors["description"] = "description must be 500 characters or less"
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}
