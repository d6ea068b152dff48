package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/monli/monli/internal/zakat/query"
	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/middleware"
)

type ZakatCalculator interface {
	Calculate(context.Context, cqrs.ZakatQuery) (*query.Result, error)
}

type ZakatHandler struct {
	calculator ZakatCalculator
}

type CalculateZakatRequest struct {
	NisabBasis         string           `json:"nisabBasis" validate:"omitempty,oneof=gold silver"`
	GoldPricePerGram   *decimal.Decimal `json:"goldPricePerGram" validate:"omitempty,gt=0"`
	SilverPricePerGram *decimal.Decimal `json:"silverPricePerGram" validate:"omitempty,gt=0"`
	AdditionalAssets   decimal.Decimal  `json:"additionalAssets" validate:"gte=0"`
	Liabilities        decimal.Decimal  `json:"liabilities" validate:"gte=0"`
}

func NewZakatHandler(calculator ZakatCalculator) *ZakatHandler {
	return &ZakatHandler{calculator: calculator}
}

func (h *ZakatHandler) Calculate(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req CalculateZakatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	result, err := h.calculator.Calculate(c.Request.Context(), cqrs.ZakatQuery{
		UserID:             userID,
		NisabBasis:         req.NisabBasis,
		GoldPricePerGram:   req.GoldPricePerGram,
		SilverPricePerGram: req.SilverPricePerGram,
		AdditionalAssets:   req.AdditionalAssets,
		Liabilities:        req.Liabilities,
	})
	if err != nil {
		if errors.Is(err, cqrs.ErrInvalidAmount) {
			middleware.RespondWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to calculate zakat")
		return
	}

	c.JSON(http.StatusOK, result)
}
