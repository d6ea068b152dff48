package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/monli/monli/internal/transaction/repository"
	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/middleware"
	"github.com/monli/monli/shared/models"
	"github.com/monli/monli/shared/utils"
)

// TransactionCommander defines the write-side operations used by TransactionHandler.
type TransactionCommander interface {
	CreateTransaction(context.Context, cqrs.CreateTransactionCommand) (*models.Transaction, error)
	UpdateTransaction(context.Context, cqrs.UpdateTransactionCommand) (*models.Transaction, error)
	DeleteTransaction(context.Context, cqrs.DeleteTransactionCommand) error
}

// TransactionQuerier defines the read-side operations used by TransactionHandler.
type TransactionQuerier interface {
	GetTransaction(context.Context, cqrs.GetTransactionQuery) (*models.Transaction, error)
	ListTransactions(context.Context, cqrs.ListTransactionsQuery) ([]models.Transaction, error)
}

type TransactionHandler struct {
	commands TransactionCommander
	queries  TransactionQuerier
}

// TransactionRequest is the body of both create and full-replacement update.
// Per-type shape rules are enforced by the command service.
type TransactionRequest struct {
	Type          string          `json:"type" validate:"required,oneof=income expense transfer"`
	Amount        decimal.Decimal `json:"amount" validate:"required,gt=0"`
	AccountID     string          `json:"accountId" validate:"omitempty,uuid"`
	FromAccountID string          `json:"fromAccountId" validate:"omitempty,uuid"`
	ToAccountID   string          `json:"toAccountId" validate:"omitempty,uuid"`
	CategoryID    string          `json:"categoryId" validate:"omitempty,uuid"`
	OccurredOn    string          `json:"occurredOn" validate:"omitempty,datetime=2006-01-02"`
	Note          string          `json:"note" validate:"max=500"`
}

type ListTransactionsRequest struct {
	AccountID  string `form:"accountId" validate:"omitempty,uuid"`
	CategoryID string `form:"categoryId" validate:"omitempty,uuid"`
	Type       string `form:"type" validate:"omitempty,oneof=income expense transfer"`
	From       string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To         string `form:"to" validate:"omitempty,datetime=2006-01-02"`
	Limit      int    `form:"limit" validate:"omitempty,min=1,max=200"`
	Offset     int    `form:"offset" validate:"omitempty,min=0"`
}

type ListTransactionsResponse struct {
	Transactions []models.Transaction `json:"transactions"`
	Limit        int                  `json:"limit"`
	Offset       int                  `json:"offset"`
}

func NewTransactionHandler(commands TransactionCommander, queries TransactionQuerier) *TransactionHandler {
	return &TransactionHandler{commands: commands, queries: queries}
}

func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	fields, ok := bindTransaction(c)
	if !ok {
		return
	}

	txn, err := h.commands.CreateTransaction(c.Request.Context(), cqrs.CreateTransactionCommand{
		UserID:            userID,
		TransactionFields: fields,
	})
	if err != nil {
		respondTransactionError(c, err, "Failed to create transaction")
		return
	}

	c.JSON(http.StatusCreated, txn)
}

func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req ListTransactionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	q := cqrs.ListTransactionsQuery{
		UserID:     userID,
		AccountID:  req.AccountID,
		CategoryID: req.CategoryID,
		Type:       req.Type,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}
	// Both dates passed the datetime validator above.
	if req.From != "" {
		q.From, _ = utils.ParseDate(req.From)
	}
	if req.To != "" {
		q.To, _ = utils.ParseDate(req.To)
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		middleware.RespondWithError(c, http.StatusBadRequest, "to must not be before from")
		return
	}
	if q.Limit == 0 {
		q.Limit = repository.DefaultListLimit
	}

	txns, err := h.queries.ListTransactions(c.Request.Context(), q)
	if err != nil {
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	c.JSON(http.StatusOK, ListTransactionsResponse{Transactions: txns, Limit: q.Limit, Offset: q.Offset})
}

func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	transactionID := c.Param("transactionId")
	userID, _ := middleware.GetUserID(c)

	txn, err := h.queries.GetTransaction(c.Request.Context(), cqrs.GetTransactionQuery{
		TransactionID:    transactionID,
		RequestingUserID: userID,
	})
	if err != nil {
		respondTransactionError(c, err, "Failed to fetch transaction")
		return
	}

	c.JSON(http.StatusOK, txn)
}

func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	transactionID := c.Param("transactionId")
	userID, _ := middleware.GetUserID(c)

	fields, ok := bindTransaction(c)
	if !ok {
		return
	}

	txn, err := h.commands.UpdateTransaction(c.Request.Context(), cqrs.UpdateTransactionCommand{
		TransactionID:     transactionID,
		RequestingUserID:  userID,
		TransactionFields: fields,
	})
	if err != nil {
		respondTransactionError(c, err, "Failed to update transaction")
		return
	}

	c.JSON(http.StatusOK, txn)
}

func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	transactionID := c.Param("transactionId")
	userID, _ := middleware.GetUserID(c)

	err := h.commands.DeleteTransaction(c.Request.Context(), cqrs.DeleteTransactionCommand{
		TransactionID:    transactionID,
		RequestingUserID: userID,
	})
	if err != nil {
		respondTransactionError(c, err, "Failed to delete transaction")
		return
	}

	c.Status(http.StatusNoContent)
}

// bindTransaction decodes and validates a TransactionRequest. It writes the
// error response itself and reports false when the request is unusable.
func bindTransaction(c *gin.Context) (cqrs.TransactionFields, bool) {
	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return cqrs.TransactionFields{}, false
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return cqrs.TransactionFields{}, false
	}
	return req.Fields(), true
}

// Fields converts the request into command fields. OccurredOn must already
// have passed validation.
func (r TransactionRequest) Fields() cqrs.TransactionFields {
	var occurredOn time.Time
	if r.OccurredOn != "" {
		occurredOn, _ = utils.ParseDate(r.OccurredOn)
	}
	return cqrs.TransactionFields{
		Type:          r.Type,
		Amount:        r.Amount,
		AccountID:     r.AccountID,
		FromAccountID: r.FromAccountID,
		ToAccountID:   r.ToAccountID,
		CategoryID:    r.CategoryID,
		OccurredOn:    occurredOn,
		Note:          r.Note,
	}
}

func respondTransactionError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, cqrs.ErrInvalidAmount), errors.Is(err, cqrs.ErrInvalidTransaction):
		middleware.RespondWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, cqrs.ErrTransactionNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, cqrs.ErrAccountNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Account not found")
	case errors.Is(err, cqrs.ErrCategoryNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Category not found")
	case errors.Is(err, cqrs.ErrForbidden):
		middleware.RespondWithError(c, http.StatusForbidden, "You can only access your own records")
	case errors.Is(err, cqrs.ErrTransactionExists):
		middleware.RespondWithError(c, http.StatusConflict, "Transaction already exists")
	case errors.Is(err, cqrs.ErrInsufficientFunds):
		middleware.RespondWithError(c, http.StatusUnprocessableEntity, "Insufficient funds in source account")
	case errors.Is(err, cqrs.ErrAccountArchived):
		middleware.RespondWithError(c, http.StatusUnprocessableEntity, "Account is archived")
	case errors.Is(err, cqrs.ErrCategoryMismatch):
		middleware.RespondWithError(c, http.StatusUnprocessableEntity, "Category kind does not match transaction type")
	default:
		middleware.RespondWithError(c, http.StatusInternalServerError, fallback)
	}
}
