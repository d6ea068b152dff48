package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/monli/monli/internal/syncqueue"
	txnhandler "github.com/monli/monli/internal/transaction/handler"
	"github.com/monli/monli/shared/middleware"
)

// MaxBatch bounds the number of mutations accepted per request.
const MaxBatch = 100

type Enqueuer interface {
	Enqueue(ctx context.Context, m syncqueue.Mutation) error
}

type SyncHandler struct {
	queue  Enqueuer
	logger *zap.Logger
}

// MutationRequest is one offline change. Every op names the transaction it
// targets so replays stay idempotent.
type MutationRequest struct {
	ClientMutationID string                         `json:"clientMutationId" validate:"required,uuid"`
	Op               string                         `json:"op" validate:"required,oneof=create update delete"`
	TransactionID    string                         `json:"transactionId" validate:"required,uuid"`
	Transaction      *txnhandler.TransactionRequest `json:"transaction" validate:"required_unless=Op delete,excluded_if=Op delete"`
}

type SyncRequest struct {
	Mutations []MutationRequest `json:"mutations" validate:"required,min=1,max=100,dive"`
}

type SyncResponse struct {
	Accepted []string `json:"accepted"`
}

func NewSyncHandler(queue Enqueuer, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{queue: queue, logger: logger}
}

// Sync validates the whole batch, then queues each mutation in order. A
// batch with any invalid mutation is rejected without queueing anything.
func (h *SyncHandler) Sync(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	now := time.Now().UTC()
	accepted := make([]string, 0, len(req.Mutations))
	for _, mr := range req.Mutations {
		m := syncqueue.Mutation{
			ClientMutationID: mr.ClientMutationID,
			UserID:           userID,
			Op:               mr.Op,
			TransactionID:    mr.TransactionID,
			EnqueuedAt:       now,
		}
		if mr.Transaction != nil {
			m.Transaction = syncqueue.FieldsFrom(mr.Transaction.Fields())
		}
		if err := h.queue.Enqueue(c.Request.Context(), m); err != nil {
			h.logger.Error("Failed to enqueue sync mutation",
				zap.String("clientMutationId", m.ClientMutationID),
				zap.Int("accepted", len(accepted)),
				zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"message":  "Failed to queue mutations",
				"accepted": accepted,
			})
			return
		}
		accepted = append(accepted, m.ClientMutationID)
	}

	c.JSON(http.StatusAccepted, SyncResponse{Accepted: accepted})
}
