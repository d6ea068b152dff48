package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/monli/monli/internal/syncqueue"
	"github.com/monli/monli/shared/models"
)

type recordingQueue struct {
	mutations []syncqueue.Mutation
	failAfter int
}

func (q *recordingQueue) Enqueue(_ context.Context, m syncqueue.Mutation) error {
	if q.failAfter > 0 && len(q.mutations) >= q.failAfter {
		return errors.New("broker unavailable")
	}
	q.mutations = append(q.mutations, m)
	return nil
}

const (
	mutationA = "0d9b5f3e-2c59-4b53-9d0e-7f7a1c0e9a11"
	mutationB = "7e1c2d3f-4a5b-4c6d-8e9f-0a1b2c3d4e5f"
	txnID     = "a3c1f0b2-8d7e-4f6a-9b5c-1e2d3f4a5b6c"
	walletID  = "5b3f7c2a-1d4e-4a6b-8c9d-0e1f2a3b4c5d"
)

func newSyncTestRouter(q Enqueuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", "usr-001")
		c.Next()
	})
	h := NewSyncHandler(q, zap.NewNop())
	r.POST("/v1/sync", h.Sync)
	return r
}

func postSync(router *gin.Engine, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, "/v1/sync", strings.NewReader(string(b)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createBody(id string) map[string]any {
	return map[string]any{
		"clientMutationId": id,
		"op":               "create",
		"transactionId":    txnID,
		"transaction": map[string]any{
			"type":       "expense",
			"amount":     "12.50",
			"accountId":  walletID,
			"occurredOn": "2024-03-04",
		},
	}
}

func TestSync(t *testing.T) {
	deleteBody := map[string]any{"clientMutationId": mutationB, "op": "delete", "transactionId": txnID}

	tests := []struct {
		name         string
		body         any
		expectedCode int
		wantQueued   int
	}{
		{
			name:         "create and delete accepted",
			body:         map[string]any{"mutations": []any{createBody(mutationA), deleteBody}},
			expectedCode: http.StatusAccepted,
			wantQueued:   2,
		},
		{
			name:         "empty batch",
			body:         map[string]any{"mutations": []any{}},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "create without transaction",
			body: map[string]any{"mutations": []any{
				map[string]any{"clientMutationId": mutationA, "op": "create", "transactionId": txnID},
			}},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "unknown op",
			body: map[string]any{"mutations": []any{
				map[string]any{"clientMutationId": mutationA, "op": "upsert", "transactionId": txnID},
			}},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "missing transaction id",
			body: map[string]any{"mutations": []any{
				map[string]any{"clientMutationId": mutationA, "op": "delete"},
			}},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "invalid nested amount rejects whole batch",
			body: func() any {
				bad := createBody(mutationB)
				bad["transaction"].(map[string]any)["amount"] = "0"
				return map[string]any{"mutations": []any{createBody(mutationA), bad}}
			}(),
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "malformed body",
			body:         "not an object",
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &recordingQueue{}
			w := postSync(newSyncTestRouter(q), tt.body)

			assert.Equal(t, tt.expectedCode, w.Code, w.Body.String())
			assert.Len(t, q.mutations, tt.wantQueued)
		})
	}
}

func TestSync_QueuedMutation(t *testing.T) {
	q := &recordingQueue{}
	w := postSync(newSyncTestRouter(q), map[string]any{"mutations": []any{createBody(mutationA)}})
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp SyncResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{mutationA}, resp.Accepted)

	require.Len(t, q.mutations, 1)
	m := q.mutations[0]
	assert.Equal(t, "usr-001", m.UserID)
	assert.Equal(t, syncqueue.OpCreate, m.Op)
	assert.Equal(t, txnID, m.TransactionID)
	require.NotNil(t, m.Transaction)
	assert.Equal(t, models.TransactionExpense, m.Transaction.Type)
	assert.Equal(t, "12.5", m.Transaction.Amount.String())
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), m.Transaction.OccurredOn)
	assert.False(t, m.EnqueuedAt.IsZero())
}

func TestSync_EnqueueFailureReportsAccepted(t *testing.T) {
	q := &recordingQueue{failAfter: 1}
	body := map[string]any{"mutations": []any{createBody(mutationA), createBody(mutationB)}}

	w := postSync(newSyncTestRouter(q), body)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp struct {
		Accepted []string `json:"accepted"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{mutationA}, resp.Accepted)
}
