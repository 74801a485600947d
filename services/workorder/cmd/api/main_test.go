package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autofix-platform/autofix/pkg/logging"
	"github.com/autofix-platform/autofix/pkg/outbox"
)

type fakeOutboxRepo struct {
	msgs     map[string]*outbox.Message
	requeued []string
}

func newFakeOutboxRepo() *fakeOutboxRepo {
	return &fakeOutboxRepo{msgs: map[string]*outbox.Message{}}
}

func (f *fakeOutboxRepo) Save(ctx context.Context, msg *outbox.Message) error {
	f.msgs[msg.ID] = msg
	return nil
}

func (f *fakeOutboxRepo) SaveAll(ctx context.Context, msgs []*outbox.Message) error {
	for _, msg := range msgs {
		f.msgs[msg.ID] = msg
	}
	return nil
}

func (f *fakeOutboxRepo) FindPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	return nil, nil
}

func (f *fakeOutboxRepo) MarkProcessed(ctx context.Context, id string) (bool, error) {
	return true, nil
}

func (f *fakeOutboxRepo) MarkFailed(ctx context.Context, id string, errorMsg string) error {
	return nil
}

func (f *fakeOutboxRepo) IncrementRetry(ctx context.Context, id string, errorMsg string) (int, error) {
	return 0, nil
}

func (f *fakeOutboxRepo) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeOutboxRepo) Requeue(ctx context.Context, id string) error {
	f.requeued = append(f.requeued, id)
	return nil
}

func (f *fakeOutboxRepo) GetByID(ctx context.Context, id string) (*outbox.Message, error) {
	msg, ok := f.msgs[id]
	if !ok {
		return nil, outbox.ErrMessageNotFound
	}
	return msg, nil
}

func (f *fakeOutboxRepo) FindByAggregateID(ctx context.Context, aggregateID string) ([]*outbox.Message, error) {
	return nil, nil
}

func newRequeueRouter(repo outbox.Repository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logging.New(&logging.Config{Level: logging.LevelError, ServiceName: "test"})
	router := gin.New()
	router.POST("/internal/outbox/:id/requeue", requeueOutboxHandler(repo, logger))
	return router
}

func TestRequeueOutboxHandler_UnknownID(t *testing.T) {
	router := newRequeueRouter(newFakeOutboxRepo())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/outbox/missing/requeue", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequeueOutboxHandler_NotFailed(t *testing.T) {
	repo := newFakeOutboxRepo()
	repo.msgs["msg-1"] = &outbox.Message{ID: "msg-1", Status: outbox.StatusProcessed}
	router := newRequeueRouter(repo)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/outbox/msg-1/requeue", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, repo.requeued)
}

func TestRequeueOutboxHandler_RequeuesFailedMessage(t *testing.T) {
	repo := newFakeOutboxRepo()
	repo.msgs["msg-1"] = &outbox.Message{ID: "msg-1", Status: outbox.StatusFailed, EventName: "workorder.approved"}
	router := newRequeueRouter(repo)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/outbox/msg-1/requeue", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"msg-1"}, repo.requeued)
}
