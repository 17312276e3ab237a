package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finsync/engine/internal/services"
	appErr "github.com/finsync/engine/pkg/errors"
	"github.com/finsync/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.UseNop()
	m.Run()
}

type mockExtractionService struct {
	mock.Mock
}

func (m *mockExtractionService) Ingest(ctx context.Context, userID string, files []services.IncomingFile) (*services.IngestResult, error) {
	args := m.Called(ctx, userID, files)
	if v := args.Get(0); v != nil {
		return v.(*services.IngestResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockExtractionService) Process(ctx context.Context, p services.ExtractPayload) (int, error) {
	args := m.Called(ctx, p)
	return args.Int(0), args.Error(1)
}

func (m *mockExtractionService) Abandon(ctx context.Context, p services.ExtractPayload, cause error) {
	m.Called(ctx, p, cause)
}

func extractTask(t *testing.T, p services.ExtractPayload) *asynq.Task {
	t.Helper()
	b, err := json.Marshal(p)
	require.NoError(t, err)
	return asynq.NewTask(services.TaskExtractInvoices, b)
}

func TestExtractTaskHandler_HandleExtract(t *testing.T) {
	payload := services.ExtractPayload{FileID: "f1", UserID: "u1", Path: "/tmp/f1.pdf", FileName: "f1.pdf"}

	t.Run("success", func(t *testing.T) {
		svc := &mockExtractionService{}
		svc.On("Process", mock.Anything, payload).Return(3, nil).Once()

		err := NewExtractTaskHandler(svc).HandleExtract(context.Background(), extractTask(t, payload))
		require.NoError(t, err)
		svc.AssertExpectations(t)
	})

	t.Run("non-retryable failure skips retry", func(t *testing.T) {
		svc := &mockExtractionService{}
		cause := appErr.Dependency(errors.New("bad frame"), "Extraction engine returned a malformed response", false)
		svc.On("Process", mock.Anything, payload).Return(0, cause).Once()

		err := NewExtractTaskHandler(svc).HandleExtract(context.Background(), extractTask(t, payload))
		require.Error(t, err)
		assert.ErrorIs(t, err, asynq.SkipRetry)
		svc.AssertNotCalled(t, "Abandon", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("retryable failure without budget is abandoned", func(t *testing.T) {
		svc := &mockExtractionService{}
		cause := appErr.Wrap(errors.New("deadline"), appErr.CodeDeadline, "Extraction timed out").WithRetryable(true)
		svc.On("Process", mock.Anything, payload).Return(0, cause).Once()
		svc.On("Abandon", mock.Anything, payload, cause).Once()

		err := NewExtractTaskHandler(svc).HandleExtract(context.Background(), extractTask(t, payload))
		require.Error(t, err)
		assert.ErrorIs(t, err, asynq.SkipRetry)
		svc.AssertExpectations(t)
	})

	t.Run("bad payload", func(t *testing.T) {
		svc := &mockExtractionService{}
		h := NewExtractTaskHandler(svc)

		err := h.HandleExtract(context.Background(), asynq.NewTask(services.TaskExtractInvoices, []byte("{")))
		assert.ErrorIs(t, err, asynq.SkipRetry)

		err = h.HandleExtract(context.Background(), extractTask(t, services.ExtractPayload{FileID: "f1"}))
		assert.ErrorIs(t, err, asynq.SkipRetry)
		svc.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
	})
}

func TestRegisterMountsExtractHandler(t *testing.T) {
	svc := &mockExtractionService{}
	svc.On("Process", mock.Anything, mock.Anything).Return(0, nil).Once()

	mux := asynq.NewServeMux()
	NewExtractTaskHandler(svc).Register(mux)

	task := extractTask(t, services.ExtractPayload{FileID: "f", UserID: "u", Path: "/p"})
	require.NoError(t, mux.ProcessTask(context.Background(), task))
	svc.AssertExpectations(t)
}
