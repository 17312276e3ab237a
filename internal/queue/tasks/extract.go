package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/finsync/engine/internal/services"
	appErr "github.com/finsync/engine/pkg/errors"
	"github.com/finsync/engine/pkg/logger"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// ExtractTaskHandler runs queued invoice extractions.
type ExtractTaskHandler struct {
	extraction services.ExtractionService
}

func NewExtractTaskHandler(extraction services.ExtractionService) *ExtractTaskHandler {
	return &ExtractTaskHandler{extraction: extraction}
}

// Register mounts the handler on mux.
func (h *ExtractTaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(services.TaskExtractInvoices, h.HandleExtract)
}

// HandleExtract processes one upload. Retryable extractor failures are handed
// back to asynq until the retry budget is spent; anything else is final.
func (h *ExtractTaskHandler) HandleExtract(ctx context.Context, t *asynq.Task) error {
	var p services.ExtractPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		logger.L().Error("invalid extract task payload", zap.Error(err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.FileID == "" || p.UserID == "" || p.Path == "" {
		logger.L().Error("incomplete extract task payload", zap.String("file_id", p.FileID))
		return fmt.Errorf("incomplete payload: %w", asynq.SkipRetry)
	}

	retried, _ := asynq.GetRetryCount(ctx)
	logger.L().Info("handling extract task", zap.String("file_id", p.FileID), zap.Int("attempt", retried+1))

	n, err := h.extraction.Process(ctx, p)
	if err == nil {
		logger.L().Info("extract task done", zap.String("file_id", p.FileID), zap.Int("invoices", n))
		return nil
	}

	retry, _ := appErr.Retryable(err)
	if !retry {
		logger.L().Error("extract task failed", zap.Error(err), zap.String("file_id", p.FileID))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	maxRetry, _ := asynq.GetMaxRetry(ctx)
	if retried >= maxRetry {
		logger.L().Error("extract task out of retries", zap.Error(err), zap.String("file_id", p.FileID))
		h.extraction.Abandon(ctx, p, err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	logger.L().Warn("extract task will retry", zap.Error(err), zap.String("file_id", p.FileID))
	return err
}
