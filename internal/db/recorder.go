package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/USA-RedDragon/rpc-tester/internal/db/models"
	"github.com/USA-RedDragon/rpc-tester/internal/tester"
	"github.com/mattn/go-nulltype"
	"gorm.io/gorm"
)

// HistoryRecorder writes every finished round trip to the history table.
type HistoryRecorder struct {
	db *gorm.DB
}

func NewHistoryRecorder(db *gorm.DB) *HistoryRecorder {
	return &HistoryRecorder{db: db}
}

func (h *HistoryRecorder) Record(ctx context.Context, sessionID string, result *tester.Result) error {
	entry, err := historyEntryFor(sessionID, result)
	if err != nil {
		return err
	}
	if err := h.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}

func historyEntryFor(sessionID string, result *tester.Result) (models.HistoryEntry, error) {
	request, err := rawJSON(result.Request)
	if err != nil {
		return models.HistoryEntry{}, fmt.Errorf("failed to encode request: %w", err)
	}
	response, err := rawJSON(result.Response)
	if err != nil {
		return models.HistoryEntry{}, fmt.Errorf("failed to encode response: %w", err)
	}
	entry := models.HistoryEntry{
		SessionID:  sessionID,
		Source:     string(result.Source),
		Endpoint:   result.Endpoint,
		Method:     result.Method,
		Request:    request,
		StatusCode: result.StatusCode,
		Response:   response,
		Warning:    result.Warning,
		DurationMS: result.DurationMS,
		CreatedAt:  result.CompletedAt,
	}
	if result.RPCError != nil {
		entry.RPCErrorCode = nulltype.NullInt64Of(int64(result.RPCError.Code))
		entry.RPCErrorMessage = nulltype.NullStringOf(result.RPCError.Message)
	}
	if result.TransportError != nil {
		entry.TransportError = nulltype.NullStringOf(result.TransportError.Message)
	}
	return entry, nil
}

func rawJSON(v any) (models.RawJSON, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return models.RawJSON(data), nil
}
