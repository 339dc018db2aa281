package contract

import (
	"context"

	"ai-waiter-service/internal/entity"
)

type TranscriptRepository interface {
	CreateBatch(ctx context.Context, turns []*entity.TranscriptTurn) error
	FindBySession(ctx context.Context, sessionId string, limit int) ([]*entity.TranscriptTurn, error)
}
