// FILE: internal/service/archiver_service.go
package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ai-waiter-service/internal/dto"
	"ai-waiter-service/internal/entity"
	"ai-waiter-service/internal/pkg/logger"
	"ai-waiter-service/internal/repository/contract"
	"ai-waiter-service/pkg/events"
	pktNats "ai-waiter-service/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	archiveBatchSize     = 10
	archiveFlushInterval = 3 * time.Second
)

type IArchiverService interface {
	Consume(ctx context.Context) error
}

// archiverService drains finalized transcript turns off the bus and writes
// them to Postgres in small batches, then announces each flush on NATS.
// Losing a turn is acceptable; blocking the voice loop on the database is
// not, which is why this sits behind the bus at all.
type archiverService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	repo      contract.TranscriptRepository
	natsPub   *pktNats.Publisher
	logger    logger.ILogger

	mu      sync.Mutex
	pending []*entity.TranscriptTurn
}

func NewArchiverService(
	pubSub *gochannel.GoChannel,
	topicName string,
	repo contract.TranscriptRepository,
	natsPub *pktNats.Publisher,
	log logger.ILogger,
) IArchiverService {
	return &archiverService{
		pubSub:    pubSub,
		topicName: topicName,
		repo:      repo,
		natsPub:   natsPub,
		logger:    log,
	}
}

func (as *archiverService) Consume(ctx context.Context) error {
	messages, err := as.pubSub.Subscribe(ctx, as.topicName)
	if err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(archiveFlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				as.flush(context.Background())
				return
			case msg, ok := <-messages:
				if !ok {
					as.flush(context.Background())
					return
				}
				as.processMessage(ctx, msg)
			case <-ticker.C:
				as.flush(ctx)
			}
		}
	}()

	return nil
}

func (as *archiverService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishTranscriptMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		as.logger.Error("Archiver", "failed to unmarshal transcript message", map[string]interface{}{"error": err.Error()})
		msg.Ack() // malformed, retrying is pointless
		return
	}
	if payload.Text == "" {
		msg.Ack()
		return
	}

	as.mu.Lock()
	as.pending = append(as.pending, &entity.TranscriptTurn{
		SessionId: payload.SessionId,
		UserId:    payload.UserId,
		Role:      payload.Role,
		Text:      payload.Text,
		Language:  payload.Language,
		Intent:    payload.Intent,
		Tenant:    payload.Tenant,
		Branch:    payload.Branch,
	})
	full := len(as.pending) >= archiveBatchSize
	as.mu.Unlock()

	msg.Ack()
	if full {
		as.flush(ctx)
	}
}

func (as *archiverService) flush(ctx context.Context) {
	as.mu.Lock()
	batch := as.pending
	as.pending = nil
	as.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if as.repo == nil {
		return
	}

	if err := as.repo.CreateBatch(ctx, batch); err != nil {
		as.logger.Error("Archiver", "batch write failed", map[string]interface{}{
			"count": len(batch), "error": err.Error(),
		})
		return
	}
	as.logger.Info("Archiver", "flushed transcript batch", map[string]interface{}{"count": len(batch)})

	if as.natsPub == nil {
		return
	}
	for _, turn := range batch {
		if turn.Role != entity.RoleGuest {
			continue
		}
		evt := events.NewTranscriptFinalized(turn.Tenant, turn.SessionId, turn.UserId, turn.Text, turn.Language)
		if err := as.natsPub.Publish(ctx, evt); err != nil {
			as.logger.Warn("Archiver", "nats publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
}
