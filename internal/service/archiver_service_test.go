package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"ai-waiter-service/internal/dto"
	"ai-waiter-service/internal/entity"
	"ai-waiter-service/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTranscriptRepo struct {
	mu      sync.Mutex
	batches [][]*entity.TranscriptTurn
}

func (f *fakeTranscriptRepo) CreateBatch(_ context.Context, turns []*entity.TranscriptTurn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, turns)
	return nil
}

func (f *fakeTranscriptRepo) FindBySession(context.Context, string, int) ([]*entity.TranscriptTurn, error) {
	return nil, nil
}


func (f *fakeTranscriptRepo) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func publishTurn(t *testing.T, pub IPublisherService, text string) {
	t.Helper()
	payload, err := json.Marshal(dto.PublishTranscriptMessage{
		SessionId: "s1",
		Role:      entity.RoleGuest,
		Text:      text,
		Tenant:    "qravy",
		Branch:    "main",
	})
	require.NoError(t, err)
	require.NoError(t, pub.Publish(context.Background(), payload))
}

func TestArchiverFlushesFullBatch(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	repo := &fakeTranscriptRepo{}
	arch := NewArchiverService(pubSub, "test.transcripts", repo, nil, logger.Noop{})
	pub := NewPublisherService("test.transcripts", pubSub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, arch.Consume(ctx))

	for i := 0; i < archiveBatchSize; i++ {
		publishTurn(t, pub, "turn")
	}

	assert.Eventually(t, func() bool {
		return repo.total() >= archiveBatchSize
	}, 2*time.Second, 10*time.Millisecond, "full batch never flushed")
}

func TestArchiverSkipsMalformedAndEmpty(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	repo := &fakeTranscriptRepo{}
	arch := NewArchiverService(pubSub, "test.transcripts", repo, nil, logger.Noop{})
	pub := NewPublisherService("test.transcripts", pubSub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, arch.Consume(ctx))

	require.NoError(t, pub.Publish(ctx, []byte("not json")))
	empty, _ := json.Marshal(dto.PublishTranscriptMessage{SessionId: "s1"})
	require.NoError(t, pub.Publish(ctx, empty))

	// Fill a batch with valid turns; the junk above must not poison it.
	for i := 0; i < archiveBatchSize; i++ {
		publishTurn(t, pub, "valid")
	}

	assert.Eventually(t, func() bool {
		return repo.total() == archiveBatchSize
	}, 2*time.Second, 10*time.Millisecond)
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, batch := range repo.batches {
		for _, turn := range batch {
			assert.Equal(t, "valid", turn.Text)
		}
	}
}
