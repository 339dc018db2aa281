package implementation

import (
	"context"

	"ai-waiter-service/internal/entity"
	"ai-waiter-service/internal/mapper"
	"ai-waiter-service/internal/model"
	"ai-waiter-service/internal/repository/contract"

	"gorm.io/gorm"
)

type TranscriptRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.TranscriptMapper
}

func NewTranscriptRepository(db *gorm.DB) contract.TranscriptRepository {
	return &TranscriptRepositoryImpl{
		db:     db,
		mapper: mapper.NewTranscriptMapper(),
	}
}

func (r *TranscriptRepositoryImpl) CreateBatch(ctx context.Context, turns []*entity.TranscriptTurn) error {
	if len(turns) == 0 {
		return nil
	}
	models := make([]*model.TranscriptTurn, len(turns))
	for i, t := range turns {
		models[i] = r.mapper.ToModel(t)
	}
	if err := r.db.WithContext(ctx).Create(&models).Error; err != nil {
		return err
	}
	for i, m := range models {
		*turns[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *TranscriptRepositoryImpl) FindBySession(ctx context.Context, sessionId string, limit int) ([]*entity.TranscriptTurn, error) {
	var models []*model.TranscriptTurn
	q := r.db.WithContext(ctx).
		Where("session_id = ?", sessionId).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*entity.TranscriptTurn, len(models))
	for i, m := range models {
		out[i] = r.mapper.ToEntity(m)
	}
	return out, nil
}
