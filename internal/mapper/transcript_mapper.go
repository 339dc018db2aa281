package mapper

import (
	"ai-waiter-service/internal/entity"
	"ai-waiter-service/internal/model"
)

type TranscriptMapper struct{}

func NewTranscriptMapper() *TranscriptMapper {
	return &TranscriptMapper{}
}

func (m *TranscriptMapper) ToModel(e *entity.TranscriptTurn) *model.TranscriptTurn {
	return &model.TranscriptTurn{
		Id:        e.Id,
		SessionId: e.SessionId,
		UserId:    e.UserId,
		Role:      e.Role,
		Text:      e.Text,
		Language:  e.Language,
		Intent:    e.Intent,
		Tenant:    e.Tenant,
		Branch:    e.Branch,
		CreatedAt: e.CreatedAt,
	}
}

func (m *TranscriptMapper) ToEntity(mo *model.TranscriptTurn) *entity.TranscriptTurn {
	return &entity.TranscriptTurn{
		Id:        mo.Id,
		SessionId: mo.SessionId,
		UserId:    mo.UserId,
		Role:      mo.Role,
		Text:      mo.Text,
		Language:  mo.Language,
		Intent:    mo.Intent,
		Tenant:    mo.Tenant,
		Branch:    mo.Branch,
		CreatedAt: mo.CreatedAt,
	}
}
