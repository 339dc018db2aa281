package model

import (
	"time"

	"github.com/google/uuid"
)

type TranscriptTurn struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId string    `gorm:"type:varchar(64);not null;index"`
	UserId    string    `gorm:"type:varchar(64);index"`
	Role      string    `gorm:"type:varchar(16);not null"`
	Text      string    `gorm:"type:text;not null"`
	Language  string    `gorm:"type:varchar(8)"`
	Intent    string    `gorm:"type:varchar(24)"`
	Tenant    string    `gorm:"type:varchar(64);not null;index"`
	Branch    string    `gorm:"type:varchar(64);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (TranscriptTurn) TableName() string {
	return "transcript_turns"
}
