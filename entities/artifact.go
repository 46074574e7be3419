package entities

import (
	"study-pipeline/constant"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TranscriptArtifact keeps the speech API response verbatim.
type TranscriptArtifact struct {
	ID         string         `json:"id" gorm:"type:varchar(64);primaryKey"`
	UploadID   string         `json:"upload_id" gorm:"type:varchar(64);not null;index:idx_transcripts_upload_id"`
	RawPayload datatypes.JSON `json:"raw_payload" gorm:"not null"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (TranscriptArtifact) TableName() string {
	return "transcripts"
}

func (a *TranscriptArtifact) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

type ExtractedTextArtifact struct {
	ID        string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	UploadID  string    `json:"upload_id" gorm:"type:varchar(64);not null;index:idx_extracted_texts_upload_id"`
	Text      string    `json:"text" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (ExtractedTextArtifact) TableName() string {
	return "extracted_texts"
}

func (a *ExtractedTextArtifact) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

type SummaryArtifact struct {
	ID        string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	UploadID  string    `json:"upload_id" gorm:"type:varchar(64);not null;index:idx_summaries_upload_id"`
	Text      string    `json:"text" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (SummaryArtifact) TableName() string {
	return "summaries"
}

func (a *SummaryArtifact) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

type KeyPoint struct {
	ID         string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	UploadID   string    `json:"upload_id" gorm:"type:varchar(64);not null;index:idx_key_points_upload_id"`
	Text       string    `json:"text" gorm:"type:text;not null"`
	Importance int       `json:"importance" gorm:"type:integer;not null;default:3;check:importance BETWEEN 1 AND 5"`
	CreatedAt  time.Time `json:"created_at"`
}

func (KeyPoint) TableName() string {
	return "key_points"
}

func (k *KeyPoint) BeforeCreate(tx *gorm.DB) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	k.Importance = ClampImportance(k.Importance)
	return nil
}

// ClampImportance maps any value into [1,5]; zero means "not provided".
func ClampImportance(v int) int {
	switch {
	case v == 0:
		return constant.DefaultImportance
	case v < constant.MinImportance:
		return constant.MinImportance
	case v > constant.MaxImportance:
		return constant.MaxImportance
	}
	return v
}
