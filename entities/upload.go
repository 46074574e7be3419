package entities

import (
	"study-pipeline/constant"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UploadRecord is one user-submitted file tracked through the pipeline.
type UploadRecord struct {
	ID           string                `json:"id" gorm:"type:varchar(64);primaryKey"`
	OwnerID      string                `json:"owner_id" gorm:"type:varchar(64);not null;index:idx_uploads_owner_id"`
	DisplayName  string                `json:"display_name" gorm:"type:varchar(255);not null"`
	Kind         constant.UploadKind   `json:"kind" gorm:"type:varchar(16);not null"`
	StorageURL   string                `json:"storage_url" gorm:"type:text;not null"`
	ByteSize     int64                 `json:"byte_size" gorm:"type:bigint;not null;default:0"`
	Duration     *float64              `json:"duration,omitempty"`
	Status       constant.UploadStatus `json:"status" gorm:"type:varchar(16);not null;index:idx_uploads_status"`
	ErrorMessage *string               `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`

	Transcripts    []TranscriptArtifact    `json:"-" gorm:"foreignKey:UploadID;constraint:OnDelete:CASCADE"`
	ExtractedTexts []ExtractedTextArtifact `json:"-" gorm:"foreignKey:UploadID;constraint:OnDelete:CASCADE"`
	Summaries      []SummaryArtifact       `json:"-" gorm:"foreignKey:UploadID;constraint:OnDelete:CASCADE"`
	KeyPoints      []KeyPoint              `json:"-" gorm:"foreignKey:UploadID;constraint:OnDelete:CASCADE"`
}

func (UploadRecord) TableName() string {
	return "uploads"
}

func (u *UploadRecord) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Status == "" {
		u.Status = constant.UploadStatusUploaded
	}
	return nil
}
