package dto

import (
	"study-pipeline/constant"
	"study-pipeline/entities"
)

// ProcessUploadMessage is the trigger body, shared by the HTTP endpoint and
// the queue consumer.
type ProcessUploadMessage struct {
	UploadId string `json:"uploadId"`
	FileType string `json:"fileType"`
	FileUrl  string `json:"fileUrl"`
}

func (m ProcessUploadMessage) Kind() constant.UploadKind {
	return constant.UploadKind(m.FileType)
}

type ProcessUploadResponse struct {
	Success bool `json:"success"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type UploadDetail struct {
	Upload    *entities.UploadRecord `json:"upload"`
	Summary   *string                `json:"summary,omitempty"`
	KeyPoints []*entities.KeyPoint   `json:"keyPoints"`
}
