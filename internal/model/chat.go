package model

import (
	"time"

	"gorm.io/datatypes"
)

// DocumentInfo describes one file uploaded alongside a chat turn.
type DocumentInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`
	Path       string `json:"path,omitempty"`
	Size       int64  `json:"size,omitempty"`
	UploadedAt string `json:"uploadedAt,omitempty"`
}

// Chat is one user message and the assistant reply to it. The single
// document columns predate Documents and are still filled for the primary
// upload.
type Chat struct {
	ID             uint                              `gorm:"primaryKey" json:"id"`
	UserID         uint                              `gorm:"not null;index" json:"userId"`
	UserMessage    string                            `gorm:"type:text;not null" json:"userMessage"`
	AssistantReply string                            `gorm:"type:text;not null" json:"assistantReply"`
	DocumentName   *string                           `gorm:"size:255" json:"documentName"`
	DocumentType   *string                           `gorm:"size:128" json:"documentType"`
	DocumentPath   *string                           `gorm:"size:512" json:"documentPath"`
	DocumentSize   *int64                            `json:"documentSize"`
	Documents      datatypes.JSONSlice[DocumentInfo] `json:"documents"`
	UploadedAt     *time.Time                        `json:"uploadedAt"`
	CreatedAt      time.Time                         `json:"timestamp"`
}
