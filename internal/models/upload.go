package models

import "time"

// UploadedFileRecord describes one file delivered to a user's Drive folder.
// Created once per successful upload, immutable afterward.
type UploadedFileRecord struct {
	FileID     string    `json:"fileId"`
	FileURL    string    `json:"fileUrl"`
	FolderID   string    `json:"folderId"`
	UploadedAt time.Time `json:"uploadedAt"`
}
