// Package storage abstracts the place where submission folders and documents live: the
// user's Google Drive when a delegated access token is available, a local directory otherwise.
package storage

import (
	"context"
	"time"
)

const (
	ProviderDrive = "google_drive"
	ProviderLocal = "local"
)

// Folder is a created submission folder.
type Folder struct {
	ID   string
	Name string
	Link string
}

// File is an uploaded object inside a folder.
type File struct {
	ID   string
	Name string
	Link string
}

// FolderInfo is what listing returns per discovered folder.
type FolderInfo struct {
	ID            string
	Name          string
	Link          string
	CreatedAt     time.Time
	AppProperties map[string]string
}

// Provider is the capability every storage variant offers.
type Provider interface {
	Name() string
	CreateFolder(ctx context.Context, name string) (Folder, error)
	UploadFile(ctx context.Context, folderID, fileName, mimeType string, data []byte) (File, error)
}

// RecordWriter is implemented by providers that persist a structured record next to the documents.
type RecordWriter interface {
	UploadRecord(ctx context.Context, folderID, name string, record any) (File, error)
}

// SubmissionLister is implemented by providers able to discover previously created folders.
type SubmissionLister interface {
	ListSubmissionFolders(ctx context.Context) ([]FolderInfo, error)
}
