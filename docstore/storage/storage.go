package storage

import (
	"io"
	"path/filepath"

	"github.com/google/uuid"
)

type UsageStats struct {
	TotalBytes uint64
	FreeBytes  uint64
}

// Storage holds document attachments. Paths are relative to the storage root.
type Storage interface {
	Read(path string) (io.ReadCloser, error)

	Write(path string, data io.Reader) error

	Delete(path string) error

	Exists(path string) (bool, error)

	Size(path string) (int64, error)

	List(path string) ([]string, error)

	Usage() (UsageStats, error)

	Location() string
}

func AttachmentPath(documentId uuid.UUID, filename string) string {
	return filepath.Join("attachments", documentId.String(), filename)
}

func DocumentDir(documentId uuid.UUID) string {
	return filepath.Join("attachments", documentId.String())
}
