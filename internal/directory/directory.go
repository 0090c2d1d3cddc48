// Package directory reads the authoritative backend list and the file
// ownership metadata from the relational store.
package directory

import (
	"context"

	"github.com/vkgw/vk-gateway/internal/domain"
)

// ExpiredFile is a metadata row whose retention window has passed.
type ExpiredFile struct {
	FileID   string `json:"file_id"`
	ServerID string `json:"server_id"`
}

// Directory is the external backend directory. The registry refresh loop and
// the proxy's ownership lookups both consume this interface.
type Directory interface {
	// LoadBackends returns the full directory-sourced backend list.
	LoadBackends(ctx context.Context) ([]domain.Record, error)

	// FileBackend returns the server ID owning a file, or "" when the file
	// is not present in the metadata table.
	FileBackend(ctx context.Context, fileID string) (string, error)

	// ExpiredFiles returns all files whose delete_at has passed.
	ExpiredFiles(ctx context.Context) ([]ExpiredFile, error)

	// DeleteFileMetadata removes a file's metadata row.
	DeleteFileMetadata(ctx context.Context, fileID string) error

	// Close releases the underlying connections.
	Close()
}
